package format

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"quill/internal/asr"
	"quill/internal/catalog"
)

// Result is the assembled transcription handed to the renderers. Its JSON
// shape is the payload of the "json" output format.
type Result struct {
	Text     string        `json:"text"`
	Segments []asr.Segment `json:"segments"`
	Language string        `json:"language"`
	Duration float64       `json:"duration"`
	Speakers int           `json:"speakers"`
	Model    string        `json:"model"`
}

// NewResult joins segments into the full text and counts words.
func NewResult(segments []asr.Segment, language string, duration float64, speakers int, model string) *Result {
	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		texts = append(texts, seg.Text)
	}
	return &Result{
		Text:     strings.Join(texts, " "),
		Segments: segments,
		Language: language,
		Duration: duration,
		Speakers: speakers,
		Model:    model,
	}
}

// WordCount counts whitespace-separated tokens in the joined text.
func (r *Result) WordCount() int {
	return len(strings.Fields(r.Text))
}

// Render serializes the result in the named output format.
func Render(result *Result, outputFormat string) (string, error) {
	switch outputFormat {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", fmt.Errorf("format: marshal result: %w", err)
		}
		return string(data), nil
	case "txt":
		return renderText(result), nil
	case "srt":
		return renderSRT(result.Segments), nil
	case "vtt":
		return renderVTT(result.Segments), nil
	case "tsv":
		return renderTSV(result.Segments), nil
	default:
		return "", fmt.Errorf("format: unknown output format %q (supported: %s)",
			outputFormat, strings.Join(catalog.Formats(), ", "))
	}
}

func renderText(result *Result) string {
	if result.Speakers == 0 {
		return result.Text
	}
	lines := make([]string, 0, len(result.Segments))
	for _, seg := range result.Segments {
		if seg.Speaker != "" {
			lines = append(lines, fmt.Sprintf("[%s] %s", seg.Speaker, seg.Text))
		} else {
			lines = append(lines, seg.Text)
		}
	}
	return strings.Join(lines, "\n")
}

func renderSRT(segments []asr.Segment) string {
	blocks := make([]string, 0, len(segments))
	for i, seg := range segments {
		blocks = append(blocks, fmt.Sprintf("%d\n%s --> %s\n%s\n",
			i+1, srtTimestamp(seg.Start), srtTimestamp(seg.End), speakerPrefixed(seg)))
	}
	return strings.Join(blocks, "\n")
}

func renderVTT(segments []asr.Segment) string {
	blocks := make([]string, 0, len(segments)+1)
	blocks = append(blocks, "WEBVTT\n")
	for _, seg := range segments {
		blocks = append(blocks, fmt.Sprintf("%s --> %s\n%s\n",
			vttTimestamp(seg.Start), vttTimestamp(seg.End), speakerPrefixed(seg)))
	}
	return strings.Join(blocks, "\n")
}

func renderTSV(segments []asr.Segment) string {
	lines := make([]string, 0, len(segments)+1)
	lines = append(lines, "start\tend\ttext")
	for _, seg := range segments {
		lines = append(lines, fmt.Sprintf("%.3f\t%.3f\t%s", seg.Start, seg.End, speakerPrefixed(seg)))
	}
	return strings.Join(lines, "\n")
}

func speakerPrefixed(seg asr.Segment) string {
	if seg.Speaker != "" {
		return fmt.Sprintf("[%s] %s", seg.Speaker, seg.Text)
	}
	return seg.Text
}

// srtTimestamp renders seconds as HH:MM:SS,mmm.
func srtTimestamp(seconds float64) string {
	h, m, s, ms := splitTimestamp(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// vttTimestamp renders seconds as HH:MM:SS.mmm.
func vttTimestamp(seconds float64) string {
	h, m, s, ms := splitTimestamp(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func splitTimestamp(seconds float64) (h, m, s, ms int) {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int(math.Round(seconds * 1000))
	h = totalMillis / 3600000
	m = totalMillis % 3600000 / 60000
	s = totalMillis % 60000 / 1000
	ms = totalMillis % 1000
	return h, m, s, ms
}
