package format

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"quill/internal/asr"
)

func twoSegments() []asr.Segment {
	return []asr.Segment{
		{Start: 0.0, End: 1.5, Text: "hello"},
		{Start: 1.5, End: 3.25, Text: "world"},
	}
}

func TestRenderSRT(t *testing.T) {
	result := NewResult(twoSegments(), "en", 3.25, 0, "base")
	got, err := Render(result, "srt")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:01,500\nhello\n" +
		"\n" +
		"2\n00:00:01,500 --> 00:00:03,250\nworld\n"
	if got != want {
		t.Errorf("srt output:\n%q\nwant:\n%q", got, want)
	}
}

func TestRenderVTT(t *testing.T) {
	result := NewResult(twoSegments(), "en", 3.25, 0, "base")
	got, err := Render(result, "vtt")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(got, "WEBVTT\n") {
		t.Errorf("vtt output missing WEBVTT header: %q", got)
	}
	if !strings.Contains(got, "00:00:00.000 --> 00:00:01.500\nhello") {
		t.Errorf("vtt output missing dot-millisecond cue: %q", got)
	}
	if strings.Contains(got, ",") {
		t.Errorf("vtt timestamps must use dots, not commas: %q", got)
	}
}

func TestRenderTSV(t *testing.T) {
	result := NewResult(twoSegments(), "en", 3.25, 0, "base")
	got, err := Render(result, "tsv")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "start\tend\ttext\n0.000\t1.500\thello\n1.500\t3.250\tworld"
	if got != want {
		t.Errorf("tsv output:\n%q\nwant:\n%q", got, want)
	}
}

func TestRenderTextPlain(t *testing.T) {
	result := NewResult(twoSegments(), "en", 3.25, 0, "base")
	got, err := Render(result, "txt")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "hello world" {
		t.Errorf("txt output = %q, want %q", got, "hello world")
	}
}

func TestRenderTextWithSpeakers(t *testing.T) {
	segments := []asr.Segment{
		{Start: 0.0, End: 1.5, Text: "hello", Speaker: "SPEAKER_00"},
		{Start: 1.5, End: 3.25, Text: "world", Speaker: "SPEAKER_01"},
	}
	result := NewResult(segments, "en", 3.25, 2, "base")
	got, err := Render(result, "txt")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "[SPEAKER_00] hello\n[SPEAKER_01] world"
	if got != want {
		t.Errorf("txt output = %q, want %q", got, want)
	}
}

func TestRenderJSON(t *testing.T) {
	result := NewResult(twoSegments(), "en", 3.25, 0, "base")
	got, err := Render(result, "json")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var decoded Result
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("json output does not parse: %v", err)
	}
	if decoded.Text != "hello world" || decoded.Language != "en" || len(decoded.Segments) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if !strings.Contains(got, "\n  ") {
		t.Error("json output should be pretty-printed")
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	result := NewResult(twoSegments(), "en", 3.25, 0, "base")
	if _, err := Render(result, "docx"); err == nil {
		t.Error("unknown format should be rejected")
	}
}

func TestTimestampEdges(t *testing.T) {
	cases := []struct {
		seconds float64
		srt     string
		vtt     string
	}{
		{0, "00:00:00,000", "00:00:00.000"},
		{59.999, "00:00:59,999", "00:00:59.999"},
		{61.25, "00:01:01,250", "00:01:01.250"},
		{3661.007, "01:01:01,007", "01:01:01.007"},
	}
	for _, tc := range cases {
		if got := srtTimestamp(tc.seconds); got != tc.srt {
			t.Errorf("srtTimestamp(%v) = %s, want %s", tc.seconds, got, tc.srt)
		}
		if got := vttTimestamp(tc.seconds); got != tc.vtt {
			t.Errorf("vttTimestamp(%v) = %s, want %s", tc.seconds, got, tc.vtt)
		}
	}
}

func TestWordCount(t *testing.T) {
	result := NewResult(twoSegments(), "en", 3.25, 0, "base")
	if got := result.WordCount(); got != 2 {
		t.Errorf("WordCount = %d, want 2", got)
	}
}

func TestResultFilename(t *testing.T) {
	at := time.Date(2026, 8, 29, 10, 15, 0, 0, time.UTC)
	got := ResultFilename("meeting recording.mp4", "srt", at)
	if got != "meeting recording_transcription_20260829_101500.srt" {
		t.Errorf("ResultFilename = %q", got)
	}
}

func TestSaveWritesFile(t *testing.T) {
	dir := t.TempDir()
	result := NewResult(twoSegments(), "en", 3.25, 0, "base")

	path, err := Save(result, dir, "talk.mp4", "txt")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("saved content = %q", data)
	}
	if !strings.Contains(path, "talk_transcription_") || !strings.HasSuffix(path, ".txt") {
		t.Errorf("result path %q does not follow naming convention", path)
	}
}
