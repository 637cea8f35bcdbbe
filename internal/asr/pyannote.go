package asr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// pyannoteDiarizer runs WhisperX's pyannote diarization pipeline through
// uvx and maps the resulting speaker turns back onto the transcript. It
// requires a HuggingFace token to fetch the gated pyannote weights.
type pyannoteDiarizer struct {
	opts Options
	cuda bool
}

// NewPyannoteDiarizer returns the pyannote-backed diarizer, or nil when no
// HuggingFace token is configured.
func NewPyannoteDiarizer(opts Options, cuda bool) Diarizer {
	if opts.HFToken == "" {
		return nil
	}
	return &pyannoteDiarizer{opts: opts, cuda: cuda}
}

func (d *pyannoteDiarizer) Diarize(ctx context.Context, audioPath string, segments []Segment, minSpeakers, maxSpeakers int) ([]Segment, int, error) {
	outputDir, err := os.MkdirTemp("", "quill-diarize-*")
	if err != nil {
		return nil, 0, fmt.Errorf("diarize: create output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	args := d.buildArgs(audioPath, outputDir, minSpeakers, maxSpeakers)
	uvx := d.opts.UVXBinary
	if uvx == "" {
		uvx = "uvx"
	}
	cmd := exec.CommandContext(ctx, uvx, args...) //nolint:gosec
	if output, runErr := cmd.CombinedOutput(); runErr != nil {
		return nil, 0, fmt.Errorf("diarize: %w: %s", runErr, strings.TrimSpace(string(output)))
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	labeled, _, err := loadWhisperXSegments(filepath.Join(outputDir, baseName+".json"), "")
	if err != nil {
		return nil, 0, err
	}

	turns := make([]Turn, 0, len(labeled))
	for _, seg := range labeled {
		if seg.Speaker == "" {
			continue
		}
		turns = append(turns, Turn{Start: seg.Start, End: seg.End, Speaker: seg.Speaker})
	}

	assigned := AssignSpeakers(segments, turns)
	return assigned, CountSpeakers(assigned), nil
}

func (d *pyannoteDiarizer) buildArgs(audioPath, outputDir string, minSpeakers, maxSpeakers int) []string {
	args := make([]string, 0, 24)
	if d.cuda {
		args = append(args, "--index-url", cudaIndexURL, "--extra-index-url", pypiIndexURL)
	} else {
		args = append(args, "--index-url", pypiIndexURL)
	}

	args = append(args,
		"whisperx",
		audioPath,
		"--model", "tiny",
		"--output_dir", outputDir,
		"--output_format", "json",
		"--diarize",
		"--hf_token", d.opts.HFToken,
	)
	if minSpeakers > 0 {
		args = append(args, "--min_speakers", strconv.Itoa(minSpeakers))
	}
	if maxSpeakers > 0 {
		args = append(args, "--max_speakers", strconv.Itoa(maxSpeakers))
	}
	if d.cuda {
		args = append(args, "--device", cudaDevice)
	} else {
		args = append(args, "--device", cpuDevice, "--compute_type", cpuComputeType)
	}
	return args
}
