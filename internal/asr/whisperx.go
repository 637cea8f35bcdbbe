package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// WhisperX invocation constants.
const (
	cudaIndexURL   = "https://download.pytorch.org/whl/cu128"
	pypiIndexURL   = "https://pypi.org/simple"
	cudaDevice     = "cuda"
	cpuDevice      = "cpu"
	cpuComputeType = "int8"
	batchSize      = "4"
	beamSize       = "5"
)

// whisperXBackend runs WhisperX through uvx on CUDA or CPU.
type whisperXBackend struct {
	opts Options
	cuda bool
}

func newWhisperXBackend(opts Options, cuda bool) *whisperXBackend {
	return &whisperXBackend{opts: opts, cuda: cuda}
}

func (b *whisperXBackend) Name() string {
	if b.cuda {
		return "cuda"
	}
	return "cpu"
}

func (b *whisperXBackend) RealtimeFactor() float64 {
	if b.cuda {
		return 2.0
	}
	return 0.5
}

// LoadModel verifies the uvx launcher is present. WhisperX downloads and
// caches model weights itself under the configured models directory.
func (b *whisperXBackend) LoadModel(_ context.Context, model string) (*Model, error) {
	uvx := b.uvxBinary()
	if _, err := exec.LookPath(uvx); err != nil {
		return nil, fmt.Errorf("whisperx: launcher %q not found: %w", uvx, err)
	}
	return &Model{Backend: b.Name(), Name: model}, nil
}

func (b *whisperXBackend) Transcribe(ctx context.Context, model *Model, audioPath, language string, wordTimestamps bool) ([]Segment, Info, error) {
	outputDir, err := os.MkdirTemp("", "quill-whisperx-*")
	if err != nil {
		return nil, Info{}, fmt.Errorf("whisperx: create output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	args := b.buildArgs(model.Name, audioPath, outputDir, language, wordTimestamps)
	cmd := exec.CommandContext(ctx, b.uvxBinary(), args...) //nolint:gosec
	if output, runErr := cmd.CombinedOutput(); runErr != nil {
		return nil, Info{}, fmt.Errorf("whisperx: %w: %s", runErr, strings.TrimSpace(string(output)))
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, baseName+".json")
	return loadWhisperXSegments(jsonPath, language)
}

func (b *whisperXBackend) buildArgs(model, audioPath, outputDir, language string, wordTimestamps bool) []string {
	args := make([]string, 0, 24)
	if b.cuda {
		args = append(args, "--index-url", cudaIndexURL, "--extra-index-url", pypiIndexURL)
	} else {
		args = append(args, "--index-url", pypiIndexURL)
	}

	args = append(args,
		"whisperx",
		audioPath,
		"--model", model,
		"--batch_size", batchSize,
		"--beam_size", beamSize,
		"--output_dir", outputDir,
		"--output_format", "json",
	)
	if b.opts.ModelsDir != "" {
		args = append(args, "--model_cache_only", "False", "--download_root", b.opts.ModelsDir)
	}
	if language != "" {
		args = append(args, "--language", language)
	}
	if !wordTimestamps {
		args = append(args, "--no_align")
	}
	if b.cuda {
		args = append(args, "--device", cudaDevice)
	} else {
		compute := b.opts.ComputeType
		if compute == "" {
			compute = cpuComputeType
		}
		args = append(args, "--device", cpuDevice, "--compute_type", compute)
	}
	return args
}

func (b *whisperXBackend) uvxBinary() string {
	if b.opts.UVXBinary != "" {
		return b.opts.UVXBinary
	}
	return "uvx"
}

type whisperXSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
	Words   []Word  `json:"words"`
}

type whisperXPayload struct {
	Segments []whisperXSegment `json:"segments"`
	Language string            `json:"language"`
}

func loadWhisperXSegments(jsonPath, requestedLanguage string) ([]Segment, Info, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, Info{}, fmt.Errorf("whisperx: read output: %w", err)
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, Info{}, fmt.Errorf("whisperx: parse output: %w", err)
	}

	segments := make([]Segment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		segments = append(segments, Segment{
			Start:   seg.Start,
			End:     seg.End,
			Text:    strings.TrimSpace(seg.Text),
			Speaker: seg.Speaker,
			Words:   seg.Words,
		})
	}

	language := payload.Language
	if language == "" {
		language = requestedLanguage
	}
	return segments, Info{Language: language}, nil
}
