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

// whisperCPPBackend runs whisper.cpp's whisper-cli with Metal acceleration.
type whisperCPPBackend struct {
	opts Options
}

func newWhisperCPPBackend(opts Options) *whisperCPPBackend {
	return &whisperCPPBackend{opts: opts}
}

func (b *whisperCPPBackend) Name() string { return "metal" }

func (b *whisperCPPBackend) RealtimeFactor() float64 { return 3.0 }

// LoadModel resolves the ggml weights file for the named model, downloading
// it with whisper.cpp's conventions absent. The models directory must already
// contain ggml-<model>.bin; whisper-cli has no download step of its own.
func (b *whisperCPPBackend) LoadModel(_ context.Context, model string) (*Model, error) {
	path := filepath.Join(b.opts.ModelsDir, "ggml-"+model+".bin")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("whispercpp: model weights %q not found: %w", path, err)
	}
	return &Model{Backend: b.Name(), Name: model, handle: path}, nil
}

func (b *whisperCPPBackend) Transcribe(ctx context.Context, model *Model, audioPath, language string, _ bool) ([]Segment, Info, error) {
	modelPath, ok := model.handle.(string)
	if !ok || modelPath == "" {
		return nil, Info{}, fmt.Errorf("whispercpp: model %q has no weights path", model.Name)
	}

	outputDir, err := os.MkdirTemp("", "quill-whispercpp-*")
	if err != nil {
		return nil, Info{}, fmt.Errorf("whispercpp: create output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	outputPrefix := filepath.Join(outputDir, "result")
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-oj",
		"-of", outputPrefix,
		"-np",
	}
	if language != "" {
		args = append(args, "-l", language)
	}

	cmd := exec.CommandContext(ctx, b.cliBinary(), args...) //nolint:gosec
	if output, runErr := cmd.CombinedOutput(); runErr != nil {
		return nil, Info{}, fmt.Errorf("whispercpp: %w: %s", runErr, strings.TrimSpace(string(output)))
	}

	return loadWhisperCPPSegments(outputPrefix+".json", language)
}

func (b *whisperCPPBackend) cliBinary() string {
	if b.opts.WhisperCLI != "" {
		return b.opts.WhisperCLI
	}
	return "whisper-cli"
}

type whisperCPPTranscription struct {
	Offsets struct {
		From int64 `json:"from"`
		To   int64 `json:"to"`
	} `json:"offsets"`
	Text string `json:"text"`
}

type whisperCPPPayload struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []whisperCPPTranscription `json:"transcription"`
}

func loadWhisperCPPSegments(jsonPath, requestedLanguage string) ([]Segment, Info, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, Info{}, fmt.Errorf("whispercpp: read output: %w", err)
	}
	var payload whisperCPPPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, Info{}, fmt.Errorf("whispercpp: parse output: %w", err)
	}

	segments := make([]Segment, 0, len(payload.Transcription))
	for _, entry := range payload.Transcription {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Start: float64(entry.Offsets.From) / 1000.0,
			End:   float64(entry.Offsets.To) / 1000.0,
			Text:  text,
		})
	}

	language := payload.Result.Language
	if language == "" {
		language = requestedLanguage
	}
	return segments, Info{Language: language}, nil
}
