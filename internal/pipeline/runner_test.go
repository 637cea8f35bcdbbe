package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quill/internal/asr"
	"quill/internal/logging"
	"quill/internal/media"
	"quill/internal/tasks"
)

type fakeBackend struct {
	segments []asr.Segment
	info     asr.Info
	err      error

	gotLanguage string
	gotWordTS   bool
}

func (f *fakeBackend) Name() string            { return "cpu" }
func (f *fakeBackend) RealtimeFactor() float64 { return 0.5 }

func (f *fakeBackend) LoadModel(_ context.Context, model string) (*asr.Model, error) {
	return &asr.Model{Backend: "cpu", Name: model}, nil
}

func (f *fakeBackend) Transcribe(_ context.Context, _ *asr.Model, _, language string, wordTimestamps bool) ([]asr.Segment, asr.Info, error) {
	f.gotLanguage = language
	f.gotWordTS = wordTimestamps
	return f.segments, f.info, f.err
}

type fakeDiarizer struct {
	speakers int
	err      error
}

func (f *fakeDiarizer) Diarize(_ context.Context, _ string, segments []asr.Segment, _, _ int) ([]asr.Segment, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	labeled := make([]asr.Segment, len(segments))
	copy(labeled, segments)
	for i := range labeled {
		labeled[i].Speaker = "SPEAKER_00"
	}
	return labeled, f.speakers, nil
}

func newTestRunner(t *testing.T, backend asr.Backend, diarizer asr.Diarizer) *Runner {
	t.Helper()
	return &Runner{
		resultsDir: t.TempDir(),
		prober:     media.NewProber("ffprobe-not-installed"),
		extractor:  media.NewExtractor("ffmpeg-not-installed"),
		backend:    backend,
		diarizer:   diarizer,
		cache:      asr.NewModelCache(),
		interval:   time.Second,
		logger:     logging.NewNop(),
	}
}

func audioTask(t *testing.T, settings tasks.Settings) *tasks.Task {
	t.Helper()
	uploadPath := filepath.Join(t.TempDir(), "talk.wav")
	if err := os.WriteFile(uploadPath, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return &tasks.Task{
		ID:         "abcd1234",
		Filename:   "talk.wav",
		UploadPath: uploadPath,
		Settings:   settings,
	}
}

func TestRunHappyPath(t *testing.T) {
	backend := &fakeBackend{
		segments: []asr.Segment{
			{Start: 0, End: 1.5, Text: "hello"},
			{Start: 1.5, End: 3.25, Text: "big world"},
		},
		info: asr.Info{Language: "en"},
	}
	runner := newTestRunner(t, backend, &fakeDiarizer{})

	var reports []tasks.Progress
	outcome, err := runner.Run(context.Background(), Request{
		Task:   audioTask(t, tasks.Settings{Model: "base", Language: "auto", Format: "txt"}),
		Report: func(p tasks.Progress) { reports = append(reports, p) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.WordCount != 3 {
		t.Errorf("word count = %d, want 3", outcome.WordCount)
	}
	if outcome.Language != "en" {
		t.Errorf("language = %q, want en", outcome.Language)
	}
	if outcome.SpeakersDetected != 0 {
		t.Errorf("speakers = %d, want 0 without diarization", outcome.SpeakersDetected)
	}
	data, err := os.ReadFile(outcome.ResultPath)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if string(data) != "hello big world" {
		t.Errorf("result content = %q", data)
	}

	wantPercents := []int{10, 15, 20, 90}
	if len(reports) != len(wantPercents) {
		t.Fatalf("got %d progress reports, want %d: %+v", len(reports), len(wantPercents), reports)
	}
	for i, want := range wantPercents {
		if reports[i].Percent != want {
			t.Errorf("report %d percent = %d, want %d", i, reports[i].Percent, want)
		}
	}
	if got := reports[len(reports)-1].SegmentsTotal; got != 2 {
		t.Errorf("formatting report segments_total = %d, want 2", got)
	}
	if backend.gotLanguage != "" {
		t.Errorf("auto language should be passed as empty, got %q", backend.gotLanguage)
	}
}

func TestRunDiarizationLabelsSpeakers(t *testing.T) {
	backend := &fakeBackend{
		segments: []asr.Segment{{Start: 0, End: 2, Text: "hello"}},
		info:     asr.Info{Language: "en"},
	}
	runner := newTestRunner(t, backend, &fakeDiarizer{speakers: 2})

	var percents []int
	outcome, err := runner.Run(context.Background(), Request{
		Task:   audioTask(t, tasks.Settings{Model: "base", Language: "en", Format: "txt", Diarize: true}),
		Report: func(p tasks.Progress) { percents = append(percents, p.Percent) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.SpeakersDetected != 2 {
		t.Errorf("speakers = %d, want 2", outcome.SpeakersDetected)
	}
	if !backend.gotWordTS {
		t.Error("diarization should force word timestamps")
	}

	data, _ := os.ReadFile(outcome.ResultPath)
	if !strings.Contains(string(data), "[SPEAKER_00] hello") {
		t.Errorf("result should carry speaker labels: %q", data)
	}

	want := []int{10, 15, 20, 75, 85, 90}
	if len(percents) != len(want) {
		t.Fatalf("percents = %v, want %v", percents, want)
	}
	for i := range want {
		if percents[i] != want[i] {
			t.Fatalf("percents = %v, want %v", percents, want)
		}
	}
}

func TestRunDiarizationFailureIsBestEffort(t *testing.T) {
	backend := &fakeBackend{
		segments: []asr.Segment{{Start: 0, End: 2, Text: "hello"}},
		info:     asr.Info{Language: "en"},
	}
	runner := newTestRunner(t, backend, &fakeDiarizer{err: errors.New("pyannote exploded")})

	outcome, err := runner.Run(context.Background(), Request{
		Task:   audioTask(t, tasks.Settings{Model: "base", Language: "en", Format: "txt", Diarize: true}),
		Report: func(tasks.Progress) {},
	})
	if err != nil {
		t.Fatalf("Run should not fail on diarization error: %v", err)
	}
	if outcome.SpeakersDetected != 0 {
		t.Errorf("speakers = %d, want 0 after diarization failure", outcome.SpeakersDetected)
	}
}

func TestRunTranscribeFailure(t *testing.T) {
	backend := &fakeBackend{err: errors.New("model crashed")}
	runner := newTestRunner(t, backend, &fakeDiarizer{})

	_, err := runner.Run(context.Background(), Request{
		Task:   audioTask(t, tasks.Settings{Model: "base", Language: "en", Format: "txt"}),
		Report: func(tasks.Progress) {},
	})
	if err == nil {
		t.Fatal("Run should surface transcription failure")
	}
	if !strings.Contains(err.Error(), "model crashed") {
		t.Errorf("error should carry the tool message: %v", err)
	}
}
