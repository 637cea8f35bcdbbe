package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"quill/internal/asr"
	"quill/internal/catalog"
	"quill/internal/config"
	"quill/internal/format"
	"quill/internal/logging"
	"quill/internal/media"
	"quill/internal/services"
	"quill/internal/tasks"
)

// Request is one pipeline invocation. Task is a snapshot taken at dispatch;
// the pipeline never touches the registry directly, it reports through the
// callbacks and returns the outcome.
type Request struct {
	Task        *tasks.Task
	Report      func(tasks.Progress)
	SetDuration func(seconds float64)
}

// Outcome is the successful end state of a pipeline run.
type Outcome struct {
	ResultPath       string
	Language         string
	SpeakersDetected int
	WordCount        int
}

// Runner executes the transcription pipeline for one task at a time per
// call: probe, optional audio extraction, model load, inference, optional
// diarization, formatting and result persistence.
type Runner struct {
	resultsDir string
	prober     *media.Prober
	extractor  *media.Extractor
	backend    asr.Backend
	diarizer   asr.Diarizer
	cache      *asr.ModelCache
	interval   time.Duration
	logger     *slog.Logger
}

// NewRunner wires a runner from configuration and the resolved backend.
func NewRunner(cfg *config.Config, resolver *asr.Resolver, logger *slog.Logger) *Runner {
	return &Runner{
		resultsDir: cfg.Paths.ResultsDir,
		prober:     media.NewProber(cfg.Transcribe.FFprobeBinary),
		extractor:  media.NewExtractor(cfg.Transcribe.FFmpegBinary),
		backend:    resolver.Resolve(),
		diarizer:   resolver.Diarizer(),
		cache:      asr.NewModelCache(),
		interval:   time.Duration(cfg.Workflow.ProgressIntervalSeconds) * time.Second,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run executes the pipeline. Errors returned here are stage failures; the
// scheduler turns them into a failed task record.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	task := req.Task
	ctx = services.WithTaskID(ctx, task.ID)
	log := logging.WithContext(ctx, r.logger)

	var duration, sizeMB float64
	if probe, perr := r.prober.Inspect(ctx, task.UploadPath); perr == nil {
		duration = probe.DurationSeconds()
		sizeMB = float64(probe.SizeBytes()) / (1024 * 1024)
	}
	if duration > 0 && req.SetDuration != nil {
		req.SetDuration(duration)
	}

	audioPath, cleanup, err := r.prepareAudio(ctx, task, sizeMB, req.Report, log)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	req.Report(tasks.Progress{
		Step:    tasks.StepLoadingModel,
		Percent: 15,
		Message: fmt.Sprintf("Loading %s model...", task.Settings.Model),
	})
	model, err := r.cache.GetOrLoad(ctx, r.backend, task.Settings.Model)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "pipeline", "load_model", "model load failed", err)
	}

	req.Report(tasks.Progress{
		Step:    tasks.StepTranscribing,
		Percent: 20,
		Message: "Starting transcription...",
	})

	language := task.Settings.Language
	if language == catalog.AutoLanguage {
		language = ""
	}
	wordTimestamps := task.Settings.WordTimestamps || task.Settings.Diarize

	transcribeStart := time.Now()
	tctx := services.WithStage(ctx, "transcribe")
	est := startEstimator(duration, r.backend.RealtimeFactor(), task.Settings.Diarize, r.interval, req.Report)
	segments, info, err := r.backend.Transcribe(tctx, model, audioPath, language, wordTimestamps)
	est.stop()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "pipeline", "transcribe", "transcription failed", err)
	}
	logging.WithContext(tctx, r.logger).Info("transcription finished",
		logging.Duration("elapsed", time.Since(transcribeStart)),
		logging.Int("segments", len(segments)),
		logging.String("language", info.Language),
	)

	speakers := 0
	if task.Settings.Diarize {
		dctx := services.WithStage(ctx, "diarize")
		segments, speakers = r.diarize(dctx, audioPath, segments, task, req.Report, logging.WithContext(dctx, r.logger))
	}

	req.Report(tasks.Progress{
		Step:          tasks.StepFormatting,
		Percent:       90,
		Message:       "Formatting output...",
		SegmentsTotal: len(segments),
	})
	result := format.NewResult(segments, info.Language, duration, speakers, task.Settings.Model)
	resultPath, err := format.Save(result, r.resultsDir, task.Filename, task.Settings.Format)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "pipeline", "save_result", "result write failed", err)
	}

	return &Outcome{
		ResultPath:       resultPath,
		Language:         result.Language,
		SpeakersDetected: speakers,
		WordCount:        result.WordCount(),
	}, nil
}

// prepareAudio returns the path inference should read. Video uploads are
// converted to a temporary mono 16kHz WAV which the returned cleanup
// removes; audio uploads pass through untouched.
func (r *Runner) prepareAudio(ctx context.Context, task *tasks.Task, sizeMB float64, report func(tasks.Progress), log *slog.Logger) (string, func(), error) {
	if !media.IsVideo(task.Filename) {
		report(tasks.Progress{
			Step:    tasks.StepPreparing,
			Percent: 10,
			Message: "Preparing audio file...",
		})
		return task.UploadPath, func() {}, nil
	}

	if sizeMB == 0 {
		if stat, err := os.Stat(task.UploadPath); err == nil {
			sizeMB = float64(stat.Size()) / (1024 * 1024)
		}
	}
	report(tasks.Progress{
		Step:    tasks.StepExtracting,
		Percent: 5,
		Message: fmt.Sprintf("Extracting audio from video (%.1f MB)...", sizeMB),
	})

	wavPath := filepath.Join(os.TempDir(), fmt.Sprintf("quill-%s.wav", task.ID))
	if err := r.extractor.ExtractAudio(ctx, task.UploadPath, wavPath); err != nil {
		os.Remove(wavPath)
		return "", func() {}, services.Wrap(services.ErrExternalTool, "pipeline", "extract_audio", "audio extraction failed", err)
	}
	log.Debug("audio extracted", logging.String("wav", filepath.Base(wavPath)))

	return wavPath, func() { os.Remove(wavPath) }, nil
}

// diarize labels speakers best-effort: any failure logs a warning and
// leaves the transcript unlabeled with zero detected speakers.
func (r *Runner) diarize(ctx context.Context, audioPath string, segments []asr.Segment, task *tasks.Task, report func(tasks.Progress), log *slog.Logger) ([]asr.Segment, int) {
	report(tasks.Progress{
		Step:    tasks.StepDiarizing,
		Percent: 75,
		Message: "Loading speaker diarization model...",
	})

	labeled, speakers, err := r.diarizer.Diarize(ctx, audioPath, segments, task.Settings.MinSpeakers, task.Settings.MaxSpeakers)
	if err != nil {
		log.Warn("diarization failed, continuing without speaker labels", logging.Error(err))
		return segments, 0
	}

	report(tasks.Progress{
		Step:    tasks.StepDiarizing,
		Percent: 85,
		Message: "Assigning speakers to segments...",
	})
	log.Info("diarization finished", logging.Int("speakers", speakers))
	return labeled, speakers
}
