package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"quill/internal/asr"
	"quill/internal/config"
	"quill/internal/deps"
	"quill/internal/logging"
	"quill/internal/pipeline"
	"quill/internal/scheduler"
	"quill/internal/server"
	"quill/internal/tasks"
)

// Daemon owns the long-running services and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *tasks.Registry
	resolver *asr.Resolver
	sched    *scheduler.Scheduler
	api      *server.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New wires the daemon's services from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}

	registry := tasks.NewRegistry(logger)
	resolver := asr.NewResolver(asr.Options{
		Device:      cfg.Transcribe.Device,
		ComputeType: cfg.Transcribe.ComputeType,
		ModelsDir:   cfg.Paths.ModelsDir,
		UVXBinary:   cfg.Transcribe.UVXBinary,
		WhisperCLI:  cfg.Transcribe.WhisperCLI,
		FFmpeg:      cfg.Transcribe.FFmpegBinary,
		HFToken:     cfg.Transcribe.HFToken,
	}, logger)

	runner := pipeline.NewRunner(cfg, resolver, logger)
	sched := scheduler.New(registry, runner, cfg.Transcribe.MaxConcurrent, logger)
	api := server.New(cfg, registry, sched, resolver, logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "quilld.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		registry: registry,
		resolver: resolver,
		sched:    sched,
		api:      api,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, restores completed tasks from disk and
// begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another quill daemon instance is already running")
	}

	statuses := deps.CheckBinaries(deps.Requirements(d.cfg))
	for _, status := range statuses {
		if !status.Available {
			level := d.logger.Warn
			if status.Optional {
				level = d.logger.Debug
			}
			level("dependency unavailable",
				logging.String("name", status.Name),
				logging.String("detail", status.Detail),
			)
		}
	}
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		d.logger.Warn("required tools missing, tasks will fail until installed",
			logging.Any("missing", missing),
		)
	}

	restored, err := tasks.Recover(d.registry, d.cfg.Paths.ResultsDir, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover tasks: %w", err)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("quill daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("restored_tasks", restored),
		logging.String("backend", d.resolver.Resolve().Name()),
	)
	return nil
}

// Stop drains running pipelines, stops the API and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.Stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.sched.Shutdown(drainCtx); err != nil {
		d.logger.Warn("pipelines did not drain before deadline", logging.Error(err))
	}

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("quill daemon stopped")
}

// Addr returns the bound API address once started.
func (d *Daemon) Addr() string {
	return d.api.Addr()
}

// Running reports whether Start has succeeded and Stop has not yet run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}
