package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"quill/internal/logging"
	"quill/internal/pipeline"
	"quill/internal/tasks"
)

// Runner abstracts the pipeline so tests can substitute it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
}

// Scheduler dispatches accepted tasks onto worker goroutines. A semaphore
// bounds how many pipelines run at once; tasks beyond the limit stay
// pending until a slot frees up.
type Scheduler struct {
	registry *tasks.Registry
	runner   Runner
	sem      chan struct{}
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a scheduler with the given concurrency limit.
func New(registry *tasks.Registry, runner Runner, maxConcurrent int, logger *slog.Logger) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		registry: registry,
		runner:   runner,
		sem:      make(chan struct{}, maxConcurrent),
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Dispatch launches the background pipeline for a freshly created task.
// It returns immediately; all outcomes are recorded on the registry.
func (s *Scheduler) Dispatch(task *tasks.Task) {
	s.wg.Add(1)
	go s.process(task)
}

func (s *Scheduler) process(task *tasks.Task) {
	defer s.wg.Done()

	// The upload is consumed by exactly this run. Remove it when the
	// pipeline finishes, whatever the outcome.
	defer func() {
		if task.UploadPath != "" {
			if err := os.Remove(task.UploadPath); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("upload cleanup failed",
					logging.String(logging.FieldTaskID, task.ID),
					logging.Error(err),
				)
			}
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("pipeline panic",
				logging.String(logging.FieldTaskID, task.ID),
				logging.Any("panic", r),
			)
			if _, err := s.registry.MarkFailed(task.ID, fmt.Sprintf("internal error: %v", r)); err != nil {
				s.logger.Error("failed to record panic", logging.Error(err))
			}
		}
	}()

	select {
	case s.sem <- struct{}{}:
	case <-s.ctx.Done():
		s.fail(task.ID, "daemon shutting down")
		return
	}
	defer func() { <-s.sem }()

	if _, err := s.registry.Start(task.ID); err != nil {
		// Deleted while waiting for a slot.
		s.logger.Warn("task vanished before start",
			logging.String(logging.FieldTaskID, task.ID),
			logging.Error(err),
		)
		return
	}

	outcome, err := s.runner.Run(s.ctx, pipeline.Request{
		Task: task,
		Report: func(p tasks.Progress) {
			if _, perr := s.registry.ApplyProgress(task.ID, p); perr != nil {
				s.logger.Debug("progress dropped", logging.String(logging.FieldTaskID, task.ID))
			}
		},
		SetDuration: func(seconds float64) {
			if _, derr := s.registry.SetDuration(task.ID, seconds); derr != nil {
				s.logger.Debug("duration dropped", logging.String(logging.FieldTaskID, task.ID))
			}
		},
	})
	if err != nil {
		s.fail(task.ID, err.Error())
		return
	}

	snapshot, err := s.registry.MarkCompleted(task.ID, tasks.Completion{
		ResultPath:       outcome.ResultPath,
		Language:         outcome.Language,
		SpeakersDetected: outcome.SpeakersDetected,
		WordCount:        outcome.WordCount,
	})
	if err != nil {
		// The task was deleted mid-run; without a record the result file
		// is unreachable, so remove it rather than orphan it on disk.
		s.logger.Warn("completion lost, discarding result",
			logging.String(logging.FieldTaskID, task.ID),
			logging.Error(err),
		)
		if rerr := os.Remove(outcome.ResultPath); rerr != nil && !os.IsNotExist(rerr) {
			s.logger.Error("orphaned result cleanup failed",
				logging.String(logging.FieldTaskID, task.ID),
				logging.Error(rerr),
			)
		}
		return
	}

	if err := tasks.WriteSnapshot(snapshot); err != nil {
		s.logger.Error("sidecar write failed",
			logging.String(logging.FieldTaskID, task.ID),
			logging.Error(err),
		)
	}
}

func (s *Scheduler) fail(id, message string) {
	if _, err := s.registry.MarkFailed(id, message); err != nil {
		s.logger.Warn("failure not recorded",
			logging.String(logging.FieldTaskID, id),
			logging.Error(err),
		)
	}
}

// Shutdown stops admitting new work and waits for running pipelines, up to
// the context deadline.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}
