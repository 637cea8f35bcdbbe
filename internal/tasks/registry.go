package tasks

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quill/internal/logging"
	"quill/internal/services"
)

// Registry is the in-memory table of transcription tasks. It is the single
// writer of task state: the HTTP layer and the pipeline both go through it,
// and every mutation is pushed to the configured observer.
type Registry struct {
	mu       sync.RWMutex
	tasks    map[string]*Task
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tasks:  make(map[string]*Task),
		logger: logging.NewComponentLogger(logger, "registry"),
		now:    time.Now,
	}
}

// SetObserver installs the mutation hook. Pass nil to detach. Must be
// called before the registry is shared across goroutines.
func (r *Registry) SetObserver(o Observer) {
	r.mu.Lock()
	r.observer = o
	r.mu.Unlock()
}

// Create registers a new pending task and returns its snapshot. sizeMB is
// the uploaded file size, stored rounded to two decimals.
func (r *Registry) Create(filename, uploadPath string, sizeMB float64, settings Settings) *Task {
	task := &Task{
		ID:         newTaskID(),
		Filename:   filename,
		UploadPath: uploadPath,
		Status:     StatusPending,
		Step:       StepPending,
		StepName:   StepPending.Label(),
		Progress:   0,
		FileSizeMB: math.Round(sizeMB*100) / 100,
		Settings:   settings,
		CreatedAt:  Timestamp(r.now()),
	}

	r.mu.Lock()
	r.tasks[task.ID] = task
	snapshot := task.Clone()
	observer := r.observer
	r.mu.Unlock()

	r.logger.Info("task created",
		logging.String(logging.FieldTaskID, task.ID),
		logging.String("filename", filename),
		logging.String("model", settings.Model),
		logging.String("format", settings.Format),
		logging.Bool("diarize", settings.Diarize),
	)
	notify(observer, snapshot)
	return snapshot
}

// Get returns a copy of the task, or a not-found error.
func (r *Registry) Get(id string) (*Task, error) {
	r.mu.RLock()
	task, ok := r.tasks[id]
	var snapshot *Task
	if ok {
		snapshot = task.Clone()
	}
	r.mu.RUnlock()

	if !ok {
		return nil, notFound(id)
	}
	return snapshot, nil
}

// List returns copies of all tasks, newest first.
func (r *Registry) List() []*Task {
	r.mu.RLock()
	snapshots := make([]*Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		snapshots = append(snapshots, task.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].CreatedAt != snapshots[j].CreatedAt {
			return snapshots[i].CreatedAt > snapshots[j].CreatedAt
		}
		return snapshots[i].ID > snapshots[j].ID
	})
	return snapshots
}

// Start moves a pending task into processing and stamps started_at.
// Terminal tasks are left untouched.
func (r *Registry) Start(id string) (*Task, error) {
	return r.mutate(id, func(task *Task) {
		task.Status = StatusProcessing
		task.StartedAt = Timestamp(r.now())
	})
}

// SetDuration records the probed media duration in seconds.
func (r *Registry) SetDuration(id string, seconds float64) (*Task, error) {
	return r.mutate(id, func(task *Task) {
		task.Duration = seconds
	})
}

// ApplyProgress advances a task's step, progress and playhead. Progress is
// monotonic: a report below the last recorded value keeps the recorded one.
// Reports against terminal tasks are dropped so late pipeline events cannot
// disturb a finished record.
func (r *Registry) ApplyProgress(id string, p Progress) (*Task, error) {
	return r.mutate(id, func(task *Task) {
		if p.Step != "" {
			task.Step = p.Step
			task.StepName = p.Step.Label()
		}
		if p.Percent > task.Progress {
			task.Progress = p.Percent
		}
		if p.Message != "" {
			task.Message = p.Message
		}
		if p.CurrentTime > 0 {
			task.CurrentTime = p.CurrentTime
		}
		if p.SegmentsProcessed > 0 {
			task.SegmentsProcessed = p.SegmentsProcessed
		}
		if p.SegmentsTotal > 0 {
			task.SegmentsTotal = p.SegmentsTotal
		}
	})
}

// Completion carries the final metadata written alongside a successful
// transition to completed.
type Completion struct {
	ResultPath       string
	Language         string
	SpeakersDetected int
	WordCount        int
}

// MarkCompleted finalizes a task: completed/complete/100, result path set,
// completed_at stamped.
func (r *Registry) MarkCompleted(id string, c Completion) (*Task, error) {
	snapshot, err := r.mutate(id, func(task *Task) {
		task.Status = StatusCompleted
		task.Step = StepComplete
		task.StepName = StepComplete.Label()
		task.Progress = 100
		task.Message = ""
		task.ResultPath = c.ResultPath
		task.Language = c.Language
		task.SpeakersDetected = c.SpeakersDetected
		task.WordCount = c.WordCount
		task.Error = ""
		task.CompletedAt = Timestamp(r.now())
	})
	if err == nil {
		r.logger.Info("task completed",
			logging.String(logging.FieldTaskID, id),
			logging.String("result_path", c.ResultPath),
			logging.Int("word_count", c.WordCount),
		)
	}
	return snapshot, err
}

// MarkFailed finalizes a task with an error message. Progress is frozen at
// its last value and no result path is recorded.
func (r *Registry) MarkFailed(id, message string) (*Task, error) {
	snapshot, err := r.mutate(id, func(task *Task) {
		task.Status = StatusFailed
		task.Step = StepError
		task.StepName = StepError.Label()
		task.Message = ""
		task.ResultPath = ""
		task.Error = message
		task.CompletedAt = Timestamp(r.now())
	})
	if err == nil {
		r.logger.Warn("task failed",
			logging.String(logging.FieldTaskID, id),
			logging.String("error", message),
		)
	}
	return snapshot, err
}

// Delete removes a task and returns its last snapshot.
func (r *Registry) Delete(id string) (*Task, error) {
	r.mu.Lock()
	task, ok := r.tasks[id]
	var snapshot *Task
	if ok {
		snapshot = task.Clone()
		delete(r.tasks, id)
	}
	r.mu.Unlock()

	if !ok {
		return nil, notFound(id)
	}
	r.logger.Info("task deleted", logging.String(logging.FieldTaskID, id))
	return snapshot, nil
}

// Restore inserts a task recovered from disk. When the id is already
// present, the record with the later completed_at wins; ties keep the
// existing record.
func (r *Registry) Restore(task *Task) bool {
	r.mu.Lock()
	existing, ok := r.tasks[task.ID]
	if ok && !LaterCompletedAt(task.CompletedAt, existing.CompletedAt) {
		r.mu.Unlock()
		return false
	}
	r.tasks[task.ID] = task.Clone()
	r.mu.Unlock()
	return true
}

// mutate applies fn to the task under the write lock. Tasks already in a
// terminal status are left untouched and their frozen snapshot is returned
// without notifying the observer.
func (r *Registry) mutate(id string, fn func(*Task)) (*Task, error) {
	r.mu.Lock()
	task, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return nil, notFound(id)
	}
	applied := !task.Status.Terminal()
	if applied {
		fn(task)
	}
	snapshot := task.Clone()
	observer := r.observer
	r.mu.Unlock()

	if applied {
		notify(observer, snapshot)
	}
	return snapshot, nil
}

func notify(observer Observer, snapshot *Task) {
	if observer != nil {
		observer.TaskUpdated(snapshot)
	}
}

func notFound(id string) error {
	return services.Wrap(services.ErrNotFound, "registry", "lookup", fmt.Sprintf("task %s", id), nil)
}

// newTaskID returns a short hex id, the first 8 characters of a UUID with
// hyphens stripped.
func newTaskID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
