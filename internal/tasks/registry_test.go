package tasks

import (
	"errors"
	"testing"

	"quill/internal/logging"
	"quill/internal/services"
)

func newTestRegistry() *Registry {
	return NewRegistry(logging.NewNop())
}

func TestCreateInitialState(t *testing.T) {
	registry := newTestRegistry()

	task := registry.Create("talk.mp4", "/tmp/uploads/talk.mp4", 0.4, Settings{
		Model:  "base",
		Format: "srt",
	})

	if task.Status != StatusPending {
		t.Errorf("status = %s, want %s", task.Status, StatusPending)
	}
	if task.Step != StepPending {
		t.Errorf("step = %s, want %s", task.Step, StepPending)
	}
	if task.Progress != 0 {
		t.Errorf("progress = %d, want 0", task.Progress)
	}
	if len(task.ID) != 8 {
		t.Errorf("task id %q should be 8 characters", task.ID)
	}
	if task.CreatedAt == "" {
		t.Error("created_at should be stamped")
	}
	if task.StartedAt != "" || task.CompletedAt != "" {
		t.Error("started_at and completed_at should be empty at creation")
	}
}

func TestTaskCarriesSizeStepNameAndSegments(t *testing.T) {
	registry := newTestRegistry()

	task := registry.Create("a.wav", "/tmp/a.wav", 12.3456, Settings{Model: "base", Format: "txt"})
	if task.FileSizeMB != 12.35 {
		t.Errorf("file_size_mb = %v, want 12.35", task.FileSizeMB)
	}
	if task.StepName != "Pending" {
		t.Errorf("step_name = %q, want Pending", task.StepName)
	}

	if _, err := registry.Start(task.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap, err := registry.ApplyProgress(task.ID, Progress{
		Step:          StepTranscribing,
		Percent:       40,
		SegmentsTotal: 12,
	})
	if err != nil {
		t.Fatalf("ApplyProgress: %v", err)
	}
	if snap.StepName != "Transcribing" {
		t.Errorf("step_name = %q, want Transcribing", snap.StepName)
	}
	if snap.SegmentsTotal != 12 {
		t.Errorf("segments_total = %d, want 12", snap.SegmentsTotal)
	}

	done, err := registry.MarkCompleted(task.ID, Completion{ResultPath: "/results/a.txt"})
	if err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if done.StepName != "Complete" {
		t.Errorf("step_name = %q, want Complete", done.StepName)
	}
	if done.FileSizeMB != 12.35 {
		t.Errorf("file_size_mb lost across completion: %v", done.FileSizeMB)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	registry := newTestRegistry()
	created := registry.Create("a.wav", "/tmp/a.wav", 0.4, Settings{Model: "base", Format: "txt"})

	got, err := registry.Get(created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got.Progress = 99

	again, err := registry.Get(created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Progress != 0 {
		t.Errorf("mutating a returned snapshot leaked into the registry (progress=%d)", again.Progress)
	}
}

func TestGetUnknownTask(t *testing.T) {
	registry := newTestRegistry()
	if _, err := registry.Get("deadbeef"); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Get unknown = %v, want ErrNotFound", err)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	registry := newTestRegistry()
	task := registry.Create("a.wav", "/tmp/a.wav", 0.4, Settings{Model: "base", Format: "txt"})

	if _, err := registry.ApplyProgress(task.ID, Progress{Step: StepTranscribing, Percent: 40}); err != nil {
		t.Fatalf("ApplyProgress: %v", err)
	}
	got, err := registry.ApplyProgress(task.ID, Progress{Step: StepTranscribing, Percent: 25})
	if err != nil {
		t.Fatalf("ApplyProgress: %v", err)
	}
	if got.Progress != 40 {
		t.Errorf("progress regressed to %d, want 40", got.Progress)
	}

	got, err = registry.ApplyProgress(task.ID, Progress{Step: StepDiarizing, Percent: 75, CurrentTime: 120.5})
	if err != nil {
		t.Fatalf("ApplyProgress: %v", err)
	}
	if got.Progress != 75 || got.Step != StepDiarizing || got.CurrentTime != 120.5 {
		t.Errorf("got progress=%d step=%s current_time=%v", got.Progress, got.Step, got.CurrentTime)
	}
}

func TestTerminalTasksIgnoreLateProgress(t *testing.T) {
	registry := newTestRegistry()
	task := registry.Create("a.wav", "/tmp/a.wav", 0.4, Settings{Model: "base", Format: "txt"})

	if _, err := registry.MarkCompleted(task.ID, Completion{ResultPath: "/results/a.txt", WordCount: 12}); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	got, err := registry.ApplyProgress(task.ID, Progress{Step: StepTranscribing, Percent: 50})
	if err != nil {
		t.Fatalf("ApplyProgress: %v", err)
	}
	if got.Status != StatusCompleted || got.Step != StepComplete || got.Progress != 100 {
		t.Errorf("terminal record disturbed: status=%s step=%s progress=%d", got.Status, got.Step, got.Progress)
	}

	// A second terminal transition must not overwrite the first.
	got, err = registry.MarkFailed(task.ID, "late failure")
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if got.Status != StatusCompleted || got.Error != "" {
		t.Errorf("completed task flipped to failed: status=%s error=%q", got.Status, got.Error)
	}
}

func TestMarkCompletedInvariants(t *testing.T) {
	registry := newTestRegistry()
	task := registry.Create("a.wav", "/tmp/a.wav", 0.4, Settings{Model: "base", Format: "txt"})

	got, err := registry.MarkCompleted(task.ID, Completion{
		ResultPath:       "/results/a_transcription_20260829_101500.txt",
		Language:         "en",
		SpeakersDetected: 2,
		WordCount:        340,
	})
	if err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if got.Status != StatusCompleted || got.Step != StepComplete {
		t.Errorf("status=%s step=%s", got.Status, got.Step)
	}
	if got.Progress != 100 {
		t.Errorf("progress = %d, want 100", got.Progress)
	}
	if got.ResultPath == "" || got.Error != "" {
		t.Errorf("completed task must carry result_path and no error: %q / %q", got.ResultPath, got.Error)
	}
	if got.CompletedAt == "" {
		t.Error("completed_at should be stamped")
	}
}

func TestMarkFailedInvariants(t *testing.T) {
	registry := newTestRegistry()
	task := registry.Create("a.wav", "/tmp/a.wav", 0.4, Settings{Model: "base", Format: "txt"})
	if _, err := registry.ApplyProgress(task.ID, Progress{Step: StepTranscribing, Percent: 35}); err != nil {
		t.Fatalf("ApplyProgress: %v", err)
	}

	got, err := registry.MarkFailed(task.ID, "ffmpeg exited with status 1")
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if got.Status != StatusFailed || got.Step != StepError {
		t.Errorf("status=%s step=%s", got.Status, got.Step)
	}
	if got.Error == "" || got.ResultPath != "" {
		t.Errorf("failed task must carry error and no result_path: %q / %q", got.Error, got.ResultPath)
	}
	if got.Progress != 35 {
		t.Errorf("failure should freeze progress at 35, got %d", got.Progress)
	}
}

func TestDelete(t *testing.T) {
	registry := newTestRegistry()
	task := registry.Create("a.wav", "/tmp/a.wav", 0.4, Settings{Model: "base", Format: "txt"})

	removed, err := registry.Delete(task.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed.ID != task.ID {
		t.Errorf("removed id = %s, want %s", removed.ID, task.ID)
	}
	if _, err := registry.Get(task.ID); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if _, err := registry.Delete(task.ID); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}
}

func TestObserverSeesEveryMutation(t *testing.T) {
	registry := newTestRegistry()

	var snapshots []*Task
	registry.SetObserver(ObserverFunc(func(task *Task) {
		snapshots = append(snapshots, task)
	}))

	task := registry.Create("a.wav", "/tmp/a.wav", 0.4, Settings{Model: "base", Format: "txt"})
	if _, err := registry.Start(task.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := registry.ApplyProgress(task.ID, Progress{Step: StepExtracting, Percent: 5}); err != nil {
		t.Fatalf("ApplyProgress: %v", err)
	}
	if _, err := registry.MarkCompleted(task.ID, Completion{ResultPath: "/results/a.txt"}); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	// Late event against a terminal task must not reach the observer.
	if _, err := registry.ApplyProgress(task.ID, Progress{Percent: 10}); err != nil {
		t.Fatalf("ApplyProgress: %v", err)
	}

	if len(snapshots) != 4 {
		t.Fatalf("observer saw %d snapshots, want 4", len(snapshots))
	}
	wantStatus := []Status{StatusPending, StatusProcessing, StatusProcessing, StatusCompleted}
	for i, want := range wantStatus {
		if snapshots[i].Status != want {
			t.Errorf("snapshot %d status = %s, want %s", i, snapshots[i].Status, want)
		}
	}
}

func TestListNewestFirst(t *testing.T) {
	registry := newTestRegistry()
	registry.Create("one.wav", "/tmp/one.wav", 0.4, Settings{Model: "base", Format: "txt"})
	registry.Create("two.wav", "/tmp/two.wav", 0.4, Settings{Model: "base", Format: "txt"})
	registry.Create("three.wav", "/tmp/three.wav", 0.4, Settings{Model: "base", Format: "txt"})

	list := registry.List()
	if len(list) != 3 {
		t.Fatalf("List returned %d tasks, want 3", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].CreatedAt < list[i].CreatedAt {
			t.Errorf("list not newest-first at index %d", i)
		}
	}
}

func TestRestorePrefersLaterCompletion(t *testing.T) {
	registry := newTestRegistry()

	older := &Task{ID: "abcd1234", Status: StatusCompleted, Step: StepComplete, Progress: 100,
		ResultPath: "/results/old.txt", CompletedAt: "2026-08-28T10:00:00Z"}
	newer := &Task{ID: "abcd1234", Status: StatusCompleted, Step: StepComplete, Progress: 100,
		ResultPath: "/results/new.txt", CompletedAt: "2026-08-29T09:30:00Z"}

	if !registry.Restore(older) {
		t.Fatal("first restore should be accepted")
	}
	if !registry.Restore(newer) {
		t.Fatal("later completion should replace the earlier record")
	}
	if registry.Restore(older) {
		t.Fatal("earlier completion must not replace a later one")
	}

	got, err := registry.Get("abcd1234")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ResultPath != "/results/new.txt" {
		t.Errorf("result_path = %s, want the later record's path", got.ResultPath)
	}
}
