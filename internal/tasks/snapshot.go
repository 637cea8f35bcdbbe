package tasks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const metaSuffix = ".meta.json"

// MetaPath returns the sidecar path for a result file: the result filename
// with ".meta.json" appended.
func MetaPath(resultPath string) string {
	return resultPath + metaSuffix
}

// WriteSnapshot persists a task's sidecar next to its result file. The
// sidecar is the task's JSON projection, pretty-printed, and is what the
// recovery loader reads back at startup.
func WriteSnapshot(task *Task) error {
	if task.ResultPath == "" {
		return fmt.Errorf("snapshot: task %s has no result path", task.ID)
	}
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal task %s: %w", task.ID, err)
	}
	data = append(data, '\n')

	path := MetaPath(task.ResultPath)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("snapshot: finalize %s: %w", path, err)
	}
	return nil
}

// ReadSnapshot loads one sidecar file into a Task.
func ReadSnapshot(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("snapshot: parse %s: %w", filepath.Base(path), err)
	}
	if task.ID == "" {
		return nil, fmt.Errorf("snapshot: %s has no task id", filepath.Base(path))
	}
	return &task, nil
}
