package tasks

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"quill/internal/logging"
)

// Recover scans the results directory for sidecar files and restores their
// tasks into the registry. A sidecar whose result file has gone missing is
// an orphan and is skipped; when two sidecars claim the same task id the
// one with the later completed_at wins. Returns the number of restored
// tasks.
func Recover(registry *Registry, resultsDir string, logger *slog.Logger) (int, error) {
	log := logging.NewComponentLogger(logger, "recovery")

	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	// A duplicate id accepted twice is still one restored task.
	seen := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metaSuffix) {
			continue
		}
		metaPath := filepath.Join(resultsDir, entry.Name())

		task, err := ReadSnapshot(metaPath)
		if err != nil {
			log.Warn("skipping unreadable sidecar",
				logging.String("path", entry.Name()),
				logging.Error(err),
			)
			continue
		}

		resultPath := strings.TrimSuffix(metaPath, metaSuffix)
		if _, statErr := os.Stat(resultPath); statErr != nil {
			log.Warn("skipping orphaned sidecar, result file missing",
				logging.String(logging.FieldTaskID, task.ID),
				logging.String("result", filepath.Base(resultPath)),
			)
			continue
		}

		// The sidecar may have been written before a rename; trust the
		// file actually found on disk.
		task.ResultPath = resultPath

		if registry.Restore(task) {
			seen[task.ID] = struct{}{}
		}
	}

	restored := len(seen)
	if restored > 0 {
		log.Info("restored completed tasks from disk", logging.Int("count", restored))
	}
	return restored, nil
}

// countSidecars is a test helper hook kept close to the scan logic.
func countSidecars(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), metaSuffix) {
			count++
		}
		return nil
	})
	return count, err
}
