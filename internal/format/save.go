package format

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quill/internal/fileutil"
)

const resultTimestampLayout = "20060102_150405"

// ResultFilename derives the output filename from the uploaded name:
// "<stem>_transcription_<timestamp>.<format>".
func ResultFilename(originalFilename, outputFormat string, now time.Time) string {
	stem := fileutil.SanitizeFileName(strings.TrimSuffix(filepath.Base(originalFilename), filepath.Ext(originalFilename)))
	return fmt.Sprintf("%s_transcription_%s.%s", stem, now.Format(resultTimestampLayout), outputFormat)
}

// Save renders the result and writes it into resultsDir, returning the full
// path of the written file.
func Save(result *Result, resultsDir, originalFilename, outputFormat string) (string, error) {
	rendered, err := Render(result, outputFormat)
	if err != nil {
		return "", err
	}

	path := filepath.Join(resultsDir, ResultFilename(originalFilename, outputFormat, time.Now()))
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("format: write result %s: %w", filepath.Base(path), err)
	}
	return path, nil
}
