package config

import (
	"errors"
	"fmt"
)

var validDevices = map[string]struct{}{
	"auto":  {},
	"cpu":   {},
	"cuda":  {},
	"metal": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Paths.UploadDir == "" {
		return errors.New("paths.upload_dir must be set")
	}
	if c.Paths.ResultsDir == "" {
		return errors.New("paths.results_dir must be set")
	}
	if _, ok := validDevices[c.Transcribe.Device]; !ok {
		return fmt.Errorf("transcribe.device must be one of auto, cpu, cuda, metal (got %q)", c.Transcribe.Device)
	}
	if c.Transcribe.MaxConcurrent < 1 {
		return errors.New("transcribe.max_concurrent must be at least 1")
	}
	if c.Workflow.MaxUploadMB < 1 {
		return errors.New("workflow.max_upload_mb must be at least 1")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	return nil
}
