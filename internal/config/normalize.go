package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscribe()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if c.Paths.ResultsDir, err = expandPath(c.Paths.ResultsDir); err != nil {
		return fmt.Errorf("paths.results_dir: %w", err)
	}
	if c.Paths.ModelsDir, err = expandPath(c.Paths.ModelsDir); err != nil {
		return fmt.Errorf("paths.models_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeTranscribe() {
	if c.Transcribe.HFToken == "" {
		if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Transcribe.HFToken = value
		}
	}
	c.Transcribe.DefaultModel = strings.TrimSpace(c.Transcribe.DefaultModel)
	if c.Transcribe.DefaultModel == "" {
		c.Transcribe.DefaultModel = defaultModel
	}
	c.Transcribe.Device = strings.ToLower(strings.TrimSpace(c.Transcribe.Device))
	if c.Transcribe.Device == "" {
		c.Transcribe.Device = defaultDevice
	}
	if strings.TrimSpace(c.Transcribe.FFmpegBinary) == "" {
		c.Transcribe.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Transcribe.FFprobeBinary) == "" {
		c.Transcribe.FFprobeBinary = defaultFFprobeBinary
	}
	if strings.TrimSpace(c.Transcribe.UVXBinary) == "" {
		c.Transcribe.UVXBinary = defaultUVXBinary
	}
	if strings.TrimSpace(c.Transcribe.WhisperCLI) == "" {
		c.Transcribe.WhisperCLI = defaultWhisperCLI
	}
	if c.Transcribe.MaxConcurrent <= 0 {
		c.Transcribe.MaxConcurrent = defaultMaxConcurrent
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.ProgressIntervalSeconds <= 0 {
		c.Workflow.ProgressIntervalSeconds = defaultProgressIntervalSeconds
	}
	if c.Workflow.WSKeepaliveSeconds <= 0 {
		c.Workflow.WSKeepaliveSeconds = defaultWSKeepaliveSeconds
	}
	if c.Workflow.MaxUploadMB <= 0 {
		c.Workflow.MaxUploadMB = defaultMaxUploadMB
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
