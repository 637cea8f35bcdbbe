package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"quill/internal/config"
)

// Requirement defines an external tool the transcription pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the configured pipeline will execute.
// Accelerator tools are optional: their absence only narrows backend
// selection.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Transcribe.FFmpegBinary,
			Description: "Audio extraction from video uploads",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Transcribe.FFprobeBinary,
			Description: "Media duration probing",
		},
		{
			Name:        "uvx",
			Command:     cfg.Transcribe.UVXBinary,
			Description: "WhisperX launcher for CPU/CUDA transcription",
		},
		{
			Name:        "whisper-cli",
			Command:     cfg.Transcribe.WhisperCLI,
			Description: "whisper.cpp binary for Metal transcription",
			Optional:    true,
		},
		{
			Name:        "nvidia-smi",
			Command:     "nvidia-smi",
			Description: "CUDA GPU detection",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional dependencies.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
