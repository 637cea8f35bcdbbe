package asr

import (
	"log/slog"
	"os/exec"
	"runtime"
	"sync"

	"quill/internal/logging"
)

// Probes report whether a backend's dependency is available on this host.
// They are overridable for tests.
type Probes struct {
	Metal func() bool
	CUDA  func() bool
}

// Options configures backend resolution.
type Options struct {
	// Device forces a backend (cpu, cuda, metal); "auto" probes in priority order.
	Device      string
	ComputeType string
	ModelsDir   string
	UVXBinary   string
	WhisperCLI  string
	FFmpeg      string
	HFToken     string
}

// Resolver picks the transcription backend once per process lifetime.
// The decision is cached and never re-probed.
type Resolver struct {
	opts   Options
	probes Probes
	logger *slog.Logger

	once    sync.Once
	backend Backend
}

// NewResolver builds a resolver with default host probes.
func NewResolver(opts Options, logger *slog.Logger) *Resolver {
	return &Resolver{
		opts: opts,
		probes: Probes{
			Metal: func() bool { return probeMetal(opts.WhisperCLI) },
			CUDA:  probeCUDA,
		},
		logger: logging.NewComponentLogger(logger, "asr"),
	}
}

// NewResolverWithProbes builds a resolver with custom probes (used in tests).
func NewResolverWithProbes(opts Options, probes Probes, logger *slog.Logger) *Resolver {
	r := NewResolver(opts, logger)
	if probes.Metal != nil {
		r.probes.Metal = probes.Metal
	}
	if probes.CUDA != nil {
		r.probes.CUDA = probes.CUDA
	}
	return r
}

// Resolve returns the active backend, probing on first call.
func (r *Resolver) Resolve() Backend {
	r.once.Do(func() {
		r.backend = r.selectBackend()
		r.logger.Info("transcription backend selected",
			logging.String("backend", r.backend.Name()),
			logging.Float64("realtime_factor", r.backend.RealtimeFactor()),
		)
	})
	return r.backend
}

// Diarizer returns the pyannote diarizer when a HuggingFace token is
// configured, and the silence-gap heuristic otherwise.
func (r *Resolver) Diarizer() Diarizer {
	backend := r.Resolve()
	if d := NewPyannoteDiarizer(r.opts, backend.Name() == "cuda"); d != nil {
		return d
	}
	return NewGapDiarizer(0)
}

func (r *Resolver) selectBackend() Backend {
	switch r.opts.Device {
	case "metal":
		if r.probes.Metal() {
			return newWhisperCPPBackend(r.opts)
		}
		r.logger.Warn("metal requested but whisper-cli unavailable, falling back")
	case "cuda":
		if r.probes.CUDA() {
			return newWhisperXBackend(r.opts, true)
		}
		r.logger.Warn("cuda requested but no NVIDIA GPU detected, falling back")
	case "cpu":
		return newWhisperXBackend(r.opts, false)
	}

	// auto: probe in priority order.
	if r.probes.Metal() {
		return newWhisperCPPBackend(r.opts)
	}
	if r.probes.CUDA() {
		return newWhisperXBackend(r.opts, true)
	}
	return newWhisperXBackend(r.opts, false)
}

func probeMetal(whisperCLI string) bool {
	if runtime.GOOS != "darwin" || runtime.GOARCH != "arm64" {
		return false
	}
	if whisperCLI == "" {
		whisperCLI = "whisper-cli"
	}
	_, err := exec.LookPath(whisperCLI)
	return err == nil
}

func probeCUDA() bool {
	path, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return false
	}
	return exec.Command(path, "-L").Run() == nil
}
