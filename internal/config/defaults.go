package config

const (
	defaultUploadDir  = "~/.local/share/quill/uploads"
	defaultResultsDir = "~/.local/share/quill/results"
	defaultModelsDir  = "~/.local/share/quill/models"
	defaultLogDir     = "~/.local/share/quill/logs"
	defaultAPIBind    = "127.0.0.1:8923"

	defaultModel         = "base"
	defaultDevice        = "auto"
	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultUVXBinary     = "uvx"
	defaultWhisperCLI    = "whisper-cli"
	defaultMaxConcurrent = 2

	defaultProgressIntervalSeconds = 2
	defaultWSKeepaliveSeconds      = 30
	defaultMaxUploadMB             = 500

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadDir:  defaultUploadDir,
			ResultsDir: defaultResultsDir,
			ModelsDir:  defaultModelsDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Transcribe: Transcribe{
			DefaultModel:  defaultModel,
			Device:        defaultDevice,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			UVXBinary:     defaultUVXBinary,
			WhisperCLI:    defaultWhisperCLI,
			MaxConcurrent: defaultMaxConcurrent,
		},
		Workflow: Workflow{
			ProgressIntervalSeconds: defaultProgressIntervalSeconds,
			WSKeepaliveSeconds:      defaultWSKeepaliveSeconds,
			MaxUploadMB:             defaultMaxUploadMB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
