package tasks

import (
	"strings"
	"time"
)

// Status is the coarse lifecycle state of a transcription task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Step is the fine-grained pipeline stage a task is currently in.
type Step string

const (
	StepPending      Step = "pending"
	StepExtracting   Step = "extracting"
	StepPreparing    Step = "preparing"
	StepLoadingModel Step = "loading_model"
	StepTranscribing Step = "transcribing"
	StepDiarizing    Step = "diarizing"
	StepFormatting   Step = "formatting"
	StepComplete     Step = "complete"
	StepError        Step = "error"
)

var stepLabels = map[Step]string{
	StepPending:      "Pending",
	StepExtracting:   "Extracting Audio",
	StepPreparing:    "Preparing",
	StepLoadingModel: "Loading Model",
	StepTranscribing: "Transcribing",
	StepDiarizing:    "Identifying Speakers",
	StepFormatting:   "Formatting",
	StepComplete:     "Complete",
	StepError:        "Error",
}

// Label returns the human-readable name clients show alongside the machine
// step value.
func (s Step) Label() string {
	if label, ok := stepLabels[s]; ok {
		return label
	}
	return string(s)
}

// Settings captures the transcription options chosen at submission. They
// are fixed at creation and never change afterwards.
type Settings struct {
	Model          string `json:"model"`
	Language       string `json:"language"`
	Format         string `json:"format"`
	Diarize        bool   `json:"diarize"`
	MinSpeakers    int    `json:"min_speakers,omitempty"`
	MaxSpeakers    int    `json:"max_speakers,omitempty"`
	WordTimestamps bool   `json:"word_timestamps"`
}

// Task is one transcription request tracked by the registry. Timestamps are
// RFC3339 UTC strings so that persisted records compare lexicographically.
//
// UploadPath is deliberately excluded from every JSON projection: the upload
// is deleted once the pipeline finishes, so the path is meaningless to
// clients and to recovered records.
type Task struct {
	ID       string `json:"task_id"`
	Filename string `json:"filename"`

	UploadPath string `json:"-"`

	Status   Status `json:"status"`
	Step     Step   `json:"step"`
	StepName string `json:"step_name"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`

	// CurrentTime is the estimated playhead position, in seconds, during
	// transcription. Duration is the media length from ffprobe.
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	FileSizeMB  float64 `json:"file_size_mb"`

	SegmentsProcessed int `json:"segments_processed,omitempty"`
	SegmentsTotal     int `json:"segments_total,omitempty"`

	Settings Settings `json:"settings"`

	Language         string `json:"language,omitempty"`
	SpeakersDetected int    `json:"speakers_detected"`
	WordCount        int    `json:"word_count"`

	ResultPath string `json:"result_path,omitempty"`
	Error      string `json:"error,omitempty"`

	CreatedAt   string `json:"created_at"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// Clone returns a deep copy safe to hand outside the registry lock.
func (t *Task) Clone() *Task {
	copied := *t
	return &copied
}

// Timestamp renders a time in the canonical stored form.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// LaterCompletedAt reports whether a beats b when the two carry the same
// task id. Completed-at strings are RFC3339 UTC, so plain string comparison
// orders them chronologically; the empty string always loses.
func LaterCompletedAt(a, b string) bool {
	return strings.Compare(a, b) > 0
}
