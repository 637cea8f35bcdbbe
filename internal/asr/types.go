package asr

// Word represents a single word with timing.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment represents one transcribed span of audio.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
	Words   []Word  `json:"words,omitempty"`
}

// Info carries metadata reported by the backend alongside the segments.
type Info struct {
	Language string
}

// Turn is a diarization span attributing a time range to one speaker.
type Turn struct {
	Start   float64
	End     float64
	Speaker string
}
