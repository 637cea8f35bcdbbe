// Package pipeline runs the transcription stages for a single task: probe,
// audio extraction, model load, inference with estimated progress, optional
// diarization, and result formatting.
package pipeline
