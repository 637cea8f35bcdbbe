// Package asr selects and drives speech-to-text backends. WhisperX (via
// uvx) covers CUDA and CPU hosts, whisper.cpp covers Apple Metal, and a
// pyannote pipeline or silence-gap heuristic supplies speaker diarization.
package asr
