// Package catalog holds the fixed registries a transcription request is
// validated against: Whisper model variants, output formats, and the
// supported language code table.
package catalog
