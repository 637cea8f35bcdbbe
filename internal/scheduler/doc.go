// Package scheduler runs accepted transcription tasks in the background,
// bounding pipeline concurrency and translating pipeline outcomes into
// terminal registry transitions.
package scheduler
