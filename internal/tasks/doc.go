// Package tasks holds the in-memory transcription task registry and its
// disk persistence. Every task mutation flows through the Registry, which
// enforces monotonic progress and terminal-state immutability and fans the
// resulting snapshot out to an observer. Completed tasks are mirrored to
// JSON sidecar files beside their results and restored at startup.
package tasks
