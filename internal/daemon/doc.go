// Package daemon assembles the transcription service: task registry,
// scheduler, pipeline, and the HTTP/WebSocket API, guarded by a
// single-instance lock file.
package daemon
