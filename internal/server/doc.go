// Package server exposes the daemon's HTTP API: upload submission, task
// status and results, catalog listings, and per-task WebSocket progress
// streams.
package server
