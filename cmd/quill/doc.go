// Command quill is the CLI client for the quill transcription daemon. It
// can also run the daemon in the foreground via "quill serve".
package main
