// Package media wraps the external ffmpeg/ffprobe tools: container
// inspection, audio extraction, and the upload extension allow-lists.
package media
