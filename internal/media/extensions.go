package media

import (
	"path/filepath"
	"strings"
)

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".mkv":  {},
	".webm": {},
	".m4v":  {},
}

var audioExtensions = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".flac": {},
	".ogg":  {},
	".m4a":  {},
	".aac":  {},
}

// IsVideo reports whether the filename carries a supported video extension.
func IsVideo(filename string) bool {
	_, ok := videoExtensions[normalizeExt(filename)]
	return ok
}

// IsSupported reports whether the filename carries any supported extension.
func IsSupported(filename string) bool {
	ext := normalizeExt(filename)
	if _, ok := videoExtensions[ext]; ok {
		return true
	}
	_, ok := audioExtensions[ext]
	return ok
}

func normalizeExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
