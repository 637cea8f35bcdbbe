package catalog

// DefaultFormat is used when a request omits the output format field.
const DefaultFormat = "txt"

var formats = []string{"txt", "srt", "vtt", "json", "tsv"}

var formatSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(formats))
	for _, f := range formats {
		set[f] = struct{}{}
	}
	return set
}()

// Formats returns the ordered list of supported output formats.
func Formats() []string {
	cp := make([]string, len(formats))
	copy(cp, formats)
	return cp
}

// IsFormat reports whether name is a supported output format.
func IsFormat(name string) bool {
	_, ok := formatSet[name]
	return ok
}
