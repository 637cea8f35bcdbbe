package catalog

// ModelInfo describes a Whisper model variant exposed to clients.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DefaultModel is used when a request omits the model field.
const DefaultModel = "base"

var models = []ModelInfo{
	{ID: "tiny", Name: "Tiny", Description: "Fastest, lowest accuracy (~1GB RAM)"},
	{ID: "base", Name: "Base", Description: "Good balance of speed/accuracy (~1GB RAM)"},
	{ID: "small", Name: "Small", Description: "Better accuracy, slower (~2GB RAM)"},
	{ID: "medium", Name: "Medium", Description: "High accuracy, requires more RAM (~5GB RAM)"},
	{ID: "large-v3", Name: "Large V3", Description: "Best accuracy, slow (~10GB RAM)"},
}

var modelSet = func() map[string]ModelInfo {
	set := make(map[string]ModelInfo, len(models))
	for _, m := range models {
		set[m.ID] = m
	}
	return set
}()

// Models returns the ordered list of known models.
func Models() []ModelInfo {
	cp := make([]ModelInfo, len(models))
	copy(cp, models)
	return cp
}

// IsModel reports whether id names a known model.
func IsModel(id string) bool {
	_, ok := modelSet[id]
	return ok
}
