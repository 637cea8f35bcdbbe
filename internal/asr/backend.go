package asr

import (
	"context"
	"fmt"
	"sync"
)

// Backend is an opaque transcription capability. Implementations wrap one
// inference tool/accelerator combination and are assumed safe for concurrent
// Transcribe calls on a loaded model.
type Backend interface {
	// Name identifies the backend (metal, cuda, cpu).
	Name() string
	// RealtimeFactor is the assumed transcription throughput relative to the
	// audio's real duration. Rough placeholder, not a calibrated contract.
	RealtimeFactor() float64
	// LoadModel prepares the named model for inference.
	LoadModel(ctx context.Context, model string) (*Model, error)
	// Transcribe runs inference over a mono 16kHz WAV file. Pass an empty
	// language to auto-detect. wordTimestamps requests per-word timing, needed
	// for speaker assignment.
	Transcribe(ctx context.Context, model *Model, audioPath, language string, wordTimestamps bool) ([]Segment, Info, error)
}

// Model is a loaded (backend, model-name) handle.
type Model struct {
	Backend string
	Name    string

	// handle carries backend-specific state, e.g. a resolved weights path.
	handle any
}

// ModelCache keeps loaded models for the process lifetime. Load time dominates
// short jobs, so entries are never evicted.
type ModelCache struct {
	mu     sync.Mutex
	loaded map[string]*Model
}

// NewModelCache creates an empty cache.
func NewModelCache() *ModelCache {
	return &ModelCache{loaded: make(map[string]*Model)}
}

// GetOrLoad returns the cached model for (backend, name), loading it on first use.
func (c *ModelCache) GetOrLoad(ctx context.Context, backend Backend, name string) (*Model, error) {
	key := backend.Name() + ":" + name
	c.mu.Lock()
	if model, ok := c.loaded[key]; ok {
		c.mu.Unlock()
		return model, nil
	}
	c.mu.Unlock()

	model, err := backend.LoadModel(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.loaded[key]; ok {
		return existing, nil
	}
	c.loaded[key] = model
	return model, nil
}
