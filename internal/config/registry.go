package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/vocalis/internal/transcribe"
)

// ErrProviderNotRegistered is returned by [Registry.CreateTranscriber] when
// no factory has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps transcriber provider names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	transcriber map[string]func(ProviderEntry) (transcribe.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		transcriber: make(map[string]func(ProviderEntry) (transcribe.Provider, error)),
	}
}

// RegisterTranscriber registers a transcriber factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTranscriber(name string, factory func(ProviderEntry) (transcribe.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcriber[name] = factory
}

// CreateTranscriber constructs the transcriber named in entry.
// Returns [ErrProviderNotRegistered] if no factory is registered under that
// name.
func (r *Registry) CreateTranscriber(entry ProviderEntry) (transcribe.Provider, error) {
	r.mu.RLock()
	factory, ok := r.transcriber[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: transcriber %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
