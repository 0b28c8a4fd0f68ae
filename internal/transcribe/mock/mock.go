// Package mock provides a scriptable test double for the transcribe package.
//
// Script results per language with Results; unscripted languages return
// transcribe.ErrNotRecognized. Err short-circuits every call. Calls records
// the attempted languages in order.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vocalis/internal/transcribe"
)

// Compile-time interface check.
var _ transcribe.Provider = (*Provider)(nil)

// Provider is a mock implementation of transcribe.Provider.
type Provider struct {
	mu sync.Mutex

	// Results maps a language tag to the text returned for it. Languages
	// absent from the map return transcribe.ErrNotRecognized.
	Results map[string]string

	// Err, if non-nil, is returned from every Transcribe call regardless
	// of Results.
	Err error

	// Calls records the language of every Transcribe invocation in order.
	Calls []string
}

// Transcribe records the call and returns the scripted result for language.
func (p *Provider) Transcribe(_ context.Context, _ transcribe.Clip, language string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, language)
	if p.Err != nil {
		return "", p.Err
	}
	if text, ok := p.Results[language]; ok {
		return text, nil
	}
	return "", transcribe.ErrNotRecognized
}

// CallCount returns the number of Transcribe invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
