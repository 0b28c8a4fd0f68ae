package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Fallback tries a fixed, ordered list of languages against a single
// [Provider] and returns the first confident result. Only
// [ErrNotRecognized] moves the loop to the next language; any other error
// aborts the pass and propagates to the caller.
//
// Fallback is safe for concurrent use when the wrapped provider is.
type Fallback struct {
	provider  Provider
	languages []string
}

// NewFallback creates a [Fallback] attempting languages in the given order.
func NewFallback(provider Provider, languages []string) (*Fallback, error) {
	if provider == nil {
		return nil, errors.New("transcribe: provider must not be nil")
	}
	if len(languages) == 0 {
		return nil, errors.New("transcribe: at least one language is required")
	}
	langs := make([]string, len(languages))
	copy(langs, languages)
	return &Fallback{provider: provider, languages: langs}, nil
}

// Languages returns the configured attempt order.
func (f *Fallback) Languages() []string {
	langs := make([]string, len(f.languages))
	copy(langs, f.languages)
	return langs
}

// Transcribe runs the language attempt loop over clip.
//
// When every language returns [ErrNotRecognized] the pass is still a
// success: the result carries Recognized=false and no error. A failure of
// the attempt itself (audio malformed, backend down) is returned as an
// error and must not be mistaken for unrecognised speech.
func (f *Fallback) Transcribe(ctx context.Context, clip Clip) (Result, error) {
	for _, lang := range f.languages {
		text, err := f.provider.Transcribe(ctx, clip, lang)
		if err == nil {
			return Result{Text: text, Language: lang, Recognized: true}, nil
		}
		if errors.Is(err, ErrNotRecognized) {
			slog.Debug("language not recognised, trying next", "language", lang)
			continue
		}
		return Result{}, fmt.Errorf("transcribe: attempt %q: %w", lang, err)
	}
	return Result{Recognized: false}, nil
}
