// Package whisper provides a transcribe.Provider backed by the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/vocalis/internal/transcribe"
)

// Compile-time assertion that Provider satisfies transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// whisperSampleRate is the only sample rate whisper.cpp accepts.
const whisperSampleRate = 16000

// Provider implements transcribe.Provider using the whisper.cpp Go bindings.
// The model is loaded once at construction and shared across all calls; each
// call creates its own whisper context because contexts are not thread-safe
// while the model is.
type Provider struct {
	model whisperlib.Model

	// mu serialises inference. whisper.cpp contexts are cheap but running
	// several inferences over one model concurrently degrades all of them on
	// CPU-bound hosts.
	mu sync.Mutex
}

// New creates a Provider that loads the whisper.cpp model from the given
// gguf file path. The caller must call Close when the provider is no longer
// needed.
func New(modelPath string) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	return &Provider{model: model}, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe runs whisper.cpp inference over the clip's PCM audio.
// Returns transcribe.ErrNotRecognized when inference succeeds but yields no
// text.
func (p *Provider) Transcribe(ctx context.Context, clip transcribe.Clip, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if len(clip.PCM) == 0 {
		return "", errors.New("whisper: clip carries no PCM audio")
	}
	if clip.SampleRate != whisperSampleRate {
		return "", fmt.Errorf("whisper: clip sample rate %d Hz, need %d Hz", clip.SampleRate, whisperSampleRate)
	}

	samples := pcmToFloat32(clip.PCM)

	p.mu.Lock()
	defer p.mu.Unlock()

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	lang := transcribe.BaseLanguage(language)
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "err", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", transcribe.ErrNotRecognized
	}
	return strings.Join(parts, " "), nil
}
