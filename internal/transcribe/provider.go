// Package transcribe defines the Provider interface for one-shot
// speech-to-text backends and the ordered language-fallback wrapper built on
// top of them.
//
// A voice note is a bounded clip, so unlike streaming STT there is exactly
// one request and one answer per recording. A provider reports "the audio
// contained no recognisable speech in this language" with the distinguished
// [ErrNotRecognized]; any other error means the attempt itself failed
// (malformed audio, backend unavailable) and must not be treated as a
// language miss.
package transcribe

import (
	"context"
	"errors"
	"strings"
)

// ErrNotRecognized is returned by a [Provider] when the backend produced no
// confident result for the requested language. It is the only error the
// fallback loop handles locally; everything else propagates.
var ErrNotRecognized = errors.New("transcribe: no confident result")

// Clip is a ready-to-transcribe voice recording. The acquisition layer
// decodes the wire format before the clip reaches a provider.
type Clip struct {
	// PCM is 16-bit little-endian signed mono PCM at SampleRate.
	// Local backends consume this directly.
	PCM []byte

	// SampleRate is the PCM sample rate in Hz (typically 16000).
	SampleRate int

	// Container holds the original container bytes (e.g. the Ogg/Opus file
	// as received). Hosted backends upload this instead of raw PCM.
	Container []byte

	// ContainerExt is the container file extension without the dot
	// (e.g. "ogg"). Empty when only PCM is available.
	ContainerExt string
}

// Result is the outcome of a full fallback transcription pass.
type Result struct {
	// Text is the transcript of the first language that succeeded.
	// Empty when Recognized is false.
	Text string

	// Language is the language tag that produced Text.
	Language string

	// Recognized reports whether any configured language yielded a
	// confident result. Callers decide what to substitute when false; the
	// transcriber never invents text.
	Recognized bool
}

// Provider is the abstraction over any one-shot ASR backend.
//
// Implementations must be safe for concurrent use; multiple clips may be
// transcribed simultaneously (one per user).
type Provider interface {
	// Transcribe converts clip to text using the given BCP-47 language tag.
	// Returns [ErrNotRecognized] when the backend found no confident speech
	// for that language; any other error is a real failure.
	Transcribe(ctx context.Context, clip Clip, language string) (string, error)
}

// BaseLanguage reduces a BCP-47 tag to its lowercase primary subtag
// ("en-IN" → "en"). Whisper-family backends accept only the base language.
func BaseLanguage(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}
