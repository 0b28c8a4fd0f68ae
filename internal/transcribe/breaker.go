package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrBackendUnavailable is returned by [Breaker.Transcribe] while the
// breaker is open and the cooldown has not yet elapsed.
var ErrBackendUnavailable = errors.New("transcribe: backend temporarily unavailable")

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name is a human-readable backend label used in log messages.
	Name string

	// MaxFailures is the number of consecutive backend failures before the
	// breaker opens. Default: 5.
	MaxFailures int

	// Cooldown is how long the breaker stays open before allowing a probe
	// call through. Default: 30s.
	Cooldown time.Duration
}

// Breaker wraps a [Provider] with a circuit breaker so a hosted backend
// that is hard down fails fast instead of stalling every voice note.
//
// Only attempt failures trip the breaker. [ErrNotRecognized] is a
// successful attempt that happened to hear nothing, and resets the failure
// count like any other success. Safe for concurrent use.
type Breaker struct {
	provider Provider
	name     string
	max      int
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
	probing  bool
}

// NewBreaker wraps provider with a [Breaker]. Zero-value config fields are
// replaced with defaults.
func NewBreaker(provider Provider, cfg BreakerConfig) (*Breaker, error) {
	if provider == nil {
		return nil, errors.New("transcribe: provider must not be nil")
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		provider: provider,
		name:     cfg.Name,
		max:      cfg.MaxFailures,
		cooldown: cfg.Cooldown,
		now:      time.Now,
	}, nil
}

// Transcribe forwards to the wrapped provider when the breaker allows it.
// While open it returns [ErrBackendUnavailable] without touching the
// backend; after the cooldown a single probe call is let through, and its
// outcome decides whether the breaker closes or re-opens.
func (b *Breaker) Transcribe(ctx context.Context, clip Clip, language string) (string, error) {
	if err := b.admit(); err != nil {
		return "", err
	}

	text, err := b.provider.Transcribe(ctx, clip, language)
	b.settle(attemptFailed(err))
	return text, err
}

// admit decides whether a call may proceed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	if b.probing || b.now().Sub(b.openedAt) < b.cooldown {
		return fmt.Errorf("%w: %s", ErrBackendUnavailable, b.name)
	}
	// Cooldown elapsed; let exactly one probe through.
	b.probing = true
	slog.Info("transcriber breaker probing backend", "backend", b.name)
	return nil
}

// settle records the outcome of a completed call.
func (b *Breaker) settle(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasProbe := b.probing
	b.probing = false

	if !failed {
		if b.open {
			slog.Info("transcriber breaker closed", "backend", b.name)
		}
		b.open = false
		b.failures = 0
		return
	}

	if wasProbe {
		// Failed probe re-opens for another cooldown period.
		b.openedAt = b.now()
		slog.Warn("transcriber breaker re-opened after failed probe", "backend", b.name)
		return
	}

	b.failures++
	if !b.open && b.failures >= b.max {
		b.open = true
		b.openedAt = b.now()
		slog.Warn("transcriber breaker opened",
			"backend", b.name,
			"consecutive_failures", b.failures,
		)
	}
}

// attemptFailed reports whether err counts against the breaker.
// Unrecognised speech is a healthy backend answer, and a cancelled context
// says nothing about the backend at all.
func attemptFailed(err error) bool {
	if err == nil || errors.Is(err, ErrNotRecognized) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
