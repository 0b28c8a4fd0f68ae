package transcribe_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/vocalis/internal/transcribe"
	"github.com/MrWong99/vocalis/internal/transcribe/mock"
)

func newBreaker(t *testing.T, p transcribe.Provider, cfg transcribe.BreakerConfig) *transcribe.Breaker {
	t.Helper()
	b, err := transcribe.NewBreaker(p, cfg)
	if err != nil {
		t.Fatalf("NewBreaker() error = %v", err)
	}
	return b
}

func TestBreakerForwardsWhileClosed(t *testing.T) {
	p := &mock.Provider{Results: map[string]string{"en-IN": "hello"}}
	b := newBreaker(t, p, transcribe.BreakerConfig{Name: "test"})

	text, err := b.Transcribe(context.Background(), transcribe.Clip{}, "en-IN")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "hello" {
		t.Errorf("text = %q, want %q", text, "hello")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	p := &mock.Provider{Err: errors.New("backend down")}
	b := newBreaker(t, p, transcribe.BreakerConfig{Name: "test", MaxFailures: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := b.Transcribe(ctx, transcribe.Clip{}, "en-IN"); err == nil {
			t.Fatalf("call %d: error = nil, want backend failure", i)
		}
	}

	// Breaker is now open: the backend must not be called again.
	before := p.CallCount()
	_, err := b.Transcribe(ctx, transcribe.Clip{}, "en-IN")
	if !errors.Is(err, transcribe.ErrBackendUnavailable) {
		t.Errorf("error = %v, want ErrBackendUnavailable", err)
	}
	if got := p.CallCount(); got != before {
		t.Errorf("backend called %d times while open, want %d", got, before)
	}
}

func TestBreakerUnrecognizedIsNotAFailure(t *testing.T) {
	// Unscripted language: every call returns ErrNotRecognized.
	p := &mock.Provider{}
	b := newBreaker(t, p, transcribe.BreakerConfig{Name: "test", MaxFailures: 2})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := b.Transcribe(ctx, transcribe.Clip{}, "en-IN"); !errors.Is(err, transcribe.ErrNotRecognized) {
			t.Fatalf("call %d: error = %v, want ErrNotRecognized", i, err)
		}
	}
	if got := p.CallCount(); got != 5 {
		t.Errorf("backend called %d times, want 5: breaker must stay closed", got)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	p := &mock.Provider{Err: errors.New("backend down")}
	b := newBreaker(t, p, transcribe.BreakerConfig{Name: "test", MaxFailures: 2})
	ctx := context.Background()

	if _, err := b.Transcribe(ctx, transcribe.Clip{}, "en-IN"); err == nil {
		t.Fatal("error = nil, want backend failure")
	}

	p.Err = nil
	p.Results = map[string]string{"en-IN": "hello"}
	if _, err := b.Transcribe(ctx, transcribe.Clip{}, "en-IN"); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	// One more failure must not open the breaker: the count was reset.
	p.Err = errors.New("backend down")
	p.Results = nil
	if _, err := b.Transcribe(ctx, transcribe.Clip{}, "en-IN"); errors.Is(err, transcribe.ErrBackendUnavailable) {
		t.Error("breaker opened after a single failure following a success")
	}
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	p := &mock.Provider{Err: errors.New("backend down")}
	b := newBreaker(t, p, transcribe.BreakerConfig{
		Name:        "test",
		MaxFailures: 1,
		Cooldown:    10 * time.Millisecond,
	})
	ctx := context.Background()

	if _, err := b.Transcribe(ctx, transcribe.Clip{}, "en-IN"); err == nil {
		t.Fatal("error = nil, want backend failure")
	}
	if _, err := b.Transcribe(ctx, transcribe.Clip{}, "en-IN"); !errors.Is(err, transcribe.ErrBackendUnavailable) {
		t.Fatalf("error = %v, want ErrBackendUnavailable", err)
	}

	time.Sleep(20 * time.Millisecond)

	// The probe reaches a recovered backend and closes the breaker.
	p.Err = nil
	p.Results = map[string]string{"en-IN": "hello"}
	text, err := b.Transcribe(ctx, transcribe.Clip{}, "en-IN")
	if err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if text != "hello" {
		t.Errorf("text = %q, want %q", text, "hello")
	}
	if _, err := b.Transcribe(ctx, transcribe.Clip{}, "en-IN"); err != nil {
		t.Errorf("post-probe error = %v, want closed breaker", err)
	}
}
