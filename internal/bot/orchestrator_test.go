package bot_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/vocalis/internal/bot"
	"github.com/MrWong99/vocalis/internal/session"
	"github.com/MrWong99/vocalis/internal/store"
	"github.com/MrWong99/vocalis/internal/transcribe"
	"github.com/MrWong99/vocalis/internal/transcribe/mock"
)

// sentMessage captures one outbound reply.
type sentMessage struct {
	UserID          string
	Text            string
	TranscriptionID string // set only for SendTranscript
	WithEdit        bool
}

// mockMessenger records every reply the orchestrator sends.
type mockMessenger struct {
	mu   sync.Mutex
	sent []sentMessage

	// SendErr, if non-nil, is returned from every send.
	SendErr error
}

func (m *mockMessenger) SendText(_ context.Context, userID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{UserID: userID, Text: text})
	return m.SendErr
}

func (m *mockMessenger) SendTranscript(_ context.Context, userID, text, transcriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{UserID: userID, Text: text, TranscriptionID: transcriptionID, WithEdit: true})
	return m.SendErr
}

func (m *mockMessenger) last(t *testing.T) sentMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no message was sent")
	}
	return m.sent[len(m.sent)-1]
}

// mockArchive records archived revisions and serves scripted search hits.
type mockArchive struct {
	mu        sync.Mutex
	recorded  []bot.ArchiveEntry
	hits      []bot.ArchiveEntry
	searchErr error
}

func (a *mockArchive) Record(_ context.Context, _ string, entry bot.ArchiveEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recorded = append(a.recorded, entry)
	return nil
}

func (a *mockArchive) Search(_ context.Context, _, _ string, _ int) ([]bot.ArchiveEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hits, a.searchErr
}

// newTestBot wires an orchestrator over a real registry and file store in a
// temp dir, with the given scripted transcription provider.
func newTestBot(t *testing.T, provider *mock.Provider) (*bot.Orchestrator, *mockMessenger, *session.Registry, *store.FileStore) {
	t.Helper()

	fs := store.NewFileStore(t.TempDir())
	reg := session.NewRegistry(fs)

	fb, err := transcribe.NewFallback(provider, []string{"en-IN", "ta-IN"})
	if err != nil {
		t.Fatalf("NewFallback() error = %v", err)
	}

	msgr := &mockMessenger{}
	o, err := bot.New(bot.Config{
		Registry:    reg,
		Transcriber: fb,
		AudioStore:  fs,
		Messenger:   msgr,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o, msgr, reg, fs
}

func testClip() transcribe.Clip {
	return transcribe.Clip{
		PCM:          []byte{0, 0, 1, 0, 2, 0, 3, 0},
		SampleRate:   16000,
		Container:    []byte("OggS-data"),
		ContainerExt: "ogg",
	}
}

func TestOnStartGreets(t *testing.T) {
	o, msgr, _, _ := newTestBot(t, &mock.Provider{})

	if err := o.OnStart(context.Background(), "7"); err != nil {
		t.Fatalf("OnStart() error = %v", err)
	}
	if got := msgr.last(t).Text; got != bot.MsgGreeting {
		t.Errorf("reply = %q, want %q", got, bot.MsgGreeting)
	}
}

func TestOnVoiceRecognized(t *testing.T) {
	provider := &mock.Provider{Results: map[string]string{"en-IN": "hello world"}}
	o, msgr, reg, _ := newTestBot(t, provider)

	if err := o.OnVoice(context.Background(), "7", testClip()); err != nil {
		t.Fatalf("OnVoice() error = %v", err)
	}

	last := msgr.last(t)
	if !last.WithEdit {
		t.Error("reply should carry an edit affordance")
	}
	if last.TranscriptionID != "1" {
		t.Errorf("transcription id = %q, want %q", last.TranscriptionID, "1")
	}
	if !strings.Contains(last.Text, "hello world") {
		t.Errorf("reply %q does not contain the transcript", last.Text)
	}
	if !strings.Contains(last.Text, "Folder: ") {
		t.Errorf("reply %q does not name the folder", last.Text)
	}

	rec, err := reg.Get("7", "1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Version != 1 || rec.Text != "hello world" {
		t.Errorf("record = v%d %q, want v1 %q", rec.Version, rec.Text, "hello world")
	}
}

func TestOnVoiceUnrecognizedStoresFallbackSentence(t *testing.T) {
	// No scripted languages: every attempt misses.
	o, msgr, reg, _ := newTestBot(t, &mock.Provider{})

	if err := o.OnVoice(context.Background(), "7", testClip()); err != nil {
		t.Fatalf("OnVoice() error = %v", err)
	}

	last := msgr.last(t)
	if !last.WithEdit {
		t.Error("unrecognised audio should still offer the edit affordance")
	}
	if !strings.Contains(last.Text, bot.MsgFallbackTranscript) {
		t.Errorf("reply %q does not contain the fallback sentence", last.Text)
	}

	rec, err := reg.Get("7", "1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Text != bot.MsgFallbackTranscript {
		t.Errorf("stored text = %q, want the fallback sentence", rec.Text)
	}
}

func TestOnVoiceTranscriberFailure(t *testing.T) {
	provider := &mock.Provider{Err: errors.New("backend down")}
	o, msgr, reg, _ := newTestBot(t, provider)

	if err := o.OnVoice(context.Background(), "7", testClip()); err == nil {
		t.Fatal("OnVoice() error = nil, want backend failure")
	}
	if got := msgr.last(t).Text; got != bot.MsgProcessingFailed {
		t.Errorf("reply = %q, want %q", got, bot.MsgProcessingFailed)
	}
	if _, err := reg.Get("7", "1"); !errors.Is(err, session.ErrRecordNotFound) {
		t.Errorf("Get() error = %v, want ErrRecordNotFound: no record on failure", err)
	}
}

func TestOnVoiceSavesAudioArtifacts(t *testing.T) {
	provider := &mock.Provider{Results: map[string]string{"en-IN": "hi"}}
	o, _, reg, _ := newTestBot(t, provider)

	if err := o.OnVoice(context.Background(), "7", testClip()); err != nil {
		t.Fatalf("OnVoice() error = %v", err)
	}

	rec, err := reg.Get("7", "1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	for _, name := range []string{"audio.ogg", "audio.wav"} {
		if _, err := os.Stat(filepath.Join(rec.Dir, name)); err != nil {
			t.Errorf("artifact %s: %v", name, err)
		}
	}
}

func TestEditFlow(t *testing.T) {
	provider := &mock.Provider{Results: map[string]string{"en-IN": "hello world"}}
	o, msgr, reg, _ := newTestBot(t, provider)
	ctx := context.Background()

	if err := o.OnVoice(ctx, "7", testClip()); err != nil {
		t.Fatalf("OnVoice() error = %v", err)
	}
	if err := o.OnEditRequest(ctx, "7", "1"); err != nil {
		t.Fatalf("OnEditRequest() error = %v", err)
	}
	if got := msgr.last(t).Text; !strings.Contains(got, "hello world") {
		t.Errorf("edit prompt %q does not echo the current text", got)
	}

	if err := o.OnText(ctx, "7", "hello there"); err != nil {
		t.Fatalf("OnText() error = %v", err)
	}
	last := msgr.last(t)
	if !strings.Contains(last.Text, "version 2") || !strings.Contains(last.Text, "hello there") {
		t.Errorf("confirmation %q should name version 2 and the new text", last.Text)
	}

	rec, err := reg.Get("7", "1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Version != 2 || rec.Text != "hello there" {
		t.Errorf("record = v%d %q, want v2 %q", rec.Version, rec.Text, "hello there")
	}

	// The cursor is consumed: a second text is not another correction.
	if err := o.OnText(ctx, "7", "and again"); err != nil {
		t.Fatalf("OnText() error = %v", err)
	}
	if got := msgr.last(t).Text; got != bot.MsgVoicePrompt {
		t.Errorf("reply = %q, want %q", got, bot.MsgVoicePrompt)
	}
	if rec, _ := reg.Get("7", "1"); rec.Version != 2 {
		t.Errorf("version = %d, want 2: text without pending edit must not revise", rec.Version)
	}
}

func TestOnEditRequestUnknownRecord(t *testing.T) {
	o, msgr, reg, _ := newTestBot(t, &mock.Provider{})
	ctx := context.Background()

	if err := o.OnEditRequest(ctx, "7", "99"); err != nil {
		t.Fatalf("OnEditRequest() error = %v", err)
	}
	if got := msgr.last(t).Text; got != bot.MsgNotFound {
		t.Errorf("reply = %q, want %q", got, bot.MsgNotFound)
	}
	if _, pending := reg.PendingEdit("7"); pending {
		t.Error("failed edit request must not set the cursor")
	}
}

func TestOnTextWithoutPendingEdit(t *testing.T) {
	o, msgr, _, _ := newTestBot(t, &mock.Provider{})

	if err := o.OnText(context.Background(), "7", "hello"); err != nil {
		t.Fatalf("OnText() error = %v", err)
	}
	if got := msgr.last(t).Text; got != bot.MsgVoicePrompt {
		t.Errorf("reply = %q, want %q", got, bot.MsgVoicePrompt)
	}
}

func TestOnMalformedAction(t *testing.T) {
	o, msgr, _, _ := newTestBot(t, &mock.Provider{})

	if err := o.OnMalformedAction(context.Background(), "7"); err != nil {
		t.Fatalf("OnMalformedAction() error = %v", err)
	}
	if got := msgr.last(t).Text; got != bot.MsgInvalidAction {
		t.Errorf("reply = %q, want %q", got, bot.MsgInvalidAction)
	}
}

func TestArchiveReceivesRevisions(t *testing.T) {
	provider := &mock.Provider{Results: map[string]string{"en-IN": "hello"}}
	fs := store.NewFileStore(t.TempDir())
	reg := session.NewRegistry(fs)
	fb, err := transcribe.NewFallback(provider, []string{"en-IN"})
	if err != nil {
		t.Fatalf("NewFallback() error = %v", err)
	}
	arch := &mockArchive{}
	msgr := &mockMessenger{}
	o, err := bot.New(bot.Config{
		Registry:    reg,
		Transcriber: fb,
		AudioStore:  fs,
		Messenger:   msgr,
		Archive:     arch,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := o.OnVoice(ctx, "7", testClip()); err != nil {
		t.Fatalf("OnVoice() error = %v", err)
	}
	if err := o.OnEditRequest(ctx, "7", "1"); err != nil {
		t.Fatalf("OnEditRequest() error = %v", err)
	}
	if err := o.OnText(ctx, "7", "hello there"); err != nil {
		t.Fatalf("OnText() error = %v", err)
	}

	arch.mu.Lock()
	defer arch.mu.Unlock()
	if len(arch.recorded) != 2 {
		t.Fatalf("archived %d entries, want 2", len(arch.recorded))
	}
	if arch.recorded[0].Version != 1 || arch.recorded[1].Version != 2 {
		t.Errorf("archived versions = %d, %d, want 1, 2",
			arch.recorded[0].Version, arch.recorded[1].Version)
	}
}

func TestOnSearch(t *testing.T) {
	newBot := func(t *testing.T, arch bot.Archiver) (*bot.Orchestrator, *mockMessenger) {
		t.Helper()
		fs := store.NewFileStore(t.TempDir())
		fb, err := transcribe.NewFallback(&mock.Provider{}, []string{"en-IN"})
		if err != nil {
			t.Fatalf("NewFallback() error = %v", err)
		}
		msgr := &mockMessenger{}
		o, err := bot.New(bot.Config{
			Registry:    session.NewRegistry(fs),
			Transcriber: fb,
			Messenger:   msgr,
			Archive:     arch,
		})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return o, msgr
	}
	ctx := context.Background()

	t.Run("no archive configured", func(t *testing.T) {
		o, msgr := newBot(t, nil)
		if err := o.OnSearch(ctx, "7", "hello"); err != nil {
			t.Fatalf("OnSearch() error = %v", err)
		}
		if got := msgr.last(t).Text; got != bot.MsgSearchUnavailable {
			t.Errorf("reply = %q, want %q", got, bot.MsgSearchUnavailable)
		}
	})

	t.Run("no results", func(t *testing.T) {
		o, msgr := newBot(t, &mockArchive{})
		if err := o.OnSearch(ctx, "7", "hello"); err != nil {
			t.Fatalf("OnSearch() error = %v", err)
		}
		if got := msgr.last(t).Text; got != bot.MsgSearchNoResults {
			t.Errorf("reply = %q, want %q", got, bot.MsgSearchNoResults)
		}
	})

	t.Run("hits listed", func(t *testing.T) {
		arch := &mockArchive{hits: []bot.ArchiveEntry{
			{TranscriptionID: "1", Version: 2, Folder: "15-01-2026_1", Text: "hello there"},
		}}
		o, msgr := newBot(t, arch)
		if err := o.OnSearch(ctx, "7", "hello"); err != nil {
			t.Fatalf("OnSearch() error = %v", err)
		}
		got := msgr.last(t).Text
		if !strings.Contains(got, "hello there") || !strings.Contains(got, "v2") {
			t.Errorf("reply %q should list the hit with its version", got)
		}
	})
}
