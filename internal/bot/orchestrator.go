// Package bot implements the transport-agnostic session orchestrator: the
// component that receives inbound user events (voice note, edit request,
// free text, start, search), drives the transcriber, session registry, and
// revision store, and owns every user-visible reply.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/vocalis/internal/audio"
	"github.com/MrWong99/vocalis/internal/observe"
	"github.com/MrWong99/vocalis/internal/session"
	"github.com/MrWong99/vocalis/internal/transcribe"
)

// Messenger delivers replies through the transport. Implementations must be
// safe for concurrent use.
type Messenger interface {
	// SendText delivers a plain text message to the user.
	SendText(ctx context.Context, userID, text string) error

	// SendTranscript delivers text together with an edit affordance that,
	// when activated, produces an edit request for transcriptionID.
	SendTranscript(ctx context.Context, userID, text, transcriptionID string) error
}

// Transcriber runs a full language-fallback pass over a clip. Implemented
// by [transcribe.Fallback].
type Transcriber interface {
	Transcribe(ctx context.Context, clip transcribe.Clip) (transcribe.Result, error)
}

// AudioStore persists the audio artifacts next to the transcript versions.
// Implemented by [store.FileStore].
type AudioStore interface {
	SaveAudio(userID, folder, name string, data []byte) error
}

// ArchiveEntry is one transcript revision as seen by the optional archive.
type ArchiveEntry struct {
	TranscriptionID string
	Version         int
	Folder          string
	Text            string
}

// Archiver mirrors revisions into a searchable secondary store. The
// filesystem remains the source of truth: archive errors are logged, never
// surfaced to the user.
type Archiver interface {
	Record(ctx context.Context, userID string, entry ArchiveEntry) error
	Search(ctx context.Context, userID, query string, limit int) ([]ArchiveEntry, error)
}

// Orchestrator wires the transcriber, registry, and stores together and
// implements the user-facing flows. All methods are safe for concurrent
// use; per-user ordering is provided by the registry's locking.
type Orchestrator struct {
	registry    *session.Registry
	transcriber Transcriber
	audioStore  AudioStore
	messenger   Messenger
	archive     Archiver // may be nil
	metrics     *observe.Metrics
}

// Config holds the dependencies for an [Orchestrator].
type Config struct {
	Registry    *session.Registry
	Transcriber Transcriber
	AudioStore  AudioStore
	Messenger   Messenger

	// Archive is optional; nil disables the search command.
	Archive Archiver

	// Metrics is optional; nil falls back to no-op instruments.
	Metrics *observe.Metrics
}

// New creates an Orchestrator from cfg.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, errors.New("bot: registry must not be nil")
	}
	if cfg.Transcriber == nil {
		return nil, errors.New("bot: transcriber must not be nil")
	}
	if cfg.Messenger == nil {
		return nil, errors.New("bot: messenger must not be nil")
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.NewNopMetrics()
	}
	return &Orchestrator{
		registry:    cfg.Registry,
		transcriber: cfg.Transcriber,
		audioStore:  cfg.AudioStore,
		messenger:   cfg.Messenger,
		archive:     cfg.Archive,
		metrics:     m,
	}, nil
}

// OnStart handles the start command: a fixed greeting, no state change.
func (o *Orchestrator) OnStart(ctx context.Context, userID string) error {
	return o.messenger.SendText(ctx, userID, MsgGreeting)
}

// OnVoice handles a new voice note: transcribe with the configured language
// order, create the record (revision 1), persist the audio artifacts, and
// reply with the folder name, the transcript, and an edit affordance.
//
// Unrecognised audio still creates a record whose text is the fixed
// fallback sentence. A transcriber or storage failure aborts the flow with
// a generic reply; the error detail stays in the logs and the return value.
func (o *Orchestrator) OnVoice(ctx context.Context, userID string, clip transcribe.Clip) error {
	ctx, span := observe.StartSpan(ctx, "bot.OnVoice")
	defer span.End()

	start := time.Now()
	res, err := o.transcriber.Transcribe(ctx, clip)
	o.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		o.metrics.TranscribeErrors.Add(ctx, 1)
		slog.Error("transcription failed", "user_id", userID, "err", err)
		o.sendBestEffort(ctx, userID, MsgProcessingFailed)
		return fmt.Errorf("bot: transcribe voice note: %w", err)
	}

	text := res.Text
	status := "recognized"
	if !res.Recognized {
		text = MsgFallbackTranscript
		status = "unrecognized"
	}

	rec, err := o.registry.Create(userID, text)
	if err != nil {
		o.metrics.TranscribeErrors.Add(ctx, 1)
		slog.Error("failed to store transcription", "user_id", userID, "err", err)
		o.sendBestEffort(ctx, userID, MsgProcessingFailed)
		return fmt.Errorf("bot: create record: %w", err)
	}

	o.saveArtifacts(userID, rec.Folder, clip)
	o.recordArchive(ctx, userID, rec)
	o.metrics.Transcriptions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))

	slog.Info("voice note transcribed",
		"user_id", userID,
		"transcription_id", rec.ID,
		"language", res.Language,
		"recognized", res.Recognized,
	)

	reply := fmt.Sprintf("Folder: %s\n\nTranscribed Text:\n%s", rec.Folder, text)
	return o.messenger.SendTranscript(ctx, userID, reply, rec.ID)
}

// OnEditRequest handles the activation of an edit affordance: point the
// user's edit cursor at the transcription and prompt with its current text.
func (o *Orchestrator) OnEditRequest(ctx context.Context, userID, transcriptionID string) error {
	_, wasPending := o.registry.PendingEdit(userID)

	rec, err := o.registry.BeginEdit(userID, transcriptionID)
	if errors.Is(err, session.ErrRecordNotFound) {
		return o.messenger.SendText(ctx, userID, MsgNotFound)
	}
	if err != nil {
		return fmt.Errorf("bot: begin edit: %w", err)
	}

	if !wasPending {
		o.metrics.PendingEdits.Add(ctx, 1)
	}

	prompt := fmt.Sprintf("Current text (v%d):\n%s\n\nReply with the corrected text.", rec.Version, rec.Text)
	return o.messenger.SendText(ctx, userID, prompt)
}

// OnText handles a plain text message. With a pending edit cursor the text
// is consumed unconditionally as the correction and a new revision is
// appended; otherwise the user is prompted to send a voice message.
func (o *Orchestrator) OnText(ctx context.Context, userID, text string) error {
	id, ok := o.registry.ConsumeEdit(userID)
	if !ok {
		return o.messenger.SendText(ctx, userID, MsgVoicePrompt)
	}
	o.metrics.PendingEdits.Add(ctx, -1)

	rec, err := o.registry.Update(userID, id, text)
	if errors.Is(err, session.ErrRecordNotFound) {
		// The cursor pointed at a record that no longer resolves. The
		// consumption stands; report and return to idle.
		return o.messenger.SendText(ctx, userID, MsgNotFound)
	}
	if err != nil {
		slog.Error("failed to store revision", "user_id", userID, "transcription_id", id, "err", err)
		o.sendBestEffort(ctx, userID, MsgProcessingFailed)
		return fmt.Errorf("bot: append revision: %w", err)
	}

	o.recordArchive(ctx, userID, rec)
	o.metrics.Revisions.Add(ctx, 1)

	slog.Info("transcription updated",
		"user_id", userID,
		"transcription_id", rec.ID,
		"version", rec.Version,
	)

	reply := fmt.Sprintf("Updated to version %d:\n%s", rec.Version, rec.Text)
	return o.messenger.SendText(ctx, userID, reply)
}

// OnMalformedAction handles an affordance activation whose payload could
// not be parsed. No state is mutated.
func (o *Orchestrator) OnMalformedAction(ctx context.Context, userID string) error {
	return o.messenger.SendText(ctx, userID, MsgInvalidAction)
}

// searchLimit bounds search replies to keep messages within transport
// limits.
const searchLimit = 5

// OnSearch handles the search command against the optional archive.
func (o *Orchestrator) OnSearch(ctx context.Context, userID, query string) error {
	if o.archive == nil {
		return o.messenger.SendText(ctx, userID, MsgSearchUnavailable)
	}

	hits, err := o.archive.Search(ctx, userID, query, searchLimit)
	if err != nil {
		slog.Error("archive search failed", "user_id", userID, "err", err)
		return o.messenger.SendText(ctx, userID, MsgProcessingFailed)
	}
	if len(hits) == 0 {
		return o.messenger.SendText(ctx, userID, MsgSearchNoResults)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d transcription(s):\n", len(hits))
	for _, hit := range hits {
		fmt.Fprintf(&b, "\n#%s (v%d): %s\n", hit.TranscriptionID, hit.Version, hit.Text)
	}
	return o.messenger.SendText(ctx, userID, b.String())
}

// saveArtifacts stores the original container and the decoded WAV next to
// the transcript. Artifact failures are logged only: the transcript itself
// is already durable at this point.
func (o *Orchestrator) saveArtifacts(userID, folder string, clip transcribe.Clip) {
	if o.audioStore == nil {
		return
	}
	if len(clip.Container) > 0 {
		ext := clip.ContainerExt
		if ext == "" {
			ext = "bin"
		}
		if err := o.audioStore.SaveAudio(userID, folder, "audio."+ext, clip.Container); err != nil {
			slog.Warn("failed to save original audio", "user_id", userID, "folder", folder, "err", err)
		}
	}
	if len(clip.PCM) > 0 {
		wav := audio.EncodeWAV(clip.PCM, clip.SampleRate, 1)
		if err := o.audioStore.SaveAudio(userID, folder, "audio.wav", wav); err != nil {
			slog.Warn("failed to save decoded audio", "user_id", userID, "folder", folder, "err", err)
		}
	}
}

// recordArchive mirrors a revision into the archive, logging failures.
func (o *Orchestrator) recordArchive(ctx context.Context, userID string, rec session.Record) {
	if o.archive == nil {
		return
	}
	entry := ArchiveEntry{
		TranscriptionID: rec.ID,
		Version:         rec.Version,
		Folder:          rec.Folder,
		Text:            rec.Text,
	}
	if err := o.archive.Record(ctx, userID, entry); err != nil {
		slog.Warn("failed to archive revision",
			"user_id", userID,
			"transcription_id", rec.ID,
			"version", rec.Version,
			"err", err,
		)
	}
}

// sendBestEffort delivers text and only logs a delivery failure; it is used
// on error paths where a send error must not mask the original failure.
func (o *Orchestrator) sendBestEffort(ctx context.Context, userID, text string) {
	if err := o.messenger.SendText(ctx, userID, text); err != nil {
		slog.Warn("failed to send reply", "user_id", userID, "err", err)
	}
}
