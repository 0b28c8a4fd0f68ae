package discord

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/vocalis/internal/audio"
	"github.com/MrWong99/vocalis/internal/bot"
	"github.com/MrWong99/vocalis/internal/transcribe"
)

// whisperSampleRate is the input rate speech recognisers expect.
const whisperSampleRate = 16000

// handlerTimeout bounds one inbound event end to end, including the
// transcription pass.
const handlerTimeout = 5 * time.Minute

// registerRoutes wires the slash commands and component handlers into the
// router.
func (b *Bot) registerRoutes() {
	b.router.RegisterCommand("start", &discordgo.ApplicationCommand{
		Name:        "start",
		Description: "Introduce the transcription bot.",
	}, b.handleStart)

	b.router.RegisterCommand("search", &discordgo.ApplicationCommand{
		Name:        "search",
		Description: "Search your past transcriptions.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "Words to look for.",
				Required:    true,
			},
		},
	}, b.handleSearch)

	b.router.RegisterComponentPrefix(payloadPrefix+":", b.handleComponent)
}

// interactionUser returns the acting user for a guild or DM interaction.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

func (b *Bot) handleStart(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	RespondEphemeral(s, i, "Check your direct messages.")
	if err := b.handler.OnStart(ctx, user.ID); err != nil {
		slog.Error("discord: start command failed", "user_id", user.ID, "err", err)
	}
}

func (b *Bot) handleSearch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == nil {
		return
	}
	data := i.ApplicationCommandData()
	var query string
	for _, opt := range data.Options {
		if opt.Name == "query" {
			query = opt.StringValue()
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	RespondEphemeral(s, i, "Check your direct messages.")
	if err := b.handler.OnSearch(ctx, user.ID, query); err != nil {
		slog.Error("discord: search command failed", "user_id", user.ID, "err", err)
	}
}

// handleComponent dispatches a button press. The custom ID is parsed
// strictly; anything this codec did not produce reaches the handler as a
// malformed action.
func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	// Acknowledge the press without altering the message.
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		slog.Warn("discord: failed to ack component", "err", err)
	}

	payload, err := ParsePayload(i.MessageComponentData().CustomID)
	if err != nil {
		slog.Warn("discord: rejecting component payload", "user_id", user.ID, "err", err)
		if err := b.handler.OnMalformedAction(ctx, user.ID); err != nil {
			slog.Error("discord: malformed-action reply failed", "user_id", user.ID, "err", err)
		}
		return
	}

	if err := b.handler.OnEditRequest(ctx, user.ID, payload.TranscriptionID); err != nil {
		slog.Error("discord: edit request failed",
			"user_id", user.ID,
			"transcription_id", payload.TranscriptionID,
			"err", err,
		)
	}
}

// onMessageCreate routes an inbound message: voice attachments become
// transcription requests, plain text feeds the edit flow.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if att := voiceAttachment(m.Attachments); att != nil {
		b.handleVoiceMessage(ctx, m.Author.ID, att)
		return
	}

	if text := strings.TrimSpace(m.Content); text != "" {
		if err := b.handler.OnText(ctx, m.Author.ID, text); err != nil {
			slog.Error("discord: text message failed", "user_id", m.Author.ID, "err", err)
		}
	}
}

// voiceAttachment returns the first audio attachment, or nil.
func voiceAttachment(atts []*discordgo.MessageAttachment) *discordgo.MessageAttachment {
	for _, att := range atts {
		if strings.HasPrefix(att.ContentType, "audio/") ||
			strings.EqualFold(path.Ext(att.Filename), ".ogg") {
			return att
		}
	}
	return nil
}

// handleVoiceMessage downloads and decodes the voice note, then hands the
// clip to the orchestrator. Download or decode failures never reach the
// recogniser; the user gets the generic failure reply.
func (b *Bot) handleVoiceMessage(ctx context.Context, userID string, att *discordgo.MessageAttachment) {
	clip, err := b.fetchClip(ctx, att)
	if err != nil {
		slog.Error("discord: failed to prepare voice note",
			"user_id", userID,
			"filename", att.Filename,
			"err", err,
		)
		if err := b.messenger.SendText(ctx, userID, bot.MsgProcessingFailed); err != nil {
			slog.Warn("discord: failed to send reply", "user_id", userID, "err", err)
		}
		return
	}

	if err := b.handler.OnVoice(ctx, userID, clip); err != nil {
		slog.Error("discord: voice message failed", "user_id", userID, "err", err)
	}
}

// fetchClip downloads the attachment and decodes it into recogniser-ready
// mono PCM, keeping the original container bytes for storage.
func (b *Bot) fetchClip(ctx context.Context, att *discordgo.MessageAttachment) (transcribe.Clip, error) {
	raw, err := b.download(ctx, att.URL)
	if err != nil {
		return transcribe.Clip{}, err
	}

	decoded, err := audio.DecodeOggOpus(raw)
	if err != nil {
		return transcribe.Clip{}, err
	}

	ext := strings.TrimPrefix(path.Ext(att.Filename), ".")
	if ext == "" {
		ext = "ogg"
	}
	return transcribe.Clip{
		PCM:          audio.DownmixResample(decoded, whisperSampleRate),
		SampleRate:   whisperSampleRate,
		Container:    raw,
		ContainerExt: ext,
	}, nil
}

// maxAttachmentSize rejects anything beyond Discord's voice-note limits.
const maxAttachmentSize = 25 << 20

func (b *Bot) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("discord: build download request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discord: download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discord: download attachment: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentSize+1))
	if err != nil {
		return nil, fmt.Errorf("discord: read attachment: %w", err)
	}
	if len(data) > maxAttachmentSize {
		return nil, fmt.Errorf("discord: attachment exceeds %d bytes", maxAttachmentSize)
	}
	return data, nil
}
