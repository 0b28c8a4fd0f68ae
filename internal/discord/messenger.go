package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/vocalis/internal/bot"
)

// Compile-time interface check.
var _ bot.Messenger = (*Messenger)(nil)

// Messenger delivers orchestrator replies as Discord direct messages. DM
// channel IDs are cached per user after the first send. Safe for
// concurrent use.
type Messenger struct {
	session *discordgo.Session

	mu       sync.Mutex
	channels map[string]string // user ID → DM channel ID
}

// NewMessenger creates a Messenger bound to session.
func NewMessenger(session *discordgo.Session) *Messenger {
	return &Messenger{
		session:  session,
		channels: make(map[string]string),
	}
}

// SendText delivers a plain text direct message.
func (m *Messenger) SendText(ctx context.Context, userID, text string) error {
	channelID, err := m.channel(userID)
	if err != nil {
		return err
	}
	if _, err := m.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send message to %s: %w", userID, err)
	}
	return nil
}

// SendTranscript delivers text together with an edit button whose payload
// carries transcriptionID.
func (m *Messenger) SendTranscript(ctx context.Context, userID, text, transcriptionID string) error {
	channelID, err := m.channel(userID)
	if err != nil {
		return err
	}

	payload := Payload{Action: ActionEdit, TranscriptionID: transcriptionID}
	msg := &discordgo.MessageSend{
		Content: text,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Edit",
						Style:    discordgo.SecondaryButton,
						CustomID: payload.Encode(),
					},
				},
			},
		},
	}
	if _, err := m.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send transcript to %s: %w", userID, err)
	}
	return nil
}

// channel resolves the DM channel for userID, creating it on first use.
func (m *Messenger) channel(userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.channels[userID]; ok {
		return id, nil
	}
	ch, err := m.session.UserChannelCreate(userID)
	if err != nil {
		return "", fmt.Errorf("discord: open DM channel with %s: %w", userID, err)
	}
	m.channels[userID] = ch.ID
	return ch.ID, nil
}
