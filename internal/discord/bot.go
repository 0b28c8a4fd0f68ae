// Package discord provides the Discord transport for Vocalis. It owns the
// discordgo.Session lifecycle, routes messages and interactions to the
// session orchestrator, and delivers replies as direct messages.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/vocalis/internal/transcribe"
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token (e.g., "MTIz...").
	Token string `yaml:"token"`

	// GuildID is the guild slash commands are registered to. Empty
	// registers them globally.
	GuildID string `yaml:"guild_id"`
}

// Handler receives the decoded transport events. Implemented by
// *bot.Orchestrator.
type Handler interface {
	OnStart(ctx context.Context, userID string) error
	OnVoice(ctx context.Context, userID string, clip transcribe.Clip) error
	OnEditRequest(ctx context.Context, userID, transcriptionID string) error
	OnText(ctx context.Context, userID, text string) error
	OnMalformedAction(ctx context.Context, userID string) error
	OnSearch(ctx context.Context, userID, query string) error
}

// Bot owns the Discord gateway connection and routes messages and
// interactions to the handler.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	handler   Handler
	messenger *Messenger
	router    *CommandRouter
	guildID   string
	commands  []*discordgo.ApplicationCommand
	http      *http.Client
	closeOnce sync.Once
}

// New creates a Bot without connecting. The gateway connection is deferred
// to [Bot.Connect] so the caller can build the event handler around
// [Bot.Messenger] first.
func New(cfg Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsDirectMessages |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	return &Bot{
		session:   session,
		messenger: NewMessenger(session),
		router:    NewCommandRouter(),
		guildID:   cfg.GuildID,
		http:      &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Connect installs handler, registers the gateway event handlers, and opens
// the connection.
func (b *Bot) Connect(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("discord: handler must not be nil")
	}

	b.mu.Lock()
	b.handler = handler
	b.mu.Unlock()
	b.registerRoutes()

	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.onMessageCreate(s, m)
	})
	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	return nil
}

// Messenger returns the reply sender bound to this bot's session.
func (b *Bot) Messenger() *Messenger {
	return b.messenger
}

// Session returns the underlying discordgo session.
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// Run registers slash commands with the Discord API and blocks until ctx is
// cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, cmds)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		slog.Info("discord commands registered", "count", len(registered))
	}

	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord and unregisters commands.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil && len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}

		slog.Info("discord bot closed")
	})
	return closeErr
}
