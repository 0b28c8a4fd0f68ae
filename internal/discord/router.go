package discord

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/vocalis/internal/bot"
)

// HandlerFunc is the signature for slash command and component handlers.
type HandlerFunc func(s *discordgo.Session, i *discordgo.InteractionCreate)

// commandEntry stores a command definition along with its handler.
type commandEntry struct {
	command *discordgo.ApplicationCommand
	handler HandlerFunc
}

// CommandRouter dispatches Discord interactions to registered handlers.
type CommandRouter struct {
	mu              sync.RWMutex
	commands        map[string]commandEntry // command name → entry
	componentPrefix map[string]HandlerFunc  // custom_id prefix → handler
}

// NewCommandRouter creates an empty router.
func NewCommandRouter() *CommandRouter {
	return &CommandRouter{
		commands:        make(map[string]commandEntry),
		componentPrefix: make(map[string]HandlerFunc),
	}
}

// RegisterCommand registers a handler for a slash command. The cmd
// definition is used when registering commands with Discord.
func (r *CommandRouter) RegisterCommand(name string, cmd *discordgo.ApplicationCommand, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = commandEntry{command: cmd, handler: handler}
}

// RegisterComponentPrefix registers a handler that matches any component
// whose custom_id starts with the given prefix. Component payloads carry a
// dynamic suffix, so exact matching is not useful here.
func (r *CommandRouter) RegisterComponentPrefix(prefix string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.componentPrefix[prefix] = handler
}

// ApplicationCommands returns the list of command definitions for
// registration with the Discord API.
func (r *CommandRouter) ApplicationCommands() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var cmds []*discordgo.ApplicationCommand
	for _, entry := range r.commands {
		if entry.command != nil {
			cmds = append(cmds, entry.command)
		}
	}
	return cmds
}

// Handle dispatches an interaction to the appropriate handler.
func (r *CommandRouter) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		r.handleApplicationCommand(s, i)

	case discordgo.InteractionMessageComponent:
		r.handleComponent(s, i)

	default:
		slog.Warn("discord: unhandled interaction type", "type", i.Type)
	}
}

func (r *CommandRouter) handleApplicationCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name

	r.mu.RLock()
	entry, ok := r.commands[name]
	r.mu.RUnlock()

	if !ok {
		slog.Warn("discord: unknown command", "name", name)
		RespondEphemeral(s, i, "Unknown command.")
		return
	}
	entry.handler(s, i)
}

func (r *CommandRouter) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID

	r.mu.RLock()
	var handler HandlerFunc
	var ok bool
	for prefix, h := range r.componentPrefix {
		if strings.HasPrefix(customID, prefix) {
			handler = h
			ok = true
			break
		}
	}
	r.mu.RUnlock()

	if !ok {
		slog.Warn("discord: unknown component", "custom_id", customID)
		RespondEphemeral(s, i, bot.MsgInvalidAction)
		return
	}
	handler(s, i)
}
