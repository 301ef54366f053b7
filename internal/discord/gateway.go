// Package discord adapts the guild bank services to the Discord gateway:
// slash-command registration, button and modal interactions, the informal
// !add/!remove roster commands, and embed rendering. No business logic lives
// here; every branch delegates to the ledger, split or reconcile services.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/guildtools/guildbank/internal/ledger"
	"github.com/guildtools/guildbank/internal/metrics"
	"github.com/guildtools/guildbank/internal/reconcile"
	"github.com/guildtools/guildbank/internal/split"
	"github.com/guildtools/guildbank/internal/storage"
)

// Gateway owns the Discord session and routes inbound events to the services.
type Gateway struct {
	session    *discordgo.Session
	ledger     *ledger.Service
	splits     *split.Service
	registry   *split.Registry
	reconciler *reconcile.Reconciler
	store      storage.Store
}

// New builds the gateway. Open must be called to connect.
func New(token string, ledgerSvc *ledger.Service, splitSvc *split.Service, registry *split.Registry, reconciler *reconcile.Reconciler, store storage.Store) (*Gateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	g := &Gateway{
		session:    session,
		ledger:     ledgerSvc,
		splits:     splitSvc,
		registry:   registry,
		reconciler: reconciler,
		store:      store,
	}
	session.AddHandler(g.onReady)
	session.AddHandler(g.onInteraction)
	session.AddHandler(g.onMessage)
	return g, nil
}

// Open connects to the gateway and registers the slash commands.
func (g *Gateway) Open() error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	if _, err := g.session.ApplicationCommandBulkOverwrite(g.session.State.User.ID, "", commands); err != nil {
		g.session.Close()
		return fmt.Errorf("failed to register commands: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (g *Gateway) Close() error {
	return g.session.Close()
}

func (g *Gateway) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	slog.Info("discord gateway ready", "bot", r.User.Username, "guilds", len(r.Guilds))
}

func (g *Gateway) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		metrics.CommandsTotal.WithLabelValues(name).Inc()
		switch name {
		case cmdRegistro:
			g.handleRegistro(ctx, s, i)
		case cmdPerfil:
			g.handlePerfil(ctx, s, i)
		case cmdHistorial:
			g.handleHistorial(ctx, s, i)
		case cmdPagar:
			g.handlePagar(ctx, s, i)
		case cmdSplit:
			g.handleSplit(ctx, s, i)
		case cmdExportar:
			g.handleExportar(ctx, s, i)
		case cmdImportar:
			g.handleImportar(ctx, s, i)
		case cmdConfigLogs:
			g.handleConfigLogs(ctx, s, i)
		}

	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		metrics.CommandsTotal.WithLabelValues(customID).Inc()
		switch customID {
		case btnJoinSplit:
			g.handleJoinButton(ctx, s, i)
		case btnFinishModal:
			g.handleFinishButton(ctx, s, i)
		}

	case discordgo.InteractionModalSubmit:
		if i.ModalSubmitData().CustomID == modalFinalize {
			g.handleFinalizeModal(ctx, s, i)
		}
	}
}

// interactionUser returns the acting user for guild and DM interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

// reply sends a plain channel-visible response.
func reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	respond(s, i, &discordgo.InteractionResponseData{Content: content})
}

// replyEphemeral sends a response only the actor sees.
func replyEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	respond(s, i, &discordgo.InteractionResponseData{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		slog.Warn("failed to respond to interaction", "error", err)
	}
}

// commandOptions indexes a command's options by name.
func commandOptions(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := i.ApplicationCommandData().Options
	byName := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		byName[opt.Name] = opt
	}
	return byName
}
