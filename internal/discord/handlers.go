package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/guildtools/guildbank/internal/metrics"
	"github.com/guildtools/guildbank/internal/reconcile"
	"github.com/guildtools/guildbank/internal/split"
	"github.com/guildtools/guildbank/internal/storage"
)

const historyLimit = 10

func (g *Gateway) handleRegistro(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := commandOptions(i)["nombre"].StringValue()
	if err := g.ledger.Register(ctx, interactionUser(i).ID, name); err != nil {
		g.fail(s, i, cmdRegistro, err)
		return
	}
	replyEphemeral(s, i, fmt.Sprintf("✅ Registrado exitosamente como **%s**.", name))
}

func (g *Gateway) handlePerfil(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	user, err := g.ledger.Profile(ctx, interactionUser(i).ID)
	if errors.Is(err, storage.ErrUnknownUser) {
		replyEphemeral(s, i, "❌ No estás registrado. Usa `/registro`.")
		return
	}
	if err != nil {
		g.fail(s, i, cmdPerfil, err)
		return
	}
	respond(s, i, &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{profileEmbed(interactionUser(i).Username, user)},
	})
}

func (g *Gateway) handleHistorial(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := interactionUser(i).ID
	user, err := g.ledger.Profile(ctx, userID)
	if errors.Is(err, storage.ErrUnknownUser) {
		replyEphemeral(s, i, "❌ No estás registrado. Usa `/registro`.")
		return
	}
	if err != nil {
		g.fail(s, i, cmdHistorial, err)
		return
	}
	entries, err := g.ledger.RecentHistory(ctx, userID, historyLimit)
	if err != nil {
		g.fail(s, i, cmdHistorial, err)
		return
	}
	respond(s, i, &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{historyEmbed(user, entries)},
		Flags:  discordgo.MessageFlagsEphemeral,
	})
}

func (g *Gateway) handlePagar(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := commandOptions(i)
	target := opts["usuario"].UserValue(nil)
	amount := int64(opts["monto"].FloatValue())

	mv, err := g.ledger.Debit(ctx, target.ID, amount, "Retiro en mano")
	if errors.Is(err, storage.ErrUnknownUser) {
		replyEphemeral(s, i, "❌ Este usuario no está registrado.")
		return
	}
	var insufficient *storage.InsufficientFundsError
	if errors.As(err, &insufficient) {
		replyEphemeral(s, i, fmt.Sprintf("❌ Saldo insuficiente. El usuario tiene **%s**.", formatSilver(insufficient.Balance)))
		return
	}
	if err != nil {
		g.fail(s, i, cmdPagar, err)
		return
	}
	metrics.SilverDebited.Add(float64(amount))

	name := target.ID
	if user, err := g.ledger.Profile(ctx, target.ID); err == nil {
		name = user.Name
	}
	g.auditSend(ctx, withdrawalEmbed(name, interactionUser(i).ID, mv))
	reply(s, i, fmt.Sprintf("✅ Pago registrado. Nuevo saldo de **%s**: **%s**.", name, formatSilver(mv.NewBalance)))
}

func (g *Gateway) handleSplit(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := commandOptions(i)
	amount := int64(opts["monto"].FloatValue())
	if amount <= 0 {
		replyEphemeral(s, i, "❌ El monto a repartir debe ser positivo.")
		return
	}

	data := i.ApplicationCommandData()
	var attachment *discordgo.MessageAttachment
	if data.Resolved != nil {
		attachment = data.Resolved.Attachments[opts["foto"].Value.(string)]
	}
	if attachment == nil {
		replyEphemeral(s, i, "❌ Falta la captura de pantalla.")
		return
	}

	// The announcement message is the session key, so it has to exist
	// before the session does.
	respond(s, i, &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{announcementEmbed(amount, attachment.URL)},
		Components: announcementButtons(),
	})
	msg, err := s.InteractionResponse(i.Interaction)
	if err != nil {
		slog.Error("failed to fetch split announcement", "error", err)
		return
	}
	if _, err := g.splits.Start(msg.ID, interactionUser(i).ID, amount, attachment.URL); err != nil {
		slog.Error("failed to start split", "error", err)
	}
}

func (g *Gateway) handleJoinButton(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	key := i.Message.ID
	err := g.splits.Join(ctx, key, interactionUser(i).ID)
	switch {
	case errors.Is(err, split.ErrStaleSession):
		replyEphemeral(s, i, "Sesión caducada.")
	case errors.Is(err, storage.ErrUnknownUser):
		replyEphemeral(s, i, "❌ Regístrate con `/registro` primero.")
	case errors.Is(err, split.ErrAlreadyJoined):
		replyEphemeral(s, i, "Ya estás anotado.")
	case err != nil:
		g.fail(s, i, btnJoinSplit, err)
	default:
		g.refreshRoster(ctx, i.ChannelID, i.Message, key)
		replyEphemeral(s, i, "Anotado.")
	}
}

func (g *Gateway) handleFinishButton(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	session, ok := g.registry.Get(i.Message.ID)
	if !ok {
		replyEphemeral(s, i, "Sesión caducada.")
		return
	}
	if interactionUser(i).ID != session.OwnerID {
		replyEphemeral(s, i, "Solo el dueño puede cerrar.")
		return
	}
	if len(session.Roster()) == 0 {
		replyEphemeral(s, i, "Lista vacía.")
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: modalFinalize,
			Title:    "Cierre de Reparto",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID: inputConcept,
							Label:    "Concepto (Ej: Dungeon T8)",
							Style:    discordgo.TextInputShort,
							Required: true,
						},
					},
				},
			},
		},
	})
	if err != nil {
		slog.Warn("failed to open finalize modal", "error", err)
	}
}

func (g *Gateway) handleFinalizeModal(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Message == nil {
		replyEphemeral(s, i, "Sesión caducada.")
		return
	}
	concept := i.ModalSubmitData().
		Components[0].(*discordgo.ActionsRow).
		Components[0].(*discordgo.TextInput).Value

	result, err := g.splits.Finalize(ctx, i.Message.ID, interactionUser(i).ID, concept)
	switch {
	case errors.Is(err, split.ErrStaleSession):
		replyEphemeral(s, i, "Sesión caducada.")
		return
	case errors.Is(err, split.ErrNotOwner):
		replyEphemeral(s, i, "Solo el dueño puede cerrar.")
		return
	case errors.Is(err, split.ErrEmptyRoster):
		replyEphemeral(s, i, "Lista vacía.")
		return
	case err != nil:
		g.fail(s, i, modalFinalize, err)
		return
	}

	metrics.SplitsFinalized.Inc()
	metrics.SilverCredited.Add(float64(result.Share * int64(len(result.Payouts))))

	embeds := []*discordgo.MessageEmbed{summaryEmbed(result)}
	for _, payout := range result.Payouts {
		embeds = append(embeds, payoutEmbed(payout))
	}
	g.auditSend(ctx, embeds...)

	// Replace the announcement with the closing note, dropping the buttons.
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    fmt.Sprintf("✅ Finalizado: %s", concept),
			Embeds:     []*discordgo.MessageEmbed{},
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		slog.Warn("failed to close announcement", "error", err)
	}
}

func (g *Gateway) handleExportar(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	data, err := g.reconciler.Export(ctx)
	if err != nil {
		g.fail(s, i, cmdExportar, err)
		return
	}
	respond(s, i, &discordgo.InteractionResponseData{
		Content: "📊 Aquí tienes el reporte actual:",
		Files: []*discordgo.File{{
			Name:        "balances_export.xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Reader:      bytes.NewReader(data),
		}},
	})
}

func (g *Gateway) handleImportar(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	var attachment *discordgo.MessageAttachment
	if data.Resolved != nil {
		attachment = data.Resolved.Attachments[commandOptions(i)["archivo"].Value.(string)]
	}
	if attachment == nil {
		replyEphemeral(s, i, "❌ Falta el archivo.")
		return
	}

	// Downloading and parsing the sheet can outlive the 3s interaction
	// window, so defer the reply.
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		slog.Warn("failed to defer import reply", "error", err)
		return
	}
	editReply := func(content string) {
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
			slog.Warn("failed to edit import reply", "error", err)
		}
	}

	payload, err := g.fetchAttachment(ctx, attachment.URL)
	if err != nil {
		slog.Error("failed to download import file", "error", err)
		editReply("❌ No se pudo descargar el archivo.")
		return
	}

	applied, err := g.reconciler.Import(ctx, payload)
	if errors.Is(err, reconcile.ErrUnsupportedFormat) {
		editReply("❌ Por favor sube un archivo .xlsx válido.")
		return
	}
	if err != nil {
		slog.Error("import failed", "error", err)
		metrics.CommandErrorsTotal.WithLabelValues(cmdImportar).Inc()
		editReply("❌ Algo salió mal, intenta de nuevo.")
		return
	}
	editReply(fmt.Sprintf("✅ Se han actualizado/creado **%d** registros desde el Excel.", applied))
}

func (g *Gateway) handleConfigLogs(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	channel := commandOptions(i)["canal"].ChannelValue(nil)
	if err := g.store.SetConfig(ctx, logChannelKey, channel.ID); err != nil {
		g.fail(s, i, cmdConfigLogs, err)
		return
	}
	reply(s, i, fmt.Sprintf("✅ Canal de logs establecido en <#%s>.", channel.ID))
}

// onMessage handles the owner's informal !add/!remove roster commands. The
// session is located by its organizer; unknown names are a silent no-op and
// the command message is deleted either way.
func (g *Gateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	isAdd := strings.HasPrefix(m.Content, prefixAdd)
	isRemove := strings.HasPrefix(m.Content, prefixRemove)
	if !isAdd && !isRemove {
		return
	}

	key, _, ok := g.registry.FindByOwner(m.Author.ID)
	if !ok {
		return
	}

	ctx := context.Background()
	var (
		changed bool
		err     error
	)
	if isAdd {
		changed, err = g.splits.AddByName(ctx, key, strings.TrimSpace(strings.TrimPrefix(m.Content, prefixAdd)))
	} else {
		changed, err = g.splits.RemoveByName(ctx, key, strings.TrimSpace(strings.TrimPrefix(m.Content, prefixRemove)))
	}
	if err != nil {
		slog.Warn("roster command failed", "error", err)
	}
	if changed {
		if msg, err := s.ChannelMessage(m.ChannelID, key); err == nil {
			g.refreshRoster(ctx, m.ChannelID, msg, key)
		}
	}

	if err := s.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		slog.Debug("failed to delete roster command", "error", err)
	}
}

// refreshRoster re-renders the participant field on the announcement embed.
func (g *Gateway) refreshRoster(ctx context.Context, channelID string, msg *discordgo.Message, key string) {
	names, err := g.splits.Roster(ctx, key)
	if err != nil {
		slog.Warn("failed to project roster", "error", err)
		return
	}
	if len(msg.Embeds) == 0 {
		return
	}
	embed := *msg.Embeds[0]
	embed.Fields = []*discordgo.MessageEmbedField{rosterField(names)}
	_, err = g.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel: channelID,
		ID:      msg.ID,
		Embeds:  &[]*discordgo.MessageEmbed{&embed},
	})
	if err != nil {
		slog.Warn("failed to refresh roster display", "error", err)
	}
}

// fail logs an unexpected error and reports a generic failure to the actor.
func (g *Gateway) fail(s *discordgo.Session, i *discordgo.InteractionCreate, command string, err error) {
	slog.Error("command failed", "command", command, "error", err)
	metrics.CommandErrorsTotal.WithLabelValues(command).Inc()
	replyEphemeral(s, i, "❌ Algo salió mal, intenta de nuevo.")
}

// fetchAttachment downloads an uploaded file from Discord's CDN.
func (g *Gateway) fetchAttachment(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment download returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
