package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/guildtools/guildbank/internal/ledger"
	"github.com/guildtools/guildbank/internal/models"
	"github.com/guildtools/guildbank/internal/split"
)

// Embed colors, one per message kind.
const (
	colorProfile      = 0x00ff00
	colorAnnouncement = 0xffa500
	colorWithdrawal   = 0xe74c3c
	colorSummary      = 0x3498db
	colorPayout       = 0x2ecc71
)

// silver renders amounts with thousands separators, the way the guild reads
// them in-game.
var silver = message.NewPrinter(language.Spanish)

func formatSilver(n int64) string {
	return silver.Sprintf("%d", n)
}

func profileEmbed(username string, user *models.User) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Banco de %s", username),
		Color: colorProfile,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Personaje Albion", Value: user.Name, Inline: true},
			{Name: "Balance Actual", Value: "💰 " + formatSilver(user.Balance), Inline: true},
		},
	}
}

func historyEmbed(user *models.User, entries []models.HistoryEntry) *discordgo.MessageEmbed {
	var sb strings.Builder
	for _, e := range entries {
		sign := "+"
		if e.Amount < 0 {
			sign = "-"
		}
		fmt.Fprintf(&sb, "`%s` %s%s — %s\n",
			e.Date.Format("02/01/2006"), sign, formatSilver(abs(e.Amount)), e.Reason)
	}
	if sb.Len() == 0 {
		sb.WriteString("Sin movimientos todavía.")
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Movimientos de %s", user.Name),
		Description: sb.String(),
		Color:       colorProfile,
	}
}

func announcementEmbed(total int64, evidenceURL string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "💰 Nuevo Reparto Iniciado",
		Description: fmt.Sprintf(
			"**Monto Total:** %s\n\n*Inscríbanse o esperen a ser agregados por el líder.*",
			formatSilver(total)),
		Color:  colorAnnouncement,
		Image:  &discordgo.MessageEmbedImage{URL: evidenceURL},
		Fields: []*discordgo.MessageEmbedField{rosterField(nil)},
	}
}

// rosterField projects the roster names into the announcement's participant
// field, in join order.
func rosterField(names []string) *discordgo.MessageEmbedField {
	value := "Lista vacía"
	if len(names) > 0 {
		lines := make([]string, len(names))
		for i, name := range names {
			lines[i] = "- " + name
		}
		value = strings.Join(lines, "\n")
	}
	return &discordgo.MessageEmbedField{
		Name:  fmt.Sprintf("Participantes (%d)", len(names)),
		Value: value,
	}
}

func announcementButtons() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{CustomID: btnJoinSplit, Label: "Unirme", Style: discordgo.PrimaryButton},
				discordgo.Button{CustomID: btnFinishModal, Label: "Finalizar", Style: discordgo.SuccessButton},
			},
		},
	}
}

func withdrawalEmbed(name, adminID string, mv *ledger.Movement) *discordgo.MessageEmbed {
	now := time.Now()
	return &discordgo.MessageEmbed{
		Title:       "💸 Retiro de Saldo Registrado",
		Description: "Se ha descontado saldo tras entrega física de monedas.",
		Color:       colorWithdrawal,
		Timestamp:   now.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Jugador", Value: name, Inline: true},
			{Name: "Admin", Value: fmt.Sprintf("<@%s>", adminID), Inline: true},
			{Name: "Transacción", Value: fmt.Sprintf("`%s` - `%s` = **%s**",
				formatSilver(mv.OldBalance), formatSilver(mv.Amount), formatSilver(mv.NewBalance))},
		},
	}
}

func summaryEmbed(result *split.FinalizeResult) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     "📊 Resumen de Split",
		Color:     colorSummary,
		Timestamp: time.Now().Format(time.RFC3339),
		Image:     &discordgo.MessageEmbedImage{URL: result.EvidenceURL},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Concepto", Value: result.Concept},
			{Name: "Total", Value: formatSilver(result.Total), Inline: true},
			{Name: "C/U", Value: formatSilver(result.Share), Inline: true},
			{Name: "N°", Value: fmt.Sprintf("%d", len(result.Payouts)+len(result.Failed)), Inline: true},
		},
	}
	if len(result.Failed) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "⚠️ Pagos fallidos",
			Value: strings.Join(result.Failed, ", "),
		})
	}
	return embed
}

func payoutEmbed(p split.Payout) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{Name: "Abono: " + p.Name},
		Color:  colorPayout,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Cálculo", Value: fmt.Sprintf("`%s` + `%s` = **%s**",
				formatSilver(p.OldBalance), formatSilver(p.Amount), formatSilver(p.NewBalance))},
		},
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
