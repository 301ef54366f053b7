package discord

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// logChannelKey is the config key holding the audit-channel ID.
const logChannelKey = "log_channel"

// auditSend delivers an embed to the configured audit channel. When no
// channel is configured the embed is dropped silently; a delivery failure is
// logged but never fails the command that triggered it.
func (g *Gateway) auditSend(ctx context.Context, embeds ...*discordgo.MessageEmbed) {
	channelID, err := g.store.GetConfig(ctx, logChannelKey)
	if err != nil {
		slog.Warn("failed to read audit channel", "error", err)
		return
	}
	if channelID == "" {
		return
	}
	for _, embed := range embeds {
		if _, err := g.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
			slog.Warn("failed to send audit embed", "channel_id", channelID, "error", err)
		}
	}
}
