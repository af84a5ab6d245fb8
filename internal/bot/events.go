package bot

import (
	"context"
	"log"
	"time"

	"discord-invite-tracker/internal/commands"
	"discord-invite-tracker/internal/platform"
	"discord-invite-tracker/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func (b *Bot) eventContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.cfg.Timeout)
}

func (b *Bot) Ready(s *discordgo.Session, r *discordgo.Ready) {
	b.metrics.Event("ready")
	// Manually populate state user since state tracking is disabled
	if s.State.User == nil {
		s.State.User = r.User
	}
	log.Printf("Logged in as: %v", r.User.Username)
	log.Printf("Serving %d guilds", len(r.Guilds))

	if _, err := s.ApplicationCommandBulkOverwrite(r.User.ID, b.cfg.GuildID, commands.Commands); err != nil {
		b.logger.Error("failed to register commands", zap.String("guild_id", b.cfg.GuildID), zap.Error(err))
	} else {
		log.Printf("✓ Registered %d commands for guild %s", len(commands.Commands), b.cfg.GuildID)
	}

	ids := make([]string, len(r.Guilds))
	for i, g := range r.Guilds {
		ids[i] = g.ID
	}
	b.warm(ids)
}

// warm loads the invite snapshot of every guild, a few at a time. A guild
// that fails keeps no snapshot and is retried on its next invite event.
func (b *Bot) warm(guildIDs []string) {
	var g errgroup.Group
	g.SetLimit(warmupConcurrency)
	for _, id := range guildIDs {
		g.Go(func() error {
			ctx, cancel := b.eventContext()
			defer cancel()
			snap, err := b.engine.Refresh(ctx, id)
			if err != nil {
				b.logger.Warn("snapshot warm-up failed", zap.String("guild_id", id), zap.Error(err))
				return nil
			}
			b.logger.Debug("snapshot loaded", zap.String("guild_id", id), zap.Int("invites", len(snap)))
			return nil
		})
	}
	g.Wait()
}

// GuildCreate fires for every guild after ready and when the bot joins a new
// one. Guilds already warmed are skipped.
func (b *Bot) GuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.metrics.Event("guild_create")
	if b.engine.Snapshot(g.ID) != nil {
		return
	}
	b.refresh(g.ID, "guild_create")
}

func (b *Bot) GuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	b.metrics.Event("guild_delete")
	// Outages also arrive as GuildDelete.
	if g.Unavailable {
		return
	}
	b.engine.Forget(g.ID)
	b.logger.Info("left guild", zap.String("guild_id", g.ID))
}

func (b *Bot) InviteCreate(s *discordgo.Session, i *discordgo.InviteCreate) {
	b.metrics.Event("invite_create")
	b.refresh(i.GuildID, "invite_create")
}

func (b *Bot) InviteDelete(s *discordgo.Session, i *discordgo.InviteDelete) {
	b.metrics.Event("invite_delete")
	b.refresh(i.GuildID, "invite_delete")
}

func (b *Bot) refresh(guildID, cause string) {
	if guildID == "" {
		return
	}
	ctx, cancel := b.eventContext()
	defer cancel()
	if _, err := b.engine.Refresh(ctx, guildID); err != nil {
		b.logger.Warn("snapshot refresh failed",
			zap.String("guild_id", guildID),
			zap.String("cause", cause),
			zap.Error(err),
		)
	}
}

func (b *Bot) GuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	b.metrics.Event("guild_member_add")
	ctx, cancel := b.eventContext()
	defer cancel()
	b.memberJoined(ctx, m.Member)
}

// memberJoined attributes the join and posts it to the log channel.
func (b *Bot) memberJoined(ctx context.Context, m *discordgo.Member) {
	if m == nil || m.User == nil || m.User.Bot {
		return
	}
	at, err := b.engine.Attribute(ctx, m.GuildID, m.User.ID)
	if err != nil {
		b.logger.Warn("join attribution failed",
			zap.String("guild_id", m.GuildID),
			zap.String("member_id", m.User.ID),
			zap.Error(err),
		)
		return
	}
	if at == nil {
		return
	}
	if at.Recorded && b.leaderboard != nil {
		b.leaderboard.Invalidate(ctx)
	}

	channelID, err := b.workflow.LogChannel(ctx)
	if err != nil {
		b.logger.Warn("log channel lookup failed", zap.Error(err))
		return
	}
	if channelID == "" {
		return
	}

	credited := at.PlatformInviterID
	if credited == "" {
		credited = at.InviterID
	}
	embed := utils.JoinLogEmbed(at.MemberID, m.AvatarURL(""), at.Code, credited, at.JoinedAt, b.cfg.Footer)
	if err := b.client.SendChannelMessage(ctx, channelID, platform.Message{Embeds: []*discordgo.MessageEmbed{embed}}); err != nil {
		b.logger.Warn("join log not posted",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
	}
}

func (b *Bot) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.metrics.Event("interaction_create")
	start := time.Now()
	b.handler.HandleInteraction(s, i)
	if d := time.Since(start); d > 2*time.Second {
		b.logger.Warn("slow interaction", zap.Duration("took", d), zap.String("type", i.Type.String()))
	}
}
