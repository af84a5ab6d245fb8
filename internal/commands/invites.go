package commands

import (
	"context"
	"errors"
	"fmt"

	"discord-invite-tracker/internal/commands/framework"
	"discord-invite-tracker/internal/platform"
	"discord-invite-tracker/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// InvitesCmd shows the author the members attributed to them.
func (h *Handler) InvitesCmd(ctx context.Context, fc framework.Context) {
	author := fc.GetAuthor()
	total, err := h.joins.CountJoins(ctx, author.ID)
	if err != nil {
		h.fail(fc, "count joins", err)
		return
	}
	if total == 0 {
		h.reply(fc, "No members joined with your invite.")
		return
	}

	embed, components, err := h.invitesPage(ctx, h.guildID(fc), author, total, 0)
	if err != nil {
		h.fail(fc, "list joins", err)
		return
	}
	if err := fc.ReplyComponent(embed, components); err != nil {
		h.logger.Warn("failed to send invites page", zap.Error(err))
	}
}

// InvitesPage moves an /invites paginator. Only the member who opened it may
// page through it.
func (h *Handler) InvitesPage(ctx context.Context, fc framework.Context, customID string) {
	ownerID, page, err := parsePageID(invitesPagePrefix, customID)
	if err != nil {
		h.logger.Debug("bad invites page id", zap.String("custom_id", customID), zap.Error(err))
		return
	}
	author := fc.GetAuthor()
	if author.ID != ownerID {
		h.replyEphemeral(fc, "Not your pagination.")
		return
	}

	total, err := h.joins.CountJoins(ctx, ownerID)
	if err != nil {
		h.fail(fc, "count joins", err)
		return
	}
	embed, components, err := h.invitesPage(ctx, h.guildID(fc), author, total, page)
	if err != nil {
		h.fail(fc, "list joins", err)
		return
	}
	h.update(fc, "", []*discordgo.MessageEmbed{embed}, components)
}

func (h *Handler) invitesPage(ctx context.Context, guildID string, owner *discordgo.User, total, page int) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	pages := pageCount(total, invitesPerPage)
	page = clampPage(page, pages)

	ids, err := h.joins.ListJoinedMembers(ctx, owner.ID, invitesPerPage, page*invitesPerPage)
	if err != nil {
		return nil, nil, err
	}

	p := utils.InvitedPage{
		OwnerName: owner.Username,
		AvatarURL: owner.AvatarURL(""),
		Page:      page,
		Pages:     pages,
		Total:     total,
	}
	for _, id := range ids {
		if h.inGuild(ctx, guildID, id) {
			p.InServer = append(p.InServer, id)
		} else {
			p.Left = append(p.Left, id)
		}
	}
	return utils.InvitedEmbed(p, h.cfg.Footer), pageButtons(invitesPagePrefix, owner.ID, page, pages), nil
}

// inGuild treats lookup failures other than "unknown member" as present.
func (h *Handler) inGuild(ctx context.Context, guildID, userID string) bool {
	_, err := h.members.Member(ctx, guildID, userID)
	if err == nil {
		return true
	}
	if !errors.Is(err, platform.ErrNotFound) {
		h.logger.Warn("member lookup failed", zap.String("user_id", userID), zap.Error(err))
		return true
	}
	return false
}

func (h *Handler) LeaderboardCmd(ctx context.Context, fc framework.Context) {
	if !h.ownerOnly(fc) {
		return
	}
	entries, err := h.leaderboard.Top(ctx)
	if err != nil {
		h.fail(fc, "leaderboard", err)
		return
	}
	if len(entries) == 0 {
		h.reply(fc, "No invite data.")
		return
	}

	guildID := h.guildID(fc)
	rows := make([]utils.LeaderboardRow, len(entries))
	for i, e := range entries {
		rows[i] = utils.LeaderboardRow{InviterID: e.InviterID, Joins: e.Joins}
		m, err := h.members.Member(ctx, guildID, e.InviterID)
		switch {
		case err == nil:
			rows[i].Name = displayName(m)
		case !errors.Is(err, platform.ErrNotFound):
			h.logger.Warn("member lookup failed", zap.String("user_id", e.InviterID), zap.Error(err))
			rows[i].Name = fmt.Sprintf("<@%s>", e.InviterID)
		}
	}
	if err := fc.ReplyEmbed(utils.LeaderboardEmbed(rows, h.cfg.Footer)); err != nil {
		h.logger.Warn("failed to send leaderboard", zap.Error(err))
	}
}
