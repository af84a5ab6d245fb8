package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"discord-invite-tracker/internal/approval"
	"discord-invite-tracker/internal/commands/framework"
	"discord-invite-tracker/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (h *Handler) SetLogChannelCmd(ctx context.Context, fc framework.Context, channelID string) {
	if !h.ownerOnly(fc) {
		return
	}
	if err := h.workflow.SetLogChannel(ctx, fc.GetAuthor().ID, channelID); err != nil {
		h.fail(fc, "set log channel", err)
		return
	}
	if channelID == "" {
		h.reply(fc, "Join logging disabled.")
		return
	}
	h.reply(fc, fmt.Sprintf("Log channel set to <#%s>", channelID))
}

// PendingRequestsCmd lists the members waiting on a non-expiring invite.
func (h *Handler) PendingRequestsCmd(ctx context.Context, fc framework.Context) {
	if !h.ownerOnly(fc) {
		return
	}
	reqs, err := h.workflow.PendingRequests(ctx, fc.GetAuthor().ID)
	if err != nil {
		h.fail(fc, "list invite requests", err)
		return
	}
	if len(reqs) == 0 {
		h.replyEphemeral(fc, "No pending invite requests.")
		return
	}
	lines := make([]string, len(reqs))
	for i, r := range reqs {
		lines[i] = fmt.Sprintf("<@%s> (%s)", r.RequesterID, r.Status)
	}
	h.replyEphemeral(fc, "Pending invite requests:\n"+strings.Join(lines, "\n"))
}

// ResetInvitesCmd drops a member's registration and every join credited to
// them.
func (h *Handler) ResetInvitesCmd(ctx context.Context, fc framework.Context, userID string) {
	if !h.ownerOnly(fc) {
		return
	}
	if err := h.workflow.ResetInviter(ctx, fc.GetAuthor().ID, userID); err != nil {
		h.fail(fc, "reset invites", err)
		return
	}
	h.leaderboard.Invalidate(ctx)
	h.reply(fc, fmt.Sprintf("Invite data reset for <@%s>", userID))
}

func (h *Handler) UnregisterCmd(ctx context.Context, fc framework.Context, userID string) {
	if !h.ownerOnly(fc) {
		return
	}
	err := h.workflow.Unregister(ctx, fc.GetAuthor().ID, userID)
	switch {
	case err == nil:
		h.reply(fc, fmt.Sprintf("Invite link unregistered for <@%s>", userID))
	case errors.Is(err, approval.ErrNotRegistered):
		h.reply(fc, fmt.Sprintf("<@%s> has no registered invite.", userID))
	default:
		h.fail(fc, "unregister", err)
	}
}

// InviteListCmd lists registered invites with a select menu that removes the
// chosen one.
func (h *Handler) InviteListCmd(ctx context.Context, fc framework.Context) {
	if !h.ownerOnly(fc) {
		return
	}
	invites, err := h.workflow.ListRegistered(ctx, fc.GetAuthor().ID)
	if err != nil {
		h.fail(fc, "list invites", err)
		return
	}
	if len(invites) == 0 {
		h.reply(fc, "No registered invites found.")
		return
	}

	total := len(invites)
	if total > maxListEntries {
		invites = invites[:maxListEntries]
	}
	embed := utils.InviteListEmbed(invites)
	if total > len(invites) {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Showing %d of %d invites", len(invites), total)}
	}

	options := make([]discordgo.SelectMenuOption, len(invites))
	for i, inv := range invites {
		options[i] = discordgo.SelectMenuOption{
			Label:       fmt.Sprintf("%d: %s", i+1, inv.InviteCode),
			Description: "User ID: " + inv.InviterID,
			Value:       removeValue(inv.InviterID, inv.InviteCode),
		}
	}
	minValues := 1
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    inviteRemoveID,
					Placeholder: "Select an invite to remove...",
					MinValues:   &minValues,
					MaxValues:   1,
					Options:     options,
				},
			},
		},
	}
	if err := fc.ReplyComponent(embed, components); err != nil {
		h.logger.Warn("failed to send invite list", zap.Error(err))
	}
}

func (h *Handler) RemoveInviteSelect(ctx context.Context, fc framework.Context, values []string) {
	if !h.workflow.IsOwner(fc.GetAuthor().ID) {
		h.replyEphemeral(fc, "You are not the owner.")
		return
	}
	if len(values) == 0 {
		return
	}
	inviterID, code, err := parseRemoveValue(values[0])
	if err != nil {
		h.logger.Debug("bad invite selection", zap.Error(err))
		return
	}

	err = h.workflow.RemoveRegisteredInvite(ctx, fc.GetAuthor().ID, inviterID, code)
	switch {
	case err == nil:
		h.reply(fc, fmt.Sprintf("%s Removed invite `%s` from <@%s>.", utils.EmojiTrash, code, inviterID))
	case errors.Is(err, approval.ErrNotRegistered):
		h.replyEphemeral(fc, fmt.Sprintf("Invite `%s` is no longer registered to <@%s>.", code, inviterID))
	default:
		h.fail(fc, "remove invite", err)
	}
}
