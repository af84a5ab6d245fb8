package commands

import (
	"context"
	"errors"
	"fmt"

	"discord-invite-tracker/internal/approval"
	"discord-invite-tracker/internal/commands/framework"
	"discord-invite-tracker/internal/database"
	"discord-invite-tracker/internal/platform"
	"discord-invite-tracker/internal/utils"

	"go.uber.org/zap"
)

func registrationError(err error) (string, bool) {
	switch {
	case errors.Is(err, approval.ErrInvalidLink):
		return "Invalid invite link format.", true
	case errors.Is(err, approval.ErrInviteNotFound):
		return "Invite link not found.", true
	case errors.Is(err, approval.ErrForeignInvite):
		return "Invalid invite link for this server.", true
	case errors.Is(err, approval.ErrApproverUnreachable):
		return "Owner not found. Cannot request approval.", true
	case errors.Is(err, approval.ErrDuplicateRequest):
		return "You already have a pending invite request.", true
	}
	return "", false
}

// RegisterCmd asks the owner to track an existing invite link for the author.
// Resolving the link can be slow, so the reply is deferred.
func (h *Handler) RegisterCmd(ctx context.Context, fc framework.Context, link string) {
	if err := fc.Defer(); err != nil {
		h.logger.Warn("failed to defer register", zap.Error(err))
		return
	}

	author := fc.GetAuthor()
	msg := utils.EmojiTick + " Your invite request has been sent to the owner for approval."
	if _, err := h.workflow.RequestRegistration(ctx, author.ID, author.String(), link); err != nil {
		text, known := registrationError(err)
		if !known {
			h.logger.Error("registration request failed", zap.String("user_id", author.ID), zap.Error(err))
			text = genericFailure
		}
		msg = text
	}
	if err := fc.Followup(msg); err != nil {
		h.logger.Warn("failed to send register followup", zap.Error(err))
	}
}

func (h *Handler) RequestInviteCmd(ctx context.Context, fc framework.Context) {
	author := fc.GetAuthor()
	if err := h.workflow.RequestNewInvite(ctx, author.ID); err != nil {
		if text, known := registrationError(err); known {
			h.reply(fc, text)
			return
		}
		h.fail(fc, "invite request", err)
		return
	}
	h.reply(fc, utils.EmojiTick+" Your request has been sent to the owner for approval.")
}

// RegistrationDecision handles the owner's Approve/Deny on a registration
// prompt sent by DM. Approving refreshes the snapshot and DMs the requester,
// so the button is acknowledged first and the prompt edited afterwards.
func (h *Handler) RegistrationDecision(ctx context.Context, fc framework.Context, promptID string, approve bool) {
	verb := "deny"
	decide := h.workflow.Deny
	if approve {
		verb = "approve"
		decide = h.workflow.Approve
	}
	if !h.decisionStarted(fc, verb) {
		return
	}

	p, err := decide(ctx, fc.GetAuthor().ID, promptID)
	switch {
	case err == nil:
	case errors.Is(err, approval.ErrPermission):
		h.followupEphemeral(fc, fmt.Sprintf("You are not allowed to %s this.", verb))
		return
	case errors.Is(err, approval.ErrExpired):
		h.edit(fc, "⌛ This registration request has expired.")
		return
	case errors.Is(err, database.ErrInviteCodeTaken):
		h.followupEphemeral(fc, utils.EmojiCross+" That invite code is already registered to another member.")
		return
	default:
		h.failDeferred(fc, "registration "+verb, err)
		return
	}

	if approve {
		h.edit(fc, fmt.Sprintf("%s Invite `%s` approved and tracked.", utils.EmojiTick, p.Code))
		return
	}
	h.edit(fc, fmt.Sprintf("%s Invite `%s` registration denied.", utils.EmojiCross, p.Code))
}

// NewInviteDecision handles the owner's Approve/Deny on a request for a
// fresh non-expiring invite. A requester who has left the guild cannot be
// approved; the request stays pending until it is denied.
func (h *Handler) NewInviteDecision(ctx context.Context, fc framework.Context, requesterID string, approve bool) {
	verb := "deny"
	if approve {
		verb = "approve"
	}
	if !h.decisionStarted(fc, verb) {
		return
	}

	actorID := fc.GetAuthor().ID
	var err error
	if approve {
		if _, merr := h.members.Member(ctx, h.cfg.GuildID, requesterID); errors.Is(merr, platform.ErrNotFound) {
			h.followupEphemeral(fc, "User not found.")
			return
		}
		_, err = h.workflow.ApproveNew(ctx, actorID, requesterID)
	} else {
		err = h.workflow.DenyNew(ctx, actorID, requesterID)
	}

	switch {
	case err == nil:
	case errors.Is(err, approval.ErrPermission):
		h.followupEphemeral(fc, fmt.Sprintf("You are not allowed to %s this.", verb))
		return
	case errors.Is(err, approval.ErrNoPendingRequest):
		h.edit(fc, fmt.Sprintf("No pending invite request for <@%s>.", requesterID))
		return
	default:
		h.failDeferred(fc, "invite request "+verb, err)
		return
	}

	if approve {
		h.edit(fc, fmt.Sprintf("%s Approved non-expiring invite for <@%s>", utils.EmojiTick, requesterID))
		return
	}
	h.edit(fc, fmt.Sprintf("%s Denied non-expiring invite for <@%s>", utils.EmojiCross, requesterID))
}

// decisionStarted turns away anyone but the owner and acknowledges the
// button for the owner.
func (h *Handler) decisionStarted(fc framework.Context, verb string) bool {
	if !h.workflow.IsOwner(fc.GetAuthor().ID) {
		h.replyEphemeral(fc, fmt.Sprintf("You are not allowed to %s this.", verb))
		return false
	}
	if err := fc.DeferUpdate(); err != nil {
		h.logger.Warn("failed to acknowledge decision", zap.Error(err))
		return false
	}
	return true
}
