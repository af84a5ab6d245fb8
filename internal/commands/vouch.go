package commands

import (
	"context"
	"errors"
	"fmt"
	"math"

	"discord-invite-tracker/internal/commands/framework"
	"discord-invite-tracker/internal/utils"
	"discord-invite-tracker/internal/vouch"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// VouchCmd records a rating from the author. Each rater gets one vouch per
// cooldown window.
func (h *Handler) VouchCmd(ctx context.Context, fc framework.Context, stars int, message string, proof *discordgo.MessageAttachment) {
	author := fc.GetAuthor()

	if h.cfg.VouchCooldown > 0 {
		left, ok, err := h.cooldowns.Acquire(ctx, author.ID, h.cfg.VouchCooldown)
		if err != nil {
			// Fail open.
			h.logger.Warn("vouch cooldown check failed", zap.String("user_id", author.ID), zap.Error(err))
		} else if !ok {
			h.replyEphemeral(fc, fmt.Sprintf("You're on cooldown. Try again in %.0fs.", math.Ceil(left.Seconds())))
			return
		}
	}

	in := vouch.Input{
		RaterID:   author.ID,
		RaterName: author.String(),
		Stars:     stars,
		Message:   message,
	}
	if proof != nil {
		in.ProofURL = proof.URL
		in.ProofFilename = proof.Filename
	}

	v, err := h.ledger.Record(ctx, in)
	switch {
	case err == nil:
	case errors.Is(err, vouch.ErrInvalidStars):
		h.replyEphemeral(fc, "Stars must be between 1 and 5.")
		return
	case errors.Is(err, vouch.ErrInvalidProof):
		h.replyEphemeral(fc, "Proof must be a png, jpg, or jpeg image.")
		return
	case errors.Is(err, vouch.ErrInvalidInput):
		h.replyEphemeral(fc, "Failed to save vouch: "+err.Error())
		return
	default:
		h.fail(fc, "vouch", err)
		return
	}

	if err := fc.ReplyEmbed(utils.VouchEmbed(v, author.AvatarURL(""), h.cfg.Footer)); err != nil {
		h.logger.Warn("failed to send vouch confirmation", zap.Error(err))
	}
}

// RestoreVouchesCmd lists stored vouches, newest first.
func (h *Handler) RestoreVouchesCmd(ctx context.Context, fc framework.Context) {
	if !h.workflow.IsOwner(fc.GetAuthor().ID) {
		h.replyEphemeral(fc, "You do not have permission to use this command.")
		return
	}
	content, components, empty, err := h.vouchesPage(ctx, fc.GetAuthor().ID, 0)
	if err != nil {
		h.fail(fc, "list vouches", err)
		return
	}
	if empty {
		h.replyEphemeral(fc, "No vouches found.")
		return
	}
	if err := fc.ReplyContent(content, components); err != nil {
		h.logger.Warn("failed to send vouches", zap.Error(err))
	}
}

func (h *Handler) VouchesPage(ctx context.Context, fc framework.Context, customID string) {
	viewerID, page, err := parsePageID(vouchesPagePrefix, customID)
	if err != nil {
		h.logger.Debug("bad vouches page id", zap.String("custom_id", customID), zap.Error(err))
		return
	}
	if fc.GetAuthor().ID != viewerID {
		h.replyEphemeral(fc, "Not your pagination.")
		return
	}
	content, components, empty, err := h.vouchesPage(ctx, viewerID, page)
	if err != nil {
		h.fail(fc, "list vouches", err)
		return
	}
	if empty {
		h.update(fc, "No vouches found.", nil, nil)
		return
	}
	h.update(fc, content, nil, components)
}

func (h *Handler) vouchesPage(ctx context.Context, viewerID string, page int) (string, []discordgo.MessageComponent, bool, error) {
	total, err := h.ledger.Count(ctx)
	if err != nil {
		return "", nil, false, err
	}
	if total == 0 {
		return "", nil, true, nil
	}
	pages := pageCount(total, vouchesPerPage)
	page = clampPage(page, pages)

	vouches, err := h.ledger.List(ctx, vouchesPerPage, page*vouchesPerPage)
	if err != nil {
		return "", nil, false, err
	}
	return utils.VouchesText(vouches, page, pages), pageButtons(vouchesPagePrefix, viewerID, page, pages), false, nil
}
