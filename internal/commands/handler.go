package commands

import (
	"context"
	"strings"
	"time"

	"discord-invite-tracker/internal/approval"
	"discord-invite-tracker/internal/commands/framework"
	"discord-invite-tracker/internal/metrics"
	"discord-invite-tracker/internal/models"
	"discord-invite-tracker/internal/utils"
	"discord-invite-tracker/internal/vouch"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const genericFailure = "Something went wrong, please try again later."

// Joins lists attributed joins per inviter.
type Joins interface {
	CountJoins(ctx context.Context, inviterID string) (int, error)
	ListJoinedMembers(ctx context.Context, inviterID string, limit, offset int) ([]string, error)
}

// Members resolves current guild membership. It returns an error wrapping
// platform.ErrNotFound for users who have left.
type Members interface {
	Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error)
}

type Leaderboard interface {
	Top(ctx context.Context) ([]models.LeaderboardEntry, error)
	Invalidate(ctx context.Context)
}

type Cooldowns interface {
	Acquire(ctx context.Context, key string, d time.Duration) (time.Duration, bool, error)
}

type Config struct {
	GuildID       string
	Footer        utils.Footer
	VouchCooldown time.Duration
	// Timeout bounds the work done for one interaction.
	Timeout time.Duration
}

// Handler answers every slash command and component interaction.
type Handler struct {
	cfg         Config
	workflow    *approval.Workflow
	joins       Joins
	members     Members
	leaderboard Leaderboard
	ledger      *vouch.Ledger
	cooldowns   Cooldowns
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

type Deps struct {
	Workflow    *approval.Workflow
	Joins       Joins
	Members     Members
	Leaderboard Leaderboard
	Ledger      *vouch.Ledger
	Cooldowns   Cooldowns
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

func NewHandler(cfg Config, deps Deps) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Handler{
		cfg:         cfg,
		workflow:    deps.Workflow,
		joins:       deps.Joins,
		members:     deps.Members,
		leaderboard: deps.Leaderboard,
		ledger:      deps.Ledger,
		cooldowns:   deps.Cooldowns,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
}

// HandleInteraction routes an interaction to its command or component
// handler.
func (h *Handler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Timeout)
	defer cancel()
	fc := framework.NewSlashContext(s, i)

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		start := time.Now()
		h.Command(ctx, fc, data)
		h.metrics.ObserveCommand(data.Name, time.Since(start).Seconds())
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		h.Component(ctx, fc, data.CustomID, data.Values)
	}
}

// Command runs the named slash command.
func (h *Handler) Command(ctx context.Context, fc framework.Context, data discordgo.ApplicationCommandInteractionData) {
	opts := optionMap(data.Options)

	switch data.Name {
	case "register":
		h.RegisterCmd(ctx, fc, opts.str("invite_link"))
	case "request_invite":
		h.RequestInviteCmd(ctx, fc)
	case "set_log_channel":
		h.SetLogChannelCmd(ctx, fc, opts.snowflake("channel"))
	case "invites":
		h.InvitesCmd(ctx, fc)
	case "leaderboard":
		h.LeaderboardCmd(ctx, fc)
	case "reset_invites":
		h.ResetInvitesCmd(ctx, fc, opts.snowflake("user"))
	case "unregister":
		h.UnregisterCmd(ctx, fc, opts.snowflake("user"))
	case "invite_list":
		h.InviteListCmd(ctx, fc)
	case "pending_requests":
		h.PendingRequestsCmd(ctx, fc)
	case "vouch":
		var proof *discordgo.MessageAttachment
		if id := opts.snowflake("proof"); id != "" && data.Resolved != nil {
			proof = data.Resolved.Attachments[id]
		}
		h.VouchCmd(ctx, fc, int(opts.integer("stars")), opts.str("message"), proof)
	case "restore_vouches":
		h.RestoreVouchesCmd(ctx, fc)
	default:
		h.logger.Debug("unknown command", zap.String("command", data.Name))
	}
}

// Component runs the handler for a button or select menu.
func (h *Handler) Component(ctx context.Context, fc framework.Context, customID string, values []string) {
	switch {
	case strings.HasPrefix(customID, approval.RegisterApprovePrefix):
		h.RegistrationDecision(ctx, fc, strings.TrimPrefix(customID, approval.RegisterApprovePrefix), true)
	case strings.HasPrefix(customID, approval.RegisterDenyPrefix):
		h.RegistrationDecision(ctx, fc, strings.TrimPrefix(customID, approval.RegisterDenyPrefix), false)
	case strings.HasPrefix(customID, approval.NewInviteApprovePrefix):
		h.NewInviteDecision(ctx, fc, strings.TrimPrefix(customID, approval.NewInviteApprovePrefix), true)
	case strings.HasPrefix(customID, approval.NewInviteDenyPrefix):
		h.NewInviteDecision(ctx, fc, strings.TrimPrefix(customID, approval.NewInviteDenyPrefix), false)
	case strings.HasPrefix(customID, invitesPagePrefix):
		h.InvitesPage(ctx, fc, customID)
	case strings.HasPrefix(customID, vouchesPagePrefix):
		h.VouchesPage(ctx, fc, customID)
	case customID == inviteRemoveID:
		h.RemoveInviteSelect(ctx, fc, values)
	default:
		h.logger.Debug("unknown component", zap.String("custom_id", customID))
	}
}

// fail logs err and tells the user something went wrong.
func (h *Handler) fail(fc framework.Context, action string, err error) {
	h.logger.Error(action+" failed",
		zap.String("user_id", fc.GetAuthor().ID),
		zap.Error(err),
	)
	if err := fc.ReplyEphemeral(utils.EmojiCross + " " + genericFailure); err != nil {
		h.logger.Warn("failed to send error response", zap.Error(err))
	}
}

// failDeferred is fail for interactions that were already acknowledged.
func (h *Handler) failDeferred(fc framework.Context, action string, err error) {
	h.logger.Error(action+" failed",
		zap.String("user_id", fc.GetAuthor().ID),
		zap.Error(err),
	)
	h.followupEphemeral(fc, utils.EmojiCross+" "+genericFailure)
}

func (h *Handler) followupEphemeral(fc framework.Context, content string) {
	if err := fc.FollowupEphemeral(content); err != nil {
		h.logger.Warn("failed to send followup", zap.Error(err))
	}
}

func (h *Handler) edit(fc framework.Context, content string) {
	if err := fc.Edit(content, nil, nil); err != nil {
		h.logger.Warn("failed to edit message", zap.Error(err))
	}
}

func (h *Handler) reply(fc framework.Context, content string) {
	if err := fc.Reply(content); err != nil {
		h.logger.Warn("failed to respond to interaction", zap.Error(err))
	}
}

func (h *Handler) replyEphemeral(fc framework.Context, content string) {
	if err := fc.ReplyEphemeral(content); err != nil {
		h.logger.Warn("failed to respond to interaction", zap.Error(err))
	}
}

func (h *Handler) update(fc framework.Context, content string, embeds []*discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	if err := fc.Update(content, embeds, components); err != nil {
		h.logger.Warn("failed to update message", zap.Error(err))
	}
}

// ownerOnly answers with a permission error when the author is not the
// configured owner.
func (h *Handler) ownerOnly(fc framework.Context) bool {
	if h.workflow.IsOwner(fc.GetAuthor().ID) {
		return true
	}
	if err := fc.ReplyEmbed(utils.ErrorEmbed("You do not have permission to use this command.")); err != nil {
		h.logger.Warn("failed to respond to interaction", zap.Error(err))
	}
	return false
}

func (h *Handler) guildID(fc framework.Context) string {
	if id := fc.GetGuildID(); id != "" {
		return id
	}
	return h.cfg.GuildID
}
