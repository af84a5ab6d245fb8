// Package approval decides which invite codes are tracked and who owns them.
//
// Two flows end in a registered invite. A registration prompt (the requester
// brings an existing link) lives in memory and expires; a new-invite request
// is persisted and waits for the owner indefinitely.
package approval

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"discord-invite-tracker/internal/metrics"
	"discord-invite-tracker/internal/models"
	"discord-invite-tracker/internal/platform"
	"discord-invite-tracker/internal/tracker"

	"go.uber.org/zap"
)

const (
	DefaultPromptTTL = time.Hour

	flowRegistration = "registration"
	flowNewInvite    = "new_invite"
)

var inviteLinkPattern = regexp.MustCompile(`(?i)(?:^|/|\s)(?:www\.)?(?:discord\.gg|discord(?:app)?\.com/invite)/([A-Za-z0-9-]+)`)

// Config binds the workflow to one guild and one approver.
type Config struct {
	GuildID         string
	OwnerID         string
	InviteChannelID string
	PromptTTL       time.Duration
}

// Store is the persistence the workflow needs.
type Store interface {
	ReplaceRegisteredInvite(ctx context.Context, inviterID, code string) error
	ListRegisteredInvites(ctx context.Context) ([]models.RegisteredInvite, error)
	DeleteRegisteredInvite(ctx context.Context, inviterID string) (bool, error)
	DeleteRegisteredInviteExact(ctx context.Context, inviterID, code string) (bool, error)
	ResetInviter(ctx context.Context, inviterID string) error

	CreateInviteRequest(ctx context.Context, requesterID string) (bool, error)
	ClaimInviteRequest(ctx context.Context, requesterID string) (bool, error)
	ReleaseInviteRequest(ctx context.Context, requesterID string) (bool, error)
	DeletePendingInviteRequest(ctx context.Context, requesterID string) (bool, error)
	DeleteInviteRequest(ctx context.Context, requesterID string) (bool, error)
	ListInviteRequests(ctx context.Context) ([]models.InviteRequest, error)

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// Refresher rebuilds a guild's invite snapshot.
type Refresher interface {
	Refresh(ctx context.Context, guildID string) (tracker.Snapshot, error)
}

type Workflow struct {
	cfg       Config
	client    platform.Client
	store     Store
	refresher Refresher
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	prompts *promptStore
}

func New(cfg Config, client platform.Client, store Store, refresher Refresher, logger *zap.Logger, m *metrics.Metrics) *Workflow {
	if cfg.PromptTTL <= 0 {
		cfg.PromptTTL = DefaultPromptTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		cfg:       cfg,
		client:    client,
		store:     store,
		refresher: refresher,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
		prompts:   newPromptStore(),
	}
}

// IsOwner reports whether userID may approve requests and run admin commands.
func (w *Workflow) IsOwner(userID string) bool {
	return userID != "" && userID == w.cfg.OwnerID
}

func (w *Workflow) requireOwner(actorID string) error {
	if !w.IsOwner(actorID) {
		return ErrPermission
	}
	return nil
}

// RunJanitor drops expired registration prompts until ctx is cancelled.
func (w *Workflow) RunJanitor(ctx context.Context, interval time.Duration) {
	w.prompts.janitor(ctx, interval, w.now, func(n int) {
		for i := 0; i < n; i++ {
			w.metrics.Decision(flowRegistration, "expired")
		}
		w.logger.Debug("expired registration prompts pruned", zap.Int("count", n))
	})
}

// ParseInviteLink extracts the invite code from a discord.gg or
// discord.com/invite link.
func ParseInviteLink(link string) (string, error) {
	m := inviteLinkPattern.FindStringSubmatch(link)
	if m == nil {
		return "", ErrInvalidLink
	}
	return m[1], nil
}

// RequestRegistration validates link and asks the owner to approve tracking
// it for requesterID.
func (w *Workflow) RequestRegistration(ctx context.Context, requesterID, requesterName, link string) (*Prompt, error) {
	code, err := ParseInviteLink(link)
	if err != nil {
		return nil, err
	}

	inv, err := w.client.FetchInvite(ctx, code)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("resolve invite %s: %w", code, err)
	}
	if inv.GuildID != w.cfg.GuildID || inv.InviterID == "" {
		return nil, ErrForeignInvite
	}

	p := w.prompts.add(requesterID, requesterName, inv.Code, w.now(), w.cfg.PromptTTL)
	if res := w.client.SendDirectMessage(ctx, w.cfg.OwnerID, registrationPrompt(w.cfg.OwnerID, p)); !res.Delivered {
		w.prompts.remove(p.ID)
		w.logger.Warn("registration prompt not delivered to owner",
			zap.String("requester_id", requesterID),
			zap.Error(res.Err),
		)
		return nil, ErrApproverUnreachable
	}

	w.metrics.Decision(flowRegistration, "requested")
	w.logger.Info("registration requested",
		zap.String("requester_id", requesterID),
		zap.String("code", p.Code),
		zap.String("prompt_id", p.ID),
	)
	return p, nil
}

// Approve registers the prompt's invite for its requester.
func (w *Workflow) Approve(ctx context.Context, actorID, promptID string) (*Prompt, error) {
	if err := w.requireOwner(actorID); err != nil {
		return nil, err
	}
	p, ok := w.prompts.take(promptID, w.now())
	if !ok {
		return nil, ErrExpired
	}

	if err := w.store.ReplaceRegisteredInvite(ctx, p.RequesterID, p.Code); err != nil {
		w.prompts.put(p)
		return nil, fmt.Errorf("register invite %s: %w", p.Code, err)
	}
	w.refresh(ctx)
	w.notify(ctx, p.RequesterID, registrationApproved(p.Code))

	w.metrics.Decision(flowRegistration, "approved")
	w.logger.Info("registration approved",
		zap.String("requester_id", p.RequesterID),
		zap.String("code", p.Code),
	)
	return p, nil
}

// Deny discards the prompt and tells the requester.
func (w *Workflow) Deny(ctx context.Context, actorID, promptID string) (*Prompt, error) {
	if err := w.requireOwner(actorID); err != nil {
		return nil, err
	}
	p, ok := w.prompts.take(promptID, w.now())
	if !ok {
		return nil, ErrExpired
	}
	w.notify(ctx, p.RequesterID, registrationDenied(p.Code))

	w.metrics.Decision(flowRegistration, "denied")
	w.logger.Info("registration denied",
		zap.String("requester_id", p.RequesterID),
		zap.String("code", p.Code),
	)
	return p, nil
}

// RequestNewInvite records a pending request for a fresh non-expiring invite.
func (w *Workflow) RequestNewInvite(ctx context.Context, requesterID string) error {
	created, err := w.store.CreateInviteRequest(ctx, requesterID)
	if err != nil {
		return fmt.Errorf("create invite request: %w", err)
	}
	if !created {
		return ErrDuplicateRequest
	}

	if res := w.client.SendDirectMessage(ctx, w.cfg.OwnerID, newInvitePrompt(requesterID)); !res.Delivered {
		if _, err := w.store.DeleteInviteRequest(ctx, requesterID); err != nil {
			w.logger.Error("failed to withdraw invite request", zap.String("requester_id", requesterID), zap.Error(err))
		}
		w.logger.Warn("invite request prompt not delivered to owner",
			zap.String("requester_id", requesterID),
			zap.Error(res.Err),
		)
		return ErrApproverUnreachable
	}

	w.metrics.Decision(flowNewInvite, "requested")
	w.logger.Info("new invite requested", zap.String("requester_id", requesterID))
	return nil
}

// ApproveNew creates a permanent invite, registers it for requesterID and
// returns its URL. The request is claimed before any work is done, so a
// concurrent approve or deny of the same request gets ErrNoPendingRequest.
func (w *Workflow) ApproveNew(ctx context.Context, actorID, requesterID string) (string, error) {
	if err := w.requireOwner(actorID); err != nil {
		return "", err
	}
	claimed, err := w.store.ClaimInviteRequest(ctx, requesterID)
	if err != nil {
		return "", fmt.Errorf("claim invite request: %w", err)
	}
	if !claimed {
		return "", ErrNoPendingRequest
	}

	inv, err := w.createRegistered(ctx, requesterID)
	if err != nil {
		if _, rerr := w.store.ReleaseInviteRequest(ctx, requesterID); rerr != nil {
			w.logger.Error("failed to release invite request", zap.String("requester_id", requesterID), zap.Error(rerr))
		}
		return "", err
	}
	w.refresh(ctx)
	if _, err := w.store.DeleteInviteRequest(ctx, requesterID); err != nil {
		w.logger.Error("failed to clear approved invite request", zap.String("requester_id", requesterID), zap.Error(err))
	}

	url := inv.URL()
	w.notify(ctx, requesterID, newInviteApproved(url))

	w.metrics.Decision(flowNewInvite, "approved")
	w.logger.Info("new invite approved",
		zap.String("requester_id", requesterID),
		zap.String("code", inv.Code),
	)
	return url, nil
}

func (w *Workflow) createRegistered(ctx context.Context, requesterID string) (*platform.Invite, error) {
	channelID, err := w.inviteChannel(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := w.client.CreatePermanentInvite(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("create invite in channel %s: %w", channelID, err)
	}
	if err := w.store.ReplaceRegisteredInvite(ctx, requesterID, inv.Code); err != nil {
		return nil, fmt.Errorf("register invite %s: %w", inv.Code, err)
	}
	return inv, nil
}

// DenyNew drops the pending request and tells the requester. A request
// already claimed by an approval cannot be denied.
func (w *Workflow) DenyNew(ctx context.Context, actorID, requesterID string) error {
	if err := w.requireOwner(actorID); err != nil {
		return err
	}
	deleted, err := w.store.DeletePendingInviteRequest(ctx, requesterID)
	if err != nil {
		return fmt.Errorf("clear invite request: %w", err)
	}
	if !deleted {
		return ErrNoPendingRequest
	}
	w.notify(ctx, requesterID, newInviteDenied())

	w.metrics.Decision(flowNewInvite, "denied")
	w.logger.Info("new invite denied", zap.String("requester_id", requesterID))
	return nil
}

// PendingRequests lists the open requests for a fresh invite.
func (w *Workflow) PendingRequests(ctx context.Context, actorID string) ([]models.InviteRequest, error) {
	if err := w.requireOwner(actorID); err != nil {
		return nil, err
	}
	reqs, err := w.store.ListInviteRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invite requests: %w", err)
	}
	return reqs, nil
}

func (w *Workflow) inviteChannel(ctx context.Context) (string, error) {
	if w.cfg.InviteChannelID != "" {
		return w.cfg.InviteChannelID, nil
	}
	channelID, err := w.client.DefaultInviteChannel(ctx, w.cfg.GuildID)
	if err != nil {
		return "", fmt.Errorf("find invite channel: %w", err)
	}
	return channelID, nil
}

// refresh keeps the snapshot in step with a new registration. The
// registration itself has already been stored, so a failure is only logged.
func (w *Workflow) refresh(ctx context.Context) {
	if w.refresher == nil {
		return
	}
	if _, err := w.refresher.Refresh(ctx, w.cfg.GuildID); err != nil {
		w.logger.Warn("snapshot refresh after approval failed",
			zap.String("guild_id", w.cfg.GuildID),
			zap.Error(err),
		)
	}
}

func (w *Workflow) notify(ctx context.Context, userID string, msg platform.Message) {
	res := w.client.SendDirectMessage(ctx, userID, msg)
	if res.Delivered {
		return
	}
	w.metrics.DMFailure()
	w.logger.Info("requester notification not delivered",
		zap.String("user_id", userID),
		zap.Error(res.Err),
	)
}
