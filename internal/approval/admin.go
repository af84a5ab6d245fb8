package approval

import (
	"context"
	"fmt"

	"discord-invite-tracker/internal/models"

	"go.uber.org/zap"
)

// ResetInviter deletes the inviter's registration and every join credited to
// them.
func (w *Workflow) ResetInviter(ctx context.Context, actorID, inviterID string) error {
	if err := w.requireOwner(actorID); err != nil {
		return err
	}
	if err := w.store.ResetInviter(ctx, inviterID); err != nil {
		return fmt.Errorf("reset inviter %s: %w", inviterID, err)
	}
	w.logger.Info("inviter reset", zap.String("inviter_id", inviterID))
	return nil
}

// Unregister deletes the inviter's registration and keeps their joins.
func (w *Workflow) Unregister(ctx context.Context, actorID, inviterID string) error {
	if err := w.requireOwner(actorID); err != nil {
		return err
	}
	deleted, err := w.store.DeleteRegisteredInvite(ctx, inviterID)
	if err != nil {
		return fmt.Errorf("unregister %s: %w", inviterID, err)
	}
	if !deleted {
		return ErrNotRegistered
	}
	w.logger.Info("invite unregistered", zap.String("inviter_id", inviterID))
	return nil
}

// RemoveRegisteredInvite deletes the registration only if it still binds
// inviterID to code.
func (w *Workflow) RemoveRegisteredInvite(ctx context.Context, actorID, inviterID, code string) error {
	if err := w.requireOwner(actorID); err != nil {
		return err
	}
	deleted, err := w.store.DeleteRegisteredInviteExact(ctx, inviterID, code)
	if err != nil {
		return fmt.Errorf("remove invite %s: %w", code, err)
	}
	if !deleted {
		return ErrNotRegistered
	}
	w.logger.Info("registered invite removed",
		zap.String("inviter_id", inviterID),
		zap.String("code", code),
	)
	return nil
}

func (w *Workflow) ListRegistered(ctx context.Context, actorID string) ([]models.RegisteredInvite, error) {
	if err := w.requireOwner(actorID); err != nil {
		return nil, err
	}
	invites, err := w.store.ListRegisteredInvites(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registered invites: %w", err)
	}
	return invites, nil
}

// SetLogChannel sets the join log channel. An empty channelID turns join
// logging off.
func (w *Workflow) SetLogChannel(ctx context.Context, actorID, channelID string) error {
	if err := w.requireOwner(actorID); err != nil {
		return err
	}
	if channelID == "" {
		if err := w.store.DeleteSetting(ctx, models.SettingLogChannel); err != nil {
			return fmt.Errorf("clear log channel: %w", err)
		}
		w.logger.Info("log channel cleared")
		return nil
	}
	if err := w.store.SetSetting(ctx, models.SettingLogChannel, channelID); err != nil {
		return fmt.Errorf("set log channel: %w", err)
	}
	w.logger.Info("log channel set", zap.String("channel_id", channelID))
	return nil
}

// LogChannel returns the join log channel, or "" when logging is off.
func (w *Workflow) LogChannel(ctx context.Context) (string, error) {
	channelID, ok, err := w.store.GetSetting(ctx, models.SettingLogChannel)
	if err != nil {
		return "", fmt.Errorf("get log channel: %w", err)
	}
	if !ok {
		return "", nil
	}
	return channelID, nil
}
