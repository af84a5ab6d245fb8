package database

import (
	"context"
	"database/sql"
	"discord-invite-tracker/internal/models"
	"errors"
	"fmt"
)

// Registered invite operations

// ReplaceRegisteredInvite drops any registration the inviter already has and
// binds the new code, in one transaction.
func (d *Database) ReplaceRegisteredInvite(ctx context.Context, inviterID, code string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx, d.rebind("SELECT inviter_id FROM registered_invites WHERE invite_code = ?"), code).Scan(&owner)
		switch {
		case err == nil && owner != inviterID:
			return ErrInviteCodeTaken
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("lookup invite owner: %w", err)
		}

		if _, err := tx.ExecContext(ctx, d.rebind("DELETE FROM registered_invites WHERE inviter_id = ?"), inviterID); err != nil {
			return fmt.Errorf("delete registration: %w", err)
		}
		if _, err := tx.ExecContext(ctx, d.rebind("INSERT INTO registered_invites (inviter_id, invite_code) VALUES (?, ?)"), inviterID, code); err != nil {
			return fmt.Errorf("insert registration: %w", err)
		}
		return nil
	})
}

// GetInviterByCode returns the inviter registered for code, or "" if none.
func (d *Database) GetInviterByCode(ctx context.Context, code string) (string, error) {
	var inviterID string
	err := d.db.QueryRowContext(ctx, d.rebind("SELECT inviter_id FROM registered_invites WHERE invite_code = ?"), code).Scan(&inviterID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return inviterID, err
}

func (d *Database) GetRegisteredInvite(ctx context.Context, inviterID string) (*models.RegisteredInvite, error) {
	inv := models.RegisteredInvite{InviterID: inviterID}
	err := d.db.QueryRowContext(ctx, d.rebind("SELECT invite_code FROM registered_invites WHERE inviter_id = ?"), inviterID).Scan(&inv.InviteCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (d *Database) ListRegisteredInvites(ctx context.Context) ([]models.RegisteredInvite, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT inviter_id, invite_code FROM registered_invites ORDER BY invite_code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []models.RegisteredInvite
	for rows.Next() {
		var inv models.RegisteredInvite
		if err := rows.Scan(&inv.InviterID, &inv.InviteCode); err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

// DeleteRegisteredInvite removes the inviter's registration, reporting whether a row existed.
func (d *Database) DeleteRegisteredInvite(ctx context.Context, inviterID string) (bool, error) {
	res, err := d.db.ExecContext(ctx, d.rebind("DELETE FROM registered_invites WHERE inviter_id = ?"), inviterID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteRegisteredInviteExact removes a row only if both inviter and code still match.
func (d *Database) DeleteRegisteredInviteExact(ctx context.Context, inviterID, code string) (bool, error) {
	res, err := d.db.ExecContext(ctx, d.rebind("DELETE FROM registered_invites WHERE inviter_id = ? AND invite_code = ?"), inviterID, code)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ResetInviter deletes the inviter's registration and every join credited to them.
func (d *Database) ResetInviter(ctx context.Context, inviterID string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, d.rebind("DELETE FROM registered_invites WHERE inviter_id = ?"), inviterID); err != nil {
			return fmt.Errorf("delete registration: %w", err)
		}
		if _, err := tx.ExecContext(ctx, d.rebind("DELETE FROM joins WHERE inviter_id = ?"), inviterID); err != nil {
			return fmt.Errorf("delete joins: %w", err)
		}
		return nil
	})
}
