package database

import (
	"context"
	"database/sql"
	"errors"

	"discord-invite-tracker/internal/models"
)

// Invite request operations

// CreateInviteRequest inserts a pending request. It returns false without
// touching the row when the requester already has one.
func (d *Database) CreateInviteRequest(ctx context.Context, requesterID string) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		d.rebind("INSERT INTO invite_requests (requester_id, status) VALUES (?, ?) ON CONFLICT (requester_id) DO NOTHING"),
		requesterID, string(models.RequestPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (d *Database) GetInviteRequest(ctx context.Context, requesterID string) (*models.InviteRequest, error) {
	req := models.InviteRequest{RequesterID: requesterID}
	var status string
	err := d.db.QueryRowContext(ctx, d.rebind("SELECT status FROM invite_requests WHERE requester_id = ?"), requesterID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	req.Status = models.InviteRequestStatus(status)
	return &req, nil
}

// ClaimInviteRequest moves a pending request to approving. Only one caller
// can win the claim; the others get false.
func (d *Database) ClaimInviteRequest(ctx context.Context, requesterID string) (bool, error) {
	return d.setRequestStatus(ctx, requesterID, models.RequestPending, models.RequestApproving)
}

// ReleaseInviteRequest hands a claimed request back to pending.
func (d *Database) ReleaseInviteRequest(ctx context.Context, requesterID string) (bool, error) {
	return d.setRequestStatus(ctx, requesterID, models.RequestApproving, models.RequestPending)
}

func (d *Database) setRequestStatus(ctx context.Context, requesterID string, from, to models.InviteRequestStatus) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		d.rebind("UPDATE invite_requests SET status = ? WHERE requester_id = ? AND status = ?"),
		string(to), requesterID, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeletePendingInviteRequest removes the request only while it is still
// pending, so it cannot race an approval that already claimed it.
func (d *Database) DeletePendingInviteRequest(ctx context.Context, requesterID string) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		d.rebind("DELETE FROM invite_requests WHERE requester_id = ? AND status = ?"),
		requesterID, string(models.RequestPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteInviteRequest reports whether a request row was removed.
func (d *Database) DeleteInviteRequest(ctx context.Context, requesterID string) (bool, error) {
	res, err := d.db.ExecContext(ctx, d.rebind("DELETE FROM invite_requests WHERE requester_id = ?"), requesterID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListInviteRequests returns every open request, claimed ones included.
func (d *Database) ListInviteRequests(ctx context.Context) ([]models.InviteRequest, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT requester_id, status FROM invite_requests ORDER BY requester_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []models.InviteRequest
	for rows.Next() {
		var r models.InviteRequest
		var status string
		if err := rows.Scan(&r.RequesterID, &status); err != nil {
			return nil, err
		}
		r.Status = models.InviteRequestStatus(status)
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}
