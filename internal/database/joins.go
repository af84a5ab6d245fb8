package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"discord-invite-tracker/internal/models"
)

// Join operations

// RecordJoin inserts the join unless the member already has one. It reports
// whether a row was written.
func (d *Database) RecordJoin(ctx context.Context, memberID, inviterID string, at time.Time) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		d.rebind("INSERT INTO joins (member_id, inviter_id, join_date) VALUES (?, ?, ?) ON CONFLICT (member_id) DO NOTHING"),
		memberID, inviterID, at.UTC().Format(time.RFC3339))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (d *Database) GetJoin(ctx context.Context, memberID string) (*models.JoinRecord, error) {
	var rec models.JoinRecord
	var joinDate string
	err := d.db.QueryRowContext(ctx, d.rebind("SELECT member_id, inviter_id, join_date FROM joins WHERE member_id = ?"), memberID).
		Scan(&rec.MemberID, &rec.InviterID, &joinDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.JoinDate, _ = time.Parse(time.RFC3339, joinDate)
	return &rec, nil
}

func (d *Database) CountJoins(ctx context.Context, inviterID string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, d.rebind("SELECT COUNT(*) FROM joins WHERE inviter_id = ?"), inviterID).Scan(&count)
	return count, err
}

// ListJoinedMembers pages through the members credited to inviterID, oldest first.
func (d *Database) ListJoinedMembers(ctx context.Context, inviterID string, limit, offset int) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		d.rebind("SELECT member_id FROM joins WHERE inviter_id = ? ORDER BY join_date ASC, member_id ASC LIMIT ? OFFSET ?"),
		inviterID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var memberID string
		if err := rows.Scan(&memberID); err != nil {
			return nil, err
		}
		members = append(members, memberID)
	}
	return members, rows.Err()
}

func (d *Database) GetInviteLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := d.db.QueryContext(ctx,
		d.rebind("SELECT inviter_id, COUNT(*) AS total FROM joins GROUP BY inviter_id ORDER BY total DESC, inviter_id ASC LIMIT ?"),
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.InviterID, &e.Joins); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
