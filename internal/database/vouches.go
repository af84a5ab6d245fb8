package database

import (
	"context"
	"database/sql"
	"discord-invite-tracker/internal/models"
)

// Vouch operations

// InsertVouch appends v and fills in its assigned id.
func (d *Database) InsertVouch(ctx context.Context, v *models.Vouch) error {
	query := `
		INSERT INTO vouches (
			user_id, user_name, stars, message, proof_url,
			vouched_by_id, vouched_by_name, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	var proof sql.NullString
	if v.ProofURL != "" {
		proof = sql.NullString{String: v.ProofURL, Valid: true}
	}
	return d.db.QueryRowContext(ctx, d.rebind(query),
		v.UserID, v.UserName, v.Stars, v.Message, proof,
		v.VouchedByID, v.VouchedByName, v.Timestamp,
	).Scan(&v.ID)
}

// ListVouches returns vouches newest first.
func (d *Database) ListVouches(ctx context.Context, limit, offset int) ([]models.Vouch, error) {
	query := `
		SELECT id, user_id, user_name, stars, message, proof_url,
			vouched_by_id, vouched_by_name, timestamp
		FROM vouches ORDER BY id DESC LIMIT ? OFFSET ?
	`
	rows, err := d.db.QueryContext(ctx, d.rebind(query), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vouches []models.Vouch
	for rows.Next() {
		var v models.Vouch
		var proof sql.NullString
		if err := rows.Scan(&v.ID, &v.UserID, &v.UserName, &v.Stars, &v.Message, &proof,
			&v.VouchedByID, &v.VouchedByName, &v.Timestamp); err != nil {
			return nil, err
		}
		v.ProofURL = proof.String
		vouches = append(vouches, v)
	}
	return vouches, rows.Err()
}

func (d *Database) CountVouches(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vouches").Scan(&count)
	return count, err
}
