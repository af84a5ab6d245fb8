package database

import (
	"context"
	"database/sql"
	"errors"
)

// GetSetting returns the stored value and whether the key exists.
func (d *Database) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := d.db.QueryRowContext(ctx, d.rebind("SELECT value FROM settings WHERE key = ?"), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (d *Database) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = EXCLUDED.value
	`
	_, err := d.db.ExecContext(ctx, d.rebind(query), key, value)
	return err
}

func (d *Database) DeleteSetting(ctx context.Context, key string) error {
	_, err := d.db.ExecContext(ctx, d.rebind("DELETE FROM settings WHERE key = ?"), key)
	return err
}
