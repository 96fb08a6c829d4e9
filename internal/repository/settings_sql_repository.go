package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

const settingsSchema = `CREATE TABLE IF NOT EXISTS console_settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// SQLSettingsRepository keeps console settings in a PostgreSQL table.
type SQLSettingsRepository struct {
	db *sqlx.DB
}

// NewSQLSettingsRepository constructs a SQLSettingsRepository.
func NewSQLSettingsRepository(db *sqlx.DB) *SQLSettingsRepository {
	return &SQLSettingsRepository{db: db}
}

// EnsureSchema creates the settings table when missing.
func (r *SQLSettingsRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, settingsSchema); err != nil {
		return fmt.Errorf("create console_settings: %w", err)
	}
	return nil
}

// Get returns the stored value or appErrors.ErrSettingsMiss.
func (r *SQLSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	if err := r.db.GetContext(ctx, &value, `SELECT value FROM console_settings WHERE key = $1`, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.ErrSettingsMiss
		}
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// Set upserts the value.
func (r *SQLSettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO console_settings (key, value, updated_at) VALUES ($1, $2, NOW())
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
