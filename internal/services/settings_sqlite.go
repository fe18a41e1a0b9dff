package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nextmovecargo/branding/pkg/plugin"
)

var _ SettingsRepository = (*SQLiteSettingsRepository)(nil)

// SQLiteSettingsRepository stores settings rows in the embedded database.
// Revisions come from system_settings_revisions, which outlives Delete so a
// key never reuses a revision number.
type SQLiteSettingsRepository struct {
	store plugin.Store
	db    *sql.DB
	now   func() time.Time
}

func settingsMigrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create system_settings table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS system_settings (
						key        TEXT     PRIMARY KEY,
						value      TEXT     NOT NULL,
						revision   INTEGER  NOT NULL DEFAULT 1,
						updated_at DATETIME NOT NULL
					)
				`)
				return err
			},
		},
		{
			Version:     2,
			Description: "create system_settings_revisions counter",
			Up: func(tx *sql.Tx) error {
				if _, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS system_settings_revisions (
						key      TEXT    PRIMARY KEY,
						revision INTEGER NOT NULL
					)
				`); err != nil {
					return err
				}
				_, err := tx.Exec(`
					INSERT OR IGNORE INTO system_settings_revisions (key, revision)
					SELECT key, revision FROM system_settings
				`)
				return err
			},
		},
	}
}

// NewSQLiteSettingsRepository migrates the settings table and returns a
// repository bound to the store's connection.
func NewSQLiteSettingsRepository(ctx context.Context, store plugin.Store) (*SQLiteSettingsRepository, error) {
	if err := store.Migrate(ctx, "settings", settingsMigrations()); err != nil {
		return nil, fmt.Errorf("settings migrate: %w", err)
	}
	return &SQLiteSettingsRepository{
		store: store,
		db:    store.DB(),
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteSettingsRepository) Get(ctx context.Context, key string) (*Setting, error) {
	var (
		s       = Setting{Key: key}
		updated string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT value, revision, updated_at FROM system_settings WHERE key = ?", key,
	).Scan(&s.Value, &s.Revision, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %q: %w", key, err)
	}
	s.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at for %q: %w", key, err)
	}
	return &s, nil
}

func (r *SQLiteSettingsRepository) Set(ctx context.Context, key, value string) (*Setting, error) {
	now := r.now()
	s := Setting{Key: key, Value: value, UpdatedAt: now}
	err := r.store.Tx(ctx, func(tx *sql.Tx) error {
		rev, err := nextSQLiteRevision(ctx, tx, key)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO system_settings (key, value, revision, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET
				value      = excluded.value,
				revision   = excluded.revision,
				updated_at = excluded.updated_at`,
			key, value, rev, now.Format(time.RFC3339Nano),
		)
		s.Revision = rev
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert setting %q: %w", key, err)
	}
	return &s, nil
}

func (r *SQLiteSettingsRepository) SetIfRevision(ctx context.Context, key, value string, revision int64) (*Setting, error) {
	now := r.now()
	stamp := now.Format(time.RFC3339Nano)
	s := Setting{Key: key, Value: value, UpdatedAt: now}

	err := r.store.Tx(ctx, func(tx *sql.Tx) error {
		rev, err := nextSQLiteRevision(ctx, tx, key)
		if err != nil {
			return err
		}
		var res sql.Result
		if revision == 0 {
			res, err = tx.ExecContext(ctx, `
				INSERT INTO system_settings (key, value, revision, updated_at) VALUES (?, ?, ?, ?)
				ON CONFLICT (key) DO NOTHING`,
				key, value, rev, stamp,
			)
		} else {
			res, err = tx.ExecContext(ctx, `
				UPDATE system_settings
				SET value = ?, revision = ?, updated_at = ?
				WHERE key = ? AND revision = ?`,
				value, rev, stamp, key, revision,
			)
		}
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrRevisionMismatch
		}
		s.Revision = rev
		return nil
	})
	if errors.Is(err, ErrRevisionMismatch) {
		return nil, ErrRevisionMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("conditional write %q: %w", key, err)
	}
	return &s, nil
}

// Delete removes the row but keeps its revision counter.
func (r *SQLiteSettingsRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM system_settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}

func nextSQLiteRevision(ctx context.Context, tx *sql.Tx, key string) (int64, error) {
	var rev int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO system_settings_revisions (key, revision) VALUES (?, 1)
		ON CONFLICT (key) DO UPDATE SET revision = system_settings_revisions.revision + 1
		RETURNING revision`, key,
	).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("next revision: %w", err)
	}
	return rev, nil
}
