package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ SettingsRepository = (*PGSettingsRepository)(nil)

// PGConfig holds PostgreSQL connection configuration.
type PGConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PGSettingsRepository stores settings rows in PostgreSQL. The schema is
// compatible with a Supabase system_settings table (value is jsonb).
// Revisions are drawn from system_settings_revisions so they keep growing
// across deletes.
type PGSettingsRepository struct {
	pool *pgxpool.Pool
}

// NewPGPool connects to PostgreSQL and verifies the connection.
func NewPGPool(ctx context.Context, cfg PGConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse pg config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return pool, nil
}

// NewPGSettingsRepository creates the system_settings table if needed.
func NewPGSettingsRepository(ctx context.Context, pool *pgxpool.Pool) (*PGSettingsRepository, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS system_settings (
			key        TEXT        PRIMARY KEY,
			value      JSONB       NOT NULL,
			revision   BIGINT      NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("create system_settings: %w", err)
	}
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS system_settings_revisions (
			key      TEXT   PRIMARY KEY,
			revision BIGINT NOT NULL
		);
		INSERT INTO system_settings_revisions (key, revision)
		SELECT key, revision FROM system_settings
		ON CONFLICT (key) DO NOTHING
	`)
	if err != nil {
		return nil, fmt.Errorf("create system_settings_revisions: %w", err)
	}
	return &PGSettingsRepository{pool: pool}, nil
}

func (r *PGSettingsRepository) Get(ctx context.Context, key string) (*Setting, error) {
	s := Setting{Key: key}
	err := r.pool.QueryRow(ctx,
		`SELECT value::text, revision, updated_at FROM system_settings WHERE key = $1`, key,
	).Scan(&s.Value, &s.Revision, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %q: %w", key, err)
	}
	return &s, nil
}

// nextRevisionCTE bumps the key's counter and exposes the new value as
// next.revision.
const nextRevisionCTE = `
	WITH next AS (
		INSERT INTO system_settings_revisions (key, revision) VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET revision = system_settings_revisions.revision + 1
		RETURNING revision
	)`

func (r *PGSettingsRepository) Set(ctx context.Context, key, value string) (*Setting, error) {
	s := Setting{Key: key, Value: value}
	err := r.pool.QueryRow(ctx, nextRevisionCTE+`
		INSERT INTO system_settings (key, value, revision, updated_at)
		SELECT $1, $2::jsonb, next.revision, NOW() FROM next
		ON CONFLICT (key) DO UPDATE SET
			value      = EXCLUDED.value,
			revision   = EXCLUDED.revision,
			updated_at = NOW()
		RETURNING revision, updated_at
	`, key, value).Scan(&s.Revision, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert setting %q: %w", key, err)
	}
	return &s, nil
}

// SetIfRevision runs in a transaction so a mismatch rolls the counter back.
func (r *PGSettingsRepository) SetIfRevision(ctx context.Context, key, value string, revision int64) (*Setting, error) {
	s := Setting{Key: key, Value: value}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var row pgx.Row
		if revision == 0 {
			row = tx.QueryRow(ctx, nextRevisionCTE+`
				INSERT INTO system_settings (key, value, revision, updated_at)
				SELECT $1, $2::jsonb, next.revision, NOW() FROM next
				ON CONFLICT (key) DO NOTHING
				RETURNING revision, updated_at
			`, key, value)
		} else {
			row = tx.QueryRow(ctx, nextRevisionCTE+`
				UPDATE system_settings
				SET value = $2::jsonb, revision = next.revision, updated_at = NOW()
				FROM next
				WHERE system_settings.key = $1 AND system_settings.revision = $3
				RETURNING system_settings.revision, system_settings.updated_at
			`, key, value, revision)
		}
		err := row.Scan(&s.Revision, &s.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRevisionMismatch
		}
		return err
	})
	if errors.Is(err, ErrRevisionMismatch) {
		return nil, ErrRevisionMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("conditional write %q: %w", key, err)
	}
	return &s, nil
}

func (r *PGSettingsRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM system_settings WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}
