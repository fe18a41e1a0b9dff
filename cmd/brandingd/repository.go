package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nextmovecargo/branding/internal/server"
	"github.com/nextmovecargo/branding/internal/services"
	"github.com/nextmovecargo/branding/internal/store"
	"github.com/nextmovecargo/branding/internal/version"
)

// backend is an opened settings store.
type backend struct {
	repo  services.SettingsRepository
	ready server.ReadinessChecker
	close func()
}

// openBackend opens the settings store selected by store.driver.
func openBackend(ctx context.Context, v *viper.Viper, logger *zap.Logger) (*backend, error) {
	driver := v.GetString("store.driver")
	log := logger.With(zap.String("component", "store"), zap.String("driver", driver))

	switch driver {
	case "sqlite", "":
		path := v.GetString("store.sqlite.path")
		db, err := store.New(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", path, err)
		}
		if err := db.CheckVersion(ctx, version.Short()); err != nil {
			db.Close()
			return nil, err
		}
		repo, err := services.NewSQLiteSettingsRepository(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		log.Info("settings store ready", zap.String("path", path))
		return &backend{
			repo:  repo,
			ready: func(ctx context.Context) error { return db.DB().PingContext(ctx) },
			close: func() { _ = db.Close() },
		}, nil

	case "postgres":
		var cfg services.PGConfig
		if err := v.UnmarshalKey("store.postgres", &cfg); err != nil {
			return nil, fmt.Errorf("decode store.postgres: %w", err)
		}
		pool, err := services.NewPGPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		repo, err := services.NewPGSettingsRepository(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("settings store ready", zap.Int32("max_conns", pool.Config().MaxConns))
		return &backend{
			repo:  repo,
			ready: pool.Ping,
			close: pool.Close,
		}, nil

	case "redis":
		var cfg services.RedisConfig
		if err := v.UnmarshalKey("store.redis", &cfg); err != nil {
			return nil, fmt.Errorf("decode store.redis: %w", err)
		}
		client, err := services.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Info("settings store ready", zap.String("address", cfg.Address))
		return &backend{
			repo:  services.NewRedisSettingsRepository(client, cfg.Prefix),
			ready: func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close: func() { _ = client.Close() },
		}, nil

	case "memory":
		log.Warn("in-memory settings store: branding is lost on restart")
		return &backend{
			repo:  services.NewMemorySettingsRepository(),
			close: func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown store.driver %q (want sqlite, postgres, redis or memory)", driver)
}
