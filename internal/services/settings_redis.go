package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ SettingsRepository = (*RedisSettingsRepository)(nil)

// RedisConfig holds connection settings for the Redis settings backend.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// RedisSettingsRepository keeps each setting in a hash at Prefix+key with
// the fields value, revision and updated_at. Delete leaves the revision
// field behind so a recreated row continues the sequence.
type RedisSettingsRepository struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr: cfg.Address,
		DB:   cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Address, err)
	}
	return client, nil
}

// NewRedisSettingsRepository wraps an existing client.
func NewRedisSettingsRepository(client redis.UniversalClient, prefix string) *RedisSettingsRepository {
	return &RedisSettingsRepository{
		client: client,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *RedisSettingsRepository) Get(ctx context.Context, key string) (*Setting, error) {
	fields, err := r.client.HGetAll(ctx, r.prefixed(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("get setting %q: %w", key, err)
	}
	if _, ok := fields["value"]; !ok {
		return nil, ErrNotFound
	}
	return decodeRedisSetting(key, fields)
}

func (r *RedisSettingsRepository) Set(ctx context.Context, key, value string) (*Setting, error) {
	now := r.now()
	var rev *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rev = pipe.HIncrBy(ctx, r.prefixed(key), "revision", 1)
		pipe.HSet(ctx, r.prefixed(key), "value", value, "updated_at", now.Format(time.RFC3339Nano))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upsert setting %q: %w", key, err)
	}
	return &Setting{Key: key, Value: value, Revision: rev.Val(), UpdatedAt: now}, nil
}

func (r *RedisSettingsRepository) SetIfRevision(ctx context.Context, key, value string, revision int64) (*Setting, error) {
	hkey := r.prefixed(key)
	now := r.now()

	var rev *redis.IntCmd
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		fields, err := tx.HMGet(ctx, hkey, "value", "revision").Result()
		if err != nil {
			return err
		}
		var current int64
		if fields[0] != nil {
			current, err = strconv.ParseInt(fmt.Sprint(fields[1]), 10, 64)
			if err != nil {
				return fmt.Errorf("parse revision: %w", err)
			}
		}
		if current != revision {
			return ErrRevisionMismatch
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			rev = pipe.HIncrBy(ctx, hkey, "revision", 1)
			pipe.HSet(ctx, hkey, "value", value, "updated_at", now.Format(time.RFC3339Nano))
			return nil
		})
		return err
	}, hkey)

	switch {
	case errors.Is(err, ErrRevisionMismatch), errors.Is(err, redis.TxFailedErr):
		return nil, ErrRevisionMismatch
	case err != nil:
		return nil, fmt.Errorf("conditional write %q: %w", key, err)
	}
	return &Setting{Key: key, Value: value, Revision: rev.Val(), UpdatedAt: now}, nil
}

func (r *RedisSettingsRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.HDel(ctx, r.prefixed(key), "value", "updated_at").Err(); err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}

func (r *RedisSettingsRepository) prefixed(key string) string {
	return r.prefix + key
}

func decodeRedisSetting(key string, fields map[string]string) (*Setting, error) {
	s := Setting{Key: key, Value: fields["value"]}
	rev, err := strconv.ParseInt(fields["revision"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse revision for %q: %w", key, err)
	}
	s.Revision = rev
	if ts := fields["updated_at"]; ts != "" {
		s.UpdatedAt, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at for %q: %w", key, err)
		}
	}
	return &s, nil
}
