package services

import (
	"context"
	"sync"
	"time"
)

var _ SettingsRepository = (*MemorySettingsRepository)(nil)

// MemorySettingsRepository keeps rows in process memory. Used by tests and
// by `brandingd serve` when database.driver is "memory".
type MemorySettingsRepository struct {
	mu        sync.Mutex
	rows      map[string]Setting
	revisions map[string]int64
	now       func() time.Time
}

// NewMemorySettingsRepository returns an empty in-memory repository.
func NewMemorySettingsRepository() *MemorySettingsRepository {
	return &MemorySettingsRepository{
		rows:      make(map[string]Setting),
		revisions: make(map[string]int64),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemorySettingsRepository) Get(_ context.Context, key string) (*Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *MemorySettingsRepository) Set(_ context.Context, key, value string) (*Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(key, value), nil
}

func (r *MemorySettingsRepository) SetIfRevision(_ context.Context, key, value string, revision int64) (*Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows[key].Revision != revision {
		return nil, ErrRevisionMismatch
	}
	return r.write(key, value), nil
}

// write must be called with r.mu held.
func (r *MemorySettingsRepository) write(key, value string) *Setting {
	r.revisions[key]++
	s := Setting{
		Key:       key,
		Value:     value,
		Revision:  r.revisions[key],
		UpdatedAt: r.now(),
	}
	r.rows[key] = s
	return &s
}

// Delete drops the row; the key's revision counter is kept.
func (r *MemorySettingsRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, key)
	return nil
}
