// Package services holds the persistence contracts shared by brandingd
// components and their backend implementations.
package services

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by every SettingsRepository implementation.
var (
	ErrNotFound         = errors.New("setting not found")
	ErrRevisionMismatch = errors.New("setting revision mismatch")
)

// Setting is one row of the system_settings key/value table. Value is an
// opaque JSON document; the repository never inspects it.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SettingsRepository is a key/value row store. Writes are whole-row: the
// stored value is replaced, the revision incremented and updated_at stamped.
type SettingsRepository interface {
	// Get returns ErrNotFound when no row exists for key.
	Get(ctx context.Context, key string) (*Setting, error)

	// Set upserts the row unconditionally (last write wins).
	Set(ctx context.Context, key, value string) (*Setting, error)

	// SetIfRevision writes only when the stored revision equals revision.
	// A revision of 0 means the row must not exist yet. Returns
	// ErrRevisionMismatch otherwise.
	SetIfRevision(ctx context.Context, key, value string, revision int64) (*Setting, error)

	// Delete removes the row. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
