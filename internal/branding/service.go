package branding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/nextmovecargo/branding/internal/services"
	"github.com/nextmovecargo/branding/pkg/plugin"
)

// Event topics published after successful writes.
const (
	TopicUpdated = "branding.updated"
	TopicReset   = "branding.reset"
)

// ErrRevisionConflict is returned by a conditional write whose expected
// revision no longer matches the stored row.
var ErrRevisionConflict = errors.New("branding was modified by another writer")

// Source says where a Snapshot's document came from.
type Source string

const (
	// SourceStored means a persisted row was merged over the defaults.
	SourceStored Source = "stored"
	// SourceDefault means no row exists.
	SourceDefault Source = "default"
	// SourceFallback means the read or decode failed and defaults were used.
	SourceFallback Source = "fallback"
)

// Snapshot is a merged branding document plus the row metadata it was
// read from. Revision is 0 when no row exists.
type Snapshot struct {
	Doc       Document
	Revision  int64
	UpdatedAt time.Time
	Source    Source
}

// Settings returns the typed view of the snapshot's document.
func (s Snapshot) Settings() Settings {
	return SettingsFrom(s.Doc)
}

// WriteOptions control a single write.
type WriteOptions struct {
	// IfRevision, when set, makes the write conditional on the stored
	// revision (0 = no row yet). Nil means last write wins.
	IfRevision *int64
	// Actor is recorded in logs and change events.
	Actor string
}

// ChangeEvent is the payload of TopicUpdated and TopicReset.
type ChangeEvent struct {
	Revision  int64     `json:"revision"`
	Actor     string    `json:"actor,omitempty"`
	Keys      []string  `json:"keys,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service reads and writes the branding document.
type Service struct {
	repo      services.SettingsRepository
	bus       plugin.Publisher
	validator *Validator
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a branding service. bus may be nil.
func NewService(repo services.SettingsRepository, bus plugin.Publisher, logger *zap.Logger) (*Service, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		bus:       bus,
		validator: validator,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Defaults returns a fresh copy of the default template.
func (s *Service) Defaults() Document {
	return Defaults()
}

// GetSettings returns the persisted document merged over the defaults.
// It never fails: a missing row, a read error and an undecodable value all
// yield the defaults.
func (s *Service) GetSettings(ctx context.Context) Document {
	return s.Load(ctx).Doc
}

// Load is GetSettings with row metadata.
func (s *Service) Load(ctx context.Context) Snapshot {
	row, err := s.repo.Get(ctx, SettingsKey)
	switch {
	case errors.Is(err, services.ErrNotFound):
		readsTotal.WithLabelValues(string(SourceDefault)).Inc()
		return Snapshot{Doc: Merge(defaultTemplate, nil), Source: SourceDefault}
	case err != nil:
		s.logger.Warn("branding read failed, using defaults", zap.Error(err))
		readsTotal.WithLabelValues(string(SourceFallback)).Inc()
		return Snapshot{Doc: Merge(defaultTemplate, nil), Source: SourceFallback}
	}

	persisted, err := ParseDocument([]byte(row.Value))
	if err != nil {
		s.logger.Warn("stored branding is not a JSON object, using defaults",
			zap.Int64("revision", row.Revision),
			zap.Error(err),
		)
		readsTotal.WithLabelValues(string(SourceFallback)).Inc()
		return Snapshot{
			Doc:       Merge(defaultTemplate, nil),
			Revision:  row.Revision,
			UpdatedAt: row.UpdatedAt,
			Source:    SourceFallback,
		}
	}

	readsTotal.WithLabelValues(string(SourceStored)).Inc()
	return Snapshot{
		Doc:       Merge(defaultTemplate, persisted),
		Revision:  row.Revision,
		UpdatedAt: row.UpdatedAt,
		Source:    SourceStored,
	}
}

// Update merges patch over the current document at the top level
// ({...current, ...patch}) and persists the full result. A patch that
// touches a nested section must carry the whole section.
func (s *Service) Update(ctx context.Context, patch Document, opts WriteOptions) (Snapshot, error) {
	if err := s.validator.Validate(patch); err != nil {
		writesTotal.WithLabelValues("update", "invalid").Inc()
		return Snapshot{}, err
	}
	return s.write(ctx, s.Load(ctx), patch, opts)
}

// UpdatePath sets a single leaf, e.g. "pages.about.title", and persists
// the document. Siblings of the leaf keep their current values.
func (s *Service) UpdatePath(ctx context.Context, path string, value any, opts WriteOptions) (Snapshot, error) {
	segs, err := SplitPath(path)
	if err != nil {
		writesTotal.WithLabelValues("update", "invalid").Inc()
		return Snapshot{}, err
	}
	current := s.Load(ctx)
	updated, err := SetPath(current.Doc, path, value)
	if err != nil {
		return Snapshot{}, err
	}
	patch := Document{segs[0]: updated[segs[0]]}
	if err := s.validator.Validate(patch); err != nil {
		writesTotal.WithLabelValues("update", "invalid").Inc()
		return Snapshot{}, err
	}
	return s.write(ctx, current, patch, opts)
}

func (s *Service) write(ctx context.Context, current Snapshot, patch Document, opts WriteOptions) (Snapshot, error) {
	merged := current.Doc.Clone()
	if merged == nil {
		merged = Document{}
	}
	for k, v := range patch {
		merged[k] = cloneValue(v)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		writesTotal.WithLabelValues("update", "error").Inc()
		return Snapshot{}, fmt.Errorf("encode branding: %w", err)
	}

	var row *services.Setting
	if opts.IfRevision != nil {
		row, err = s.repo.SetIfRevision(ctx, SettingsKey, string(data), *opts.IfRevision)
	} else {
		row, err = s.repo.Set(ctx, SettingsKey, string(data))
	}
	if errors.Is(err, services.ErrRevisionMismatch) {
		writesTotal.WithLabelValues("update", "conflict").Inc()
		return Snapshot{}, fmt.Errorf("%w: expected revision %d", ErrRevisionConflict, *opts.IfRevision)
	}
	if err != nil {
		writesTotal.WithLabelValues("update", "error").Inc()
		return Snapshot{}, fmt.Errorf("persist branding: %w", err)
	}
	writesTotal.WithLabelValues("update", "ok").Inc()

	keys := patch.Keys()
	slices.Sort(keys)
	s.logger.Info("branding updated",
		zap.Int64("revision", row.Revision),
		zap.String("actor", opts.Actor),
		zap.Strings("keys", keys),
	)
	s.publish(ctx, TopicUpdated, ChangeEvent{
		Revision:  row.Revision,
		Actor:     opts.Actor,
		Keys:      keys,
		UpdatedAt: row.UpdatedAt,
	})

	return Snapshot{
		Doc:       merged,
		Revision:  row.Revision,
		UpdatedAt: row.UpdatedAt,
		Source:    SourceStored,
	}, nil
}

// Reset deletes the stored document and returns the defaults without
// reading the store again.
func (s *Service) Reset(ctx context.Context, actor string) (Document, error) {
	if err := s.repo.Delete(ctx, SettingsKey); err != nil {
		writesTotal.WithLabelValues("reset", "error").Inc()
		return nil, fmt.Errorf("reset branding: %w", err)
	}
	writesTotal.WithLabelValues("reset", "ok").Inc()

	s.logger.Info("branding reset to defaults", zap.String("actor", actor))
	s.publish(ctx, TopicReset, ChangeEvent{Actor: actor, UpdatedAt: s.now()})
	return Defaults(), nil
}

func (s *Service) publish(ctx context.Context, topic string, payload ChangeEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, plugin.Event{
		Topic:     topic,
		Source:    "branding",
		Timestamp: s.now(),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn("publish branding event failed", zap.String("topic", topic), zap.Error(err))
	}
}
