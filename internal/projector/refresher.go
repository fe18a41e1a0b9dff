package projector

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nextmovecargo/branding/internal/branding"
	"github.com/nextmovecargo/branding/pkg/plugin"
)

// Loader returns the current merged branding.
type Loader interface {
	Load(ctx context.Context) branding.Snapshot
}

// Refresher keeps a Projector's host in step with the stored branding. It
// applies once on start and whenever Trigger is called. Ticks of the
// refresh interval re-read the store but only apply when the revision or
// source moved.
type Refresher struct {
	loader    Loader
	projector *Projector
	interval  time.Duration
	logger    *zap.Logger

	trigger chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.RWMutex
	last      branding.Snapshot
	appliedAt time.Time
}

// NewRefresher creates a refresher. An interval <= 0 disables the ticker.
func NewRefresher(loader Loader, projector *Projector, interval time.Duration, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		loader:    loader,
		projector: projector,
		interval:  interval,
		logger:    logger,
		trigger:   make(chan struct{}, 1),
	}
}

// Start applies the current branding and starts the refresh loop.
func (r *Refresher) Start(ctx context.Context) {
	r.Refresh(ctx)

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.run(ctx)
}

// Stop ends the refresh loop and waits for it to exit.
func (r *Refresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Trigger requests a refresh without blocking. Requests made while one is
// pending are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// HandleEvent is a plugin.EventHandler that triggers a refresh.
func (r *Refresher) HandleEvent(_ context.Context, event plugin.Event) {
	r.logger.Debug("branding change event", zap.String("topic", event.Topic), zap.String("source", event.Source))
	r.Trigger()
}

// Refresh loads and applies branding synchronously.
func (r *Refresher) Refresh(ctx context.Context) branding.Snapshot {
	return r.apply(ctx, r.loader.Load(ctx))
}

// refreshIfChanged applies only when the loaded snapshot differs from the
// last applied one.
func (r *Refresher) refreshIfChanged(ctx context.Context) {
	snap := r.loader.Load(ctx)

	r.mu.RLock()
	unchanged := !r.appliedAt.IsZero() &&
		snap.Revision == r.last.Revision &&
		snap.Source == r.last.Source
	r.mu.RUnlock()
	if unchanged {
		return
	}
	r.apply(ctx, snap)
}

func (r *Refresher) apply(ctx context.Context, snap branding.Snapshot) branding.Snapshot {
	r.projector.Apply(ctx, snap.Settings())

	r.mu.Lock()
	r.last = snap
	r.appliedAt = time.Now().UTC()
	r.mu.Unlock()

	r.logger.Debug("branding applied",
		zap.Int64("revision", snap.Revision),
		zap.String("source", string(snap.Source)),
	)
	return snap
}

// Last returns the most recently applied snapshot and when it was applied.
func (r *Refresher) Last() (branding.Snapshot, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last, r.appliedAt
}

func (r *Refresher) run(ctx context.Context) {
	defer r.wg.Done()

	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.trigger:
			r.Refresh(ctx)
		case <-tick:
			r.refreshIfChanged(ctx)
		}
	}
}
