// Package event provides the in-process event bus and its NATS bridge.
package event

import (
	"context"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nextmovecargo/branding/pkg/plugin"
)

// Compile-time interface guard.
var _ plugin.EventBus = (*Bus)(nil)

var eventsPublished = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "branding_events_published_total",
		Help: "Events dispatched on the in-process bus by topic.",
	},
	[]string{"topic"},
)

func init() {
	prometheus.MustRegister(eventsPublished)
}

// Bus is an in-memory event bus implementing plugin.EventBus.
// Publish is synchronous (handlers run in the caller's goroutine).
// PublishAsync dispatches handlers in separate goroutines; Drain waits for
// them.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry // topic -> handlers
	prefixes []prefixEntry
	allSubs  []handlerEntry
	nextID   uint64
	inflight sync.WaitGroup
	logger   *zap.Logger
}

type handlerEntry struct {
	id      uint64
	handler plugin.EventHandler
}

type prefixEntry struct {
	handlerEntry
	prefix string
}

// NewBus creates a new in-memory event bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]handlerEntry),
		logger:   logger,
	}
}

// Publish dispatches an event synchronously to all matching handlers.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	for _, h := range b.match(event.Topic) {
		b.safeCall(ctx, h, event)
	}
	return nil
}

// PublishAsync dispatches an event asynchronously to all matching handlers.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	for _, h := range b.match(event.Topic) {
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			b.safeCall(ctx, h, event)
		}()
	}
}

// Drain blocks until every handler started by PublishAsync has returned.
func (b *Bus) Drain() {
	b.inflight.Wait()
}

// Subscribe registers a handler for a specific topic. Returns an unsubscribe function.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[topic] = append(b.handlers[topic], handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[topic] = removeEntry(b.handlers[topic], id)
	}
}

// SubscribePrefix registers a handler for every topic starting with prefix.
func (b *Bus) SubscribePrefix(prefix string, handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.prefixes = append(b.prefixes, prefixEntry{handlerEntry{id: id, handler: handler}, prefix})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, e := range b.prefixes {
			if e.id == id {
				b.prefixes = append(b.prefixes[:i], b.prefixes[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers a handler for all topics. Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.allSubs = append(b.allSubs, handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.allSubs = removeEntry(b.allSubs, id)
	}
}

// match snapshots the handlers for topic: exact subscribers first, then
// prefix subscribers, then wildcard subscribers.
func (b *Bus) match(topic string) []plugin.EventHandler {
	eventsPublished.WithLabelValues(topic).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]plugin.EventHandler, 0, len(b.handlers[topic])+len(b.prefixes)+len(b.allSubs))
	for _, h := range b.handlers[topic] {
		out = append(out, h.handler)
	}
	for _, p := range b.prefixes {
		if strings.HasPrefix(topic, p.prefix) {
			out = append(out, p.handler)
		}
	}
	for _, h := range b.allSubs {
		out = append(out, h.handler)
	}
	return out
}

func removeEntry(entries []handlerEntry, id uint64) []handlerEntry {
	for i, e := range entries {
		if e.id == id {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

func (b *Bus) safeCall(ctx context.Context, handler plugin.EventHandler, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}
