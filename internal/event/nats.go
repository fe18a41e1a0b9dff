package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/nextmovecargo/branding/pkg/plugin"
)

// SourceRemote marks events that arrived from another instance over NATS.
// They are never forwarded again.
const SourceRemote = "nats"

// NATSConn is the subset of *nats.Conn the bridge uses.
type NATSConn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// NATSConfig configures the cross-instance bridge.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// envelope is the wire form of a bridged event.
type envelope struct {
	Instance  string          `json:"instance"`
	Topic     string          `json:"topic"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Bridge forwards local events under a topic prefix to NATS and republishes
// events from other instances on the local bus, so every instance refreshes
// after a write on any of them.
type Bridge struct {
	conn     NATSConn
	bus      plugin.EventBus
	subject  string
	prefix   string
	instance string
	logger   *zap.Logger

	unsubscribe func()
	sub         *nats.Subscription
}

// Connect dials NATS with the bridge's defaults.
func Connect(cfg NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("brandingd"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", cfg.URL, err)
	}
	return conn, nil
}

// NewBridge creates a bridge for topics starting with prefix. Messages are
// published on subject + "." + topic.
func NewBridge(conn NATSConn, bus plugin.EventBus, subject, prefix string, logger *zap.Logger) *Bridge {
	if subject == "" {
		subject = "brandingd"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		conn:     conn,
		bus:      bus,
		subject:  subject,
		prefix:   prefix,
		instance: uuid.NewString(),
		logger:   logger,
	}
}

// Instance returns the id this bridge stamps on outgoing messages.
func (b *Bridge) Instance() string { return b.instance }

// Start subscribes on both sides.
func (b *Bridge) Start(ctx context.Context) error {
	sub, err := b.conn.Subscribe(b.subject+".>", func(msg *nats.Msg) {
		b.receive(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s.>: %w", b.subject, err)
	}
	b.sub = sub
	b.unsubscribe = b.bus.SubscribePrefix(b.prefix, b.forward)
	b.logger.Info("nats bridge started",
		zap.String("subject", b.subject),
		zap.String("instance", b.instance),
	)
	return nil
}

// Stop removes both subscriptions.
func (b *Bridge) Stop() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
	if b.sub != nil {
		if err := b.sub.Unsubscribe(); err != nil {
			b.logger.Debug("nats unsubscribe", zap.Error(err))
		}
	}
}

func (b *Bridge) forward(_ context.Context, event plugin.Event) {
	if event.Source == SourceRemote {
		return
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		b.logger.Error("encode bridged event", zap.String("topic", event.Topic), zap.Error(err))
		return
	}
	data, err := json.Marshal(envelope{
		Instance:  b.instance,
		Topic:     event.Topic,
		Source:    event.Source,
		Timestamp: event.Timestamp,
		Payload:   payload,
	})
	if err != nil {
		b.logger.Error("encode bridged event", zap.String("topic", event.Topic), zap.Error(err))
		return
	}
	if err := b.conn.Publish(b.subject+"."+event.Topic, data); err != nil {
		b.logger.Warn("nats publish failed", zap.String("topic", event.Topic), zap.Error(err))
	}
}

func (b *Bridge) receive(ctx context.Context, msg *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		b.logger.Warn("discarding malformed nats message", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	if env.Instance == b.instance {
		return
	}
	if !strings.HasPrefix(env.Topic, b.prefix) {
		return
	}
	b.bus.PublishAsync(ctx, plugin.Event{
		Topic:     env.Topic,
		Source:    SourceRemote,
		Timestamp: env.Timestamp,
		Payload:   env.Payload,
	})
}
