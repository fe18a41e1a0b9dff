// Package webhook notifies an external endpoint when branding changes, so
// caches and CDNs in front of the marketplace can be purged.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nextmovecargo/branding/internal/branding"
	"github.com/nextmovecargo/branding/internal/event"
	"github.com/nextmovecargo/branding/pkg/plugin"
)

// SignatureHeader carries the hex HMAC-SHA256 of the body when a secret is
// configured.
const SignatureHeader = "X-Branding-Signature"

// Config holds the webhook configuration.
type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
	Enabled bool
}

// Notifier posts branding change events to a webhook URL.
type Notifier struct {
	logger *zap.Logger
	cfg    Config
	client *http.Client
	wg     sync.WaitGroup
}

// New creates a notifier from the "webhook" config section. cfg may be nil.
func New(cfg plugin.Config, logger *zap.Logger) *Notifier {
	c := Config{
		Timeout: 10 * time.Second,
		Enabled: true,
	}
	if cfg != nil {
		if u := cfg.GetString("url"); u != "" {
			c.URL = u
		}
		c.Secret = cfg.GetString("secret")
		if d := cfg.GetDuration("timeout"); d > 0 {
			c.Timeout = d
		}
		if cfg.IsSet("enabled") {
			c.Enabled = cfg.GetBool("enabled")
		}
	}

	if c.Enabled && c.URL == "" {
		logger.Info("webhook URL not configured; branding notifications disabled")
	} else {
		logger.Info("webhook notifier initialized",
			zap.String("url", c.URL),
			zap.Duration("timeout", c.Timeout),
			zap.Bool("enabled", c.Enabled),
		)
	}

	return &Notifier{
		logger: logger,
		cfg:    c,
		client: &http.Client{Timeout: c.Timeout},
	}
}

// Subscribe registers the notifier for branding change topics.
func (n *Notifier) Subscribe(bus plugin.Subscriber) (unsubscribe func()) {
	unsubs := []func(){
		bus.Subscribe(branding.TopicUpdated, n.handleEvent),
		bus.Subscribe(branding.TopicReset, n.handleEvent),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Close waits for in-flight deliveries.
func (n *Notifier) Close() {
	n.wg.Wait()
}

// Payload is the JSON body sent to the webhook URL.
type Payload struct {
	Event     string `json:"event"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

func (n *Notifier) handleEvent(_ context.Context, ev plugin.Event) {
	if !n.cfg.Enabled || n.cfg.URL == "" {
		return
	}
	// The instance that made the change already notified.
	if ev.Source == event.SourceRemote {
		return
	}

	body, err := json.Marshal(Payload{
		Event:     ev.Topic,
		Source:    ev.Source,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Data:      ev.Payload,
	})
	if err != nil {
		n.logger.Error("failed to marshal webhook payload",
			zap.String("topic", ev.Topic),
			zap.Error(err),
		)
		return
	}

	// Deliveries must not hold up the write that published the event.
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.send(context.Background(), body, ev.Topic)
	}()
}

func (n *Notifier) send(ctx context.Context, body []byte, topic string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("failed to create webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "brandingd-webhook/1")
	if n.cfg.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.cfg.Secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("url", n.cfg.URL),
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		n.logger.Warn("webhook endpoint returned error",
			zap.String("url", n.cfg.URL),
			zap.String("topic", topic),
			zap.Int("status_code", resp.StatusCode),
		)
		return
	}

	n.logger.Debug("webhook delivered",
		zap.String("topic", topic),
		zap.Int("status_code", resp.StatusCode),
	)
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
