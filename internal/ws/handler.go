package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nextmovecargo/branding/internal/branding"
	"github.com/nextmovecargo/branding/pkg/plugin"
)

// Loader returns the current merged branding.
type Loader interface {
	Load(ctx context.Context) branding.Snapshot
}

// Handler streams branding changes to browsers so they can re-render
// without polling.
type Handler struct {
	hub            *Hub
	loader         Loader
	originPatterns []string
	logger         *zap.Logger
	unsubscribe    func()
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates the stream handler and subscribes to branding events.
// originPatterns limits cross-origin upgrades; empty allows same-origin
// only.
func NewHandler(loader Loader, bus plugin.Subscriber, originPatterns []string, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:            NewHub(logger),
		loader:         loader,
		originPatterns: originPatterns,
		logger:         logger,
	}
	if bus != nil {
		unsubs := []func(){
			bus.Subscribe(branding.TopicUpdated, h.handleEvent),
			bus.Subscribe(branding.TopicReset, h.handleEvent),
		}
		h.unsubscribe = func() {
			for _, u := range unsubs {
				u()
			}
		}
	}
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/branding", h.handleStream)
}

// Close unsubscribes from the bus and disconnects all clients.
func (h *Handler) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.hub.CloseAll()
}

// ClientCount returns the number of connected clients.
func (h *Handler) ClientCount() int {
	return h.hub.ClientCount()
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		id:     uuid.NewString(),
		send:   make(chan Message, sendBuffer),
		logger: h.logger,
	}

	// Queue the current snapshot before registering so it is always the
	// first message the client sees.
	client.send <- h.message(r.Context(), MessageSnapshot)
	h.hub.Register(client)

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

func (h *Handler) handleEvent(ctx context.Context, event plugin.Event) {
	h.hub.Broadcast(h.message(ctx, messageType(event.Topic)))
}

func (h *Handler) message(ctx context.Context, typ MessageType) Message {
	snap := h.loader.Load(ctx)
	return Message{
		Type:      typ,
		Revision:  snap.Revision,
		Timestamp: time.Now().UTC(),
		Data: BrandingData{
			Source:   snap.Source,
			Settings: snap.Doc,
		},
	}
}
