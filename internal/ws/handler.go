package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/HerbHall/edgewatch/internal/auth"
	"github.com/HerbHall/edgewatch/pkg/models"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// Handler provides the WebSocket endpoint for real-time event streaming.
type Handler struct {
	hub    *Hub
	tokens *auth.TokenService // nil disables authentication
	cfg    Config
	logger *zap.Logger
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler over an existing hub.
func NewHandler(hub *Hub, tokens *auth.TokenService, cfg Config, logger *zap.Logger) *Handler {
	return &Handler{
		hub:    hub,
		tokens: tokens,
		cfg:    cfg,
		logger: logger,
	}
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/events", h.handleEventStream)
}

// handleEventStream upgrades the connection and streams ingested events
// and device status transitions until the client disconnects or stops
// answering pings.
func (h *Handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	// Validate JWT from query parameter (browser WS API doesn't support headers).
	if h.tokens != nil {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token parameter", http.StatusUnauthorized)
			return
		}
		if _, err := h.tokens.ValidateAccessToken(token); err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
	}

	filter := Filter{
		DeviceID: r.URL.Query().Get("device_id"),
		Severity: models.Severity(r.URL.Query().Get("severity")),
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		http.Error(w, "unknown severity", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Allow any origin since we validate via JWT token.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	sub := h.hub.Subscribe(filter)
	defer h.hub.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Ping loop: a client that stops answering within PongTimeout is evicted.
	go h.pingLoop(ctx, cancel, conn)

	// Drain loop: we expect no client-to-server messages, reading only to
	// detect disconnects.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	h.writeLoop(ctx, conn, sub)
	conn.Close(websocket.StatusNormalClosure, "")
}

// writeLoop forwards queued messages to the connection in queue order.
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *Subscriber) {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = wsjson.Write(writeCtx, conn, msg)
		cancel()
		if err != nil {
			h.logger.Debug("websocket write error", zap.Error(err))
			return
		}
	}
}

// pingLoop pings the client periodically and cancels the connection when
// a pong does not arrive in time.
func (h *Handler) pingLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, h.cfg.PongTimeout)
			err := conn.Ping(pingCtx)
			pingCancel()
			if err != nil {
				h.logger.Debug("websocket ping failed, evicting client", zap.Error(err))
				cancel()
				return
			}
		}
	}
}
