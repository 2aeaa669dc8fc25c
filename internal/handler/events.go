package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/bytebuddy/bytebuddy/internal/auth"
	"github.com/bytebuddy/bytebuddy/internal/events"
)

const (
	defaultPingInterval = 30 * time.Second
	eventWriteTimeout   = 10 * time.Second
)

// EventsHandler streams an identity's conversation and chat state changes
// over a WebSocket.
type EventsHandler struct {
	hub          *events.Hub
	origins      []string
	pingInterval time.Duration
	logger       *slog.Logger
}

// NewEventsHandler creates a new EventsHandler. allowedOrigins uses the
// CORS origin format and is converted to WebSocket host patterns.
func NewEventsHandler(hub *events.Hub, allowedOrigins []string, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{
		hub:          hub,
		origins:      OriginPatterns(allowedOrigins),
		pingInterval: defaultPingInterval,
		logger:       logger.With(slog.String("component", "events_handler")),
	}
}

// OriginPatterns strips the scheme from each origin, leaving host patterns.
func OriginPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		o = strings.TrimSuffix(o, "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Stream handles GET /api/v1/events. Browsers pass the session token as
// the access_token query parameter.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	identityID := auth.IdentityIDFromContext(r.Context())

	// Streams outlive the server read and write timeouts.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Debug("websocket upgrade rejected", slog.String("error", err.Error()))
		return
	}
	defer conn.CloseNow()

	sub := h.hub.Subscribe(identityID)
	defer func() {
		sub.Close()
		if n := sub.Dropped(); n > 0 {
			h.logger.Warn("slow event subscriber",
				slog.String("identity_id", identityID),
				slog.Uint64("dropped", n),
			)
		}
	}()

	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Events():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "subscription closed")
				return
			}
			if err := h.write(ctx, conn, e); err != nil {
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *EventsHandler) write(ctx context.Context, conn *websocket.Conn, e events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, e)
}
