package chatsocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/ameotech/triage/internal/dialogue"
	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/identity"
)

const (
	readLimit    = 64 << 10
	turnTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
)

// Frame types.
const (
	FrameMessage  = "message"
	FramePing     = "ping"
	FramePong     = "pong"
	FrameEnvelope = "envelope"
	FrameError    = "error"
)

// Router answers chat turns.
type Router interface {
	Route(ctx context.Context, req dialogue.RouteRequest) domain.Envelope
}

// clientFrame is a frame sent by the widget. Message frames carry the same
// fields as an HTTP chat-route request.
type clientFrame struct {
	Type string `json:"type"`
	dialogue.RouteRequest
}

// serverFrame is a frame sent to the widget.
type serverFrame struct {
	Type     string           `json:"type"`
	Envelope *domain.Envelope `json:"envelope,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Handler upgrades /ws/chat and answers message frames.
type Handler struct {
	router         Router
	conns          *Registry
	allowedOrigins []string
	isDev          bool
}

// NewHandler creates a chat socket handler.
func NewHandler(router Router, conns *Registry, allowedOrigins []string, isDev bool) *Handler {
	return &Handler{
		router:         router,
		conns:          conns,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	slog.Info("Chat socket connection request", "visitor_id", visitorID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "visitor_id", visitorID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "visitor_id", visitorID)
		}
	}()
	defer h.conns.Unregister(visitorID, ws)

	ws.SetReadLimit(readLimit)
	h.readLoop(r.Context(), ws, visitorID)
	slog.Info("Chat socket ended", "visitor_id", visitorID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, visitorID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "visitor_id", visitorID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "visitor_id", visitorID)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			h.send(ctx, ws, serverFrame{Type: FrameError, Error: "invalid frame"})
			continue
		}

		switch frame.Type {
		case FrameMessage:
			req := frame.RouteRequest
			req.VisitorID = visitorID

			turnCtx, cancel := context.WithTimeout(ctx, turnTimeout)
			env := h.router.Route(turnCtx, req)
			cancel()

			if env.SessionID != "" {
				h.conns.Register(visitorID, env.SessionID, ws)
			}
			h.send(ctx, ws, serverFrame{Type: FrameEnvelope, Envelope: &env})
		case FramePing:
			h.send(ctx, ws, serverFrame{Type: FramePong})
		default:
			h.send(ctx, ws, serverFrame{Type: FrameError, Error: "unknown frame type"})
		}
	}
}

func (h *Handler) send(ctx context.Context, ws *websocket.Conn, f serverFrame) {
	if err := writeJSON(ctx, ws, f); err != nil {
		slog.Debug("Failed to send frame", "type", f.Type, "error", err)
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
