package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ameotech/triage/internal/apperr"
	"github.com/ameotech/triage/internal/notify"
)

// Enqueuer accepts notifications without blocking.
type Enqueuer interface {
	Enqueue(n notify.Notification) bool
}

// NotifyHandler forwards sales notifications from the site backend.
type NotifyHandler struct {
	queue Enqueuer
}

// NewNotifyHandler creates a notify handler.
func NewNotifyHandler(queue Enqueuer) *NotifyHandler {
	return &NotifyHandler{queue: queue}
}

type notifyRequest struct {
	Text   string         `json:"text"`
	Fields map[string]any `json:"fields"`
}

// NotifySales handles POST /internal/notify-sales with either a text or a
// fields object.
func (h *NotifyHandler) NotifySales(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	var n notify.Notification
	switch {
	case strings.TrimSpace(req.Text) != "":
		n = notify.FromFields(map[string]any{"text": req.Text})
	case len(req.Fields) > 0:
		n = notify.FromFields(req.Fields)
	default:
		WriteError(w, r, apperr.BadRequest("text or fields is required"))
		return
	}

	if !h.queue.Enqueue(n) {
		Error(w, http.StatusServiceUnavailable, "notification queue is full")
		return
	}
	JSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

// RegisterRoutes registers the internal notification route.
func (h *NotifyHandler) RegisterRoutes(r chi.Router) {
	r.Post("/internal/notify-sales", h.NotifySales)
}
