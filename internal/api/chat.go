package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ameotech/triage/internal/apperr"
	"github.com/ameotech/triage/internal/dialogue"
	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/identity"
	"github.com/ameotech/triage/internal/labs"
	"github.com/ameotech/triage/internal/store"
)

// feedbackTimeout bounds the background write of one feedback event.
const feedbackTimeout = 5 * time.Second

// ChatHandler serves the chat widget endpoints.
type ChatHandler struct {
	mgr    *dialogue.Manager
	repo   store.Repository
	logger *slog.Logger

	// pending tracks feedback writes still in flight.
	pending sync.WaitGroup
}

// NewChatHandler creates a chat handler.
func NewChatHandler(mgr *dialogue.Manager, repo store.Repository, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{mgr: mgr, repo: repo, logger: logger}
}

type sessionRequest struct {
	Page string `json:"page"`
}

// CreateSession handles POST /chat/session.
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	// An empty body is allowed; the page is optional.
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
	}
	JSON(w, http.StatusOK, h.mgr.Welcome(r.Context(), req.Page))
}

// Route handles POST /reason/chat-route. Any well-formed request gets 200.
func (h *ChatHandler) Route(w http.ResponseWriter, r *http.Request) {
	var req dialogue.RouteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	req.VisitorID = identity.VisitorIDFromContext(r.Context())

	JSON(w, http.StatusOK, h.mgr.Route(r.Context(), req))
}

type feedbackRequest struct {
	SessionID string          `json:"session_id"`
	Event     string          `json:"event"`
	Action    domain.Action   `json:"action"`
	Payload   json.RawMessage `json:"payload"`
}

// Feedback handles POST /reason/feedback. The event is stored in the
// background and never affects routing.
func (h *ChatHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Event) == "" {
		WriteError(w, r, apperr.BadRequest("event is required"))
		return
	}

	ev := &domain.FeedbackEvent{
		SessionID: req.SessionID,
		VisitorID: identity.VisitorIDFromContext(r.Context()),
		Event:     req.Event,
		Action:    req.Action,
		Payload:   req.Payload,
	}

	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), feedbackTimeout)
		defer cancel()
		if err := h.repo.RecordFeedback(ctx, ev); err != nil {
			h.logger.Warn("Failed to record feedback", "session_id", ev.SessionID, "event", ev.Event, "error", err)
		}
	}()

	JSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

// Wait blocks until background feedback writes finish.
func (h *ChatHandler) Wait() {
	h.pending.Wait()
}

// LabNext handles POST /reason/lab-next.
func (h *ChatHandler) LabNext(w http.ResponseWriter, r *http.Request) {
	var req dialogue.LabNextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	res, err := h.mgr.LabNext(r.Context(), req)
	switch {
	case errors.Is(err, dialogue.ErrUnknownTool), errors.Is(err, labs.ErrInvalidAnswers):
		WriteError(w, r, apperr.New(err, http.StatusBadRequest, err.Error()))
		return
	case err != nil:
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// RegisterRoutes registers the chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/session", h.CreateSession)
	r.Route("/reason", func(r chi.Router) {
		r.Post("/chat-route", h.Route)
		r.Post("/feedback", h.Feedback)
		r.Post("/lab-next", h.LabNext)
	})
}
