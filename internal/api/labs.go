package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ameotech/triage/internal/apperr"
	"github.com/ameotech/triage/internal/dialogue"
	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/labs"
)

// LabsHandler runs the lab scoring engines.
type LabsHandler struct {
	mgr *dialogue.Manager
}

// NewLabsHandler creates a labs handler. mgr supplies follow-up suggestions
// for readiness results.
func NewLabsHandler(mgr *dialogue.Manager) *LabsHandler {
	return &LabsHandler{mgr: mgr}
}

// Run handles POST /labs/{slug}/run. The optional session_id query parameter
// ties the run to a chat session.
func (h *LabsHandler) Run(w http.ResponseWriter, r *http.Request) {
	tool, ok := domain.ParseLabTool(chi.URLParam(r, "slug"))
	if !ok {
		Error(w, http.StatusNotFound, "unknown lab tool")
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	res, err := labs.Run(tool, body)
	if errors.Is(err, labs.ErrInvalidAnswers) {
		WriteError(w, r, apperr.New(err, http.StatusBadRequest, labs.ErrInvalidAnswers.Error()))
		return
	}
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if rr, ok := res.(labs.ReadinessResult); ok {
		rr.NextActions = h.mgr.NextFor(r.Context(), r.URL.Query().Get("session_id"), rr).NextActions
		res = rr
	}
	JSON(w, http.StatusOK, res)
}

// RegisterRoutes registers the lab routes.
func (h *LabsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/labs/{slug}/run", h.Run)
}
