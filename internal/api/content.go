package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ameotech/triage/internal/apperr"
	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/store"
)

// ContentHandler serves published case studies and job postings.
type ContentHandler struct {
	repo store.Repository
}

// NewContentHandler creates a content handler.
func NewContentHandler(repo store.Repository) *ContentHandler {
	return &ContentHandler{repo: repo}
}

func (h *ContentHandler) list(kind domain.ContentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.repo.ListContent(r.Context(), kind, true)
		if err != nil {
			WriteError(w, r, apperr.WrapStore(err))
			return
		}
		if items == nil {
			items = []*domain.ContentItem{}
		}
		JSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (h *ContentHandler) get(kind domain.ContentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := h.repo.GetContent(r.Context(), kind, chi.URLParam(r, "slug"))
		if err != nil {
			WriteError(w, r, apperr.WrapStore(err))
			return
		}
		// Drafts are indistinguishable from missing items.
		if item == nil || !item.IsPublished() {
			Error(w, http.StatusNotFound, "not found")
			return
		}
		JSON(w, http.StatusOK, item)
	}
}

// RegisterRoutes registers the content routes.
func (h *ContentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/content", func(r chi.Router) {
		r.Get("/case-studies", h.list(domain.ContentCaseStudy))
		r.Get("/case-studies/{slug}", h.get(domain.ContentCaseStudy))
		r.Get("/jobs", h.list(domain.ContentJob))
		r.Get("/jobs/{slug}", h.get(domain.ContentJob))
	})
}
