package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/aiatlas/internal/apperr"
	"github.com/starford/aiatlas/internal/index"
	"github.com/starford/aiatlas/internal/noteservice"
	"github.com/starford/aiatlas/internal/notes"
)

// maxLimit caps the limit query parameter.
const maxLimit = 100

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// queryLimit reads the limit parameter. Missing or invalid values yield def.
func queryLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxLimit)
}

func logFailure(r *http.Request, msg string, err error) {
	slog.Error(msg,
		slog.String("request_id", RequestIDFromContext(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
}

// ListNotes handles GET /api/notes. Filters apply in the order category, tag,
// q. Category and tag statistics always cover the whole corpus.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.List(r.Context(), notes.Query{
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
		Q:        q.Get("q"),
	})
	if err != nil {
		logFailure(r, "list notes failed", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("Failed to load notes"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetNote handles GET /api/notes/{slug}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	note, err := h.svc.GetNote(r.Context(), slug)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errResponse{Error: "Note not found", Slug: slug})
			return
		}
		logFailure(r, "get note failed", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("Failed to load note"))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// RelatedNotes handles GET /api/notes/{slug}/related.
func (h *Handler) RelatedNotes(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	rel, err := h.svc.Related(r.Context(), slug, queryLimit(r, 0))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errResponse{Error: "Note not found", Slug: slug})
			return
		}
		logFailure(r, "related notes failed", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("Failed to load notes"))
		return
	}
	writeJSON(w, http.StatusOK, RelatedResponse{Slug: slug, Notes: rel})
}

// Categories handles GET /api/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Categories(r.Context())
	if err != nil {
		logFailure(r, "categories failed", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("Failed to load notes"))
		return
	}
	writeJSON(w, http.StatusOK, CategoriesResponse{Categories: stats})
}

// Tags handles GET /api/tags.
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.Tags(r.Context())
	if err != nil {
		logFailure(r, "tags failed", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("Failed to load notes"))
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// Search handles GET /api/search against the search mirror.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter q is required"))
		return
	}
	results, err := h.svc.Search(r.Context(), q, queryLimit(r, index.DefaultSearchLimit))
	if err != nil {
		if errors.Is(err, noteservice.ErrSearchDisabled) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody("search is disabled"))
			return
		}
		logFailure(r, "search failed", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("search failed"))
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Results: results})
}

// Live handles GET /health/live.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /health/ready. The service is ready once a scan has
// succeeded and the latest scan attempt did not fail.
func (h *Handler) Ready(w http.ResponseWriter, _ *http.Request) {
	if !h.svc.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
