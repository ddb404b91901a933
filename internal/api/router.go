package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/aiatlas/internal/noteservice"
)

// Backend holds the handlers that forward to the external backend.
type Backend struct {
	// Stats serves POST /stats/record.
	Stats http.Handler
	// Proxy forwards every path under Prefixes unchanged.
	Proxy    http.Handler
	Prefixes []string
	// Limit wraps Proxy; nil means no limit.
	Limit func(http.Handler) http.Handler
}

// NewRouter creates the router mounted at /api.
// events, if non-nil, is mounted at GET /events. be, if non-nil, mounts the
// backend pass-through routes.
func NewRouter(svc *noteservice.Service, events http.Handler, be *Backend) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	r.Get("/notes", h.ListNotes)
	r.Get("/notes/{slug}", h.GetNote)
	r.Get("/notes/{slug}/related", h.RelatedNotes)
	r.Get("/categories", h.Categories)
	r.Get("/tags", h.Tags)
	r.Get("/search", h.Search)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	if be != nil {
		if be.Stats != nil {
			r.Post("/stats/record", be.Stats.ServeHTTP)
		}
		if be.Proxy != nil {
			proxy := be.Proxy
			if be.Limit != nil {
				proxy = be.Limit(proxy)
			}
			for _, p := range be.Prefixes {
				p = "/" + strings.Trim(p, "/")
				r.Handle(p, proxy)
				r.Handle(p+"/*", proxy)
			}
		}
	}

	return r
}

// MountHealth registers the liveness and readiness probes on r.
func MountHealth(r chi.Router, svc *noteservice.Service) {
	h := NewHandler(svc)
	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)
}
