// Package noteservice is the read-side service shared by the HTTP API and the
// MCP server. It combines the cached corpus with the derived indexes and the
// optional search mirror.
package noteservice

import (
	"context"
	"errors"

	"github.com/starford/aiatlas/internal/index"
	"github.com/starford/aiatlas/internal/models"
	"github.com/starford/aiatlas/internal/notes"
	"github.com/starford/aiatlas/internal/scanner"
)

// ErrSearchDisabled is returned by Search when no search mirror is configured.
var ErrSearchDisabled = errors.New("search mirror disabled")

// Source is the part of the scanner the service reads from.
type Source interface {
	Notes(ctx context.Context) ([]models.Note, error)
	BySlug(ctx context.Context, slug string) (*models.Note, error)
	Categories() []models.Category
	LastReport() *scanner.Report
	Healthy() bool
}

var _ Source = (*scanner.Scanner)(nil)

// ListResult is the response of List. Categories and Tags are computed over
// the whole corpus, not the filtered subset.
type ListResult struct {
	Notes      []models.NoteMeta     `json:"notes"`
	Total      int                   `json:"total"`
	Categories []models.CategoryStat `json:"categories"`
	Tags       []models.TagCount     `json:"tags"`
}

// Service answers note queries.
type Service struct {
	src          Source
	mirror       index.Mirror
	relatedLimit int
}

// NewService creates a service. mirror may be nil, which disables Search.
// relatedLimit <= 0 means notes.DefaultRelatedLimit.
func NewService(src Source, mirror index.Mirror, relatedLimit int) *Service {
	if relatedLimit <= 0 {
		relatedLimit = notes.DefaultRelatedLimit
	}
	return &Service{src: src, mirror: mirror, relatedLimit: relatedLimit}
}

// List filters the corpus by q and strips bodies.
func (s *Service) List(ctx context.Context, q notes.Query) (*ListResult, error) {
	all, err := s.src.Notes(ctx)
	if err != nil {
		return nil, err
	}
	metas := models.Metas(q.Apply(all))
	return &ListResult{
		Notes:      metas,
		Total:      len(metas),
		Categories: notes.CategoryStats(all, s.src.Categories()),
		Tags:       notes.TagCounts(all),
	}, nil
}

// GetNote returns the full note for slug or apperr.ErrNotFound.
func (s *Service) GetNote(ctx context.Context, slug string) (*models.Note, error) {
	return s.src.BySlug(ctx, slug)
}

// Related returns up to limit notes sharing tags with slug. limit <= 0 uses
// the configured default.
func (s *Service) Related(ctx context.Context, slug string, limit int) ([]models.NoteMeta, error) {
	if _, err := s.src.BySlug(ctx, slug); err != nil {
		return nil, err
	}
	all, err := s.src.Notes(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.relatedLimit
	}
	return notes.Related(all, slug, limit), nil
}

// Categories returns per-category note counts in configuration order.
func (s *Service) Categories(ctx context.Context) ([]models.CategoryStat, error) {
	all, err := s.src.Notes(ctx)
	if err != nil {
		return nil, err
	}
	return notes.CategoryStats(all, s.src.Categories()), nil
}

// Tags returns the tag histogram.
func (s *Service) Tags(ctx context.Context) ([]models.TagCount, error) {
	all, err := s.src.Notes(ctx)
	if err != nil {
		return nil, err
	}
	return notes.TagCounts(all), nil
}

// Search queries the search mirror. The corpus is loaded first so a stale
// cache is rescanned, and the mirror synced, before the query runs.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.mirror == nil {
		return nil, ErrSearchDisabled
	}
	if _, err := s.src.Notes(ctx); err != nil {
		return nil, err
	}
	return s.mirror.Search(query, limit)
}

// SearchEnabled reports whether a search mirror is configured.
func (s *Service) SearchEnabled() bool {
	return s.mirror != nil
}

// Ready reports whether the most recent scan succeeded.
func (s *Service) Ready() bool {
	return s.src.Healthy()
}

// LastReport returns the report of the most recent successful scan, or nil.
func (s *Service) LastReport() *scanner.Report {
	return s.src.LastReport()
}
