package api

import (
	"github.com/starford/aiatlas/internal/index"
	"github.com/starford/aiatlas/internal/models"
)

// RelatedResponse wraps related notes.
type RelatedResponse struct {
	Slug  string            `json:"slug"`
	Notes []models.NoteMeta `json:"notes"`
}

// CategoriesResponse wraps the category statistics.
type CategoriesResponse struct {
	Categories []models.CategoryStat `json:"categories"`
}

// TagsResponse wraps the tag histogram.
type TagsResponse struct {
	Tags []models.TagCount `json:"tags"`
}

// SearchResponse wraps search mirror hits.
type SearchResponse struct {
	Query   string               `json:"query"`
	Results []index.SearchResult `json:"results"`
}

// HealthResponse is the body of the health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}
