package index

import "github.com/starford/aiatlas/internal/models"

// Mirror is the search mirror as seen by the HTTP and MCP layers.
type Mirror interface {
	UpsertNote(n *models.Note) error
	DeleteNote(slug string) error
	Entries() (map[string]Entry, error)
	Count() (int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

var _ Mirror = (*DB)(nil)
