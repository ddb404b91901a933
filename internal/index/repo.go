package index

import (
	"encoding/json"
	"fmt"

	"github.com/starford/aiatlas/internal/models"
)

// DefaultSearchLimit caps search results when the caller passes no limit.
const DefaultSearchLimit = 20

// SearchResult is one search hit.
type SearchResult struct {
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Snippet  string `json:"snippet"`
}

// UpsertNote inserts or replaces a note and its FTS entry within a
// transaction.
func (db *DB) UpsertNote(n *models.Note) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)

	_, err = tx.Exec(`
		INSERT INTO notes (slug, title, category, description, tags, body, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			title       = excluded.title,
			category    = excluded.category,
			description = excluded.description,
			tags        = excluded.tags,
			body        = excluded.body,
			checksum    = excluded.checksum,
			updated_at  = excluded.updated_at
	`, n.Slug, n.Title, n.Category, n.Description, string(tagsJSON), n.Content, n.Checksum, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if err := ftsUpsert(tx, n); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteNote removes a note and its FTS entry.
func (db *DB) DeleteNote(slug string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, slug); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE slug = ?`, slug); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// Entry is the mirrored state Sync compares against a scanned note.
type Entry struct {
	Checksum  string
	Category  string
	UpdatedAt string
}

// Matches reports whether n is mirrored as-is. Category and UpdatedAt are
// derived outside the file, so an unchanged checksum alone is not enough.
func (e Entry) Matches(n *models.Note) bool {
	return e.Checksum == n.Checksum && e.Category == n.Category && e.UpdatedAt == n.UpdatedAt
}

// Entries returns slug -> mirrored state for every mirrored note.
func (db *DB) Entries() (map[string]Entry, error) {
	rows, err := db.conn.Query(`SELECT slug, checksum, category, updated_at FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: entries: %w", err)
	}
	defer rows.Close()
	out := make(map[string]Entry)
	for rows.Next() {
		var slug string
		var e Entry
		if err := rows.Scan(&slug, &e.Checksum, &e.Category, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out[slug] = e
	}
	return out, rows.Err()
}

// Count returns the number of mirrored notes.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}
