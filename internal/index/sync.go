package index

import (
	"log/slog"

	"github.com/starford/aiatlas/internal/models"
)

// SyncStats counts what one Sync changed.
type SyncStats struct {
	Upserted  int
	Deleted   int
	Unchanged int
}

// Sync brings the mirror in line with a scanned note list:
//   - new notes, and notes whose checksum, category or updatedAt differ from
//     the mirrored entry, are upserted
//   - mirrored slugs absent from notes are deleted
//
// When notes holds a slug twice the first occurrence wins, matching lookup
// by slug on the scanner.
func Sync(m Mirror, notes []models.Note, logger *slog.Logger) (SyncStats, error) {
	var st SyncStats
	mirrored, err := m.Entries()
	if err != nil {
		return st, err
	}

	live := make(map[string]struct{}, len(notes))
	for i := range notes {
		n := &notes[i]
		if _, dup := live[n.Slug]; dup {
			continue
		}
		live[n.Slug] = struct{}{}

		if e, ok := mirrored[n.Slug]; ok && e.Matches(n) {
			st.Unchanged++
			continue
		}
		if err := m.UpsertNote(n); err != nil {
			logger.Warn("sync: upsert failed", slog.String("slug", n.Slug), slog.String("error", err.Error()))
			continue
		}
		st.Upserted++
		logger.Debug("sync: mirrored", slog.String("slug", n.Slug))
	}

	for slug := range mirrored {
		if _, ok := live[slug]; ok {
			continue
		}
		if err := m.DeleteNote(slug); err != nil {
			logger.Warn("sync: delete failed", slog.String("slug", slug), slog.String("error", err.Error()))
			continue
		}
		st.Deleted++
		logger.Debug("sync: removed stale", slog.String("slug", slug))
	}
	return st, nil
}
