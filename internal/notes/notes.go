// Package notes provides pure functions over an already scanned note list:
// filters, search, tag and category statistics, and relatedness.
package notes

import (
	"slices"
	"strings"

	"github.com/starford/aiatlas/internal/models"
)

// AllCategories is the category filter value that disables filtering.
const AllCategories = "all"

// DefaultRelatedLimit is the number of related notes returned when the caller
// does not ask for a specific count.
const DefaultRelatedLimit = 4

// Query holds the list filters. Empty fields are not applied.
type Query struct {
	Category string
	Tag      string
	Q        string
}

// Apply filters ns by category, then tag, then search text.
func (q Query) Apply(ns []models.Note) []models.Note {
	out := ns
	if q.Category != "" && q.Category != AllCategories {
		out = ByCategory(out, q.Category)
	}
	if q.Tag != "" {
		out = ByTag(out, q.Tag)
	}
	if q.Q != "" {
		out = Search(out, q.Q)
	}
	if out == nil {
		return []models.Note{}
	}
	return out
}

// ByCategory keeps notes whose category equals id.
func ByCategory(ns []models.Note, id string) []models.Note {
	return filter(ns, func(n *models.Note) bool { return n.Category == id })
}

// MetasByCategory is ByCategory over metadata.
func MetasByCategory(ms []models.NoteMeta, id string) []models.NoteMeta {
	return filter(ms, func(m *models.NoteMeta) bool { return m.Category == id })
}

// ByTag keeps notes carrying tag. Matching is exact and case-sensitive.
func ByTag(ns []models.Note, tag string) []models.Note {
	return filter(ns, func(n *models.Note) bool { return n.HasTag(tag) })
}

// Search keeps notes whose title, description, any tag or body contains
// query, ignoring case.
func Search(ns []models.Note, query string) []models.Note {
	q := strings.ToLower(query)
	return filter(ns, func(n *models.Note) bool {
		return metaMatches(&n.NoteMeta, q) || strings.Contains(strings.ToLower(n.Content), q)
	})
}

// SearchMetas is Search without the body field.
func SearchMetas(ms []models.NoteMeta, query string) []models.NoteMeta {
	q := strings.ToLower(query)
	return filter(ms, func(m *models.NoteMeta) bool { return metaMatches(m, q) })
}

func metaMatches(m *models.NoteMeta, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(m.Title), lowerQuery) ||
		strings.Contains(strings.ToLower(m.Description), lowerQuery) {
		return true
	}
	return slices.ContainsFunc(m.Tags, func(t string) bool {
		return strings.Contains(strings.ToLower(t), lowerQuery)
	})
}

// TagCounts counts every tag across ns, most frequent first. Tags with equal
// counts keep the order in which they were first seen.
func TagCounts(ns []models.Note) []models.TagCount {
	idx := make(map[string]int)
	out := []models.TagCount{}
	for i := range ns {
		for _, tag := range ns[i].Tags {
			if j, ok := idx[tag]; ok {
				out[j].Count++
				continue
			}
			idx[tag] = len(out)
			out = append(out, models.TagCount{Tag: tag, Count: 1})
		}
	}
	slices.SortStableFunc(out, func(a, b models.TagCount) int { return b.Count - a.Count })
	return out
}

// CategoryStats returns every configured category, in configuration order,
// with the number of notes it holds. Empty categories are included.
func CategoryStats(ns []models.Note, cats []models.Category) []models.CategoryStat {
	counts := make(map[string]int, len(cats))
	for i := range ns {
		counts[ns[i].Category]++
	}
	out := make([]models.CategoryStat, len(cats))
	for i, c := range cats {
		out[i] = models.CategoryStat{Category: c, Count: counts[c.ID]}
	}
	return out
}

// Related ranks the other notes by how many tags they share with the note
// identified by slug. Notes sharing no tag are dropped. limit <= 0 means
// DefaultRelatedLimit. An unknown slug yields an empty list.
func Related(ns []models.Note, slug string, limit int) []models.NoteMeta {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	out := []models.NoteMeta{}
	i := slices.IndexFunc(ns, func(n models.Note) bool { return n.Slug == slug })
	if i < 0 {
		return out
	}
	current := &ns[i]

	type scored struct {
		note  *models.Note
		score int
	}
	var ranked []scored
	for j := range ns {
		n := &ns[j]
		if n.Slug == slug {
			continue
		}
		score := 0
		for _, tag := range n.Tags {
			if current.HasTag(tag) {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{note: n, score: score})
		}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int { return b.score - a.score })
	for _, r := range ranked[:min(limit, len(ranked))] {
		out = append(out, r.note.Meta())
	}
	return out
}

func filter[T any](in []T, keep func(*T) bool) []T {
	out := []T{}
	for i := range in {
		if keep(&in[i]) {
			out = append(out, in[i])
		}
	}
	return out
}
