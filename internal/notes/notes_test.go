package notes

import (
	"reflect"
	"testing"

	"github.com/starford/aiatlas/internal/models"
)

func note(slug, category string, tags ...string) models.Note {
	if tags == nil {
		tags = []string{}
	}
	return models.Note{NoteMeta: models.NoteMeta{Slug: slug, Title: slug, Category: category, Tags: tags}}
}

func slugs[T any](items []T, slug func(T) string) []string {
	out := []string{}
	for _, it := range items {
		out = append(out, slug(it))
	}
	return out
}

func noteSlugs(ns []models.Note) []string {
	return slugs(ns, func(n models.Note) string { return n.Slug })
}

func metaSlugs(ms []models.NoteMeta) []string {
	return slugs(ms, func(m models.NoteMeta) string { return m.Slug })
}

func TestSearch_CaseInsensitiveAcrossFields(t *testing.T) {
	byTag := note("by-tag", "llm", "rag")
	byDesc := note("by-desc", "llm")
	byDesc.Description = "An intro to RAG pipelines"
	byBody := note("by-body", "llm")
	byBody.Content = "we use Rag here"
	none := note("none", "llm", "agents")

	ns := []models.Note{byTag, byDesc, byBody, none}
	got := noteSlugs(Search(ns, "rag"))
	if !reflect.DeepEqual(got, []string{"by-tag", "by-desc", "by-body"}) {
		t.Errorf("Search = %v", got)
	}

	metas := models.Metas(ns)
	gotMeta := metaSlugs(SearchMetas(metas, "RAG"))
	if !reflect.DeepEqual(gotMeta, []string{"by-tag", "by-desc"}) {
		t.Errorf("SearchMetas = %v (body must not be searched)", gotMeta)
	}
}

func TestByTag_ExactCaseSensitive(t *testing.T) {
	ns := []models.Note{note("a", "llm", "RAG"), note("b", "llm", "rag"), note("c", "llm", "ragged")}
	got := noteSlugs(ByTag(ns, "rag"))
	if !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("ByTag = %v", got)
	}
}

func TestByCategory(t *testing.T) {
	ns := []models.Note{note("a", "llm"), note("b", "ai-tools"), note("c", "llm")}
	if got := noteSlugs(ByCategory(ns, "llm")); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("ByCategory = %v", got)
	}
	if got := metaSlugs(MetasByCategory(models.Metas(ns), "ai-tools")); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("MetasByCategory = %v", got)
	}
	if got := ByCategory(ns, "missing"); got == nil || len(got) != 0 {
		t.Errorf("ByCategory(missing) = %#v, want empty non-nil", got)
	}
}

func TestQuery_ComposesInOrder(t *testing.T) {
	a := note("a", "llm", "rag")
	a.Title = "Vector stores"
	b := note("b", "llm", "rag")
	c := note("c", "ai-tools", "rag")
	c.Title = "Vector DBs"
	ns := []models.Note{a, b, c}

	got := noteSlugs(Query{Category: "llm", Tag: "rag", Q: "vector"}.Apply(ns))
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Apply = %v", got)
	}
	got = noteSlugs(Query{Category: AllCategories, Q: "vector"}.Apply(ns))
	if !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("Apply(all) = %v", got)
	}
	if got := Query{}.Apply(nil); got == nil {
		t.Error("Apply(nil) should return an empty non-nil slice")
	}
}

func TestTagCounts(t *testing.T) {
	ns := []models.Note{
		note("a", "llm", "x", "y"),
		note("b", "llm", "y", "z"),
		note("c", "llm", "z", "y"),
	}
	want := []models.TagCount{{Tag: "y", Count: 3}, {Tag: "z", Count: 2}, {Tag: "x", Count: 1}}
	if got := TagCounts(ns); !reflect.DeepEqual(got, want) {
		t.Errorf("TagCounts = %v, want %v", got, want)
	}
	if got := TagCounts(nil); got == nil || len(got) != 0 {
		t.Errorf("TagCounts(nil) = %#v", got)
	}
}

func TestCategoryStats_IncludesEmptyInConfigOrder(t *testing.T) {
	cats := models.DefaultCategories()
	ns := []models.Note{note("a", "llm"), note("b", "llm"), note("c", "practical-cases")}
	stats := CategoryStats(ns, cats)
	if len(stats) != len(cats) {
		t.Fatalf("len = %d, want %d", len(stats), len(cats))
	}
	want := map[string]int{"ai-fundamentals": 0, "llm": 2, "ai-tools": 0, "practical-cases": 1}
	for i, s := range stats {
		if s.ID != cats[i].ID {
			t.Errorf("stats[%d] = %s, want %s", i, s.ID, cats[i].ID)
		}
		if s.Count != want[s.ID] {
			t.Errorf("count(%s) = %d, want %d", s.ID, s.Count, want[s.ID])
		}
	}
}

func TestRelated(t *testing.T) {
	ns := []models.Note{
		note("a", "llm", "x", "y"),
		note("b", "llm", "y", "z"),
		note("c", "llm"),
		note("d", "llm", "x", "y", "w"),
	}
	got := Related(ns, "a", 0)
	if !reflect.DeepEqual(metaSlugs(got), []string{"d", "b"}) {
		t.Errorf("Related = %v, want [d b]", metaSlugs(got))
	}
	for _, m := range got {
		if m.Slug == "a" {
			t.Error("current note must not be related to itself")
		}
	}

	if got := Related(ns, "a", 1); !reflect.DeepEqual(metaSlugs(got), []string{"d"}) {
		t.Errorf("Related limit 1 = %v", metaSlugs(got))
	}
	if got := Related(ns, "missing", 4); got == nil || len(got) != 0 {
		t.Errorf("Related(missing) = %#v", got)
	}
	if got := Related(ns, "c", 4); len(got) != 0 {
		t.Errorf("untagged note should have no related notes, got %v", metaSlugs(got))
	}
}

func TestRelated_DefaultLimit(t *testing.T) {
	ns := []models.Note{note("cur", "llm", "t")}
	for _, s := range []string{"n1", "n2", "n3", "n4", "n5", "n6"} {
		ns = append(ns, note(s, "llm", "t"))
	}
	if got := Related(ns, "cur", 0); len(got) != DefaultRelatedLimit {
		t.Errorf("len = %d, want %d", len(got), DefaultRelatedLimit)
	}
}
