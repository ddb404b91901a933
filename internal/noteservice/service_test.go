package noteservice

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/aiatlas/internal/apperr"
	"github.com/starford/aiatlas/internal/index"
	"github.com/starford/aiatlas/internal/models"
	"github.com/starford/aiatlas/internal/notes"
	"github.com/starford/aiatlas/internal/scanner"
	"github.com/starford/aiatlas/internal/testutil"
)

func testService(t *testing.T, mirror bool) *Service {
	t.Helper()
	root, store := testutil.TestCorpus(t)
	testutil.WriteNote(t, root, "llm", "rag", "---\ntitle: RAG\ntags: [retrieval, llm]\norder: 1\n---\nretrieval augmented generation")
	testutil.WriteNote(t, root, "llm", "agents", "---\ntitle: Agents\ntags: [llm, tools]\norder: 2\n---\nagent loops")
	testutil.WriteNote(t, root, "ai-tools", "vector-db", "---\ntitle: Vector DB\ntags: [retrieval]\norder: 3\n---\nembeddings store")

	cats := []models.Category{{ID: "llm", Name: "LLM"}, {ID: "ai-tools", Name: "Tools"}, {ID: "empty", Name: "Empty"}}
	sc := scanner.New(store, cats, scanner.WithLogger(testutil.Logger()))

	var m index.Mirror
	if mirror {
		db := testutil.TestDB(t)
		sc.OnRefresh(func(_ context.Context, ns []models.Note, _ *scanner.Report) {
			_, _ = index.Sync(db, ns, testutil.Logger())
		})
		m = db
	}
	return NewService(sc, m, 0)
}

func TestList_FiltersButStatsCoverCorpus(t *testing.T) {
	svc := testService(t, false)
	res, err := svc.List(context.Background(), notes.Query{Category: "llm", Tag: "retrieval"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || len(res.Notes) != 1 || res.Notes[0].Slug != "rag" {
		t.Fatalf("notes = %+v", res.Notes)
	}
	if len(res.Categories) != 3 || res.Categories[0].Count != 2 || res.Categories[1].Count != 1 || res.Categories[2].Count != 0 {
		t.Errorf("categories = %+v", res.Categories)
	}
	if len(res.Tags) != 3 || res.Tags[0].Count != 2 {
		t.Errorf("tags = %+v", res.Tags)
	}
}

func TestList_AllCategory(t *testing.T) {
	svc := testService(t, false)
	res, err := svc.List(context.Background(), notes.Query{Category: notes.AllCategories})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 3 {
		t.Errorf("total = %d", res.Total)
	}
}

func TestGetNote(t *testing.T) {
	svc := testService(t, false)
	n, err := svc.GetNote(context.Background(), "agents")
	if err != nil {
		t.Fatal(err)
	}
	if n.Content != "agent loops" {
		t.Errorf("content = %q", n.Content)
	}
	if _, err := svc.GetNote(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestRelated(t *testing.T) {
	svc := testService(t, false)
	rel, err := svc.Related(context.Background(), "rag", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rel) != 2 {
		t.Fatalf("related = %+v", rel)
	}
	if _, err := svc.Related(context.Background(), "missing", 0); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	rel, _ = svc.Related(context.Background(), "rag", 1)
	if len(rel) != 1 {
		t.Errorf("limit ignored: %d", len(rel))
	}
}

func TestSearch(t *testing.T) {
	svc := testService(t, false)
	if _, err := svc.Search(context.Background(), "rag", 10); !errors.Is(err, ErrSearchDisabled) {
		t.Errorf("err = %v, want ErrSearchDisabled", err)
	}

	// The first search loads the corpus and fills the mirror.
	svc = testService(t, true)
	hits, err := svc.Search(context.Background(), "embeddings", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Slug != "vector-db" || hits[0].Category != "ai-tools" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestReady(t *testing.T) {
	svc := testService(t, false)
	if svc.Ready() {
		t.Error("ready before first scan")
	}
	if _, err := svc.Tags(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !svc.Ready() || svc.LastReport() == nil {
		t.Error("not ready after scan")
	}
}
