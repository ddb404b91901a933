package parser

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/starford/aiatlas/internal/models"
)

func fixedParser() *Parser {
	return &Parser{
		Author: "tester",
		Now:    func() time.Time { return time.Date(2025, 3, 14, 23, 0, 0, 0, time.UTC) },
	}
}

func TestParse_FrontMatterFields(t *testing.T) {
	input := []byte("---\n" +
		"title: \"Retrieval Augmented Generation\"\n" +
		"category: llm\n" +
		"description: 'What RAG is'\n" +
		"tags: [a, b]\n" +
		"difficulty: advanced\n" +
		"readTime: 7\n" +
		"order: 5\n" +
		"author: alice\n" +
		"coverImage: /img/rag.png\n" +
		"createdAt: 2024-01-02\n" +
		"updatedAt: 2024-02-03\n" +
		"---\n\n# RAG\nBody text.\n\n")

	r, err := fixedParser().Parse(input, "rag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := r.Note.NoteMeta
	want := models.NoteMeta{
		Slug:        "rag",
		Title:       "Retrieval Augmented Generation",
		Category:    "llm",
		Description: "What RAG is",
		Tags:        []string{"a", "b"},
		Difficulty:  models.DifficultyAdvanced,
		ReadTime:    7,
		Order:       5,
		Author:      "alice",
		CoverImage:  "/img/rag.png",
		CreatedAt:   "2024-01-02",
		UpdatedAt:   "2024-02-03",
	}
	if !reflect.DeepEqual(m, want) {
		t.Errorf("meta = %+v\nwant   %+v", m, want)
	}
	if r.Note.Content != "# RAG\nBody text." {
		t.Errorf("content = %q", r.Note.Content)
	}
	if r.DeclaredCategory != "llm" {
		t.Errorf("declared category = %q", r.DeclaredCategory)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", r.Warnings)
	}
}

func TestParse_NoFrontMatter(t *testing.T) {
	body := "  Plain text " + strings.Repeat("word ", 450)
	r, err := fixedParser().Parse([]byte(body), "what-is-rag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := r.Note.NoteMeta
	if m.Title != "What Is Rag" {
		t.Errorf("title = %q, want %q", m.Title, "What Is Rag")
	}
	if m.Order != DefaultOrder {
		t.Errorf("order = %d, want %d", m.Order, DefaultOrder)
	}
	if m.Difficulty != models.DifficultyBeginner {
		t.Errorf("difficulty = %q", m.Difficulty)
	}
	if m.ReadTime != 2 {
		t.Errorf("readTime = %d, want 2", m.ReadTime)
	}
	if m.Tags == nil || len(m.Tags) != 0 {
		t.Errorf("tags = %#v, want empty non-nil", m.Tags)
	}
	if m.Author != "tester" {
		t.Errorf("author = %q", m.Author)
	}
	if m.CreatedAt != "2025-03-14" || m.UpdatedAt != "2025-03-14" {
		t.Errorf("dates = %q / %q", m.CreatedAt, m.UpdatedAt)
	}
	if r.Note.Content != strings.TrimSpace(body) {
		t.Errorf("content not trimmed")
	}
}

func TestParse_ShortBodyReadTimeAtLeastOne(t *testing.T) {
	r, err := Parse([]byte("---\ntitle: x\n---\nfew words"), "x")
	if err != nil {
		t.Fatal(err)
	}
	if r.Note.ReadTime != 1 {
		t.Errorf("readTime = %d, want 1", r.Note.ReadTime)
	}
	if r.Note.Author != DefaultAuthor {
		t.Errorf("author = %q, want %q", r.Note.Author, DefaultAuthor)
	}
}

func TestParse_Unterminated(t *testing.T) {
	for _, in := range []string{"---", "---\ntitle: x\nbody without close\n"} {
		r, err := Parse([]byte(in), "x")
		if !errors.Is(err, ErrUnterminatedFrontMatter) {
			t.Errorf("Parse(%q) err = %v, want ErrUnterminatedFrontMatter", in, err)
		}
		if r != nil {
			t.Errorf("Parse(%q) returned a partial result", in)
		}
	}
}

func TestParse_PerFieldDefaults(t *testing.T) {
	input := []byte("---\ntitle: Only Title\nunknown: ignored\nnot a pair\n---\nbody")
	r, err := fixedParser().Parse(input, "only-title")
	if err != nil {
		t.Fatal(err)
	}
	m := r.Note.NoteMeta
	if m.Title != "Only Title" {
		t.Errorf("title = %q", m.Title)
	}
	if m.Order != DefaultOrder || m.Difficulty != models.DifficultyBeginner || m.Author != "tester" {
		t.Errorf("defaults not applied: %+v", m)
	}
	if m.Description != "" || len(m.Tags) != 0 {
		t.Errorf("description/tags = %q / %v", m.Description, m.Tags)
	}
}

func TestParse_InvalidNumbersDefaultWithWarning(t *testing.T) {
	input := []byte("---\nreadTime: soon\norder: first\n---\nbody")
	r, err := fixedParser().Parse(input, "n")
	if err != nil {
		t.Fatal(err)
	}
	if r.Note.Order != DefaultOrder {
		t.Errorf("order = %d, want default", r.Note.Order)
	}
	if r.Note.ReadTime != 1 {
		t.Errorf("readTime = %d, want estimate", r.Note.ReadTime)
	}
	if len(r.Warnings) != 2 {
		t.Fatalf("warnings = %v, want 2", r.Warnings)
	}
	for _, w := range r.Warnings {
		if !errors.Is(w, ErrInvalidNumber) {
			t.Errorf("warning %v does not wrap ErrInvalidNumber", w)
		}
	}
}

func TestParse_ZeroOrderKept(t *testing.T) {
	r, err := Parse([]byte("---\norder: 0\n---\n"), "z")
	if err != nil {
		t.Fatal(err)
	}
	if r.Note.Order != 0 {
		t.Errorf("order = %d, want 0", r.Note.Order)
	}
}

func TestParse_DifficultyAliases(t *testing.T) {
	cases := map[string]models.Difficulty{
		"入门":           models.DifficultyBeginner,
		"进阶":           models.DifficultyIntermediate,
		"高级":           models.DifficultyAdvanced,
		"Intermediate": models.DifficultyIntermediate,
	}
	for in, want := range cases {
		r, err := Parse([]byte("---\ndifficulty: "+in+"\n---\n"), "d")
		if err != nil {
			t.Fatal(err)
		}
		if r.Note.Difficulty != want {
			t.Errorf("difficulty(%q) = %q, want %q", in, r.Note.Difficulty, want)
		}
	}

	r, _ := Parse([]byte("---\ndifficulty: expert\n---\n"), "d")
	if r.Note.Difficulty != models.DifficultyBeginner {
		t.Errorf("unknown difficulty = %q, want beginner", r.Note.Difficulty)
	}
	if len(r.Warnings) != 1 || !errors.Is(r.Warnings[0], ErrUnknownDifficulty) {
		t.Errorf("warnings = %v", r.Warnings)
	}
}

func TestParse_CRLF(t *testing.T) {
	input := []byte("---\r\ntitle: Windows\r\ntags: x, y\r\n---\r\nbody\r\n")
	r, err := Parse(input, "w")
	if err != nil {
		t.Fatal(err)
	}
	if r.Note.Title != "Windows" {
		t.Errorf("title = %q", r.Note.Title)
	}
	if !reflect.DeepEqual(r.Note.Tags, []string{"x", "y"}) {
		t.Errorf("tags = %v", r.Note.Tags)
	}
	if r.Note.Content != "body" {
		t.Errorf("content = %q", r.Note.Content)
	}
}

func TestParse_ValueWithColon(t *testing.T) {
	r, err := Parse([]byte("---\ntitle: RAG: a primer\n---\n"), "r")
	if err != nil {
		t.Fatal(err)
	}
	if r.Note.Title != "RAG: a primer" {
		t.Errorf("title = %q", r.Note.Title)
	}
}

func TestParseTags(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"[ai, nlp, llm]", []string{"ai", "nlp", "llm"}},
		{"", []string{}},
		{"[]", []string{}},
		{"a, b", []string{"a", "b"}},
		{`["quoted", 'single', , bare]`, []string{"quoted", "single", "bare"}},
		{"solo", []string{"solo"}},
		{" , ,", []string{}},
	}
	for _, c := range cases {
		got := ParseTags(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("ParseTags(%q) = %#v, want %#v", c.in, got, c.want)
		}
	}
}

func TestTitleFromSlug(t *testing.T) {
	cases := map[string]string{
		"note-b":        "Note B",
		"what-is-rag":   "What Is Rag",
		"gpt4-overview": "Gpt4 Overview",
		"already_snake": "Already_snake",
		"":              "",
	}
	for in, want := range cases {
		if got := TitleFromSlug(in); got != want {
			t.Errorf("TitleFromSlug(%q) = %q, want %q", in, got, want)
		}
	}
}
