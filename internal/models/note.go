// Package models defines the domain types for aiatlas.
package models

// Difficulty is the reading level of a note.
type Difficulty string

// Difficulty levels.
const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is one of the known levels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// NoteMeta is the front-matter metadata of a note. List responses carry
// NoteMeta only; the body is stripped.
type NoteMeta struct {
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	Difficulty  Difficulty `json:"difficulty"`
	ReadTime    int        `json:"readTime"`
	Order       int        `json:"order"`
	Author      string     `json:"author"`
	CoverImage  string     `json:"coverImage,omitempty"`
	CreatedAt   string     `json:"createdAt"`
	UpdatedAt   string     `json:"updatedAt"`
}

// Note is a parsed markdown document: metadata plus body.
type Note struct {
	NoteMeta
	Content string `json:"content"`

	// Checksum is the SHA-256 of the raw source file.
	Checksum string `json:"-"`
}

// Meta returns a copy of the metadata with the body dropped.
func (n *Note) Meta() NoteMeta {
	m := n.NoteMeta
	m.Tags = append([]string(nil), n.Tags...)
	if m.Tags == nil {
		m.Tags = []string{}
	}
	return m
}

// HasTag reports whether the note carries tag (case-sensitive).
func (m *NoteMeta) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Metas strips the body from every note, preserving order.
func Metas(notes []Note) []NoteMeta {
	out := make([]NoteMeta, len(notes))
	for i := range notes {
		out[i] = notes[i].Meta()
	}
	return out
}

// Category is a configured partition of the corpus. Each category maps to one
// subdirectory of the notes root named after its ID.
type Category struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon" yaml:"icon"`
	Order       int    `json:"order" yaml:"order"`
}

// CategoryStat is a category with the number of notes it holds.
type CategoryStat struct {
	Category
	Count int `json:"count"`
}

// TagCount is one entry of the tag histogram.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// DefaultCategories is the built-in category set.
func DefaultCategories() []Category {
	return []Category{
		{ID: "ai-fundamentals", Name: "AI Fundamentals", Description: "Core concepts and principles of artificial intelligence", Icon: "📚", Order: 1},
		{ID: "llm", Name: "Large Language Models", Description: "GPT, Claude and other large models", Icon: "🤖", Order: 2},
		{ID: "ai-tools", Name: "AI Tools", Description: "LangChain, vector databases and other tooling", Icon: "🛠️", Order: 3},
		{ID: "practical-cases", Name: "Practical Cases", Description: "Real project case studies and code", Icon: "💡", Order: 4},
	}
}
