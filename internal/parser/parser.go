// Package parser turns a markdown document with an optional front-matter
// block into a models.Note.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/starford/aiatlas/internal/models"
)

const (
	delim = "---"

	// DefaultOrder sorts notes without an explicit order last.
	DefaultOrder = 999
	// DefaultAuthor is used when the document names no author.
	DefaultAuthor = "aiatlas"

	wordsPerMinute = 200
	dateLayout     = "2006-01-02"
)

var (
	// ErrUnterminatedFrontMatter is returned when a document opens a
	// front-matter block but never closes it.
	ErrUnterminatedFrontMatter = errors.New("front matter not terminated")
	// ErrInvalidNumber marks a numeric field that could not be parsed.
	ErrInvalidNumber = errors.New("invalid number")
	// ErrUnknownDifficulty marks a difficulty outside the known levels.
	ErrUnknownDifficulty = errors.New("unknown difficulty")
)

// difficultyAliases maps accepted spellings to levels. The CJK spellings are
// the ones used by the existing corpus.
var difficultyAliases = map[string]models.Difficulty{
	"beginner":     models.DifficultyBeginner,
	"intermediate": models.DifficultyIntermediate,
	"advanced":     models.DifficultyAdvanced,
	"入门":           models.DifficultyBeginner,
	"进阶":           models.DifficultyIntermediate,
	"高级":           models.DifficultyAdvanced,
}

// Result holds the output of parsing one document.
type Result struct {
	Note models.Note
	// DeclaredCategory is the category named inside the front matter, if any.
	DeclaredCategory string
	// Warnings lists fields that were present but unusable and got defaulted.
	Warnings []error
}

// Parser parses documents. The zero value is ready to use.
type Parser struct {
	// Author is used when a document has no author field.
	Author string
	// Now supplies the date for missing timestamps.
	Now func() time.Time
}

// Parse parses data with a zero-value Parser.
func Parse(data []byte, slug string) (*Result, error) {
	var p Parser
	return p.Parse(data, slug)
}

// Parse splits data into front matter and body and builds a note for slug.
// Defaults are applied per field. The only hard failure is an opening
// delimiter without a closing one.
func (p *Parser) Parse(data []byte, slug string) (*Result, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")

	block, body, found, err := splitFrontMatter(text)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	meta := &res.Note.NoteMeta
	meta.Slug = slug

	var st fieldState
	if found {
		res.Note.Content = body
		for _, line := range block {
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			p.applyField(res, &st, strings.TrimSpace(key), unquote(strings.TrimSpace(value)))
		}
	} else {
		res.Note.Content = strings.TrimSpace(text)
		body = text
	}

	p.applyDefaults(meta, st, body)
	return res, nil
}

type fieldState struct {
	order    bool
	readTime bool
	tags     bool
}

func (p *Parser) applyField(res *Result, st *fieldState, key, value string) {
	meta := &res.Note.NoteMeta
	switch key {
	case "title":
		meta.Title = value
	case "category":
		meta.Category = value
		res.DeclaredCategory = value
	case "description":
		meta.Description = value
	case "difficulty":
		if value == "" {
			return
		}
		d, ok := difficultyAliases[strings.ToLower(value)]
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Errorf("difficulty %q: %w", value, ErrUnknownDifficulty))
			return
		}
		meta.Difficulty = d
	case "readTime":
		n, ok := parseNumber(res, key, value)
		if ok && n > 0 {
			meta.ReadTime = n
			st.readTime = true
		}
	case "order":
		if n, ok := parseNumber(res, key, value); ok {
			meta.Order = n
			st.order = true
		}
	case "author":
		meta.Author = value
	case "coverImage":
		meta.CoverImage = value
	case "tags":
		meta.Tags = ParseTags(value)
		st.tags = true
	case "createdAt":
		meta.CreatedAt = value
	case "updatedAt":
		meta.UpdatedAt = value
	}
}

func (p *Parser) applyDefaults(meta *models.NoteMeta, st fieldState, body string) {
	if meta.Title == "" {
		meta.Title = TitleFromSlug(meta.Slug)
	}
	if !st.order {
		meta.Order = DefaultOrder
	}
	if meta.Difficulty == "" {
		meta.Difficulty = models.DifficultyBeginner
	}
	if !st.readTime {
		meta.ReadTime = EstimateReadTime(body)
	}
	if !st.tags || meta.Tags == nil {
		meta.Tags = []string{}
	}
	if meta.Author == "" {
		meta.Author = p.author()
	}
	today := p.now().UTC().Format(dateLayout)
	if meta.CreatedAt == "" {
		meta.CreatedAt = today
	}
	if meta.UpdatedAt == "" {
		meta.UpdatedAt = today
	}
}

func (p *Parser) author() string {
	if p.Author != "" {
		return p.Author
	}
	return DefaultAuthor
}

func (p *Parser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// splitFrontMatter separates the front-matter lines from the body. The block
// opens when the first line is the delimiter and closes at the next
// delimiter line. found is false when the document has no block at all.
func splitFrontMatter(text string) (block []string, body string, found bool, err error) {
	first, rest, more := strings.Cut(text, "\n")
	if strings.TrimRight(first, " \t\r") != delim {
		return nil, "", false, nil
	}
	if !more {
		return nil, "", true, ErrUnterminatedFrontMatter
	}
	for {
		line, after, more := strings.Cut(rest, "\n")
		if strings.TrimRight(line, " \t\r") == delim {
			return block, strings.TrimSpace(after), true, nil
		}
		block = append(block, line)
		if !more {
			return nil, "", true, ErrUnterminatedFrontMatter
		}
		rest = after
	}
}

// ParseTags parses a tag list value. Accepted forms are "[a, b, c]" (items
// may be quoted) and "a, b, c". Empty items are dropped. Commas inside a tag
// cannot be escaped.
func ParseTags(value string) []string {
	v := strings.TrimSpace(value)
	out := []string{}
	if v == "" || v == "[]" {
		return out
	}
	bracketed := strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]")
	if bracketed {
		v = v[1 : len(v)-1]
	}
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if bracketed {
			item = trimQuotes(item)
		}
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// TitleFromSlug turns "what-is-rag" into "What Is Rag".
func TitleFromSlug(slug string) string {
	var b strings.Builder
	b.Grow(len(slug))
	prevWord := false
	for _, r := range strings.ReplaceAll(slug, "-", " ") {
		word := isWordRune(r)
		if word && !prevWord {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
		prevWord = word
	}
	return b.String()
}

// EstimateReadTime returns whole minutes at 200 words per minute, at least 1.
func EstimateReadTime(body string) int {
	return max(1, len(strings.Fields(body))/wordsPerMinute)
}

func parseNumber(res *Result, key, value string) (int, bool) {
	if value == "" {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Errorf("%s %q: %w", key, value, ErrInvalidNumber))
		return 0, false
	}
	return n, true
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func trimQuotes(v string) string {
	if strings.HasPrefix(v, `"`) || strings.HasPrefix(v, "'") {
		v = v[1:]
	}
	if strings.HasSuffix(v, `"`) || strings.HasSuffix(v, "'") {
		v = v[:len(v)-1]
	}
	return v
}

func isWordRune(r rune) bool {
	return r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}
