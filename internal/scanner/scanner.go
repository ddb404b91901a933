// Package scanner loads the notes corpus from disk and keeps the result in a
// time-boxed cache.
//
// The corpus root holds one directory per configured category. Every file
// with the configured extension inside a category directory is one note; its
// slug is the file name without the extension and its category is the
// directory, whatever the front matter says.
package scanner

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/starford/aiatlas/internal/apperr"
	"github.com/starford/aiatlas/internal/checksum"
	"github.com/starford/aiatlas/internal/models"
	"github.com/starford/aiatlas/internal/parser"
	"github.com/starford/aiatlas/internal/storage"
)

// Defaults.
const (
	DefaultTTL       = time.Minute
	DefaultExtension = ".md"
)

// Recorder receives cache and scan observations. Implemented by the metrics
// package.
type Recorder interface {
	CacheLookup(hit bool)
	ScanCompleted(d time.Duration, r *Report, err error)
}

type nopRecorder struct{}

func (nopRecorder) CacheLookup(bool)                           {}
func (nopRecorder) ScanCompleted(time.Duration, *Report, error) {}

// RefreshFunc is called after every successful scan, before waiters are
// released.
type RefreshFunc func(ctx context.Context, notes []models.Note, r *Report)

// Option configures a Scanner.
type Option func(*Scanner)

// WithTTL sets the cache time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(s *Scanner) { s.ttl = ttl }
}

// WithClock sets the clock used by the cache and the parser.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithExtension sets the document file extension, including the dot.
func WithExtension(ext string) Option {
	return func(s *Scanner) { s.ext = ext }
}

// WithAuthor sets the default author for documents that name none.
func WithAuthor(author string) Option {
	return func(s *Scanner) { s.author = author }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Scanner) { s.rec = r }
}

// Scanner scans the corpus and caches the sorted note list.
type Scanner struct {
	store      storage.Provider
	categories []models.Category
	ext        string
	ttl        time.Duration
	now        func() time.Time
	author     string
	logger     *slog.Logger
	rec        Recorder

	parser *parser.Parser
	cache  *Cache
	group  singleflight.Group

	listeners []RefreshFunc

	mu         sync.Mutex
	lastReport *Report
	lastErr    error
}

// New creates a scanner over store for the given categories. Category order
// is the scan order.
func New(store storage.Provider, categories []models.Category, opts ...Option) *Scanner {
	s := &Scanner{
		store:      store,
		categories: slices.Clone(categories),
		ext:        DefaultExtension,
		ttl:        DefaultTTL,
		now:        time.Now,
		logger:     slog.Default(),
		rec:        nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = &parser.Parser{Author: s.author, Now: s.now}
	s.cache = NewCache(s.ttl, s.now)
	return s
}

// OnRefresh registers fn to run after every successful scan. Register
// listeners before the scanner is shared between goroutines.
func (s *Scanner) OnRefresh(fn RefreshFunc) {
	s.listeners = append(s.listeners, fn)
}

// Categories returns the configured categories in configuration order.
func (s *Scanner) Categories() []models.Category {
	return slices.Clone(s.categories)
}

// Extension returns the document file extension.
func (s *Scanner) Extension() string {
	return s.ext
}

// Notes returns the cached note list, scanning when the cache is empty or
// stale. The returned slice is shared with the cache and must not be
// modified.
func (s *Scanner) Notes(ctx context.Context) ([]models.Note, error) {
	if snap, ok := s.cache.Fresh(); ok {
		s.rec.CacheLookup(true)
		return snap.Notes, nil
	}
	s.rec.CacheLookup(false)
	snap, err := s.fill(ctx, false)
	if err != nil {
		return nil, err
	}
	return snap.Notes, nil
}

// Refresh scans unconditionally and replaces the cache. Concurrent Refresh
// calls made between the same two invalidations share one scan; a Refresh
// never joins a scan that started before the latest Invalidate.
func (s *Scanner) Refresh(ctx context.Context) ([]models.Note, *Report, error) {
	snap, err := s.fill(ctx, true)
	if err != nil {
		return nil, nil, err
	}
	return snap.Notes, snap.Report, nil
}

// Invalidate clears the cache. A scan already in flight still answers its
// waiters but does not repopulate the cache.
func (s *Scanner) Invalidate() {
	s.cache.Invalidate()
}

// BySlug returns the first note with the given slug.
func (s *Scanner) BySlug(ctx context.Context, slug string) (*models.Note, error) {
	ns, err := s.Notes(ctx)
	if err != nil {
		return nil, err
	}
	for i := range ns {
		if ns[i].Slug == slug {
			n := ns[i]
			return &n, nil
		}
	}
	return nil, apperr.ErrNotFound
}

// MetaBySlug is BySlug with the body stripped.
func (s *Scanner) MetaBySlug(ctx context.Context, slug string) (*models.NoteMeta, error) {
	n, err := s.BySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	m := n.Meta()
	return &m, nil
}

// LastReport returns the report of the most recent successful scan, or nil.
func (s *Scanner) LastReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

// Healthy reports whether the most recent scan attempt succeeded.
func (s *Scanner) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport != nil && s.lastErr == nil
}

// fill runs at most one scan per cache generation and kind. Callers arriving
// while a matching scan is in flight wait for its result. A caller whose
// context ends stops waiting; the scan itself always runs to completion.
func (s *Scanner) fill(ctx context.Context, force bool) (*Snapshot, error) {
	gen := s.cache.Generation()
	key := "scan:" + strconv.FormatUint(gen, 10)
	if force {
		key = "refresh:" + strconv.FormatUint(gen, 10)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		if !force {
			if snap, ok := s.cache.Fresh(); ok {
				return snap, nil
			}
		}
		return s.scanAndStore(gen)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (s *Scanner) scanAndStore(gen uint64) (*Snapshot, error) {
	start := s.cache.Now()
	began := time.Now()

	notes, report, err := s.scan(start)
	elapsed := time.Since(began)
	if report != nil {
		report.Duration = elapsed
	}
	s.rec.ScanCompleted(elapsed, report, err)

	s.mu.Lock()
	s.lastErr = err
	if err == nil {
		s.lastReport = report
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scanner: scan failed", slog.String("error", err.Error()))
		return nil, err
	}

	snap := &Snapshot{Notes: notes, Report: report, At: start}
	if !s.cache.Store(gen, snap) {
		s.logger.Debug("scanner: cache invalidated during scan, result not cached")
	}
	s.logger.Info("scanner: scan complete",
		slog.Int("notes", len(notes)),
		slog.Int("failed", len(report.Failed())),
		slog.Duration("duration", elapsed))

	for _, fn := range s.listeners {
		fn(context.Background(), notes, report)
	}
	return snap, nil
}

// scan reads every category directory in configuration order. A missing
// directory is skipped; any other listing error aborts the scan. Failures on
// individual files are recorded in the report and the file is skipped.
func (s *Scanner) scan(start time.Time) ([]models.Note, *Report, error) {
	report := &Report{StartedAt: start, Files: []FileResult{}}
	notes := []models.Note{}
	seen := make(map[string]string)

	for _, cat := range s.categories {
		names, err := s.store.List(cat.ID, s.ext)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Debug("scanner: category directory missing", slog.String("category", cat.ID))
				report.MissingCategories = append(report.MissingCategories, cat.ID)
				continue
			}
			return nil, nil, fmt.Errorf("scanner: list %s: %w", cat.ID, err)
		}

		for _, name := range names {
			fr := FileResult{
				Path:     path.Join(cat.ID, name),
				Slug:     strings.TrimSuffix(name, s.ext),
				Category: cat.ID,
			}
			note, ok := s.load(&fr)
			if ok {
				if other, dup := seen[fr.Slug]; dup {
					fr.warn(fmt.Sprintf("slug %q also defined in category %q", fr.Slug, other))
					s.logger.Warn("scanner: duplicate slug",
						slog.String("slug", fr.Slug),
						slog.String("category", cat.ID),
						slog.String("other_category", other))
				}
				seen[fr.Slug] = cat.ID
				notes = append(notes, *note)
			}
			report.Files = append(report.Files, fr)
		}
	}

	SortNotes(notes)
	report.Notes = len(notes)
	return notes, report, nil
}

func (s *Scanner) load(fr *FileResult) (*models.Note, bool) {
	data, err := s.store.Read(fr.Path)
	if err != nil {
		fr.fail(err)
		s.logger.Warn("scanner: read failed", slog.String("path", fr.Path), slog.String("error", err.Error()))
		return nil, false
	}
	res, err := s.parser.Parse(data, fr.Slug)
	if err != nil {
		fr.fail(fmt.Errorf("parse %s: %w", fr.Path, err))
		s.logger.Warn("scanner: parse failed", slog.String("path", fr.Path), slog.String("error", err.Error()))
		return nil, false
	}
	for _, w := range res.Warnings {
		fr.warn(w.Error())
	}
	if res.DeclaredCategory != "" && res.DeclaredCategory != fr.Category {
		fr.warn(fmt.Sprintf("front matter category %q overridden by directory %q", res.DeclaredCategory, fr.Category))
		s.logger.Warn("scanner: category mismatch",
			slog.String("path", fr.Path),
			slog.String("declared", res.DeclaredCategory),
			slog.String("directory", fr.Category))
	}

	note := res.Note
	note.Category = fr.Category
	note.Checksum = checksum.Sum(data)
	return &note, true
}

// SortNotes orders notes by Order ascending, then UpdatedAt descending.
// Dates compare as strings, which is correct for ISO dates.
func SortNotes(ns []models.Note) {
	slices.SortStableFunc(ns, func(a, b models.Note) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return strings.Compare(b.UpdatedAt, a.UpdatedAt)
	})
}
