package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change kinds reported by Watch.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// DebounceInterval is how long Watch waits for the filesystem to settle
// before invalidating the cache.
const DebounceInterval = 200 * time.Millisecond

// ChangeCallback is called once per changed note after the cache has been
// invalidated.
type ChangeCallback func(kind, category, slug string)

// Watch watches root and every configured category directory and
// invalidates the cache when a document changes. Category directories created
// after the watch started are picked up. It blocks until ctx is cancelled.
func (s *Scanner) Watch(ctx context.Context, root string, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}
	dirs := make(map[string]bool, len(s.categories))
	for _, cat := range s.categories {
		dirs[cat.ID] = true
		dir := filepath.Join(root, cat.ID)
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			if addErr := w.Add(dir); addErr != nil {
				s.logger.Warn("watcher: add dir failed", slog.String("path", dir), slog.String("error", addErr.Error()))
			}
		}
	}

	s.logger.Info("watcher: started", slog.String("root", root))

	type change struct{ kind, category, slug string }
	pending := make(map[string]change)

	var timer *time.Timer
	var timerC <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(DebounceInterval)
			timerC = timer.C
			return
		}
		timer.Reset(DebounceInterval)
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("watcher: stopped")
			return nil

		case <-timerC:
			timer, timerC = nil, nil
			s.Invalidate()
			s.logger.Debug("watcher: cache invalidated", slog.Int("changes", len(pending)))
			for key, c := range pending {
				delete(pending, key)
				if cb != nil {
					cb(c.kind, c.category, c.slug)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			dir, name := filepath.Split(rel)
			dir = strings.TrimSuffix(dir, string(filepath.Separator))

			// A category directory appearing under root.
			if dir == "" && dirs[name] {
				if ev.Op&fsnotify.Create != 0 {
					if addErr := w.Add(ev.Name); addErr != nil {
						s.logger.Warn("watcher: add dir failed", slog.String("path", ev.Name), slog.String("error", addErr.Error()))
					} else {
						s.logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
				}
				s.Invalidate()
				continue
			}

			if !dirs[dir] || !strings.HasSuffix(name, s.ext) {
				continue
			}
			kind := ChangeUpdated
			switch {
			case ev.Op&fsnotify.Create != 0:
				kind = ChangeCreated
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				kind = ChangeDeleted
			case ev.Op&fsnotify.Write != 0:
			default:
				continue
			}
			slug := strings.TrimSuffix(name, s.ext)
			key := dir + "/" + slug
			if prev, seen := pending[key]; seen && prev.kind == ChangeCreated && kind == ChangeUpdated {
				kind = ChangeCreated
			}
			pending[key] = change{kind: kind, category: dir, slug: slug}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
