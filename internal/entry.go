// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/aiatlas/internal/api"
	"github.com/starford/aiatlas/internal/backend"
	"github.com/starford/aiatlas/internal/index"
	"github.com/starford/aiatlas/internal/mcpserver"
	"github.com/starford/aiatlas/internal/models"
	"github.com/starford/aiatlas/internal/noteservice"
	"github.com/starford/aiatlas/internal/observability/metrics"
	"github.com/starford/aiatlas/internal/resilience"
	"github.com/starford/aiatlas/internal/scanner"
	"github.com/starford/aiatlas/internal/sse"
	"github.com/starford/aiatlas/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger installs a structured JSON logger as the default logger.
func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// corpus is the read side shared by every command.
type corpus struct {
	store   *storage.FS
	scanner *scanner.Scanner
	db      *index.DB
	svc     *noteservice.Service
}

func (c *corpus) Close() {
	if c.db != nil {
		_ = c.db.Close()
	}
}

// openCorpus builds the storage, scanner and, when configured, the search
// mirror that is synced after every scan. rec may be nil.
func (a *application) openCorpus(logger *slog.Logger, rec scanner.Recorder) (*corpus, error) {
	cfg := a.config

	if err := os.MkdirAll(cfg.Notes.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create notes root: %w", err)
	}
	store, err := storage.NewFS(cfg.Notes.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	scanOpts := []scanner.Option{
		scanner.WithTTL(cfg.Notes.CacheTTL),
		scanner.WithExtension(cfg.Notes.Extension),
		scanner.WithAuthor(cfg.Notes.DefaultAuthor),
		scanner.WithLogger(logger),
	}
	if rec != nil {
		scanOpts = append(scanOpts, scanner.WithRecorder(rec))
	}
	c := &corpus{
		store:   store,
		scanner: scanner.New(store, cfg.Notes.Categories, scanOpts...),
	}

	var mirror index.Mirror
	if cfg.SQLite.Enabled() {
		db, err := index.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
		c.db = db
		mirror = db
		c.scanner.OnRefresh(func(_ context.Context, ns []models.Note, _ *scanner.Report) {
			st, err := index.Sync(db, ns, logger)
			if err != nil {
				logger.Warn("search mirror sync failed", slog.String("error", err.Error()))
				return
			}
			total, err := db.Count()
			if err != nil {
				logger.Warn("search mirror count failed", slog.String("error", err.Error()))
				return
			}
			logger.Debug("search mirror synced",
				slog.Int("upserted", st.Upserted),
				slog.Int("deleted", st.Deleted),
				slog.Int("unchanged", st.Unchanged),
				slog.Int("total", total))
		})
	}

	c.svc = noteservice.NewService(c.scanner, mirror, cfg.Notes.RelatedLimit)
	return c, nil
}

// Run starts the HTTP server with the given options and blocks until ctx is
// cancelled or SIGINT/SIGTERM arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("notes_root", cfg.Notes.Root),
		slog.Int("categories", len(cfg.Notes.Categories)),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("backend_enabled", cfg.Backend.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	var m *metrics.Metrics
	var rec scanner.Recorder
	if cfg.Metrics.Enabled {
		m = metrics.New()
		rec = m
	}

	c, err := app.openCorpus(logger, rec)
	if err != nil {
		return err
	}
	defer c.Close()

	brokerOpts := []sse.Option{
		sse.WithRefreshThrottle(cfg.Events.RefreshThrottle),
		sse.WithHeartbeat(cfg.Events.Heartbeat),
		sse.WithHistory(cfg.Events.History),
	}
	if m != nil {
		brokerOpts = append(brokerOpts, sse.WithObserver(m.EventPublished))
	}
	broker := sse.NewBroker(brokerOpts...)
	defer broker.Close()
	c.scanner.OnRefresh(func(_ context.Context, ns []models.Note, r *scanner.Report) {
		broker.PublishRefresh(sse.RefreshSummary{Notes: len(ns), Failed: len(r.Failed())})
	})

	// Warm the cache and the search mirror. A failure here is not fatal: the
	// next request retries and readiness stays red until a scan succeeds.
	if _, report, err := c.scanner.Refresh(ctx); err != nil {
		logger.Warn("initial scan failed", slog.String("error", err.Error()))
	} else if failed := report.Failed(); len(failed) > 0 {
		logger.Warn("initial scan skipped files", slog.Int("failed", len(failed)))
	}

	be, err := app.newBackend(logger, m)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(api.RequestID)
	r.Use(api.AccessLog)
	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(m.Middleware)
		r.Handle(cfg.Metrics.Path, m.Handler())
	}
	api.MountHealth(r, c.svc)
	r.Mount("/api", api.NewRouter(c.svc, broker, be))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Notes.Watch {
		g.Go(func() error {
			err := c.scanner.Watch(gCtx, c.store.Root(), broker.PublishNoteEvent)
			if err != nil {
				// The TTL still expires the cache; only live events are lost.
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		// Event streams never finish on their own.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// newBackend builds the visitor stats and proxy handlers. It returns nil
// when the backend is disabled.
func (a *application) newBackend(logger *slog.Logger, m *metrics.Metrics) (*api.Backend, error) {
	cfg := a.config.Backend
	if !cfg.Enabled {
		return nil, nil
	}

	exec := resilience.NewExecutor(cfg.Resilience(), logger)
	clientOpts := []backend.Option{backend.WithLogger(logger)}
	var rec backend.Recorder
	if m != nil {
		rec = m
		clientOpts = append(clientOpts, backend.WithRecorder(m))
	}
	client, err := backend.NewClient(cfg.URL, cfg.Timeout, exec, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("init backend client: %w", err)
	}

	logger.Info("Backend pass-through enabled",
		slog.String("url", client.BaseURL().String()),
		slog.Any("prefixes", cfg.ProxyPrefixes))

	return &api.Backend{
		Stats:    client.StatsHandler(),
		Proxy:    client.Proxy(),
		Prefixes: cfg.ProxyPrefixes,
		Limit:    backend.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst, rec),
	}, nil
}

// Scan runs one full scan, syncs the search mirror when configured and
// returns the report.
func Scan(ctx context.Context, opts ...Option) (*scanner.Report, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	logger := app.newLogger()

	c, err := app.openCorpus(logger, nil)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	_, report, err := c.scanner.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return report, nil
}

// ServeMCP serves the MCP tools over stdin/stdout until the client
// disconnects. Logs must not go to stdout here; pass WithLogOutput(os.Stderr).
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	c, err := app.openCorpus(logger, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, _, err := c.scanner.Refresh(ctx); err != nil {
		logger.Warn("initial scan failed", slog.String("error", err.Error()))
	}

	if app.config.Notes.Watch {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := c.scanner.Watch(watchCtx, c.store.Root(), nil); err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("Serving MCP over stdio")
	return mcpserver.New(c.svc, app.version).ServeStdio()
}
