// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/akimixu/mksearch/internal/api"
	"github.com/akimixu/mksearch/internal/events"
	"github.com/akimixu/mksearch/internal/history"
	"github.com/akimixu/mksearch/internal/mcpserver"
	"github.com/akimixu/mksearch/internal/models"
	"github.com/akimixu/mksearch/internal/parser"
	"github.com/akimixu/mksearch/internal/report"
	"github.com/akimixu/mksearch/internal/searchservice"
	"github.com/akimixu/mksearch/internal/sse"
	"github.com/akimixu/mksearch/internal/storage"
	"github.com/akimixu/mksearch/internal/tui"
	"github.com/akimixu/mksearch/internal/watch"
)

// Version is reported by the MCP server and the CLI.
const Version = "0.3.0"

func newApplication(opts []Option) (*application, error) {
	app := &application{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// openHistory returns nil when history is disabled.
func (a *application) openHistory() (*history.DB, error) {
	if !a.config.History.Enabled {
		return nil, nil
	}
	db, err := history.Open(a.config.History.Path)
	if err != nil {
		return nil, fmt.Errorf("init history: %w", err)
	}
	return db, nil
}

func (a *application) newService(store storage.Provider, sink events.Sink, db *history.DB, logger *slog.Logger) (*searchservice.Service, error) {
	opts := []searchservice.Option{
		searchservice.WithEngineOptions(a.config.Search.EngineOptions(logger)...),
		searchservice.WithGrace(a.config.Search.StopGrace),
		searchservice.WithLogger(logger),
	}
	if db != nil {
		opts = append(opts, searchservice.WithHistory(db))
	}
	svc, err := searchservice.New(store, sink, opts...)
	if err != nil {
		return nil, fmt.Errorf("init search service: %w", err)
	}
	return svc, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.newLogger(app.stdout, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workspace_root", cfg.Workspace.Root),
		slog.Bool("history_enabled", cfg.History.Enabled),
		slog.Bool("watch_enabled", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// A missing workspace is not fatal: searches are rejected until it exists.
	var store storage.Provider
	fsStore, err := storage.NewFS(cfg.Workspace.Root)
	if err != nil {
		logger.Warn("workspace unavailable",
			slog.String("root", cfg.Workspace.Root),
			slog.String("error", err.Error()))
	} else {
		store = fsStore
	}

	db, err := app.openHistory()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// SSE broker doubles as the event sink of the search session.
	broker := sse.NewBroker(cfg.Watch.Throttle)
	defer broker.Close()

	svc, err := app.newService(store, broker, db, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(store != nil))

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	if cfg.Watch.Enabled && fsStore != nil {
		skip := parser.SplitList(cfg.Search.ExcludeFolders)
		g.Go(func() error {
			err := watch.Watch(gCtx, fsStore.Root(), skip, logger, func(_, path string) {
				broker.PublishWorkspaceChange(path)
			})
			if err != nil {
				logger.Warn("watcher failed", slog.String("error", err.Error()))
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
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		svc.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		cancel()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func readyHandler(hasWorkspace bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !hasWorkspace {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"no workspace"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// SearchQuery is a one-shot search started from the command line.
type SearchQuery struct {
	Request searchservice.Request
	// JSON prints protocol events as NDJSON instead of text.
	JSON bool
	// Positions is the number of positions printed per keyword (0 = all).
	Positions int
}

// RunSearch runs one search, streaming results to stdout until it ends or
// ctx is cancelled. An interrupt signal stops the search.
func RunSearch(ctx context.Context, q SearchQuery, opts ...Option) (models.Summary, error) {
	app, err := newApplication(opts)
	if err != nil {
		return models.Summary{}, err
	}
	logger := app.newLogger(app.stderr, app.config.App.LogLevel)

	store, err := storage.NewFS(app.config.Workspace.Root)
	if err != nil {
		return models.Summary{}, fmt.Errorf("open workspace: %w", err)
	}
	db, err := app.openHistory()
	if err != nil {
		return models.Summary{}, err
	}
	if db != nil {
		defer db.Close()
	}

	var rec events.Recorder
	var out events.Sink
	if q.JSON {
		out = report.NewNDJSON(app.stdout)
	} else {
		text := report.NewText(app.stdout, app.stderr)
		text.Positions = q.Positions
		out = text
	}

	svc, err := app.newService(store, events.Multi(out, &rec), db, logger)
	if err != nil {
		return models.Summary{}, err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := svc.Run(ctx, q.Request)
	if err != nil {
		return summary, fmt.Errorf("search: %w", err)
	}
	if !q.JSON {
		if kw, kerr := q.Request.Options(); kerr == nil {
			for _, line := range report.KeywordCounts(kw.Keywords, rec.Results()) {
				fmt.Fprintln(app.stderr, "  "+line)
			}
		}
	}
	if summary.Outcome == models.OutcomeErrored {
		return summary, fmt.Errorf("search: %w", summary.Cause)
	}
	return summary, nil
}

// RunTUI runs one search inside the interactive terminal view.
func RunTUI(ctx context.Context, req searchservice.Request, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	// The view owns the terminal; only warnings reach stderr.
	logger := app.newLogger(app.stderr, max(app.config.App.LogLevel, slog.LevelWarn))

	parsed, err := req.Options()
	if err != nil {
		return err
	}
	store, err := storage.NewFS(app.config.Workspace.Root)
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}
	db, err := app.openHistory()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	sink := events.NewChanSink(256)
	svc, err := app.newService(store, sink, db, logger)
	if err != nil {
		return err
	}
	defer svc.Close()
	defer sink.Close()

	if _, err := svc.Search(req); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return tui.Run(strings.Join(parsed.Keywords, ", "), sink, svc.Stop)
}

// RunMCP serves the MCP tools on stdin/stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger(app.stderr, app.config.App.LogLevel)

	store, err := storage.NewFS(app.config.Workspace.Root)
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}
	db, err := app.openHistory()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	svc, err := app.newService(store, events.Discard, db, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	logger.Info("MCP server starting", slog.String("workspace_root", store.Root()))
	return mcpserver.New(svc, store, Version).ServeStdio()
}

// RunHistory prints recent searches, or deletes them when clear is set.
// A non-positive limit uses the configured one.
func RunHistory(ctx context.Context, limit int, clear bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	app.newLogger(app.stderr, app.config.App.LogLevel)

	db, err := app.openHistory()
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("history is disabled")
	}
	defer db.Close()

	if clear {
		if err := db.Clear(); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		fmt.Fprintln(app.stdout, "history cleared")
		return nil
	}

	if limit <= 0 {
		limit = app.config.History.Limit
	}
	entries, err := db.Recent(limit)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	report.WriteHistory(app.stdout, entries)
	return nil
}
