// Package internal wires configuration, storage, the index and the site
// builder into the application's commands.
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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/marketnotes/internal/api"
	"github.com/starford/marketnotes/internal/index"
	"github.com/starford/marketnotes/internal/pageservice"
	"github.com/starford/marketnotes/internal/site"
	"github.com/starford/marketnotes/internal/sse"
	"github.com/starford/marketnotes/internal/storage"
)

const (
	graphThrottle   = 2 * time.Second
	sseHeartbeat    = 15 * time.Second
	rebuildDelay    = 150 * time.Millisecond
	shutdownTimeout = 10 * time.Second
)

// newApplication applies opts and installs the JSON logger. logOut is the
// log destination unless WithLogOutput overrides it.
func newApplication(logOut io.Writer, opts []Option) (*application, *slog.Logger, error) {
	app := &application{
		version: "dev",
		stdout:  os.Stdout,
		logOut:  logOut,
		format:  "text",
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return app, logger, nil
}

// Serve builds the site with live reload, indexes the docs tree and serves
// both until SIGINT/SIGTERM or ctx cancellation.
func Serve(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(os.Stdout, opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("docs_dir", cfg.Site.DocsDir),
		slog.String("site_dir", cfg.Site.SiteDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	docs, err := storage.EnsureFS(cfg.Site.DocsDir)
	if err != nil {
		return fmt.Errorf("init docs storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if err := index.Sync(db, docs, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	builder, err := site.NewBuilder(cfg.Site.Options(app.clean, true), docs, logger)
	if err != nil {
		return err
	}
	if _, err := builder.Build(ctx); err != nil {
		return fmt.Errorf("initial build: %w", err)
	}

	broker := sse.NewBroker(graphThrottle, sse.WithHeartbeat(sseHeartbeat))
	defer broker.Close()

	svc := pageservice.NewService(docs, db, db, pageservice.WithURLs(builder.URLFor))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", statusOK)
	r.Get("/health/ready", statusOK)

	r.Mount("/api", api.NewRouter(svc, broker))
	r.Handle("/*", site.FileHandler(builder.SiteDir()))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	trigger := make(chan struct{}, 1)
	onChange := func(kind, path string) {
		broker.PublishPageEvent(kind, path)
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := index.Watch(gCtx, db, docs, docs.Root(), logger, onChange); err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		rebuildLoop(gCtx, builder, broker, trigger, logger)
		return nil
	})

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

		// Event streams only end when the broker closes.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup context so the watcher and rebuild loop
// stop once the server is shutting down.
var errShutdown = errors.New("shutdown")

// rebuildLoop rebuilds the site after page changes. Bursts of changes
// within rebuildDelay collapse into one build.
func rebuildLoop(ctx context.Context, b *site.Builder, broker *sse.Broker, trigger <-chan struct{}, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(rebuildDelay):
		}
		select {
		case <-trigger:
		default:
		}

		report, err := b.Build(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("rebuild failed", slog.String("error", err.Error()))
			broker.PublishBuildError(err)
			continue
		}
		broker.PublishRebuild(report)
	}
}

func statusOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
