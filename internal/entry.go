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

	"github.com/starford/noterefs/internal/api"
	"github.com/starford/noterefs/internal/index"
	"github.com/starford/noterefs/internal/loop"
	"github.com/starford/noterefs/internal/mcpserver"
	"github.com/starford/noterefs/internal/references"
	"github.com/starford/noterefs/internal/sse"
	"github.com/starford/noterefs/internal/storage"
	"github.com/starford/noterefs/internal/workspace"
)

// env is the wired core shared by every command.
type env struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
	loop   *loop.Loop
	ws     *workspace.Workspace
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout, output: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup opens storage and the index, runs the initial sync and builds the
// workspace. The loop is created but not started.
func setup(app *application, onRender workspace.RenderFunc) (*env, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path, cfg.Vault.Ignore...)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	l := loop.New(0)
	ws, err := workspace.New(workspace.Options{
		Loop:       l,
		Store:      store,
		Index:      db,
		References: cfg.References.Manager(),
		Logger:     logger,
		OnRender:   onRender,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init workspace: %w", err)
	}

	return &env{cfg: cfg, logger: logger, store: store, db: db, loop: l, ws: ws}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	broker := sse.NewBroker(app.config.Events.Throttle)
	defer broker.Close()

	e, err := setup(app, func(path string, snap references.Snapshot) {
		broker.PublishRender(path, map[string]any{"path": path, "references": snap})
	})
	if err != nil {
		return err
	}
	defer e.db.Close()
	cfg, logger := e.cfg, e.logger

	apiRouter := api.NewRouter(e.ws, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !e.loop.Running() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"starting"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	// The loop outlives gCtx so open documents can be restored on shutdown.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	g.Go(func() error {
		return e.loop.Run(loopCtx)
	})

	// Start file watcher with SSE callback.
	g.Go(func() error {
		return index.Watch(gCtx, e.db, e.store, logger, func(kind, path string) {
			broker.PublishNoteEvent(kind, path)
		})
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		if err := e.ws.Shutdown(shutdownCtx); err != nil {
			logger.Error("workspace shutdown error", slog.String("error", err.Error()))
		}
		stopLoop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// start runs the loop in the background until the returned stop is called.
func (e *env) start() (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.loop.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// ServeMCP serves the MCP tools on stdin/stdout while the watcher keeps the
// index fresh. Logs go to stderr unless redirected.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	e, err := setup(app, nil)
	if err != nil {
		return err
	}
	defer e.db.Close()
	stopLoop := e.start()
	defer stopLoop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return index.Watch(gCtx, e.db, e.store, e.logger, nil)
	})
	g.Go(func() error {
		defer cancel()
		return mcpserver.New(e.store, e.ws).ServeStdio()
	})
	return g.Wait()
}

// Render prints the note at path with its references summary drawn in.
func Render(ctx context.Context, path string, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	e, err := setup(app, nil)
	if err != nil {
		return err
	}
	defer e.db.Close()
	stopLoop := e.start()
	defer stopLoop()

	content, _, err := e.ws.Preview(ctx, path)
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	_, err = app.output.Write(content)
	return err
}

// Refs prints the links and backlinks of the note at path.
func Refs(ctx context.Context, path string, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	e, err := setup(app, nil)
	if err != nil {
		return err
	}
	defer e.db.Close()
	stopLoop := e.start()
	defer stopLoop()

	snap, err := e.ws.References(ctx, path)
	if err != nil {
		return fmt.Errorf("refs %s: %w", path, err)
	}
	return printReferences(app.output, e.cfg.References.Manager().Sections, snap)
}

func printReferences(w io.Writer, sections []references.Section, snap references.Snapshot) error {
	var b strings.Builder
	for _, sec := range sections {
		l := snap.List(sec)
		b.WriteString(references.CountLine(sec, l))
		b.WriteByte('\n')
		for _, ref := range l.Entries {
			fmt.Fprintf(&b, "  %s\n", ref.RelativePath)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
