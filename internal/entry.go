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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/xmltable/internal/api"
	"github.com/starford/xmltable/internal/convert"
	"github.com/starford/xmltable/internal/csvout"
	"github.com/starford/xmltable/internal/manifest"
	"github.com/starford/xmltable/internal/mcpserver"
	"github.com/starford/xmltable/internal/models"
	"github.com/starford/xmltable/internal/runservice"
	"github.com/starford/xmltable/internal/sse"
	"github.com/starford/xmltable/internal/storage"
	"github.com/starford/xmltable/internal/watch"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}
	app.defaults()

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := newLogger(cfg.App, app.logOutput)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("mode", string(app.mode)),
		slog.String("input_root", cfg.Input.Root),
		slog.String("output_path", cfg.Output.Path),
		slog.String("manifest_path", cfg.Manifest.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	var broker *sse.Broker
	if app.mode == ModeServe {
		broker = sse.NewBroker(2 * time.Second)
		defer broker.Close()
	}

	c, err := build(cfg, logger, broker)
	if err != nil {
		return err
	}
	defer c.close()

	switch app.mode {
	case ModeConvert:
		return runConvert(ctx, c.svc, logger)
	case ModeServe:
		return runServe(ctx, cfg, c, broker, logger)
	case ModeMCP:
		contract := mcpserver.InputFormatContract(cfg.Input.Suffix, cfg.Convert.RecordTag,
			cfg.Convert.NameAttr, cfg.Convert.DedupPrefix, c.svc.Columns())
		logger.Info("MCP server starting on stdio")
		return mcpserver.New(c.svc, c.store, cfg.Input.Suffix, contract).ServeStdio()
	default:
		return fmt.Errorf("unknown mode %q", app.mode)
	}
}

func newLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

type components struct {
	store storage.Provider
	db    *manifest.DB
	svc   *runservice.Service
}

func (c *components) close() {
	if c.db != nil {
		c.db.Close()
	}
}

// build wires storage, the manifest, the CSV writer and the converter.
// broker may be nil.
func build(cfg *Config, logger *slog.Logger, broker *sse.Broker) (*components, error) {
	c := &components{}

	store, err := storage.NewFS(cfg.Input.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	c.store = store

	columns, err := models.NewColumns(cfg.Convert.Columns...)
	if err != nil {
		return nil, fmt.Errorf("init columns: %w", err)
	}

	out, err := csvout.NewWriter(cfg.Output.Path, csvout.Options{
		Delimiter: cfg.Output.Comma(),
		NoHeader:  cfg.Output.NoHeader,
		Encoding:  cfg.Output.Encoding,
	})
	if err != nil {
		return nil, fmt.Errorf("init output: %w", err)
	}

	var options []convert.Option
	var runs runservice.RunStore
	if cfg.Manifest.Enabled() {
		db, err := manifest.Open(cfg.Manifest.Path)
		if err != nil {
			return nil, fmt.Errorf("init manifest: %w", err)
		}
		c.db = db
		runs = db
		options = append(options, convert.WithRecorder(db))

		if cfg.Manifest.Retention > 0 {
			n, err := db.Prune(time.Now().UTC().Add(-cfg.Manifest.Retention))
			if err != nil {
				logger.Warn("manifest prune failed", slog.String("error", err.Error()))
			} else if n > 0 {
				logger.Info("manifest pruned", slog.Int64("runs", n))
			}
		}
	}
	if broker != nil {
		options = append(options, convert.WithObserver(broker))
	}

	conv, err := convert.New(store, out, columns, convert.Options{
		Suffix:        cfg.Input.Suffix,
		InputEncoding: cfg.Input.Encoding,
		RecordTag:     cfg.Convert.RecordTag,
		NameAttr:      cfg.Convert.NameAttr,
		RecordLimit:   cfg.Convert.RecordLimit,
		BufferSize:    cfg.Convert.BufferSize,
		NoHeader:      cfg.Output.NoHeader,
		DedupPrefix:   cfg.Convert.DedupPrefix,
	}, logger, options...)
	if err != nil {
		c.close()
		return nil, err
	}

	c.svc = runservice.NewService(conv, runs, logger)
	return c, nil
}

func runConvert(ctx context.Context, svc *runservice.Service, logger *slog.Logger) error {
	rep, err := svc.Convert(ctx)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	logger.Info("Conversion complete",
		slog.String("run_id", rep.ID),
		slog.Int("files", rep.Files),
		slog.Int("skipped", rep.Skipped),
		slog.Int("records", rep.Records),
		slog.Int("dropped", rep.Dropped),
		slog.String("output", rep.Output))
	return nil
}

func runServe(ctx context.Context, cfg *Config, c *components, broker *sse.Broker, logger *slog.Logger) error {
	if _, err := c.svc.Convert(ctx); err != nil {
		logger.Warn("initial conversion failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if origins := cfg.App.HTTP.CORSOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if c.svc.Last() == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"converting"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Re-convert whenever the input tree changes.
	g.Go(func() error {
		err := watch.Watch(gCtx, cfg.Input.Root, cfg.Input.Suffix, cfg.Watch.Debounce, logger, func(changed []string) {
			logger.Info("input changed", slog.Int("files", len(changed)))
			c.svc.Reconvert(gCtx)
		})
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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

// errShutdown cancels the group so the watcher returns after a signal.
var errShutdown = errors.New("shutdown")
