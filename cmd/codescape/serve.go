package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"codescape/internal/analysis"
	"codescape/internal/camera"
	"codescape/internal/frame"
	"codescape/internal/handler"
	"codescape/internal/hub"
	"codescape/internal/loader"
	"codescape/internal/repository/sqlite"
	"codescape/internal/service"
	"codescape/internal/watcher"
)

func serveCmd() *cobra.Command {
	var (
		addr    string
		dbPath  string
		payload string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the layout server",
		Long: `Serve the live layout over HTTP, SSE and websocket.

  codescape serve                          # empty session, wait for payloads
  codescape serve --payload out/ast.json   # load and watch a payload file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			if payload != "" {
				cfg.Watch.Payload = payload
			}
			return serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	cmd.Flags().StringVar(&payload, "payload", "", "payload file to load and watch")
	return cmd
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting codescape", "version", version)
	logger.Info(cfg.Summary())

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer repo.Close()
	logger.Info("database opened", "path", cfg.Database.Path)

	bus := service.NewEventBus()
	sseHub := hub.New(logger)

	client := analysis.NewClient(cfg.Analysis.URL, analysis.Options{
		Timeout: cfg.Analysis.Timeout.Duration(),
		Logger:  logger,
	})

	svc := service.NewSessionService(bus, service.Options{
		Params: cfg.Layout.Params,
		Frame: frame.Options{
			FrameRate:    cfg.Layout.FrameRate,
			QueueSize:    cfg.Layout.QueueSize,
			PrewarmTicks: cfg.Layout.PrewarmTicks,
			Camera: camera.Options{
				FocusDistance: cfg.Layout.FocusDistance,
				Duration:      cfg.Layout.CameraDuration.Duration(),
			},
			EnabledTypes: cfg.Layout.NodeTypes(),
		},
		Scope:              cfg.Analysis.ProjectDir,
		PositionsPerSecond: cfg.Broadcast.PositionsPerSecond,
		Burst:              cfg.Broadcast.Burst,
		Repository:         repo,
		Analyzer:           client,
		Logger:             logger,
	})
	defer svc.Close()

	if path := cfg.Watch.Payload; path != "" {
		reloadPayload(ctx, svc, path)
	}

	mux := http.NewServeMux()
	handler.NewSessionHandler(svc, bus, logger).Register(mux)
	mux.Handle("GET /events", sseHub)

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: handler.Chain(mux,
			handler.Recover(logger),
			handler.CORS(cfg.Server.CORSOrigin),
			handler.Logger(logger),
		),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sseHub.Run(ctx) })
	g.Go(func() error { return svc.Run(ctx) })

	// Connect event bus to SSE hub
	events := make(chan service.Event, 256)
	bus.Subscribe(events)
	g.Go(func() error {
		defer bus.Unsubscribe(events)
		for {
			select {
			case <-ctx.Done():
				return nil
			case event := <-events:
				sseHub.Broadcast(event)
			}
		}
	})

	if path := cfg.Watch.Payload; path != "" {
		w := watcher.New(path, func(p string) { reloadPayload(ctx, svc, p) }).
			WithDebounce(cfg.Watch.Debounce.Duration()).
			WithLogger(logger)
		g.Go(func() error {
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("payload watcher stopped", "error", err)
			}
			return nil
		})
	}

	if cfg.Analysis.ProjectDir != "" {
		g.Go(func() error {
			req := analysis.Request{ProjectDir: cfg.Analysis.ProjectDir, Entrypoint: cfg.Analysis.Entrypoint}
			if _, err := svc.Analyze(ctx, req); err != nil {
				logger.Warn("initial analysis failed", "project_dir", req.ProjectDir, "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

func reloadPayload(ctx context.Context, svc *service.SessionService, path string) {
	p, err := loader.LoadFile(path)
	if err != nil {
		logger.Warn("failed to read payload", "path", path, "error", err)
		return
	}
	if _, err := svc.Load(ctx, p, service.SourceFile, ""); err != nil {
		logger.Warn("failed to load payload", "path", path, "error", err)
	}
}
