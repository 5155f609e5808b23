package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/onkernel/browser-rooms/server/cmd/api/api"
	"github.com/onkernel/browser-rooms/server/cmd/config"
	"github.com/onkernel/browser-rooms/server/lib/browser"
	"github.com/onkernel/browser-rooms/server/lib/logger"
	"github.com/onkernel/browser-rooms/server/lib/room"
)

func main() {
	slogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Load configuration from environment variables
	config, err := config.Load()
	if err != nil {
		slogger.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	slogger.Info("server configuration", "config", config)

	// context cancellation on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.AddToContext(ctx, slogger)

	launcher, err := browser.NewPlaywrightLauncher()
	if err != nil {
		slogger.Error("failed to start playwright", "err", err)
		os.Exit(1)
	}

	relay := room.NewDownloadRelay(config.DownloadDir, config.DownloadLinger)
	registry, err := room.NewRegistry(launcher, browser.Options{
		StartURL:       config.StartURL,
		ViewportWidth:  config.ViewportWidth,
		ViewportHeight: config.ViewportHeight,
		JPEGQuality:    config.JPEGQuality,
		CaptureTimeout: config.CaptureTimeout,
	}, relay)
	if err != nil {
		slogger.Error("failed to create room registry", "err", err)
		os.Exit(1)
	}

	apiService, err := api.New(registry, config.FramePeriod(), config.CaptureTimeout)
	if err != nil {
		slogger.Error("failed to create api service", "err", err)
		os.Exit(1)
	}

	reaper := room.NewReaper(registry, config.ReapInterval, config.IdleTimeout)
	go reaper.Run(ctx)

	r := chi.NewRouter()
	r.Use(
		chiMiddleware.Logger,
		chiMiddleware.Recoverer,
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxWithLogger := logger.AddToContext(r.Context(), slogger)
				next.ServeHTTP(w, r.WithContext(ctxWithLogger))
			})
		},
	)

	r.Get("/ws", apiService.HandleSessionSocket)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	// Viewer UI
	r.Handle("/*", http.FileServer(http.Dir(config.StaticDir)))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: r,
	}

	go func() {
		slogger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slogger.Error("http server failed", "err", err)
			stop()
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	slogger.Info("shutdown signal received")

	shutdownCtx := logger.AddToContext(context.Background(), slogger)
	g, _ := errgroup.WithContext(shutdownCtx)

	g.Go(func() error {
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := apiService.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return launcher.Stop()
	})

	if err := g.Wait(); err != nil {
		slogger.Error("server failed to shutdown", "err", err)
	}
}
