package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukepan/roomsync-backend/internal/api"
	"github.com/dukepan/roomsync-backend/internal/config"
	"github.com/dukepan/roomsync-backend/internal/janitor"
	"github.com/dukepan/roomsync-backend/internal/obslog"
	"github.com/dukepan/roomsync-backend/internal/registry"
	"github.com/dukepan/roomsync-backend/internal/telemetry"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	logger := obslog.New(cfg.LogLevel)

	recorder, otelCleanup, err := telemetry.Init("room-sync-backend", "1.0.0")
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := otelCleanup(context.Background()); err != nil {
			logger.Error(ctx, "Error shutting down telemetry: %v", err)
		}
	}()
	gauges := telemetry.NewGauges()

	rooms := registry.NewRoomRegistry(cfg.RoomLimit)
	sessions := registry.NewSessionRegistry()

	janitorCtx, cancelJanitor := context.WithCancel(context.Background())
	j := janitor.New(rooms, sessions, config.JanitorInterval, config.ExpireTimeout, logger, recorder, gauges)
	go j.Run(janitorCtx)

	router := api.NewRouter(cfg, rooms, sessions, logger, recorder)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info(ctx, "Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "Server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	gracefulShutdown(context.Background(), logger, server, cancelJanitor, otelCleanup)

	logger.Info(ctx, "Application stopped.")
}

// gracefulShutdown stops the HTTP server, the janitor, and telemetry, in
// that order, each bounded by a shared deadline.
func gracefulShutdown(ctx context.Context, logger *obslog.Logger, server *http.Server, cancelJanitor context.CancelFunc, otelCleanup func(context.Context) error) {
	logger.Info(ctx, "Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error: %v", err)
	} else {
		logger.Info(ctx, "HTTP server stopped.")
	}

	cancelJanitor()
	logger.Info(ctx, "Janitor stopped.")

	if otelCleanup != nil {
		if err := otelCleanup(shutdownCtx); err != nil {
			logger.Error(ctx, "Telemetry shutdown error: %v", err)
		} else {
			logger.Info(ctx, "Telemetry shut down.")
		}
	}

	logger.Info(ctx, "Graceful shutdown complete.")
}
