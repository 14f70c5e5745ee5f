// Package main boots the NPC Town HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/easeaico/npc-town/internal/api"
	"github.com/easeaico/npc-town/internal/app"
	"github.com/easeaico/npc-town/internal/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)
	slog.Info("configuration loaded",
		"provider", cfg.LLMProvider,
		"model", cfg.LLMModelID,
		"memory_backend", cfg.MemoryBackend,
		"update_interval", cfg.UpdateInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mirror io.Writer
	if cfg.DebugMode {
		mirror = os.Stdout
	}
	a, err := app.New(ctx, cfg, mirror)
	if err != nil {
		log.Fatalf("failed to initialize app: %v", err)
	}

	if err := a.Scheduler.Start(ctx); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(a.Handler(), cfg.DebugMode),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
	case <-ctx.Done():
		fmt.Println("\n正在关闭...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
	if err := a.Close(shutdownCtx); err != nil {
		slog.Error("app shutdown failed", "error", err)
	}

	fmt.Println("Server shutdown complete")
}
