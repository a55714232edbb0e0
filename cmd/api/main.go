package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/markdave123-py/Prism/internal/app"
	"github.com/markdave123-py/Prism/internal/config"
	"github.com/markdave123-py/Prism/internal/core/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()

	// Handle SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("startup failed", "error", err)
	}
	defer application.Close()

	go application.Sessions.RunJanitor(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- application.Server.Start() }()

	zlog.Info("Prism is running", "port", cfg.Port)
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			zlog.Error("server stopped", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", "error", err)
	}
	zlog.Info("shutting down...")
}
