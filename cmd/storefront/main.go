package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go-surplus-storefront/internal/app"
	"go-surplus-storefront/internal/config"
	"go-surplus-storefront/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	l, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// build dependency + routes
	a, err := app.BuildApp(cfg, r, l)
	if err != nil {
		l.Fatal("build app", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers := a.StartWorkers(ctx)

	if err := a.Serve(ctx, r); err != nil {
		l.Error("server stopped", zap.Error(err))
	}
	stop()
	workers.Wait()

	if err := a.Close(); err != nil {
		l.Warn("close", zap.Error(err))
	}
	l.Info("storefront stopped")
}
