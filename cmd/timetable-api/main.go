package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xxiimcha/spcc-backend-sub000/internal/app"
	"github.com/xxiimcha/spcc-backend-sub000/internal/handler"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/config"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/logger"
)

// @title SPCC Timetable API
// @version 1.0.0
// @description Timetable generation, conflict detection and workload balancing.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.New(ctx, cfg, logr, app.Options{Jobs: true})
	if err != nil {
		logr.Fatal("failed to initialise dependencies", zap.Error(err))
	}
	defer container.Close()

	if container.Jobs != nil {
		container.Jobs.Start(ctx)
	}

	router := app.NewRouter(
		cfg,
		logr,
		container.Metrics,
		handler.NewTimetableHandler(container.Generator, container.Jobs),
		handler.NewMetricsHandler(container.Metrics, container.HealthChecks()),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if container.Jobs != nil {
		container.Jobs.Stop()
	}
}
