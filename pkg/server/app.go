package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"KlineScope/internal/infra"
	"KlineScope/internal/usecase"
	xhttp "KlineScope/pkg/http"
	applogger "KlineScope/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	logger           *applogger.Logger
	httpServer       *xhttp.Server
	collector        *usecase.CandleCollector
	collectorEnabled bool
	scheduler        *infra.Scheduler
	shutdownTimeout  time.Duration
}

// New creates a new App instance with all dependencies.
func New(logger *applogger.Logger, httpServer *xhttp.Server, collector *usecase.CandleCollector) *App {
	return &App{
		logger:          logger,
		httpServer:      httpServer,
		collector:       collector,
		shutdownTimeout: 15 * time.Second,
	}
}

// EnableCollector starts live stream subscriptions on Run.
func (a *App) EnableCollector() { a.collectorEnabled = true }

// SetScheduler registers the periodic analysis job.
func (a *App) SetScheduler(s *infra.Scheduler) { a.scheduler = s }

// Run starts the application and blocks until ctx ends or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("http server start: %w", err)
	}

	if a.collectorEnabled {
		if err := a.collector.Start(ctx); err != nil {
			a.logger.Error("collector start error", applogger.Error(err))
			_ = a.shutdown()
			return err
		}
		a.logger.Info("collector started", applogger.Strings("active", a.collector.Active()))
	}

	if a.scheduler != nil {
		if err := a.scheduler.Start(); err != nil {
			_ = a.shutdown()
			return err
		}
	}

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops components in reverse start order.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	// Shutdown also closes the backend, so it runs even when the stream was never started.
	if err := a.collector.Shutdown(ctx); err != nil {
		a.logger.Warn("collector stop error", applogger.Error(err))
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
		return err
	}

	a.logger.Info("shutdown complete")
	return nil
}
