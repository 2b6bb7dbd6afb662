package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MTFCast/internal/domain/repository"
	"MTFCast/internal/handler/api"
	"MTFCast/internal/usecase"
	"MTFCast/pkg/cache"
	"MTFCast/pkg/config"
	xhttp "MTFCast/pkg/http"
	applogger "MTFCast/pkg/logger"
)

// App encapsulates the application lifecycle: run one backtest, expose the
// report and metrics over HTTP while configured to, then shut everything
// down cleanly.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	runner     *usecase.RunBacktest
	store      repository.BarStore
	sink       repository.ResultSink
	cacheSvc   cache.Service
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	runner *usecase.RunBacktest,
	store repository.BarStore,
	sink repository.ResultSink,
	cacheSvc cache.Service,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		runner:   runner,
		store:    store,
		sink:     sink,
		cacheSvc: cacheSvc,
	}
}

// Run executes the backtest and blocks until it finishes; with the HTTP
// server enabled it then keeps serving the report until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		a.log.Info("shutdown signal received")
		cancel()
	}()

	if a.cfg.Server.Enabled {
		handler := api.NewResultsHandler(a.log, a.runner)
		a.httpServer = xhttp.NewServer(handler,
			xhttp.WithPort(a.cfg.Server.Port),
			xhttp.WithServerTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		)
		if err := a.httpServer.Start(); err != nil {
			return err
		}
	}

	_, runErr := a.runner.Execute(ctx)
	if runErr != nil {
		a.log.Error("backtest run failed", applogger.Error(runErr))
	}

	if a.cfg.Server.Enabled && runErr == nil {
		// Keep the report endpoint alive until interrupted.
		<-ctx.Done()
	}

	a.shutdown(context.Background())
	return runErr
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) {
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Warn("http shutdown error", applogger.Error(err))
		}
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.log.Warn("result sink close error", applogger.Error(err))
		}
	}
	if a.cacheSvc != nil {
		if err := a.cacheSvc.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("bar store close error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
