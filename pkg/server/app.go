package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MarketBrain/internal/usecase"
	"MarketBrain/pkg/config"
	xhttp "MarketBrain/pkg/http"
	pkgkafka "MarketBrain/pkg/kafka"
	applogger "MarketBrain/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	supervisor *usecase.Supervisor
	httpServer *xhttp.Server
	feed       *usecase.ObservationFeed
	consumer   *pkgkafka.Consumer
	log        *applogger.Logger
}

// New creates a new App. feed and consumer are optional observation sources.
func New(
	cfg *config.Config,
	supervisor *usecase.Supervisor,
	httpServer *xhttp.Server,
	feed *usecase.ObservationFeed,
	consumer *pkgkafka.Consumer,
	log *applogger.Logger,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		supervisor: supervisor,
		httpServer: httpServer,
		feed:       feed,
		consumer:   consumer,
		log:        log.With(applogger.Component("APP")),
	}
}

func (a *App) Supervisor() *usecase.Supervisor { return a.supervisor }

// EnabledLoops lists the loops configured to start with the process.
func (a *App) EnabledLoops() []string {
	var names []string
	if a.cfg.Brain.Enabled {
		names = append(names, usecase.LoopBrain)
	}
	if a.cfg.Scanner.Enabled {
		names = append(names, usecase.LoopScanner)
	}
	if a.cfg.Agent.Enabled {
		names = append(names, usecase.LoopAgent)
	}
	return names
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts loops, observation sources and the HTTP server, then
// blocks until ctx is cancelled or the listener fails.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.httpServer.Start(); err != nil {
		return err
	}

	if err := a.supervisor.StartAll(runCtx, a.EnabledLoops()...); err != nil {
		a.shutdown(cancel)
		return err
	}
	a.log.Info("loops started", applogger.Strings("loops", a.EnabledLoops()))

	if a.feed != nil {
		a.feed.Start(runCtx)
		a.log.Info("finnhub observation feed started", applogger.Strings("symbols", a.cfg.Finnhub.Symbols))
	}
	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
		} else {
			a.log.Info("kafka observation consumer started", applogger.String("topic", a.cfg.Kafka.TicksTopic))
		}
	}

	var err error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err = <-a.httpServer.Err():
		a.log.Error("http server failed", applogger.Error(err))
	}
	a.shutdown(cancel)
	return err
}

// shutdown stops the loops, then the HTTP server, then the observation sources.
func (a *App) shutdown(cancel context.CancelFunc) {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, done := context.WithTimeout(context.Background(), timeout)
	defer done()

	a.supervisor.StopAll()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	cancel()
	if a.feed != nil {
		if err := a.feed.Shutdown(ctx); err != nil {
			a.log.Warn("observation feed stop error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
