package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"MarketMonitor/internal/middleware"
	"MarketMonitor/internal/service/ratelimit"
	"MarketMonitor/internal/service/stream"
	"MarketMonitor/internal/usecase"
	"MarketMonitor/pkg/cache"
	pkgch "MarketMonitor/pkg/clickhouse"
	"MarketMonitor/pkg/config"
	xhttp "MarketMonitor/pkg/http"
	pkgkafka "MarketMonitor/pkg/kafka"
	"MarketMonitor/pkg/logger"
	"MarketMonitor/pkg/queue"

	"github.com/redis/go-redis/v9"
)

// Components are the long-lived parts the App starts and stops. Everything
// except HTTP and Cache is optional.
type Components struct {
	HTTP     *xhttp.Server
	Cache    cache.Service
	Hub      *stream.Hub
	Limiter  *ratelimit.Limiter
	Pipeline *middleware.SnapshotPipeline
	Recorder *usecase.SnapshotRecorder
	Poller   *usecase.Poller
	Queue    queue.Queue
	Consumer *pkgkafka.Consumer
	Sink     pkgkafka.MessageHandler
	Producer *pkgkafka.Producer
	CH       *pkgch.Client
	Redis    *redis.Client
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg  *config.Config
	root *logger.Logger
	log  *logger.Logger
	c    Components
}

func New(cfg *config.Config, log *logger.Logger, c Components) *App {
	return &App{cfg: cfg, root: log, log: log.With("app"), c: c}
}

// Run starts every component and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if a.c.HTTP == nil {
		return errors.New("server: no http server configured")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.c.Pipeline != nil {
		a.c.Pipeline.Start(ctx)
	}
	if a.c.Limiter != nil {
		go a.c.Limiter.Run(ctx.Done())
	}

	if a.c.Queue != nil {
		if err := a.c.Queue.Start(); err != nil {
			return a.abort(err, "queue start")
		}
	}
	if a.c.Poller != nil {
		go a.c.Poller.Run(ctx)
	}

	if a.c.Consumer != nil && a.c.Sink != nil {
		a.c.Consumer.RegisterHandler(a.c.Sink)
		if err := a.c.Consumer.Start(); err != nil {
			return a.abort(err, "kafka consumer start")
		}
		a.log.Info("snapshot sink started", logger.String("topic", a.c.Sink.Topic()))
	}

	if err := a.c.HTTP.Start(); err != nil {
		return a.abort(err, "http server start")
	}
	a.log.Info("market monitor started",
		logger.String("env", a.cfg.Environment),
		logger.String("backend", a.cfg.Backend.Type),
		logger.String("upstream", a.cfg.Upstream.BaseURL),
		logger.Bool("poller", a.c.Poller != nil),
		logger.Bool("stream", a.c.Hub != nil),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) abort(err error, what string) error {
	a.log.Error(what+" failed", logger.Error(err))
	_ = a.shutdown()
	return err
}

// shutdown stops producers of work before their sinks: HTTP and the poller
// first, then queue workers, the consumer, the pipeline, and finally the
// connections they write to.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.c.HTTP.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", logger.Error(err))
	}
	if a.c.Hub != nil {
		a.c.Hub.Close()
	}
	if a.c.Queue != nil {
		if err := a.c.Queue.Stop(ctx); err != nil && !errors.Is(err, queue.ErrNotRunning) {
			a.log.Warn("queue stop error", logger.Error(err))
		}
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", logger.Error(err))
		}
	}
	if a.c.Pipeline != nil {
		a.c.Pipeline.Stop()
	}
	if a.c.Recorder != nil {
		a.c.Recorder.Close()
	}

	// the log collector publishes through the producer
	a.root.RemoveCollector()
	if a.c.Producer != nil {
		if err := a.c.Producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", logger.Error(err))
		}
	}
	if a.c.CH != nil {
		if err := a.c.CH.Close(); err != nil {
			a.log.Warn("clickhouse close error", logger.Error(err))
		}
	}
	if a.c.Cache != nil {
		if err := a.c.Cache.Close(); err != nil {
			a.log.Warn("cache close error", logger.Error(err))
		}
	}
	if a.c.Redis != nil {
		if err := a.c.Redis.Close(); err != nil {
			a.log.Warn("redis close error", logger.Error(err))
		}
	}

	a.log.Info("shutdown complete", logger.Duration("budget", a.cfg.Server.ShutdownTimeout))
	return nil
}
