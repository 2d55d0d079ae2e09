package di

import (
	"context"
	"fmt"
	"time"

	"MarketMonitor/internal/domain/repository"
	"MarketMonitor/internal/handler/api"
	mid "MarketMonitor/internal/middleware"
	internalrepo "MarketMonitor/internal/repository"
	"MarketMonitor/internal/service/latency"
	"MarketMonitor/internal/service/ratelimit"
	"MarketMonitor/internal/service/stream"
	"MarketMonitor/internal/services/microstructure"
	"MarketMonitor/internal/services/regime"
	"MarketMonitor/internal/services/risk"
	"MarketMonitor/internal/services/upstream"
	"MarketMonitor/internal/usecase"
	"MarketMonitor/pkg/cache"
	pkgch "MarketMonitor/pkg/clickhouse"
	"MarketMonitor/pkg/config"
	xhttp "MarketMonitor/pkg/http"
	"MarketMonitor/pkg/http/middleware"
	pkgkafka "MarketMonitor/pkg/kafka"
	"MarketMonitor/pkg/logger"
	"MarketMonitor/pkg/metrics"
	"MarketMonitor/pkg/queue"
	"MarketMonitor/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger builds the root logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisClient connects only when a component needs Redis.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.RedisRequired() {
		return nil, nil
	}
	return cache.NewRedisClient(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
	)
}

func ProvideCache(cfg *config.Config, rdb *redis.Client) (cache.Service, error) {
	switch cfg.Cache.Mode {
	case "redis":
		return cache.NewRedisCacheFromClient(rdb, cfg.Redis.Prefix), nil
	case "layered":
		return cache.NewLayeredCache(
			cache.NewRedisCacheFromClient(rdb, cfg.Redis.Prefix),
			cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
		), nil
	case "memory":
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
			cache.WithMemoryCleanup(time.Minute),
		), nil
	default:
		return nil, fmt.Errorf("unknown cache mode %q", cfg.Cache.Mode)
	}
}

func ProvideToolClient(cfg *config.Config, m repository.Metrics, log *logger.Logger) *upstream.ToolClient {
	u := cfg.Upstream
	return upstream.NewToolClient(u.BaseURL,
		upstream.WithTimeout(u.Timeout),
		upstream.WithRetry(u.RetryAttempts, u.RetryBackoff),
		upstream.WithBreaker(u.BreakerFails, u.BreakerTimeout),
		upstream.WithMetrics(m),
		upstream.WithLogger(log.With("upstream")),
	)
}

func ProvideMarketDataSource(client *upstream.ToolClient) repository.MarketDataSource {
	return upstream.NewSource(client)
}

func ProvideMarketDataUseCase(
	cfg *config.Config,
	src repository.MarketDataSource,
	c cache.Service,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.MarketDataUseCase {
	return usecase.NewMarketDataUseCase(src, c, cfg.Cache.MarketTTL, usecase.NewFallbackGenerator(time.Now().UnixNano()), m, log)
}

func ProvidePnlUseCase(cfg *config.Config, src repository.MarketDataSource, c cache.Service, log *logger.Logger) *usecase.PnlUseCase {
	return usecase.NewPnlUseCase(src, c, cfg.Cache.PnlTTL, log)
}

func clickHouseRequired(cfg *config.Config) bool {
	return cfg.Backend.Type == usecase.BackendClickHouse || cfg.Kafka.Consumer.Enabled
}

// ProvideClickHouseClient connects and bootstraps the snapshot schema when
// the ClickHouse backend or the snapshot sink is enabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !clickHouseRequired(cfg) {
		return nil, nil
	}
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{"CREATE DATABASE IF NOT EXISTS " + ch.Database}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func ProvideSnapshotStorage(cfg *config.Config, client *pkgch.Client, log *logger.Logger) (repository.SnapshotStorage, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseSnapshotStore(client.DB(), cfg.ClickHouse.Database+"."+internalrepo.DefaultSnapshotTable, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("snapshot schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates the producer for the kafka backend and hooks
// the error log collector onto it when a log topic is configured.
func ProvideKafkaProducer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	k := cfg.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatching(k.Producer.BatchSize, k.Producer.Linger),
		pkgkafka.WithWriteTimeout(k.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerLogger(log.With("kafka-producer")),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	if cfg.Log.Topic != "" {
		log.AddCollector(&logger.CollectionConfig{
			TimeInterval: cfg.Log.FlushInterval,
			Topic:        cfg.Log.Topic,
			Publisher:    producer,
		})
	}
	return producer, nil
}

func ProvideSnapshotPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.SnapshotPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.Topic)
}

func ProvideSnapshotRecorder(
	cfg *config.Config,
	pub repository.SnapshotPublisher,
	store repository.SnapshotStorage,
	m repository.Metrics,
) *usecase.SnapshotRecorder {
	return usecase.NewSnapshotRecorder(pub, store, m, cfg.Backend.Type)
}

// ProvideSnapshotPipeline returns nil for the none backend.
func ProvideSnapshotPipeline(
	cfg *config.Config,
	recorder *usecase.SnapshotRecorder,
	m repository.Metrics,
	log *logger.Logger,
) *mid.SnapshotPipeline {
	if recorder.Backend() == usecase.BackendNone {
		return nil
	}
	return mid.NewSnapshotPipeline(recorder, m,
		mid.WithThrottle(cfg.Backend.Throttle),
		mid.WithBufferSize(cfg.Backend.BufferSize),
		mid.WithBatchSize(cfg.Backend.BatchSize),
		mid.WithPipelineLogger(log),
	)
}

func ProvideAnalyticsUseCase(
	market *usecase.MarketDataUseCase,
	pipeline *mid.SnapshotPipeline,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.AnalyticsUseCase {
	var snaps usecase.SnapshotProcessor
	if pipeline != nil {
		snaps = pipeline
	}
	return usecase.NewAnalyticsUseCase(market, microstructure.NewEngine(), regime.NewClassifier(), risk.NewEngine(), snaps, m, log)
}

func ProvideHistoryUseCase(store repository.SnapshotStorage) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(store)
}

// ProvideStreamHub returns nil when the live stream is disabled.
func ProvideStreamHub(cfg *config.Config, log *logger.Logger) *stream.Hub {
	if cfg.Stream.Disabled {
		return nil
	}
	return stream.NewHub(stream.Options{
		PingInterval: cfg.Stream.PingInterval,
		WriteTimeout: cfg.Stream.WriteTimeout,
		SendBuffer:   cfg.Stream.SendBuffer,
	}, log)
}

func ProvideRefreshJob(
	market *usecase.MarketDataUseCase,
	analytics *usecase.AnalyticsUseCase,
	hub *stream.Hub,
	log *logger.Logger,
) *usecase.RefreshJob {
	var b usecase.Broadcaster
	if hub != nil {
		b = hub
	}
	return usecase.NewRefreshJob(market, analytics, b, log)
}

// ProvideQueue builds the refresh job queue; nil while the poller is off.
func ProvideQueue(cfg *config.Config, rdb *redis.Client, job *usecase.RefreshJob, log *logger.Logger) queue.Queue {
	if !cfg.Poller.Enabled {
		return nil
	}
	qcfg := &queue.Config{
		Workers:    cfg.Poller.QueueWorkers,
		QueueSize:  len(cfg.Poller.Watchlist) * 4,
		RetryLimit: cfg.Poller.MaxRetries,
		RetryDelay: cfg.Poller.Interval / 4,
	}

	var q queue.Queue
	if cfg.Poller.Queue == "redis" {
		q = queue.NewRedisQueue(log, qcfg, rdb, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue:"+cfg.Poller.QueueName))
	} else {
		q = queue.NewLocalQueue(log, qcfg)
	}
	q.RegisterJob(job)
	return q
}

func ProvidePoller(cfg *config.Config, q queue.Queue, log *logger.Logger) (*usecase.Poller, error) {
	if q == nil {
		return nil, nil
	}
	watchlist, err := usecase.ParseWatchlist(cfg.Poller.Watchlist)
	if err != nil {
		return nil, fmt.Errorf("poller watchlist: %w", err)
	}
	return usecase.NewPoller(q, watchlist, cfg.Poller.Interval, log), nil
}

// ProvideKafkaConsumer creates the snapshot sink consumer when enabled.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	cc := cfg.Kafka.Consumer
	clog := log.With("kafka-consumer")
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cc.GroupID),
		pkgkafka.WithConsumerWorkers(cc.Workers),
		pkgkafka.WithConsumerBufferSize(cc.BufferSize),
		pkgkafka.WithConsumerRetry(cc.RetryMax, cc.BackoffMin, cc.BackoffMax),
		pkgkafka.WithConsumerDLQ(cc.DLQTopic),
		pkgkafka.WithConsumerFetch(cc.MinBytes, cc.MaxBytes),
		pkgkafka.WithConsumerLogger(clog),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetHook(pkgkafka.NewHookChain(pkgkafka.LoggingHook{Log: clog, Slow: time.Second}))
	return consumer, nil
}

func ProvideSnapshotSink(cfg *config.Config, consumer *pkgkafka.Consumer, store repository.SnapshotStorage, m repository.Metrics) pkgkafka.MessageHandler {
	if consumer == nil || store == nil {
		return nil
	}
	return usecase.NewSnapshotSink(cfg.Kafka.Topic, store, m)
}

func ProvideLatencyTracker(cfg *config.Config) *latency.Tracker {
	return latency.NewTracker(cfg.Server.LatencySamples)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}

func healthChecks(client *pkgch.Client, rdb *redis.Client) []api.HealthCheck {
	var checks []api.HealthCheck
	if client != nil {
		checks = append(checks, api.HealthCheck{Name: "clickhouse", Check: client.Health})
	}
	if rdb != nil {
		checks = append(checks, api.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return checks
}

// ProvideHTTPServer registers every handler behind the middleware chain.
func ProvideHTTPServer(
	cfg *config.Config,
	log *logger.Logger,
	tool *upstream.ToolClient,
	market *usecase.MarketDataUseCase,
	pnl *usecase.PnlUseCase,
	analytics *usecase.AnalyticsUseCase,
	history *usecase.HistoryUseCase,
	hub *stream.Hub,
	tracker *latency.Tracker,
	limiter *ratelimit.Limiter,
	client *pkgch.Client,
	rdb *redis.Client,
) *xhttp.Server {
	handlers := xhttp.Handlers{
		api.NewSystemHandler(tool.BaseURL(), tracker, healthChecks(client, rdb)...),
		api.NewMarketHandler(market, log),
		api.NewPnlHandler(pnl, log),
		api.NewAnalyticsHandler(analytics, history, hub, log),
	}
	return xhttp.NewServer(handlers, log,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins...),
		xhttp.WithMiddleware(
			middleware.Latency(tracker, "/api/"),
			middleware.RateLimit(limiter, "/health", "/metrics", "/ws/analytics"),
		),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	srv *xhttp.Server,
	c cache.Service,
	hub *stream.Hub,
	limiter *ratelimit.Limiter,
	pipeline *mid.SnapshotPipeline,
	recorder *usecase.SnapshotRecorder,
	poller *usecase.Poller,
	q queue.Queue,
	consumer *pkgkafka.Consumer,
	sink pkgkafka.MessageHandler,
	producer *pkgkafka.Producer,
	client *pkgch.Client,
	rdb *redis.Client,
) *server.App {
	return server.New(cfg, log, server.Components{
		HTTP:     srv,
		Cache:    c,
		Hub:      hub,
		Limiter:  limiter,
		Pipeline: pipeline,
		Recorder: recorder,
		Poller:   poller,
		Queue:    q,
		Consumer: consumer,
		Sink:     sink,
		Producer: producer,
		CH:       client,
		Redis:    rdb,
	})
}
