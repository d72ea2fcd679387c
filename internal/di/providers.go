package di

import (
	"context"
	"fmt"
	"time"

	"CandleKeep/internal/domain/repository"
	"CandleKeep/internal/handler/api"
	mid "CandleKeep/internal/middleware"
	internalrepo "CandleKeep/internal/repository"
	"CandleKeep/internal/service/exchange"
	"CandleKeep/internal/service/livecache"
	"CandleKeep/internal/service/ratelimit"
	"CandleKeep/internal/service/reconcile"
	"CandleKeep/internal/usecase"
	"CandleKeep/pkg/cache"
	pkgch "CandleKeep/pkg/clickhouse"
	"CandleKeep/pkg/config"
	xhttp "CandleKeep/pkg/http"
	pkgkafka "CandleKeep/pkg/kafka"
	applogger "CandleKeep/pkg/logger"
	"CandleKeep/pkg/metrics"
	"CandleKeep/pkg/postgres"
	"CandleKeep/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvidePostgresClient creates a Postgres pool and initializes the hot schema.
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := postgres.NewClient(ctx,
		postgres.WithHost(cfg.Postgres.Host),
		postgres.WithPort(cfg.Postgres.Port),
		postgres.WithDatabase(cfg.Postgres.Database),
		postgres.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
		postgres.WithSSLMode(cfg.Postgres.SSLMode),
		postgres.WithPoolSize(cfg.Postgres.MaxConns, cfg.Postgres.MinConns),
		postgres.WithConnectTimeout(cfg.Postgres.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}

	if err := client.InitSchema(ctx, []string{
		`CREATE TABLE IF NOT EXISTS ohlcv (
			time TIMESTAMPTZ NOT NULL,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			open DOUBLE PRECISION NOT NULL,
			high DOUBLE PRECISION NOT NULL,
			low DOUBLE PRECISION NOT NULL,
			close DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (time, symbol, timeframe)
		)`,
		`CREATE INDEX IF NOT EXISTS ohlcv_symbol_tf_time_idx ON ohlcv (symbol, timeframe, time DESC)`,
	}); err != nil {
		client.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	return client, nil
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the archive schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		`CREATE TABLE IF NOT EXISTS ohlcv_archive (
			time DateTime,
			symbol String,
			timeframe String,
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64
		) ENGINE = MergeTree
		PARTITION BY toDate(time)
		ORDER BY (symbol, timeframe, time)`,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithProducerTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisCache creates the Redis backend for the live cache.
func ProvideRedisCache(cfg *config.Config) (cache.BytesCache, error) {
	rc, err := cache.NewRedisCache(
		cache.WithAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithAuth(cfg.Redis.Password, cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideLiveCache creates the live tick cache.
func ProvideLiveCache(cfg *config.Config, backend cache.BytesCache) repository.LiveCache {
	return livecache.New(backend, cfg.Redis.TickTTL)
}

// ProvideHotStore creates the Postgres hot candle store.
func ProvideHotStore(client *postgres.Client) repository.HotStore {
	return internalrepo.NewPostgresHotStore(client.Pool(), "ohlcv")
}

// ProvideColdStore creates the ClickHouse archive store.
func ProvideColdStore(client *pkgch.Client) repository.ColdStore {
	return internalrepo.NewClickHouseColdStore(client.DB(), "ohlcv_archive")
}

// ProvidePublisher creates the Kafka tick publisher.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.Publisher {
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideRateLimiter creates the shared per-venue rate limiter.
func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideHTTPClient creates the REST client used by exchange adapters.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.Exchange.RequestTimeout))
}

// ProvideExchange creates the primary/fallback exchange facade.
func ProvideExchange(cfg *config.Config, client *xhttp.Client, limiter *ratelimit.Limiter, m repository.Metrics, logger *applogger.Logger) repository.ExchangeClient {
	primary := exchange.NewBinanceClient(cfg.Exchange.PrimaryURL, client, limiter, cfg.Exchange.RateCapacity, cfg.Exchange.RatePerSec)
	fallback := exchange.NewKucoinClient(cfg.Exchange.FallbackURL, client, limiter, cfg.Exchange.RateCapacity, cfg.Exchange.RatePerSec)
	return exchange.NewFacade(primary, fallback, m, logger)
}

// ProvideStream creates the exchange websocket tick stream.
func ProvideStream(cfg *config.Config) repository.TickStream {
	return exchange.NewStream(cfg.Exchange.WebSocketURL, cfg.Exchange.Symbols, cfg.Exchange.ReconnectDelay, cfg.Exchange.PingInterval)
}

// ProvideAnomalyCleaner creates the candle anomaly cleaner.
func ProvideAnomalyCleaner(ex repository.ExchangeClient, hot repository.HotStore, m repository.Metrics, logger *applogger.Logger) *reconcile.AnomalyCleaner {
	return reconcile.NewAnomalyCleaner(ex, hot, m, logger)
}

// ProvideBridge creates the recent-gap bridge.
func ProvideBridge(cfg *config.Config, ex repository.ExchangeClient, hot repository.HotStore, m repository.Metrics, logger *applogger.Logger) *reconcile.Bridge {
	return reconcile.NewBridge(ex, hot, m, logger, cfg.History.BridgeLimit)
}

// ProvideLiveAppender creates the live tick appender.
func ProvideLiveAppender(lc repository.LiveCache, logger *applogger.Logger) *reconcile.LiveAppender {
	return reconcile.NewLiveAppender(lc, logger)
}

// ProvideValidator creates the continuity validator.
func ProvideValidator(cfg *config.Config, ex repository.ExchangeClient, hot repository.HotStore, m repository.Metrics, logger *applogger.Logger) *reconcile.Validator {
	return reconcile.NewValidator(ex, hot, m, logger, cfg.History.RepairLimit)
}

// ProvideHistoryUseCase creates the history assembly use case.
func ProvideHistoryUseCase(
	cfg *config.Config,
	hot repository.HotStore,
	cold repository.ColdStore,
	ex repository.ExchangeClient,
	cleaner *reconcile.AnomalyCleaner,
	bridge *reconcile.Bridge,
	appender *reconcile.LiveAppender,
	valid *reconcile.Validator,
	m repository.Metrics,
	logger *applogger.Logger,
) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(hot, cold, ex, cleaner, bridge, appender, valid, m, logger, cfg.History.FailoverLimit)
}

// ProvideAggregator creates the multi-timeframe tick aggregator.
func ProvideAggregator(cfg *config.Config, hot repository.HotStore, lc repository.LiveCache, m repository.Metrics, logger *applogger.Logger) *usecase.Aggregator {
	tfs := make([]repository.Timeframe, 0, len(cfg.Aggregator.Timeframes))
	for _, s := range cfg.Aggregator.Timeframes {
		tfs = append(tfs, repository.NormalizeTimeframe(s))
	}
	return usecase.NewAggregator(hot, lc, m, logger, tfs)
}

// ProvideKafkaTicksHandler creates the consumer-side tick handler.
func ProvideKafkaTicksHandler(cfg *config.Config, agg *usecase.Aggregator, m repository.Metrics) pkgkafka.MessageHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.Topic, agg, m)
}

// ProvideTickProcessor creates the tick publisher processor.
func ProvideTickProcessor(pub repository.Publisher, m repository.Metrics) *usecase.TickProcessor {
	return usecase.NewTickProcessor(pub, m)
}

// ProvideTickCollector creates the websocket tick collector.
func ProvideTickCollector(stream repository.TickStream, proc *usecase.TickProcessor, m repository.Metrics) *usecase.TickCollector {
	pipe := mid.NewRealtimePipeline(proc, m,
		mid.WithMaxRPS(20),
		mid.WithBufferSize(1000),
	)
	return usecase.NewTickCollector(stream, proc, m, pipe)
}

// ProvideArchiver creates the hot-to-cold archiver.
func ProvideArchiver(cfg *config.Config, hot repository.HotStore, cold repository.ColdStore, logger *applogger.Logger) (*usecase.Archiver, error) {
	return usecase.NewArchiver(hot, cold, logger, cfg.Archiver.Interval, cfg.Archiver.Retention, cfg.Archiver.BatchSize)
}

// ProvideHistoryHandler creates the HTTP history handler.
func ProvideHistoryHandler(logger *applogger.Logger, history *usecase.HistoryUseCase) xhttp.Handler {
	return api.NewHistoryHandler(logger, history)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	archiver *usecase.Archiver,
	pgClient *postgres.Client,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
) *server.App {
	return server.New(cfg, logger, collector, consumer, kh, archiver, pgClient, chClient, httpHandler)
}
