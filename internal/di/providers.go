package di

import (
	"context"
	"fmt"
	"time"

	"KlineScope/internal/domain/models"
	"KlineScope/internal/domain/repository"
	domsvc "KlineScope/internal/domain/service"
	"KlineScope/internal/handler/api"
	"KlineScope/internal/infra"
	mid "KlineScope/internal/middleware"
	internalrepo "KlineScope/internal/repository"
	"KlineScope/internal/service/binance"
	"KlineScope/internal/services/indicators"
	"KlineScope/internal/services/signals"
	"KlineScope/internal/usecase"
	"KlineScope/pkg/cache"
	pkgch "KlineScope/pkg/clickhouse"
	"KlineScope/pkg/config"
	xhttp "KlineScope/pkg/http"
	pkgkafka "KlineScope/pkg/kafka"
	applogger "KlineScope/pkg/logger"
	"KlineScope/pkg/metrics"
	"KlineScope/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideRegistry creates the registry backing /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideHTTPClient creates the rate limited REST transport.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.Binance.Timeout),
		xhttp.WithRateLimit(cfg.Binance.RequestsPerSecond),
		xhttp.WithUserAgent("klinescope"),
	)
}

// ProvideBinanceClient creates the exchange REST client.
func ProvideBinanceClient(cfg *config.Config, hc *xhttp.Client, logger *applogger.Logger, m repository.Metrics) *binance.Client {
	return binance.New(cfg.Binance.RestURL, hc, logger, m)
}

// ProvideCache builds the snapshot cache. It returns nil when caching is
// disabled.
func ProvideCache(cfg *config.Config, logger *applogger.Logger) (cache.Service, func(), error) {
	if !cfg.Cache.Enabled {
		return nil, func() {}, nil
	}
	mem := cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Cache.MemorySize),
		cache.WithMemoryDefaultTTL(cfg.Cache.TTL),
	)
	if !cfg.Cache.Redis.Enabled {
		return mem, func() { _ = mem.Close() }, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := cache.NewRedisCache(ctx,
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		_ = mem.Close()
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	logger.Info("redis cache connected", applogger.String("addr", cfg.Cache.Redis.Addr))
	layered := cache.NewLayeredCache(mem, rc, cfg.Cache.TTL)
	return layered, func() { _ = layered.Close() }, nil
}

// ProvideMarketData decorates the REST client with the cache when one is configured.
func ProvideMarketData(client *binance.Client, c cache.Service, cfg *config.Config, logger *applogger.Logger) repository.MarketData {
	if c == nil {
		return client
	}
	return binance.NewCachedClient(client, c, cfg.Cache.TTL, logger)
}

// ProvideStreamer creates the kline WebSocket client.
func ProvideStreamer(cfg *config.Config, logger *applogger.Logger, m repository.Metrics) *binance.Streamer {
	return binance.NewStreamer(binance.StreamConfig{
		BaseURL:      cfg.Binance.WebSocketURL,
		Interval:     cfg.Stream.Interval,
		MaxAttempts:  cfg.Stream.MaxAttempts,
		BaseDelay:    cfg.Stream.BaseDelay,
		PingInterval: cfg.Stream.PingInterval,
	}, logger, m)
}

// ProvideClickHouseClient connects to ClickHouse when it is the selected backend.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.Backend.Type != usecase.BackendClickHouse {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCandleStorage creates the archive and ensures its table exists.
// It returns nil without a ClickHouse client.
func ProvideCandleStorage(client *pkgch.Client, cfg *config.Config, logger *applogger.Logger) (repository.CandleStorage, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseCandleStorage(client, cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a producer when Kafka is the selected backend.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithTopic(cfg.Kafka.Topic),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideCandlePublisher wraps the producer. It returns nil without a producer.
func ProvideCandlePublisher(producer *pkgkafka.Producer) repository.CandlePublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaCandlePublisher(producer)
}

// ProvideCandleProcessor routes closed candles to the configured backend.
func ProvideCandleProcessor(
	pub repository.CandlePublisher,
	store repository.CandleStorage,
	m repository.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) (*usecase.CandleProcessor, error) {
	return usecase.NewCandleProcessor(pub, store, m, logger, cfg.Backend.Type)
}

// ProvideCandlePipeline builds the buffer between the stream and the processor.
func ProvideCandlePipeline(proc *usecase.CandleProcessor, m repository.Metrics, cfg *config.Config) *mid.CandlePipeline {
	return mid.NewCandlePipeline(proc, m,
		mid.WithBufferSize(cfg.Backend.BufferSize),
		mid.WithBatchSize(cfg.Backend.BatchSize),
	)
}

// ProvideCandleCollector subscribes the configured stream symbols.
func ProvideCandleCollector(
	stream repository.KlineStream,
	pipe *mid.CandlePipeline,
	proc *usecase.CandleProcessor,
	m repository.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.CandleCollector {
	return usecase.NewCandleCollector(stream, pipe, proc, m, logger, cfg.Stream.Symbols)
}

// ProvideCalculator creates the indicator adapter with default periods.
func ProvideCalculator() domsvc.IndicatorCalculator {
	return indicators.NewCalculator(indicators.DefaultParams())
}

// ProvideAggregator creates the signal aggregator.
func ProvideAggregator() domsvc.SignalAggregator {
	return signals.NewAggregator()
}

// ProvideScheduler creates the analysis job. It returns nil when scheduled
// analysis is disabled.
func ProvideScheduler(analysis *usecase.AnalysisUseCase, cfg *config.Config, logger *applogger.Logger) (*infra.Scheduler, error) {
	if !cfg.Analysis.Enabled {
		return nil, nil
	}
	active, err := models.ParseActiveSet(cfg.Analysis.Indicators)
	if err != nil {
		return nil, fmt.Errorf("analysis.indicators: %w", err)
	}
	return infra.NewScheduler(analysis, infra.SchedulerConfig{
		Schedule:        cfg.Analysis.Schedule,
		Symbols:         cfg.Analysis.Symbols,
		Interval:        cfg.Analysis.Interval,
		Limit:           cfg.Analysis.Limit,
		Active:          active,
		RetryMaxElapsed: cfg.Analysis.RetryMaxElapse,
	}, logger), nil
}

// ProvideHandler assembles the API handler and its health checks.
func ProvideHandler(
	market repository.MarketData,
	candles *usecase.CandlesUseCase,
	analysis *usecase.AnalysisUseCase,
	scheduler *infra.Scheduler,
	store repository.CandleStorage,
	c cache.Service,
	m repository.Metrics,
	logger *applogger.Logger,
) *api.KlineHandler {
	h := api.NewKlineHandler(market, candles, analysis, m, logger)
	if scheduler != nil {
		h.SetLatest(scheduler)
	}
	if store != nil {
		h.AddHealthCheck("clickhouse", store.Health)
	}
	if c != nil {
		h.AddHealthCheck("cache", func(ctx context.Context) error {
			_, err := c.Exists(ctx, "healthz")
			return err
		})
	}
	return h
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(h *api.KlineHandler, cfg *config.Config, logger *applogger.Logger, reg *prometheus.Registry) *xhttp.Server {
	return xhttp.NewServer(h, logger,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithRegistry(reg),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	httpServer *xhttp.Server,
	collector *usecase.CandleCollector,
	scheduler *infra.Scheduler,
) *server.App {
	app := server.New(logger, httpServer, collector)
	if cfg.Stream.Enabled {
		app.EnableCollector()
	}
	if scheduler != nil {
		app.SetScheduler(scheduler)
	}
	return app
}
