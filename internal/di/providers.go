package di

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"MarketBrain/internal/domain/models"
	drepo "MarketBrain/internal/domain/repository"
	dsvc "MarketBrain/internal/domain/service"
	"MarketBrain/internal/handler/api"
	mid "MarketBrain/internal/middleware"
	internalrepo "MarketBrain/internal/repository"
	"MarketBrain/internal/service/finnhub"
	"MarketBrain/internal/service/marketdata"
	svcmetrics "MarketBrain/internal/service/metrics"
	"MarketBrain/internal/service/news"
	"MarketBrain/internal/service/notify"
	"MarketBrain/internal/service/ratelimit"
	"MarketBrain/internal/service/research"
	"MarketBrain/internal/service/technicals"
	"MarketBrain/internal/services/analysis"
	"MarketBrain/internal/usecase"
	"MarketBrain/pkg/cache"
	pkgch "MarketBrain/pkg/clickhouse"
	"MarketBrain/pkg/config"
	"MarketBrain/pkg/cycle"
	xhttp "MarketBrain/pkg/http"
	pkgkafka "MarketBrain/pkg/kafka"
	"MarketBrain/pkg/logger"
	"MarketBrain/pkg/metrics"
	"MarketBrain/pkg/server"
)

// ProvideDB opens the ledger database.
func ProvideDB(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := internalrepo.OpenDB(cfg.Ledger.Driver, cfg.Ledger.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger db: %w", err)
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, cleanup, nil
}

// ProvideJournal returns nil when the journal is disabled.
func ProvideJournal(cfg *config.Config, db *gorm.DB) (drepo.Journal, func(), error) {
	if !cfg.Ledger.Journal.Enabled {
		return nil, func() {}, nil
	}
	j, err := internalrepo.NewGormJournal(db, cfg.Ledger.Journal.BufferSize)
	if err != nil {
		return nil, nil, fmt.Errorf("journal: %w", err)
	}
	return j, func() { _ = j.Close() }, nil
}

// ProvideKafkaProducer returns nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the root logger. Component-tagged lines are copied to
// the journal and error lines are aggregated onto the kafka logs topic.
func ProvideLogger(cfg *config.Config, journal drepo.Journal, producer *pkgkafka.Producer) (*logger.Logger, func(), error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if journal != nil {
		l.AddSink(internalrepo.JournalSink(journal))
	}
	if producer != nil {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Logging.CollectInterval,
			CountThreshold: cfg.Logging.CollectMax,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      producer,
		})
	}
	return l, l.RemoveCollector, nil
}

func ProvideMetrics() *metrics.Recorder {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideClickHouseClient returns nil when the candle archive is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, false),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, 10*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.CandleArchiveSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

func ProvideCandleArchive(ch *pkgch.Client, log *logger.Logger) drepo.CandleArchive {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHCandleArchive(ch, log.With(logger.Component("ARCHIVE")))
}

func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) drepo.EventPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

func ProvideLedgerStore(db *gorm.DB) (drepo.LedgerStore, error) {
	store, err := internalrepo.NewGormLedgerStore(db)
	if err != nil {
		return nil, fmt.Errorf("ledger store: %w", err)
	}
	return store, nil
}

// ProvideDurableCache returns the second cache tier, or nil for "none".
func ProvideDurableCache(cfg *config.Config, db *gorm.DB) (cache.Service, func(), error) {
	switch cfg.Cache.Durable {
	case "redis":
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Redis.Addr),
			cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
			cache.WithRedisPool(cfg.Redis.PoolSize),
			cache.WithRedisPrefix(cfg.Cache.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		return rc, func() { _ = rc.Close() }, nil
	case "sql":
		sc, err := cache.NewSQLCache(db, cfg.Cache.Prefix)
		if err != nil {
			return nil, nil, fmt.Errorf("sql cache: %w", err)
		}
		return sc, func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

func ProvideMemoryCache(cfg *config.Config) (*cache.MemoryCache, func()) {
	mc := cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Cache.MaxEntries),
		cache.WithMemoryCleanup(cfg.Cache.MemoryTTL),
	)
	return mc, func() { _ = mc.Close() }
}

func ProvidePriceSource(cfg *config.Config, log *logger.Logger) drepo.PriceSource {
	return marketdata.NewYahoo(
		marketdata.WithLimiter(ratelimit.New(cfg.Upstream.YahooInterval, 1)),
		marketdata.WithLogger(log.With(logger.Component("MARKET_DATA"))),
	)
}

func ProvideNews(cfg *config.Config, log *logger.Logger) *news.RSS {
	return news.NewRSS(news.Config{
		MaxItems: cfg.Upstream.NewsLimit,
		CacheTTL: cfg.Upstream.NewsCacheTTL,
		Timeout:  cfg.Upstream.Timeout,
	}, log.With(logger.Component("MARKET_DATA")))
}

func ProvideTechnicals(cfg *config.Config, log *logger.Logger) drepo.TechnicalsSource {
	return technicals.NewTradingView(cfg.Upstream.TechnicalsURL, cfg.Upstream.Timeout,
		ratelimit.New(time.Second, 2), log.With(logger.Component("MARKET_DATA")))
}

// ProvideGemini returns nil when no API key is configured.
func ProvideGemini(cfg *config.Config) (*research.Gemini, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, nil
	}
	return research.NewGemini(context.Background(), research.Config{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
	}, ratelimit.New(4*time.Second, 1))
}

func ProvideAnalysisBase(cfg *config.Config) *analysis.HTTPServiceBase {
	if cfg.Analysis.ServiceURL == "" {
		return nil
	}
	return analysis.NewHTTPServiceBase(cfg.Analysis.ServiceURL, cfg.Analysis.Timeout, cfg.Analysis.Retries)
}

// ProvideSignalGenerator prefers the remote analysis service, then Gemini.
// Without either the forecaster falls back to Neutral.
func ProvideSignalGenerator(base *analysis.HTTPServiceBase, gemini *research.Gemini) dsvc.SignalGenerator {
	switch {
	case base != nil:
		return analysis.NewHTTPSignalGenerator(base)
	case gemini != nil:
		return research.NewAnalyst(gemini)
	default:
		return nil
	}
}

// ProvidePatternDetector always runs the local technical detector and adds
// the remote or Gemini detector when configured.
func ProvidePatternDetector(base *analysis.HTTPServiceBase, gemini *research.Gemini) dsvc.PatternDetector {
	detectors := []dsvc.PatternDetector{analysis.NewTechnicalDetector()}
	switch {
	case base != nil:
		detectors = append(detectors, analysis.NewHTTPPatternDetector(base))
	case gemini != nil:
		detectors = append(detectors, research.NewAnalyst(gemini))
	}
	return analysis.NewCompositeDetector(detectors...)
}

// ProvideNotifier returns nil unless telegram is configured.
func ProvideNotifier(cfg *config.Config, log *logger.Logger) dsvc.Notifier {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == 0 {
		return nil
	}
	t, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		log.Warn("telegram alerts disabled", logger.Error(err))
		return nil
	}
	return t
}

func ProvideErrorBudget() *usecase.ErrorBudget {
	return usecase.NewErrorBudget()
}

func ProvideLedger(cfg *config.Config, store drepo.LedgerStore, pub drepo.EventPublisher, rec *metrics.Recorder, log *logger.Logger) *usecase.Ledger {
	opts := []usecase.LedgerOption{
		usecase.WithValidationDelay(cfg.Ledger.ValidationDelay),
		usecase.WithValidationRecorder(rec),
		usecase.WithLedgerLogger(log.With(logger.Component("LEDGER"))),
	}
	if pub != nil {
		opts = append(opts, usecase.WithEventPublisher(pub))
	}
	return usecase.NewLedger(context.Background(), store, usecase.NewTunables(cfg.Ledger.ConfidenceMin), opts...)
}

func ProvideMovers(cfg *config.Config, prices drepo.PriceSource, memory *cache.MemoryCache, durable cache.Service, rec *metrics.Recorder, budget *usecase.ErrorBudget, log *logger.Logger) *usecase.MoversService {
	l := log.With(logger.Component("CACHE"))
	snapshot := cache.NewSnapshot[[]models.Mover]("movers", memory, durable,
		cache.WithMemoryTTL(cfg.Cache.MemoryTTL),
		cache.WithDurableTTL(cfg.Cache.DurableTTL),
		cache.WithSnapshotLogger(l),
		cache.WithObserver(rec.RecordCacheLookup),
	)
	return usecase.NewMoversService(cfg.Movers.Symbols, cfg.Movers.Days, prices, snapshot, budget, l)
}

func ProvideForecaster(cfg *config.Config, ledger *usecase.Ledger, prices drepo.PriceSource, tech drepo.TechnicalsSource, rss *news.RSS, signals dsvc.SignalGenerator, budget *usecase.ErrorBudget, log *logger.Logger) *usecase.Forecaster {
	return usecase.NewForecaster(usecase.ForecasterDeps{
		Ledger:     ledger,
		Prices:     prices,
		Technicals: tech,
		News:       rss,
		Signals:    signals,
		Budget:     budget,
		Timeout:    cfg.Upstream.Timeout,
		Logger:     log.With(logger.Component("FORECASTER")),
	})
}

func ProvideBrain(cfg *config.Config, ledger *usecase.Ledger, prices drepo.PriceSource, archive drepo.CandleArchive, movers *usecase.MoversService, rss *news.RSS, budget *usecase.ErrorBudget, log *logger.Logger) *usecase.Brain {
	opts := []usecase.BrainOption{
		usecase.WithBrainHealers(movers.Invalidate, rss.Flush),
		usecase.WithBrainLogger(log.With(logger.Component("BRAIN"))),
	}
	if archive != nil {
		opts = append(opts, usecase.WithBrainArchive(archive))
	}
	return usecase.NewBrain(usecase.BrainConfig{
		Watchlist:          cfg.Brain.Watchlist,
		StaleAfter:         cfg.Brain.StaleAfter,
		BackfillDays:       cfg.Brain.BackfillDays,
		HealErrorThreshold: cfg.Brain.HealErrorThreshold,
		UpstreamTimeout:    cfg.Upstream.Timeout,
	}, ledger, prices, budget, opts...)
}

func ProvideScanner(cfg *config.Config, ledger *usecase.Ledger, prices drepo.PriceSource, detector dsvc.PatternDetector, archive drepo.CandleArchive, budget *usecase.ErrorBudget, log *logger.Logger) *usecase.Scanner {
	opts := []usecase.ScannerOption{usecase.WithScannerLogger(log.With(logger.Component("SCANNER")))}
	if archive != nil {
		opts = append(opts, usecase.WithScannerArchive(archive))
	}
	return usecase.NewScanner(usecase.ScannerConfig{
		Watchlist:       cfg.Scanner.Watchlist,
		HistoryDays:     cfg.Scanner.HistoryDays,
		SymbolDelay:     cfg.Scanner.SymbolDelay,
		UpstreamTimeout: cfg.Upstream.Timeout,
	}, ledger, prices, detector, budget, opts...)
}

// ProvideAgent probes every stateful dependency that is configured.
func ProvideAgent(cfg *config.Config, ledger *usecase.Ledger, durable cache.Service, ch *pkgch.Client, gemini *research.Gemini, rec *metrics.Recorder, log *logger.Logger) *usecase.Agent {
	checks := []usecase.HealthCheck{{Name: "ledger", Ping: ledger.Ping}}
	if p, ok := durable.(cache.Pinger); ok {
		checks = append(checks, usecase.HealthCheck{Name: "cache", Ping: p.Ping})
	}
	if ch != nil {
		checks = append(checks, usecase.HealthCheck{Name: "clickhouse", Ping: ch.Ping})
	}
	opts := []usecase.AgentOption{
		usecase.WithAgentMetrics(rec),
		usecase.WithAgentLogger(log.With(logger.Component("SYSTEM_AGENT"))),
	}
	if gemini != nil {
		opts = append(opts, usecase.WithAgentResearcher(gemini))
	}
	return usecase.NewAgent(usecase.AgentConfig{
		ScanRoot:  cfg.Agent.ScanRoot,
		Command:   cfg.Agent.Command,
		Whitelist: cfg.Agent.Whitelist,
		Timeout:   cfg.Agent.Timeout,
	}, checks, opts...)
}

// ProvideSupervisor binds the three loops. None is started here.
func ProvideSupervisor(cfg *config.Config, ledger *usecase.Ledger, brain *usecase.Brain, scanner *usecase.Scanner, agent *usecase.Agent, rec *metrics.Recorder, notifier dsvc.Notifier, log *logger.Logger) (*usecase.Supervisor, error) {
	sup := usecase.NewSupervisor(ledger, agent, log.With(logger.Component("SUPERVISOR")))
	alert := usecase.CriticalAlert(notifier, 10*time.Second, log.With(logger.Component("ALERTS")))

	loops := []struct {
		name      string
		component string
		interval  string
		backoff   time.Duration
		fn        cycle.CycleFunc
	}{
		{usecase.LoopBrain, "BRAIN", cfg.Brain.Interval, cfg.Brain.Backoff, brain.Cycle},
		{usecase.LoopScanner, "SCANNER", cfg.Scanner.Interval, cfg.Scanner.Backoff, scanner.Cycle},
		{usecase.LoopAgent, "SYSTEM_AGENT", cfg.Agent.Interval, cfg.Agent.Backoff, agent.Cycle},
	}
	for _, l := range loops {
		sched, err := cycle.ParseSchedule(l.interval)
		if err != nil {
			return nil, fmt.Errorf("%s interval: %w", l.name, err)
		}
		sup.Bind(cycle.NewLoop(l.name, l.fn,
			cycle.WithSchedule(sched),
			cycle.WithBackoff(l.backoff),
			cycle.WithObserver(rec),
			cycle.WithCriticalHook(alert),
			cycle.WithLogger(log.With(logger.Component(l.component))),
		))
	}
	return sup, nil
}

func ProvideObservationPipeline(cfg *config.Config, ledger *usecase.Ledger, rec *metrics.Recorder, log *logger.Logger) *mid.ObservationPipeline {
	return mid.NewObservationPipeline(ledger, rec,
		mid.WithMinInterval(cfg.Observations.MinInterval),
		mid.WithSymbolMap(cfg.Finnhub.SymbolMap),
		mid.WithPipelineLogger(log.With(logger.Component("OBSERVATIONS"))),
	)
}

// ProvideObservationFeed returns nil unless the finnhub source is selected.
func ProvideObservationFeed(cfg *config.Config, pipe *mid.ObservationPipeline, rec *metrics.Recorder, log *logger.Logger) *usecase.ObservationFeed {
	if cfg.Observations.Source != "finnhub" {
		return nil
	}
	l := log.With(logger.Component("FINNHUB"))
	stream := finnhub.New(cfg.Finnhub.APIKey, cfg.Finnhub.WebSocketURL, cfg.Finnhub.Symbols, cfg.Finnhub.PingInterval, l)
	return usecase.NewObservationFeed(stream, pipe, rec, cfg.Finnhub.ReconnectDelay, l)
}

// ProvideKafkaConsumer returns nil unless the kafka source is selected.
func ProvideKafkaConsumer(cfg *config.Config, pipe *mid.ObservationPipeline, rec *metrics.Recorder, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Observations.Source != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log.With(logger.Component("KAFKA"))),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewTicksHandler(cfg.Kafka.TicksTopic, pipe, rec))
	return consumer, nil
}

func ProvideHandlers(cfg *config.Config, sup *usecase.Supervisor, ledger *usecase.Ledger, forecaster *usecase.Forecaster, movers *usecase.MoversService, journal drepo.Journal, log *logger.Logger) []xhttp.Handler {
	l := log.With(logger.Component("HTTP"))
	return []xhttp.Handler{
		api.NewBrainEchoHandler(l, sup, ledger, forecaster, ratelimit.New(6*time.Second, 5)),
		api.NewMarketEchoHandler(l, movers),
		api.NewLogsEchoHandler(l, journal),
		api.NewStreamHandler(l, sup, cfg.Server.StreamInterval, cfg.Server.AllowOrigins),
	}
}

func ProvideHTTPServer(cfg *config.Config, handlers []xhttp.Handler, log *logger.Logger) *xhttp.Server {
	return xhttp.NewServer(handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true, cfg.Server.AllowOrigins...),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithLogger(log.With(logger.Component("HTTP"))),
	)
}

func ProvideApp(cfg *config.Config, sup *usecase.Supervisor, srv *xhttp.Server, feed *usecase.ObservationFeed, consumer *pkgkafka.Consumer, log *logger.Logger) *server.App {
	return server.New(cfg, sup, srv, feed, consumer, log)
}
