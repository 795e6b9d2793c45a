package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment  string             `yaml:"environment" default:"production" validate:"required,oneof=production demo development test"`
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	Brain        BrainConfig        `yaml:"brain"`
	Scanner      ScannerConfig      `yaml:"scanner"`
	Agent        AgentConfig        `yaml:"agent"`
	Ledger       LedgerConfig       `yaml:"ledger"`
	Cache        CacheConfig        `yaml:"cache"`
	Movers       MoversConfig       `yaml:"movers"`
	Observations ObservationsConfig `yaml:"observations"`
	Upstream     UpstreamConfig     `yaml:"upstream"`
	Redis        RedisConfig        `yaml:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	ClickHouse   ClickHouseConfig   `yaml:"clickhouse"`
	Finnhub      FinnhubConfig      `yaml:"finnhub"`
	Analysis     AnalysisConfig     `yaml:"analysis"`
	Gemini       GeminiConfig       `yaml:"gemini"`
	Telegram     TelegramConfig     `yaml:"telegram"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	StreamInterval  time.Duration `yaml:"stream_interval" default:"5s" validate:"min=1s"`
	AllowOrigins    []string      `yaml:"allow_origins" default:"[\"*\"]"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
	// Error lines are aggregated and shipped to kafka.logs_topic when kafka is enabled.
	CollectInterval time.Duration `yaml:"collect_interval" default:"30s"`
	CollectMax      int           `yaml:"collect_max" default:"100"`
}

type BrainConfig struct {
	Enabled            bool          `yaml:"enabled" default:"true"`
	Interval           string        `yaml:"interval" default:"300s" validate:"required"`
	Backoff            time.Duration `yaml:"backoff" default:"60s"`
	Watchlist          []string      `yaml:"watchlist" default:"[\"RELIANCE.NS\",\"BTC-USD\",\"AAPL\",\"ETH-USD\"]" validate:"min=1,dive,required"`
	StaleAfter         time.Duration `yaml:"stale_after" default:"72h"`
	BackfillDays       int           `yaml:"backfill_days" default:"5" validate:"min=1"`
	HealErrorThreshold int           `yaml:"heal_error_threshold" default:"3" validate:"min=0"`
}

type ScannerConfig struct {
	Enabled     bool          `yaml:"enabled" default:"true"`
	Interval    string        `yaml:"interval" default:"60s" validate:"required"`
	Backoff     time.Duration `yaml:"backoff" default:"60s"`
	SymbolDelay time.Duration `yaml:"symbol_delay" default:"2s"`
	HistoryDays int           `yaml:"history_days" default:"30" validate:"min=1"`
	Watchlist   []string      `yaml:"watchlist" default:"[\"BTC-USD\",\"ETH-USD\",\"SOL-USD\",\"RELIANCE.NS\",\"TCS.NS\",\"HDFCBANK.NS\",\"AAPL\",\"MSFT\",\"NVDA\",\"TSLA\",\"^NSEI\",\"^GSPC\"]" validate:"min=1,dive,required"`
}

type AgentConfig struct {
	Enabled   bool          `yaml:"enabled" default:"true"`
	Interval  string        `yaml:"interval" default:"300s" validate:"required"`
	Backoff   time.Duration `yaml:"backoff" default:"60s"`
	ScanRoot  string        `yaml:"scan_root" default:"."`
	Command   string        `yaml:"command" default:"go version"`
	Whitelist []string      `yaml:"whitelist" default:"[\"go version\",\"uptime\",\"df -h\"]"`
	Timeout   time.Duration `yaml:"timeout" default:"30s"`
}

type LedgerConfig struct {
	Driver          string        `yaml:"driver" default:"sqlite" validate:"oneof=sqlite postgres"`
	DSN             string        `yaml:"dsn" default:"marketbrain.db" validate:"required"`
	ValidationDelay time.Duration `yaml:"validation_delay" default:"24h"`
	ConfidenceMin   float64       `yaml:"confidence_min" default:"0.65" validate:"gte=0,lte=1"`
	Journal         JournalConfig `yaml:"journal"`
}

type JournalConfig struct {
	Enabled    bool `yaml:"enabled" default:"true"`
	BufferSize int  `yaml:"buffer_size" default:"256" validate:"min=1"`
}

type CacheConfig struct {
	MemoryTTL  time.Duration `yaml:"memory_ttl" default:"5m"`
	DurableTTL time.Duration `yaml:"durable_ttl" default:"30m"`
	Durable    string        `yaml:"durable" default:"sql" validate:"oneof=redis sql none"`
	Prefix     string        `yaml:"prefix" default:"marketbrain"`
	MaxEntries int           `yaml:"max_entries" default:"1000" validate:"min=1"`
}

type MoversConfig struct {
	Symbols []string `yaml:"symbols" default:"[\"BTC-USD\",\"ETH-USD\",\"SOL-USD\",\"RELIANCE.NS\",\"TCS.NS\",\"HDFCBANK.NS\",\"AAPL\",\"MSFT\",\"NVDA\",\"TSLA\"]" validate:"min=1"`
	Days    int      `yaml:"days" default:"5" validate:"min=1"`
}

type ObservationsConfig struct {
	MinInterval time.Duration `yaml:"min_interval" default:"30s"`
	Source      string        `yaml:"source" default:"none" validate:"oneof=none kafka finnhub"`
}

type UpstreamConfig struct {
	Timeout       time.Duration `yaml:"timeout" default:"15s"`
	YahooInterval time.Duration `yaml:"yahoo_interval" default:"250ms"`
	NewsCacheTTL  time.Duration `yaml:"news_cache_ttl" default:"10m"`
	NewsLimit     int           `yaml:"news_limit" default:"10" validate:"min=1"`
	TechnicalsURL string        `yaml:"technicals_url" default:"https://scanner.tradingview.com"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size" default:"10" validate:"min=1"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
	EventsTopic  string   `yaml:"events_topic" default:"marketbrain.ledger"`
	LogsTopic    string   `yaml:"logs_topic" default:"marketbrain.errors"`
	TicksTopic   string   `yaml:"ticks_topic" default:"market.ticks"`
	RequiredAcks int      `yaml:"required_acks" default:"1"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"10ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"marketbrain-observations"`
		Workers    int           `yaml:"workers" default:"2" validate:"min=1"`
		BufferSize int           `yaml:"buffer_size" default:"256"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Host        string        `yaml:"host" default:"localhost"`
	Port        int           `yaml:"port" default:"9000"`
	Database    string        `yaml:"database" default:"marketbrain"`
	User        string        `yaml:"user" default:"default"`
	Password    string        `yaml:"password"`
	UseHTTP     bool          `yaml:"use_http"`
	AsyncInsert bool          `yaml:"async_insert"`
	DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
}

type FinnhubConfig struct {
	APIKey       string   `yaml:"api_key"`
	WebSocketURL string   `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
	Symbols      []string `yaml:"symbols" default:"[\"BINANCE:BTCUSDT\",\"BINANCE:ETHUSDT\",\"AAPL\"]"`
	// Maps feed symbols onto ledger symbols; unmapped symbols pass through.
	SymbolMap      map[string]string `yaml:"symbol_map" default:"{\"BINANCE:BTCUSDT\":\"BTC-USD\",\"BINANCE:ETHUSDT\":\"ETH-USD\"}"`
	ReconnectDelay time.Duration     `yaml:"reconnect_delay" default:"5s"`
	PingInterval   time.Duration     `yaml:"ping_interval" default:"30s"`
}

type AnalysisConfig struct {
	// Base URL of the remote signal/pattern service; empty disables it.
	ServiceURL string        `yaml:"service_url"`
	Timeout    time.Duration `yaml:"timeout" default:"20s"`
	Retries    int           `yaml:"retries" default:"3" validate:"min=1"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model" default:"gemini-2.5-flash"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// Load reads and parses a YAML configuration file.
// Missing keys take the values from the default tags.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes raw YAML into a validated Config.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// Default returns a Config built only from default tags.
func Default() *Config {
	c, err := Parse(nil)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadWithEnv loads .env (when present), then the YAML file, then applies
// environment overrides. An empty path skips the file.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	var b []byte
	if path != "" {
		var err error
		if b, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("MARKETBRAIN_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LEDGER_DSN"); v != "" {
		c.Ledger.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("VALIDATION_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VALIDATION_DELAY: %w", err)
		}
		c.Ledger.ValidationDelay = d
	}
	return nil
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Cache.Durable == "redis" && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when cache.durable is redis")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Observations.Source == "kafka" && !c.Kafka.Enabled {
		return errors.New("observations.source kafka requires kafka.enabled")
	}
	if c.Observations.Source == "finnhub" && c.Finnhub.APIKey == "" {
		return errors.New("finnhub.api_key is required for the finnhub observation source")
	}
	if c.Ledger.ValidationDelay < 0 {
		return errors.New("ledger.validation_delay must not be negative")
	}
	return nil
}

// AgentCommandAllowed reports whether the configured maintenance command is whitelisted.
func (c *Config) AgentCommandAllowed() bool {
	for _, w := range c.Agent.Whitelist {
		if w == c.Agent.Command {
			return true
		}
	}
	return false
}
