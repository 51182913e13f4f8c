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
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Binance struct {
		RestURL           string        `yaml:"rest_url" default:"https://api.binance.com" validate:"required,url"`
		WebSocketURL      string        `yaml:"websocket_url" default:"wss://stream.binance.com:9443/ws" validate:"required,url"`
		Timeout           time.Duration `yaml:"timeout" default:"10s"`
		RequestsPerSecond int           `yaml:"requests_per_second" default:"10" validate:"gte=1"`
		DefaultSymbol     string        `yaml:"default_symbol" default:"BTCUSDT"`
		DefaultInterval   string        `yaml:"default_interval" default:"1h"`
		DefaultLimit      int           `yaml:"default_limit" default:"100" validate:"gte=1,lte=1000"`
	} `yaml:"binance"`
	Stream struct {
		Enabled      bool          `yaml:"enabled"`
		Symbols      []string      `yaml:"symbols"`
		Interval     string        `yaml:"interval" default:"1m"`
		MaxAttempts  int           `yaml:"max_attempts" default:"5" validate:"gte=1"`
		BaseDelay    time.Duration `yaml:"base_delay" default:"1s"`
		PingInterval time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"stream"`
	Analysis struct {
		Enabled        bool          `yaml:"enabled"`
		Schedule       string        `yaml:"schedule" default:"0 */5 * * * *"`
		Symbols        []string      `yaml:"symbols"`
		Interval       string        `yaml:"interval" default:"1h"`
		Limit          int           `yaml:"limit" default:"100" validate:"gte=1"`
		Indicators     []string      `yaml:"indicators"`
		RetryMaxElapse time.Duration `yaml:"retry_max_elapsed" default:"30s"`
	} `yaml:"analysis"`
	Backend struct {
		Type       string `yaml:"type" default:"none" validate:"oneof=none kafka clickhouse"`
		BatchSize  int    `yaml:"batch_size" default:"100"`
		BufferSize int    `yaml:"buffer_size" default:"1000"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"klines.closed"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"klinescope"`
		Table            string        `yaml:"table" default:"klines"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Cache struct {
		Enabled    bool          `yaml:"enabled"`
		TTL        time.Duration `yaml:"ttl" default:"5s"`
		MemorySize int           `yaml:"memory_size" default:"1000"`
		Redis      struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"klinescope"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file. Missing keys take their
// struct tag defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads an optional .env file, the YAML config, then applies
// environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BINANCE_REST_URL"); v != "" {
		c.Binance.RestURL = v
	}
	if v := os.Getenv("BINANCE_WS_URL"); v != "" {
		c.Binance.WebSocketURL = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Stream.Symbols = splitList(v)
		c.Analysis.Symbols = splitList(v)
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks tag rules and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Stream.Enabled && len(c.Stream.Symbols) == 0 {
		return fmt.Errorf("stream.symbols cannot be empty when stream is enabled")
	}
	if c.Analysis.Enabled && len(c.Analysis.Symbols) == 0 {
		return fmt.Errorf("analysis.symbols cannot be empty when analysis is enabled")
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required for kafka backend")
	}
	if c.Backend.Type == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for clickhouse backend")
	}
	if c.Stream.BaseDelay <= 0 {
		return fmt.Errorf("stream.base_delay must be positive")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
