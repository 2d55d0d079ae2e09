package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development"`
	Server      ServerConfig     `yaml:"server"`
	Log         LogConfig        `yaml:"log"`
	Upstream    UpstreamConfig   `yaml:"upstream"`
	Cache       CacheConfig      `yaml:"cache"`
	Redis       RedisConfig      `yaml:"redis"`
	Backend     BackendConfig    `yaml:"backend"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Poller      PollerConfig     `yaml:"poller"`
	Stream      StreamConfig     `yaml:"stream"`
	RateLimit   RateLimitConfig  `yaml:"ratelimit"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"3001"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"6m"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
	LatencySamples  int           `yaml:"latency_samples" default:"100"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
	Output string `yaml:"output" default:"stdout"`
	// Topic receives aggregated error logs when the Kafka backend is on. Empty disables.
	Topic         string        `yaml:"topic"`
	FlushInterval time.Duration `yaml:"flush_interval" default:"30s"`
}

type UpstreamConfig struct {
	BaseURL        string        `yaml:"base_url" default:"http://localhost:8080"`
	Timeout        time.Duration `yaml:"timeout" default:"300s"`
	RetryAttempts  int           `yaml:"retry_attempts" default:"2"`
	RetryBackoff   time.Duration `yaml:"retry_backoff" default:"200ms"`
	BreakerFails   uint32        `yaml:"breaker_failures" default:"5"`
	BreakerTimeout time.Duration `yaml:"breaker_timeout" default:"30s"`
}

type CacheConfig struct {
	// Mode is memory, redis or layered.
	Mode          string        `yaml:"mode" default:"memory"`
	MarketTTL     time.Duration `yaml:"market_ttl" default:"30s"`
	PnlTTL        time.Duration `yaml:"pnl_ttl" default:"30s"`
	MemoryMaxSize int           `yaml:"memory_max_size" default:"1000"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"mmon"`
	PoolSize int    `yaml:"pool_size" default:"10"`
}

type BackendConfig struct {
	// Type is kafka, clickhouse or none.
	Type string `yaml:"type" default:"none"`
	// BatchSize caps how many buffered snapshots one retry writes.
	BatchSize  int           `yaml:"batch_size" default:"50"`
	BufferSize int           `yaml:"buffer_size" default:"500"`
	Throttle   time.Duration `yaml:"throttle" default:"5s"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
	Topic        string   `yaml:"topic" default:"analytics.snapshots"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"snappy"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		// Enabled runs the snapshot sink that writes published snapshots to ClickHouse.
		Enabled    bool          `yaml:"enabled"`
		GroupID    string        `yaml:"group_id" default:"marketmonitor-sink"`
		Workers    int           `yaml:"workers" default:"4"`
		BufferSize int           `yaml:"buffer_size" default:"256"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic" default:"analytics.snapshots.dlq"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"marketmonitor"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type PollerConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval" default:"60s"`
	Watchlist []string      `yaml:"watchlist"`
	// Queue selects redis (Redis-backed job queue) or local.
	Queue        string `yaml:"queue" default:"local"`
	QueueName    string `yaml:"queue_name" default:"refresh"`
	QueueWorkers int    `yaml:"queue_workers" default:"2"`
	MaxRetries   int    `yaml:"max_retries" default:"3"`
}

type StreamConfig struct {
	Disabled     bool          `yaml:"disabled"`
	PingInterval time.Duration `yaml:"ping_interval" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	SendBuffer   int           `yaml:"send_buffer" default:"16"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" default:"20"`
	Burst int     `yaml:"burst" default:"40"`
}

// Load reads a YAML file and fills unset fields with defaults. An empty path
// yields a default-only config.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads the file, applies environment overrides and validates.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("MCP_API_BASE"); ok {
		c.Upstream.BaseURL = v
	}
	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := get("BACKEND"); ok {
		c.Backend.Type = v
	}
	if v, ok := get("KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}
	if v, ok := get("KAFKA_TOPIC"); ok {
		c.Kafka.Topic = v
	}
	if v, ok := get("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := get("CLICKHOUSE_HOST"); ok {
		c.ClickHouse.Host = v
	}
	if v, ok := get("WATCHLIST"); ok {
		c.Poller.Watchlist = splitList(v)
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	switch c.Backend.Type {
	case "kafka", "clickhouse", "none":
	default:
		return fmt.Errorf("backend.type must be 'kafka', 'clickhouse' or 'none', got '%s'", c.Backend.Type)
	}
	if c.Backend.Type == "kafka" && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required for the kafka backend")
	}
	switch c.Cache.Mode {
	case "memory", "redis", "layered":
	default:
		return fmt.Errorf("cache.mode must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Mode)
	}
	if c.Poller.Enabled {
		if len(c.Poller.Watchlist) == 0 {
			return fmt.Errorf("poller.watchlist cannot be empty when the poller is enabled")
		}
		for _, w := range c.Poller.Watchlist {
			if parts := strings.Split(w, ":"); len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
				return fmt.Errorf("poller.watchlist entry %q must be exchange:symbol[:interval]", w)
			}
		}
		if c.Poller.Queue != "local" && c.Poller.Queue != "redis" {
			return fmt.Errorf("poller.queue must be 'local' or 'redis', got '%s'", c.Poller.Queue)
		}
	}
	return nil
}

// RedisRequired reports whether any component needs a Redis connection.
func (c *Config) RedisRequired() bool {
	return c.Cache.Mode != "memory" || (c.Poller.Enabled && c.Poller.Queue == "redis")
}
