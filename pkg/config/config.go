package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"StockSim/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"auto"` // json, console or auto (console on a terminal)
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled       bool          `yaml:"enabled" default:"true"`
		Path          string        `yaml:"path" default:"/metrics"`
		SlowThreshold time.Duration `yaml:"slow_threshold" default:"2s"`
	} `yaml:"metrics"`
	Simulation struct {
		MaxDays      int           `yaml:"max_days" default:"1000"`
		MaxRuns      int           `yaml:"max_runs" default:"100"`
		MaxGridCells int           `yaml:"max_grid_cells" default:"100100"`
		Workers      int           `yaml:"workers"`
		Timeout      time.Duration `yaml:"timeout" default:"30s"`
		DefaultScope string        `yaml:"default_scope" default:"all"`
		RateLimit    struct {
			Enabled  bool    `yaml:"enabled" default:"true"`
			Capacity float64 `yaml:"capacity" default:"10"`
			PerSec   float64 `yaml:"per_sec" default:"2"`
		} `yaml:"rate_limit"`
		Schedules    []Schedule    `yaml:"schedules"`
		ScheduleLock time.Duration `yaml:"schedule_lock" default:"10m"`
	} `yaml:"simulation"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"stocksim.simulations.completed"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			Topic      string        `yaml:"topic" default:"stocksim.simulations.requested"`
			GroupID    string        `yaml:"group_id" default:"stocksim"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"stocksim.simulations.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled" default:"true"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"default"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		InsertChunk      int           `yaml:"insert_chunk" default:"2000"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"stocksim"`
		Pool     struct {
			Size    int           `yaml:"size" default:"10"`
			MinIdle int           `yaml:"min_idle" default:"2"`
			Timeout time.Duration `yaml:"timeout" default:"4s"`
		} `yaml:"pool"`
	} `yaml:"redis"`
	Cache struct {
		CatalogTTL    time.Duration `yaml:"catalog_ttl" default:"10m"`
		SeriesTTL     time.Duration `yaml:"series_ttl" default:"5m"`
		MemoryMaxSize int           `yaml:"memory_max_size" default:"500"`
	} `yaml:"cache"`
	Yahoo struct {
		Enabled   bool          `yaml:"enabled" default:"true"`
		BaseURL   string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
		Range     string        `yaml:"range" default:"1y"`
		Timeout   time.Duration `yaml:"timeout" default:"15s"`
		UserAgent string        `yaml:"user_agent" default:"Mozilla/5.0"`
		RPS       float64       `yaml:"rps" default:"2"`
	} `yaml:"yahoo"`
	History struct {
		Enabled   bool          `yaml:"enabled" default:"true"`
		Path      string        `yaml:"path" default:"stocksim.db"`
		Limit     int           `yaml:"limit" default:"50"`
		Retention time.Duration `yaml:"retention" default:"720h"`
		PruneCron string        `yaml:"prune_cron" default:"0 30 3 * * *"`
	} `yaml:"history"`
	Results struct {
		Table string `yaml:"table" default:"STOCK_PRICE_SIMULATIONS"`
	} `yaml:"results"`
	Jobs struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"2"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
		KeyPrefix  string        `yaml:"key_prefix" default:"stocksim:jobs"`
	} `yaml:"jobs"`
}

// Schedule runs a simulation periodically (cron spec with seconds field).
type Schedule struct {
	Name    string         `yaml:"name"`
	Cron    string         `yaml:"cron"`
	Request map[string]any `yaml:"request"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse applies defaults, parses YAML bytes over them and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	// defaults first so explicit zero values in the file (e.g. enabled: false) win
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

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A missing file is not an error: defaults plus environment are used.
func LoadWithEnv(path string) (*Config, error) {
	var c *Config
	if _, err := os.Stat(path); err == nil {
		if c, err = Load(path); err != nil {
			return nil, err
		}
	} else {
		c = Default()
	}

	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			c.Redis.Port = util.ParseIntDefault(port, c.Redis.Port)
		}
		c.Redis.Enabled = true
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitNonEmpty(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Simulation.MaxDays < 1 || c.Simulation.MaxRuns < 1 {
		return fmt.Errorf("simulation.max_days and simulation.max_runs must be >= 1")
	}
	if c.Simulation.MaxGridCells < c.Simulation.MaxRuns {
		return fmt.Errorf("simulation.max_grid_cells must be >= simulation.max_runs")
	}
	if c.Simulation.DefaultScope != "all" && c.Simulation.DefaultScope != "terminal" {
		return fmt.Errorf("simulation.default_scope must be 'all' or 'terminal', got '%s'", c.Simulation.DefaultScope)
	}
	for i, s := range c.Simulation.Schedules {
		if s.Cron == "" {
			return fmt.Errorf("simulation.schedules[%d].cron is required", i)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Kafka.Consumer.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("kafka.consumer requires kafka.enabled")
	}
	if c.Jobs.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("jobs requires redis.enabled")
	}
	if c.Jobs.Enabled && c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.workers must be >= 1")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	switch c.Log.Format {
	case "json", "console", "auto":
	default:
		return fmt.Errorf("log.format must be 'json', 'console' or 'auto', got '%s'", c.Log.Format)
	}
	return nil
}
