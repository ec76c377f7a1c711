package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`

	Log struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
		MaxBackups int    `yaml:"max_backups" default:"5"`
		MaxAgeDays int    `yaml:"max_age_days" default:"7"`
		Compress   bool   `yaml:"compress"`
		// Collector ships deduplicated error logs to Kafka.
		Collector struct {
			Enabled       bool          `yaml:"enabled"`
			Topic         string        `yaml:"topic" default:"finsignal.logs"`
			FlushInterval time.Duration `yaml:"flush_interval" default:"30s"`
			Threshold     int           `yaml:"threshold" default:"50"`
		} `yaml:"collector"`
	} `yaml:"log"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	// Source selects where ticks come from: the live websocket or the ticks topic.
	Source struct {
		Type string `yaml:"type" default:"finnhub" validate:"oneof=finnhub kafka"`
		// PublishTicks forwards live ticks to the ticks topic.
		PublishTicks bool    `yaml:"publish_ticks"`
		RateLimit    float64 `yaml:"rate_limit" default:"50"`
		Burst        int     `yaml:"burst" default:"100"`
		BufferSize   int     `yaml:"buffer_size" default:"1024"`
	} `yaml:"source"`

	Signal struct {
		Symbol             string        `yaml:"symbol" validate:"required"`
		WarmupCandles      int           `yaml:"warmup_candles" default:"60" validate:"min=1"`
		CycleInterval      time.Duration `yaml:"cycle_interval" default:"5s"`
		CandleCapacity     int           `yaml:"candle_capacity" default:"2000" validate:"min=60"`
		DisplayThreshold   float64       `yaml:"display_threshold" default:"60" validate:"min=0,max=100"`
		AutoTradeThreshold float64       `yaml:"auto_trade_threshold" default:"75" validate:"min=0,max=100"`
		SettleMargin       time.Duration `yaml:"settle_margin" default:"15s"`
		OutcomeRetryDelay  time.Duration `yaml:"outcome_retry_delay" default:"5s"`
		MaxATRRatio        float64       `yaml:"max_atr_ratio" default:"0.02"`
		WarmStart          bool          `yaml:"warm_start" default:"true"`
		SeedOutcomes       int           `yaml:"seed_outcomes" default:"200"`
		DispatchBuffer     int           `yaml:"dispatch_buffer" default:"256"`
	} `yaml:"signal"`

	Agent struct {
		ReplaySize       int     `yaml:"replay_size" default:"2000" validate:"min=1"`
		BatchSize        int     `yaml:"batch_size" default:"32" validate:"min=1"`
		MinExperiences   int     `yaml:"min_experiences" default:"50"`
		EpsilonStart     float64 `yaml:"epsilon_start" default:"0.3" validate:"min=0,max=1"`
		EpsilonFloor     float64 `yaml:"epsilon_floor" default:"0.01" validate:"min=0,max=1"`
		EpsilonDecay     float64 `yaml:"epsilon_decay" default:"0.995"`
		EpsilonFastDecay float64 `yaml:"epsilon_fast_decay" default:"0.99"`
		FastDecayAfter   int     `yaml:"fast_decay_after" default:"100"`
		Gamma            float64 `yaml:"gamma" default:"0.95"`
		LearningRate     float64 `yaml:"learning_rate" default:"0.01"`
		Tau              float64 `yaml:"tau" default:"0.005"`
		SaveEvery        int     `yaml:"save_every" default:"10"`
		StateKey         string  `yaml:"state_key" default:"learning_state"`
	} `yaml:"agent"`

	Timing struct {
		MinDuration  time.Duration `yaml:"min_duration" default:"60s"`
		MaxDuration  time.Duration `yaml:"max_duration" default:"300s"`
		EvalInterval time.Duration `yaml:"eval_interval" default:"20s"`
	} `yaml:"timing"`

	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			Ticks    string `yaml:"ticks" default:"finsignal.ticks"`
			Signals  string `yaml:"signals" default:"finsignal.signals"`
			Outcomes string `yaml:"outcomes" default:"finsignal.outcomes"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"finsignal"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"1000"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"finsignal"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`

	Redis struct {
		Enabled   bool          `yaml:"enabled"`
		Host      string        `yaml:"host" default:"localhost"`
		Port      int           `yaml:"port" default:"6379"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		PoolSize  int           `yaml:"pool_size" default:"10"`
		Prefix    string        `yaml:"prefix" default:"finsignal"`
		SignalTTL time.Duration `yaml:"signal_ttl" default:"10m"`
	} `yaml:"redis"`

	Finnhub struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"finnhub"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file, applying defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes; unset fields take their default tag.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML, overrides with environment variables
// and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := getenv("SYMBOL"); v != "" {
		c.Signal.Symbol = v
	}
	if v := getenv("SOURCE"); v != "" {
		c.Source.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
		c.Redis.Enabled = true
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Source.Type == "finnhub" && c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required for source finnhub")
	}
	if c.Source.Type == "kafka" && !c.Kafka.Enabled {
		return fmt.Errorf("source kafka requires kafka.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Timing.MinDuration > c.Timing.MaxDuration {
		return fmt.Errorf("timing.min_duration must not exceed timing.max_duration")
	}
	if c.Signal.DisplayThreshold > c.Signal.AutoTradeThreshold {
		return fmt.Errorf("signal.display_threshold must not exceed signal.auto_trade_threshold")
	}
	return nil
}
