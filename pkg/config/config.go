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

	"SensorPull/internal/domain/models"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"1s"`
		// ControlRate limits chart start/stop calls per client address.
		ControlRate struct {
			Burst  float64 `yaml:"burst" default:"5" validate:"gte=1"`
			PerSec float64 `yaml:"per_sec" default:"1" validate:"gt=0"`
		} `yaml:"control_rate"`
		StreamPing   time.Duration `yaml:"stream_ping" default:"30s"`
		AllowOrigins []string      `yaml:"allow_origins" default:"[\"*\"]"`
	} `yaml:"server"`
	Logging struct {
		Level     string `yaml:"level" default:"info" validate:"oneof=debug info warn error fatal panic"`
		Format    string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"sensorpull.logs"`
			FlushInterval  time.Duration `yaml:"flush_interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100" validate:"gt=0"`
			IncludeWarn    bool          `yaml:"include_warn" default:"true"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Fetch struct {
		BaseURL string        `yaml:"base_url" validate:"required,url"`
		Timeout time.Duration `yaml:"timeout" default:"5s"`
	} `yaml:"fetch"`
	Forecast struct {
		Interval   time.Duration `yaml:"interval" default:"5s"`
		Window     int           `yaml:"window" default:"100" validate:"gt=0"`
		MinSamples int           `yaml:"min_samples" default:"5" validate:"gt=0"`
		Order      int           `yaml:"order" default:"10" validate:"gt=0"`
		Horizon    int           `yaml:"horizon" default:"15" validate:"gt=0"`
		StateTTL   time.Duration `yaml:"state_ttl"` // 0 keeps the cached state until overwritten
	} `yaml:"forecast"`
	Sinks struct {
		BufferSize int           `yaml:"buffer_size" default:"256" validate:"gt=0"`
		RetryMax   int           `yaml:"retry_max" default:"3" validate:"gte=0"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
	} `yaml:"sinks"`
	AutoStart bool           `yaml:"auto_start" default:"true"`
	Charts    []models.Chart `yaml:"charts" validate:"dive"`
	Kafka     struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"sensorpull.samples"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"sensorpull"`
		Table            string        `yaml:"table" default:"samples"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		Retention        time.Duration `yaml:"retention" default:"720h"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled    bool          `yaml:"enabled"`
		Addr       string        `yaml:"addr" default:"localhost:6379"`
		Password   string        `yaml:"password"`
		DB         int           `yaml:"db"`
		Prefix     string        `yaml:"prefix" default:"sensorpull"`
		MemorySize int           `yaml:"memory_size" default:"1000" validate:"gt=0"`
		L1TTL      time.Duration `yaml:"l1_ttl" default:"10s"`
	} `yaml:"redis"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.finalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.finalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// decode applies struct defaults before unmarshalling so that explicit zero
// values in the file (auto_start: false, required_acks: 0) survive.
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

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("SENSORPULL_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("DATASOURCE_BASE_URL"); v != "" {
		c.Fetch.BaseURL = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
}

// finalize fills defaults of chart entries, which only exist after decoding, and validates.
func (c *Config) finalize() error {
	for i := range c.Charts {
		for j := range c.Charts[i].DataSources {
			if err := defaults.Set(&c.Charts[i].DataSources[j]); err != nil {
				return fmt.Errorf("apply defaults: %w", err)
			}
		}
		if err := defaults.Set(&c.Charts[i]); err != nil {
			return fmt.Errorf("apply defaults: %w", err)
		}
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// Validate checks cross-field rules not expressible with struct tags.
func (c *Config) Validate() error {
	if c.Forecast.MinSamples >= c.Forecast.Window {
		return fmt.Errorf("forecast.min_samples must be smaller than forecast.window")
	}
	if c.Forecast.Interval <= 0 {
		return fmt.Errorf("forecast.interval must be positive")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Logging.Collector.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("logging.collector requires kafka to be enabled")
	}

	chartIDs := make(map[int64]struct{}, len(c.Charts))
	sourceIDs := make(map[int64]int64)
	for _, ch := range c.Charts {
		if _, dup := chartIDs[ch.ID]; dup {
			return fmt.Errorf("duplicate chart id %d", ch.ID)
		}
		chartIDs[ch.ID] = struct{}{}
		for _, ds := range ch.DataSources {
			if ds.SampleFrequency < models.MinSampleFrequency {
				return fmt.Errorf("data source %d: sample_frequency %g is below %g Hz (one poll per %s)",
					ds.ID, ds.SampleFrequency, models.MinSampleFrequency, models.MaxPollPeriod)
			}
			if owner, dup := sourceIDs[ds.ID]; dup {
				return fmt.Errorf("data source %d is used by charts %d and %d", ds.ID, owner, ch.ID)
			}
			sourceIDs[ds.ID] = ch.ID
		}
	}
	return nil
}

// Chart returns the configured chart with the given id.
func (c *Config) Chart(id int64) (models.Chart, bool) {
	for _, ch := range c.Charts {
		if ch.ID == id {
			return ch, true
		}
	}
	return models.Chart{}, false
}
