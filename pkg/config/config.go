package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"MTFCast/pkg/util"
)

var validate = validator.New()

type Config struct {
	Environment string `yaml:"environment" default:"dev"`
	Server      struct {
		Enabled         bool          `yaml:"enabled" default:"true"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Store struct {
		Backend       string        `yaml:"backend" default:"csv" validate:"oneof=clickhouse csv"`
		CSVPath       string        `yaml:"csv_path"`
		RetryAttempts int           `yaml:"retry_attempts" default:"3" validate:"gte=1"`
		RetryBackoff  time.Duration `yaml:"retry_backoff" default:"200ms"`
	} `yaml:"store"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"mtfcast"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table" default:"mtfcast.bars_1m"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Cache struct {
		Enabled bool          `yaml:"enabled"`
		Backend string        `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
		TTL     time.Duration `yaml:"ttl" default:"1h"`
		Redis   struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"mtfcast"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"mtfcast.results"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		Linger       time.Duration `yaml:"linger" default:"1s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"kafka"`
	Model struct {
		Backend       string        `yaml:"backend" default:"baseline" validate:"oneof=baseline http"`
		ServiceURL    string        `yaml:"service_url"`
		Timeout       time.Duration `yaml:"timeout" default:"30s"`
		RetryAttempts int           `yaml:"retry_attempts" default:"2" validate:"gte=1"`
	} `yaml:"model"`
	Pushgateway struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url" default:"http://localhost:9091"`
		Job     string `yaml:"job" default:"mtfcast_backtest"`
	} `yaml:"pushgateway"`
	Output struct {
		Dir    string `yaml:"dir" default:"out"`
		Format string `yaml:"format" default:"csv" validate:"oneof=csv json parquet"`
	} `yaml:"output"`
	Backtest struct {
		Symbol           string        `yaml:"symbol" validate:"required"`
		Timeframes       []string      `yaml:"timeframes" validate:"min=1"`
		From             time.Time     `yaml:"from"`
		To               time.Time     `yaml:"to"`
		FoldPolicy       string        `yaml:"fold_policy" default:"rolling" validate:"oneof=rolling expanding"`
		TrainWindow      time.Duration `yaml:"train_window" default:"168h"`
		EvalWindow       time.Duration `yaml:"eval_window" default:"24h"`
		Step             time.Duration `yaml:"step" default:"24h"`
		AllowPartialBars bool          `yaml:"allow_partial_bars"`
		MaxParallelFolds int           `yaml:"max_parallel_folds" default:"4" validate:"gte=1"`
		Incremental      bool          `yaml:"incremental"`
		FoldTimeout      time.Duration `yaml:"fold_timeout" default:"5m"`
	} `yaml:"backtest"`
}

// Load reads a YAML configuration file, applies struct defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SYMBOL"); v != "" {
		c.Backtest.Symbol = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MODEL_SERVICE_URL"); v != "" {
		c.Model.ServiceURL = v
	}
	if v := os.Getenv("BACKTEST_FROM"); v != "" {
		c.Backtest.From = util.ParseTimeDefault(v, c.Backtest.From)
	}
	if v := os.Getenv("BACKTEST_TO"); v != "" {
		c.Backtest.To = util.ParseTimeDefault(v, c.Backtest.To)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks tag rules plus the cross-field constraints the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Model.Backend == "http" && c.Model.ServiceURL == "" {
		return fmt.Errorf("model.service_url is required for the http backend")
	}
	if c.Store.Backend == "csv" && c.Store.CSVPath == "" {
		return fmt.Errorf("store.csv_path is required for the csv backend")
	}
	if !c.Backtest.From.Before(c.Backtest.To) {
		return fmt.Errorf("backtest.from must precede backtest.to")
	}
	return nil
}
