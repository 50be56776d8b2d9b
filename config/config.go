package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. COURTWATCH_DATABASE_DSN.
const EnvPrefix = "COURTWATCH"

// Config represents the overall application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Provider  ProviderConfig  `yaml:"provider"`
	Freshness FreshnessConfig `yaml:"freshness"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Tasks     TaskConfig      `yaml:"tasks"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port" validate:"gt=0,lt=65536"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" split_words:"true"`
	RateLimitBurst  int     `yaml:"rate_limit_burst" split_words:"true"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds" split_words:"true"`
	UserHeader      string  `yaml:"user_header" split_words:"true"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver" validate:"oneof=postgres sqlite"`
	DSN                    string `yaml:"dsn" validate:"required"`
	MaxOpenConns           int    `yaml:"max_open_conns" split_words:"true"`
	MaxIdleConns           int    `yaml:"max_idle_conns" split_words:"true"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" split_words:"true"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	// File enables a rotated JSON file sink in addition to stdout.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" split_words:"true"`
	MaxBackups int    `yaml:"max_backups" split_words:"true"`
	MaxAgeDays int    `yaml:"max_age_days" split_words:"true"`
}

// ProviderConfig selects the upstream booking platform.
type ProviderConfig struct {
	Default   string          `yaml:"default"`
	Sport     string          `yaml:"sport"`
	Playtomic PlaytomicConfig `yaml:"playtomic"`
}

// PlaytomicConfig holds the Playtomic client settings.
type PlaytomicConfig struct {
	BaseURL        string        `yaml:"base_url" split_words:"true" validate:"url"`
	AppURL         string        `yaml:"app_url" split_words:"true" validate:"url"`
	HTTPProxy      string        `yaml:"http_proxy" split_words:"true"`
	UserAgent      string        `yaml:"user_agent" split_words:"true"`
	TimeoutSeconds int           `yaml:"timeout_seconds" split_words:"true"`
	Timeout        time.Duration `yaml:"-" ignored:"true"`
	RequestsPerSec float64       `yaml:"requests_per_sec" split_words:"true"`
	Burst          int           `yaml:"burst"`
}

// FreshnessConfig controls when a (date, location) pair is fetched live again.
type FreshnessConfig struct {
	MaxAgeMinutes int           `yaml:"max_age_minutes" split_words:"true"`
	MaxAge        time.Duration `yaml:"-" ignored:"true"`
}

// SchedulerConfig holds the re-check loop configuration.
type SchedulerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalMinutes int           `yaml:"interval_minutes" split_words:"true"`
	Interval        time.Duration `yaml:"-" ignored:"true"`
	Timezone        string        `yaml:"timezone"`
}

// TaskConfig sizes the background search worker pool.
type TaskConfig struct {
	Workers              int           `yaml:"workers"`
	QueueSize            int           `yaml:"queue_size" split_words:"true"`
	RetentionHours       int           `yaml:"retention_hours" split_words:"true"`
	Retention            time.Duration `yaml:"-" ignored:"true"`
	SweepIntervalMinutes int           `yaml:"sweep_interval_minutes" split_words:"true"`
	SweepInterval        time.Duration `yaml:"-" ignored:"true"`
}

// NotifyConfig selects and configures the alert channel.
type NotifyConfig struct {
	Mode     string     `yaml:"mode" validate:"oneof=webpush amqp log"`
	MaxSlots int        `yaml:"max_slots" split_words:"true"`
	Workers  int        `yaml:"workers"`
	Push     PushConfig `yaml:"push"`
	AMQP     AMQPConfig `yaml:"amqp"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key" envconfig:"VAPID_PUBLIC_KEY"`
	PrivateKey string `yaml:"vapid_private_key" envconfig:"VAPID_PRIVATE_KEY"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// AMQPConfig holds the broker settings for published alerts.
type AMQPConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key" split_words:"true"`
}

// Load reads the configuration from the given path, then applies a .env file
// and COURTWATCH_* environment overrides on top of it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	switch c.Notify.Mode {
	case "webpush":
		if c.Notify.Push.PublicKey == "" || c.Notify.Push.PrivateKey == "" {
			return errors.New("notify.push requires vapid_public_key and vapid_private_key")
		}
	case "amqp":
		if c.Notify.AMQP.URL == "" || c.Notify.AMQP.Exchange == "" {
			return errors.New("notify.amqp requires url and exchange")
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}
	if cfg.Server.UserHeader == "" {
		cfg.Server.UserHeader = "X-User-ID"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Provider.Default == "" {
		cfg.Provider.Default = "playtomic"
	}
	if cfg.Provider.Sport == "" {
		cfg.Provider.Sport = "PADEL"
	}
	pt := &cfg.Provider.Playtomic
	if pt.BaseURL == "" {
		pt.BaseURL = "https://playtomic.com"
	}
	if pt.AppURL == "" {
		pt.AppURL = "https://app.playtomic.com"
	}
	if pt.TimeoutSeconds <= 0 {
		pt.TimeoutSeconds = 30
	}
	pt.Timeout = time.Duration(pt.TimeoutSeconds) * time.Second
	if pt.RequestsPerSec <= 0 {
		pt.RequestsPerSec = 2
	}
	if pt.Burst <= 0 {
		pt.Burst = 1
	}

	if cfg.Freshness.MaxAgeMinutes <= 0 {
		cfg.Freshness.MaxAgeMinutes = 15
	}
	cfg.Freshness.MaxAge = time.Duration(cfg.Freshness.MaxAgeMinutes) * time.Minute

	if cfg.Scheduler.IntervalMinutes <= 0 {
		cfg.Scheduler.IntervalMinutes = 15
	}
	cfg.Scheduler.Interval = time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "Europe/Amsterdam"
	}

	if cfg.Tasks.Workers <= 0 {
		log.Printf("tasks.workers is not set or invalid; defaulting to 2")
		cfg.Tasks.Workers = 2
	}
	if cfg.Tasks.QueueSize <= 0 {
		cfg.Tasks.QueueSize = 64
	}
	if cfg.Tasks.RetentionHours <= 0 {
		cfg.Tasks.RetentionHours = 24
	}
	cfg.Tasks.Retention = time.Duration(cfg.Tasks.RetentionHours) * time.Hour
	if cfg.Tasks.SweepIntervalMinutes <= 0 {
		cfg.Tasks.SweepIntervalMinutes = 60
	}
	cfg.Tasks.SweepInterval = time.Duration(cfg.Tasks.SweepIntervalMinutes) * time.Minute

	if cfg.Notify.Mode == "" {
		cfg.Notify.Mode = "log"
	}
	if cfg.Notify.MaxSlots <= 0 {
		cfg.Notify.MaxSlots = 5
	}
	if cfg.Notify.Workers <= 0 {
		cfg.Notify.Workers = 1
	}
	if cfg.Notify.Push.TTL <= 0 {
		cfg.Notify.Push.TTL = 3600
	}
	if cfg.Notify.AMQP.RoutingKey == "" {
		cfg.Notify.AMQP.RoutingKey = "courtwatch.alert"
	}
}
