// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Admission AdmissionConfig `mapstructure:"admission"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	LLM       LLMConfig       `mapstructure:"llm"`
	DB        DBConfig        `mapstructure:"db"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Events    EventsConfig    `mapstructure:"events"`
	Roast     RoastConfig     `mapstructure:"roast"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AdmissionConfig sets the rate-limit ceilings.
type AdmissionConfig struct {
	PerMinute   int `mapstructure:"per_minute"`
	PerHour     int `mapstructure:"per_hour"`
	DailyBudget int `mapstructure:"daily_budget"`
}

// FetcherConfig configures the probe HTTP fetch.
type FetcherConfig struct {
	UserAgent          string `mapstructure:"user_agent"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
	BodyLengthMinimum  int    `mapstructure:"body_length_minimum"`
	FallbackOnFetchErr bool   `mapstructure:"fallback_on_fetch_error"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// LLMConfig selects and tunes the generation backend.
type LLMConfig struct {
	Provider         string  `mapstructure:"provider"`
	BaseURL          string  `mapstructure:"base_url"`
	APIKey           string  `mapstructure:"api_key"`
	Model            string  `mapstructure:"model"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxOutputRunes   int     `mapstructure:"max_output_runes"`
	RPS              float64 `mapstructure:"rps"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifeMins int    `mapstructure:"max_conn_life_minutes"`
}

// SnapshotConfig selects where rendered pages are archived.
type SnapshotConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	BaseDir   string `mapstructure:"base_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// EventsConfig selects the roast-created event sink.
type EventsConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// RoastConfig tunes the pipeline itself.
type RoastConfig struct {
	LeaderboardLimit int `mapstructure:"leaderboard_limit"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ROASTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("admission.per_minute", 5)
	v.SetDefault("admission.per_hour", 20)
	v.SetDefault("admission.daily_budget", 100)
	v.SetDefault("fetcher.user_agent", "roasting-bot/0.1")
	v.SetDefault("fetcher.timeout_seconds", 15)
	v.SetDefault("fetcher.body_length_minimum", 2048)
	v.SetDefault("fetcher.fallback_on_fetch_error", true)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 15)
	v.SetDefault("llm.provider", "openrouter")
	v.SetDefault("llm.base_url", "")
	// Empty defaults register the keys so environment-only values
	// survive Unmarshal.
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "deepseek/deepseek-chat")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.backoff_initial_ms", 250)
	v.SetDefault("llm.backoff_max_ms", 2000)
	v.SetDefault("llm.timeout_seconds", 30)
	v.SetDefault("llm.max_output_runes", 2000)
	v.SetDefault("db.driver", "memory")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_life_minutes", 60)
	v.SetDefault("snapshot.provider", "none")
	v.SetDefault("snapshot.gcs_bucket", "")
	v.SetDefault("snapshot.base_dir", "")
	v.SetDefault("snapshot.prefix", "snapshots")
	v.SetDefault("events.provider", "none")
	v.SetDefault("events.project_id", "")
	v.SetDefault("events.topic_name", "roast-created")
	v.SetDefault("roast.leaderboard_limit", 20)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Admission.PerMinute <= 0 || c.Admission.PerHour <= 0 || c.Admission.DailyBudget <= 0 {
		return fmt.Errorf("admission ceilings must be > 0")
	}
	if c.Admission.PerMinute > c.Admission.PerHour {
		return fmt.Errorf("admission.per_minute must not exceed admission.per_hour")
	}
	if c.Fetcher.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetcher.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.LLM.Provider {
	case "openrouter":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key must be set for the openrouter provider")
		}
	case "local":
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("llm.base_url must be set for the local provider")
		}
	case "canned":
	default:
		return fmt.Errorf("llm.provider must be one of openrouter, local, canned")
	}
	switch c.DB.Driver {
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("db.driver must be one of postgres, memory")
	}
	switch c.Snapshot.Provider {
	case "gcs":
		if c.Snapshot.GCSBucket == "" {
			return fmt.Errorf("snapshot.gcs_bucket must be set for the gcs provider")
		}
	case "local":
		if c.Snapshot.BaseDir == "" {
			return fmt.Errorf("snapshot.base_dir must be set for the local provider")
		}
	case "memory", "none":
	default:
		return fmt.Errorf("snapshot.provider must be one of gcs, local, memory, none")
	}
	switch c.Events.Provider {
	case "pubsub":
		if c.Events.ProjectID == "" || c.Events.TopicName == "" {
			return fmt.Errorf("events.project_id and events.topic_name must be set for the pubsub provider")
		}
	case "memory", "none":
	default:
		return fmt.Errorf("events.provider must be one of pubsub, memory, none")
	}
	return nil
}

// FetchTimeout returns the probe timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}

// NavTimeout returns the headless navigation timeout as a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
