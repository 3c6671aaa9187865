package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingEnvironmentVariables = errors.New("missing required environment variables")

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env              string    `mapstructure:"env"` // current application environment (local, dev, prod etc)
	TelegramAPIToken string    `mapstructure:"-"`   // Telegram API token loaded from environment
	DB               DB        `mapstructure:"database"`
	AI               AI        `mapstructure:"ai"`
	Scheduler        Scheduler `mapstructure:"scheduler"`
	Notify           Notify    `mapstructure:"notify"`
	Defaults         Defaults  `mapstructure:"defaults"`
}

// DB contains database-related configuration parameters.
type DB struct {
	URL             string        `mapstructure:"-"` // connection string loaded from environment
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// AI configures the external natural-language parser endpoint.
type AI struct {
	APIKey  string        `mapstructure:"-"` // loaded from environment
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Scheduler tunes the reminder firing loop.
type Scheduler struct {
	TickSeconds     int `mapstructure:"tick_seconds"`
	BatchLimit      int `mapstructure:"batch_limit"`
	Concurrency     int `mapstructure:"concurrency"`
	CleanupDaysOld  int `mapstructure:"cleanup_days_old"`
	ShutdownGraceMS int `mapstructure:"shutdown_grace_ms"`
}

// Tick returns the scheduler poll period.
func (s Scheduler) Tick() time.Duration {
	return time.Duration(s.TickSeconds) * time.Second
}

// ShutdownGrace returns how long in-flight dispatches may run after cancel.
func (s Scheduler) ShutdownGrace() time.Duration {
	return time.Duration(s.ShutdownGraceMS) * time.Millisecond
}

// Notify selects the delivery strategy.
type Notify struct {
	Strategy   string `mapstructure:"strategy"` // standard, silent, priority
	MaxRetries int    `mapstructure:"max_retries"`
}

// Defaults are deployment-level user defaults.
type Defaults struct {
	Language string `mapstructure:"language"`
	Timezone string `mapstructure:"timezone"`
}

// DSN returns the database connection string if it is configured.
func (db DB) DSN() (string, error) {
	if db.URL == "" {
		return "", ErrMissingEnvironmentVariables
	}
	return db.URL, nil
}

// Load reads configuration from config files and environment variables.
func Load() (*Config, error) {
	// Local development convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	v.SetDefault("env", "local")
	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.max_conn_lifetime", "30s")
	v.SetDefault("ai.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("ai.model", "gpt-4o")
	v.SetDefault("ai.timeout", "30s")
	v.SetDefault("scheduler.tick_seconds", 60)
	v.SetDefault("scheduler.batch_limit", 500)
	v.SetDefault("scheduler.concurrency", 30)
	v.SetDefault("scheduler.cleanup_days_old", 30)
	v.SetDefault("scheduler.shutdown_grace_ms", 5000)
	v.SetDefault("notify.strategy", "standard")
	v.SetDefault("notify.max_retries", 3)
	v.SetDefault("defaults.language", "fa")
	v.SetDefault("defaults.timezone", "+00:00")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // map nested keys to ENV style names
	v.AutomaticEnv()

	_ = v.BindEnv("telegram_api_token", "TELEGRAM_API_TOKEN")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("ai_api_key", "AI_API_KEY")
	_ = v.BindEnv("env", "APP_ENV")

	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// Required secrets come from the environment only. A missing one is
	// fatal at startup; the process refuses to run half-configured.
	cfg.TelegramAPIToken = v.GetString("telegram_api_token")
	if cfg.TelegramAPIToken == "" {
		return nil, ErrMissingEnvironmentVariables
	}

	cfg.DB.URL = v.GetString("database_url")
	if cfg.DB.URL == "" {
		return nil, ErrMissingEnvironmentVariables
	}

	cfg.AI.APIKey = v.GetString("ai_api_key")
	if cfg.AI.APIKey == "" {
		return nil, ErrMissingEnvironmentVariables
	}

	return &cfg, nil
}
