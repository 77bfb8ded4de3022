// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port               string `mapstructure:"PORT"`
	Env                string `mapstructure:"APP_ENV"`
	DBDriver           string `mapstructure:"DB_DRIVER"`
	DBHost             string `mapstructure:"DB_HOST"`
	DBPort             string `mapstructure:"DB_PORT"`
	DBUser             string `mapstructure:"DB_USER"`
	DBPassword         string `mapstructure:"DB_PASSWORD"`
	DBName             string `mapstructure:"DB_NAME"`
	DBSSLMode          string `mapstructure:"DB_SSLMODE"`
	DBPath             string `mapstructure:"DB_PATH"`
	RedisURL           string `mapstructure:"REDIS_URL"`
	AllowedOrigins     string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags       string `mapstructure:"FEATURE_FLAGS"`
	UndoWindowMS       int    `mapstructure:"UNDO_WINDOW_MS"`
	UndoSweepSpec      string `mapstructure:"UNDO_SWEEP_SPEC"`
	MaxSessions        int    `mapstructure:"MAX_SESSIONS"`
	PostsCacheTTLSecs  int    `mapstructure:"POSTS_CACHE_TTL_SECONDS"`
	LoadLimit          int    `mapstructure:"LOAD_LIMIT"`
	SeedDemoPostsCount int    `mapstructure:"SEED_DEMO_POSTS"`
	// BatchRateLimit caps batch transitions per session per minute. Zero disables it.
	BatchRateLimit     int    `mapstructure:"BATCH_RATE_LIMIT"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	viper.SetDefault("PORT", "8380")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "modqueue")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_PATH", "modqueue.db")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("FEATURE_FLAGS", "")
	viper.SetDefault("UNDO_WINDOW_MS", 5000)
	viper.SetDefault("UNDO_SWEEP_SPEC", "@every 1s")
	viper.SetDefault("MAX_SESSIONS", 256)
	viper.SetDefault("POSTS_CACHE_TTL_SECONDS", 30)
	viper.SetDefault("LOAD_LIMIT", 500)
	viper.SetDefault("SEED_DEMO_POSTS", 0)
	viper.SetDefault("BATCH_RATE_LIMIT", 120)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.DBDriver = strings.ToLower(strings.TrimSpace(config.DBDriver))
	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and sane.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.DBHost == "" || c.DBName == "" {
			return errors.New("DB_HOST and DB_NAME are required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite or postgres)", c.DBDriver)
	}
	if c.UndoWindowMS <= 0 {
		return errors.New("UNDO_WINDOW_MS must be positive")
	}
	if c.UndoSweepSpec == "" {
		return errors.New("UNDO_SWEEP_SPEC is required")
	}
	if c.MaxSessions <= 0 {
		return errors.New("MAX_SESSIONS must be positive")
	}
	if c.PostsCacheTTLSecs < 0 {
		return errors.New("POSTS_CACHE_TTL_SECONDS must not be negative")
	}
	if c.BatchRateLimit < 0 {
		return errors.New("BATCH_RATE_LIMIT must not be negative")
	}

	if c.IsProduction() {
		if c.DBDriver == "postgres" && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	}

	return nil
}

// IsProduction reports whether the service runs with a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// UndoWindow is how long an action stays revertible before the ledger is cleared.
func (c *Config) UndoWindow() time.Duration {
	return time.Duration(c.UndoWindowMS) * time.Millisecond
}

// PostsCacheTTL is how long a fetched post set is served from cache.
func (c *Config) PostsCacheTTL() time.Duration {
	return time.Duration(c.PostsCacheTTLSecs) * time.Second
}
