package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string            `mapstructure:"environment"`
	LogLevel    string            `mapstructure:"log_level"`
	Polygon     PolygonConfig     `mapstructure:"polygon"`
	Frankfurter FrankfurterConfig `mapstructure:"frankfurter"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Output      OutputConfig      `mapstructure:"output"`
}

type PolygonConfig struct {
	BaseURL string   `mapstructure:"base_url"`
	APIKey  string   `mapstructure:"api_key" json:"-" yaml:"-"`
	Tickers []string `mapstructure:"tickers"`
	Days    int      `mapstructure:"days"`
}

type FrankfurterConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	BaseCurrency string `mapstructure:"base_currency"`
	Days         int    `mapstructure:"days"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type FetchConfig struct {
	MaxRetries     int    `mapstructure:"max_retries"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
	BaseBackoff    string `mapstructure:"base_backoff"`
	MaxBackoff     string `mapstructure:"max_backoff"`
	RequestTimeout string `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL string `mapstructure:"cache_ttl"`
}

type OutputConfig struct {
	Dir        string `mapstructure:"dir"`
	SampleRows int    `mapstructure:"sample_rows"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("polygon.api_key", "POLYGON_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind POLYGON_API_KEY environment variable: %w", err)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("polygon.base_url", "https://api.polygon.io")
	v.SetDefault("polygon.tickers", []string{"AAPL", "MSFT", "GOOGL"})
	v.SetDefault("polygon.days", 7)

	v.SetDefault("frankfurter.base_url", "https://api.frankfurter.dev")
	v.SetDefault("frankfurter.base_currency", "USD")
	v.SetDefault("frankfurter.days", 7)

	// Polygon's free tier allows 5 requests per minute.
	v.SetDefault("rate_limit.requests_per_minute", 5)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.max_concurrency", 3)
	v.SetDefault("fetch.base_backoff", "5s")
	v.SetDefault("fetch.max_backoff", "60s")
	v.SetDefault("fetch.request_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "stockpipe")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", "1h")

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.sample_rows", 20)
}

func validate(config *Config) error {
	if config.Environment != "development" && config.Polygon.APIKey == "" {
		return errors.New("POLYGON_API_KEY environment variable is required in non-development environments")
	}
	if len(config.Polygon.Tickers) == 0 {
		return errors.New("at least one ticker is required")
	}
	if config.Polygon.Days <= 0 {
		return fmt.Errorf("polygon days must be positive, got %d", config.Polygon.Days)
	}
	if config.Frankfurter.Days <= 0 {
		return fmt.Errorf("frankfurter days must be positive, got %d", config.Frankfurter.Days)
	}
	if config.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests per minute must be positive, got %d", config.RateLimit.RequestsPerMinute)
	}
	if config.RateLimit.Burst <= 0 {
		return fmt.Errorf("burst must be positive, got %d", config.RateLimit.Burst)
	}
	if config.Fetch.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", config.Fetch.MaxRetries)
	}
	if config.Fetch.MaxConcurrency <= 0 {
		return fmt.Errorf("max concurrency must be positive, got %d", config.Fetch.MaxConcurrency)
	}

	for name, value := range map[string]string{
		"fetch.base_backoff":    config.Fetch.BaseBackoff,
		"fetch.max_backoff":     config.Fetch.MaxBackoff,
		"fetch.request_timeout": config.Fetch.RequestTimeout,
		"redis.cache_ttl":       config.Redis.CacheTTL,
	} {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s duration: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, value)
		}
	}

	return nil
}

// BaseBackoffDuration returns the parsed base backoff, falling back to 5s.
func (f FetchConfig) BaseBackoffDuration() time.Duration {
	return parseDuration(f.BaseBackoff, 5*time.Second)
}

// MaxBackoffDuration returns the parsed backoff cap, falling back to 60s.
func (f FetchConfig) MaxBackoffDuration() time.Duration {
	return parseDuration(f.MaxBackoff, time.Minute)
}

// RequestTimeoutDuration returns the parsed per-request timeout, falling back to 30s.
func (f FetchConfig) RequestTimeoutDuration() time.Duration {
	return parseDuration(f.RequestTimeout, 30*time.Second)
}

// CacheTTLDuration returns the parsed response-cache TTL, falling back to 1h.
func (r RedisConfig) CacheTTLDuration() time.Duration {
	return parseDuration(r.CacheTTL, time.Hour)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
