package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the tracker
type Config struct {
	Market        MarketConfig        `mapstructure:"market"`
	ExchangeRates ExchangeRatesConfig `mapstructure:"exchange_rates"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Store         StoreConfig         `mapstructure:"store"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Tracker       TrackerConfig       `mapstructure:"tracker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	HTTP          HTTPConfig          `mapstructure:"http"`
}

// MarketConfig holds market data API configuration
type MarketConfig struct {
	BaseURL   string          `mapstructure:"base_url"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	MinPerMinute      int `mapstructure:"min_per_minute"`
	MaxPerMinute      int `mapstructure:"max_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// RetryConfig holds retry settings for upstream calls
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// BreakerConfig holds circuit breaker settings
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// ExchangeRatesConfig holds exchange rate API configuration
type ExchangeRatesConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds caching configuration
type CacheConfig struct {
	Namespace   string        `mapstructure:"namespace"`
	VolatileTTL time.Duration `mapstructure:"volatile_ttl"`
	DurableTTL  time.Duration `mapstructure:"durable_ttl"`
	L1MaxSize   int           `mapstructure:"l1_max_size"`
}

// StoreConfig selects the durable key-value backend
type StoreConfig struct {
	Backend    string `mapstructure:"backend"` // sqlite, redis or memory
	SQLitePath string `mapstructure:"sqlite_path"`
	QuotaBytes int    `mapstructure:"quota_bytes"` // memory backend only
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Address   string        `mapstructure:"address"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Retention time.Duration `mapstructure:"retention"`
}

// TrackerConfig holds engine settings
type TrackerConfig struct {
	TopLimit        int           `mapstructure:"top_limit"`
	DisplayLimit    int           `mapstructure:"display_limit"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	WarmCategories  []string      `mapstructure:"warm_categories"`
	CategoriesFile  string        `mapstructure:"categories_file"`
	Warmup          WarmupConfig  `mapstructure:"warmup"`
}

// WarmupConfig holds startup cache warming settings
type WarmupConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Parallelism int           `mapstructure:"parallelism"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TracingConfig holds tracing settings
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// TRACKER_CACHE_VOLATILE_TTL overrides cache.volatile_ttl
	v.SetEnvPrefix("tracker")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; defaults and env still apply
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Store.Backend == "sqlite" && cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = DefaultSQLitePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Market data defaults
	v.SetDefault("market.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("market.timeout", "10s")
	v.SetDefault("market.rate_limit.requests_per_minute", 30)
	v.SetDefault("market.rate_limit.min_per_minute", 5)
	v.SetDefault("market.rate_limit.max_per_minute", 50)
	v.SetDefault("market.rate_limit.burst", 5)
	v.SetDefault("market.retry.max_attempts", 3)
	v.SetDefault("market.retry.base_delay", "500ms")
	v.SetDefault("market.retry.max_delay", "5s")
	v.SetDefault("market.breaker.failure_threshold", 5)
	v.SetDefault("market.breaker.timeout", "60s")

	// Exchange rate defaults
	v.SetDefault("exchange_rates.url", "https://api.exchangerate-api.com/v4/latest")
	v.SetDefault("exchange_rates.timeout", "10s")

	// Cache defaults
	v.SetDefault("cache.namespace", "crypto_cache")
	v.SetDefault("cache.volatile_ttl", "5m")
	v.SetDefault("cache.durable_ttl", "1h")
	v.SetDefault("cache.l1_max_size", 1000)

	// Store defaults
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.sqlite_path", "")
	v.SetDefault("store.quota_bytes", 5*1024*1024)

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.retention", "24h")

	// Tracker defaults
	v.SetDefault("tracker.top_limit", 250)
	v.SetDefault("tracker.display_limit", 20)
	v.SetDefault("tracker.refresh_interval", "10m")
	v.SetDefault("tracker.warm_categories", []string{})
	v.SetDefault("tracker.categories_file", "")
	v.SetDefault("tracker.warmup.timeout", "30s")
	v.SetDefault("tracker.warmup.parallelism", 2)

	// Observability defaults
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")

	// HTTP defaults
	v.SetDefault("http.port", 8080)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Market.BaseURL == "" {
		return fmt.Errorf("market base URL is required")
	}
	if c.Market.Timeout <= 0 {
		return fmt.Errorf("market timeout must be > 0")
	}
	if c.ExchangeRates.URL == "" {
		return fmt.Errorf("exchange rate URL is required")
	}
	if c.ExchangeRates.Timeout <= 0 {
		return fmt.Errorf("exchange rate timeout must be > 0")
	}

	if c.Cache.Namespace == "" {
		return fmt.Errorf("cache namespace is required")
	}
	if c.Cache.VolatileTTL <= 0 || c.Cache.DurableTTL <= 0 {
		return fmt.Errorf("cache TTLs must be > 0")
	}

	switch c.Store.Backend {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case "redis":
		if c.Redis.Address == "" {
			return fmt.Errorf("redis address is required")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid store backend: %s", c.Store.Backend)
	}

	if c.Tracker.TopLimit <= 0 || c.Tracker.TopLimit > 250 {
		return fmt.Errorf("tracker top limit must be within 1..250")
	}
	if c.Tracker.RefreshInterval <= 0 {
		return fmt.Errorf("tracker refresh interval must be > 0")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Observability.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Observability.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Observability.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Observability.Logging.Format)
	}

	return nil
}
