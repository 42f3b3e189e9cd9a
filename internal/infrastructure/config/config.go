package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Provider  ProviderConfig
	Sync      SyncConfig
	Shipping  ShippingConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
}

// ProviderConfig holds fulfillment provider API settings
type ProviderConfig struct {
	APIKey         string
	ShopID         string
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// SyncConfig holds order synchronization settings
type SyncConfig struct {
	Enabled       bool
	Interval      time.Duration // how often the periodic sync-all runs
	PushEnabled   bool          // opt-in local->provider order push
	WorkerCount   int
	PollInterval  time.Duration // queue polling interval
	WebhookSecret string        // shared secret expected on webhook deliveries
	LogRetention  int           // sync log entries to keep
}

// ShippingConfig holds shipping rate computation settings
type ShippingConfig struct {
	CacheTTL       time.Duration // shipping profile snapshot TTL
	GraceWindow    time.Duration // how long past TTL last-known-good may serve
	TieredPricing  bool          // tiered vs flat per-item pricing
	CombinedMode   bool          // combined vs per-provider rate display
	FallbackCost   float64       // flat fallback when no region matches
	BaseCurrency   string
	ExchangeRates  map[string]float64 // currency code -> units per base currency
	ResultCacheTTL time.Duration      // checkout rate result cache TTL
}

// TelemetryConfig holds distributed tracing settings
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  // OTLP gRPC collector address
	SamplingRatio     float64 // 0.0 never samples, 1.0 always samples
	Insecure          bool    // skip TLS towards the collector
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with PRINTSYNC_ prefix (e.g. PRINTSYNC_PROVIDER_APIKEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("PRINTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Provider: ProviderConfig{
			APIKey:         v.GetString("provider.api_key"),
			ShopID:         v.GetString("provider.shop_id"),
			BaseURL:        v.GetString("provider.base_url"),
			Timeout:        v.GetDuration("provider.timeout"),
			MaxRetries:     v.GetInt("provider.max_retries"),
			RetryBaseDelay: v.GetDuration("provider.retry_base_delay"),
		},
		Sync: SyncConfig{
			Enabled:       v.GetBool("sync.enabled"),
			Interval:      v.GetDuration("sync.interval"),
			PushEnabled:   v.GetBool("sync.push_enabled"),
			WorkerCount:   v.GetInt("sync.worker_count"),
			PollInterval:  v.GetDuration("sync.poll_interval"),
			WebhookSecret: v.GetString("sync.webhook_secret"),
			LogRetention:  v.GetInt("sync.log_retention"),
		},
		Shipping: ShippingConfig{
			CacheTTL:       v.GetDuration("shipping.cache_ttl"),
			GraceWindow:    v.GetDuration("shipping.grace_window"),
			TieredPricing:  v.GetBool("shipping.tiered_pricing"),
			CombinedMode:   v.GetBool("shipping.combined_mode"),
			FallbackCost:   v.GetFloat64("shipping.fallback_cost"),
			BaseCurrency:   v.GetString("shipping.base_currency"),
			ExchangeRates:  toRateMap(v.GetStringMapString("shipping.exchange_rates")),
			ResultCacheTTL: v.GetDuration("shipping.result_cache_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "printsync-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "printsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://api.printify.com/v1"
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = 30 * time.Second
	}
	if cfg.Provider.MaxRetries == 0 {
		cfg.Provider.MaxRetries = 3
	}
	if cfg.Provider.RetryBaseDelay == 0 {
		cfg.Provider.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = 15 * time.Minute
	}
	if cfg.Sync.WorkerCount == 0 {
		cfg.Sync.WorkerCount = 3
	}
	if cfg.Sync.PollInterval == 0 {
		cfg.Sync.PollInterval = 2 * time.Second
	}
	if cfg.Sync.LogRetention == 0 {
		cfg.Sync.LogRetention = 10000
	}
	if cfg.Shipping.CacheTTL == 0 {
		cfg.Shipping.CacheTTL = 24 * time.Hour
	}
	if cfg.Shipping.GraceWindow == 0 {
		cfg.Shipping.GraceWindow = 6 * time.Hour
	}
	if cfg.Shipping.FallbackCost == 0 {
		cfg.Shipping.FallbackCost = 10.0
	}
	if cfg.Shipping.BaseCurrency == "" {
		cfg.Shipping.BaseCurrency = "USD"
	}
	if cfg.Shipping.ResultCacheTTL == 0 {
		cfg.Shipping.ResultCacheTTL = 5 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Shipping.GraceWindow > c.Shipping.CacheTTL {
		return fmt.Errorf("shipping.grace_window cannot exceed shipping.cache_ttl")
	}

	if c.App.Env == "production" {
		if c.Provider.APIKey == "" {
			return fmt.Errorf("provider.api_key is required in production")
		}
		if c.Provider.ShopID == "" {
			return fmt.Errorf("provider.shop_id is required in production")
		}
		if c.Sync.WebhookSecret == "" {
			return fmt.Errorf("sync.webhook_secret is required in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address in host:port form.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// toRateMap parses string exchange rates into floats, skipping bad entries.
func toRateMap(raw map[string]string) map[string]float64 {
	rates := make(map[string]float64, len(raw))
	for code, value := range raw {
		var rate float64
		if _, err := fmt.Sscanf(value, "%f", &rate); err == nil && rate > 0 {
			rates[strings.ToUpper(code)] = rate
		}
	}
	return rates
}
