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
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	Sync       SyncConfig
	Baselinker BaselinkerConfig
	Apilo      ApiloConfig
	Exchange   ExchangeConfig
	Scheduler  SchedulerConfig
	HTTP       HTTPConfig
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
	ConnMaxIdleTime int // in minutes
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

// SyncConfig holds ingest pipeline tuning and reconciliation rules
type SyncConfig struct {
	BatchSize      int
	Concurrency    int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	BatchTimeout   time.Duration
	// OrderLookback is how far back order pulls reach by default.
	OrderLookback time.Duration
	// MarketplaceRenames maps raw provider marketplace names to canonical
	// display names.
	MarketplaceRenames map[string]string
	// BaselinkerIgnoredStatuses lists order status codes never ingested
	// from BaseLinker (196511 is the cancelled bucket).
	BaselinkerIgnoredStatuses []int
	// ApiloIgnoredStatuses lists order status codes never ingested from
	// Apilo (21 is cancelled).
	ApiloIgnoredStatuses []int
}

// BaselinkerConfig holds BaseLinker API settings
type BaselinkerConfig struct {
	Token          string
	APIBaseURL     string
	InventoryID    string
	TimeoutSeconds int
}

// ApiloConfig holds Apilo API settings
type ApiloConfig struct {
	APIBaseURL     string
	ClientID       string
	ClientSecret   string
	TimeoutSeconds int
}

// ExchangeConfig holds currency rate source settings
type ExchangeConfig struct {
	APIBaseURL     string
	TimeoutSeconds int
	// FallbackRates are used when the rate API is unreachable.
	FallbackRates map[string]string
}

// SchedulerConfig holds sync scheduler configuration
type SchedulerConfig struct {
	Enabled           bool
	SyncInterval      time.Duration
	StockSnapshotHour int
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SYNC_ prefix (e.g., SYNC_DATABASE_PASSWORD)
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

	v.SetEnvPrefix("SYNC")
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
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
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
		Sync: SyncConfig{
			BatchSize:                 v.GetInt("sync.batch_size"),
			Concurrency:               v.GetInt("sync.concurrency"),
			MaxAttempts:               v.GetInt("sync.max_attempts"),
			RetryBaseDelay:            v.GetDuration("sync.retry_base_delay"),
			BatchTimeout:              v.GetDuration("sync.batch_timeout"),
			OrderLookback:             v.GetDuration("sync.order_lookback"),
			MarketplaceRenames:        v.GetStringMapString("sync.marketplace_renames"),
			BaselinkerIgnoredStatuses: v.GetIntSlice("sync.baselinker_ignored_statuses"),
			ApiloIgnoredStatuses:      v.GetIntSlice("sync.apilo_ignored_statuses"),
		},
		Baselinker: BaselinkerConfig{
			Token:          v.GetString("baselinker.token"),
			APIBaseURL:     v.GetString("baselinker.api_base_url"),
			InventoryID:    v.GetString("baselinker.inventory_id"),
			TimeoutSeconds: v.GetInt("baselinker.timeout_seconds"),
		},
		Apilo: ApiloConfig{
			APIBaseURL:     v.GetString("apilo.api_base_url"),
			ClientID:       v.GetString("apilo.client_id"),
			ClientSecret:   v.GetString("apilo.client_secret"),
			TimeoutSeconds: v.GetInt("apilo.timeout_seconds"),
		},
		Exchange: ExchangeConfig{
			APIBaseURL:     v.GetString("exchange.api_base_url"),
			TimeoutSeconds: v.GetInt("exchange.timeout_seconds"),
			FallbackRates:  v.GetStringMapString("exchange.fallback_rates"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			SyncInterval:      v.GetDuration("scheduler.sync_interval"),
			StockSnapshotHour: v.GetInt("scheduler.stock_snapshot_hour"),
			MaxConcurrentJobs: v.GetInt("scheduler.max_concurrent_jobs"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
			RetryAttempts:     v.GetInt("scheduler.retry_attempts"),
			RetryDelay:        v.GetDuration("scheduler.retry_delay"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
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
		cfg.App.Name = "marketsync"
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
		cfg.Database.DBName = "marketsync"
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
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
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
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = 100
	}
	if cfg.Sync.Concurrency == 0 {
		cfg.Sync.Concurrency = 4
	}
	if cfg.Sync.MaxAttempts == 0 {
		cfg.Sync.MaxAttempts = 3
	}
	if cfg.Sync.RetryBaseDelay == 0 {
		cfg.Sync.RetryBaseDelay = 200 * time.Millisecond
	}
	if cfg.Sync.BatchTimeout == 0 {
		cfg.Sync.BatchTimeout = 30 * time.Second
	}
	if cfg.Sync.OrderLookback == 0 {
		cfg.Sync.OrderLookback = 24 * time.Hour
	}
	if len(cfg.Sync.BaselinkerIgnoredStatuses) == 0 {
		cfg.Sync.BaselinkerIgnoredStatuses = []int{196511}
	}
	if len(cfg.Sync.ApiloIgnoredStatuses) == 0 {
		cfg.Sync.ApiloIgnoredStatuses = []int{21}
	}
	if cfg.Baselinker.APIBaseURL == "" {
		cfg.Baselinker.APIBaseURL = "https://api.baselinker.com/connector.php"
	}
	if cfg.Baselinker.TimeoutSeconds == 0 {
		cfg.Baselinker.TimeoutSeconds = 30
	}
	if cfg.Apilo.TimeoutSeconds == 0 {
		cfg.Apilo.TimeoutSeconds = 30
	}
	if cfg.Exchange.APIBaseURL == "" {
		cfg.Exchange.APIBaseURL = "https://api.nbp.pl"
	}
	if cfg.Exchange.TimeoutSeconds == 0 {
		cfg.Exchange.TimeoutSeconds = 10
	}
	if len(cfg.Exchange.FallbackRates) == 0 {
		cfg.Exchange.FallbackRates = map[string]string{
			"EUR": "4.30",
			"USD": "4.00",
			"GBP": "5.05",
			"CZK": "0.17",
		}
	}
	if cfg.Scheduler.SyncInterval == 0 {
		cfg.Scheduler.SyncInterval = 15 * time.Minute
	}
	if cfg.Scheduler.MaxConcurrentJobs == 0 {
		cfg.Scheduler.MaxConcurrentJobs = 3
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 15 * time.Minute
	}
	if cfg.Scheduler.RetryAttempts == 0 {
		cfg.Scheduler.RetryAttempts = 3
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = time.Minute
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
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be positive")
	}
	if c.Sync.Concurrency <= 0 {
		return fmt.Errorf("sync.concurrency must be positive")
	}

	// A canonical name that is itself a raw key of a different rename would
	// make resolution order-dependent.
	for raw, canonical := range c.Sync.MarketplaceRenames {
		if chained, ok := c.Sync.MarketplaceRenames[canonical]; ok && chained != canonical {
			return fmt.Errorf("sync.marketplace_renames: %q maps to %q which is itself renamed to %q", raw, canonical, chained)
		}
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Baselinker.Token == "" {
			return fmt.Errorf("baselinker.token is required in production")
		}
		if c.Apilo.ClientID == "" || c.Apilo.ClientSecret == "" {
			return fmt.Errorf("apilo.client_id and apilo.client_secret are required in production")
		}
		if c.Apilo.APIBaseURL == "" {
			return fmt.Errorf("apilo.api_base_url is required in production")
		}
	}

	return nil
}

// IgnoredStatuses returns the per-provider order status ignore lists
func (c *Config) IgnoredStatuses() map[string][]int {
	return map[string][]int{
		"BASELINKER": c.Sync.BaselinkerIgnoredStatuses,
		"APILO":      c.Sync.ApiloIgnoredStatuses,
	}
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
