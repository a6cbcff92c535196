package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/2beens/gymtracker/internal/securestore"
)

const (
	StoreBackendMemory = securestore.BackendMemory
	StoreBackendSQLite = securestore.BackendSQLite
	StoreBackendRedis  = securestore.BackendRedis
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// local encrypted store
	StoreBackend       string   `toml:"store_backend"`
	SQLitePath         string   `toml:"sqlite_path"`
	StoreCapacityBytes int      `toml:"store_capacity_bytes"`
	StoreCacheSizeMB   int      `toml:"store_cache_size_mb"`
	StoreCacheTTL      Duration `toml:"store_cache_ttl"`
	RedisStorePrefix   string   `toml:"redis_store_prefix"`

	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// remote sync (postgres)
	RemoteSyncEnabled bool   `toml:"remote_sync_enabled"`
	PostgresHost      string `toml:"postgres_host"`
	PostgresPort      string `toml:"postgres_port"`
	PostgresDBName    string `toml:"postgres_db_name"`
	PostgresUser      string `toml:"postgres_user"`

	// auth
	LoginRateLimitAllowedPerMin int      `toml:"login_rate_limit_allowed_per_min"`
	SessionTTL                  Duration `toml:"session_ttl"`
	PasswordHashCost            int      `toml:"password_hash_cost"`

	// http
	CorsAllowedOrigins []string `toml:"cors_allowed_origins"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
}

// Duration lets TOML files carry values like "168h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration [%s]: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

type Toml struct {
	Development *Config
	DockerDev   *Config `toml:"dockerdev"`
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "ddev", "dockerdev":
		cfg = t.DockerDev
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}

	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] missing", env)
	}
	return cfg, nil
}

// Load reads the TOML file at path and returns the section for env, with defaults applied.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg.Environment == "" {
		cfg.Environment = strings.ToLower(env)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.StoreBackend == "" {
		c.StoreBackend = StoreBackendSQLite
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "./data/gymtracker.db"
	}
	if c.StoreCapacityBytes == 0 {
		c.StoreCapacityBytes = 5 * 1024 * 1024
	}
	if c.StoreCacheTTL.Duration == 0 {
		c.StoreCacheTTL.Duration = securestore.DefaultCacheTTL
	}
	if c.RedisStorePrefix == "" {
		c.RedisStorePrefix = "gymtracker-store||"
	}
	if c.RedisHost == "" {
		c.RedisHost = "localhost"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.PostgresPort == "" {
		c.PostgresPort = "5432"
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
	if c.LoginRateLimitAllowedPerMin == 0 {
		c.LoginRateLimitAllowedPerMin = 15
	}
	if c.SessionTTL.Duration == 0 {
		c.SessionTTL.Duration = 24 * 7 * time.Hour
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
}

func (c *Config) StoreOpenParams() securestore.OpenParams {
	return securestore.OpenParams{
		Backend:       c.StoreBackend,
		SQLitePath:    c.SQLitePath,
		RedisPrefix:   c.RedisStorePrefix,
		CacheSizeMB:   c.StoreCacheSizeMB,
		CacheTTL:      c.StoreCacheTTL.Duration,
		CapacityBytes: int64(c.StoreCapacityBytes),
	}
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendMemory, StoreBackendSQLite, StoreBackendRedis:
	default:
		return fmt.Errorf("unknown store backend: %s", c.StoreBackend)
	}
	if c.RemoteSyncEnabled && (c.PostgresHost == "" || c.PostgresDBName == "") {
		return fmt.Errorf("remote sync enabled, but postgres host or db name not set")
	}
	if c.StoreCapacityBytes < 0 {
		return fmt.Errorf("invalid store capacity: %d", c.StoreCapacityBytes)
	}
	return nil
}
