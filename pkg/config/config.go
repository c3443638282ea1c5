package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/pastebin/pkg/accounts"
	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/middleware"
	"github.com/platinummonkey/pastebin/pkg/observability"
	"github.com/platinummonkey/pastebin/pkg/pastes"
	"github.com/platinummonkey/pastebin/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage storage.Config `yaml:"storage"`

	Auth      AuthConfig      `yaml:"auth"`
	Pastes    PastesConfig    `yaml:"pastes"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// AuthConfig holds credential, account and cookie settings
type AuthConfig struct {
	HashIterations int           `yaml:"hash_iterations"`
	HashWorkers    int           `yaml:"hash_workers"`
	HashTimeout    time.Duration `yaml:"hash_timeout"`

	NameMinLength      int `yaml:"name_min_length"`
	NameMaxLength      int `yaml:"name_max_length"`
	TokenNameMaxLength int `yaml:"token_name_max_length"`

	CookieSecure   bool          `yaml:"cookie_secure"`
	RememberMaxAge time.Duration `yaml:"remember_max_age"`

	// SweepSchedule is a cron spec for clearing expired secure sessions
	SweepSchedule string `yaml:"sweep_schedule"`
}

// Accounts returns the account service limits
func (a AuthConfig) Accounts() accounts.Config {
	return accounts.Config{
		NameMinLength:      a.NameMinLength,
		NameMaxLength:      a.NameMaxLength,
		TokenNameMaxLength: a.TokenNameMaxLength,
	}
}

// Cookies returns the cookie settings. The secure cookie lives exactly as
// long as the secure session.
func (c *Config) Cookies() middleware.CookieConfig {
	return middleware.CookieConfig{
		Secure:         c.Auth.CookieSecure,
		RememberMaxAge: c.Auth.RememberMaxAge,
		SecureMaxAge:   c.Storage.SecureTokenTTL,
	}
}

// PastesConfig holds paste limits and the latest-pastes cache
type PastesConfig struct {
	IDLength           int           `yaml:"id_length"`
	MaxTitleLength     int           `yaml:"max_title_length"`
	MaxContentBytes    int           `yaml:"max_content_bytes"`
	SearchDefaultLimit int           `yaml:"search_default_limit"`
	SearchMaxLimit     int           `yaml:"search_max_limit"`
	LatestCount        int           `yaml:"latest_count"`
	LatestTTL          time.Duration `yaml:"latest_ttl"`
}

// Service returns the paste service configuration
func (p PastesConfig) Service() pastes.Config {
	cfg := pastes.DefaultConfig()
	cfg.IDLength = p.IDLength
	cfg.MaxTitleLength = p.MaxTitleLength
	cfg.MaxContentBytes = p.MaxContentBytes
	cfg.SearchDefaultLimit = p.SearchDefaultLimit
	cfg.SearchMaxLimit = p.SearchMaxLimit
	cfg.LatestCount = p.LatestCount
	cfg.LatestTTL = p.LatestTTL
	return cfg
}

// RateLimitConfig selects and sizes the rate limiter on account routes
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	// Backend is "memory" or "redis"; redis needs storage.redis_url
	Backend           string        `yaml:"backend"`
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
	Burst             int           `yaml:"burst"`
	FailOpen          bool          `yaml:"fail_open"`
}

// Limits returns the limiter settings
func (r RateLimitConfig) Limits() *middleware.RateLimitConfig {
	return &middleware.RateLimitConfig{
		RequestsPerWindow: r.RequestsPerWindow,
		WindowDuration:    r.Window,
		BurstSize:         r.Burst,
	}
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel `yaml:"-"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

// Default returns the configuration used before any file or environment
// overrides are applied
func Default() *Config {
	pasteDefaults := pastes.DefaultConfig()
	accountDefaults := accounts.DefaultConfig()
	limits := middleware.DefaultRateLimitConfig()

	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    2 << 20,
			HealthPort:      "9090",
		},
		Storage: storage.DefaultConfig(),
		Auth: AuthConfig{
			HashIterations:     auth.DefaultHashIterations,
			HashWorkers:        4,
			HashTimeout:        10 * time.Second,
			NameMinLength:      accountDefaults.NameMinLength,
			NameMaxLength:      accountDefaults.NameMaxLength,
			TokenNameMaxLength: accountDefaults.TokenNameMaxLength,
			RememberMaxAge:     30 * 24 * time.Hour,
			SweepSchedule:      "@every 5m",
		},
		Pastes: PastesConfig{
			IDLength:           pasteDefaults.IDLength,
			MaxTitleLength:     pasteDefaults.MaxTitleLength,
			MaxContentBytes:    pasteDefaults.MaxContentBytes,
			SearchDefaultLimit: pasteDefaults.SearchDefaultLimit,
			SearchMaxLimit:     pasteDefaults.SearchMaxLimit,
			LatestCount:        pasteDefaults.LatestCount,
			LatestTTL:          pasteDefaults.LatestTTL,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			Backend:           "memory",
			RequestsPerWindow: limits.RequestsPerWindow,
			Window:            limits.WindowDuration,
			Burst:             limits.BurstSize,
			FailOpen:          true,
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.InfoLevel,
			MetricsEnabled: true,
		},
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file
// named by PASTEBIN_CONFIG_FILE if set, then environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := getEnv("PASTEBIN_CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	loadServerConfig(&cfg.Server)
	loadStorageConfig(&cfg.Storage)
	loadAuthConfig(&cfg.Auth)
	loadPastesConfig(&cfg.Pastes)
	loadRateLimitConfig(&cfg.RateLimit)
	loadObservabilityConfig(&cfg.Observability)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML file at path. Keys missing from the file keep
// their current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// UnmarshalYAML reads log_level as text
func (o *ObservabilityConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		LogLevel       string `yaml:"log_level"`
		MetricsEnabled *bool  `yaml:"metrics_enabled"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.LogLevel != "" {
		o.LogLevel = parseLogLevel(raw.LogLevel)
	}
	if raw.MetricsEnabled != nil {
		o.MetricsEnabled = *raw.MetricsEnabled
	}
	return nil
}

// loadServerConfig applies server environment overrides
func loadServerConfig(cfg *ServerConfig) {
	cfg.Host = getEnv("PASTEBIN_HOST", cfg.Host)
	cfg.Port = getEnv("PASTEBIN_PORT", cfg.Port)
	cfg.ReadTimeout = getEnvDuration("PASTEBIN_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvDuration("PASTEBIN_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvDuration("PASTEBIN_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = getEnvDuration("PASTEBIN_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.MaxBodyBytes = getEnvInt64("PASTEBIN_MAX_BODY_BYTES", cfg.MaxBodyBytes)
	cfg.HealthPort = getEnv("PASTEBIN_HEALTH_PORT", cfg.HealthPort)
}

// loadStorageConfig applies storage environment overrides
func loadStorageConfig(cfg *storage.Config) {
	cfg.Type = getEnv("PASTEBIN_STORAGE_TYPE", cfg.Type)

	// PostgreSQL config
	cfg.PostgresURL = getEnv("PASTEBIN_POSTGRES_URL", cfg.PostgresURL)
	if replicaURLs := getEnv("PASTEBIN_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.PostgresReplicaURLs = splitList(replicaURLs)
	}
	if maxConns := getEnvInt("PASTEBIN_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("PASTEBIN_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("PASTEBIN_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}
	cfg.AutoMigrate = getEnvBool("PASTEBIN_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.ReplicaHealthInterval = getEnvDuration("PASTEBIN_REPLICA_HEALTH_INTERVAL", cfg.ReplicaHealthInterval)

	// Token config
	if length := getEnvInt("PASTEBIN_TOKEN_LENGTH", 0); length > 0 {
		cfg.TokenLength = length
	}
	cfg.SecureTokenTTL = getEnvDuration("PASTEBIN_SECURE_TOKEN_TTL", cfg.SecureTokenTTL)

	// Redis config
	cfg.RedisURL = getEnv("PASTEBIN_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("PASTEBIN_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("PASTEBIN_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("PASTEBIN_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("PASTEBIN_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}
	cfg.PasteCacheTTL = getEnvDuration("PASTEBIN_PASTE_CACHE_TTL", cfg.PasteCacheTTL)
}

// loadAuthConfig applies credential and account environment overrides
func loadAuthConfig(cfg *AuthConfig) {
	cfg.HashIterations = getEnvInt("PASTEBIN_HASH_ITERATIONS", cfg.HashIterations)
	cfg.HashWorkers = getEnvInt("PASTEBIN_HASH_WORKERS", cfg.HashWorkers)
	cfg.HashTimeout = getEnvDuration("PASTEBIN_HASH_TIMEOUT", cfg.HashTimeout)
	cfg.NameMinLength = getEnvInt("PASTEBIN_NAME_MIN_LENGTH", cfg.NameMinLength)
	cfg.NameMaxLength = getEnvInt("PASTEBIN_NAME_MAX_LENGTH", cfg.NameMaxLength)
	cfg.TokenNameMaxLength = getEnvInt("PASTEBIN_TOKEN_NAME_MAX_LENGTH", cfg.TokenNameMaxLength)
	cfg.CookieSecure = getEnvBool("PASTEBIN_COOKIE_SECURE", cfg.CookieSecure)
	cfg.RememberMaxAge = getEnvDuration("PASTEBIN_REMEMBER_MAX_AGE", cfg.RememberMaxAge)
	cfg.SweepSchedule = getEnv("PASTEBIN_SWEEP_SCHEDULE", cfg.SweepSchedule)
}

// loadPastesConfig applies paste environment overrides
func loadPastesConfig(cfg *PastesConfig) {
	cfg.IDLength = getEnvInt("PASTEBIN_PASTE_ID_LENGTH", cfg.IDLength)
	cfg.MaxTitleLength = getEnvInt("PASTEBIN_PASTE_MAX_TITLE_LENGTH", cfg.MaxTitleLength)
	cfg.MaxContentBytes = getEnvInt("PASTEBIN_PASTE_MAX_CONTENT_BYTES", cfg.MaxContentBytes)
	cfg.SearchDefaultLimit = getEnvInt("PASTEBIN_SEARCH_DEFAULT_LIMIT", cfg.SearchDefaultLimit)
	cfg.SearchMaxLimit = getEnvInt("PASTEBIN_SEARCH_MAX_LIMIT", cfg.SearchMaxLimit)
	cfg.LatestCount = getEnvInt("PASTEBIN_LATEST_COUNT", cfg.LatestCount)
	cfg.LatestTTL = getEnvDuration("PASTEBIN_LATEST_TTL", cfg.LatestTTL)
}

// loadRateLimitConfig applies rate limit environment overrides
func loadRateLimitConfig(cfg *RateLimitConfig) {
	cfg.Enabled = getEnvBool("PASTEBIN_RATE_LIMIT_ENABLED", cfg.Enabled)
	cfg.Backend = getEnv("PASTEBIN_RATE_LIMIT_BACKEND", cfg.Backend)
	cfg.RequestsPerWindow = getEnvInt("PASTEBIN_RATE_LIMIT_REQUESTS", cfg.RequestsPerWindow)
	cfg.Window = getEnvDuration("PASTEBIN_RATE_LIMIT_WINDOW", cfg.Window)
	cfg.Burst = getEnvInt("PASTEBIN_RATE_LIMIT_BURST", cfg.Burst)
	cfg.FailOpen = getEnvBool("PASTEBIN_RATE_LIMIT_FAIL_OPEN", cfg.FailOpen)
}

// loadObservabilityConfig applies observability environment overrides
func loadObservabilityConfig(cfg *ObservabilityConfig) {
	if level := getEnv("PASTEBIN_LOG_LEVEL", ""); level != "" {
		cfg.LogLevel = parseLogLevel(level)
	}
	cfg.MetricsEnabled = getEnvBool("PASTEBIN_METRICS_ENABLED", cfg.MetricsEnabled)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate storage config based on type
	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory or postgres)", c.Storage.Type)
	}
	if c.Storage.SecureTokenTTL <= 0 {
		return fmt.Errorf("secure token TTL must be positive")
	}
	if c.Storage.TokenLength < 16 {
		return fmt.Errorf("token length must be at least 16 bytes")
	}

	// Validate auth config
	if c.Auth.HashIterations < 1 {
		return fmt.Errorf("hash iterations must be positive")
	}
	if c.Auth.HashWorkers < 1 {
		return fmt.Errorf("hash workers must be positive")
	}
	if c.Auth.NameMinLength < 1 || c.Auth.NameMaxLength < c.Auth.NameMinLength {
		return fmt.Errorf("invalid name length bounds %d..%d", c.Auth.NameMinLength, c.Auth.NameMaxLength)
	}
	if c.Auth.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.Auth.SweepSchedule); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", c.Auth.SweepSchedule, err)
		}
	}

	// Validate paste config
	if c.Pastes.IDLength < 4 {
		return fmt.Errorf("paste id length must be at least 4")
	}
	if c.Pastes.SearchDefaultLimit > c.Pastes.SearchMaxLimit {
		return fmt.Errorf("search default limit exceeds max limit")
	}

	// Validate rate limit config
	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case "memory":
		case "redis":
			if c.Storage.RedisURL == "" {
				return fmt.Errorf("redis URL is required for the redis rate limit backend")
			}
		default:
			return fmt.Errorf("invalid rate limit backend: %s (must be memory or redis)", c.RateLimit.Backend)
		}
		if c.RateLimit.RequestsPerWindow < 1 || c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit needs a positive request count and window")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
