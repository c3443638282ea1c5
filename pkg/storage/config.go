package storage

import "time"

// Config for storage backend
type Config struct {
	Type string `yaml:"type"` // "memory" or "postgres"

	// PostgreSQL config
	PostgresURL         string        `yaml:"postgres_url"`
	PostgresReplicaURLs []string      `yaml:"postgres_replica_urls"`
	PostgresMaxConns    int           `yaml:"postgres_max_conns"`
	PostgresMinConns    int           `yaml:"postgres_min_conns"`
	PostgresTimeout     time.Duration `yaml:"postgres_timeout"`
	AutoMigrate         bool          `yaml:"auto_migrate"`

	// ReplicaHealthInterval is how often unreachable replicas are dropped
	ReplicaHealthInterval time.Duration `yaml:"replica_health_interval"`

	// Token config
	TokenLength    int           `yaml:"token_length"`
	SecureTokenTTL time.Duration `yaml:"secure_token_ttl"`

	// Redis config, used for distributed rate limiting and the paste cache
	RedisURL        string        `yaml:"redis_url"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db"`
	RedisMaxRetries int           `yaml:"redis_max_retries"`
	RedisPoolSize   int           `yaml:"redis_pool_size"`
	PasteCacheTTL   time.Duration `yaml:"paste_cache_ttl"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             "memory",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  5 * time.Second,
		AutoMigrate:      true,

		ReplicaHealthInterval: 30 * time.Second,

		TokenLength:      32,
		SecureTokenTTL:   15 * time.Minute,
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		PasteCacheTTL:    5 * time.Minute,
	}
}
