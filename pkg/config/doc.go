// Package config provides application configuration management from
// environment variables and an optional YAML file.
//
// # Overview
//
// LoadConfig starts from Default(), overlays the YAML file named by
// PASTEBIN_CONFIG_FILE when set, then applies PASTEBIN_* environment
// variables, and validates the result.
//
// # Configuration Structure
//
// Server settings:
//
//	PASTEBIN_HOST="0.0.0.0"
//	PASTEBIN_PORT="8080"
//	PASTEBIN_HEALTH_PORT="9090"
//	PASTEBIN_READ_TIMEOUT="15s"
//	PASTEBIN_MAX_BODY_BYTES="2097152"
//
// Storage settings:
//
//	PASTEBIN_STORAGE_TYPE="postgres"  # memory, postgres
//	PASTEBIN_POSTGRES_URL="postgres://localhost/pastebin"
//	PASTEBIN_POSTGRES_REPLICA_URLS="postgres://r1/pastebin,postgres://r2/pastebin"
//	PASTEBIN_SECURE_TOKEN_TTL="15m"
//	PASTEBIN_REDIS_URL="redis://localhost:6379"
//
// Auth settings:
//
//	PASTEBIN_HASH_ITERATIONS="100000"
//	PASTEBIN_HASH_WORKERS="4"
//	PASTEBIN_COOKIE_SECURE="true"
//	PASTEBIN_REMEMBER_MAX_AGE="720h"
//	PASTEBIN_SWEEP_SCHEDULE="@every 5m"
//
// Rate limits:
//
//	PASTEBIN_RATE_LIMIT_BACKEND="redis"  # memory, redis
//	PASTEBIN_RATE_LIMIT_REQUESTS="20"
//	PASTEBIN_RATE_LIMIT_WINDOW="1m"
//
// Observability settings:
//
//	PASTEBIN_LOG_LEVEL="info"  # debug, info, warn, error
//	PASTEBIN_METRICS_ENABLED="true"
//
// The same settings in YAML:
//
//	server:
//	  port: "8080"
//	storage:
//	  type: postgres
//	  postgres_url: postgres://localhost/pastebin
//	auth:
//	  cookie_secure: true
//	observability:
//	  log_level: debug
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Storage: %s\n", cfg.Storage.Type)
package config
