package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"

	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/observability"
	"github.com/platinummonkey/pastebin/pkg/storage"
)

const backendName = "postgres"

// Options configures a Store built on an existing *sql.DB
type Options struct {
	Clock          clockwork.Clock
	TokenLength    int
	SecureTokenTTL time.Duration
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	Cache          *RedisClient
}

// Store implements storage.Storage on PostgreSQL. Timestamps are stored as
// unix seconds; secrets only as auth.HashToken digests.
type Store struct {
	primary   *sql.DB
	replica   func() *sql.DB
	conn      *ConnectionManager
	stopCheck context.CancelFunc
	cache     *RedisClient
	tokens    *auth.TokenGenerator
	clock     clockwork.Clock
	secureTTL time.Duration
	logger    *observability.Logger
	metrics   *observability.Metrics
}

var _ storage.Storage = (*Store)(nil)

// New connects to the configured primary and replicas, runs migrations when
// AutoMigrate is set and attaches the Redis paste cache when RedisURL is set.
func New(ctx context.Context, cfg storage.Config, logger *observability.Logger, metrics *observability.Metrics) (*Store, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	conn, err := NewConnectionManager(ConnectionConfig{
		PrimaryURL:  cfg.PostgresURL,
		ReplicaURLs: cfg.PostgresReplicaURLs,
		MaxConns:    cfg.PostgresMaxConns,
		MinConns:    cfg.PostgresMinConns,
		Timeout:     cfg.PostgresTimeout,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := RunMigrations(ctx, conn.Primary(), logger); err != nil {
			conn.Close()
			return nil, err
		}
	}

	var cache *RedisClient
	if cfg.RedisURL != "" {
		cache, err = NewRedisClient(cfg)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, paste cache disabled")
			cache = nil
		}
	}

	s := NewWithDB(conn.Primary(), Options{
		TokenLength:    cfg.TokenLength,
		SecureTokenTTL: cfg.SecureTokenTTL,
		Logger:         logger,
		Metrics:        metrics,
		Cache:          cache,
	})
	s.conn = conn
	s.replica = conn.Replica
	if len(cfg.PostgresReplicaURLs) > 0 {
		checkCtx, cancel := context.WithCancel(context.Background())
		conn.StartHealthCheckRoutine(checkCtx, cfg.ReplicaHealthInterval)
		s.stopCheck = cancel
	}
	return s, nil
}

// NewWithDB wraps an open database. Reads and writes all use db.
func NewWithDB(db *sql.DB, opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if opts.SecureTokenTTL <= 0 {
		opts.SecureTokenTTL = storage.DefaultConfig().SecureTokenTTL
	}
	return &Store{
		primary:   db,
		replica:   func() *sql.DB { return db },
		cache:     opts.Cache,
		tokens:    auth.NewTokenGenerator(opts.TokenLength),
		clock:     opts.Clock,
		secureTTL: opts.SecureTokenTTL,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Connections exposes the connection manager; nil when built with NewWithDB
func (s *Store) Connections() *ConnectionManager {
	return s.conn
}

// Cache exposes the Redis client; nil when no cache is configured
func (s *Store) Cache() *RedisClient {
	return s.cache
}

// HealthCheck implements storage.HealthChecker
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.conn != nil {
		return s.conn.HealthCheck(ctx)
	}
	return s.primary.PingContext(ctx)
}

// Close implements storage.Storage
func (s *Store) Close() error {
	if s.stopCheck != nil {
		s.stopCheck()
	}
	var errs []error
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	return errors.Join(errs...)
}

// fail records a backend failure and wraps it as ErrStoreUnavailable
func (s *Store) fail(op string, err error) error {
	s.metrics.StorageError(op, backendName)
	s.logger.WithField("operation", op).WithError(err).Error("storage failure")
	return fmt.Errorf("%w: %s: %v", auth.ErrStoreUnavailable, op, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *Store) now() int64 {
	return s.clock.Now().Unix()
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const userColumns = `u.id, u.name, u.email, u.password_hash, u.avatar_kind, u.avatar_url, u.remember_me, u.joined_at`

func scanUser(row rowScanner, extra ...interface{}) (auth.User, error) {
	var u auth.User
	var avatarKind string
	var joined int64

	dest := []interface{}{
		&u.ID, &u.Name, &u.Email, &u.PasswordHash,
		&avatarKind, &u.Avatar.URL, &u.RememberMe, &joined,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return auth.User{}, err
	}
	u.Avatar.Kind = auth.AvatarKind(avatarKind)
	u.JoinedAt = fromUnix(joined)
	return u, nil
}
