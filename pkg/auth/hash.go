package auth

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/platinummonkey/pastebin/pkg/async"
	"github.com/platinummonkey/pastebin/pkg/observability"
)

const (
	// DefaultHashIterations matches what existing stored hashes were derived with
	DefaultHashIterations = 100000
	hashKeyLength         = sha512.Size
)

var hashPattern = regexp.MustCompile(`^[0-9A-Fa-f]{128}$`)

// HashPassword derives the stored form of a password. The salt is the
// SHA-512 of the username, so renaming a user requires re-hashing.
func HashPassword(password, username string, iterations int) string {
	salt := sha512.Sum512([]byte(username))
	key := pbkdf2.Key([]byte(password), salt[:], iterations, hashKeyLength, sha512.New)
	return hex.EncodeToString(key)
}

// IsHash reports whether s already looks like a HashPassword output
func IsHash(s string) bool {
	return hashPattern.MatchString(s)
}

// Hasher runs HashPassword on a bounded worker pool so a burst of logins
// cannot starve request handling
type Hasher struct {
	iterations int
	pool       *async.WorkerPool
	metrics    *observability.Metrics
}

// NewHasher creates a Hasher. iterations <= 0 uses DefaultHashIterations.
func NewHasher(pool *async.WorkerPool, iterations int, metrics *observability.Metrics) *Hasher {
	if iterations <= 0 {
		iterations = DefaultHashIterations
	}
	return &Hasher{iterations: iterations, pool: pool, metrics: metrics}
}

// Hash derives the password hash on the pool and waits for it
func (h *Hasher) Hash(ctx context.Context, password, username string) (string, error) {
	var digest string
	start := time.Now()
	err := h.pool.Do(ctx, func(context.Context) error {
		digest = HashPassword(password, username, h.iterations)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	h.metrics.ObserveHash(time.Since(start))
	return digest, nil
}

// Normalize hashes password unless it is already a hash. Callers that
// accept either form (stored-hash re-submission) go through here.
func (h *Hasher) Normalize(ctx context.Context, password, username string) (string, error) {
	if IsHash(password) {
		return password, nil
	}
	return h.Hash(ctx, password, username)
}

// Iterations returns the PBKDF2 iteration count in use
func (h *Hasher) Iterations() int {
	return h.iterations
}
