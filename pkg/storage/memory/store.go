package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/storage"
)

type userRecord struct {
	user           auth.User
	insecureDigest string
	secureDigest   string
	secureExpires  time.Time
}

type sessionRecord struct {
	userID int64
	secure bool
}

// Store keeps everything in maps behind one mutex. Secrets are stored as
// digests exactly as the SQL backend does.
type Store struct {
	mu        sync.RWMutex
	clock     clockwork.Clock
	tokens    *auth.TokenGenerator
	secureTTL time.Duration

	nextUserID int64
	users      map[int64]*userRecord
	byName     map[string]int64
	sessions   map[string]sessionRecord
	apiTokens  map[string]auth.APIToken
	pastes     map[string]storage.Paste
}

var _ storage.Storage = (*Store)(nil)

// New creates an empty store. A nil clock uses the real clock.
func New(clock clockwork.Clock, cfg storage.Config) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ttl := cfg.SecureTokenTTL
	if ttl <= 0 {
		ttl = storage.DefaultConfig().SecureTokenTTL
	}
	return &Store{
		clock:     clock,
		tokens:    auth.NewTokenGenerator(cfg.TokenLength),
		secureTTL: ttl,
		users:     make(map[int64]*userRecord),
		byName:    make(map[string]int64),
		sessions:  make(map[string]sessionRecord),
		apiTokens: make(map[string]auth.APIToken),
		pastes:    make(map[string]storage.Paste),
	}
}

func nameKey(name string) string {
	return strings.ToLower(name)
}

// VerifyToken implements auth.Store
func (s *Store) VerifyToken(ctx context.Context, raw string) (auth.Identity, error) {
	digest := auth.HashToken(raw)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if sess, ok := s.sessions[digest]; ok {
		rec, ok := s.users[sess.userID]
		if !ok {
			return auth.Identity{}, auth.ErrUnknownCredential
		}
		if sess.secure && !s.clock.Now().Before(rec.secureExpires) {
			return auth.Identity{}, auth.ErrUnknownCredential
		}
		return auth.NewSessionIdentity(rec.user, sess.secure, digest), nil
	}

	if tok, ok := s.apiTokens[digest]; ok {
		rec, ok := s.users[tok.OwnerID]
		if !ok {
			return auth.Identity{}, auth.ErrUnknownCredential
		}
		return auth.NewAPITokenIdentity(rec.user, tok, digest), nil
	}

	return auth.Identity{}, auth.ErrUnknownCredential
}

// FindUserByCredential implements auth.Store
func (s *Store) FindUserByCredential(ctx context.Context, raw string) (auth.User, error) {
	identity, err := s.VerifyToken(ctx, raw)
	if err != nil {
		return auth.User{}, err
	}
	if !identity.IsSessionToken() {
		return auth.User{}, auth.ErrUnknownCredential
	}
	return identity.Owner(), nil
}

// RotateSessionToken implements auth.Store
func (s *Store) RotateSessionToken(ctx context.Context, userID int64, secure bool) (string, error) {
	raw, err := s.tokens.SessionToken()
	if err != nil {
		return "", fmt.Errorf("%w: %v", auth.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return "", auth.ErrNotFound
	}
	s.setSlot(rec, secure, auth.HashToken(raw))
	return raw, nil
}

// setSlot replaces one session slot; callers hold the write lock
func (s *Store) setSlot(rec *userRecord, secure bool, digest string) {
	if secure {
		delete(s.sessions, rec.secureDigest)
		rec.secureDigest = digest
		rec.secureExpires = s.clock.Now().Add(s.secureTTL)
	} else {
		delete(s.sessions, rec.insecureDigest)
		rec.insecureDigest = digest
	}
	if digest != "" {
		s.sessions[digest] = sessionRecord{userID: rec.user.ID, secure: secure}
	}
}

// CreateAPIToken implements auth.Store
func (s *Store) CreateAPIToken(ctx context.Context, ownerID int64, name string, mask auth.Mask) (auth.APIToken, error) {
	secret, ident, err := s.tokens.APIToken()
	if err != nil {
		return auth.APIToken{}, fmt.Errorf("%w: %v", auth.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[ownerID]; !ok {
		return auth.APIToken{}, auth.ErrNotFound
	}

	tok := auth.APIToken{
		Ident:     ident,
		OwnerID:   ownerID,
		Name:      name,
		Mask:      mask,
		CreatedAt: s.clock.Now().UTC().Truncate(time.Second),
	}
	s.apiTokens[auth.HashToken(secret)] = tok

	tok.Secret = secret
	return tok, nil
}

// EditAPIToken implements auth.Store
func (s *Store) EditAPIToken(ctx context.Context, ownerID int64, ident string, name *string, mask *auth.Mask) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	digest, tok, ok := s.findToken(ownerID, ident)
	if !ok {
		return false, nil
	}
	if name != nil {
		tok.Name = *name
	}
	if mask != nil {
		tok.Mask = *mask
	}
	s.apiTokens[digest] = tok
	return true, nil
}

// DeleteAPIToken implements auth.Store
func (s *Store) DeleteAPIToken(ctx context.Context, ownerID int64, ident string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	digest, _, ok := s.findToken(ownerID, ident)
	if !ok {
		return false, nil
	}
	delete(s.apiTokens, digest)
	return true, nil
}

func (s *Store) findToken(ownerID int64, ident string) (string, auth.APIToken, bool) {
	for digest, tok := range s.apiTokens {
		if tok.OwnerID == ownerID && tok.Ident == ident {
			return digest, tok, true
		}
	}
	return "", auth.APIToken{}, false
}

// ListAPITokens implements storage.TokenLister
func (s *Store) ListAPITokens(ctx context.Context, ownerID int64) ([]auth.APIToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]auth.APIToken, 0)
	for _, tok := range s.apiTokens {
		if tok.OwnerID == ownerID {
			out = append(out, tok)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Ident < out[j].Ident
	})
	return out, nil
}

// SweepExpiredSecureTokens implements storage.SessionSweeper
func (s *Store) SweepExpiredSecureTokens(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var swept int64
	for _, rec := range s.users {
		if rec.secureDigest != "" && !now.Before(rec.secureExpires) {
			delete(s.sessions, rec.secureDigest)
			rec.secureDigest = ""
			rec.secureExpires = time.Time{}
			swept++
		}
	}
	return swept, nil
}

// HealthCheck implements storage.HealthChecker
func (s *Store) HealthCheck(ctx context.Context) error {
	return nil
}

// Close implements storage.Storage
func (s *Store) Close() error {
	return nil
}
