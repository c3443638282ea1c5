package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const (
	// SecretLength is the number of random bytes in a session token or API token secret
	SecretLength = 32
	// IdentLength is the number of random bytes in an API token ident
	IdentLength = 6
	// MaxCredentialLength bounds what is even looked up in the store
	MaxCredentialLength = 256

	idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// TokenGenerator generates and validates credentials
type TokenGenerator struct {
	secretLength int
}

// NewTokenGenerator creates a new token generator. A non-positive
// secretLength falls back to SecretLength.
func NewTokenGenerator(secretLength int) *TokenGenerator {
	if secretLength <= 0 {
		secretLength = SecretLength
	}
	return &TokenGenerator{secretLength: secretLength}
}

// SessionToken creates a new random session token
// Format: base64url(secretLength random bytes)
func (tg *TokenGenerator) SessionToken() (string, error) {
	return tg.randomString(tg.secretLength)
}

// APIToken creates a new API token secret and its public ident
func (tg *TokenGenerator) APIToken() (secret string, ident string, err error) {
	secret, err = tg.randomString(tg.secretLength)
	if err != nil {
		return "", "", err
	}
	identBytes := make([]byte, IdentLength)
	if _, err := rand.Read(identBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return secret, hex.EncodeToString(identBytes), nil
}

// PasteID creates a random alphanumeric paste id of length n
func (tg *TokenGenerator) PasteID(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(idAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate paste id: %w", err)
		}
		b.WriteByte(idAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// HashToken computes the SHA256 hash of a credential for storage and lookup
func (tg *TokenGenerator) HashToken(token string) string {
	return HashToken(token)
}

func (tg *TokenGenerator) randomString(n int) (string, error) {
	randomBytes := make([]byte, n)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// HashToken computes the SHA256 hash of a credential
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateCredentialFormat rejects anything that cannot be a credential:
// empty, oversized, or outside the base64url alphabet.
func ValidateCredentialFormat(token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty", ErrMalformedCredential)
	}
	if len(token) > MaxCredentialLength {
		return fmt.Errorf("%w: too long", ErrMalformedCredential)
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return fmt.Errorf("%w: invalid character at %d", ErrMalformedCredential, i)
		}
	}
	return nil
}
