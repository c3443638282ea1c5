package accounts

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/observability"
	"github.com/platinummonkey/pastebin/pkg/storage"
)

// Config bounds user input
type Config struct {
	NameMinLength      int
	NameMaxLength      int
	TokenNameMaxLength int
}

// DefaultConfig returns the default account limits
func DefaultConfig() Config {
	return Config{
		NameMinLength:      3,
		NameMaxLength:      32,
		TokenNameMaxLength: 64,
	}
}

// Service owns the account lifecycle: signup, login, credential changes
// with session rotation, profile edits, API token management and deletion.
type Service struct {
	store   storage.AccountStore
	hasher  *auth.Hasher
	cfg     Config
	logger  *observability.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
}

// NewService creates an account service. Nil logger and clock get defaults.
func NewService(store storage.AccountStore, hasher *auth.Hasher, cfg Config, logger *observability.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	def := DefaultConfig()
	if cfg.NameMinLength <= 0 {
		cfg.NameMinLength = def.NameMinLength
	}
	if cfg.NameMaxLength < cfg.NameMinLength {
		cfg.NameMaxLength = def.NameMaxLength
	}
	if cfg.TokenNameMaxLength <= 0 {
		cfg.TokenNameMaxLength = def.TokenNameMaxLength
	}
	return &Service{
		store:   store,
		hasher:  hasher,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}
}

// SignupRequest carries a new account. Password may be raw or already a
// password hash.
type SignupRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// LoginRequest selects which session slot to issue
type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Secure   bool   `json:"secure"`
	Remember bool   `json:"remember"`
}

// LoginResult is the issued session token and the user it belongs to
type LoginResult struct {
	User   auth.User
	Token  string
	Secure bool
}

// CredentialChange renames a user and/or sets a new password. The current
// password is always required.
type CredentialChange struct {
	CurrentPassword string
	NewName         *string
	NewPassword     *string
}

func (s *Service) validateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < s.cfg.NameMinLength || n > s.cfg.NameMaxLength {
		return fmt.Errorf("%w: name must be %d to %d characters", auth.ErrInvalidInput, s.cfg.NameMinLength, s.cfg.NameMaxLength)
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: name must not contain whitespace", auth.ErrInvalidInput)
		}
	}
	return nil
}

func requireSecure(id auth.Identity) error {
	if !id.IsSecureSessionToken() {
		return auth.ErrInsufficientGate
	}
	return nil
}

// checkPassword compares in constant time. The salt is the stored name so
// logins are case-insensitive on the name.
func (s *Service) checkPassword(ctx context.Context, user auth.User, password string) error {
	if password == "" {
		return auth.ErrInvalidCredentials
	}
	candidate, err := s.hasher.Normalize(ctx, password, user.Name)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(candidate)), []byte(strings.ToLower(user.PasswordHash))) != 1 {
		return auth.ErrInvalidCredentials
	}
	return nil
}

// Signup creates an account. Names are unique ignoring letter case.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (auth.User, error) {
	if err := s.validateName(req.Name); err != nil {
		return auth.User{}, err
	}
	if req.Password == "" {
		return auth.User{}, fmt.Errorf("%w: password is required", auth.ErrInvalidInput)
	}
	email := strings.TrimSpace(req.Email)
	if email != "" {
		if err := validateEmail(email); err != nil {
			return auth.User{}, err
		}
	}

	digest, err := s.hasher.Normalize(ctx, req.Password, req.Name)
	if err != nil {
		return auth.User{}, err
	}

	u, err := s.store.CreateUser(ctx, auth.User{
		Name:         req.Name,
		Email:        email,
		PasswordHash: digest,
		Avatar:       auth.Avatar{Kind: auth.AvatarNone},
	})
	if err != nil {
		return auth.User{}, err
	}

	s.logger.WithField("user_id", u.ID).Info("user signed up")
	return u, nil
}

// Login checks the password and rotates the requested session slot. The
// previous token in that slot stops working.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	user, err := s.store.UserByName(ctx, req.Name)
	if errors.Is(err, auth.ErrNotFound) {
		return LoginResult{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.checkPassword(ctx, user, req.Password); err != nil {
		return LoginResult{}, err
	}

	if user.RememberMe != req.Remember {
		remember := req.Remember
		user, err = s.store.UpdateProfile(ctx, user.ID, storage.ProfileUpdate{RememberMe: &remember})
		if err != nil {
			return LoginResult{}, err
		}
	}

	token, err := s.store.RotateSessionToken(ctx, user.ID, req.Secure)
	if err != nil {
		return LoginResult{}, err
	}

	s.metrics.TokenOperation("login")
	s.logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"secure":  req.Secure,
	}).Info("user logged in")

	return LoginResult{User: user, Token: token, Secure: req.Secure}, nil
}

// Logout rotates both session slots without handing out the new tokens,
// ending every session of the user
func (s *Service) Logout(ctx context.Context, id auth.Identity) error {
	if !id.IsSessionToken() {
		return auth.ErrInsufficientGate
	}
	for _, secure := range []bool{false, true} {
		if _, err := s.store.RotateSessionToken(ctx, id.Owner().ID, secure); err != nil {
			return err
		}
	}
	s.metrics.TokenOperation("logout")
	return nil
}

// Me reloads the caller's account
func (s *Service) Me(ctx context.Context, id auth.Identity) (auth.User, error) {
	if !id.IsSessionToken() {
		return auth.User{}, auth.ErrInsufficientGate
	}
	return s.store.UserByID(ctx, id.Owner().ID)
}

// Refresh returns a copy of id bound to the stored account. id itself
// keeps the owner it was resolved with.
func (s *Service) Refresh(ctx context.Context, id auth.Identity) (auth.Identity, error) {
	u, err := s.Me(ctx, id)
	if err != nil {
		return auth.Identity{}, err
	}
	return id.WithOwner(u), nil
}

// ChangeCredentials renames and/or re-passwords the caller. Both change the
// hash, so both session slots are rotated in the same store call and the
// returned pair replaces the caller's cookies.
//
// Renaming needs the raw password: the hash is salted with the name.
func (s *Service) ChangeCredentials(ctx context.Context, id auth.Identity, change CredentialChange) (auth.SessionPair, error) {
	if err := requireSecure(id); err != nil {
		return auth.SessionPair{}, err
	}
	if change.NewName == nil && change.NewPassword == nil {
		return auth.SessionPair{}, fmt.Errorf("%w: nothing to change", auth.ErrInvalidInput)
	}

	user, err := s.store.UserByID(ctx, id.Owner().ID)
	if err != nil {
		return auth.SessionPair{}, err
	}
	if err := s.checkPassword(ctx, user, change.CurrentPassword); err != nil {
		return auth.SessionPair{}, err
	}

	name := user.Name
	if change.NewName != nil {
		if err := s.validateName(*change.NewName); err != nil {
			return auth.SessionPair{}, err
		}
		name = *change.NewName
	}

	password := change.CurrentPassword
	if change.NewPassword != nil {
		if *change.NewPassword == "" {
			return auth.SessionPair{}, fmt.Errorf("%w: password is required", auth.ErrInvalidInput)
		}
		password = *change.NewPassword
	}

	renamed := name != user.Name
	if renamed && auth.IsHash(password) {
		return auth.SessionPair{}, fmt.Errorf("%w: renaming requires the plain password", auth.ErrInvalidInput)
	}

	digest, err := s.hasher.Normalize(ctx, password, name)
	if err != nil {
		return auth.SessionPair{}, err
	}

	pair, err := s.store.UpdateCredentials(ctx, user.ID, name, digest)
	if err != nil {
		return auth.SessionPair{}, err
	}

	s.metrics.TokenOperation("rotate")
	s.logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"renamed": renamed,
	}).Info("credentials changed, sessions rotated")
	return pair, nil
}

// UpdateProfile edits email, avatar and remember-me
func (s *Service) UpdateProfile(ctx context.Context, id auth.Identity, update storage.ProfileUpdate) (auth.User, error) {
	if err := requireSecure(id); err != nil {
		return auth.User{}, err
	}
	update, err := ValidateProfile(update)
	if err != nil {
		return auth.User{}, err
	}
	return s.store.UpdateProfile(ctx, id.Owner().ID, update)
}

// DeleteAccount removes the caller with all API tokens. Pastes are kept
// with no creator when keepPastes is set.
func (s *Service) DeleteAccount(ctx context.Context, id auth.Identity, keepPastes bool) error {
	if err := requireSecure(id); err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, id.Owner().ID, keepPastes); err != nil {
		return err
	}
	s.logger.WithFields(map[string]interface{}{
		"user_id":     id.Owner().ID,
		"keep_pastes": keepPastes,
	}).Info("account deleted")
	return nil
}

// SweepExpiredSessions clears secure session slots past their TTL
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.store.SweepExpiredSecureTokens(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	s.metrics.Swept(n)
	if n > 0 {
		s.logger.WithField("swept", n).Debug("expired secure sessions cleared")
	}
	return n, nil
}
