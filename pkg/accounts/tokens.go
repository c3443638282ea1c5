package accounts

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/platinummonkey/pastebin/pkg/auth"
)

func (s *Service) validateTokenName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: token name is required", auth.ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > s.cfg.TokenNameMaxLength {
		return fmt.Errorf("%w: token name longer than %d characters", auth.ErrInvalidInput, s.cfg.TokenNameMaxLength)
	}
	return nil
}

// ListTokens returns the caller's API tokens without secrets
func (s *Service) ListTokens(ctx context.Context, id auth.Identity) ([]auth.APIToken, error) {
	if err := requireSecure(id); err != nil {
		return nil, err
	}
	return s.store.ListAPITokens(ctx, id.Owner().ID)
}

// CreateToken issues an API token. The returned token is the only place
// the secret ever appears.
func (s *Service) CreateToken(ctx context.Context, id auth.Identity, name string, mask auth.Mask) (auth.APIToken, error) {
	if err := requireSecure(id); err != nil {
		return auth.APIToken{}, err
	}
	if err := s.validateTokenName(name); err != nil {
		return auth.APIToken{}, err
	}
	if !mask.Valid() {
		return auth.APIToken{}, auth.ErrInvalidMask
	}

	tok, err := s.store.CreateAPIToken(ctx, id.Owner().ID, name, mask)
	if err != nil {
		return auth.APIToken{}, err
	}

	s.metrics.TokenOperation("create")
	s.logger.WithFields(map[string]interface{}{
		"user_id":     id.Owner().ID,
		"token":       tok.Ident,
		"permissions": tok.Permissions().String(),
	}).Info("api token created")
	return tok, nil
}

// EditToken renames and/or re-scopes one of the caller's tokens by ident
func (s *Service) EditToken(ctx context.Context, id auth.Identity, ident string, name *string, mask *auth.Mask) error {
	if err := requireSecure(id); err != nil {
		return err
	}
	if name == nil && mask == nil {
		return fmt.Errorf("%w: nothing to change", auth.ErrInvalidInput)
	}
	if name != nil {
		if err := s.validateTokenName(*name); err != nil {
			return err
		}
	}
	if mask != nil && !mask.Valid() {
		return auth.ErrInvalidMask
	}

	ok, err := s.store.EditAPIToken(ctx, id.Owner().ID, ident, name, mask)
	if err != nil {
		return err
	}
	if !ok {
		return auth.ErrNotFound
	}

	s.metrics.TokenOperation("edit")
	return nil
}

// DeleteToken revokes one of the caller's tokens by ident
func (s *Service) DeleteToken(ctx context.Context, id auth.Identity, ident string) error {
	if err := requireSecure(id); err != nil {
		return err
	}

	ok, err := s.store.DeleteAPIToken(ctx, id.Owner().ID, ident)
	if err != nil {
		return err
	}
	if !ok {
		return auth.ErrNotFound
	}

	s.metrics.TokenOperation("delete")
	s.logger.WithFields(map[string]interface{}{
		"user_id": id.Owner().ID,
		"token":   ident,
	}).Info("api token deleted")
	return nil
}
