package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/pastebin/pkg/auth"
)

// VerifyToken implements auth.Store. Always reads the primary so a rotated
// token stops verifying immediately.
func (s *Store) VerifyToken(ctx context.Context, raw string) (auth.Identity, error) {
	digest := auth.HashToken(raw)

	query := `
		SELECT ` + userColumns + `, u.session_digest, u.secure_digest, u.secure_expires_at
		FROM users u
		WHERE u.session_digest = $1 OR u.secure_digest = $1
	`

	var sessionDigest, secureDigest sql.NullString
	var secureExpires sql.NullInt64
	user, err := scanUser(s.primary.QueryRowContext(ctx, query, digest), &sessionDigest, &secureDigest, &secureExpires)
	switch {
	case err == nil:
		if sessionDigest.Valid && sessionDigest.String == digest {
			return auth.NewSessionIdentity(user, false, digest), nil
		}
		if !secureExpires.Valid || s.now() >= secureExpires.Int64 {
			return auth.Identity{}, auth.ErrUnknownCredential
		}
		return auth.NewSessionIdentity(user, true, digest), nil
	case !errors.Is(err, sql.ErrNoRows):
		return auth.Identity{}, s.fail("verify_session", err)
	}

	query = `
		SELECT ` + userColumns + `, t.ident, t.name, t.mask, t.created_at
		FROM api_tokens t
		JOIN users u ON u.id = t.owner_id
		WHERE t.digest = $1
	`

	var tok auth.APIToken
	var created int64
	user, err = scanUser(s.primary.QueryRowContext(ctx, query, digest), &tok.Ident, &tok.Name, &tok.Mask, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, auth.ErrUnknownCredential
	}
	if err != nil {
		return auth.Identity{}, s.fail("verify_api_token", err)
	}
	tok.OwnerID = user.ID
	tok.CreatedAt = fromUnix(created)

	return auth.NewAPITokenIdentity(user, tok, digest), nil
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
		return "", s.fail("rotate_session", err)
	}
	digest := auth.HashToken(raw)

	var res sql.Result
	if secure {
		expires := s.clock.Now().Add(s.secureTTL).Unix()
		res, err = s.primary.ExecContext(ctx,
			`UPDATE users SET secure_digest = $1, secure_expires_at = $2 WHERE id = $3`,
			digest, expires, userID)
	} else {
		res, err = s.primary.ExecContext(ctx,
			`UPDATE users SET session_digest = $1 WHERE id = $2`,
			digest, userID)
	}
	if err != nil {
		return "", s.fail("rotate_session", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", s.fail("rotate_session", err)
	}
	if n == 0 {
		return "", auth.ErrNotFound
	}
	return raw, nil
}

// CreateAPIToken implements auth.Store
func (s *Store) CreateAPIToken(ctx context.Context, ownerID int64, name string, mask auth.Mask) (auth.APIToken, error) {
	secret, ident, err := s.tokens.APIToken()
	if err != nil {
		return auth.APIToken{}, s.fail("create_api_token", err)
	}
	created := s.clock.Now().UTC().Truncate(time.Second)

	tx, err := s.primary.BeginTx(ctx, nil)
	if err != nil {
		return auth.APIToken{}, s.fail("create_api_token", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = $1`, ownerID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.APIToken{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.APIToken{}, s.fail("create_api_token", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO api_tokens (digest, ident, owner_id, name, mask, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, auth.HashToken(secret), ident, ownerID, name, int(mask), created.Unix())
	if err != nil {
		return auth.APIToken{}, s.fail("create_api_token", err)
	}

	if err := tx.Commit(); err != nil {
		return auth.APIToken{}, s.fail("create_api_token", err)
	}

	return auth.APIToken{
		Ident:     ident,
		Secret:    secret,
		OwnerID:   ownerID,
		Name:      name,
		Mask:      mask,
		CreatedAt: created,
	}, nil
}

// EditAPIToken implements auth.Store
func (s *Store) EditAPIToken(ctx context.Context, ownerID int64, ident string, name *string, mask *auth.Mask) (bool, error) {
	var sets []string
	var args []interface{}
	if name != nil {
		args = append(args, *name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if mask != nil {
		args = append(args, int(*mask))
		sets = append(sets, fmt.Sprintf("mask = $%d", len(args)))
	}

	if len(sets) == 0 {
		var exists int
		err := s.primary.QueryRowContext(ctx,
			`SELECT 1 FROM api_tokens WHERE owner_id = $1 AND ident = $2`, ownerID, ident).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, s.fail("edit_api_token", err)
		}
		return true, nil
	}

	args = append(args, ownerID, ident)
	query := fmt.Sprintf(`UPDATE api_tokens SET %s WHERE owner_id = $%d AND ident = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	res, err := s.primary.ExecContext(ctx, query, args...)
	if err != nil {
		return false, s.fail("edit_api_token", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.fail("edit_api_token", err)
	}
	return n > 0, nil
}

// DeleteAPIToken implements auth.Store
func (s *Store) DeleteAPIToken(ctx context.Context, ownerID int64, ident string) (bool, error) {
	res, err := s.primary.ExecContext(ctx,
		`DELETE FROM api_tokens WHERE owner_id = $1 AND ident = $2`, ownerID, ident)
	if err != nil {
		return false, s.fail("delete_api_token", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.fail("delete_api_token", err)
	}
	return n > 0, nil
}

// ListAPITokens implements storage.TokenLister
func (s *Store) ListAPITokens(ctx context.Context, ownerID int64) ([]auth.APIToken, error) {
	rows, err := s.primary.QueryContext(ctx, `
		SELECT ident, owner_id, name, mask, created_at
		FROM api_tokens
		WHERE owner_id = $1
		ORDER BY created_at, ident
	`, ownerID)
	if err != nil {
		return nil, s.fail("list_api_tokens", err)
	}
	defer rows.Close()

	tokens := make([]auth.APIToken, 0)
	for rows.Next() {
		var tok auth.APIToken
		var created int64
		if err := rows.Scan(&tok.Ident, &tok.OwnerID, &tok.Name, &tok.Mask, &created); err != nil {
			return nil, s.fail("list_api_tokens", err)
		}
		tok.CreatedAt = fromUnix(created)
		tokens = append(tokens, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list_api_tokens", err)
	}
	return tokens, nil
}

// SweepExpiredSecureTokens implements storage.SessionSweeper
func (s *Store) SweepExpiredSecureTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.primary.ExecContext(ctx, `
		UPDATE users SET secure_digest = NULL, secure_expires_at = NULL
		WHERE secure_digest IS NOT NULL AND secure_expires_at <= $1
	`, now.Unix())
	if err != nil {
		return 0, s.fail("sweep_secure_tokens", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.fail("sweep_secure_tokens", err)
	}
	return n, nil
}
