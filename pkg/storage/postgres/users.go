package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/storage"
)

// CreateUser implements storage.UserWriter
func (s *Store) CreateUser(ctx context.Context, u auth.User) (auth.User, error) {
	if u.JoinedAt.IsZero() {
		u.JoinedAt = s.clock.Now().UTC().Truncate(time.Second)
	}
	if u.Avatar.Kind == "" {
		u.Avatar.Kind = auth.AvatarNone
	}

	tx, err := s.primary.BeginTx(ctx, nil)
	if err != nil {
		return auth.User{}, s.fail("create_user", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE LOWER(name) = LOWER($1)`, u.Name).Scan(&exists)
	if err == nil {
		return auth.User{}, auth.ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, s.fail("create_user", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, avatar_kind, avatar_url, remember_me, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, u.Name, u.Email, u.PasswordHash, string(u.Avatar.Kind), u.Avatar.URL, u.RememberMe, u.JoinedAt.Unix()).Scan(&u.ID)
	if isUniqueViolation(err) {
		return auth.User{}, auth.ErrConflict
	}
	if err != nil {
		return auth.User{}, s.fail("create_user", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return auth.User{}, auth.ErrConflict
		}
		return auth.User{}, s.fail("create_user", err)
	}
	return u, nil
}

// UserByName implements storage.UserReader
func (s *Store) UserByName(ctx context.Context, name string) (auth.User, error) {
	return s.userWhere(ctx, s.primary, "user_by_name", `LOWER(u.name) = LOWER($1)`, name)
}

// UserByID implements storage.UserReader
func (s *Store) UserByID(ctx context.Context, id int64) (auth.User, error) {
	return s.userWhere(ctx, s.primary, "user_by_id", `u.id = $1`, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Store) userWhere(ctx context.Context, q querier, op, cond string, arg interface{}) (auth.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE `+cond, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, s.fail(op, err)
	}
	return u, nil
}

// UpdateCredentials implements storage.UserWriter. The rename, the new hash
// and both rotated session slots land in one transaction.
func (s *Store) UpdateCredentials(ctx context.Context, userID int64, name, passwordHash string) (auth.SessionPair, error) {
	insecure, err := s.tokens.SessionToken()
	if err != nil {
		return auth.SessionPair{}, s.fail("update_credentials", err)
	}
	secure, err := s.tokens.SessionToken()
	if err != nil {
		return auth.SessionPair{}, s.fail("update_credentials", err)
	}

	tx, err := s.primary.BeginTx(ctx, nil)
	if err != nil {
		return auth.SessionPair{}, s.fail("update_credentials", err)
	}
	defer tx.Rollback()

	var other int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE LOWER(name) = LOWER($1) AND id <> $2`, name, userID).Scan(&other)
	if err == nil {
		return auth.SessionPair{}, auth.ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return auth.SessionPair{}, s.fail("update_credentials", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET name = $1, password_hash = $2, session_digest = $3, secure_digest = $4, secure_expires_at = $5
		WHERE id = $6
	`, name, passwordHash, auth.HashToken(insecure), auth.HashToken(secure), s.clock.Now().Add(s.secureTTL).Unix(), userID)
	if isUniqueViolation(err) {
		return auth.SessionPair{}, auth.ErrConflict
	}
	if err != nil {
		return auth.SessionPair{}, s.fail("update_credentials", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return auth.SessionPair{}, s.fail("update_credentials", err)
	}
	if n == 0 {
		return auth.SessionPair{}, auth.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return auth.SessionPair{}, s.fail("update_credentials", err)
	}
	return auth.SessionPair{Insecure: insecure, Secure: secure}, nil
}

// UpdateProfile implements storage.UserWriter
func (s *Store) UpdateProfile(ctx context.Context, userID int64, update storage.ProfileUpdate) (auth.User, error) {
	var sets []string
	var args []interface{}
	if update.Email != nil {
		args = append(args, *update.Email)
		sets = append(sets, fmt.Sprintf("email = $%d", len(args)))
	}
	if update.Avatar != nil {
		args = append(args, string(update.Avatar.Kind))
		sets = append(sets, fmt.Sprintf("avatar_kind = $%d", len(args)))
		args = append(args, update.Avatar.URL)
		sets = append(sets, fmt.Sprintf("avatar_url = $%d", len(args)))
	}
	if update.RememberMe != nil {
		args = append(args, *update.RememberMe)
		sets = append(sets, fmt.Sprintf("remember_me = $%d", len(args)))
	}

	if len(sets) == 0 {
		return s.UserByID(ctx, userID)
	}

	tx, err := s.primary.BeginTx(ctx, nil)
	if err != nil {
		return auth.User{}, s.fail("update_profile", err)
	}
	defer tx.Rollback()

	args = append(args, userID)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return auth.User{}, s.fail("update_profile", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return auth.User{}, s.fail("update_profile", err)
	}
	if n == 0 {
		return auth.User{}, auth.ErrNotFound
	}

	u, err := s.userWhere(ctx, tx, "update_profile", `u.id = $1`, userID)
	if err != nil {
		return auth.User{}, err
	}

	if err := tx.Commit(); err != nil {
		return auth.User{}, s.fail("update_profile", err)
	}
	return u, nil
}

// DeleteUser implements storage.UserWriter
func (s *Store) DeleteUser(ctx context.Context, userID int64, keepPastes bool) error {
	tx, err := s.primary.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("delete_user", err)
	}
	defer tx.Rollback()

	pasteIDs, err := s.pasteIDsOf(ctx, tx, userID)
	if err != nil {
		return s.fail("delete_user", err)
	}

	if keepPastes {
		_, err = tx.ExecContext(ctx, `UPDATE pastes SET creator_id = NULL WHERE creator_id = $1`, userID)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM pastes WHERE creator_id = $1`, userID)
	}
	if err != nil {
		return s.fail("delete_user", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM api_tokens WHERE owner_id = $1`, userID); err != nil {
		return s.fail("delete_user", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return s.fail("delete_user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.fail("delete_user", err)
	}
	if n == 0 {
		return auth.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return s.fail("delete_user", err)
	}

	for _, id := range pasteIDs {
		s.invalidate(ctx, id)
	}
	return nil
}

func (s *Store) pasteIDsOf(ctx context.Context, tx *sql.Tx, userID int64) ([]string, error) {
	if s.cache == nil {
		return nil, nil
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM pastes WHERE creator_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
