package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/platinummonkey/pastebin/pkg/access"
	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/storage"
)

const pasteColumns = `id, creator_id, visibility, title, content, syntax, tags, folder, created_at, modified_at`

func scanPaste(row rowScanner) (storage.Paste, error) {
	var p storage.Paste
	var creator sql.NullInt64
	var visibility int
	var created, modified int64

	err := row.Scan(&p.ID, &creator, &visibility, &p.Title, &p.Content, &p.Syntax, &p.Tags, &p.Folder, &created, &modified)
	if err != nil {
		return storage.Paste{}, err
	}
	if creator.Valid {
		id := creator.Int64
		p.Creator = &id
	}
	p.Visibility = access.Visibility(visibility)
	p.CreatedAt = fromUnix(created)
	p.ModifiedAt = fromUnix(modified)
	return p, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// CreatePaste implements storage.PasteWriter
func (s *Store) CreatePaste(ctx context.Context, p storage.Paste) error {
	tx, err := s.primary.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("create_paste", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM pastes WHERE id = $1`, p.ID).Scan(&exists)
	if err == nil {
		return auth.ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return s.fail("create_paste", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pastes (`+pasteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, nullableID(p.Creator), int(p.Visibility), p.Title, p.Content, p.Syntax, p.Tags, p.Folder,
		p.CreatedAt.Unix(), p.ModifiedAt.Unix())
	if isUniqueViolation(err) {
		return auth.ErrConflict
	}
	if err != nil {
		return s.fail("create_paste", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return auth.ErrConflict
		}
		return s.fail("create_paste", err)
	}
	return nil
}

// GetPaste implements storage.PasteReader. Reads through the Redis cache
// when one is attached; cache errors fall back to the database.
func (s *Store) GetPaste(ctx context.Context, id string) (storage.Paste, error) {
	if s.cache != nil {
		p, ok, err := s.cache.GetPaste(ctx, id)
		if err != nil {
			s.logger.WithField("paste", id).WithError(err).Warn("paste cache read failed")
		}
		s.metrics.CacheHit("paste", ok)
		if ok {
			return p, nil
		}
	}

	p, err := scanPaste(s.primary.QueryRowContext(ctx, `SELECT `+pasteColumns+` FROM pastes WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Paste{}, auth.ErrNotFound
	}
	if err != nil {
		return storage.Paste{}, s.fail("get_paste", err)
	}

	if s.cache != nil {
		if err := s.cache.SetPaste(ctx, p); err != nil {
			s.logger.WithField("paste", id).WithError(err).Warn("paste cache write failed")
		}
	}
	return p, nil
}

// UpdatePaste implements storage.PasteWriter
func (s *Store) UpdatePaste(ctx context.Context, p storage.Paste) error {
	res, err := s.primary.ExecContext(ctx, `
		UPDATE pastes
		SET title = $1, content = $2, visibility = $3, syntax = $4, tags = $5, folder = $6, modified_at = $7
		WHERE id = $8
	`, p.Title, p.Content, int(p.Visibility), p.Syntax, p.Tags, p.Folder, p.ModifiedAt.Unix(), p.ID)
	if err != nil {
		return s.fail("update_paste", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.fail("update_paste", err)
	}
	s.invalidate(ctx, p.ID)
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// DeletePaste implements storage.PasteWriter
func (s *Store) DeletePaste(ctx context.Context, id string) (bool, error) {
	res, err := s.primary.ExecContext(ctx, `DELETE FROM pastes WHERE id = $1`, id)
	if err != nil {
		return false, s.fail("delete_paste", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.fail("delete_paste", err)
	}
	s.invalidate(ctx, id)
	return n > 0, nil
}

// ListPastes implements storage.PasteReader. Listings may lag behind
// writes and are served from a replica when one is configured.
func (s *Store) ListPastes(ctx context.Context, q storage.PasteQuery) ([]storage.Paste, error) {
	var conds, alternatives []string
	var args []interface{}

	if q.CreatorID != nil {
		args = append(args, *q.CreatorID)
		conds = append(conds, fmt.Sprintf("creator_id = $%d", len(args)))
	}
	if len(q.Visibilities) > 0 {
		placeholders := make([]string, 0, len(q.Visibilities))
		for _, v := range q.Visibilities {
			args = append(args, int(v))
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		alternatives = append(alternatives, "visibility IN ("+strings.Join(placeholders, ", ")+")")
	}
	if q.OrOwnedBy != nil {
		args = append(args, *q.OrOwnedBy)
		alternatives = append(alternatives, fmt.Sprintf("creator_id = $%d", len(args)))
	}
	if len(alternatives) == 0 {
		return []storage.Paste{}, nil
	}
	conds = append(conds, "("+strings.Join(alternatives, " OR ")+")")

	query := `SELECT ` + pasteColumns + ` FROM pastes WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at DESC, id ASC`

	limit := q.Limit
	if limit <= 0 && q.Offset > 0 {
		limit = math.MaxInt32
	}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.replica().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail("list_pastes", err)
	}
	defer rows.Close()

	pastes := make([]storage.Paste, 0)
	for rows.Next() {
		p, err := scanPaste(rows)
		if err != nil {
			return nil, s.fail("list_pastes", err)
		}
		pastes = append(pastes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list_pastes", err)
	}
	return pastes, nil
}

func (s *Store) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePaste(ctx, id); err != nil {
		s.logger.WithField("paste", id).WithError(err).Warn("paste cache invalidation failed")
	}
}
