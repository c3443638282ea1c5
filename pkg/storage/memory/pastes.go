package memory

import (
	"context"
	"sort"

	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/storage"
)

func clonePaste(p storage.Paste) storage.Paste {
	if p.Creator != nil {
		c := *p.Creator
		p.Creator = &c
	}
	return p
}

// CreatePaste implements storage.PasteWriter
func (s *Store) CreatePaste(ctx context.Context, p storage.Paste) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.pastes[p.ID]; taken {
		return auth.ErrConflict
	}
	s.pastes[p.ID] = clonePaste(p)
	return nil
}

// GetPaste implements storage.PasteReader
func (s *Store) GetPaste(ctx context.Context, id string) (storage.Paste, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pastes[id]
	if !ok {
		return storage.Paste{}, auth.ErrNotFound
	}
	return clonePaste(p), nil
}

// UpdatePaste implements storage.PasteWriter
func (s *Store) UpdatePaste(ctx context.Context, p storage.Paste) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.pastes[p.ID]
	if !ok {
		return auth.ErrNotFound
	}
	existing.Title = p.Title
	existing.Content = p.Content
	existing.Visibility = p.Visibility
	existing.Syntax = p.Syntax
	existing.Tags = p.Tags
	existing.Folder = p.Folder
	existing.ModifiedAt = p.ModifiedAt
	s.pastes[p.ID] = existing
	return nil
}

// DeletePaste implements storage.PasteWriter
func (s *Store) DeletePaste(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pastes[id]; !ok {
		return false, nil
	}
	delete(s.pastes, id)
	return true, nil
}

// ListPastes implements storage.PasteReader
func (s *Store) ListPastes(ctx context.Context, q storage.PasteQuery) ([]storage.Paste, error) {
	s.mu.RLock()
	matched := make([]storage.Paste, 0)
	for _, p := range s.pastes {
		if q.Matches(p) {
			matched = append(matched, clonePaste(p))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []storage.Paste{}, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}
