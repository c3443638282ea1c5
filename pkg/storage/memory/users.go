package memory

import (
	"context"
	"time"

	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/storage"
)

// CreateUser implements storage.UserWriter
func (s *Store) CreateUser(ctx context.Context, u auth.User) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[nameKey(u.Name)]; taken {
		return auth.User{}, auth.ErrConflict
	}

	s.nextUserID++
	u.ID = s.nextUserID
	if u.JoinedAt.IsZero() {
		u.JoinedAt = s.clock.Now().UTC().Truncate(time.Second)
	}
	if u.Avatar.Kind == "" {
		u.Avatar.Kind = auth.AvatarNone
	}

	s.users[u.ID] = &userRecord{user: u}
	s.byName[nameKey(u.Name)] = u.ID
	return u, nil
}

// UserByName implements storage.UserReader
func (s *Store) UserByName(ctx context.Context, name string) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[nameKey(name)]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return s.users[id].user, nil
}

// UserByID implements storage.UserReader
func (s *Store) UserByID(ctx context.Context, id int64) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return rec.user, nil
}

// UpdateCredentials implements storage.UserWriter
func (s *Store) UpdateCredentials(ctx context.Context, userID int64, name, passwordHash string) (auth.SessionPair, error) {
	insecure, err := s.tokens.SessionToken()
	if err != nil {
		return auth.SessionPair{}, err
	}
	secure, err := s.tokens.SessionToken()
	if err != nil {
		return auth.SessionPair{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return auth.SessionPair{}, auth.ErrNotFound
	}
	if other, taken := s.byName[nameKey(name)]; taken && other != userID {
		return auth.SessionPair{}, auth.ErrConflict
	}

	delete(s.byName, nameKey(rec.user.Name))
	s.byName[nameKey(name)] = userID

	u := rec.user
	u.Name = name
	u.PasswordHash = passwordHash
	rec.user = u

	s.setSlot(rec, false, auth.HashToken(insecure))
	s.setSlot(rec, true, auth.HashToken(secure))
	return auth.SessionPair{Insecure: insecure, Secure: secure}, nil
}

// UpdateProfile implements storage.UserWriter
func (s *Store) UpdateProfile(ctx context.Context, userID int64, update storage.ProfileUpdate) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}

	u := rec.user
	if update.Email != nil {
		u = u.WithEmail(*update.Email)
	}
	if update.Avatar != nil {
		u = u.WithAvatar(*update.Avatar)
	}
	if update.RememberMe != nil {
		u.RememberMe = *update.RememberMe
	}
	rec.user = u
	return u, nil
}

// DeleteUser implements storage.UserWriter
func (s *Store) DeleteUser(ctx context.Context, userID int64, keepPastes bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return auth.ErrNotFound
	}

	delete(s.sessions, rec.insecureDigest)
	delete(s.sessions, rec.secureDigest)
	delete(s.byName, nameKey(rec.user.Name))
	delete(s.users, userID)

	for digest, tok := range s.apiTokens {
		if tok.OwnerID == userID {
			delete(s.apiTokens, digest)
		}
	}

	for id, p := range s.pastes {
		if p.Creator == nil || *p.Creator != userID {
			continue
		}
		if keepPastes {
			p.Creator = nil
			s.pastes[id] = p
		} else {
			delete(s.pastes, id)
		}
	}
	return nil
}
