// Package memstore is an in-process UserStore used for local development
// and tests. Aggregates are deep-copied on the way in and out so callers
// never share state with the store.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
)

// Store keeps users in memory with the same uniqueness and optimistic
// concurrency rules as the persistent stores.
type Store struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	now   func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{users: make(map[string]*domain.User), now: time.Now}
}

// Seed inserts u as-is, bypassing validation. Used to load legacy-shaped
// documents in tests and fixtures.
func (s *Store) Seed(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u.Clone()
}

func (s *Store) Load(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	return u.Clone(), nil
}

func (s *Store) LoadByAccountNumber(_ context.Context, accountNumber string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		for _, n := range accountNumbers(u) {
			if n == accountNumber {
				return u.Clone(), nil
			}
		}
	}
	return nil, &domain.ErrNotFound{Resource: "account", ID: accountNumber}
}

func (s *Store) FindByLogin(_ context.Context, email, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	for _, u := range s.users {
		if (email != "" && u.Email == email) || (username != "" && u.Username == username) {
			return u.Clone(), nil
		}
	}
	id := email
	if id == "" {
		id = username
	}
	return nil, &domain.ErrNotFound{Resource: "user", ID: id}
}

// List returns every user ordered by creation time.
func (s *Store) List(_ context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return &domain.ErrDuplicate{Key: "id"}
	}
	if err := s.checkUnique(u); err != nil {
		return err
	}
	u.Version = 1
	u.UpdatedAt = s.now().UTC()
	s.users[u.ID] = u.Clone()
	return nil
}

// Save replaces the stored document when its version matches u.Version.
func (s *Store) Save(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.users[u.ID]
	if !ok {
		return &domain.ErrNotFound{Resource: "user", ID: u.ID}
	}
	if cur.Version != u.Version {
		return &domain.ErrConflict{Message: "user " + u.ID + " was modified concurrently"}
	}
	if err := s.checkUnique(u); err != nil {
		return err
	}
	u.Version++
	u.UpdatedAt = s.now().UTC()
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

// checkUnique must be called with mu held.
func (s *Store) checkUnique(u *domain.User) error {
	mine := accountNumbers(u)
	for id, other := range s.users {
		if id == u.ID {
			continue
		}
		if u.Email != "" && other.Email == u.Email {
			return &domain.ErrDuplicate{Key: "email"}
		}
		if u.Username != "" && other.Username == u.Username {
			return &domain.ErrDuplicate{Key: "username"}
		}
		for _, theirs := range accountNumbers(other) {
			for _, n := range mine {
				if n == theirs {
					return &domain.ErrDuplicate{Key: "account_number"}
				}
			}
		}
	}
	return nil
}

func accountNumbers(u *domain.User) []string {
	var out []string
	for _, t := range domain.AccountTypes {
		if a := u.Slot(t); a != nil && a.AccountNumber != "" {
			out = append(out, a.AccountNumber)
		}
	}
	return out
}
