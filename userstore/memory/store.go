// Package memory is an in-process userstore.Store for tests, examples and
// single-node development servers.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/MrEthical07/cookieauth/userstore"
)

// Store keeps accounts in maps guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*userstore.User
	byEmail map[string]string
	now     func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:    make(map[string]*userstore.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

var _ userstore.Store = (*Store)(nil)

func (s *Store) Create(_ context.Context, email, passwordHash string) (*userstore.User, error) {
	email = userstore.NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return nil, userstore.ErrEmailTaken
	}
	now := s.now()
	u := &userstore.User{
		ID:           ulid.Make().String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[u.ID] = u
	s.byEmail[email] = u.ID
	return clone(u), nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*userstore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[userstore.NormalizeEmail(email)]
	if !ok {
		return nil, userstore.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *Store) FindByID(_ context.Context, id string) (*userstore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, userstore.ErrNotFound
	}
	return clone(u), nil
}

func (s *Store) MarkVerified(_ context.Context, id string) (*userstore.User, error) {
	return s.update(id, func(u *userstore.User) { u.Verified = true })
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, passwordHash string) (*userstore.User, error) {
	return s.update(id, func(u *userstore.User) { u.PasswordHash = passwordHash })
}

func (s *Store) update(id string, mutate func(*userstore.User)) (*userstore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, userstore.ErrNotFound
	}
	mutate(u)
	u.UpdatedAt = s.now()
	return clone(u), nil
}

func clone(u *userstore.User) *userstore.User {
	c := *u
	return &c
}
