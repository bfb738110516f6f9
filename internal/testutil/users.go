// Package testutil provides in-memory stores and fixtures for tests.
package testutil

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"onboarding/internal/domain/auth"
	"onboarding/internal/domain/users"
)

// UserStore is an in-memory users.StoreAPI. Ids are decimal strings prefixed
// with "u"; anything else is rejected as malformed.
type UserStore struct {
	mu      sync.Mutex
	nextID  int
	records map[string]users.User
	PingErr error
}

func NewUserStore() *UserStore {
	return &UserStore{records: map[string]users.User{}}
}

func validUserID(id string) bool {
	if len(id) < 2 || id[0] != 'u' {
		return false
	}
	_, err := strconv.Atoi(id[1:])
	return err == nil
}

func (s *UserStore) Insert(_ context.Context, user users.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.Email == user.Email {
			return "", users.ErrDuplicateEmail
		}
	}
	s.nextID++
	user.ID = "u" + strconv.Itoa(s.nextID)
	s.records[user.ID] = user
	return user.ID, nil
}

func (s *UserStore) sorted() []users.User {
	out := make([]users.User, 0, len(s.records))
	for _, u := range s.records {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		a, _ := strconv.Atoi(out[i].ID[1:])
		b, _ := strconv.Atoi(out[j].ID[1:])
		return a < b
	})
	return out
}

func (s *UserStore) List(_ context.Context, skip, limit int) ([]users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sorted()
	if skip >= len(all) {
		return nil, nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	return all[skip:end], nil
}

func (s *UserStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.records)), nil
}

func (s *UserStore) ListActive(context.Context) ([]users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []users.User
	for _, u := range s.sorted() {
		if u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (users.User, error) {
	if !validUserID(id) {
		return users.User{}, users.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.records[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.records {
		if u.Email == email {
			return u, nil
		}
	}
	return users.User{}, users.ErrNotFound
}

func (s *UserStore) Apply(_ context.Context, id string, patch users.Patch) error {
	if !validUserID(id) {
		return users.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.records[id]
	if !ok {
		return users.ErrNotFound
	}
	if patch.Profile.Email != nil {
		for otherID, other := range s.records {
			if otherID != id && other.Email == *patch.Profile.Email {
				return users.ErrDuplicateEmail
			}
		}
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	u = users.ApplyChanges(u, patch.Profile)
	u.UpdatedAt = patch.UpdatedAt
	s.records[id] = u
	return nil
}

func (s *UserStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.records[id]
	if !ok {
		return users.ErrNotFound
	}
	u.LastLogin = &at
	s.records[id] = u
	return nil
}

func (s *UserStore) Ping(context.Context) error {
	return s.PingErr
}

// Seed inserts a user with a hashed password and returns it.
func (s *UserStore) Seed(name, email, password string, role auth.Role, active bool) users.User {
	hash, err := auth.HashPassword(password)
	if err != nil {
		panic(err)
	}
	now := time.Now().UTC()
	u := users.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
		Status:       users.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := s.Insert(context.Background(), u)
	if err != nil {
		panic(err)
	}
	u.ID = id
	return u
}
