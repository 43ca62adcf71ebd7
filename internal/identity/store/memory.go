package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"findmyid/internal/identity/models"
	"findmyid/pkg/domain"
	"findmyid/pkg/platform/sentinel"
)

// Memory is the in-process user store. Username and email uniqueness is
// enforced under the lock, mirroring the unique columns of the Postgres
// schema.
type Memory struct {
	mu         sync.RWMutex
	byID       map[domain.UserID]*models.User
	byUsername map[string]domain.UserID
	byEmail    map[string]domain.UserID
}

func NewMemory() *Memory {
	return &Memory{
		byID:       make(map[domain.UserID]*models.User),
		byUsername: make(map[string]domain.UserID),
		byEmail:    make(map[string]domain.UserID),
	}
}

func (s *Memory) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := normalize(user.Username)
	email := normalize(user.Email)
	if _, exists := s.byUsername[username]; exists {
		return sentinel.ErrDuplicate
	}
	if _, exists := s.byEmail[email]; exists {
		return sentinel.ErrDuplicate
	}

	s.byID[user.ID] = clone(user)
	s.byUsername[username] = user.ID
	s.byEmail[email] = user.ID
	return nil
}

func (s *Memory) FindByID(_ context.Context, id domain.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(user), nil
}

func (s *Memory) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[normalize(username)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *Memory) ListByRole(_ context.Context, role domain.Role) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.User
	for _, user := range s.byID {
		if user.Role == role {
			out = append(out, clone(user))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func clone(user *models.User) *models.User {
	c := *user
	return &c
}
