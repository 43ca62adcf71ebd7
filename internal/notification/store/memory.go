package store

import (
	"context"
	"sort"
	"sync"

	"findmyid/internal/notification/models"
	"findmyid/pkg/domain"
	"findmyid/pkg/platform/sentinel"
)

// Memory is the in-memory notification store. Event IDs are unique, as the
// notifications.event_id column enforces in Postgres: redelivering an event
// reports a duplicate and stores nothing.
type Memory struct {
	mu      sync.RWMutex
	byID    map[domain.NotificationID]*models.Notification
	byEvent map[string]domain.NotificationID
}

func NewMemory() *Memory {
	return &Memory{
		byID:    make(map[domain.NotificationID]*models.Notification),
		byEvent: make(map[string]domain.NotificationID),
	}
}

func (m *Memory) Create(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEvent[n.EventID]; ok {
		return sentinel.ErrDuplicate
	}
	m.byID[n.ID] = cloneNotification(n)
	m.byEvent[n.EventID] = n.ID
	return nil
}

func (m *Memory) FindByID(ctx context.Context, id domain.NotificationID) (*models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneNotification(n), nil
}

func (m *Memory) ListByUser(ctx context.Context, userID domain.UserID) ([]*models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Notification
	for _, n := range m.byID {
		if n.UserID == userID {
			out = append(out, cloneNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// MarkRead flips one notification owned by userID. Returns ErrNotFound for
// another user's notification so ownership never leaks.
func (m *Memory) MarkRead(ctx context.Context, id domain.NotificationID, userID domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.byID[id]
	if !ok || n.UserID != userID {
		return sentinel.ErrNotFound
	}
	n.Read = true
	return nil
}

func (m *Memory) MarkAllRead(ctx context.Context, userID domain.UserID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var flipped int64
	for _, n := range m.byID {
		if n.UserID == userID && !n.Read {
			n.Read = true
			flipped++
		}
	}
	return flipped, nil
}

func (m *Memory) CountUnread(ctx context.Context, userID domain.UserID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, n := range m.byID {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func cloneNotification(n *models.Notification) *models.Notification {
	cp := *n
	if n.MatchID != nil {
		v := *n.MatchID
		cp.MatchID = &v
	}
	return &cp
}
