package store

import (
	"context"
	"sort"
	"sync"

	"findmyid/internal/history/models"
	"findmyid/pkg/domain"
)

// Memory is the in-process trail used for tests and local runs.
type Memory struct {
	mu     sync.RWMutex
	nextID int64
	events []models.Event
}

func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

func (s *Memory) Append(_ context.Context, event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = s.nextID
	s.nextID++
	s.events = append(s.events, event)
	return nil
}

func (s *Memory) ListByActor(_ context.Context, actorID domain.UserID) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Event
	for _, event := range s.events {
		if event.ActorID == actorID {
			out = append(out, event)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Memory) ListByMatch(_ context.Context, matchID domain.MatchID) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Event
	for _, event := range s.events {
		if event.MatchID != nil && *event.MatchID == matchID {
			out = append(out, event)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Memory) ListRecent(_ context.Context, limit int) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Event, len(s.events))
	copy(out, s.events)
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortNewestFirst(events []models.Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].ID > events[j].ID
		}
		return events[i].OccurredAt.After(events[j].OccurredAt)
	})
}
