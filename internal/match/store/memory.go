package store

import (
	"context"
	"sort"
	"sync"

	"findmyid/internal/match/models"
	"findmyid/pkg/domain"
	"findmyid/pkg/platform/sentinel"
)

type pairKey struct {
	lost  domain.LostItemID
	found domain.FoundItemID
}

// Memory is the in-memory match store. It maintains the same invariant as
// the Postgres partial unique index: at most one non-terminal match per
// (lost, found) pair, enforced under the store lock so concurrent Create
// calls race exactly like concurrent INSERTs.
type Memory struct {
	mu         sync.RWMutex
	matches    map[domain.MatchID]*models.Match
	activePair map[pairKey]domain.MatchID
}

func NewMemory() *Memory {
	return &Memory{
		matches:    make(map[domain.MatchID]*models.Match),
		activePair: make(map[pairKey]domain.MatchID),
	}
}

func (m *Memory) Create(ctx context.Context, match *models.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey{lost: match.LostItemID, found: match.FoundItemID}
	if !match.Status.Terminal() {
		if _, ok := m.activePair[key]; ok {
			return sentinel.ErrDuplicate
		}
	}

	cp := clone(match)
	m.matches[match.ID] = cp
	if !match.Status.Terminal() {
		m.activePair[key] = match.ID
	}
	return nil
}

func (m *Memory) FindByID(ctx context.Context, id domain.MatchID) (*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(match), nil
}

func (m *Memory) FindActiveByPair(ctx context.Context, lostID domain.LostItemID, foundID domain.FoundItemID) (*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.activePair[pairKey{lost: lostID, found: foundID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(m.matches[id]), nil
}

func (m *Memory) Update(ctx context.Context, match *models.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.matches[match.ID]; !ok {
		return sentinel.ErrNotFound
	}
	m.matches[match.ID] = clone(match)
	m.reindex(match)
	return nil
}

// Execute atomically validates and mutates one match under the store lock.
func (m *Memory) Execute(
	ctx context.Context,
	id domain.MatchID,
	validate func(*models.Match) error,
	mutate func(*models.Match),
) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(match); err != nil {
		return nil, err
	}
	mutate(match)
	m.reindex(match)
	return clone(match), nil
}

// reindex keeps the active-pair index in sync with a match's status.
// Caller must hold the write lock.
func (m *Memory) reindex(match *models.Match) {
	key := pairKey{lost: match.LostItemID, found: match.FoundItemID}
	if match.Status.Terminal() {
		if m.activePair[key] == match.ID {
			delete(m.activePair, key)
		}
		return
	}
	m.activePair[key] = match.ID
}

func (m *Memory) ListByLostItem(ctx context.Context, lostID domain.LostItemID) ([]*models.Match, error) {
	return m.listWhere(func(match *models.Match) bool { return match.LostItemID == lostID })
}

func (m *Memory) ListByFoundItem(ctx context.Context, foundID domain.FoundItemID) ([]*models.Match, error) {
	return m.listWhere(func(match *models.Match) bool { return match.FoundItemID == foundID })
}

func (m *Memory) ListByStatus(ctx context.Context, status models.MatchStatus) ([]*models.Match, error) {
	return m.listWhere(func(match *models.Match) bool { return match.Status == status })
}

func (m *Memory) listWhere(keep func(*models.Match) bool) ([]*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Match
	for _, match := range m.matches {
		if keep(match) {
			out = append(out, clone(match))
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

func clone(match *models.Match) *models.Match {
	cp := *match
	cp.Criteria = append([]models.Criterion(nil), match.Criteria...)
	return &cp
}
