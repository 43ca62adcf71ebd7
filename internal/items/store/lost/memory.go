package lost

import (
	"context"
	"sort"
	"sync"

	"findmyid/internal/items/models"
	"findmyid/pkg/domain"
	"findmyid/pkg/platform/sentinel"
)

// Memory is the in-memory lost item store. The mutex is held across the
// validate and mutate callbacks of Execute so check-then-act transitions are
// atomic, mirroring the FOR UPDATE behavior of the Postgres store.
type Memory struct {
	mu    sync.RWMutex
	items map[domain.LostItemID]*models.LostItem
}

func NewMemory() *Memory {
	return &Memory{items: make(map[domain.LostItemID]*models.LostItem)}
}

func (m *Memory) Create(ctx context.Context, item *models.LostItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; ok {
		return sentinel.ErrDuplicate
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *Memory) FindByID(ctx context.Context, id domain.LostItemID) (*models.LostItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *Memory) Update(ctx context.Context, item *models.LostItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

// Execute atomically validates and mutates a single item under the store
// lock, returning the updated copy.
func (m *Memory) Execute(
	ctx context.Context,
	id domain.LostItemID,
	validate func(*models.LostItem) error,
	mutate func(*models.LostItem),
) (*models.LostItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(item); err != nil {
		return nil, err
	}
	mutate(item)
	cp := *item
	return &cp, nil
}

// ListActiveByDocumentType returns the candidate pool for matching.
func (m *Memory) ListActiveByDocumentType(ctx context.Context, docType domain.DocumentTypeID) ([]*models.LostItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.LostItem
	for _, item := range m.items {
		if item.DocumentTypeID == docType && item.Matchable() {
			cp := *item
			out = append(out, &cp)
		}
	}
	sortByCreation(out)
	return out, nil
}

func (m *Memory) ListByUser(ctx context.Context, userID domain.UserID) ([]*models.LostItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.LostItem
	for _, item := range m.items {
		if item.UserID == userID {
			cp := *item
			out = append(out, &cp)
		}
	}
	sortByCreation(out)
	return out, nil
}

func sortByCreation(items []*models.LostItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
