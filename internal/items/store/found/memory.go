package found

import (
	"context"
	"sort"
	"sync"

	"findmyid/internal/items/models"
	"findmyid/pkg/domain"
	"findmyid/pkg/platform/sentinel"
)

// Memory is the in-memory found item store.
type Memory struct {
	mu    sync.RWMutex
	items map[domain.FoundItemID]*models.FoundItem
}

func NewMemory() *Memory {
	return &Memory{items: make(map[domain.FoundItemID]*models.FoundItem)}
}

func (m *Memory) Create(ctx context.Context, item *models.FoundItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; ok {
		return sentinel.ErrDuplicate
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *Memory) FindByID(ctx context.Context, id domain.FoundItemID) (*models.FoundItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *Memory) Update(ctx context.Context, item *models.FoundItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *Memory) Execute(
	ctx context.Context,
	id domain.FoundItemID,
	validate func(*models.FoundItem) error,
	mutate func(*models.FoundItem),
) (*models.FoundItem, error) {
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

func (m *Memory) ListActiveByDocumentType(ctx context.Context, docType domain.DocumentTypeID) ([]*models.FoundItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.FoundItem
	for _, item := range m.items {
		if item.DocumentTypeID == docType && item.Matchable() {
			cp := *item
			out = append(out, &cp)
		}
	}
	sortByCreation(out)
	return out, nil
}

func (m *Memory) ListByUser(ctx context.Context, userID domain.UserID) ([]*models.FoundItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.FoundItem
	for _, item := range m.items {
		if item.UserID == userID {
			cp := *item
			out = append(out, &cp)
		}
	}
	sortByCreation(out)
	return out, nil
}

func sortByCreation(items []*models.FoundItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
