package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"findmyid/internal/catalog/models"
	"findmyid/pkg/domain"
	"findmyid/pkg/platform/sentinel"
)

// Memory is the in-memory document type store used in tests and when no
// database is configured.
type Memory struct {
	mu    sync.RWMutex
	types map[domain.DocumentTypeID]*models.DocumentType
}

func NewMemory() *Memory {
	return &Memory{types: make(map[domain.DocumentTypeID]*models.DocumentType)}
}

func (m *Memory) Create(ctx context.Context, dt *models.DocumentType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.types {
		if strings.EqualFold(existing.Name, dt.Name) {
			return sentinel.ErrDuplicate
		}
	}
	cp := *dt
	m.types[dt.ID] = &cp
	return nil
}

func (m *Memory) FindByID(ctx context.Context, id domain.DocumentTypeID) (*models.DocumentType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dt, ok := m.types[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *dt
	return &cp, nil
}

func (m *Memory) List(ctx context.Context) ([]*models.DocumentType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.DocumentType, 0, len(m.types))
	for _, dt := range m.types {
		cp := *dt
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
