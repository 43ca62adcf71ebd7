package store

import (
	"context"
	"sort"
	"sync"

	"findmyid/internal/verification/models"
	"findmyid/pkg/domain"
	"findmyid/pkg/platform/sentinel"
)

// Memory is the in-memory verification request store. The open-request
// index mirrors the Postgres partial unique index: at most one open request
// per match.
type Memory struct {
	mu       sync.RWMutex
	requests map[domain.VerificationRequestID]*models.VerificationRequest
	open     map[domain.MatchID]domain.VerificationRequestID
}

func NewMemory() *Memory {
	return &Memory{
		requests: make(map[domain.VerificationRequestID]*models.VerificationRequest),
		open:     make(map[domain.MatchID]domain.VerificationRequestID),
	}
}

func (m *Memory) Create(ctx context.Context, req *models.VerificationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.Status.Open() {
		if _, ok := m.open[req.MatchID]; ok {
			return sentinel.ErrDuplicate
		}
	}
	m.requests[req.ID] = cloneRequest(req)
	if req.Status.Open() {
		m.open[req.MatchID] = req.ID
	}
	return nil
}

func (m *Memory) FindByID(ctx context.Context, id domain.VerificationRequestID) (*models.VerificationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(req), nil
}

func (m *Memory) FindOpenByMatch(ctx context.Context, matchID domain.MatchID) (*models.VerificationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.open[matchID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(m.requests[id]), nil
}

func (m *Memory) Update(ctx context.Context, req *models.VerificationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.ID]; !ok {
		return sentinel.ErrNotFound
	}
	m.requests[req.ID] = cloneRequest(req)
	m.reindex(req)
	return nil
}

// Execute atomically validates and mutates one request under the store lock.
func (m *Memory) Execute(
	ctx context.Context,
	id domain.VerificationRequestID,
	validate func(*models.VerificationRequest) error,
	mutate func(*models.VerificationRequest),
) (*models.VerificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	mutate(req)
	m.reindex(req)
	return cloneRequest(req), nil
}

func (m *Memory) reindex(req *models.VerificationRequest) {
	if req.Status.Open() {
		m.open[req.MatchID] = req.ID
		return
	}
	if m.open[req.MatchID] == req.ID {
		delete(m.open, req.MatchID)
	}
}

func (m *Memory) ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.VerificationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.VerificationRequest
	for _, req := range m.requests {
		if req.Status == status {
			out = append(out, cloneRequest(req))
		}
	}
	sortRequests(out)
	return out, nil
}

func (m *Memory) ListOpen(ctx context.Context) ([]*models.VerificationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.VerificationRequest
	for _, req := range m.requests {
		if req.Status.Open() {
			out = append(out, cloneRequest(req))
		}
	}
	sortRequests(out)
	return out, nil
}

func sortRequests(reqs []*models.VerificationRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].ID.String() < reqs[j].ID.String()
		}
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}

func cloneRequest(req *models.VerificationRequest) *models.VerificationRequest {
	cp := *req
	if req.AssignedTo != nil {
		v := *req.AssignedTo
		cp.AssignedTo = &v
	}
	if req.DecidedAt != nil {
		v := *req.DecidedAt
		cp.DecidedAt = &v
	}
	return &cp
}
