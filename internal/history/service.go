package history

import (
	"context"

	"findmyid/internal/history/models"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/requestcontext"
)

const defaultRecentLimit = 100

// Service exposes the read side of the trail. Writes only ever come from the
// publisher/worker pair.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// ListRecent returns the newest events across the whole platform.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]models.Event, error) {
	if err := requireHistoryViewer(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > defaultRecentLimit {
		limit = defaultRecentLimit
	}
	return s.store.ListRecent(ctx, limit)
}

// ListForMatch returns the trail of a single match.
func (s *Service) ListForMatch(ctx context.Context, matchID domain.MatchID) ([]models.Event, error) {
	if err := requireHistoryViewer(ctx); err != nil {
		return nil, err
	}
	return s.store.ListByMatch(ctx, matchID)
}

// ListMine returns the calling user's own actions. Any signed-in user may
// read their own trail.
func (s *Service) ListMine(ctx context.Context) ([]models.Event, error) {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return s.store.ListByActor(ctx, actor.UserID)
}

func requireHistoryViewer(ctx context.Context) error {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !actor.Can(domain.CapabilityViewHistory) {
		return dErrors.New(dErrors.CodeUnauthorized, "history access requires platform administration")
	}
	return nil
}
