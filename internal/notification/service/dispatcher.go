// Package service implements the notification dispatcher: idempotent
// delivery keyed by event ID, recipient-only read mutations, and an unread
// counter answered from Redis when available.
package service

import (
	"context"
	"errors"
	"log/slog"

	"findmyid/internal/notification/cache"
	"findmyid/internal/notification/metrics"
	"findmyid/internal/notification/models"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/platform/sentinel"
	"findmyid/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, id domain.NotificationID) (*models.Notification, error)
	ListByUser(ctx context.Context, userID domain.UserID) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id domain.NotificationID, userID domain.UserID) error
	MarkAllRead(ctx context.Context, userID domain.UserID) (int64, error)
	CountUnread(ctx context.Context, userID domain.UserID) (int64, error)
}

type Service struct {
	store   Store
	counter *cache.UnreadCounter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewService wires the dispatcher. counter may be nil when Redis is not
// configured; every unread count then comes from the store.
func NewService(store Store, counter *cache.UnreadCounter, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, counter: counter, logger: logger, metrics: m}
}

// Notify persists one notification for its recipient. A redelivered event
// ID is dropped silently: transitions retry, recipients must not see the
// same event twice.
func (s *Service) Notify(ctx context.Context, n models.Notification) error {
	n.ID = domain.NewNotificationID()
	n.Read = false
	n.CreatedAt = requestcontext.Now(ctx)
	if err := n.Validate(); err != nil {
		return err
	}

	err := s.store.Create(ctx, &n)
	if errors.Is(err, sentinel.ErrDuplicate) {
		s.metrics.IncrementDuplicate()
		return nil
	}
	if err != nil {
		return err
	}

	s.metrics.IncrementDelivered(string(n.Type))
	s.counter.Invalidate(ctx, n.UserID.String())
	return nil
}

// ListForUser returns the acting user's own notifications, newest first.
func (s *Service) ListForUser(ctx context.Context) ([]*models.Notification, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListByUser(ctx, actor.UserID)
}

// MarkRead flips one of the acting user's notifications. Another user's
// notification reports NotFound, never Unauthorized, so IDs cannot be probed.
func (s *Service) MarkRead(ctx context.Context, id domain.NotificationID) error {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return err
	}
	err = s.store.MarkRead(ctx, id, actor.UserID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "notification not found")
	}
	if err != nil {
		return err
	}
	s.counter.Invalidate(ctx, actor.UserID.String())
	return nil
}

// MarkAllRead flips every unread notification of the acting user and
// returns how many were flipped.
func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return 0, err
	}
	flipped, err := s.store.MarkAllRead(ctx, actor.UserID)
	if err != nil {
		return 0, err
	}
	if flipped > 0 {
		s.counter.Invalidate(ctx, actor.UserID.String())
	}
	return flipped, nil
}

// UnreadCount answers from the Redis counter when it holds a value, falling
// back to the store and repopulating the cache otherwise.
func (s *Service) UnreadCount(ctx context.Context) (int64, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return 0, err
	}

	key := actor.UserID.String()
	if count, err := s.counter.Get(ctx, key); err == nil {
		s.metrics.IncrementUnreadLookup("cache_hit")
		return count, nil
	}

	count, err := s.store.CountUnread(ctx, actor.UserID)
	if err != nil {
		return 0, err
	}
	s.metrics.IncrementUnreadLookup("store")
	s.counter.Set(ctx, key, count)
	return count, nil
}

func (s *Service) requireActor(ctx context.Context) (requestcontext.Actor, error) {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return requestcontext.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}
