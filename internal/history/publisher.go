// Package history keeps the append-only action trail. Services record
// events through a buffered channel; a background worker persists them so a
// slow trail never stalls a transition.
package history

import (
	"context"
	"log/slog"
	"time"

	"findmyid/internal/history/models"
	"findmyid/pkg/domain"
)

type Store interface {
	Append(ctx context.Context, event models.Event) error
	ListByActor(ctx context.Context, actorID domain.UserID) ([]models.Event, error)
	ListByMatch(ctx context.Context, matchID domain.MatchID) ([]models.Event, error)
	ListRecent(ctx context.Context, limit int) ([]models.Event, error)
}

// Publisher hands events to the worker without blocking. A full inbox drops
// the event; the trail is best-effort, transitions are not.
type Publisher struct {
	inbox  chan<- models.Event
	logger *slog.Logger
}

func NewPublisher(inbox chan<- models.Event, logger *slog.Logger) *Publisher {
	return &Publisher{inbox: inbox, logger: logger}
}

func (p *Publisher) Record(ctx context.Context, event models.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "history inbox full, event dropped",
				"action", event.Action,
			)
		}
	}
}

// Worker consumes events from the inbox and persists them.
type Worker struct {
	store  Store
	inbox  <-chan models.Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan models.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run drains the inbox until the context ends, then flushes whatever is
// already buffered.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return ctx.Err()
		case event := <-w.inbox:
			w.append(ctx, event)
		}
	}
}

func (w *Worker) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-w.inbox:
			w.append(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) append(ctx context.Context, event models.Event) {
	if err := w.store.Append(ctx, event); err != nil && w.logger != nil {
		w.logger.ErrorContext(ctx, "failed to persist history event",
			"action", event.Action,
			"error", err,
		)
	}
}
