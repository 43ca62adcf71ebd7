package history_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"findmyid/internal/history"
	"findmyid/internal/history/models"
	"findmyid/internal/history/store"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/requestcontext"
)

func TestWorkerPersistsPublishedEvents(t *testing.T) {
	mem := store.NewMemory()
	inbox := make(chan models.Event, 16)
	publisher := history.NewPublisher(inbox, slog.Default())
	worker := history.NewWorker(mem, inbox, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	actor := domain.NewUserID()
	matchID := domain.NewMatchID()
	publisher.Record(ctx, models.Event{
		ActorID:     actor,
		Action:      models.ActionMatchProposed,
		Description: "candidate scored above threshold",
		MatchID:     &matchID,
	})
	publisher.Record(ctx, models.Event{
		ActorID: actor,
		Action:  models.ActionMatchConfirmed,
		MatchID: &matchID,
	})

	require.Eventually(t, func() bool {
		events, err := mem.ListByMatch(context.Background(), matchID)
		return err == nil && len(events) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	events, err := mem.ListByActor(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, event := range events {
		require.False(t, event.OccurredAt.IsZero())
	}
}

func TestPublisherDropsWhenInboxFull(t *testing.T) {
	mem := store.NewMemory()
	inbox := make(chan models.Event, 1)
	publisher := history.NewPublisher(inbox, slog.Default())

	// No worker running: the second record has nowhere to go and must not
	// block the caller.
	publisher.Record(context.Background(), models.Event{Action: models.ActionLostDeclared})

	delivered := make(chan struct{})
	go func() {
		publisher.Record(context.Background(), models.Event{Action: models.ActionFoundDeclared})
		close(delivered)
	}()
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full inbox")
	}

	events, err := mem.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestServiceGatesPlatformTrail(t *testing.T) {
	mem := store.NewMemory()
	svc := history.NewService(mem)

	actor := domain.NewUserID()
	require.NoError(t, mem.Append(context.Background(), models.Event{
		OccurredAt: time.Now(),
		ActorID:    actor,
		Action:     models.ActionLostDeclared,
	}))
	require.NoError(t, mem.Append(context.Background(), models.Event{
		OccurredAt: time.Now(),
		ActorID:    domain.NewUserID(),
		Action:     models.ActionFoundDeclared,
	}))

	citizen := requestcontext.WithActor(context.Background(), requestcontext.Actor{
		UserID: actor, Role: domain.RoleCitizen,
	})
	_, err := svc.ListRecent(citizen, 0)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	mine, err := svc.ListMine(citizen)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	admin := requestcontext.WithActor(context.Background(), requestcontext.Actor{
		UserID: domain.NewUserID(), Role: domain.RolePlatformAdmin,
	})
	all, err := svc.ListRecent(admin, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = svc.ListMine(context.Background())
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
