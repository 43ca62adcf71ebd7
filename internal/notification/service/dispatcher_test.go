package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"findmyid/internal/notification/models"
	"findmyid/internal/notification/store"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/requestcontext"
)

func newDispatcher() (*Service, *store.Memory) {
	mem := store.NewMemory()
	return NewService(mem, nil, nil, nil), mem
}

func userCtx(id domain.UserID) context.Context {
	return requestcontext.WithActor(context.Background(), requestcontext.Actor{
		UserID: id, Role: domain.RoleCitizen,
	})
}

func notification(recipient domain.UserID, eventID string) models.Notification {
	matchID := domain.NewMatchID()
	return models.Notification{
		EventID: eventID,
		UserID:  recipient,
		MatchID: &matchID,
		Type:    models.TypeMatchFound,
		Title:   "Correspondance trouvée",
		Message: "Un document correspondant à votre déclaration a été retrouvé.",
	}
}

func TestNotifyIsIdempotentPerEvent(t *testing.T) {
	svc, _ := newDispatcher()
	recipient := domain.NewUserID()
	ctx := userCtx(recipient)

	n := notification(recipient, "match_found:abc")
	require.NoError(t, svc.Notify(ctx, n))
	require.NoError(t, svc.Notify(ctx, n), "redelivery of the same event must succeed silently")

	list, err := svc.ListForUser(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1, "the duplicate must not be stored")
}

func TestNotifyValidates(t *testing.T) {
	svc, _ := newDispatcher()
	recipient := domain.NewUserID()
	ctx := userCtx(recipient)

	n := notification(recipient, "match_found:abc")
	n.Type = "carrier_pigeon"
	err := svc.Notify(ctx, n)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "got %v", err)

	n = notification(recipient, "  ")
	err = svc.Notify(ctx, n)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "got %v", err)
}

func TestUnreadCountAndReadFlow(t *testing.T) {
	svc, _ := newDispatcher()
	recipient := domain.NewUserID()
	ctx := userCtx(recipient)

	require.NoError(t, svc.Notify(ctx, notification(recipient, "e1")))
	require.NoError(t, svc.Notify(ctx, notification(recipient, "e2")))
	require.NoError(t, svc.Notify(ctx, notification(recipient, "e3")))

	count, err := svc.UnreadCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	list, err := svc.ListForUser(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.MarkRead(ctx, list[0].ID))

	count, err = svc.UnreadCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	flipped, err := svc.MarkAllRead(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, flipped)

	count, err = svc.UnreadCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestMarkReadIsRecipientOnly(t *testing.T) {
	svc, _ := newDispatcher()
	recipient := domain.NewUserID()
	stranger := domain.NewUserID()

	require.NoError(t, svc.Notify(userCtx(recipient), notification(recipient, "e1")))
	list, err := svc.ListForUser(userCtx(recipient))
	require.NoError(t, err)

	err = svc.MarkRead(userCtx(stranger), list[0].ID)
	require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound),
		"another user's notification must look nonexistent, got %v", err)

	err = svc.MarkRead(context.Background(), list[0].ID)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized), "got %v", err)
}

func TestListIsScopedToActor(t *testing.T) {
	svc, _ := newDispatcher()
	alice := domain.NewUserID()
	bob := domain.NewUserID()

	require.NoError(t, svc.Notify(userCtx(alice), notification(alice, "a1")))
	require.NoError(t, svc.Notify(userCtx(bob), notification(bob, "b1")))

	aliceList, err := svc.ListForUser(userCtx(alice))
	require.NoError(t, err)
	require.Len(t, aliceList, 1)
	require.Equal(t, alice, aliceList[0].UserID)
}
