package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	historymodels "findmyid/internal/history/models"
	itemsmodels "findmyid/internal/items/models"
	foundstore "findmyid/internal/items/store/found"
	loststore "findmyid/internal/items/store/lost"
	"findmyid/internal/match/models"
	"findmyid/internal/match/store"
	notifmodels "findmyid/internal/notification/models"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/requestcontext"
)

type capturingNotifier struct {
	mu   sync.Mutex
	sent []notifmodels.Notification
}

func (c *capturingNotifier) Notify(ctx context.Context, n notifmodels.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	return nil
}

func (c *capturingNotifier) byEvent(prefix string) []notifmodels.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []notifmodels.Notification
	for _, n := range c.sent {
		if len(n.EventID) >= len(prefix) && n.EventID[:len(prefix)] == prefix {
			out = append(out, n)
		}
	}
	return out
}

type capturingRecorder struct {
	mu     sync.Mutex
	events []historymodels.Event
}

func (c *capturingRecorder) Record(ctx context.Context, event historymodels.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

type fixture struct {
	svc      *Service
	matches  *store.Memory
	lost     *loststore.Memory
	found    *foundstore.Memory
	notifier *capturingNotifier
	recorder *capturingRecorder
	docType  domain.DocumentTypeID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		matches:  store.NewMemory(),
		lost:     loststore.NewMemory(),
		found:    foundstore.NewMemory(),
		notifier: &capturingNotifier{},
		recorder: &capturingRecorder{},
		docType:  domain.NewDocumentTypeID(),
	}
	f.svc = NewService(Config{
		Store:      f.matches,
		LostItems:  f.lost,
		FoundItems: f.found,
		Notifier:   f.notifier,
		Recorder:   f.recorder,
		Threshold:  0.5,
	})
	return f
}

func (f *fixture) declareLost(t *testing.T, owner domain.UserID) *itemsmodels.LostItem {
	t.Helper()
	now := time.Now()
	item := &itemsmodels.LostItem{
		ID:             domain.NewLostItemID(),
		UserID:         owner,
		DocumentTypeID: f.docType,
		FirstName:      "Jean",
		LastName:       "Dupont",
		DateOfBirth:    time.Date(1990, time.May, 15, 0, 0, 0, 0, time.UTC),
		DocumentNumber: "AB123456",
		LostDate:       time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		LostLocation:   "Paris",
		Status:         itemsmodels.LostStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.lost.Create(context.Background(), item))
	return item
}

func (f *fixture) declareFound(t *testing.T, reporter domain.UserID) *itemsmodels.FoundItem {
	t.Helper()
	now := time.Now()
	birth := time.Date(1990, time.May, 15, 0, 0, 0, 0, time.UTC)
	item := &itemsmodels.FoundItem{
		ID:             domain.NewFoundItemID(),
		UserID:         reporter,
		DocumentTypeID: f.docType,
		ImageRef:       "uploads/cni-1.jpg",
		FirstName:      "Jean",
		LastName:       "Dupont",
		DateOfBirth:    &birth,
		DocumentNumber: "AB123456",
		FoundDate:      time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC),
		FoundLocation:  "Paris",
		Status:         itemsmodels.FoundStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.found.Create(context.Background(), item))
	return item
}

func actorCtx(userID domain.UserID, role domain.Role) context.Context {
	return requestcontext.WithActor(context.Background(), requestcontext.Actor{
		UserID: userID,
		Role:   role,
	})
}

func (f *fixture) singleMatch(t *testing.T, lostID domain.LostItemID) *models.Match {
	t.Helper()
	matches, err := f.matches.ListByLostItem(context.Background(), lostID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	return matches[0]
}

func TestEvaluateProposesMatch(t *testing.T) {
	f := newFixture(t)
	owner, reporter := domain.NewUserID(), domain.NewUserID()
	lost := f.declareLost(t, owner)
	f.declareFound(t, reporter)

	require.NoError(t, f.svc.EvaluateLostItem(context.Background(), lost.ID))

	match := f.singleMatch(t, lost.ID)
	require.Equal(t, models.StatusPending, match.Status)
	require.GreaterOrEqual(t, match.ConfidenceScore, 0.5)
	require.NotEmpty(t, match.Criteria)

	notifs := f.notifier.byEvent("match_found:")
	require.Len(t, notifs, 1)
	require.Equal(t, owner, notifs[0].UserID)
	require.Equal(t, notifmodels.TypeMatchFound, notifs[0].Type)
}

func TestEvaluateOrderIndependence(t *testing.T) {
	// Declaring lost-then-found must converge to the same single match as
	// found-then-lost.
	f := newFixture(t)
	lost := f.declareLost(t, domain.NewUserID())
	found := f.declareFound(t, domain.NewUserID())

	require.NoError(t, f.svc.EvaluateLostItem(context.Background(), lost.ID))
	require.NoError(t, f.svc.EvaluateFoundItem(context.Background(), found.ID))

	matches, err := f.matches.ListByLostItem(context.Background(), lost.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1, "re-evaluation from the other side must fold, not duplicate")
}

func TestEvaluateRescoresExistingMatch(t *testing.T) {
	f := newFixture(t)
	lost := f.declareLost(t, domain.NewUserID())
	f.declareFound(t, domain.NewUserID())

	ctx := context.Background()
	require.NoError(t, f.svc.EvaluateLostItem(ctx, lost.ID))
	before := f.singleMatch(t, lost.ID)

	// Degrade the declaration and re-evaluate: same match, new score.
	_, err := f.lost.Execute(ctx, lost.ID,
		func(l *itemsmodels.LostItem) error { return nil },
		func(l *itemsmodels.LostItem) { l.DocumentNumber = "XX999999" },
	)
	require.NoError(t, err)
	require.NoError(t, f.svc.EvaluateLostItem(ctx, lost.ID))

	after := f.singleMatch(t, lost.ID)
	require.Equal(t, before.ID, after.ID)
	require.Less(t, after.ConfidenceScore, before.ConfidenceScore)

	require.Len(t, f.notifier.byEvent("match_found:"), 1, "rescore must not renotify")
}

func TestEvaluateKeepsConfirmedScore(t *testing.T) {
	f := newFixture(t)
	owner := domain.NewUserID()
	lost := f.declareLost(t, owner)
	f.declareFound(t, domain.NewUserID())

	ctx := context.Background()
	require.NoError(t, f.svc.EvaluateLostItem(ctx, lost.ID))
	match := f.singleMatch(t, lost.ID)

	_, err := f.svc.Confirm(actorCtx(owner, domain.RoleCitizen), match.ID)
	require.NoError(t, err)

	// Degrading the declaration after confirmation must not touch the score
	// the confirmation was based on.
	_, err = f.lost.Execute(ctx, lost.ID,
		func(l *itemsmodels.LostItem) error { return nil },
		func(l *itemsmodels.LostItem) { l.DocumentNumber = "XX999999" },
	)
	require.NoError(t, err)
	require.NoError(t, f.svc.EvaluateLostItem(ctx, lost.ID))

	after := f.singleMatch(t, lost.ID)
	require.Equal(t, models.StatusConfirmed, after.Status)
	require.Equal(t, match.ConfidenceScore, after.ConfidenceScore)
}

func TestEvaluateSkipsWeakCandidates(t *testing.T) {
	f := newFixture(t)
	lost := f.declareLost(t, domain.NewUserID())
	found := f.declareFound(t, domain.NewUserID())
	ctx := context.Background()

	_, err := f.found.Execute(ctx, found.ID,
		func(fi *itemsmodels.FoundItem) error { return nil },
		func(fi *itemsmodels.FoundItem) {
			fi.FirstName = "Aminata"
			fi.LastName = "Traoré"
			fi.DateOfBirth = nil
			fi.DocumentNumber = "ZZ999999"
			fi.FoundLocation = "Marseille"
		},
	)
	require.NoError(t, err)

	require.NoError(t, f.svc.EvaluateLostItem(ctx, lost.ID))

	matches, err := f.matches.ListByLostItem(ctx, lost.ID)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestConfirmMarksFoundItemMatched(t *testing.T) {
	f := newFixture(t)
	owner, reporter := domain.NewUserID(), domain.NewUserID()
	lost := f.declareLost(t, owner)
	found := f.declareFound(t, reporter)
	require.NoError(t, f.svc.EvaluateLostItem(context.Background(), lost.ID))
	match := f.singleMatch(t, lost.ID)

	confirmed, err := f.svc.Confirm(actorCtx(owner, domain.RoleCitizen), match.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, confirmed.Status)

	foundAfter, err := f.found.FindByID(context.Background(), found.ID)
	require.NoError(t, err)
	require.Equal(t, itemsmodels.FoundStatusMatched, foundAfter.Status)

	notifs := f.notifier.byEvent("match_confirmed:")
	require.Len(t, notifs, 2, "both parties are notified")
}

func TestConfirmRequiresPartyOrModerator(t *testing.T) {
	f := newFixture(t)
	lost := f.declareLost(t, domain.NewUserID())
	f.declareFound(t, domain.NewUserID())
	require.NoError(t, f.svc.EvaluateLostItem(context.Background(), lost.ID))
	match := f.singleMatch(t, lost.ID)

	_, err := f.svc.Confirm(actorCtx(domain.NewUserID(), domain.RoleCitizen), match.ID)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized), "got %v", err)

	_, err = f.svc.Confirm(actorCtx(domain.NewUserID(), domain.RolePlatformAdmin), match.ID)
	require.NoError(t, err, "platform admin may moderate")
}

func TestConfirmTwiceIsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	owner := domain.NewUserID()
	lost := f.declareLost(t, owner)
	f.declareFound(t, domain.NewUserID())
	require.NoError(t, f.svc.EvaluateLostItem(context.Background(), lost.ID))
	match := f.singleMatch(t, lost.ID)

	ctx := actorCtx(owner, domain.RoleCitizen)
	_, err := f.svc.Confirm(ctx, match.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, match.ID)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition), "got %v", err)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	owner := domain.NewUserID()
	lost := f.declareLost(t, owner)
	f.declareFound(t, domain.NewUserID())
	require.NoError(t, f.svc.EvaluateLostItem(context.Background(), lost.ID))
	match := f.singleMatch(t, lost.ID)

	ctx := actorCtx(owner, domain.RoleCitizen)
	_, err := f.svc.Reject(ctx, match.ID, "   ")
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "got %v", err)

	after, ferr := f.matches.FindByID(context.Background(), match.ID)
	require.NoError(t, ferr)
	require.Equal(t, models.StatusPending, after.Status, "failed reject must not mutate")
}

func TestRejectConfirmedReleasesFoundItem(t *testing.T) {
	f := newFixture(t)
	owner := domain.NewUserID()
	lost := f.declareLost(t, owner)
	found := f.declareFound(t, domain.NewUserID())
	require.NoError(t, f.svc.EvaluateLostItem(context.Background(), lost.ID))
	match := f.singleMatch(t, lost.ID)

	ctx := actorCtx(owner, domain.RoleCitizen)
	_, err := f.svc.Confirm(ctx, match.ID)
	require.NoError(t, err)

	rejected, err := f.svc.Reject(ctx, match.ID, "document is not mine after inspection")
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, rejected.Status)
	require.NotEmpty(t, rejected.RejectionReason)

	foundAfter, err := f.found.FindByID(context.Background(), found.ID)
	require.NoError(t, err)
	require.Equal(t, itemsmodels.FoundStatusActive, foundAfter.Status, "found item returns to the pool")
}

func TestRejectedPairCanBeReproposed(t *testing.T) {
	f := newFixture(t)
	owner := domain.NewUserID()
	lost := f.declareLost(t, owner)
	f.declareFound(t, domain.NewUserID())
	ctx := context.Background()
	require.NoError(t, f.svc.EvaluateLostItem(ctx, lost.ID))
	first := f.singleMatch(t, lost.ID)

	_, err := f.svc.Reject(actorCtx(owner, domain.RoleCitizen), first.ID, "wrong person")
	require.NoError(t, err)

	// The declarer fixes a typo; the pair is eligible again.
	require.NoError(t, f.svc.EvaluateLostItem(ctx, lost.ID))

	matches, err := f.matches.ListByLostItem(ctx, lost.ID)
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func TestCompleteResolvesBothItems(t *testing.T) {
	f := newFixture(t)
	owner := domain.NewUserID()
	lost := f.declareLost(t, owner)
	found := f.declareFound(t, domain.NewUserID())
	require.NoError(t, f.svc.EvaluateLostItem(context.Background(), lost.ID))
	match := f.singleMatch(t, lost.ID)

	ctx := actorCtx(owner, domain.RoleCitizen)
	_, err := f.svc.Confirm(ctx, match.ID)
	require.NoError(t, err)

	completed, err := f.svc.Complete(ctx, match.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, completed.Status)

	lostAfter, err := f.lost.FindByID(context.Background(), lost.ID)
	require.NoError(t, err)
	require.Equal(t, itemsmodels.LostStatusResolved, lostAfter.Status)

	foundAfter, err := f.found.FindByID(context.Background(), found.ID)
	require.NoError(t, err)
	require.Equal(t, itemsmodels.FoundStatusReturned, foundAfter.Status)

	require.Len(t, f.notifier.byEvent("item_handed_over:"), 2)
}

func TestCompletePendingIsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	lost := f.declareLost(t, domain.NewUserID())
	f.declareFound(t, domain.NewUserID())
	require.NoError(t, f.svc.EvaluateLostItem(context.Background(), lost.ID))
	match := f.singleMatch(t, lost.ID)

	_, err := f.svc.Complete(context.Background(), match.ID)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition), "got %v", err)
}

func TestHistoryTrailRecordsLifecycle(t *testing.T) {
	f := newFixture(t)
	owner := domain.NewUserID()
	lost := f.declareLost(t, owner)
	f.declareFound(t, domain.NewUserID())
	require.NoError(t, f.svc.EvaluateLostItem(context.Background(), lost.ID))
	match := f.singleMatch(t, lost.ID)

	ctx := actorCtx(owner, domain.RoleCitizen)
	_, err := f.svc.Confirm(ctx, match.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, match.ID)
	require.NoError(t, err)

	var actions []historymodels.Action
	f.recorder.mu.Lock()
	for _, e := range f.recorder.events {
		actions = append(actions, e.Action)
	}
	f.recorder.mu.Unlock()
	require.Equal(t, []historymodels.Action{
		historymodels.ActionMatchProposed,
		historymodels.ActionMatchConfirmed,
		historymodels.ActionMatchCompleted,
	}, actions)
}
