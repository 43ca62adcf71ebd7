package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	itemsmodels "findmyid/internal/items/models"
	foundstore "findmyid/internal/items/store/found"
	loststore "findmyid/internal/items/store/lost"
	matchmodels "findmyid/internal/match/models"
	matchservice "findmyid/internal/match/service"
	matchstore "findmyid/internal/match/store"
	notifmodels "findmyid/internal/notification/models"
	"findmyid/internal/verification/models"
	"findmyid/internal/verification/store"
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

type staticReviewers struct {
	admins []domain.UserID
}

func (s *staticReviewers) ListByRole(ctx context.Context, role domain.Role) ([]domain.UserID, error) {
	if role == domain.RolePublicAdmin {
		return s.admins, nil
	}
	return nil, nil
}

type fixture struct {
	workflow    *Service
	registry    *matchservice.Service
	requests    *store.Memory
	matches     *matchstore.Memory
	lost        *loststore.Memory
	found       *foundstore.Memory
	notifier    *capturingNotifier
	owner       domain.UserID
	reporter    domain.UserID
	platformOp  domain.UserID
	publicAdmin domain.UserID
	match       *matchmodels.Match
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		requests:    store.NewMemory(),
		matches:     matchstore.NewMemory(),
		lost:        loststore.NewMemory(),
		found:       foundstore.NewMemory(),
		notifier:    &capturingNotifier{},
		owner:       domain.NewUserID(),
		reporter:    domain.NewUserID(),
		platformOp:  domain.NewUserID(),
		publicAdmin: domain.NewUserID(),
	}
	f.registry = matchservice.NewService(matchservice.Config{
		Store:      f.matches,
		LostItems:  f.lost,
		FoundItems: f.found,
		Notifier:   f.notifier,
		Threshold:  0.5,
	})
	f.workflow = NewService(Config{
		Store:     f.requests,
		Registry:  f.registry,
		Notifier:  f.notifier,
		Reviewers: &staticReviewers{admins: []domain.UserID{f.publicAdmin}},
	})
	f.seedMatch(t)
	return f
}

// seedMatch declares one lost and one matching found item and evaluates
// them into a single pending match.
func (f *fixture) seedMatch(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	docType := domain.NewDocumentTypeID()
	birth := time.Date(1990, time.May, 15, 0, 0, 0, 0, time.UTC)

	lost := &itemsmodels.LostItem{
		ID:             domain.NewLostItemID(),
		UserID:         f.owner,
		DocumentTypeID: docType,
		FirstName:      "Jean",
		LastName:       "Dupont",
		DateOfBirth:    birth,
		DocumentNumber: "AB123456",
		LostDate:       time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		LostLocation:   "Paris",
		Status:         itemsmodels.LostStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.lost.Create(ctx, lost))

	found := &itemsmodels.FoundItem{
		ID:             domain.NewFoundItemID(),
		UserID:         f.reporter,
		DocumentTypeID: docType,
		ImageRef:       "uploads/cni-7.jpg",
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
	require.NoError(t, f.found.Create(ctx, found))

	require.NoError(t, f.registry.EvaluateLostItem(ctx, lost.ID))
	matches, err := f.matches.ListByLostItem(ctx, lost.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	f.match = matches[0]
}

func (f *fixture) asPlatformAdmin() context.Context {
	return requestcontext.WithActor(context.Background(), requestcontext.Actor{
		UserID: f.platformOp, Role: domain.RolePlatformAdmin,
	})
}

func (f *fixture) asPublicAdmin() context.Context {
	return requestcontext.WithActor(context.Background(), requestcontext.Actor{
		UserID: f.publicAdmin, Role: domain.RolePublicAdmin,
	})
}

func (f *fixture) asCitizen(id domain.UserID) context.Context {
	return requestcontext.WithActor(context.Background(), requestcontext.Actor{
		UserID: id, Role: domain.RoleCitizen,
	})
}

func (f *fixture) escalate(t *testing.T) *models.VerificationRequest {
	t.Helper()
	req, err := f.workflow.Escalate(f.asPlatformAdmin(), f.match.ID, "papers look unusual")
	require.NoError(t, err)
	return req
}

func TestEscalateOpensPendingRequest(t *testing.T) {
	f := newFixture(t)
	req := f.escalate(t)

	require.Equal(t, models.StatusPending, req.Status)
	require.Equal(t, f.match.ID, req.MatchID)
	require.Equal(t, f.platformOp, req.RequestedBy)
	require.Equal(t, "papers look unusual", req.Notes)

	var escalationNotices int
	f.notifier.mu.Lock()
	for _, n := range f.notifier.sent {
		if n.Type == notifmodels.TypeVerificationEscalated {
			escalationNotices++
			require.Equal(t, f.publicAdmin, n.UserID)
		}
	}
	f.notifier.mu.Unlock()
	require.Equal(t, 1, escalationNotices, "every public admin hears about the escalation")
}

func TestEscalateTwiceReportsAlreadyEscalated(t *testing.T) {
	f := newFixture(t)
	f.escalate(t)

	_, err := f.workflow.Escalate(f.asPlatformAdmin(), f.match.ID, "")
	require.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyEscalated), "got %v", err)
}

func TestEscalateRequiresCapability(t *testing.T) {
	f := newFixture(t)

	_, err := f.workflow.Escalate(f.asCitizen(f.owner), f.match.ID, "")
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized), "got %v", err)

	// Public admins decide, but escalation belongs to the platform side.
	_, err = f.workflow.Escalate(f.asPublicAdmin(), f.match.ID, "")
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized), "got %v", err)
}

func TestStartReviewAssignsReviewer(t *testing.T) {
	f := newFixture(t)
	req := f.escalate(t)

	reviewed, err := f.workflow.StartReview(f.asPublicAdmin(), req.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusInReview, reviewed.Status)
	require.NotNil(t, reviewed.AssignedTo)
	require.Equal(t, f.publicAdmin, *reviewed.AssignedTo)

	_, err = f.workflow.StartReview(f.asPublicAdmin(), req.ID)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition), "got %v", err)
}

func TestConfirmVerifiesWithoutCompleting(t *testing.T) {
	f := newFixture(t)
	req := f.escalate(t)

	confirmed, err := f.workflow.Confirm(f.asPublicAdmin(), req.ID, "documents check out")
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.DecidedAt)

	// The pending match is confirmed as a side effect, but restitution has
	// not happened so it must not be completed.
	match, err := f.matches.FindByID(context.Background(), f.match.ID)
	require.NoError(t, err)
	require.Equal(t, matchmodels.StatusConfirmed, match.Status)
}

func TestRejectCascadesToMatch(t *testing.T) {
	f := newFixture(t)
	req := f.escalate(t)

	_, err := f.workflow.Reject(f.asPublicAdmin(), req.ID, "")
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "blank reason must be refused, got %v", err)

	rejected, err := f.workflow.Reject(f.asPublicAdmin(), req.ID, "claimed identity does not match the document")
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, rejected.Status)

	match, err := f.matches.FindByID(context.Background(), f.match.ID)
	require.NoError(t, err)
	require.Equal(t, matchmodels.StatusRejected, match.Status)
}

func TestSupervisedRestitutionCompletesEverything(t *testing.T) {
	f := newFixture(t)
	req := f.escalate(t)

	_, err := f.workflow.SuperviseRestitution(f.asPublicAdmin(), req.ID, "")
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition),
		"restitution before confirmation must be refused, got %v", err)

	_, err = f.workflow.Confirm(f.asPublicAdmin(), req.ID, "identity verified on site")
	require.NoError(t, err)

	supervised, err := f.workflow.SuperviseRestitution(f.asPublicAdmin(), req.ID, "handed over at the prefecture")
	require.NoError(t, err)
	require.Equal(t, models.StatusSupervised, supervised.Status)
	require.Contains(t, supervised.Notes, "handed over at the prefecture")

	match, err := f.matches.FindByID(context.Background(), f.match.ID)
	require.NoError(t, err)
	require.Equal(t, matchmodels.StatusCompleted, match.Status)

	lostAfter, err := f.lost.FindByID(context.Background(), f.match.LostItemID)
	require.NoError(t, err)
	require.Equal(t, itemsmodels.LostStatusResolved, lostAfter.Status)

	foundAfter, err := f.found.FindByID(context.Background(), f.match.FoundItemID)
	require.NoError(t, err)
	require.Equal(t, itemsmodels.FoundStatusReturned, foundAfter.Status)
}

func TestMatchCanBeReescalatedAfterClosure(t *testing.T) {
	f := newFixture(t)
	req := f.escalate(t)

	_, err := f.workflow.Confirm(f.asPublicAdmin(), req.ID, "ok")
	require.NoError(t, err)
	_, err = f.workflow.SuperviseRestitution(f.asPublicAdmin(), req.ID, "")
	require.NoError(t, err)

	// The match is now terminal, so a fresh escalation is refused for a
	// different reason than duplication.
	_, err = f.workflow.Escalate(f.asPlatformAdmin(), f.match.ID, "")
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition), "got %v", err)
}

func TestDecisionsRequireDecideCapability(t *testing.T) {
	f := newFixture(t)
	req := f.escalate(t)

	ctx := f.asPlatformAdmin() // escalates, but does not decide
	_, err := f.workflow.StartReview(ctx, req.ID)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized), "got %v", err)
	_, err = f.workflow.Confirm(ctx, req.ID, "x")
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized), "got %v", err)
	_, err = f.workflow.SuperviseRestitution(ctx, req.ID, "")
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized), "got %v", err)
}

func TestListOpenReturnsQueueOldestFirst(t *testing.T) {
	f := newFixture(t)
	req := f.escalate(t)

	open, err := f.workflow.ListOpen(f.asPublicAdmin())
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, req.ID, open[0].ID)

	_, err = f.workflow.ListOpen(f.asCitizen(f.owner))
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized), "got %v", err)
}

// seedCompetingMatch declares a second lost item for the same person and
// evaluates it into a second pending match on the fixture's found item.
func (f *fixture) seedCompetingMatch(t *testing.T) *matchmodels.Match {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	foundItem, err := f.found.FindByID(ctx, f.match.FoundItemID)
	require.NoError(t, err)

	rival := &itemsmodels.LostItem{
		ID:             domain.NewLostItemID(),
		UserID:         domain.NewUserID(),
		DocumentTypeID: foundItem.DocumentTypeID,
		FirstName:      "Jean",
		LastName:       "Dupont",
		DateOfBirth:    *foundItem.DateOfBirth,
		DocumentNumber: "AB123456",
		LostDate:       time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC),
		LostLocation:   "Paris",
		Status:         itemsmodels.LostStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.lost.Create(ctx, rival))
	require.NoError(t, f.registry.EvaluateLostItem(ctx, rival.ID))

	matches, err := f.matches.ListByLostItem(ctx, rival.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	return matches[0]
}

func TestConfirmRefusedWhenFoundItemAlreadyClaimed(t *testing.T) {
	f := newFixture(t)
	rivalMatch := f.seedCompetingMatch(t)

	req := f.escalate(t)
	rivalReq, err := f.workflow.Escalate(f.asPlatformAdmin(), rivalMatch.ID, "second claimant")
	require.NoError(t, err)

	_, err = f.workflow.Confirm(f.asPublicAdmin(), req.ID, "first claimant verified")
	require.NoError(t, err)

	// The found item now belongs to the first match; the rival decision must
	// fail outright instead of recording a confirmation it cannot honor.
	_, err = f.workflow.Confirm(f.asPublicAdmin(), rivalReq.ID, "second claimant verified")
	require.Error(t, err)

	after, err := f.requests.FindByID(context.Background(), rivalReq.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, after.Status)

	// And restitution stays unreachable for it: the request never went
	// confirmed, and the rival match never completes.
	_, err = f.workflow.SuperviseRestitution(f.asPublicAdmin(), rivalReq.ID, "")
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition), "got %v", err)

	rivalAfter, err := f.matches.FindByID(context.Background(), rivalMatch.ID)
	require.NoError(t, err)
	require.NotEqual(t, matchmodels.StatusCompleted, rivalAfter.Status)
}

func TestSuperviseRollsNothingWhenMatchCannotComplete(t *testing.T) {
	f := newFixture(t)
	req := f.escalate(t)

	_, err := f.workflow.Confirm(f.asPublicAdmin(), req.ID, "identity verified")
	require.NoError(t, err)

	// The owner withdraws: the confirmed match is rejected underneath the
	// open request.
	_, err = f.registry.Reject(f.asCitizen(f.owner), f.match.ID, "owner recovered the document elsewhere")
	require.NoError(t, err)

	_, err = f.workflow.SuperviseRestitution(f.asPublicAdmin(), req.ID, "handover attempted")
	require.Error(t, err)

	// No partial terminal state: the request is still confirmed, the match
	// still rejected.
	after, err := f.requests.FindByID(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, after.Status)

	match, err := f.matches.FindByID(context.Background(), f.match.ID)
	require.NoError(t, err)
	require.Equal(t, matchmodels.StatusRejected, match.Status)
}
