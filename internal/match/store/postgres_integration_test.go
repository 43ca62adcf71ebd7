//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	catalogmodels "findmyid/internal/catalog/models"
	catalogstore "findmyid/internal/catalog/store"
	identitymodels "findmyid/internal/identity/models"
	identitystore "findmyid/internal/identity/store"
	itemsmodels "findmyid/internal/items/models"
	foundstore "findmyid/internal/items/store/found"
	loststore "findmyid/internal/items/store/lost"
	"findmyid/internal/match/models"
	"findmyid/internal/match/store"
	"findmyid/pkg/domain"
	"findmyid/pkg/platform/sentinel"
	"findmyid/pkg/testutil/containers"
)

type pairFixture struct {
	matches *store.Postgres
	lostID  domain.LostItemID
	foundID domain.FoundItemID
}

func newPairFixture(t *testing.T) *pairFixture {
	t.Helper()
	pg := containers.NewPostgresContainer(t)
	t.Cleanup(func() { pg.Terminate(t) })

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	user := &identitymodels.User{
		ID:           domain.NewUserID(),
		Username:     "integration",
		Email:        "integration@example.org",
		Role:         domain.RoleCitizen,
		PasswordHash: "x",
		CreatedAt:    now,
	}
	require.NoError(t, identitystore.NewPostgres(pg.DB).Create(ctx, user))

	docType := &catalogmodels.DocumentType{ID: domain.NewDocumentTypeID(), Name: "Passeport"}
	require.NoError(t, catalogstore.NewPostgres(pg.DB).Create(ctx, docType))

	lost := &itemsmodels.LostItem{
		ID:             domain.NewLostItemID(),
		UserID:         user.ID,
		DocumentTypeID: docType.ID,
		FirstName:      "Jean",
		LastName:       "Dupont",
		DateOfBirth:    time.Date(1990, 5, 14, 0, 0, 0, 0, time.UTC),
		LostDate:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		LostLocation:   "Paris",
		Status:         itemsmodels.LostStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, loststore.NewPostgres(pg.DB).Create(ctx, lost))

	found := &itemsmodels.FoundItem{
		ID:             domain.NewFoundItemID(),
		UserID:         user.ID,
		DocumentTypeID: docType.ID,
		ImageRef:       "uploads/doc.jpg",
		FoundDate:      time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		FoundLocation:  "Paris",
		Status:         itemsmodels.FoundStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, foundstore.NewPostgres(pg.DB).Create(ctx, found))

	return &pairFixture{
		matches: store.NewPostgres(pg.DB),
		lostID:  lost.ID,
		foundID: found.ID,
	}
}

func newMatch(f *pairFixture) *models.Match {
	now := time.Now().UTC()
	return &models.Match{
		ID:              domain.NewMatchID(),
		LostItemID:      f.lostID,
		FoundItemID:     f.foundID,
		ConfidenceScore: 0.9,
		Criteria:        []models.Criterion{},
		Status:          models.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// The partial unique index admits exactly one non-terminal match per pair,
// no matter how many evaluators race on it.
func TestConcurrentCreatesAdmitOneActiveMatch(t *testing.T) {
	f := newPairFixture(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.matches.Create(ctx, newMatch(f))
		}()
	}
	wg.Wait()
	close(results)

	var created, duplicates int
	for err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, sentinel.ErrDuplicate):
			duplicates++
		default:
			t.Fatalf("unexpected create error: %v", err)
		}
	}
	require.Equal(t, 1, created)
	require.Equal(t, writers-1, duplicates)

	active, err := f.matches.FindActiveByPair(ctx, f.lostID, f.foundID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, active.Status)
}

// A terminal transition releases the pair for a fresh proposal.
func TestTerminalMatchReleasesPair(t *testing.T) {
	f := newPairFixture(t)
	ctx := context.Background()

	first := newMatch(f)
	require.NoError(t, f.matches.Create(ctx, first))
	require.ErrorIs(t, f.matches.Create(ctx, newMatch(f)), sentinel.ErrDuplicate)

	_, err := f.matches.Execute(ctx, first.ID,
		func(m *models.Match) error { return m.CanReject() },
		func(m *models.Match) { m.ApplyReject("wrong person", time.Now().UTC()) },
	)
	require.NoError(t, err)

	_, err = f.matches.FindActiveByPair(ctx, f.lostID, f.foundID)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, f.matches.Create(ctx, newMatch(f)))
}

// Concurrent rescores serialize on the row lock; the last committed score
// wins and no update is lost to a stale read.
func TestExecuteSerializesRescores(t *testing.T) {
	f := newPairFixture(t)
	ctx := context.Background()

	match := newMatch(f)
	require.NoError(t, f.matches.Create(ctx, match))

	const writers = 5
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		score := 0.5 + float64(i)*0.1
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.matches.Execute(ctx, match.ID,
				func(m *models.Match) error { return nil },
				func(m *models.Match) {
					m.ApplyRescore(score, m.Criteria, time.Now().UTC())
				},
			)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.matches.FindByID(ctx, match.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, got.ConfidenceScore, 0.5)
	require.LessOrEqual(t, got.ConfidenceScore, 0.9)
	require.Equal(t, models.StatusPending, got.Status)
}
