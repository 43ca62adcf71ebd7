package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"findmyid/internal/match/models"
	"findmyid/pkg/domain"
	"findmyid/pkg/platform/sentinel"
)

type MatchStoreSuite struct {
	suite.Suite
	store *Memory
	ctx   context.Context
}

func (s *MatchStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func TestMatchStoreSuite(t *testing.T) {
	suite.Run(t, new(MatchStoreSuite))
}

func (s *MatchStoreSuite) newMatch(lost domain.LostItemID, found domain.FoundItemID) *models.Match {
	now := time.Now()
	return &models.Match{
		ID:              domain.NewMatchID(),
		LostItemID:      lost,
		FoundItemID:     found,
		ConfidenceScore: 0.72,
		Criteria: []models.Criterion{
			{Name: "name_similarity", Weight: 0.35, Matched: true},
		},
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *MatchStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds match by ID", func() {
		match := s.newMatch(domain.NewLostItemID(), domain.NewFoundItemID())
		s.Require().NoError(s.store.Create(s.ctx, match))

		found, err := s.store.FindByID(s.ctx, match.ID)
		s.Require().NoError(err)
		s.Equal(match.ConfidenceScore, found.ConfidenceScore)
		s.Equal(models.StatusPending, found.Status)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, domain.NewMatchID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("finds the active match for a pair", func() {
		match := s.newMatch(domain.NewLostItemID(), domain.NewFoundItemID())
		s.Require().NoError(s.store.Create(s.ctx, match))

		active, err := s.store.FindActiveByPair(s.ctx, match.LostItemID, match.FoundItemID)
		s.Require().NoError(err)
		s.Equal(match.ID, active.ID)
	})
}

func (s *MatchStoreSuite) TestActivePairUniqueness() {
	lost, found := domain.NewLostItemID(), domain.NewFoundItemID()

	s.Run("rejects a second active match on the same pair", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newMatch(lost, found)))

		err := s.store.Create(s.ctx, s.newMatch(lost, found))
		s.Require().ErrorIs(err, sentinel.ErrDuplicate)
	})

	s.Run("allows a new match after the first turns terminal", func() {
		active, err := s.store.FindActiveByPair(s.ctx, lost, found)
		s.Require().NoError(err)

		_, err = s.store.Execute(s.ctx, active.ID,
			func(m *models.Match) error { return m.CanReject() },
			func(m *models.Match) { m.ApplyReject("wrong person", time.Now()) },
		)
		s.Require().NoError(err)

		s.Require().NoError(s.store.Create(s.ctx, s.newMatch(lost, found)))
	})
}

func (s *MatchStoreSuite) TestExecute() {
	s.Run("validate failure leaves the match untouched", func() {
		match := s.newMatch(domain.NewLostItemID(), domain.NewFoundItemID())
		match.Status = models.StatusRejected
		match.RejectionReason = "not mine"
		s.Require().NoError(s.store.Create(s.ctx, match))

		_, err := s.store.Execute(s.ctx, match.ID,
			func(m *models.Match) error { return m.CanConfirm() },
			func(m *models.Match) { m.ApplyConfirm(time.Now()) },
		)
		s.Require().Error(err)

		after, err := s.store.FindByID(s.ctx, match.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, after.Status)
	})

	s.Run("mutation is visible to later reads", func() {
		match := s.newMatch(domain.NewLostItemID(), domain.NewFoundItemID())
		s.Require().NoError(s.store.Create(s.ctx, match))

		updated, err := s.store.Execute(s.ctx, match.ID,
			func(m *models.Match) error { return m.CanConfirm() },
			func(m *models.Match) { m.ApplyConfirm(time.Now()) },
		)
		s.Require().NoError(err)
		s.Equal(models.StatusConfirmed, updated.Status)

		after, err := s.store.FindByID(s.ctx, match.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusConfirmed, after.Status)
	})

	s.Run("terminal transition releases the pair", func() {
		match := s.newMatch(domain.NewLostItemID(), domain.NewFoundItemID())
		s.Require().NoError(s.store.Create(s.ctx, match))

		_, err := s.store.Execute(s.ctx, match.ID,
			func(m *models.Match) error { return m.CanReject() },
			func(m *models.Match) { m.ApplyReject("mismatch", time.Now()) },
		)
		s.Require().NoError(err)

		_, err = s.store.FindActiveByPair(s.ctx, match.LostItemID, match.FoundItemID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MatchStoreSuite) TestListing() {
	lost := domain.NewLostItemID()
	first := s.newMatch(lost, domain.NewFoundItemID())
	first.CreatedAt = time.Now().Add(-time.Hour)
	second := s.newMatch(lost, domain.NewFoundItemID())
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))

	s.Run("lists by lost item, newest first", func() {
		matches, err := s.store.ListByLostItem(s.ctx, lost)
		s.Require().NoError(err)
		s.Require().Len(matches, 2)
		s.Equal(second.ID, matches[0].ID)
		s.Equal(first.ID, matches[1].ID)
	})

	s.Run("lists by found item", func() {
		matches, err := s.store.ListByFoundItem(s.ctx, first.FoundItemID)
		s.Require().NoError(err)
		s.Require().Len(matches, 1)
		s.Equal(first.ID, matches[0].ID)
	})

	s.Run("stored matches are isolated from caller mutation", func() {
		matches, err := s.store.ListByLostItem(s.ctx, lost)
		s.Require().NoError(err)
		matches[0].Criteria[0].Name = "tampered"

		again, err := s.store.ListByLostItem(s.ctx, lost)
		s.Require().NoError(err)
		s.Equal("name_similarity", again[0].Criteria[0].Name)
	})
}
