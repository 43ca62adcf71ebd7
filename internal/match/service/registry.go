// Package service implements the match registry: it scores newly declared
// items against the opposite active pool, owns the Match lifecycle, and
// fans out notifications after transitions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	historymodels "findmyid/internal/history/models"
	itemsmodels "findmyid/internal/items/models"
	"findmyid/internal/match/metrics"
	"findmyid/internal/match/models"
	"findmyid/internal/match/scorer"
	notifmodels "findmyid/internal/notification/models"
	"findmyid/pkg/domain"
	"findmyid/pkg/platform/sentinel"
	"findmyid/pkg/requestcontext"
)

// scoreConcurrency bounds the candidate fan-out per evaluation.
const scoreConcurrency = 8

type Store interface {
	Create(ctx context.Context, match *models.Match) error
	FindByID(ctx context.Context, id domain.MatchID) (*models.Match, error)
	FindActiveByPair(ctx context.Context, lostID domain.LostItemID, foundID domain.FoundItemID) (*models.Match, error)
	Execute(ctx context.Context, id domain.MatchID, validate func(*models.Match) error, mutate func(*models.Match)) (*models.Match, error)
	ListByLostItem(ctx context.Context, lostID domain.LostItemID) ([]*models.Match, error)
	ListByFoundItem(ctx context.Context, foundID domain.FoundItemID) ([]*models.Match, error)
}

type LostItems interface {
	FindByID(ctx context.Context, id domain.LostItemID) (*itemsmodels.LostItem, error)
	ListActiveByDocumentType(ctx context.Context, docType domain.DocumentTypeID) ([]*itemsmodels.LostItem, error)
	Execute(ctx context.Context, id domain.LostItemID, validate func(*itemsmodels.LostItem) error, mutate func(*itemsmodels.LostItem)) (*itemsmodels.LostItem, error)
}

type FoundItems interface {
	FindByID(ctx context.Context, id domain.FoundItemID) (*itemsmodels.FoundItem, error)
	ListActiveByDocumentType(ctx context.Context, docType domain.DocumentTypeID) ([]*itemsmodels.FoundItem, error)
	Execute(ctx context.Context, id domain.FoundItemID, validate func(*itemsmodels.FoundItem) error, mutate func(*itemsmodels.FoundItem)) (*itemsmodels.FoundItem, error)
}

// Notifier delivers recipient notifications. Implementations are idempotent
// per EventID, so the registry can safely re-deliver under retry.
type Notifier interface {
	Notify(ctx context.Context, n notifmodels.Notification) error
}

// Recorder appends to the action trail without blocking the caller.
type Recorder interface {
	Record(ctx context.Context, event historymodels.Event)
}

// Config carries the registry's collaborators. Notifier, Recorder, Logger
// and Metrics may be nil; the registry degrades to the silent behavior.
type Config struct {
	Store      Store
	LostItems  LostItems
	FoundItems FoundItems
	Notifier   Notifier
	Recorder   Recorder
	Threshold  float64
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

type Service struct {
	store      Store
	lostItems  LostItems
	foundItems FoundItems
	notifier   Notifier
	recorder   Recorder
	threshold  float64
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

func NewService(cfg Config) *Service {
	return &Service{
		store:      cfg.Store,
		lostItems:  cfg.LostItems,
		foundItems: cfg.FoundItems,
		notifier:   cfg.Notifier,
		recorder:   cfg.Recorder,
		threshold:  cfg.Threshold,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		tracer:     otel.Tracer("findmyid/match"),
	}
}

// EvaluateLostItem scores a newly declared or edited lost item against every
// active found item of the same document type, persisting one pending match
// per pair at or above the threshold. Re-evaluation rescores existing pending
// matches instead of duplicating them; a confirmed match keeps the score its
// confirmation was based on.
func (s *Service) EvaluateLostItem(ctx context.Context, id domain.LostItemID) error {
	ctx, span := s.tracer.Start(ctx, "registry.EvaluateLostItem",
		trace.WithAttributes(attribute.String("lost_item_id", id.String())))
	defer span.End()

	lost, err := s.lostItems.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !lost.Matchable() {
		return nil
	}

	candidates, err := s.foundItems.ListActiveByDocumentType(ctx, lost.DocumentTypeID)
	if err != nil {
		return fmt.Errorf("list found candidates: %w", err)
	}

	pairs := make([]pair, len(candidates))
	for i, found := range candidates {
		pairs[i] = pair{lost: lost, found: found}
	}
	return s.evaluate(ctx, pairs)
}

// EvaluateFoundItem is the mirror of EvaluateLostItem for a new found item.
func (s *Service) EvaluateFoundItem(ctx context.Context, id domain.FoundItemID) error {
	ctx, span := s.tracer.Start(ctx, "registry.EvaluateFoundItem",
		trace.WithAttributes(attribute.String("found_item_id", id.String())))
	defer span.End()

	found, err := s.foundItems.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !found.Matchable() {
		return nil
	}

	candidates, err := s.lostItems.ListActiveByDocumentType(ctx, found.DocumentTypeID)
	if err != nil {
		return fmt.Errorf("list lost candidates: %w", err)
	}

	pairs := make([]pair, len(candidates))
	for i, lost := range candidates {
		pairs[i] = pair{lost: lost, found: found}
	}
	return s.evaluate(ctx, pairs)
}

type pair struct {
	lost  *itemsmodels.LostItem
	found *itemsmodels.FoundItem
}

type hit struct {
	pair
	result scorer.Result
}

// evaluate scores all pairs concurrently, then persists the hits
// sequentially so duplicate-fold retries never race with each other.
func (s *Service) evaluate(ctx context.Context, pairs []pair) error {
	start := time.Now()
	defer func() {
		s.metrics.ObserveEvaluateLatency(time.Since(start))
		s.metrics.ObserveCandidatesScanned(len(pairs))
	}()

	var mu sync.Mutex
	var hits []hit

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scoreConcurrency)
	for _, p := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := scorer.Score(p.lost, p.found)
			if res.Confidence < s.threshold {
				return nil
			}
			mu.Lock()
			hits = append(hits, hit{pair: p, result: res})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, h := range hits {
		if err := s.persistHit(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// persistHit creates a pending match for the pair, or folds into the
// existing active match by rescoring it. A Create that loses a race against
// a concurrent evaluator surfaces as a duplicate and is retried once as an
// update of the surviving row.
func (s *Service) persistHit(ctx context.Context, h hit) error {
	now := requestcontext.Now(ctx)

	existing, err := s.store.FindActiveByPair(ctx, h.lost.ID, h.found.ID)
	switch {
	case err == nil:
		return s.rescore(ctx, existing.ID, h.result)
	case errors.Is(err, sentinel.ErrNotFound):
		// fall through to create
	default:
		return fmt.Errorf("find active match: %w", err)
	}

	match := &models.Match{
		ID:              domain.NewMatchID(),
		LostItemID:      h.lost.ID,
		FoundItemID:     h.found.ID,
		ConfidenceScore: h.result.Confidence,
		Criteria:        h.result.Criteria,
		Status:          models.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = s.store.Create(ctx, match)
	if errors.Is(err, sentinel.ErrDuplicate) {
		surviving, ferr := s.store.FindActiveByPair(ctx, h.lost.ID, h.found.ID)
		if ferr != nil {
			return fmt.Errorf("resolve duplicate match: %w", ferr)
		}
		return s.rescore(ctx, surviving.ID, h.result)
	}
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}

	s.metrics.ObserveScore(h.result.Confidence)
	s.metrics.IncrementTransition(string(models.StatusPending))
	if s.logger != nil {
		s.logger.InfoContext(ctx, "match proposed",
			"match_id", match.ID,
			"lost_item_id", h.lost.ID,
			"found_item_id", h.found.ID,
			"confidence", h.result.Confidence,
		)
	}

	s.record(ctx, historymodels.Event{
		OccurredAt:  now,
		Action:      historymodels.ActionMatchProposed,
		Description: fmt.Sprintf("confidence %.2f", h.result.Confidence),
		MatchID:     &match.ID,
	})
	s.notify(ctx, notifmodels.Notification{
		EventID: "match_found:" + match.ID.String(),
		UserID:  h.lost.UserID,
		MatchID: &match.ID,
		Type:    notifmodels.TypeMatchFound,
		Title:   "Correspondance trouvée",
		Message: "Un document correspondant à votre déclaration a été retrouvé.",
	})
	return nil
}

// rescore refreshes an existing pending match's score and criteria. Matches
// past pending keep the score a human already acted on; rescoring them is a
// no-op, not an error, because evaluation is fire-and-forget.
func (s *Service) rescore(ctx context.Context, id domain.MatchID, res scorer.Result) error {
	now := requestcontext.Now(ctx)
	_, err := s.store.Execute(ctx, id,
		func(m *models.Match) error {
			if m.Status != models.StatusPending {
				return sentinel.ErrInvalidState
			}
			return nil
		},
		func(m *models.Match) {
			m.ApplyRescore(res.Confidence, res.Criteria, now)
		},
	)
	if errors.Is(err, sentinel.ErrInvalidState) || errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("rescore match: %w", err)
	}
	s.record(ctx, historymodels.Event{
		OccurredAt:  now,
		Action:      historymodels.ActionMatchRescored,
		Description: fmt.Sprintf("confidence %.2f", res.Confidence),
		MatchID:     &id,
	})
	return nil
}

// notify delivers best-effort: a failed notification never fails the
// transition that produced it.
func (s *Service) notify(ctx context.Context, n notifmodels.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "notification delivery failed",
			"event_id", n.EventID,
			"user_id", n.UserID,
			"error", err,
		)
	}
}

func (s *Service) record(ctx context.Context, event historymodels.Event) {
	if s.recorder == nil {
		return
	}
	if actor, ok := requestcontext.ActorFrom(ctx); ok {
		event.ActorID = actor.UserID
	}
	event.RequestID = requestcontext.RequestID(ctx)
	s.recorder.Record(ctx, event)
}
