package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	historymodels "findmyid/internal/history/models"
	itemsmodels "findmyid/internal/items/models"
	"findmyid/internal/match/models"
	notifmodels "findmyid/internal/notification/models"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/platform/sentinel"
	"findmyid/pkg/requestcontext"
)

// Confirm moves a pending match to confirmed and marks the found item
// matched, taking it out of the candidate pool. Allowed for a party to the
// match or an actor with moderation capability.
func (s *Service) Confirm(ctx context.Context, id domain.MatchID) (*models.Match, error) {
	_, lost, found, err := s.loadMatchParties(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParty(ctx, lost, found); err != nil {
		return nil, err
	}
	return s.confirm(ctx, id, lost, found)
}

// EnsureConfirmed confirms a still-pending match as the side effect of a
// verification decision. An already confirmed match is returned unchanged.
// The caller has authorized the actor.
func (s *Service) EnsureConfirmed(ctx context.Context, id domain.MatchID) (*models.Match, error) {
	match, lost, found, err := s.loadMatchParties(ctx, id)
	if err != nil {
		return nil, err
	}
	if match.Status == models.StatusConfirmed {
		return match, nil
	}
	return s.confirm(ctx, id, lost, found)
}

func (s *Service) confirm(ctx context.Context, id domain.MatchID, lost *itemsmodels.LostItem, found *itemsmodels.FoundItem) (*models.Match, error) {
	now := requestcontext.Now(ctx)
	if err := found.CanMarkMatched(); err != nil {
		return nil, err
	}

	confirmed, err := s.store.Execute(ctx, id,
		func(m *models.Match) error { return m.CanConfirm() },
		func(m *models.Match) { m.ApplyConfirm(now) },
	)
	if err != nil {
		return nil, err
	}

	_, err = s.foundItems.Execute(ctx, found.ID,
		func(f *itemsmodels.FoundItem) error { return f.CanMarkMatched() },
		func(f *itemsmodels.FoundItem) { f.ApplyMatched(now) },
	)
	if err != nil {
		// The found item was claimed by another confirmed match between the
		// pre-check and here. This match cannot stand; reject it with a
		// system reason and report the conflict.
		_, rerr := s.store.Execute(ctx, id,
			func(m *models.Match) error { return m.CanReject() },
			func(m *models.Match) { m.ApplyReject("document claimed by another confirmed match", now) },
		)
		if rerr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to roll back confirmation",
				"match_id", id, "error", rerr)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "found item is no longer available")
	}

	s.metrics.IncrementTransition(string(models.StatusConfirmed))
	s.record(ctx, historymodels.Event{
		OccurredAt: now,
		Action:     historymodels.ActionMatchConfirmed,
		MatchID:    &id,
	})
	s.notifyParties(ctx, confirmed, lost.UserID, found.UserID,
		notifmodels.TypeMatchConfirmed, "match_confirmed",
		"Correspondance confirmée",
		"La correspondance a été confirmée. Une vérification d'identité va suivre.")
	return confirmed, nil
}

// Reject turns down a pending or confirmed match. The reason is mandatory.
// Rejecting a confirmed match releases the found item back to the pool.
func (s *Service) Reject(ctx context.Context, id domain.MatchID, reason string) (*models.Match, error) {
	_, lost, found, err := s.loadMatchParties(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParty(ctx, lost, found); err != nil {
		return nil, err
	}
	return s.reject(ctx, id, lost, found, reason)
}

// RejectByDecision rejects the match as the outcome of a failed verification.
// The caller has authorized the actor.
func (s *Service) RejectByDecision(ctx context.Context, id domain.MatchID, reason string) (*models.Match, error) {
	_, lost, found, err := s.loadMatchParties(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.reject(ctx, id, lost, found, reason)
}

func (s *Service) reject(ctx context.Context, id domain.MatchID, lost *itemsmodels.LostItem, found *itemsmodels.FoundItem, reason string) (*models.Match, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "rejection reason is required")
	}

	now := requestcontext.Now(ctx)
	wasConfirmed := false
	rejected, err := s.store.Execute(ctx, id,
		func(m *models.Match) error {
			wasConfirmed = m.Status == models.StatusConfirmed
			return m.CanReject()
		},
		func(m *models.Match) { m.ApplyReject(reason, now) },
	)
	if err != nil {
		return nil, err
	}

	if wasConfirmed {
		s.releaseFoundItem(ctx, found.ID)
	}

	s.metrics.IncrementTransition(string(models.StatusRejected))
	s.record(ctx, historymodels.Event{
		OccurredAt:  now,
		Action:      historymodels.ActionMatchRejected,
		Description: reason,
		MatchID:     &id,
	})
	s.notifyParties(ctx, rejected, lost.UserID, found.UserID,
		notifmodels.TypeMatchRejected, "match_rejected",
		"Correspondance rejetée",
		"La correspondance a été rejetée: "+reason)
	return rejected, nil
}

// Complete finalizes a confirmed match after supervised restitution: the
// lost item becomes resolved, the found item returned. Invoked by the
// verification workflow, which has already authorized the actor.
func (s *Service) Complete(ctx context.Context, id domain.MatchID) (*models.Match, error) {
	now := requestcontext.Now(ctx)
	completed, err := s.store.Execute(ctx, id,
		func(m *models.Match) error { return m.CanComplete() },
		func(m *models.Match) { m.ApplyComplete(now) },
	)
	if err != nil {
		return nil, err
	}

	lost, err := s.lostItems.FindByID(ctx, completed.LostItemID)
	if err != nil {
		return nil, fmt.Errorf("load lost item: %w", err)
	}
	found, err := s.foundItems.FindByID(ctx, completed.FoundItemID)
	if err != nil {
		return nil, fmt.Errorf("load found item: %w", err)
	}

	if _, err := s.lostItems.Execute(ctx, lost.ID,
		func(l *itemsmodels.LostItem) error { return l.CanResolve() },
		func(l *itemsmodels.LostItem) { l.ApplyResolve(now) },
	); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to resolve lost item",
			"lost_item_id", lost.ID, "match_id", id, "error", err)
	}
	if _, err := s.foundItems.Execute(ctx, found.ID,
		func(f *itemsmodels.FoundItem) error { return f.CanReturn() },
		func(f *itemsmodels.FoundItem) { f.ApplyReturned(now) },
	); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to mark found item returned",
			"found_item_id", found.ID, "match_id", id, "error", err)
	}

	s.metrics.IncrementTransition(string(models.StatusCompleted))
	s.record(ctx, historymodels.Event{
		OccurredAt: now,
		Action:     historymodels.ActionMatchCompleted,
		MatchID:    &id,
	})
	s.notifyParties(ctx, completed, lost.UserID, found.UserID,
		notifmodels.TypeItemHandedOver, "item_handed_over",
		"Document restitué",
		"Le document a été restitué à son propriétaire sous supervision.")
	return completed, nil
}

// Get returns one match, visible to its parties and to moderators.
func (s *Service) Get(ctx context.Context, id domain.MatchID) (*models.Match, error) {
	match, lost, found, err := s.loadMatchParties(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParty(ctx, lost, found); err != nil {
		return nil, err
	}
	return match, nil
}

// ListForLostItem returns every match proposed for one lost item, visible to
// the item's owner and to moderators.
func (s *Service) ListForLostItem(ctx context.Context, lostID domain.LostItemID) ([]*models.Match, error) {
	lost, err := s.lostItems.FindByID(ctx, lostID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "lost item not found")
	}
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, lost.UserID); err != nil {
		return nil, err
	}
	return s.store.ListByLostItem(ctx, lostID)
}

// ListForFoundItem is the mirror of ListForLostItem.
func (s *Service) ListForFoundItem(ctx context.Context, foundID domain.FoundItemID) ([]*models.Match, error) {
	found, err := s.foundItems.FindByID(ctx, foundID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "found item not found")
	}
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, found.UserID); err != nil {
		return nil, err
	}
	return s.store.ListByFoundItem(ctx, foundID)
}

func (s *Service) loadMatchParties(ctx context.Context, id domain.MatchID) (*models.Match, *itemsmodels.LostItem, *itemsmodels.FoundItem, error) {
	match, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, nil, dErrors.New(dErrors.CodeNotFound, "match not found")
	}
	if err != nil {
		return nil, nil, nil, err
	}
	lost, err := s.lostItems.FindByID(ctx, match.LostItemID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load lost item: %w", err)
	}
	found, err := s.foundItems.FindByID(ctx, match.FoundItemID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load found item: %w", err)
	}
	return match, lost, found, nil
}

// authorizeParty admits the owner of either item and any actor holding the
// moderation capability.
func (s *Service) authorizeParty(ctx context.Context, lost *itemsmodels.LostItem, found *itemsmodels.FoundItem) error {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if actor.UserID == lost.UserID || actor.UserID == found.UserID {
		return nil
	}
	if actor.Can(domain.CapabilityModerateMatches) {
		return nil
	}
	return dErrors.New(dErrors.CodeUnauthorized, "not a party to this match")
}

func (s *Service) authorizeOwner(ctx context.Context, ownerID domain.UserID) error {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if actor.UserID == ownerID || actor.Can(domain.CapabilityModerateMatches) {
		return nil
	}
	return dErrors.New(dErrors.CodeUnauthorized, "not the item owner")
}

// releaseFoundItem reverts a matched found item to the active pool. A found
// item that is not currently matched is left alone.
func (s *Service) releaseFoundItem(ctx context.Context, id domain.FoundItemID) {
	now := requestcontext.Now(ctx)
	_, err := s.foundItems.Execute(ctx, id,
		func(f *itemsmodels.FoundItem) error {
			if f.Status != itemsmodels.FoundStatusMatched {
				return sentinel.ErrInvalidState
			}
			return nil
		},
		func(f *itemsmodels.FoundItem) { f.ApplyUnmatched(now) },
	)
	if err != nil && !errors.Is(err, sentinel.ErrInvalidState) && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to release found item",
			"found_item_id", id, "error", err)
	}
}

// notifyParties sends one deduplicated notification to each distinct party.
func (s *Service) notifyParties(
	ctx context.Context,
	match *models.Match,
	lostOwner, foundOwner domain.UserID,
	kind notifmodels.Type,
	eventPrefix, title, message string,
) {
	recipients := []domain.UserID{lostOwner}
	if foundOwner != lostOwner {
		recipients = append(recipients, foundOwner)
	}
	for _, recipient := range recipients {
		s.notify(ctx, notifmodels.Notification{
			EventID: eventPrefix + ":" + match.ID.String() + ":" + recipient.String(),
			UserID:  recipient,
			MatchID: &match.ID,
			Type:    kind,
			Title:   title,
			Message: message,
		})
	}
}
