package models

import (
	"time"

	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
)

// MatchStatus tracks a candidate pairing's lifecycle.
type MatchStatus string

const (
	// StatusPending: proposed by the registry, awaiting acceptance.
	StatusPending MatchStatus = "pending"
	// StatusConfirmed: accepted by a party or a platform admin.
	StatusConfirmed MatchStatus = "confirmed"
	// StatusRejected: turned down; terminal. The pair may be re-proposed
	// later if either item's content changes.
	StatusRejected MatchStatus = "rejected"
	// StatusCompleted: restitution supervised; terminal.
	StatusCompleted MatchStatus = "completed"
)

// Terminal reports whether no further transitions are possible.
func (s MatchStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// Criterion is one named signal that contributed to a match score. The
// ordered list is kept for UI transparency; Weight is the signal's actual
// contribution to the confidence, Matched marks a strong signal.
type Criterion struct {
	Name    string  `json:"name"`
	Weight  float64 `json:"weight"`
	Matched bool    `json:"matched"`
}

// Match is a scored candidate pairing of one lost and one found item.
//
// Invariants:
//   - At most one non-terminal Match exists per (LostItemID, FoundItemID).
//   - pending → confirmed | rejected; confirmed → rejected | completed.
//   - Completed is only applied by the verification workflow after
//     supervised restitution.
//   - RejectionReason is non-empty exactly when Status is rejected.
type Match struct {
	ID              domain.MatchID     `json:"id"`
	LostItemID      domain.LostItemID  `json:"lost_item_id"`
	FoundItemID     domain.FoundItemID `json:"found_item_id"`
	ConfidenceScore float64            `json:"confidence_score"`
	Criteria        []Criterion        `json:"match_criteria"`
	Status          MatchStatus        `json:"status"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func (m *Match) CanConfirm() error {
	if m.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvalidTransition, "match is not pending")
	}
	return nil
}

func (m *Match) ApplyConfirm(now time.Time) {
	m.Status = StatusConfirmed
	m.UpdatedAt = now
}

func (m *Match) CanReject() error {
	if m.Status != StatusPending && m.Status != StatusConfirmed {
		return dErrors.New(dErrors.CodeInvalidTransition, "match is neither pending nor confirmed")
	}
	return nil
}

func (m *Match) ApplyReject(reason string, now time.Time) {
	m.Status = StatusRejected
	m.RejectionReason = reason
	m.UpdatedAt = now
}

func (m *Match) CanComplete() error {
	if m.Status != StatusConfirmed {
		return dErrors.New(dErrors.CodeInvalidTransition, "match is not confirmed")
	}
	return nil
}

func (m *Match) ApplyComplete(now time.Time) {
	m.Status = StatusCompleted
	m.UpdatedAt = now
}

// ApplyRescore refreshes score and criteria on an existing non-terminal
// match. Re-scoring never changes status.
func (m *Match) ApplyRescore(score float64, criteria []Criterion, now time.Time) {
	m.ConfidenceScore = score
	m.Criteria = criteria
	m.UpdatedAt = now
}
