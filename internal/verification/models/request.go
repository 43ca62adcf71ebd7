package models

import (
	"time"

	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
)

// RequestStatus tracks a verification request through human review.
type RequestStatus string

const (
	// StatusPending: escalated, waiting for a public admin to pick it up.
	StatusPending RequestStatus = "pending"
	// StatusInReview: a public admin has taken the file.
	StatusInReview RequestStatus = "in_review"
	// StatusConfirmed: identity verified; restitution may be scheduled.
	StatusConfirmed RequestStatus = "confirmed"
	// StatusRejected: identity check failed; terminal.
	StatusRejected RequestStatus = "rejected"
	// StatusSupervised: restitution happened under supervision; terminal.
	StatusSupervised RequestStatus = "supervised"
)

// Terminal reports whether no further transitions are possible.
func (s RequestStatus) Terminal() bool {
	return s == StatusRejected || s == StatusSupervised
}

// Open reports whether the request still blocks a new escalation of the
// same match.
func (s RequestStatus) Open() bool { return !s.Terminal() }

// VerificationRequest is the human identity check layered on a match before
// a document is handed over.
//
// Invariants:
//   - At most one open request exists per match.
//   - pending → in_review → {confirmed, rejected}; pending → {confirmed,
//     rejected} directly; confirmed → supervised.
//   - AssignedTo is set exactly when a review has started.
type VerificationRequest struct {
	ID             domain.VerificationRequestID `json:"id"`
	MatchID        domain.MatchID               `json:"match_id"`
	RequestedBy    domain.UserID                `json:"requested_by"`
	AssignedTo     *domain.UserID               `json:"assigned_to,omitempty"`
	Status         RequestStatus                `json:"status"`
	Notes          string                       `json:"notes"`
	DecisionReason string                       `json:"decision_reason,omitempty"`
	CreatedAt      time.Time                    `json:"created_at"`
	DecidedAt      *time.Time                   `json:"decided_at,omitempty"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}

func (v *VerificationRequest) CanStartReview() error {
	if v.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"only a pending request can enter review, current status: "+string(v.Status))
	}
	return nil
}

func (v *VerificationRequest) ApplyStartReview(reviewer domain.UserID, now time.Time) {
	v.Status = StatusInReview
	v.AssignedTo = &reviewer
	v.UpdatedAt = now
}

func (v *VerificationRequest) CanConfirm() error {
	if v.Status != StatusPending && v.Status != StatusInReview {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"only a pending or in-review request can be confirmed, current status: "+string(v.Status))
	}
	return nil
}

func (v *VerificationRequest) ApplyConfirm(reason string, now time.Time) {
	v.Status = StatusConfirmed
	v.DecisionReason = reason
	v.DecidedAt = &now
	v.UpdatedAt = now
}

func (v *VerificationRequest) CanReject() error {
	if v.Status != StatusPending && v.Status != StatusInReview {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"only a pending or in-review request can be rejected, current status: "+string(v.Status))
	}
	return nil
}

func (v *VerificationRequest) ApplyReject(reason string, now time.Time) {
	v.Status = StatusRejected
	v.DecisionReason = reason
	v.DecidedAt = &now
	v.UpdatedAt = now
}

func (v *VerificationRequest) CanSupervise() error {
	if v.Status != StatusConfirmed {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"restitution requires a confirmed request, current status: "+string(v.Status))
	}
	return nil
}

func (v *VerificationRequest) ApplySupervise(notes string, now time.Time) {
	v.Status = StatusSupervised
	if notes != "" {
		if v.Notes != "" {
			v.Notes += "\n"
		}
		v.Notes += notes
	}
	v.UpdatedAt = now
}
