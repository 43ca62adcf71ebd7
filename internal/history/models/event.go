package models

import (
	"time"

	"findmyid/pkg/domain"
)

// Action names a recorded fact in the append-only trail.
type Action string

const (
	ActionLostDeclared      Action = "lost_item.declared"
	ActionLostUpdated       Action = "lost_item.updated"
	ActionLostClosed        Action = "lost_item.closed"
	ActionFoundDeclared     Action = "found_item.declared"
	ActionMatchProposed     Action = "match.proposed"
	ActionMatchRescored     Action = "match.rescored"
	ActionMatchConfirmed    Action = "match.confirmed"
	ActionMatchRejected     Action = "match.rejected"
	ActionMatchCompleted    Action = "match.completed"
	ActionVerifEscalated    Action = "verification.escalated"
	ActionVerifReviewStart  Action = "verification.review_started"
	ActionVerifConfirmed    Action = "verification.confirmed"
	ActionVerifRejected     Action = "verification.rejected"
	ActionRestitutionDone   Action = "verification.restitution_supervised"
	ActionUserRegistered    Action = "user.registered"
	ActionNotificationRead  Action = "notification.read"
)

// Event is one entry of the action trail. ActorID is zero for events not
// attributable to a signed-in user (system transitions).
type Event struct {
	ID          int64           `json:"id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	ActorID     domain.UserID   `json:"actor_id,omitempty"`
	Action      Action          `json:"action"`
	Description string          `json:"description"`
	MatchID     *domain.MatchID `json:"match_id,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
}
