package models

import (
	"strings"
	"time"

	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
)

// Type classifies a notification for client-side rendering and filtering.
type Type string

const (
	TypeMatchFound            Type = "match_found"
	TypeMatchConfirmed        Type = "match_confirmed"
	TypeMatchRejected         Type = "match_rejected"
	TypeItemHandedOver        Type = "item_handed_over"
	TypeVerificationEscalated Type = "verification_escalated"
)

func (t Type) Valid() bool {
	switch t {
	case TypeMatchFound, TypeMatchConfirmed, TypeMatchRejected,
		TypeItemHandedOver, TypeVerificationEscalated:
		return true
	}
	return false
}

// Notification is a persisted message for one recipient.
//
// EventID identifies the domain event that produced the notification. It is
// unique in storage; redelivering the same event is a no-op, which makes the
// dispatcher safe to call from retried transitions.
type Notification struct {
	ID        domain.NotificationID `json:"id"`
	EventID   string                `json:"-"`
	UserID    domain.UserID         `json:"user_id"`
	MatchID   *domain.MatchID       `json:"match_id,omitempty"`
	Type      Type                  `json:"notification_type"`
	Title     string                `json:"title"`
	Message   string                `json:"message"`
	Read      bool                  `json:"is_read"`
	CreatedAt time.Time             `json:"created_at"`
}

func (n *Notification) Validate() error {
	if n.UserID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "notification recipient is required")
	}
	if strings.TrimSpace(n.EventID) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "notification event id is required")
	}
	if !n.Type.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown notification type: "+string(n.Type))
	}
	if strings.TrimSpace(n.Title) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "notification title is required")
	}
	return nil
}
