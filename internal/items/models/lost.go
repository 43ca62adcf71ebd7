package models

import (
	"strings"
	"time"

	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
)

// LostItemStatus tracks a loss declaration's lifecycle.
type LostItemStatus string

const (
	// LostStatusActive: visible to matching; content editable by its owner.
	// A pending match does not change the external status.
	LostStatusActive LostItemStatus = "active"
	// LostStatusClosed: withdrawn by the declaring user.
	LostStatusClosed LostItemStatus = "closed"
	// LostStatusResolved: the document came back to its owner. Reachable
	// only through a completed match.
	LostStatusResolved LostItemStatus = "resolved"
)

// LostItem is a citizen's declaration of a lost identity document.
//
// Invariants:
//   - Status moves active → closed or active → resolved, nothing else.
//   - Resolved is only ever applied by the match registry completing a
//     confirmed match.
//   - Content is mutable by the owner only while active.
type LostItem struct {
	ID             domain.LostItemID     `json:"id"`
	UserID         domain.UserID         `json:"user_id"`
	DocumentTypeID domain.DocumentTypeID `json:"document_type_id"`
	FirstName      string                `json:"first_name"`
	LastName       string                `json:"last_name"`
	DateOfBirth    time.Time             `json:"date_of_birth"`
	DocumentNumber string                `json:"document_number,omitempty"`
	LostDate       time.Time             `json:"lost_date"`
	LostLocation   string                `json:"lost_location"`
	Description    string                `json:"description"`
	ContactPhone   string                `json:"contact_phone"`
	ContactEmail   string                `json:"contact_email"`
	Status         LostItemStatus        `json:"status"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Validate enforces the declaration invariants before any mutation.
func (l *LostItem) Validate() error {
	if l.UserID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "declaring user is required")
	}
	if l.DocumentTypeID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "document type is required")
	}
	if strings.TrimSpace(l.FirstName) == "" || strings.TrimSpace(l.LastName) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "subject first and last name are required")
	}
	if l.DateOfBirth.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "date of birth is required")
	}
	if l.LostDate.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "lost date is required")
	}
	if strings.TrimSpace(l.LostLocation) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "lost location is required")
	}
	return nil
}

// Matchable reports whether the item participates in candidate scoring.
func (l *LostItem) Matchable() bool { return l.Status == LostStatusActive }

// Editable reports whether the owner may still change the content.
func (l *LostItem) Editable() bool { return l.Status == LostStatusActive }

func (l *LostItem) CanClose() error {
	if l.Status != LostStatusActive {
		return dErrors.New(dErrors.CodeInvalidTransition, "lost item is not active")
	}
	return nil
}

func (l *LostItem) ApplyClose(now time.Time) {
	l.Status = LostStatusClosed
	l.UpdatedAt = now
}

func (l *LostItem) CanResolve() error {
	if l.Status != LostStatusActive {
		return dErrors.New(dErrors.CodeInvalidTransition, "lost item is not active")
	}
	return nil
}

func (l *LostItem) ApplyResolve(now time.Time) {
	l.Status = LostStatusResolved
	l.UpdatedAt = now
}
