package models

import (
	"strings"
	"time"

	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
)

// FoundItemStatus tracks a found-document declaration's lifecycle.
type FoundItemStatus string

const (
	// FoundStatusActive: eligible for candidate scoring.
	FoundStatusActive FoundItemStatus = "active"
	// FoundStatusMatched: part of a confirmed match awaiting restitution.
	// Reverts to active when the match is rejected.
	FoundStatusMatched FoundItemStatus = "matched"
	// FoundStatusReturned: handed over under supervised restitution.
	// Terminal, reachable only through the verification workflow.
	FoundStatusReturned FoundItemStatus = "returned"
)

// FoundItem is a finder's declaration with an uploaded document image.
//
// The OCR-derived fields (FirstName, LastName, DateOfBirth, DocumentNumber,
// OCRConfidence) are written once at creation and never mutated; re-running
// OCR means declaring a new record.
type FoundItem struct {
	ID             domain.FoundItemID    `json:"id"`
	UserID         domain.UserID         `json:"user_id"`
	DocumentTypeID domain.DocumentTypeID `json:"document_type_id"`
	ImageRef       string                `json:"image_ref"`
	FirstName      string                `json:"first_name,omitempty"`
	LastName       string                `json:"last_name,omitempty"`
	DateOfBirth    *time.Time            `json:"date_of_birth,omitempty"`
	DocumentNumber string                `json:"document_number,omitempty"`
	OCRConfidence  *float64              `json:"ocr_confidence,omitempty"`
	FoundDate      time.Time             `json:"found_date"`
	FoundLocation  string                `json:"found_location"`
	Description    string                `json:"description"`
	ContactPhone   string                `json:"contact_phone"`
	ContactEmail   string                `json:"contact_email"`
	Status         FoundItemStatus       `json:"status"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Validate enforces the declaration invariants before any mutation. OCR
// fields are deliberately not required: partial extractions still enter the
// pool and a human can confirm on partial evidence.
func (f *FoundItem) Validate() error {
	if f.UserID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "declaring user is required")
	}
	if f.DocumentTypeID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "document type is required")
	}
	if strings.TrimSpace(f.ImageRef) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "document image is required")
	}
	if f.FoundDate.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "found date is required")
	}
	if strings.TrimSpace(f.FoundLocation) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "found location is required")
	}
	return nil
}

// Matchable reports whether the item participates in candidate scoring.
func (f *FoundItem) Matchable() bool { return f.Status == FoundStatusActive }

func (f *FoundItem) CanMarkMatched() error {
	if f.Status != FoundStatusActive {
		return dErrors.New(dErrors.CodeInvalidTransition, "found item is not active")
	}
	return nil
}

func (f *FoundItem) ApplyMatched(now time.Time) {
	f.Status = FoundStatusMatched
	f.UpdatedAt = now
}

// ApplyUnmatched reverts a matched item to the eligible pool after its match
// is rejected.
func (f *FoundItem) ApplyUnmatched(now time.Time) {
	f.Status = FoundStatusActive
	f.UpdatedAt = now
}

func (f *FoundItem) CanReturn() error {
	if f.Status != FoundStatusMatched {
		return dErrors.New(dErrors.CodeInvalidTransition, "found item is not awaiting restitution")
	}
	return nil
}

func (f *FoundItem) ApplyReturned(now time.Time) {
	f.Status = FoundStatusReturned
	f.UpdatedAt = now
}
