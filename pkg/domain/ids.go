// Package domain holds the typed identifiers and role model shared across
// findmyid modules. Distinct ID types make cross-entity mixups a compile
// error instead of a data corruption bug.
package domain

import (
	"github.com/google/uuid"

	dErrors "findmyid/pkg/domain-errors"
)

type (
	// UserID identifies a registered user (citizen or administrator).
	UserID uuid.UUID
	// DocumentTypeID identifies an entry in the document type catalog.
	DocumentTypeID uuid.UUID
	// LostItemID identifies a citizen's loss declaration.
	LostItemID uuid.UUID
	// FoundItemID identifies a finder's found-document declaration.
	FoundItemID uuid.UUID
	// MatchID identifies a candidate pairing between a lost and a found item.
	MatchID uuid.UUID
	// VerificationRequestID identifies an authenticity-check escalation.
	VerificationRequestID uuid.UUID
	// NotificationID identifies a single delivered notification.
	NotificationID uuid.UUID
)

func (id UserID) String() string                { return uuid.UUID(id).String() }
func (id DocumentTypeID) String() string        { return uuid.UUID(id).String() }
func (id LostItemID) String() string            { return uuid.UUID(id).String() }
func (id FoundItemID) String() string           { return uuid.UUID(id).String() }
func (id MatchID) String() string               { return uuid.UUID(id).String() }
func (id VerificationRequestID) String() string { return uuid.UUID(id).String() }
func (id NotificationID) String() string        { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool                { return uuid.UUID(id) == uuid.Nil }
func (id DocumentTypeID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }
func (id LostItemID) IsZero() bool            { return uuid.UUID(id) == uuid.Nil }
func (id FoundItemID) IsZero() bool           { return uuid.UUID(id) == uuid.Nil }
func (id MatchID) IsZero() bool               { return uuid.UUID(id) == uuid.Nil }
func (id VerificationRequestID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }

func NewUserID() UserID                               { return UserID(uuid.New()) }
func NewDocumentTypeID() DocumentTypeID               { return DocumentTypeID(uuid.New()) }
func NewLostItemID() LostItemID                       { return LostItemID(uuid.New()) }
func NewFoundItemID() FoundItemID                     { return FoundItemID(uuid.New()) }
func NewMatchID() MatchID                             { return MatchID(uuid.New()) }
func NewVerificationRequestID() VerificationRequestID { return VerificationRequestID(uuid.New()) }
func NewNotificationID() NotificationID               { return NotificationID(uuid.New()) }

// parseUUID enforces the shared parsing invariant: IDs must be valid,
// non-empty, non-nil UUIDs. Applied at every trust boundary.
func parseUUID(raw, label string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, label+" is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be the nil UUID")
	}
	return parsed, nil
}

func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID(raw, "user id")
	return UserID(u), err
}

func ParseDocumentTypeID(raw string) (DocumentTypeID, error) {
	u, err := parseUUID(raw, "document type id")
	return DocumentTypeID(u), err
}

func ParseLostItemID(raw string) (LostItemID, error) {
	u, err := parseUUID(raw, "lost item id")
	return LostItemID(u), err
}

func ParseFoundItemID(raw string) (FoundItemID, error) {
	u, err := parseUUID(raw, "found item id")
	return FoundItemID(u), err
}

func ParseMatchID(raw string) (MatchID, error) {
	u, err := parseUUID(raw, "match id")
	return MatchID(u), err
}

func ParseVerificationRequestID(raw string) (VerificationRequestID, error) {
	u, err := parseUUID(raw, "verification request id")
	return VerificationRequestID(u), err
}

func ParseNotificationID(raw string) (NotificationID, error) {
	u, err := parseUUID(raw, "notification id")
	return NotificationID(u), err
}

// IDs travel through JSON as their canonical UUID string.

func (id UserID) MarshalText() ([]byte, error)                { return []byte(id.String()), nil }
func (id DocumentTypeID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id LostItemID) MarshalText() ([]byte, error)            { return []byte(id.String()), nil }
func (id FoundItemID) MarshalText() ([]byte, error)           { return []byte(id.String()), nil }
func (id MatchID) MarshalText() ([]byte, error)               { return []byte(id.String()), nil }
func (id VerificationRequestID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id NotificationID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *DocumentTypeID) UnmarshalText(b []byte) error {
	parsed, err := ParseDocumentTypeID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *LostItemID) UnmarshalText(b []byte) error {
	parsed, err := ParseLostItemID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *FoundItemID) UnmarshalText(b []byte) error {
	parsed, err := ParseFoundItemID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *MatchID) UnmarshalText(b []byte) error {
	parsed, err := ParseMatchID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *VerificationRequestID) UnmarshalText(b []byte) error {
	parsed, err := ParseVerificationRequestID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *NotificationID) UnmarshalText(b []byte) error {
	parsed, err := ParseNotificationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
