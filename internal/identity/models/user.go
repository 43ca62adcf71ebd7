package models

import (
	"net/mail"
	"strings"
	"time"

	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
)

// User is a registered account. PasswordHash holds the bcrypt digest and is
// never serialized.
type User struct {
	ID           domain.UserID `json:"id"`
	Username     string        `json:"username"`
	Email        string        `json:"email"`
	Role         domain.Role   `json:"role"`
	PasswordHash string        `json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "username is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "a valid email address is required")
	}
	if !u.Role.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	if u.PasswordHash == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "password hash is required")
	}
	return nil
}
