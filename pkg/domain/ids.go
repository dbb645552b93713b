// Package domain provides type-safe identifiers and the authenticated identity shape.
package domain

import (
	"github.com/google/uuid"

	dErrors "usersapi/pkg/domain-errors"
)

// UserID identifies a user record. It is the subject of every session token.
type UserID uuid.UUID

// NewUserID returns a fresh random user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// ParseUserID is used at trust boundaries (handlers, token claims).
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return UserID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "user ID cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return UserID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "invalid user ID")
	}
	return UserID(parsed), nil
}

func (id UserID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
