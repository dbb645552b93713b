package models

import (
	"time"

	id "usersapi/pkg/domain"
)

// User is a stored account. PasswordHash never leaves the service layer;
// use UserResponse for JSON output.
type User struct {
	ID           id.UserID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the token payload view of u.
func (u *User) Identity() id.Identity {
	return id.Identity{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// CreateOutcome distinguishes a unique-key violation from any other failure.
type CreateOutcome int

const (
	Created CreateOutcome = iota
	DuplicateKey
	Failed
)

func (o CreateOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case DuplicateKey:
		return "duplicate_key"
	default:
		return "failed"
	}
}

// CreateResult is returned by a store's Create. Err is set only when
// Outcome is Failed.
type CreateResult struct {
	Outcome CreateOutcome
	Err     error
}

// UserChanges carries the mutable fields of an update. Nil fields are left alone.
type UserChanges struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// Apply copies the set fields onto u and stamps UpdatedAt.
func (c UserChanges) Apply(u *User, now time.Time) {
	if c.Email != nil {
		u.Email = *c.Email
	}
	if c.FirstName != nil {
		u.FirstName = *c.FirstName
	}
	if c.LastName != nil {
		u.LastName = *c.LastName
	}
	u.UpdatedAt = now
}
