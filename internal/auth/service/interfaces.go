package service

import (
	"context"

	"usersapi/internal/audit"
	"usersapi/internal/auth/models"
	id "usersapi/pkg/domain"
)

// UserStore is the record store collaborator.
// Error contract: lookups, Update and Delete return sentinel.ErrNotFound for a
// missing user; Update returns sentinel.ErrConflict on a taken email.
type UserStore interface {
	Create(ctx context.Context, user *models.User) models.CreateResult
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, userID id.UserID) error
	ListAll(ctx context.Context) ([]*models.User, error)
}

// PasswordHasher hashes and compares passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
}

// AuditRecorder records committed operations. It never fails the caller.
type AuditRecorder interface {
	Record(ctx context.Context, actorEmail string, op audit.Operation, detail string)
}
