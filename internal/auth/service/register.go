package service

import (
	"context"
	"fmt"

	"usersapi/internal/audit"
	"usersapi/internal/auth/models"
	id "usersapi/pkg/domain"
	dErrors "usersapi/pkg/domain-errors"
	"usersapi/pkg/requestcontext"
)

// Register creates an account. A taken email is a Conflict.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	user := &models.User{
		ID:           id.NewUserID(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	result := s.users.Create(ctx, user)
	switch result.Outcome {
	case models.Created:
	case models.DuplicateKey:
		s.logger.InfoContext(ctx, "registration rejected: email taken",
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
	default:
		return nil, s.handleStoreError(ctx, result.Err, "register")
	}

	s.metrics.IncrementUsersCreated()
	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.record(ctx, user.Email, audit.OpRegister, fmt.Sprintf("registered user %s", user.ID))
	return user, nil
}
