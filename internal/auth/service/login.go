package service

import (
	"context"
	"errors"

	"usersapi/internal/audit"
	"usersapi/internal/auth/device"
	"usersapi/internal/auth/models"
	id "usersapi/pkg/domain"
	dErrors "usersapi/pkg/domain-errors"
	"usersapi/pkg/platform/sentinel"
	"usersapi/pkg/requestcontext"
)

// Login checks credentials. Unknown email and wrong password fail identically.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			_ = s.hasher.Verify(req.Password, s.dummyHash())
			s.metrics.IncrementAuthFailures("invalid_credentials")
			return nil, errInvalidCredentials
		}
		return nil, s.handleStoreError(ctx, err, "login")
	}

	if err := s.hasher.Verify(req.Password, user.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidCredentials) {
			s.metrics.IncrementAuthFailures("invalid_credentials")
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		"user_id", user.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	detail := device.Describe(requestcontext.UserAgent(ctx), requestcontext.ClientIP(ctx))
	s.record(ctx, user.Email, audit.OpLogin, "signed in "+detail)
	return user, nil
}

// Refresh reloads the user behind a verified refresh token so new tokens
// carry current identity data. A deleted user can no longer refresh.
func (s *Service) Refresh(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementAuthFailures("refresh_unknown_user")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication failed")
		}
		return nil, s.handleStoreError(ctx, err, "refresh")
	}
	return user, nil
}
