package service

import (
	"context"
	"fmt"

	"usersapi/internal/audit"
	"usersapi/internal/auth/models"
	id "usersapi/pkg/domain"
	"usersapi/pkg/requestcontext"
)

// ListUsers returns every user.
func (s *Service) ListUsers(ctx context.Context, actor id.Identity) (*models.ListUsersResult, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, s.handleStoreError(ctx, err, "list users")
	}
	s.record(ctx, actor.Email, audit.OpList, fmt.Sprintf("listed %d users", len(users)))
	return &models.ListUsersResult{Users: toResponses(users), Total: len(users)}, nil
}

// Profile returns the caller's own record. Views are audited but not broadcast.
func (s *Service) Profile(ctx context.Context, actor id.Identity) (*models.User, error) {
	user, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, s.handleStoreError(ctx, err, "get profile")
	}
	s.record(ctx, actor.Email, audit.OpView, "viewed own profile")
	return user, nil
}

// UpdateUser applies changes to the target user.
func (s *Service) UpdateUser(ctx context.Context, actor id.Identity, target id.UserID, changes models.UserChanges) (*models.User, error) {
	user, err := s.users.FindByID(ctx, target)
	if err != nil {
		return nil, s.handleStoreError(ctx, err, "update user")
	}

	changes.Apply(user, requestcontext.Now(ctx))
	if err := s.users.Update(ctx, user); err != nil {
		return nil, s.handleStoreError(ctx, err, "update user")
	}

	s.logger.InfoContext(ctx, "user updated",
		"user_id", target.String(),
		"actor_id", actor.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.record(ctx, actor.Email, audit.OpUpdate, fmt.Sprintf("updated user %s", target))
	return user, nil
}

// DeleteUser removes the target user.
func (s *Service) DeleteUser(ctx context.Context, actor id.Identity, target id.UserID) error {
	if err := s.users.Delete(ctx, target); err != nil {
		return s.handleStoreError(ctx, err, "delete user")
	}

	s.metrics.IncrementUsersDeleted()
	s.logger.InfoContext(ctx, "user deleted",
		"user_id", target.String(),
		"actor_id", actor.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.record(ctx, actor.Email, audit.OpDelete, fmt.Sprintf("deleted user %s", target))
	return nil
}
