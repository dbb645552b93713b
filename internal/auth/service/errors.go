package service

import (
	"context"
	"errors"

	dErrors "usersapi/pkg/domain-errors"
	"usersapi/pkg/platform/sentinel"
)

// storeErrorMapping translates a store sentinel into a domain error.
type storeErrorMapping struct {
	sentinel error
	code     dErrors.Code
	msg      string
}

// First match wins.
var storeErrorMappings = []storeErrorMapping{
	{sentinel.ErrNotFound, dErrors.CodeNotFound, "user not found"},
	{sentinel.ErrConflict, dErrors.CodeConflict, "email already registered"},
}

// handleStoreError converts a store error into a typed domain error.
// Unknown failures are logged and reported as internal.
func (s *Service) handleStoreError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}

	for _, m := range storeErrorMappings {
		if errors.Is(err, m.sentinel) {
			return dErrors.Wrap(err, m.code, m.msg)
		}
	}

	s.logger.ErrorContext(ctx, "user store failure",
		"operation", operation,
		"error", err,
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, operation+" failed")
}

var errInvalidCredentials = dErrors.New(dErrors.CodeInvalidCredentials, "invalid email or password")
