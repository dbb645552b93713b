package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"usersapi/pkg/domain"
	"usersapi/pkg/platform/sentinel"
	"usersapi/pkg/requestcontext"
)

// SessionCookieName is the cookie carrying the access token.
const SessionCookieName = "access_token"

// TokenVerifier checks an access token and returns the embedded identity.
type TokenVerifier interface {
	VerifyAccess(ctx context.Context, token string) (domain.Identity, error)
}

// FailureRecorder counts rejected requests by reason. Optional.
type FailureRecorder interface {
	IncrementAuthFailures(reason string)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth returns the session guard. It reads the access_token cookie,
// verifies it and attaches the identity to the request context. Missing and
// invalid tokens get the same 401 response. The guard performs no store I/O.
func RequireAuth(verifier TokenVerifier, failures FailureRecorder, logger *slog.Logger) func(http.Handler) http.Handler {
	deny := func(w http.ResponseWriter, r *http.Request, reason string, err error) {
		ctx := r.Context()
		args := []any{"reason", reason, "request_id", requestcontext.RequestID(ctx)}
		if err != nil {
			args = append(args, "error", err)
		}
		logger.WarnContext(ctx, "unauthorized access", args...)
		if failures != nil {
			failures.IncrementAuthFailures(reason)
		}
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(SessionCookieName)
			if err != nil || c.Value == "" {
				deny(w, r, "missing_token", nil)
				return
			}

			identity, err := verifier.VerifyAccess(r.Context(), c.Value)
			if err != nil {
				reason := "invalid_token"
				if errors.Is(err, sentinel.ErrExpired) {
					reason = "expired_token"
				}
				deny(w, r, reason, err)
				return
			}

			ctx := requestcontext.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
