package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"usersapi/pkg/domain"
	dErrors "usersapi/pkg/domain-errors"
	"usersapi/pkg/requestcontext"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encoding failure cannot change the status.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError translates transport-agnostic domain errors into HTTP status codes
// and the {"error","error_description"} envelope.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status := DomainCodeToHTTPStatus(domainErr.Code)
		response := map[string]string{
			"error": DomainCodeToHTTPCode(domainErr.Code),
		}
		if domainErr.Message != "" && status != http.StatusInternalServerError {
			response["error_description"] = domainErr.Message
		}
		WriteJSON(w, status, response)
		return
	}

	WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": DomainCodeToHTTPCode(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized, dErrors.CodeInvalidCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the JSON "error" field.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return "bad_request"
	case dErrors.CodeValidation:
		return "validation_error"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeInvalidCredentials:
		return "invalid_credentials"
	default:
		return "internal_error"
	}
}

// RequireIdentity extracts the authenticated identity placed by the session guard.
// A missing identity behind the guard is a wiring bug, reported as internal.
func RequireIdentity(ctx context.Context, logger *slog.Logger) (domain.Identity, error) {
	identity, ok := requestcontext.Identity(ctx)
	if !ok || !identity.Valid() {
		if logger != nil {
			logger.ErrorContext(ctx, "identity missing from context despite session guard",
				"request_id", requestcontext.RequestID(ctx))
		}
		return domain.Identity{}, dErrors.New(dErrors.CodeInternal, "authentication context error")
	}
	return identity, nil
}
