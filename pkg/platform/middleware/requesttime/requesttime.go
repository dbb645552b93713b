// Package requesttime pins a single "now" per request so token expiry,
// audit timestamps and cookie lifetimes agree within one request.
package requesttime

import (
	"net/http"
	"time"

	"usersapi/pkg/requestcontext"
)

// Middleware captures the wall clock once at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
