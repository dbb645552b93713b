// Package cookie delivers session tokens to browsers as HTTP-only cookies.
package cookie

import (
	"context"
	"net/http"
	"strings"
	"time"

	jwttoken "usersapi/internal/jwt_token"
	"usersapi/internal/platform/metrics"
	"usersapi/pkg/domain"
	"usersapi/pkg/platform/middleware/auth"
	"usersapi/pkg/requestcontext"
)

const (
	AccessCookieName  = auth.SessionCookieName
	RefreshCookieName = "refresh_token"

	accessCookiePath  = "/"
	refreshCookiePath = "/api/auth"
)

// TokenSigner mints the access/refresh pair for an identity.
type TokenSigner interface {
	Issue(ctx context.Context, identity domain.Identity) (jwttoken.TokenPair, error)
}

// Issuer attaches and clears the session cookies.
type Issuer struct {
	signer  TokenSigner
	secure  bool
	metrics *metrics.Metrics
}

func NewIssuer(signer TokenSigner, secure bool, m *metrics.Metrics) *Issuer {
	return &Issuer{signer: signer, secure: secure, metrics: m}
}

// Issue signs a fresh token pair and writes both cookies. Nothing is
// written when signing fails.
func (i *Issuer) Issue(ctx context.Context, w http.ResponseWriter, identity domain.Identity) error {
	pair, err := i.signer.Issue(ctx, identity)
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	http.SetCookie(w, i.cookie(AccessCookieName, accessCookiePath, pair.AccessToken, pair.AccessExpiresAt, now))
	http.SetCookie(w, i.cookie(RefreshCookieName, refreshCookiePath, pair.RefreshToken, pair.RefreshExpiresAt, now))
	i.metrics.IncrementTokensIssued(string(jwttoken.KindAccess))
	i.metrics.IncrementTokensIssued(string(jwttoken.KindRefresh))
	return nil
}

// Clear expires both cookies. Safe to call when neither was set.
func (i *Issuer) Clear(w http.ResponseWriter) {
	for _, c := range []struct{ name, path string }{
		{AccessCookieName, accessCookiePath},
		{RefreshCookieName, refreshCookiePath},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   i.secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func (i *Issuer) cookie(name, path, value string, expiresAt, now time.Time) *http.Cookie {
	maxAge := int(expiresAt.Sub(now).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// AccessToken returns the access_token cookie value, if present and non-empty.
func AccessToken(r *http.Request) (string, bool) {
	return read(r, AccessCookieName)
}

// RefreshToken returns the refresh_token cookie value, if present and non-empty.
func RefreshToken(r *http.Request) (string, bool) {
	return read(r, RefreshCookieName)
}

func read(r *http.Request, name string) (string, bool) {
	if r == nil {
		return "", false
	}
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(c.Value)
	if value == "" {
		return "", false
	}
	return value, true
}
