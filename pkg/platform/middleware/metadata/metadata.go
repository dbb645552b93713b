package metadata

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"usersapi/pkg/requestcontext"
)

// maxForwardedLength bounds X-Forwarded-For parsing.
const maxForwardedLength = 500

// Middleware records client IP and User-Agent in the request context.
// X-Forwarded-For is honoured only when the direct peer is a trusted proxy.
type Middleware struct {
	trustedProxies []netip.Prefix
}

// NewMiddleware creates the middleware. With no trusted proxies, forwarded
// headers are ignored.
func NewMiddleware(trustedProxies ...netip.Prefix) *Middleware {
	return &Middleware{trustedProxies: trustedProxies}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), m.clientIP(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) clientIP(r *http.Request) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	peer, err := netip.ParseAddr(remote)
	if err != nil {
		return "unknown"
	}
	if !m.trusted(peer) {
		return peer.String()
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" || len(xff) > maxForwardedLength {
		return peer.String()
	}
	first, _, _ := strings.Cut(xff, ",")
	client, err := netip.ParseAddr(strings.TrimSpace(first))
	if err != nil {
		return peer.String()
	}
	return client.String()
}

func (m *Middleware) trusted(addr netip.Addr) bool {
	for _, prefix := range m.trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
