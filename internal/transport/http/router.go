package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"usersapi/internal/auth/handler"
	"usersapi/internal/platform/health"
	"usersapi/internal/platform/metrics"
	"usersapi/internal/platform/middleware"
	"usersapi/pkg/platform/middleware/metadata"
	"usersapi/pkg/platform/middleware/requesttime"
)

const defaultRequestTimeout = 30 * time.Second

// Deps collects everything the router mounts.
type Deps struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Health   *health.Handler

	Users *handler.Handler
	// Guard is the session guard applied to /api/users and the notification stream.
	Guard         func(http.Handler) http.Handler
	Notifications http.Handler

	RequestTimeout time.Duration
}

// NewRouter wires all endpoints with middleware. The websocket route sits
// outside the timeout and content-type middleware because it is long-lived.
func NewRouter(d Deps) http.Handler {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(metadata.NewMiddleware().Handler)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(d.Logger, d.Metrics))

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Use(middleware.ContentTypeJSON)

		d.Users.RegisterPublic(r)
		r.Group(func(r chi.Router) {
			r.Use(d.Guard)
			d.Users.RegisterProtected(r)
		})
	})

	if d.Notifications != nil {
		r.With(d.Guard).Get("/ws/notifications", d.Notifications.ServeHTTP)
	}

	return r
}
