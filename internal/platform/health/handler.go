// Package health provides liveness, readiness and status endpoints.
package health

import (
	"context"
	"maps"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"usersapi/pkg/platform/httputil"
)

// Version is set at build time via ldflags.
var Version = "dev"

// CheckFunc reports a dependency's health; nil means healthy.
type CheckFunc func(ctx context.Context) error

// Handler serves the health endpoints.
type Handler struct {
	startTime    time.Time
	environment  string
	checkTimeout time.Duration
	subscribers  func() int

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// New creates a health handler. subscribers, when non-nil, reports the
// number of live notification subscribers on /health.
func New(environment string, subscribers func() int) *Handler {
	return &Handler{
		startTime:    time.Now(),
		environment:  environment,
		checkTimeout: 2 * time.Second,
		subscribers:  subscribers,
		checks:       make(map[string]CheckFunc),
	}
}

// RegisterCheck adds a named readiness check.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Register mounts health check routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

type LivenessResponse struct {
	Status string `json:"status"`
}

// HandleLiveness always answers 200 while the process serves requests.
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LivenessResponse{Status: "alive"})
}

type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleReadiness runs every registered check and answers 503 if any fails.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := maps.Clone(h.checks)
	h.mu.RUnlock()

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	response := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(checks))}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), h.checkTimeout)
		err := checks[name](ctx)
		cancel()
		if err != nil {
			response.Checks[name] = "down: " + err.Error()
			response.Status = "not_ready"
			continue
		}
		response.Checks[name] = "up"
	}

	if response.Status != "ready" {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, response)
}

type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Subscribers   int    `json:"subscribers"`
	Timestamp     string `json:"timestamp"`
}

// HandleStatus reports version, uptime and live subscriber count.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	if h.subscribers != nil {
		resp.Subscribers = h.subscribers()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
