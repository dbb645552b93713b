package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	UsersCreated    prometheus.Counter
	UsersDeleted    prometheus.Counter
	TokensIssued    *prometheus.CounterVec
	AuthFailures    *prometheus.CounterVec
	EndpointLatency *prometheus.HistogramVec

	AuditRecorded     *prometheus.CounterVec
	AuditSinkFailures *prometheus.CounterVec

	HubSubscribers      prometheus.Gauge
	HubBroadcasts       prometheus.Counter
	HubDropped          *prometheus.CounterVec
	HubMailboxDepth     prometheus.Gauge
	RedisPoolTotalConns prometheus.Gauge
	RedisPoolIdleConns  prometheus.Gauge
	RedisPoolTimeouts   prometheus.Counter
}

// New creates the collectors and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "users_api_users_created_total",
			Help: "Total number of users registered",
		}),
		UsersDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "users_api_users_deleted_total",
			Help: "Total number of users deleted",
		}),
		TokensIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "users_api_tokens_issued_total",
			Help: "Session tokens minted, labeled by kind",
		}, []string{"kind"}),
		AuthFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "users_api_auth_failures_total",
			Help: "Authentication failures, labeled by reason",
		}, []string{"reason"}),
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "users_api_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		AuditRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "users_api_audit_events_total",
			Help: "Audit events recorded, labeled by operation",
		}, []string{"operation"}),
		AuditSinkFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "users_api_audit_sink_failures_total",
			Help: "Audit sink write failures, labeled by sink",
		}, []string{"sink"}),
		HubSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "users_api_hub_subscribers",
			Help: "Currently connected notification subscribers",
		}),
		HubBroadcasts: f.NewCounter(prometheus.CounterOpts{
			Name: "users_api_hub_broadcasts_total",
			Help: "Notifications broadcast by the hub",
		}),
		HubDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "users_api_hub_dropped_total",
			Help: "Notifications or subscribers dropped, labeled by reason",
		}, []string{"reason"}),
		HubMailboxDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "users_api_hub_mailbox_depth",
			Help: "Notifications waiting in the hub mailbox",
		}),
		RedisPoolTotalConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "users_api_redis_pool_total_conns",
			Help: "Number of total connections in the Redis pool",
		}),
		RedisPoolIdleConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "users_api_redis_pool_idle_conns",
			Help: "Number of idle connections in the Redis pool",
		}),
		RedisPoolTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "users_api_redis_pool_timeouts_total",
			Help: "Times a Redis connection could not be obtained in time",
		}),
	}
}

func (m *Metrics) IncrementUsersCreated() {
	if m == nil {
		return
	}
	m.UsersCreated.Inc()
}

func (m *Metrics) IncrementUsersDeleted() {
	if m == nil {
		return
	}
	m.UsersDeleted.Inc()
}

func (m *Metrics) IncrementTokensIssued(kind string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementAuthFailures(reason string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveEndpointLatency(endpoint string, d time.Duration) {
	if m == nil {
		return
	}
	m.EndpointLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) IncrementAuditRecorded(operation string) {
	if m == nil {
		return
	}
	m.AuditRecorded.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncrementAuditSinkFailures(sink string) {
	if m == nil {
		return
	}
	m.AuditSinkFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) SetHubSubscribers(n int) {
	if m == nil {
		return
	}
	m.HubSubscribers.Set(float64(n))
}

func (m *Metrics) IncrementHubBroadcasts() {
	if m == nil {
		return
	}
	m.HubBroadcasts.Inc()
}

// IncrementHubDropped counts a drop; reason is "mailbox_full" or "subscriber_slow".
func (m *Metrics) IncrementHubDropped(reason string) {
	if m == nil {
		return
	}
	m.HubDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetHubMailboxDepth(n int) {
	if m == nil {
		return
	}
	m.HubMailboxDepth.Set(float64(n))
}
