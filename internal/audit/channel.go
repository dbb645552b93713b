package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"usersapi/internal/platform/metrics"
	"usersapi/pkg/platform/circuit"
	"usersapi/pkg/requestcontext"
)

type namedSink struct {
	name    string
	sink    Sink
	breaker *circuit.Breaker
}

// Channel records completed operations to every configured sink and
// forwards broadcastable ones to a Notifier. Record never fails the caller.
type Channel struct {
	sinks    []namedSink
	notifier Notifier
	fallback *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// Option configures a Channel.
type Option func(*Channel)

// WithSink adds a durable sink. Sinks are written in registration order.
func WithSink(name string, sink Sink) Option {
	return func(c *Channel) {
		if sink != nil {
			c.sinks = append(c.sinks, namedSink{name: name, sink: sink, breaker: circuit.New(name)})
		}
	}
}

// WithNotifier sets where broadcastable summaries are sent.
func WithNotifier(n Notifier) Option {
	return func(c *Channel) {
		c.notifier = n
	}
}

// WithFallbackLogger sets the logger used when a sink fails.
func WithFallbackLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.fallback = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Channel) {
		c.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Channel) {
		if t != nil {
			c.tracer = t
		}
	}
}

// NewChannel builds a Channel. Without options it records nothing and
// notifies no one, which is valid.
func NewChannel(opts ...Option) *Channel {
	c := &Channel{
		fallback: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
		tracer:   otel.Tracer("usersapi/audit"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Record stores an event for a committed operation and, unless the
// operation is a view, announces it. Failures stay inside the channel.
func (c *Channel) Record(ctx context.Context, actorEmail string, op Operation, detail string) {
	if !op.Valid() {
		c.fallback.WarnContext(ctx, "audit record skipped: unknown operation",
			"operation", string(op),
			"actor_email", actorEmail,
		)
		return
	}

	event := Event{
		Timestamp:  requestcontext.Now(ctx),
		ActorEmail: actorEmail,
		Operation:  op,
		Detail:     detail,
		RequestID:  requestcontext.RequestID(ctx),
	}

	ctx, span := c.tracer.Start(ctx, "audit.record", trace.WithAttributes(
		attribute.String("audit.operation", string(op)),
	))
	defer span.End()

	// Sink writes outlive the request; a client disconnect must not drop the record.
	sinkCtx := context.WithoutCancel(ctx)
	for _, s := range c.sinks {
		err := s.sink.Append(sinkCtx, event)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "audit sink failed")
			c.metrics.IncrementAuditSinkFailures(s.name)
			c.fallback.ErrorContext(ctx, "audit sink write failed",
				"sink", s.name,
				"operation", string(op),
				"summary", event.Summary(),
				"error", err,
			)
		}
		switch s.breaker.Observe(err) {
		case circuit.Opened:
			c.fallback.ErrorContext(ctx, "audit sink degraded", "sink", s.name)
		case circuit.Closed:
			c.fallback.InfoContext(ctx, "audit sink recovered", "sink", s.name)
		}
	}
	c.metrics.IncrementAuditRecorded(string(op))

	if op.Broadcast() && c.notifier != nil {
		c.notifier.Notify(ctx, event.Summary())
	}
}

// Health fails while any sink keeps failing. Used as a readiness check.
func (c *Channel) Health(context.Context) error {
	var degraded []string
	for _, s := range c.sinks {
		if s.breaker.IsOpen() {
			degraded = append(degraded, s.name)
		}
	}
	if len(degraded) > 0 {
		return fmt.Errorf("audit sinks degraded: %s", strings.Join(degraded, ", "))
	}
	return nil
}
