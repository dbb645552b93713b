package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"usersapi/internal/platform/metrics"
	"usersapi/pkg/requestcontext"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type failingSink struct{}

func (failingSink) Append(context.Context, Event) error {
	return errors.New("disk full")
}

// ctxSink fails when handed a done context, like a database driver would.
type ctxSink struct {
	InMemorySink
}

func (s *ctxSink) Append(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.InMemorySink.Append(ctx, event)
}

type ChannelSuite struct {
	suite.Suite
	ctx      context.Context
	logBuf   *bytes.Buffer
	fallback *bytes.Buffer
	memory   *InMemorySink
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	channel  *Channel
}

func TestChannelSuite(t *testing.T) {
	suite.Run(t, new(ChannelSuite))
}

func (s *ChannelSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))
	s.logBuf = &bytes.Buffer{}
	s.fallback = &bytes.Buffer{}
	s.memory = NewInMemorySink()
	s.notifier = &recordingNotifier{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.channel = NewChannel(
		WithSink("file", NewLogSink(s.logBuf)),
		WithSink("memory", s.memory),
		WithNotifier(s.notifier),
		WithFallbackLogger(slog.New(slog.NewTextHandler(s.fallback, nil))),
		WithMetrics(s.metrics),
	)
}

func (s *ChannelSuite) logLines() []string {
	out := strings.TrimRight(s.logBuf.String(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func (s *ChannelSuite) TestDeleteIsLoggedAndBroadcastOnce() {
	s.channel.Record(s.ctx, "a@x.com", OpDelete, "deleted user u1")

	s.Equal([]string{"a@x.com performed delete: deleted user u1"}, s.notifier.Messages())
	s.Equal([]string{"[2026-03-14] INFO: a@x.com performed delete: deleted user u1"}, s.logLines())
}

func (s *ChannelSuite) TestViewIsLoggedButNeverBroadcast() {
	s.channel.Record(s.ctx, "a@x.com", OpView, "viewed own profile")

	s.Empty(s.notifier.Messages())
	s.Len(s.logLines(), 1)
	s.Len(s.memory.Events(), 1)
}

func (s *ChannelSuite) TestEveryOtherOperationBroadcastsExactlyOnce() {
	ops := []Operation{OpLogin, OpRegister, OpList, OpUpdate, OpDelete}
	for _, op := range ops {
		s.channel.Record(s.ctx, "a@x.com", op, "")
	}

	s.Len(s.notifier.Messages(), len(ops))
	for i, op := range ops {
		s.Contains(s.notifier.Messages()[i], string(op))
	}
	s.Len(s.logLines(), len(ops))
}

func (s *ChannelSuite) TestEventCarriesRequestMetadata() {
	ctx := requestcontext.WithRequestID(s.ctx, "req-42")
	s.channel.Record(ctx, "b@x.com", OpUpdate, "updated user u2")

	events := s.memory.Events()
	s.Require().Len(events, 1)
	s.Equal(Event{
		Timestamp:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		ActorEmail: "b@x.com",
		Operation:  OpUpdate,
		Detail:     "updated user u2",
		RequestID:  "req-42",
	}, events[0])
}

func (s *ChannelSuite) TestFailingSinkIsContained() {
	channel := NewChannel(
		WithSink("broken", failingSink{}),
		WithSink("memory", s.memory),
		WithNotifier(s.notifier),
		WithFallbackLogger(slog.New(slog.NewTextHandler(s.fallback, nil))),
		WithMetrics(s.metrics),
	)

	s.NotPanics(func() {
		channel.Record(s.ctx, "a@x.com", OpRegister, "registered")
	})

	s.Len(s.memory.Events(), 1, "later sinks still receive the event")
	s.Len(s.notifier.Messages(), 1, "broadcast is independent of sink failure")
	s.Contains(s.fallback.String(), "audit sink write failed")
	s.Contains(s.fallback.String(), "disk full")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.AuditSinkFailures.WithLabelValues("broken")))
}

func (s *ChannelSuite) TestCancelledRequestStillReachesSinks() {
	sink := &ctxSink{}
	channel := NewChannel(
		WithSink("db", sink),
		WithFallbackLogger(slog.New(slog.NewTextHandler(s.fallback, nil))),
		WithMetrics(s.metrics),
	)
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	channel.Record(ctx, "a@x.com", OpDelete, "deleted user u1")

	s.Require().Len(sink.Events(), 1)
	s.Equal(OpDelete, sink.Events()[0].Operation)
	s.NotContains(s.fallback.String(), "audit sink write failed")
	s.Equal(0.0, testutil.ToFloat64(s.metrics.AuditSinkFailures.WithLabelValues("db")))
}

func (s *ChannelSuite) TestPersistentSinkFailureDegradesHealth() {
	channel := NewChannel(
		WithSink("broken", failingSink{}),
		WithSink("memory", s.memory),
		WithFallbackLogger(slog.New(slog.NewTextHandler(s.fallback, nil))),
	)
	s.NoError(channel.Health(s.ctx))

	for range 5 {
		channel.Record(s.ctx, "a@x.com", OpLogin, "")
	}

	err := channel.Health(s.ctx)
	s.Require().Error(err)
	s.Contains(err.Error(), "broken")
	s.NotContains(err.Error(), "memory")
	s.Contains(s.fallback.String(), "audit sink degraded")
}

func (s *ChannelSuite) TestUnknownOperationIsSkipped() {
	s.channel.Record(s.ctx, "a@x.com", Operation("purge"), "")

	s.Empty(s.logLines())
	s.Empty(s.notifier.Messages())
	s.Contains(s.fallback.String(), "unknown operation")
}

func TestChannelWithoutNotifier(t *testing.T) {
	sink := NewInMemorySink()
	channel := NewChannel(WithSink("memory", sink))

	channel.Record(context.Background(), "a@x.com", OpLogin, "")

	require.Len(t, sink.Events(), 1)
	assert.Equal(t, OpLogin, sink.Events()[0].Operation)
}

func TestOperationBroadcast(t *testing.T) {
	tests := []struct {
		op   Operation
		want bool
	}{
		{OpLogin, true},
		{OpRegister, true},
		{OpList, true},
		{OpUpdate, true},
		{OpDelete, true},
		{OpView, false},
		{Operation("other"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.Broadcast())
		})
	}
}
