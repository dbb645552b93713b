package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"usersapi/internal/platform/metrics"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type HubSuite struct {
	suite.Suite
	metrics *metrics.Metrics
	hub     *Hub
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubSuite))
}

func (s *HubSuite) SetupTest() {
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.hub = NewHub(Config{SubscriberBuffer: 4, MailboxSize: 8},
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func (s *HubSuite) connect() *Subscriber {
	sub, err := s.hub.Connect()
	s.Require().NoError(err)
	return sub
}

func receive(t *testing.T, sub *Subscriber) Notification {
	t.Helper()
	select {
	case n := <-sub.Messages():
		return n
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
		return Notification{}
	}
}

func assertNothingQueued(t *testing.T, sub *Subscriber) {
	t.Helper()
	select {
	case n := <-sub.Messages():
		t.Fatalf("unexpected notification %q", n.Message)
	default:
	}
}

func (s *HubSuite) TestBroadcastReachesEverySubscriber() {
	subs := make([]*Subscriber, 5)
	for i := range subs {
		subs[i] = s.connect()
	}

	s.hub.Broadcast("a@x.com performed update: updated user u1")

	for _, sub := range subs {
		n := receive(s.T(), sub)
		s.Equal(Notification{
			Event:     EventNotification,
			Message:   "a@x.com performed update: updated user u1",
			Timestamp: fixedNow,
		}, n)
		assertNothingQueued(s.T(), sub)
	}
}

func (s *HubSuite) TestPerSubscriberOrderMatchesBroadcastOrder() {
	sub := s.connect()

	for i := 0; i < 4; i++ {
		s.hub.Broadcast(fmt.Sprintf("msg-%d", i))
	}
	for i := 0; i < 4; i++ {
		s.Equal(fmt.Sprintf("msg-%d", i), receive(s.T(), sub).Message)
	}
}

func (s *HubSuite) TestSlowSubscriberIsDroppedWithoutBlockingOthers() {
	slow := s.connect()
	fast := s.connect()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 6; i++ {
			s.hub.Broadcast(fmt.Sprintf("msg-%d", i))
			// fast keeps up; slow never reads
			<-fast.Messages()
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.FailNow("broadcast blocked on a slow subscriber")
	}

	select {
	case <-slow.Done():
	default:
		s.Fail("slow subscriber should be disconnected")
	}
	s.Equal(1, s.hub.Count())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.HubDropped.WithLabelValues("subscriber_slow")))
}

func (s *HubSuite) TestDisconnectIsIdempotent() {
	sub := s.connect()
	other := s.connect()

	s.hub.Disconnect(sub)
	s.NotPanics(func() { s.hub.Disconnect(sub) })
	s.NotPanics(func() { s.hub.Disconnect(nil) })

	s.hub.Broadcast("after")
	assertNothingQueued(s.T(), sub)
	s.Equal("after", receive(s.T(), other).Message)
	s.Equal(1, s.hub.Count())
}

func (s *HubSuite) TestDisconnectMidBroadcastDoesNotAffectOthers() {
	subs := make([]*Subscriber, 10)
	for i := range subs {
		subs[i] = s.connect()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.hub.Disconnect(subs[0])
	}()
	go func() {
		defer wg.Done()
		s.hub.Broadcast("concurrent")
	}()
	wg.Wait()

	for _, sub := range subs[1:] {
		s.Equal("concurrent", receive(s.T(), sub).Message)
	}
}

func (s *HubSuite) TestNoReplayForLateSubscribers() {
	s.hub.Broadcast("early")
	late := s.connect()
	assertNothingQueued(s.T(), late)
}

func (s *HubSuite) TestNotifyIsDeliveredByRunLoop() {
	sub := s.connect()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- s.hub.Run(ctx) }()

	s.hub.Notify(ctx, "first")
	s.hub.Notify(ctx, "second")

	s.Equal("first", receive(s.T(), sub).Message)
	s.Equal("second", receive(s.T(), sub).Message)

	cancel()
	s.NoError(<-runErr)
}

func (s *HubSuite) TestNotifyDropsWhenMailboxFull() {
	for i := 0; i < 8; i++ {
		s.hub.Notify(context.Background(), "fill")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.hub.Notify(context.Background(), "overflow")
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		s.FailNow("Notify blocked on a full mailbox")
	}
	s.Equal(1.0, testutil.ToFloat64(s.metrics.HubDropped.WithLabelValues("mailbox_full")))
}

func (s *HubSuite) TestCloseDisconnectsEveryone() {
	a := s.connect()
	b := s.connect()

	runErr := make(chan error, 1)
	go func() { runErr <- s.hub.Run(context.Background()) }()

	s.hub.Close()
	s.hub.Close()

	for _, sub := range []*Subscriber{a, b} {
		select {
		case <-sub.Done():
		default:
			s.Fail("subscriber still connected after Close")
		}
	}
	s.Equal(0, s.hub.Count())
	s.NoError(<-runErr)

	_, err := s.hub.Connect()
	s.ErrorIs(err, ErrHubClosed)
	s.NotPanics(func() {
		s.hub.Broadcast("ignored")
		s.hub.Notify(context.Background(), "ignored")
	})
}

func TestConcurrentConnectDisconnectBroadcast(t *testing.T) {
	hub := NewHub(Config{SubscriberBuffer: 64, MailboxSize: 64})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := hub.Connect()
			if !assert.NoError(t, err) {
				return
			}
			hub.Broadcast("tick")
			hub.Disconnect(sub)
		}()
	}
	wg.Wait()

	require.Equal(t, 0, hub.Count())
}
