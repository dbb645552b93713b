// Package notify owns the live subscriber registry and fans audit summaries
// out to every connected observer.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"usersapi/internal/platform/metrics"
)

// EventNotification is the only event type sent to subscribers.
const EventNotification = "notification"

// ErrHubClosed is returned by Connect after Close.
var ErrHubClosed = errors.New("notification hub is closed")

// Notification is the frame delivered to subscribers.
type Notification struct {
	Event     string    `json:"event"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscriber is a connection handle. Once disconnected it stays disconnected;
// a reconnecting client gets a new Subscriber.
type Subscriber struct {
	id     string
	outbox chan Notification
	done   chan struct{}
	once   sync.Once
}

func (s *Subscriber) ID() string { return s.id }

// Messages yields notifications in broadcast order.
func (s *Subscriber) Messages() <-chan Notification { return s.outbox }

// Done is closed when the hub drops the subscriber.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) terminate() {
	s.once.Do(func() { close(s.done) })
}

// Config sizes the hub's queues.
type Config struct {
	SubscriberBuffer int
	MailboxSize      int
}

// Hub is the process-wide subscriber registry. Construct one in main and
// inject it; nothing else holds subscriber handles.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	closed      bool

	mailbox    chan string
	stop       chan struct{}
	stopOnce   sync.Once
	bufferSize int

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Hub)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithClock overrides the timestamp source for notifications.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

func NewHub(cfg Config, opts ...Option) *Hub {
	if cfg.SubscriberBuffer < 1 {
		cfg.SubscriberBuffer = 16
	}
	if cfg.MailboxSize < 1 {
		cfg.MailboxSize = 256
	}
	h := &Hub{
		subscribers: make(map[string]*Subscriber),
		mailbox:     make(chan string, cfg.MailboxSize),
		stop:        make(chan struct{}),
		bufferSize:  cfg.SubscriberBuffer,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connect registers a new subscriber.
func (h *Hub) Connect() (*Subscriber, error) {
	sub := &Subscriber{
		id:     uuid.NewString(),
		outbox: make(chan Notification, h.bufferSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	h.subscribers[sub.id] = sub
	h.metrics.SetHubSubscribers(len(h.subscribers))
	return sub, nil
}

// Disconnect removes a subscriber. Safe to call more than once.
func (h *Hub) Disconnect(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscriber) {
	if _, ok := h.subscribers[sub.id]; ok {
		delete(h.subscribers, sub.id)
		h.metrics.SetHubSubscribers(len(h.subscribers))
	}
	sub.terminate()
}

// Broadcast hands message to every registered subscriber without waiting on
// any of them. A subscriber whose buffer is full is dropped.
// Broadcasts are serialized, so each subscriber sees them in call order.
func (h *Hub) Broadcast(message string) {
	n := Notification{Event: EventNotification, Message: message, Timestamp: h.now()}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, sub := range h.subscribers {
		select {
		case <-sub.done:
			h.removeLocked(sub)
		case sub.outbox <- n:
		default:
			h.logger.Warn("dropping slow notification subscriber", "subscriber_id", sub.id)
			h.metrics.IncrementHubDropped("subscriber_slow")
			h.removeLocked(sub)
		}
	}
	h.metrics.IncrementHubBroadcasts()
}

// Notify enqueues message for the run loop. It never blocks; when the
// mailbox is full the message is dropped.
func (h *Hub) Notify(ctx context.Context, message string) {
	select {
	case <-h.stop:
		return
	default:
	}
	select {
	case h.mailbox <- message:
		h.metrics.SetHubMailboxDepth(len(h.mailbox))
	default:
		h.logger.WarnContext(ctx, "notification mailbox full, dropping message")
		h.metrics.IncrementHubDropped("mailbox_full")
	}
}

// Run drains the mailbox into Broadcast until ctx is done or the hub closes.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.stop:
			return nil
		case msg := <-h.mailbox:
			h.metrics.SetHubMailboxDepth(len(h.mailbox))
			h.Broadcast(msg)
		}
	}
}

// Close disconnects every subscriber and stops the run loop.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.stop) })

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, sub := range h.subscribers {
		h.removeLocked(sub)
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
