package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrClosed is returned when producing after Close.
var ErrClosed = errors.New("producer is closed")

// Message represents a record to be published.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Config holds producer configuration.
type Config struct {
	Brokers         []string
	DeliveryTimeout time.Duration
}

// Producer wraps the franz-go client with a smaller surface.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

// New creates a Kafka producer. Connection errors surface on first produce or Health.
func New(cfg Config, logger *slog.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordRetries(3),
		kgo.ProducerLinger(5 * time.Millisecond),
		kgo.AllowAutoTopicCreation(),
	}
	if cfg.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{client: client, logger: logger}, nil
}

func toRecord(msg *Message) *kgo.Record {
	headers := make([]kgo.RecordHeader, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return &kgo.Record{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}

func (p *Producer) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Produce sends a message and waits for broker acknowledgement.
func (p *Producer) Produce(ctx context.Context, msg *Message) error {
	if p.isClosed() {
		return ErrClosed
	}
	if err := p.client.ProduceSync(ctx, toRecord(msg)).FirstErr(); err != nil {
		return fmt.Errorf("produce message: %w", err)
	}
	return nil
}

// ProduceAsync buffers a message for background delivery.
// onErr, when non-nil, is invoked from the client goroutine if delivery fails.
func (p *Producer) ProduceAsync(msg *Message, onErr func(error)) error {
	if p.isClosed() {
		return ErrClosed
	}
	p.client.Produce(context.Background(), toRecord(msg), func(r *kgo.Record, err error) {
		if err == nil {
			return
		}
		if p.logger != nil {
			p.logger.Error("kafka delivery failed",
				"topic", r.Topic,
				"partition", r.Partition,
				"error", err,
			)
		}
		if onErr != nil {
			onErr(err)
		}
	})
	return nil
}

// Close flushes buffered records and shuts the client down.
func (p *Producer) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if err := p.client.Flush(ctx); err != nil && p.logger != nil {
		p.logger.Warn("kafka producer closed with unflushed messages", "error", err)
	}
	p.client.Close()
	return nil
}

// Health checks that the producer can reach the brokers.
func (p *Producer) Health(ctx context.Context) error {
	if p.isClosed() {
		return ErrClosed
	}
	return p.client.Ping(ctx)
}
