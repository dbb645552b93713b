// Package relay carries hub notifications across instances over a Redis
// pub/sub channel, so observers on any instance see every instance's events.
package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Local is the hub-side sink fed with every message received from Redis.
type Local interface {
	Notify(ctx context.Context, message string)
}

// Relay publishes notifications to Redis and feeds received ones to Local.
// Notify never blocks; publishing happens on Run's goroutine.
type Relay struct {
	client  *redis.Client
	channel string
	local   Local
	logger  *slog.Logger
	outbox  chan string
}

func New(client *redis.Client, channel string, local Local, bufferSize int, logger *slog.Logger) *Relay {
	if bufferSize < 1 {
		bufferSize = 256
	}
	return &Relay{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger,
		outbox:  make(chan string, bufferSize),
	}
}

// Notify queues message for publishing. If the queue is full the message is
// handed to the local hub only.
func (r *Relay) Notify(ctx context.Context, message string) {
	select {
	case r.outbox <- message:
	default:
		r.logger.WarnContext(ctx, "relay queue full, delivering locally only")
		r.local.Notify(ctx, message)
	}
}

// Run subscribes to the channel and publishes queued messages until ctx ends.
// The subscription is confirmed before Run starts publishing.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer func() {
		_ = pubsub.Close()
	}()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ch := pubsub.Channel()
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				r.local.Notify(gctx, msg.Payload)
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case message := <-r.outbox:
				if err := r.client.Publish(gctx, r.channel, message).Err(); err != nil {
					r.logger.ErrorContext(gctx, "relay publish failed, delivering locally", "error", err)
					r.local.Notify(gctx, message)
				}
			}
		}
	})
	return g.Wait()
}
