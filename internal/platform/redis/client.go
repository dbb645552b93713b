package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"usersapi/internal/platform/config"
	"usersapi/internal/platform/metrics"
)

// Client wraps the go-redis client with health checks and pool metrics.
type Client struct {
	*redis.Client
	metrics      *metrics.Metrics
	lastTimeouts uint32
}

// New creates a Redis client from the provided configuration.
// Returns nil, nil if the URL is empty (Redis not configured).
func New(ctx context.Context, cfg config.RedisConfig, m *metrics.Metrics) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client, metrics: m}, nil
}

// Wrap adapts an existing go-redis client, used by tests against miniredis.
func Wrap(client *redis.Client, m *metrics.Metrics) *Client {
	return &Client{Client: client, metrics: m}
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RecordPoolStats copies current pool statistics into the Prometheus collectors.
func (c *Client) RecordPoolStats() {
	if c.metrics == nil {
		return
	}
	stats := c.PoolStats()
	c.metrics.RedisPoolTotalConns.Set(float64(stats.TotalConns))
	c.metrics.RedisPoolIdleConns.Set(float64(stats.IdleConns))
	if stats.Timeouts > c.lastTimeouts {
		c.metrics.RedisPoolTimeouts.Add(float64(stats.Timeouts - c.lastTimeouts))
	}
	c.lastTimeouts = stats.Timeouts
}

// RunPoolStats records pool statistics every interval until ctx is done.
func (c *Client) RunPoolStats(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.RecordPoolStats()
		}
	}
}
