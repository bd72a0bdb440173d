// Package cache connects the redis progress backend. Progress lives in one
// hash per user (user_progress:<user id>), so every call is a short
// single-key command and the client is tuned to fail fast.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientName tags tracker connections in CLIENT LIST.
const ClientName = "pai-courses"

// Read and write timeouts stay below the default store timeout.
const (
	dialTimeout = 5 * time.Second
	ioTimeout   = 3 * time.Second
	maxRetries  = 1
)

// Cache holds the client used by the redis progress store.
type Cache struct {
	Client *redis.Client
}

// ParseURL validates a Redis connection URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// clientOptions applies the tracker's timeouts to url.
func clientOptions(url string) (*redis.Options, error) {
	opts, err := ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = ioTimeout
	opts.WriteTimeout = ioTimeout
	opts.MaxRetries = maxRetries
	if opts.ClientName == "" {
		opts.ClientName = ClientName
	}
	return opts, nil
}

// New creates the client and pings it.
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := clientOptions(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging cache at %s: %w", opts.Addr, err)
	}

	return &Cache{Client: client}, nil
}

// Close shuts down the client.
func (c *Cache) Close() error {
	return c.Client.Close()
}

// HealthCheck verifies the connection is alive.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}
