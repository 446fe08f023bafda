// Package redis publishes run-completed events to a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/anxeod/adapter"
)

const (
	DefaultChannel = "anxeod:run_completed"
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 3
)

// Config selects the server and channel. URL takes the
// redis://[:password@]host:port[/db] form.
type Config struct {
	URL     string
	Channel string
	Timeout time.Duration // per PUBLISH
	Retries int
}

// Adapter publishes completion events on one channel.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New parses cfg.URL; the connection itself is opened on first publish.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis: url is required")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("redis: negative retries %d", cfg.Retries)
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Adapter{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Publish sends the event as JSON to the configured channel. Every
// failure is retried.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RunCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	return adapter.Retry(ctx, "redis", a.config.Retries, func(ctx context.Context) error {
		publishCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
		return a.client.Publish(publishCtx, a.config.Channel, body).Err()
	}, nil)
}

// Close closes the client pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
