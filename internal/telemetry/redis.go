package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis status publisher
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string // hash holding the latest snapshot
	Channel  string // pub/sub channel receiving each snapshot as JSON; empty disables
}

// RedisSink mirrors the latest snapshot into a hash and publishes it on a channel
type RedisSink struct {
	client *redis.Client
	opts   RedisOptions
}

// NewRedisSink connects and pings the server
func NewRedisSink(ctx context.Context, opts RedisOptions) (*RedisSink, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if opts.Key == "" {
		opts.Key = "padbridge"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSink{client: client, opts: opts}, nil
}

func (r *RedisSink) Publish(ctx context.Context, s Snapshot) error {
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, r.opts.Key, s.Pairs()...)
	if r.opts.Channel != "" {
		payload, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to encode status: %w", err)
		}
		pipe.Publish(ctx, r.opts.Channel, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish to %s: %w", r.opts.Key, err)
	}
	return nil
}

func (r *RedisSink) Close() error {
	return r.client.Close()
}
