package rbac

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultInvalidationChannel is the Redis pub/sub channel for grant
// invalidations
const DefaultInvalidationChannel = "groundup:rbac:invalidate"

// RedisBus carries invalidations between service instances over Redis
// pub/sub.
type RedisBus struct {
	client  *redis.Client
	channel string
	onError func(error)
}

// NewRedisBus creates a bus on channel (DefaultInvalidationChannel when
// empty). onError, when set, receives undecodable messages.
func NewRedisBus(client *redis.Client, channel string, onError func(error)) *RedisBus {
	if channel == "" {
		channel = DefaultInvalidationChannel
	}
	return &RedisBus{client: client, channel: channel, onError: onError}
}

// Publish sends event to all subscribers
func (b *RedisBus) Publish(ctx context.Context, event Invalidation) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode invalidation: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Subscribe blocks until the subscription is confirmed, then delivers
// messages on a background goroutine.
func (b *RedisBus) Subscribe(ctx context.Context, handler func(Invalidation)) (func() error, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	messages := pubsub.Channel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range messages {
			var event Invalidation
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				if b.onError != nil {
					b.onError(fmt.Errorf("discarding invalidation %q: %w", msg.Payload, err))
				}
				// An undecodable event may still describe a real change.
				event = InvalidateAll()
			}
			handler(event)
		}
	}()

	return func() error {
		err := pubsub.Close()
		<-done
		return err
	}, nil
}
