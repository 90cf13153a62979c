package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// RedisEventBus implements Bus over Redis Pub/Sub so every gateway instance
// sees every room broadcast.
type RedisEventBus struct {
	publisher  Publisher
	subscriber Subscriber
}

func NewRedisEventBus(publisher Publisher, subscriber Subscriber) *RedisEventBus {
	return &RedisEventBus{publisher: publisher, subscriber: subscriber}
}

func (b *RedisEventBus) Publish(ctx context.Context, d Delivery) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery: %w", err)
	}
	return b.publisher.Publish(ctx, d.Channel, data)
}

func (b *RedisEventBus) Run(ctx context.Context, handler func(Delivery)) error {
	return b.subscriber.Subscribe(ctx, []string{ChannelPattern}, func(channel string, payload []byte) {
		var d Delivery
		if err := json.Unmarshal(payload, &d); err != nil {
			return
		}
		d.Channel = channel
		handler(d)
	})
}

// LocalBus delivers in process. Used by single instance gateways and tests.
type LocalBus struct {
	mu      sync.RWMutex
	handler func(Delivery)
	ready   chan struct{}
	once    sync.Once
}

func NewLocalBus() *LocalBus {
	return &LocalBus{ready: make(chan struct{})}
}

// Ready is closed once Run has attached its handler. Deliveries published
// earlier are dropped.
func (b *LocalBus) Ready() <-chan struct{} {
	return b.ready
}

func (b *LocalBus) Publish(_ context.Context, d Delivery) error {
	b.mu.RLock()
	h := b.handler
	b.mu.RUnlock()
	if h != nil {
		h(d)
	}
	return nil
}

func (b *LocalBus) Run(ctx context.Context, handler func(Delivery)) error {
	b.mu.Lock()
	b.handler = handler
	b.mu.Unlock()
	b.once.Do(func() { close(b.ready) })

	<-ctx.Done()

	b.mu.Lock()
	b.handler = nil
	b.mu.Unlock()
	return ctx.Err()
}
