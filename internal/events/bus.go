package events

import "context"

// Publisher sends a raw frame on a named broker channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscriber receives raw frames from every broker channel matching
// patterns until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error
}

// Bus carries deliveries between gateway instances.
type Bus interface {
	Publish(ctx context.Context, d Delivery) error
	// Run blocks, handing every delivery to handler until ctx is done.
	Run(ctx context.Context, handler func(Delivery)) error
}
