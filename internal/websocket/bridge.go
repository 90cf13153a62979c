package websocket

import (
	"context"

	"hrchat/internal/events"
)

// Bridge feeds deliveries from the bus into the local hub, so broadcasts
// published on any gateway instance reach sockets connected to this one.
type Bridge struct {
	bus events.Bus
	hub *Hub
}

func NewBridge(bus events.Bus, hub *Hub) *Bridge {
	return &Bridge{bus: bus, hub: hub}
}

func (b *Bridge) Run(ctx context.Context) error {
	return b.bus.Run(ctx, b.hub.Deliver)
}
