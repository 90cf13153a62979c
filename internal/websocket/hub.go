package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"hrchat/internal/events"
	"hrchat/pkg/logger"

	"go.uber.org/zap"
)

// subscriptionRequest represents a channel subscription/unsubscription request
type subscriptionRequest struct {
	client    *Client
	channel   string
	subscribe bool // true = subscribe, false = unsubscribe
	done      chan struct{}
}

type registration struct {
	client *Client
	done   chan struct{}
}

// Hub manages WebSocket client connections and channel subscriptions
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client (for cleanup)
	clients map[string]*Client

	// channels maps channel name to set of clients subscribed to it
	channels map[string]map[*Client]struct{}

	// Control channels
	register     chan registration        // New client connections
	unregister   chan *Client             // Client disconnections
	subscription chan subscriptionRequest // Subscribe/unsubscribe requests
	stopped      chan struct{}
	stopOnce     sync.Once

	log *logger.Logger
}

func NewHub(l *logger.Logger) *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		channels:     make(map[string]map[*Client]struct{}),
		register:     make(chan registration, 256),
		unregister:   make(chan *Client, 256),
		subscription: make(chan subscriptionRequest, 512),
		stopped:      make(chan struct{}),
		log:          logger.OrNop(l).Named("hub"),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.stopped) })
	for {
		select {
		case <-ctx.Done():
			return
		case reg := <-h.register:
			h.addClient(reg.client)
			close(reg.done)
		case client := <-h.unregister:
			h.removeClient(client)
		case req := <-h.subscription:
			if req.subscribe {
				h.subscribeToChannel(req.client, req.channel)
			} else {
				h.unsubscribeFromChannel(req.client, req.channel)
			}
			close(req.done)
		}
	}
}

// Register adds a new client to the hub and subscribes it to its user
// channel. It returns once the client is registered.
func (h *Hub) Register(client *Client) {
	reg := registration{client: client, done: make(chan struct{})}
	select {
	case h.register <- reg:
	case <-h.stopped:
		return
	}
	select {
	case <-reg.done:
	case <-h.stopped:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// Subscribe subscribes a client to a channel and waits until it is in
// effect.
func (h *Hub) Subscribe(client *Client, channel string) {
	h.request(subscriptionRequest{client: client, channel: channel, subscribe: true})
}

func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.request(subscriptionRequest{client: client, channel: channel})
}

func (h *Hub) request(req subscriptionRequest) {
	req.done = make(chan struct{})
	select {
	case h.subscription <- req:
	case <-h.stopped:
		return
	}
	select {
	case <-req.done:
	case <-h.stopped:
	}
}

// Deliver sends d to every local subscriber of its channel except the
// connection it originated from.
func (h *Hub) Deliver(d events.Delivery) {
	frame, err := json.Marshal(d.Envelope)
	if err != nil {
		h.log.Warn("undeliverable envelope", zap.String("channel", d.Channel), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[d.Channel] {
		if c.ID == d.Origin {
			continue
		}
		c.SendMessage(frame)
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GetChannelSubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	h.subscribeToChannel(client, events.ChannelUser(client.UserID))
	h.log.Debug("client registered", zap.String("client_id", client.ID), zap.String("user_id", client.UserID))
}

// removeClient removes a client and all its subscriptions
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	for _, channel := range client.GetChannels() {
		if subscribers, ok := h.channels[channel]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.channels, channel)
			}
		}
	}

	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) subscribeToChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
	client.Subscribe(channel)
}

func (h *Hub) unsubscribeFromChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
		}
	}
	client.Unsubscribe(channel)
}
