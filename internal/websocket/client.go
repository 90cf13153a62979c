package websocket

import (
	"context"
	"sync"
	"time"

	"hrchat/internal/domain/thread"
	"hrchat/internal/events"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client represents a WebSocket client connection
type Client struct {
	ID     string          // Unique client ID
	UserID string          // Authenticated user ID
	Name   string          // Display name from the token
	Conn   *websocket.Conn // WebSocket connection
	Send   chan []byte     // Outbound message channel

	channels map[string]bool // Subscribed channels
	mu       sync.RWMutex    // Protects channels map
	limiter  *rate.Limiter   // Inbound typing/seen budget
}

// NewClient creates a client allowed eventsPerSec typing and seen frames
// per second, with bursts of twice that.
func NewClient(conn *websocket.Conn, self thread.Member, eventsPerSec int) *Client {
	if eventsPerSec <= 0 {
		eventsPerSec = 20
	}
	return &Client{
		ID:       uuid.NewString(),
		UserID:   self.ID,
		Name:     self.Name,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		channels: make(map[string]bool),
		limiter:  rate.NewLimiter(rate.Limit(eventsPerSec), 2*eventsPerSec),
	}
}

func (c *Client) Subscribe(channel string) {
	c.mu.Lock()
	c.channels[channel] = true
	c.mu.Unlock()
}

func (c *Client) Unsubscribe(channel string) {
	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()
}

func (c *Client) IsSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

// GetChannels returns a copy of all subscribed channels
func (c *Client) GetChannels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	return channels
}

// Allow reports whether another rate limited frame may be processed.
func (c *Client) Allow() bool {
	return c.limiter.Allow()
}

// ReadLoop hands every decoded frame to handle until the connection fails.
func (c *Client) ReadLoop(handle func(events.Envelope)) {
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))

		env, err := events.Decode(frame)
		if err != nil {
			c.SendEvent(events.EventError, events.ErrorPayload{Message: "malformed frame", Code: "BAD_FRAME"})
			continue
		}
		handle(env)
	}
}

// WriteLoop handles outbound messages from the Send channel
func (c *Client) WriteLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.close()
			return
		case msg, ok := <-c.Send:
			if !ok {
				_ = c.Conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				c.close()
				return
			}
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *Client) close() {
	_ = c.Conn.Close()
}

// SendMessage queues a frame without blocking. Frames are dropped when the
// client is too slow to drain its queue.
func (c *Client) SendMessage(msg []byte) {
	select {
	case c.Send <- msg:
	default:
	}
}

// SendEvent encodes and queues one event.
func (c *Client) SendEvent(event string, payload any) {
	frame, err := events.Encode(event, payload)
	if err != nil {
		return
	}
	c.SendMessage(frame)
}
