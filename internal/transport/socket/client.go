// Package socket is the client side of the chat gateway connection.
package socket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"hrchat/internal/events"
	hrchat_errors "hrchat/pkg/errors"
	"hrchat/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultMinBackoff   = 500 * time.Millisecond
	defaultMaxBackoff   = 30 * time.Second
)

type Config struct {
	URL   string
	Token string

	WriteTimeout time.Duration
	PingInterval time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration

	Dialer *websocket.Dialer
}

func (c *Config) withDefaults() {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = defaultMinBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
}

// Client owns the single gateway connection of a session. It reconnects
// with exponential backoff and rejoins every known thread afterwards.
type Client struct {
	cfg        Config
	dispatcher *events.Dispatcher
	log        *logger.Logger

	mu        sync.Mutex // guards conn, joined, connected, hooks
	conn      *websocket.Conn
	joined    map[string]struct{}
	connected bool
	known     func() []string
	onState   []func(connected bool)

	writeMu sync.Mutex // serializes frame writes
}

func NewClient(cfg Config, dispatcher *events.Dispatcher, log *logger.Logger) *Client {
	cfg.withDefaults()
	if dispatcher == nil {
		dispatcher = events.NewDispatcher()
	}
	return &Client{
		cfg:        cfg,
		dispatcher: dispatcher,
		log:        logger.OrNop(log).Named("socket"),
		joined:     make(map[string]struct{}),
	}
}

// Dispatcher returns the dispatcher inbound frames are routed to.
func (c *Client) Dispatcher() *events.Dispatcher { return c.dispatcher }

// SetRejoinSource sets the provider of thread ids joined after every
// (re)connect. It is called without the client lock held.
func (c *Client) SetRejoinSource(fn func() []string) {
	c.mu.Lock()
	c.known = fn
	c.mu.Unlock()
}

// OnStateChange registers a hook fired with true once a connection is up
// and its threads rejoined, and with false when it drops.
func (c *Client) OnStateChange(fn func(connected bool)) {
	c.mu.Lock()
	c.onState = append(c.onState, fn)
	c.mu.Unlock()
}

// Connected reports whether a connection is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Run keeps the connection alive until ctx is done. A rejected handshake
// (401/403) stops it.
func (c *Client) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.MinBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	for {
		var closed <-chan struct{}
		operation := func() error {
			done, err := c.connect(ctx)
			if err != nil {
				c.log.Warn("gateway connect failed", zap.String("url", c.cfg.URL), zap.Error(err))
				return err
			}
			closed = done
			return nil
		}
		if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		b.Reset()

		select {
		case <-ctx.Done():
			c.Close()
			return ctx.Err()
		case <-closed:
			c.log.Info("gateway connection lost, reconnecting")
		}
	}
}

// Connect dials once. The connection is not retried when it drops; use Run
// for that.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.connect(ctx)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func (c *Client) connect(ctx context.Context) (<-chan struct{}, error) {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	conn, resp, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		terr := &hrchat_errors.TransportError{Op: "dial", Err: err}
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return nil, backoff.Permanent(&hrchat_errors.TransportError{Op: "dial", Err: hrchat_errors.ErrUnauthorized})
			case http.StatusForbidden:
				return nil, backoff.Permanent(&hrchat_errors.TransportError{Op: "dial", Err: hrchat_errors.ErrForbidden})
			}
		}
		return nil, terr
	}

	pongWait := 2 * c.cfg.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.mu.Lock()
	c.conn = conn
	c.joined = make(map[string]struct{})
	known := c.known
	c.mu.Unlock()

	done := make(chan struct{})
	go c.readLoop(conn, pongWait, done)
	go c.pingLoop(conn, done)

	if known != nil {
		for _, id := range known() {
			if err := c.JoinThread(id); err != nil {
				c.log.Debug("rejoin failed", zap.String("thread_id", id), zap.Error(err))
			}
		}
	}

	c.markUp(conn)
	c.log.Info("gateway connected", zap.String("url", c.cfg.URL))
	return done, nil
}

// JoinThread subscribes to threadID. A thread already joined on the current
// connection is not sent again.
func (c *Client) JoinThread(threadID string) error {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return &hrchat_errors.TransportError{Op: "join", Err: hrchat_errors.ErrNotConnected}
	}
	if _, ok := c.joined[threadID]; ok {
		c.mu.Unlock()
		return nil
	}
	c.joined[threadID] = struct{}{}
	conn := c.conn
	c.mu.Unlock()

	if err := c.write(conn, events.EventJoinThread, threadID); err != nil {
		c.mu.Lock()
		if c.conn == conn {
			delete(c.joined, threadID)
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// Joined reports whether threadID was joined on the current connection.
func (c *Client) Joined(threadID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.joined[threadID]
	return ok
}

// Emit sends one event.
func (c *Client) Emit(event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return &hrchat_errors.TransportError{Op: "emit " + event, Err: hrchat_errors.ErrNotConnected}
	}
	return c.write(conn, event, payload)
}

// Close drops the current connection. Run, if active, reconnects.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}
}

func (c *Client) write(conn *websocket.Conn, event string, payload any) error {
	frame, err := events.Encode(event, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return &hrchat_errors.TransportError{Op: "emit " + event, Err: err}
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, pongWait time.Duration, done chan struct{}) {
	defer func() {
		_ = conn.Close()
		c.markDown(conn)
		close(done)
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("gateway read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		env, err := events.Decode(frame)
		if err != nil {
			c.log.Debug("malformed frame dropped", zap.Error(err))
			continue
		}
		if err := c.dispatcher.Dispatch(env); err != nil {
			c.log.Debug("frame dispatch failed", zap.String("event", env.Event), zap.Error(err))
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// markUp reports conn as live unless it was already replaced or dropped.
func (c *Client) markUp(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn || c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = true
	hooks := append([]func(bool){}, c.onState...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(true)
	}
}

// markDown forgets conn and its joined threads.
func (c *Client) markDown(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	wasUp := c.connected
	c.conn = nil
	c.connected = false
	c.joined = make(map[string]struct{})
	hooks := append([]func(bool){}, c.onState...)
	c.mu.Unlock()

	if !wasUp {
		return
	}
	for _, fn := range hooks {
		fn(false)
	}
}
