// Package api is the REST collaborator of the chat core: thread and message
// history, sends, and thread creation.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hrchat/internal/domain"
	"hrchat/internal/domain/message"
	"hrchat/internal/domain/thread"
	"hrchat/internal/transport/httpdto"
	hrchat_errors "hrchat/pkg/errors"
	"hrchat/pkg/logger"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 20

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// Failures in a row before requests are short circuited.
	MaxFailures uint32
	// How long the breaker stays open before probing again.
	OpenTimeout time.Duration
	HTTPClient  *http.Client
}

type Client struct {
	base  string
	token string
	http  *http.Client
	cb    *gobreaker.CircuitBreaker
	log   *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	log = logger.OrNop(log).Named("api")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 15 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	st := gobreaker.Settings{
		Name:        "chat-api",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// a rejected request is still a healthy server
		IsSuccessful: func(err error) bool {
			var reqErr *hrchat_errors.RequestError
			if errors.As(err, &reqErr) {
				return reqErr.Status < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}

	return &Client{
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		token: cfg.Token,
		http:  hc,
		cb:    gobreaker.NewCircuitBreaker(st),
		log:   log,
	}
}

// ListThreads returns the caller's threads.
func (c *Client) ListThreads(ctx context.Context) ([]thread.Thread, error) {
	data, err := c.do(ctx, http.MethodGet, "/chat/threads", nil)
	if err != nil {
		return nil, err
	}
	return thread.NormalizeAll(rawList(data, "threads", "items")), nil
}

// ListMessages returns the history of threadID in server order.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]message.Message, error) {
	data, err := c.do(ctx, http.MethodGet, "/chat/threads/"+url.PathEscape(threadID)+"/messages", nil)
	if err != nil {
		return nil, err
	}
	msgs := message.NormalizeAll(rawList(data, "messages", "items"))
	for i := range msgs {
		if msgs[i].ThreadID == "" {
			msgs[i].ThreadID = threadID
		}
	}
	return msgs, nil
}

// SendMessage posts text to threadID and returns the stored message.
func (c *Client) SendMessage(ctx context.Context, threadID, text string) (message.Message, error) {
	data, err := c.do(ctx, http.MethodPost, "/chat/threads/"+url.PathEscape(threadID)+"/messages", map[string]string{"text": text})
	if err != nil {
		return message.Message{}, err
	}
	m, _ := message.Normalize(rawObject(data, "message"))
	if m.ThreadID == "" {
		m.ThreadID = threadID
	}
	return m, nil
}

// StartDirect returns the direct thread with targetUserID, created if needed.
func (c *Client) StartDirect(ctx context.Context, targetUserID string) (thread.Thread, error) {
	data, err := c.do(ctx, http.MethodPost, "/chat/threads", map[string]string{"targetUserId": targetUserID})
	if err != nil {
		return thread.Thread{}, err
	}
	return normalizeThread(data)
}

// CreateGroup creates a named group.
func (c *Client) CreateGroup(ctx context.Context, spec thread.GroupSpec) (thread.Thread, error) {
	data, err := c.do(ctx, http.MethodPost, "/chat/groups", spec)
	if err != nil {
		return thread.Thread{}, err
	}
	return normalizeThread(data)
}

func normalizeThread(data any) (thread.Thread, error) {
	t, ok := thread.Normalize(rawObject(data, "thread"))
	if !ok {
		return thread.Thread{}, fmt.Errorf("thread response without id")
	}
	return t, nil
}

// do runs one request through the breaker and returns the envelope's data.
func (c *Client) do(ctx context.Context, method, path string, body any) (any, error) {
	op := method + " " + path
	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, method, path, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &hrchat_errors.RequestError{
				Status:  http.StatusServiceUnavailable,
				Message: "chat service unavailable, try again shortly",
				Code:    "CIRCUIT_OPEN",
			}
		}
		c.log.WithContext(ctx).Debug("request failed", zap.String("op", op), zap.Error(err))
		return nil, err
	}
	return out, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (any, error) {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &hrchat_errors.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &hrchat_errors.TransportError{Op: op, Err: err}
	}

	var env httpdto.Response[any]
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reqErr := &hrchat_errors.RequestError{Status: resp.StatusCode, Message: env.Error, Code: env.Code}
		if decodeErr != nil || reqErr.Message == "" {
			reqErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, reqErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, decodeErr)
	}
	return env.Data, nil
}

// rawList accepts a bare array or an object wrapping one under keys.
func rawList(data any, keys ...string) []domain.Raw {
	switch v := data.(type) {
	case []any:
		return domain.Raw{"items": v}.Objects("items")
	case map[string]any:
		return domain.Raw(v).Objects(keys...)
	}
	return nil
}

// rawObject accepts an object, optionally wrapped under key.
func rawObject(data any, key string) domain.Raw {
	m, ok := data.(map[string]any)
	if !ok {
		return domain.Raw{}
	}
	r := domain.Raw(m)
	if inner := r.Object(key); inner != nil {
		return inner
	}
	return r
}
