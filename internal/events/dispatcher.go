package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"hrchat/internal/domain"
	"hrchat/internal/domain/message"
)

// Dispatcher fans inbound socket envelopes out to typed handlers. Handlers
// run on the goroutine that calls Dispatch.
type Dispatcher struct {
	mu       sync.RWMutex
	messages []func(message.Message)
	typing   []func(TypingPayload)
	seen     []func(SeenPayload)
	joined   []func(ThreadJoinedPayload)
	thread   []func(domain.Raw)
	errs     []func(ErrorPayload)
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// OnMessage receives inbound messages already normalized, so alternate
// field names, numeric ids and epoch times are accepted.
func (d *Dispatcher) OnMessage(h func(message.Message)) {
	d.mu.Lock()
	d.messages = append(d.messages, h)
	d.mu.Unlock()
}

func (d *Dispatcher) OnTyping(h func(TypingPayload)) {
	d.mu.Lock()
	d.typing = append(d.typing, h)
	d.mu.Unlock()
}

func (d *Dispatcher) OnSeen(h func(SeenPayload)) {
	d.mu.Lock()
	d.seen = append(d.seen, h)
	d.mu.Unlock()
}

func (d *Dispatcher) OnThreadJoined(h func(ThreadJoinedPayload)) {
	d.mu.Lock()
	d.joined = append(d.joined, h)
	d.mu.Unlock()
}

// OnThreadCreated receives the raw thread object; normalization is left to
// the consumer.
func (d *Dispatcher) OnThreadCreated(h func(domain.Raw)) {
	d.mu.Lock()
	d.thread = append(d.thread, h)
	d.mu.Unlock()
}

func (d *Dispatcher) OnError(h func(ErrorPayload)) {
	d.mu.Lock()
	d.errs = append(d.errs, h)
	d.mu.Unlock()
}

// Dispatch decodes env by event name and invokes the matching handlers.
// Unknown events are ignored.
func (d *Dispatcher) Dispatch(env Envelope) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch env.Event {
	case EventMessage:
		var r domain.Raw
		if err := decodePayload(env, &r); err != nil {
			return err
		}
		m, ok := message.Normalize(r)
		if !ok {
			return fmt.Errorf("decode %s payload: message without id", env.Event)
		}
		for _, h := range d.messages {
			h(m)
		}
	case EventTyping:
		var p TypingPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		for _, h := range d.typing {
			h(p)
		}
	case EventSeen:
		var p SeenPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		for _, h := range d.seen {
			h(p)
		}
	case EventThreadJoined:
		var p ThreadJoinedPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		for _, h := range d.joined {
			h(p)
		}
	case EventThreadCreated:
		var p domain.Raw
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		for _, h := range d.thread {
			h(p)
		}
	case EventError:
		var p ErrorPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		for _, h := range d.errs {
			h(p)
		}
	}
	return nil
}

func decodePayload(env Envelope, dst any) error {
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Event, err)
	}
	return nil
}
