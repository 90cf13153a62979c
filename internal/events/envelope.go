package events

import (
	"encoding/json"
	"fmt"
)

// Envelope is one socket frame: an event name and its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload under event.
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

// Encode marshals event and payload into a frame.
func Encode(event string, payload any) ([]byte, error) {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Decode parses a frame.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("frame without event name")
	}
	return env, nil
}

// Delivery is an envelope routed through the gateway bus. Origin names the
// connection that produced it so relays can skip echoing to it.
type Delivery struct {
	Channel  string   `json:"channel"`
	Origin   string   `json:"origin,omitempty"`
	Envelope Envelope `json:"envelope"`
}
