package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingEvent is returned when a frame has no event name.
var ErrMissingEvent = errors.New("frame has no event name")

// Envelope is a single socket frame: {"event": "...", "data": ...}.
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps payload in an envelope for event.
func Encode(event Event, payload any) ([]byte, error) {
	envelope := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		envelope.Data = data
	}
	return json.Marshal(envelope)
}

// Decode parses a frame. The payload stays raw until Bind is called.
func Decode(frame []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if envelope.Event == "" {
		return Envelope{}, ErrMissingEvent
	}
	return envelope, nil
}

// Bind decodes the envelope payload into out.
func (e Envelope) Bind(out any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("%s: %w", e.Event, err)
	}
	return nil
}
