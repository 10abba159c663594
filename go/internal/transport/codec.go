package transport

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEmptyEnvelope = errors.New("empty envelope")
	ErrEmptyPayload  = errors.New("empty payload")
)

// Envelope is the wire frame for every event: {"event": ..., "data": ...}.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope marshals payload into an envelope for event.
func NewEnvelope(event EventType, payload any) (Envelope, error) {
	if event == "" {
		return Envelope{}, fmt.Errorf("encode envelope: missing event type")
	}
	if payload == nil {
		payload = struct{}{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

// Encode returns the wire bytes of an envelope.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// DecodeEnvelope parses wire bytes into an envelope.
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, ErrEmptyEnvelope
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing event type")
	}
	return env, nil
}

// DecodePayload unmarshals the envelope data into T.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Data) == 0 {
		return out, fmt.Errorf("%s: %w", env.Event, ErrEmptyPayload)
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", env.Event, err)
	}
	return out, nil
}

// MatchID extracts the matchId field shared by match-scoped payloads.
// Returns "" for unscoped events or undecodable data.
func (e Envelope) MatchID() string {
	var scoped struct {
		MatchID string `json:"matchId"`
	}
	if len(e.Data) == 0 || json.Unmarshal(e.Data, &scoped) != nil {
		return ""
	}
	return scoped.MatchID
}
