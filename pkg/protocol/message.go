package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies the role of a wire message.
type Kind string

const (
	KindHello Kind = "hello" // Handshake, both directions
	KindEvent Kind = "event" // Named application event
	KindPing  Kind = "ping"  // Keep-alive request
	KindPong  Kind = "pong"  // Keep-alive response
	KindError Kind = "error" // Terminal error with a stable code
)

// ErrorCode is a stable, machine-readable error identifier carried by
// messages of KindError.
type ErrorCode string

const (
	CodeBadHandshake      ErrorCode = "bad_handshake"
	CodeNamespaceNotFound ErrorCode = "namespace_not_found"
	CodeServerBusy        ErrorCode = "server_busy"
	CodeShuttingDown      ErrorCode = "shutting_down"
)

// Validation errors.
var (
	ErrUnknownKind      = errors.New("protocol: unknown message kind")
	ErrMissingEventName = errors.New("protocol: event message missing name")
	ErrNameTooLong      = errors.New("protocol: event name too long")
	ErrNamespaceTooLong = errors.New("protocol: namespace too long")
	ErrPayloadTooLarge  = errors.New("protocol: payload too large")
)

// Message is the JSON envelope exchanged over the WebSocket.
// Which fields are meaningful depends on Kind; unused fields are omitted on
// the wire.
type Message struct {
	Kind Kind `json:"type"`

	// Hello fields. The client sets Namespace; the server echoes it and
	// adds the assigned session ID.
	Namespace string `json:"namespace,omitempty"`
	SID       string `json:"sid,omitempty"`

	// Event fields.
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Error fields.
	Code   ErrorCode `json:"code,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

// NewClientHello returns the handshake message a client sends first,
// declaring the namespace it wants to join.
func NewClientHello(namespace string) *Message {
	return &Message{Kind: KindHello, Namespace: namespace}
}

// NewServerHello returns the handshake reply carrying the assigned session ID.
func NewServerHello(sid, namespace string) *Message {
	return &Message{Kind: KindHello, SID: sid, Namespace: namespace}
}

// NewEvent builds an event message, marshaling payload to JSON.
// A nil payload produces an event with no payload field.
func NewEvent(name string, payload any) (*Message, error) {
	m := &Message{Kind: KindEvent, Name: name}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal payload for %q: %w", name, err)
		}
		m.Payload = data
	}
	return m, nil
}

// NewError returns a terminal error message.
func NewError(code ErrorCode, reason string) *Message {
	return &Message{Kind: KindError, Code: code, Reason: reason}
}

// NewPing returns a keep-alive request.
func NewPing() *Message { return &Message{Kind: KindPing} }

// NewPong returns a keep-alive response.
func NewPong() *Message { return &Message{Kind: KindPong} }

// Encode validates the message and renders it as JSON.
func Encode(m *Message) ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Decode parses and validates a wire message.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("protocol: decode message: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Message) validate() error {
	switch m.Kind {
	case KindHello, KindEvent, KindPing, KindPong, KindError:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}

	if len(m.Namespace) > MaxNamespaceLen {
		return ErrNamespaceTooLong
	}

	if m.Kind == KindEvent {
		if m.Name == "" {
			return ErrMissingEventName
		}
		if len(m.Name) > MaxEventNameLen {
			return fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(m.Name))
		}
	}

	if len(m.Payload) > MaxPayloadBytes {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(m.Payload))
	}

	return nil
}
