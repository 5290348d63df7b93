package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeEvent(t *testing.T) {
	m, err := NewEvent("clientMessage", map[string]string{"text": "hi"})
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}

	data, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Kind != KindEvent {
		t.Errorf("Kind = %q, want %q", got.Kind, KindEvent)
	}
	if got.Name != "clientMessage" {
		t.Errorf("Name = %q, want %q", got.Name, "clientMessage")
	}

	var payload map[string]string
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload failed: %v", err)
	}
	if payload["text"] != "hi" {
		t.Errorf("payload text = %q, want %q", payload["text"], "hi")
	}
}

func TestNewEventNilPayload(t *testing.T) {
	m, err := NewEvent("tick", nil)
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}
	data, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if strings.Contains(string(data), "payload") {
		t.Errorf("encoded message should omit empty payload: %s", data)
	}
}

func TestNewEventUnmarshalablePayload(t *testing.T) {
	if _, err := NewEvent("bad", func() {}); err == nil {
		t.Fatal("NewEvent with func payload should fail")
	}
}

func TestHelloRoundTrip(t *testing.T) {
	data, err := Encode(NewClientHello("/admin"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Kind != KindHello || got.Namespace != "/admin" {
		t.Errorf("got kind=%q namespace=%q, want hello /admin", got.Kind, got.Namespace)
	}
	if got.SID != "" {
		t.Errorf("client hello should not carry a session ID, got %q", got.SID)
	}
}

func TestServerHelloCarriesSID(t *testing.T) {
	data, err := Encode(NewServerHello("abc123", "/"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.SID != "abc123" {
		t.Errorf("SID = %q, want %q", got.SID, "abc123")
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"subscribe"}`)); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}

func TestDecodeRejectsEventWithoutName(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"event"}`)); !errors.Is(err, ErrMissingEventName) {
		t.Errorf("err = %v, want ErrMissingEventName", err)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`{"type":`)); err == nil {
		t.Fatal("Decode of malformed JSON should fail")
	}
}

func TestValidateLimits(t *testing.T) {
	longName := strings.Repeat("x", MaxEventNameLen+1)
	if _, err := Encode(&Message{Kind: KindEvent, Name: longName}); !errors.Is(err, ErrNameTooLong) {
		t.Errorf("err = %v, want ErrNameTooLong", err)
	}

	longNS := strings.Repeat("n", MaxNamespaceLen+1)
	if _, err := Encode(NewClientHello(longNS)); !errors.Is(err, ErrNamespaceTooLong) {
		t.Errorf("err = %v, want ErrNamespaceTooLong", err)
	}

	big := json.RawMessage(`"` + strings.Repeat("p", MaxPayloadBytes) + `"`)
	if _, err := Encode(&Message{Kind: KindEvent, Name: "big", Payload: big}); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestPingPong(t *testing.T) {
	for _, m := range []*Message{NewPing(), NewPong()} {
		data, err := Encode(m)
		if err != nil {
			t.Fatalf("Encode(%v) failed: %v", m.Kind, err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode(%v) failed: %v", m.Kind, err)
		}
		if got.Kind != m.Kind {
			t.Errorf("Kind = %q, want %q", got.Kind, m.Kind)
		}
	}
}
