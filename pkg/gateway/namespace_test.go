package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/relaywire-dev/relaywire/pkg/protocol"
)

func newTestNamespace(t *testing.T, name string) *Namespace {
	t.Helper()
	return NewRegistry(testLogger(), nil).Register(name)
}

// newTestSession creates a session with no transport. Emit only touches the
// outbound queue, so tests can observe deliveries by reading it directly.
func newTestSession(ns *Namespace) *Session {
	return newSession(nil, ns, DefaultSessionConfig(), testLogger(), "test")
}

func admitSession(t *testing.T, ns *Namespace) *Session {
	t.Helper()
	s := newTestSession(ns)
	if err := ns.Admit(s); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	return s
}

// recvEvent pops the next queued outbound message. Delivery in these tests
// is synchronous, so an empty queue means nothing was sent.
func recvEvent(t *testing.T, s *Session) *protocol.Message {
	t.Helper()
	select {
	case data := <-s.send:
		msg, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("decode queued message failed: %v", err)
		}
		return msg
	default:
		t.Fatal("no message queued")
		return nil
	}
}

func assertNoMessage(t *testing.T, s *Session) {
	t.Helper()
	select {
	case data := <-s.send:
		t.Fatalf("unexpected message queued: %s", data)
	default:
	}
}

func TestAdmitEmitsWelcomeFirst(t *testing.T) {
	ns := newTestNamespace(t, "/")
	ns.SetGreeting("hello there")
	s := admitSession(t, ns)

	ns.BroadcastAll("serverMessage", map[string]string{"text": "later"})

	first := recvEvent(t, s)
	if first.Name != EventWelcome {
		t.Fatalf("first event = %q, want %q", first.Name, EventWelcome)
	}

	var welcome WelcomePayload
	if err := json.Unmarshal(first.Payload, &welcome); err != nil {
		t.Fatalf("unmarshal welcome failed: %v", err)
	}
	if welcome.Namespace != "/" || welcome.Msg != "hello there" {
		t.Errorf("welcome = %+v, want namespace / and greeting", welcome)
	}

	if second := recvEvent(t, s); second.Name != "serverMessage" {
		t.Errorf("second event = %q, want the broadcast", second.Name)
	}
}

func TestAdmitTracksMembership(t *testing.T) {
	ns := newTestNamespace(t, "/")

	if ns.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", ns.Len())
	}
	admitSession(t, ns)
	if ns.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ns.Len())
	}
}

func TestAdmitClosedSessionFails(t *testing.T) {
	ns := newTestNamespace(t, "/")
	s := newTestSession(ns)
	s.Close()

	if err := ns.Admit(s); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Admit of closed session: err = %v, want ErrSessionClosed", err)
	}
	if ns.Len() != 0 {
		t.Errorf("closed session should not be a member, Len() = %d", ns.Len())
	}
}

func TestBroadcastAllReachesEveryMember(t *testing.T) {
	ns := newTestNamespace(t, "/")
	sessions := []*Session{admitSession(t, ns), admitSession(t, ns), admitSession(t, ns)}
	for _, s := range sessions {
		recvEvent(t, s) // welcome
	}

	ns.BroadcastAll("serverMessage", map[string]string{"text": "hi"})

	for i, s := range sessions {
		msg := recvEvent(t, s)
		if msg.Name != "serverMessage" {
			t.Errorf("session %d got %q, want serverMessage", i, msg.Name)
		}
		assertNoMessage(t, s) // exactly one copy each
	}
}

func TestBroadcastSkipsRemovedSession(t *testing.T) {
	ns := newTestNamespace(t, "/")
	stay := admitSession(t, ns)
	gone := admitSession(t, ns)
	recvEvent(t, stay)
	recvEvent(t, gone)

	ns.Remove(gone)
	ns.BroadcastAll("serverMessage", map[string]string{"text": "hi"})

	recvEvent(t, stay)
	assertNoMessage(t, gone)
}

func TestBroadcastSlowConsumerIsolated(t *testing.T) {
	ns := newTestNamespace(t, "/")

	cfg := DefaultSessionConfig()
	cfg.SendQueueSize = 1
	slow := newSession(nil, ns, cfg, testLogger(), "test")
	if err := ns.Admit(slow); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	// The welcome fills the slow session's queue.
	fast := admitSession(t, ns)
	recvEvent(t, fast)

	ns.BroadcastAll("serverMessage", map[string]string{"text": "hi"})

	// Delivery to the full queue is dropped; the fast session still gets
	// its copy.
	if msg := recvEvent(t, fast); msg.Name != "serverMessage" {
		t.Errorf("fast session got %q, want serverMessage", msg.Name)
	}
	if msg := recvEvent(t, slow); msg.Name != EventWelcome {
		t.Errorf("slow session queue should still hold the welcome, got %q", msg.Name)
	}
	assertNoMessage(t, slow)
}

func TestRemoveIdempotent(t *testing.T) {
	ns := newTestNamespace(t, "/")
	a := admitSession(t, ns)
	b := admitSession(t, ns)
	_ = b

	ns.Remove(a)
	if ns.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ns.Len())
	}

	// Disconnect notifications can duplicate; a second remove is a no-op.
	ns.Remove(a)
	if ns.Len() != 1 {
		t.Errorf("double remove changed membership, Len() = %d", ns.Len())
	}
}

func TestSendToDeliversToOneSession(t *testing.T) {
	ns := newTestNamespace(t, "/admin")
	sender := admitSession(t, ns)
	other := admitSession(t, ns)
	recvEvent(t, sender)
	recvEvent(t, other)

	ns.SendTo(sender, "adminBroadcast", map[string]string{"text": "pong"})

	if msg := recvEvent(t, sender); msg.Name != "adminBroadcast" {
		t.Errorf("sender got %q, want adminBroadcast", msg.Name)
	}
	assertNoMessage(t, other)
}

func TestSendToRemovedSessionIsSilent(t *testing.T) {
	ns := newTestNamespace(t, "/")
	s := admitSession(t, ns)
	recvEvent(t, s)

	ns.Remove(s)
	ns.SendTo(s, "serverMessage", map[string]string{"text": "late"})

	assertNoMessage(t, s)
}

func TestBindingsInstalledOnAdmit(t *testing.T) {
	ns := newTestNamespace(t, "/")

	var calls int
	ns.HandleEvent("clientMessage", func(ctx context.Context, s *Session, payload json.RawMessage) {
		calls++
	})
	// Re-binding replaces; it must not cause duplicate delivery.
	ns.HandleEvent("clientMessage", func(ctx context.Context, s *Session, payload json.RawMessage) {
		calls += 10
	})

	s := admitSession(t, ns)
	s.dispatch("clientMessage", json.RawMessage(`{"text":"hi"}`))

	if calls != 10 {
		t.Errorf("calls = %d, want 10 (last binding wins, delivered once)", calls)
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	ns := newTestNamespace(t, "/")
	s := admitSession(t, ns)
	recvEvent(t, s)

	// No handler registered: not an error, nothing sent.
	s.dispatch("mystery", json.RawMessage(`{}`))
	assertNoMessage(t, s)
}

func TestHandlerPanicDoesNotCrash(t *testing.T) {
	ns := newTestNamespace(t, "/")
	ns.HandleEvent("boom", func(ctx context.Context, s *Session, payload json.RawMessage) {
		panic("handler bug")
	})
	s := admitSession(t, ns)
	recvEvent(t, s)

	s.dispatch("boom", nil)

	if s.State() != StateOpen {
		t.Errorf("session state = %v, want Open after handler panic", s.State())
	}
}

func TestConcurrentAdmitRemoveDuringBroadcast(t *testing.T) {
	ns := newTestNamespace(t, "/")
	for i := 0; i < 8; i++ {
		admitSession(t, ns)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			s := newTestSession(ns)
			if err := ns.Admit(s); err != nil {
				continue
			}
			ns.Remove(s)
		}
	}()

	for i := 0; i < 50; i++ {
		ns.BroadcastAll("serverMessage", map[string]string{"text": "hi"})
	}
	<-done
}
