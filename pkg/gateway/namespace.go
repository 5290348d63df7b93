package gateway

import (
	"log/slog"
	"sync"

	"github.com/relaywire-dev/relaywire/pkg/protocol"
)

// EventWelcome is emitted to a session when it is admitted to a namespace,
// before any other event the session can observe.
const EventWelcome = "welcome"

// WelcomePayload is the payload of the welcome event.
type WelcomePayload struct {
	Namespace string `json:"namespace"`
	Msg       string `json:"msg"`
}

// Namespace owns the member set and the routing rules for one logical
// channel. Namespaces are created through a Registry at startup and live for
// the process lifetime.
//
// The member set is the namespace's one piece of shared mutable state. All
// mutations (Admit, Remove) and all broadcast enumerations go through the
// namespace's own lock; nothing outside this type touches the set.
type Namespace struct {
	name     string
	greeting string

	mu       sync.RWMutex
	sessions map[string]*Session

	// bindings is the event-name -> handler table installed into each
	// session at admission. It is fixed at namespace setup; HandleEvent is
	// not safe to call once connections are being admitted.
	bindings   map[string]Handler
	bindingsMu sync.RWMutex

	logger  *slog.Logger
	metrics *Metrics
}

func newNamespace(name string, logger *slog.Logger, metrics *Metrics) *Namespace {
	return &Namespace{
		name:     name,
		greeting: "Welcome to " + name,
		sessions: make(map[string]*Session),
		bindings: make(map[string]Handler),
		logger:   logger.With("namespace", name),
		metrics:  metrics,
	}
}

// Name returns the namespace identifier, e.g. "/" or "/admin".
func (n *Namespace) Name() string {
	return n.name
}

// Logger returns the namespace-scoped logger for use in event handlers.
func (n *Namespace) Logger() *slog.Logger {
	return n.logger
}

// SetGreeting sets the message carried by the welcome event.
// Call during namespace setup, before connections are admitted.
func (n *Namespace) SetGreeting(msg string) {
	n.greeting = msg
}

// HandleEvent binds a handler to an event name for every session admitted to
// this namespace. Bindings are installed once at setup; binding the same
// name again replaces the handler.
func (n *Namespace) HandleEvent(name string, h Handler) {
	n.bindingsMu.Lock()
	n.bindings[name] = h
	n.bindingsMu.Unlock()
}

// Admit adds the session to the member set and emits the welcome event to
// that session only. The member insert and the welcome enqueue happen under
// the namespace lock, so the session becomes visible to broadcasts exactly
// after the welcome is queued: welcome first, no replayed history.
func (n *Namespace) Admit(s *Session) error {
	n.bindingsMu.RLock()
	for name, h := range n.bindings {
		s.OnEvent(name, h)
	}
	n.bindingsMu.RUnlock()

	if !s.setOpen() {
		return ErrSessionClosed
	}

	n.mu.Lock()
	n.sessions[s.ID] = s
	err := s.Emit(EventWelcome, WelcomePayload{Namespace: n.name, Msg: n.greeting})
	n.mu.Unlock()

	n.metrics.RecordSessionOpen(n.name)
	if err != nil {
		n.Remove(s)
		return err
	}

	n.logger.Info("session admitted",
		"session_id", s.ID,
		"remote_addr", s.RemoteAddr(),
		"members", n.Len())
	return nil
}

// Remove deletes the session from the member set. It is idempotent:
// disconnect notifications can race or duplicate at the transport layer, and
// removing an absent session is a no-op, not an error.
func (n *Namespace) Remove(s *Session) {
	n.mu.Lock()
	_, present := n.sessions[s.ID]
	if present {
		delete(n.sessions, s.ID)
	}
	n.mu.Unlock()

	if present {
		n.metrics.RecordSessionClose(n.name)
		n.logger.Info("session removed",
			"session_id", s.ID,
			"members", n.Len())
	}
}

// Len returns the current member count.
func (n *Namespace) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.sessions)
}

// BroadcastAll sends one event to every currently-admitted session,
// including the originator if present. The payload is encoded once; each
// delivery is independent and a failure for one recipient is logged and
// never aborts delivery to the others. There is no cross-recipient ordering
// guarantee.
func (n *Namespace) BroadcastAll(event string, payload any) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		n.logger.Error("broadcast encode failed", "event", event, "error", err)
		return
	}

	n.mu.RLock()
	members := make([]*Session, 0, len(n.sessions))
	for _, s := range n.sessions {
		members = append(members, s)
	}
	n.mu.RUnlock()

	n.metrics.RecordBroadcast(n.name)

	for _, s := range members {
		if err := s.emitRaw(data); err != nil {
			// The session disconnected mid-broadcast or its queue is
			// full. Either way the send is already cancelled: drop it.
			n.metrics.RecordDeliveryError(n.name)
			n.logger.Warn("delivery failed", "error",
				&DeliveryError{SessionID: s.ID, Namespace: n.name, Event: event, Err: err})
		}
	}
}

// SendTo sends one event to exactly one currently-admitted session. A
// session that was concurrently removed fails silently: the miss is logged,
// never surfaced as a routing error.
func (n *Namespace) SendTo(s *Session, event string, payload any) {
	n.mu.RLock()
	_, member := n.sessions[s.ID]
	n.mu.RUnlock()

	if !member {
		n.logger.Debug("unicast to non-member dropped",
			"session_id", s.ID, "event", event)
		return
	}

	if err := s.Emit(event, payload); err != nil {
		n.metrics.RecordDeliveryError(n.name)
		n.logger.Warn("delivery failed", "error",
			&DeliveryError{SessionID: s.ID, Namespace: n.name, Event: event, Err: err})
	}
}

// closeAll closes every member session. Used during server shutdown.
func (n *Namespace) closeAll() {
	n.mu.RLock()
	members := make([]*Session, 0, len(n.sessions))
	for _, s := range n.sessions {
		members = append(members, s)
	}
	n.mu.RUnlock()

	for _, s := range members {
		s.Close()
	}
}

// observeEvent records an inbound event dispatch for this namespace.
func (n *Namespace) observeEvent(name string) {
	n.metrics.RecordEvent(n.name, name)
}

func encodeEvent(event string, payload any) ([]byte, error) {
	msg, err := protocol.NewEvent(event, payload)
	if err != nil {
		return nil, err
	}
	return protocol.Encode(msg)
}
