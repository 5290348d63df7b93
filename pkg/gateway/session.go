package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/relaywire-dev/relaywire/pkg/protocol"
)

// State is a session's position in its lifecycle. Transitions are monotonic:
// Connecting -> Open -> Closed, with no reopening.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler processes one inbound event for a session.
// The payload is the raw JSON from the wire; handlers decode it themselves.
type Handler func(ctx context.Context, s *Session, payload json.RawMessage)

// Session represents one client's connection within exactly one namespace.
// It owns the read and write goroutines for its WebSocket and a buffered
// outbound queue that isolates slow peers from everyone else.
type Session struct {
	ID        string
	CreatedAt time.Time

	ns         *Namespace
	conn       *websocket.Conn
	remoteAddr string

	state     atomic.Int32
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// handlers maps event name to handler. Registering the same name again
	// replaces the previous handler; there is never duplicate delivery.
	handlers   map[string]Handler
	handlersMu sync.RWMutex

	config *SessionConfig
	logger *slog.Logger

	eventsIn  atomic.Uint64
	bytesSent atomic.Uint64

	// onClose runs exactly once when the session closes. Set by the server
	// before the session is admitted.
	onClose func(*Session)
}

// generateSessionID generates a cryptographically random session ID.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Weak session IDs are dangerous. Fail hard on entropy failure.
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

// newSession creates a session in the Connecting state.
func newSession(conn *websocket.Conn, ns *Namespace, config *SessionConfig, logger *slog.Logger, remoteAddr string) *Session {
	id := generateSessionID()
	return &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		ns:         ns,
		conn:       conn,
		remoteAddr: remoteAddr,
		send:       make(chan []byte, config.SendQueueSize),
		done:       make(chan struct{}),
		handlers:   make(map[string]Handler),
		config:     config,
		logger:     logger.With("session_id", id),
	}
}

// Namespace returns the namespace this session belongs to.
func (s *Session) Namespace() *Namespace {
	return s.ns
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// RemoteAddr returns the client's network address as seen at connect time.
func (s *Session) RemoteAddr() string {
	return s.remoteAddr
}

// EventsReceived returns the number of events dispatched for this session.
func (s *Session) EventsReceived() uint64 {
	return s.eventsIn.Load()
}

// OnEvent registers the handler for an event name. There is exactly one
// handler per name per session; the last registration wins.
func (s *Session) OnEvent(name string, h Handler) {
	s.handlersMu.Lock()
	s.handlers[name] = h
	s.handlersMu.Unlock()
}

func (s *Session) handler(name string) (Handler, bool) {
	s.handlersMu.RLock()
	h, ok := s.handlers[name]
	s.handlersMu.RUnlock()
	return h, ok
}

// Emit sends one event to this session only. It returns ErrSessionClosed
// unless the session is Open, and ErrSendQueueFull when the outbound buffer
// is full; in the latter case the event is dropped, never queued late.
func (s *Session) Emit(event string, payload any) error {
	msg, err := protocol.NewEvent(event, payload)
	if err != nil {
		return err
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return s.emitRaw(data)
}

// emitRaw enqueues an already-encoded message without blocking.
func (s *Session) emitRaw(data []byte) error {
	if s.State() != StateOpen {
		return ErrSessionClosed
	}
	select {
	case s.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// setOpen moves Connecting -> Open. It fails if the session already closed,
// which happens when the transport dies between upgrade and admission.
func (s *Session) setOpen() bool {
	return s.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
}

// Close transitions the session to Closed, tears down the transport, and
// removes the session from its namespace. It is safe to call multiple times
// and from any goroutine; only the first call has any effect.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
		if s.onClose != nil {
			s.onClose(s)
		}
		s.ns.Remove(s)
		s.logger.Debug("session closed", "namespace", s.ns.Name())
	})
}

// start launches the session's read and write loops.
func (s *Session) start() {
	go s.readLoop()
	go s.writeLoop()
}

// readLoop reads messages until the connection fails or closes.
// Events within one session are dispatched in the order received.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			s.logger.Warn("bad message", "error", err)
			continue
		}

		switch msg.Kind {
		case protocol.KindEvent:
			s.dispatch(msg.Name, msg.Payload)

		case protocol.KindPing:
			s.enqueuePong()

		case protocol.KindPong:
			// Peer is alive; the read deadline was already refreshed.

		default:
			s.logger.Debug("ignoring message", "kind", string(msg.Kind))
		}
	}
}

// dispatch routes one inbound event to the registered handler.
// An unknown event name is ignored: the transport is at-least-once and
// best-effort, so stray events are not an error.
func (s *Session) dispatch(name string, payload json.RawMessage) {
	h, ok := s.handler(name)
	if !ok {
		s.logger.Debug("no handler for event", "event", name)
		return
	}

	s.eventsIn.Add(1)
	s.ns.observeEvent(name)

	ctx, span := tracer().Start(context.Background(), "gateway.dispatch",
		trace.WithAttributes(
			attribute.String("gateway.namespace", s.ns.Name()),
			attribute.String("gateway.event", name),
			attribute.String("gateway.session_id", s.ID),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "handler panic")
			s.logger.Error("handler panic",
				"event", name,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	h(ctx, s, payload)
}

// writeLoop drains the outbound queue and sends heartbeat pings.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-s.send:
			if err := s.write(data); err != nil {
				s.logger.Warn("write error", "error", err)
				s.Close()
				return
			}

		case <-ticker.C:
			data, err := protocol.Encode(protocol.NewPing())
			if err != nil {
				continue
			}
			if err := s.write(data); err != nil {
				s.Close()
				return
			}

		case <-s.done:
			return
		}
	}
}

func (s *Session) write(data []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	s.bytesSent.Add(uint64(len(data)))
	return nil
}

func (s *Session) enqueuePong() {
	data, err := protocol.Encode(protocol.NewPong())
	if err != nil {
		return
	}
	if err := s.emitRaw(data); err != nil {
		s.logger.Debug("pong dropped", "error", err)
	}
}
