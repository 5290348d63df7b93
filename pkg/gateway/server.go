package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaywire-dev/relaywire/pkg/protocol"
)

// Server is the HTTP/WebSocket front door of the gateway. It gates incoming
// connections through the admission policy, runs the wire handshake,
// resolves the target namespace, and hands the connection to a Session.
type Server struct {
	registry *Registry
	policy   *Policy
	config   *Config
	metrics  *Metrics

	upgrader websocket.Upgrader

	// handler serves every request that is not a WebSocket upgrade: static
	// assets, metrics, health checks. Peripheral to the gateway itself.
	handler http.Handler

	httpServer *http.Server
	logger     *slog.Logger

	accepting    atomic.Bool
	sessionCount atomic.Int64
}

// New creates a Server with the given configuration. A nil config uses
// DefaultConfig; unset fields are filled from the defaults.
func New(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	} else {
		defaults := DefaultConfig()
		if config.Address == "" {
			config.Address = defaults.Address
		}
		if config.SocketPath == "" {
			config.SocketPath = defaults.SocketPath
		}
		if config.AllowedMethods == nil {
			config.AllowedMethods = defaults.AllowedMethods
		}
		if config.ReadBufferSize == 0 {
			config.ReadBufferSize = defaults.ReadBufferSize
		}
		if config.WriteBufferSize == 0 {
			config.WriteBufferSize = defaults.WriteBufferSize
		}
		if config.Session == nil {
			config.Session = defaults.Session
		}
		if config.ShutdownTimeout == 0 {
			config.ShutdownTimeout = defaults.ShutdownTimeout
		}
		if config.ReadHeaderTimeout == 0 {
			config.ReadHeaderTimeout = defaults.ReadHeaderTimeout
		}
		if config.IdleTimeout == 0 {
			config.IdleTimeout = defaults.IdleTimeout
		}
	}

	logger := slog.Default().With("component", "gateway")

	for _, warning := range config.Warnings() {
		logger.Warn("config warning", "warning", warning)
	}
	if err := config.Validate(); err != nil {
		logger.Error("config validation failed", "error", err)
	}

	var metrics *Metrics
	if config.MetricsRegistry != nil {
		metrics = NewMetrics(config.MetricsRegistry)
	}

	policy := NewPolicy(config.AllowAnyOrigin, config.AllowedOrigins, config.AllowedMethods)

	s := &Server{
		registry: NewRegistry(logger, metrics),
		policy:   policy,
		config:   config,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     policy.CheckOrigin,
		},
		logger: logger,
	}
	s.accepting.Store(true)

	return s
}

// Registry returns the namespace registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Namespace registers (or returns) the namespace with the given identifier.
// Shorthand for Registry().Register(name).
func (s *Server) Namespace(name string) *Namespace {
	return s.registry.Register(name)
}

// SetHandler sets the HTTP handler for non-WebSocket requests.
func (s *Server) SetHandler(h http.Handler) {
	s.handler = h
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// SetLogger sets the server logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// SessionCount returns the number of sessions currently open across all
// namespaces.
func (s *Server) SessionCount() int {
	return int(s.sessionCount.Load())
}

// ServeHTTP implements http.Handler. The configured socket path upgrades to
// WebSocket; everything else goes to the handler set via SetHandler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == s.config.SocketPath {
		s.HandleWebSocket(w, r)
		return
	}

	handler := s.handler
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	handler.ServeHTTP(w, r)
}

// WebSocketHandler returns an http.Handler for the upgrade endpoint only,
// for mounting in external routers.
func (s *Server) WebSocketHandler() http.Handler {
	return http.HandlerFunc(s.HandleWebSocket)
}

// HandleWebSocket admits, upgrades, and hands off one connection attempt.
//
// A denied connection never completes the handshake; the client observes a
// generic connection failure. Namespace resolution errors are reported on
// the wire before closing so well-behaved clients can tell why.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.accepting.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	origin := r.Header.Get("Origin")
	if d := s.policy.Decide(origin, r.Method); !d.Allow {
		s.metrics.RecordAdmissionDenied()
		s.logger.Info("admission denied",
			"origin", origin,
			"method", r.Method,
			"reason", d.Reason)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(s.config.Session.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.config.Session.HandshakeTimeout))

	// The client's first message declares its target namespace.
	_, data, err := conn.ReadMessage()
	if err != nil {
		s.logger.Warn("handshake read failed", "error", err)
		conn.Close()
		return
	}

	hello, err := protocol.Decode(data)
	if err != nil || hello.Kind != protocol.KindHello {
		s.sendHandshakeError(conn, protocol.CodeBadHandshake, "expected hello")
		conn.Close()
		return
	}

	ns, err := s.registry.Resolve(hello.Namespace)
	if err != nil {
		s.logger.Info("connection to unknown namespace denied",
			"namespace", hello.Namespace,
			"remote_addr", r.RemoteAddr)
		s.sendHandshakeError(conn, protocol.CodeNamespaceNotFound, hello.Namespace)
		conn.Close()
		return
	}

	// Reserve the slot before checking the cap so concurrent handshakes
	// cannot both slip under it.
	count := s.sessionCount.Add(1)
	if max := s.config.MaxSessions; max > 0 && count > int64(max) {
		s.sessionCount.Add(-1)
		s.sendHandshakeError(conn, protocol.CodeServerBusy, "session limit reached")
		conn.Close()
		return
	}

	// Shutdown may have started while the handshake was in flight.
	if !s.accepting.Load() {
		s.sessionCount.Add(-1)
		s.sendHandshakeError(conn, protocol.CodeShuttingDown, "server is shutting down")
		conn.Close()
		return
	}

	sess := newSession(conn, ns, s.config.Session, s.logger, r.RemoteAddr)
	sess.onClose = func(*Session) {
		s.sessionCount.Add(-1)
	}

	s.sendServerHello(conn, sess.ID, ns.Name())

	if err := ns.Admit(sess); err != nil {
		s.logger.Warn("admission failed after handshake",
			"session_id", sess.ID, "error", err)
		sess.Close()
		return
	}

	sess.start()
}

// sendHandshakeError reports a terminal handshake failure on the wire.
func (s *Server) sendHandshakeError(conn *websocket.Conn, code protocol.ErrorCode, reason string) {
	data, err := protocol.Encode(protocol.NewError(code, reason))
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(s.config.Session.WriteTimeout))
	conn.WriteMessage(websocket.TextMessage, data)
}

// sendServerHello completes the wire handshake.
func (s *Server) sendServerHello(conn *websocket.Conn, sid, namespace string) {
	data, err := protocol.Encode(protocol.NewServerHello(sid, namespace))
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(s.config.Session.WriteTimeout))
	conn.WriteMessage(websocket.TextMessage, data)
}

// Run starts the server and blocks until a termination signal or a listener
// error. On SIGINT/SIGTERM it shuts down gracefully and returns nil, so the
// process exits with status 0.
func (s *Server) Run() error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("gateway starting",
			"address", s.config.Address,
			"namespaces", s.registry.Names())
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting new connections, closes all sessions, and shuts
// down the HTTP server. Queued sends that have not reached the transport
// when a session closes are abandoned; there is no state to flush.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.accepting.Store(false)

	s.registry.each(func(ns *Namespace) {
		ns.closeAll()
	})

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("gateway shutdown complete")
	return nil
}
