package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionConfig holds configuration for individual sessions.
type SessionConfig struct {
	// ReadTimeout is the maximum time to wait for a message from the client.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HandshakeTimeout is the maximum time for the client hello after the
	// WebSocket upgrade. Default: 10 seconds.
	HandshakeTimeout time.Duration

	// HeartbeatInterval is the time between keep-alive pings.
	// Default: 30 seconds.
	HeartbeatInterval time.Duration

	// MaxMessageSize is the maximum size of an incoming WebSocket message.
	// Default: 64KB.
	MaxMessageSize int64

	// SendQueueSize is the per-session outbound buffer. When the buffer is
	// full the message is dropped for that session so a slow peer cannot
	// stall a broadcast. Default: 256.
	SendQueueSize int
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		MaxMessageSize:    64 * 1024,
		SendQueueSize:     256,
	}
}

// Clone returns a copy of the SessionConfig.
func (c *SessionConfig) Clone() *SessionConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Config holds configuration for the gateway server.
type Config struct {
	// Address is the address to listen on (e.g., ":3000").
	// Default: ":3000".
	Address string

	// SocketPath is the HTTP path that accepts WebSocket upgrades.
	// Default: "/socket".
	SocketPath string

	// AllowedOrigins is the exact-match origin allow-list consulted by the
	// admission policy. An empty list (with AllowAnyOrigin false) denies
	// every cross-origin connection. Requests without an Origin header
	// (non-browser clients) are always admitted.
	AllowedOrigins []string

	// AllowAnyOrigin disables origin checking entirely.
	// INSECURE: any site can open connections on behalf of its visitors.
	// A warning is logged at startup when set.
	AllowAnyOrigin bool

	// AllowedMethods is the HTTP verb allow-list for connection attempts.
	// Default: GET, POST.
	AllowedMethods []string

	// ReadBufferSize is the WebSocket read buffer size. Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size. Default: 4096.
	WriteBufferSize int

	// Session is the configuration for individual sessions.
	// Default: DefaultSessionConfig().
	Session *SessionConfig

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout bounds reading HTTP request headers.
	// Default: 10 seconds.
	ReadHeaderTimeout time.Duration

	// IdleTimeout is the HTTP keep-alive idle timeout.
	// Default: 120 seconds.
	IdleTimeout time.Duration

	// MaxSessions is the maximum number of concurrent sessions across all
	// namespaces. 0 means no limit. Default: 0.
	MaxSessions int

	// MetricsRegistry is the Prometheus registry the gateway registers its
	// instruments with. nil disables metrics collection.
	MetricsRegistry prometheus.Registerer
}

// DefaultConfig returns a Config with sensible defaults.
// The default origin policy admits only requests without an Origin header;
// browsers must be allow-listed explicitly via AllowedOrigins.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":3000",
		SocketPath:        "/socket",
		AllowedMethods:    []string{http.MethodGet, http.MethodPost},
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		Session:           DefaultSessionConfig(),
		ShutdownTimeout:   30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Session = c.Session.Clone()
	clone.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	clone.AllowedMethods = append([]string(nil), c.AllowedMethods...)
	return &clone
}

// WithAddress sets the listen address and returns the config for chaining.
func (c *Config) WithAddress(addr string) *Config {
	c.Address = addr
	return c
}

// WithOrigins sets the origin allow-list and returns the config for chaining.
func (c *Config) WithOrigins(origins ...string) *Config {
	c.AllowedOrigins = origins
	return c
}

// WithAnyOrigin disables origin checking and returns the config for chaining.
// INSECURE: see AllowAnyOrigin.
func (c *Config) WithAnyOrigin() *Config {
	c.AllowAnyOrigin = true
	return c
}

// WithMaxSessions sets the session cap and returns the config for chaining.
func (c *Config) WithMaxSessions(max int) *Config {
	c.MaxSessions = max
	return c
}

// Warnings returns human-readable notes about insecure or surprising
// configuration. They are logged at startup.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.AllowAnyOrigin {
		warnings = append(warnings,
			"AllowAnyOrigin is set: any website can open gateway connections (CSWSH); use AllowedOrigins in production")
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		warnings = append(warnings,
			"AllowedOrigins is empty: all browser (cross-origin) connections will be denied")
	}
	return warnings
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("gateway: config: empty listen address")
	}
	if c.SocketPath == "" || c.SocketPath[0] != '/' {
		return errors.New("gateway: config: socket path must start with /")
	}
	if len(c.AllowedMethods) == 0 {
		return errors.New("gateway: config: no allowed methods")
	}
	if c.Session != nil && c.Session.SendQueueSize <= 0 {
		return errors.New("gateway: config: send queue size must be positive")
	}
	return nil
}
