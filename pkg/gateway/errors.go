package gateway

import (
	"errors"
	"fmt"
)

// Sentinel errors for common gateway conditions.
var (
	// ErrSessionClosed is returned when an emit is attempted on a session
	// that has left the Open state.
	ErrSessionClosed = errors.New("gateway: session closed")

	// ErrNamespaceNotFound is returned by Registry.Resolve for an
	// identifier that was never registered.
	ErrNamespaceNotFound = errors.New("gateway: namespace not found")

	// ErrAdmissionDenied is returned when the admission policy rejects a
	// connection's origin or verb.
	ErrAdmissionDenied = errors.New("gateway: admission denied")

	// ErrSendQueueFull is returned when a session's outbound queue is full
	// and a message is dropped rather than blocking the sender.
	ErrSendQueueFull = errors.New("gateway: send queue full")

	// ErrMaxSessionsReached is returned when the configured session cap
	// would be exceeded.
	ErrMaxSessionsReached = errors.New("gateway: max sessions reached")

	// ErrServerClosed is returned for connection attempts after shutdown
	// has begun.
	ErrServerClosed = errors.New("gateway: server closed")
)

// DeliveryError wraps a failed send with routing context for logging.
// Delivery errors are isolated per recipient; they are logged and never
// propagated to other recipients of the same broadcast.
type DeliveryError struct {
	SessionID string
	Namespace string
	Event     string
	Err       error
}

// Error returns the error message with routing context.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("gateway: deliver %q to session %s in %s: %v",
		e.Event, e.SessionID, e.Namespace, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}
