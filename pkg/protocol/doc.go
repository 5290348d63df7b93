// Package protocol defines the JSON wire envelope exchanged between the
// gateway and its clients over a WebSocket connection.
//
// Every message on the wire is a single JSON object with a "type" field
// identifying its kind:
//
//   - hello: handshake. The client's first message declares the target
//     namespace; the server's reply carries the assigned session ID.
//   - event: a named application event with an opaque JSON payload.
//   - ping/pong: application-level keep-alive.
//   - error: a terminal handshake or routing error with a stable code.
//
// Encode and Decode validate messages against the limits in limits.go so
// neither side has to trust the peer's framing.
package protocol
