// Package gateway implements the connection and namespace routing layer of
// a real-time, bidirectional event gateway. Clients hold one persistent
// WebSocket each; traffic is organized into independent logical channels
// (namespaces) and relayed between clients and the server.
//
// # Architecture
//
//   - Policy: pure admission decision over (origin, HTTP verb) allow-lists,
//     applied before the transport upgrade completes
//   - Registry: process-wide identifier -> Namespace mapping, populated at
//     startup and read-only thereafter
//   - Namespace: member set and event-routing rules for one channel;
//     broadcast-to-all and unicast delivery with per-recipient isolation
//   - Session: one connection inside exactly one namespace, with a
//     Connecting -> Open -> Closed lifecycle and a buffered outbound queue
//   - Server: HTTP front door tying the above together, plus graceful
//     shutdown on SIGINT/SIGTERM
//
// # Connection lifecycle
//
// A client connects to the socket path and is gated by the admission
// policy. After the upgrade it sends a hello declaring its target
// namespace; the server resolves the namespace (denying unknown ones),
// creates a Session, replies with the assigned session ID, and admits the
// session. Admission installs the namespace's event bindings, emits the
// welcome event to the new member only, and then makes the member visible
// to broadcasts; the ordering holds atomically with respect to any
// concurrent broadcast.
//
// Each session runs two goroutines: a read loop that decodes inbound
// messages and dispatches events in arrival order, and a write loop that
// drains the outbound queue and sends heartbeats. A slow peer fills its own
// queue and loses messages; it never stalls delivery to other members.
package gateway
