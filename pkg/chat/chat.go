// Package chat wires the gateway's two standard namespaces: the default
// channel "/", where client messages fan out to every member, and the admin
// channel "/admin", where a message is echoed back to its sender only. The
// unicast-vs-broadcast distinction between the two channels is deliberate;
// do not unify them.
package chat

import (
	"context"
	"encoding/json"

	"github.com/relaywire-dev/relaywire/pkg/gateway"
)

// Namespace identifiers registered at startup.
const (
	DefaultNamespace = "/"
	AdminNamespace   = "/admin"
)

// Event names on the two channels.
const (
	EventClientMessage      = "clientMessage"
	EventServerMessage      = "serverMessage"
	EventAdminClientMessage = "adminClientMessage"
	EventAdminBroadcast     = "adminBroadcast"
)

// ClientMessage is the inbound payload schema for both channels.
type ClientMessage struct {
	Text string `json:"text"`
}

// ServerMessage is the outbound payload schema for both channels. The
// namespace identifier is included so clients multiplexing several channels
// can attribute the message.
type ServerMessage struct {
	Namespace string `json:"namespace"`
	Text      string `json:"text"`
}

// Register creates both namespaces on the registry and installs their
// routing rules. Call once at startup, before the server accepts
// connections.
func Register(reg *gateway.Registry) {
	root := reg.Register(DefaultNamespace)
	root.SetGreeting("Welcome to the default namespace.")
	root.HandleEvent(EventClientMessage, func(ctx context.Context, s *gateway.Session, payload json.RawMessage) {
		msg, ok := decode(root, payload)
		if !ok {
			return
		}
		root.BroadcastAll(EventServerMessage, ServerMessage{
			Namespace: root.Name(),
			Text:      msg.Text,
		})
	})

	admin := reg.Register(AdminNamespace)
	admin.SetGreeting("Welcome to the admin namespace.")
	admin.HandleEvent(EventAdminClientMessage, func(ctx context.Context, s *gateway.Session, payload json.RawMessage) {
		msg, ok := decode(admin, payload)
		if !ok {
			return
		}
		// Reply to the sender only. Other admin sessions must not see it.
		admin.SendTo(s, EventAdminBroadcast, ServerMessage{
			Namespace: admin.Name(),
			Text:      msg.Text,
		})
	})
}

// decode parses an inbound payload. A malformed payload is logged and
// dropped; delivery is best-effort and bad input from one client must not
// become an error for anyone else.
func decode(ns *gateway.Namespace, payload json.RawMessage) (ClientMessage, bool) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		ns.Logger().Warn("malformed payload dropped", "error", err)
		return ClientMessage{}, false
	}
	return msg, true
}
