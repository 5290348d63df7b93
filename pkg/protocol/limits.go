package protocol

// Size limits enforced by Encode and Decode. They bound what a peer can make
// the other side allocate from a single message.
const (
	// MaxNamespaceLen is the maximum length of a namespace identifier.
	MaxNamespaceLen = 128

	// MaxEventNameLen is the maximum length of an event name.
	MaxEventNameLen = 128

	// MaxPayloadBytes is the maximum size of an event payload.
	// The WebSocket read limit is set from the session configuration and is
	// the first line of defense; this limit applies to the decoded envelope.
	MaxPayloadBytes = 64 * 1024
)
