// Package chat implements the broadcast domain shared by every transport:
// a hub of peers exchanging envelope-encoded lines.
package chat

// Peer is one connected participant. TCP sessions and WebSocket bridges
// both implement it, so the hub never knows which transport a peer arrived
// on.
type Peer interface {
	// Send delivers one encoded line to the peer.
	Send(line string) error
	// RemoteAddr identifies the peer for logging.
	RemoteAddr() string
}

// Recorder persists chat traffic. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(sender, body string) error
}
