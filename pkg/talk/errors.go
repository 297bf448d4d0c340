package talk

import "errors"

// Errors reported synchronously by Conn and Server operations. Transport
// failures are never surfaced this way: they end the read loop and are
// reported through the connection's close handlers instead.
var (
	// ErrInvalidPort is returned when a requested port is zero or negative.
	ErrInvalidPort = errors.New("talk: port must be positive")

	// ErrLineBreak is returned by Send when the message contains a line
	// break. Nothing is written to the wire in that case.
	ErrLineBreak = errors.New("talk: message contains line break")

	// ErrNotConnected is returned by Send once the connection is down.
	ErrNotConnected = errors.New("talk: not connected")

	// ErrAlreadyDisconnected is returned by Disconnect when teardown has
	// already been requested or completed.
	ErrAlreadyDisconnected = errors.New("talk: already disconnected")

	// ErrServerStarted is returned by Start on a server that is already
	// listening.
	ErrServerStarted = errors.New("talk: server already started")
)
