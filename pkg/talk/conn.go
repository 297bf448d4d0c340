// Package talk implements line-oriented text messaging over TCP. A Conn
// wraps one established socket with a dedicated read loop and a serialized
// write path; a Server accepts inbound sockets and hands each one out as a
// Conn. Received lines and connection loss are delivered through registered
// handlers rather than polled for.
package talk

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Conn is a bidirectional, line-oriented text session over one TCP socket.
//
// The read loop started at construction owns teardown: whether the session
// ends by Disconnect, by the peer closing, or by an I/O error, the loop
// fires the close handlers exactly once, releases the socket, and drops all
// handler registrations. Handlers run on the read loop, so a message
// handler is never invoked concurrently with another handler of the same
// connection, and lines arrive in the order the peer sent them.
type Conn struct {
	nc net.Conn

	remoteAddr string
	remotePort int

	// writeMu serializes Send calls against each other and against
	// teardown, so every message reaches the wire as one intact line.
	writeMu sync.Mutex
	w       *bufio.Writer

	done     chan struct{}
	stopping atomic.Bool
	closed   atomic.Bool

	onMessage msgHandlers
	onClose   connHandlers
}

// Connect establishes an outbound connection to address:port. The read loop
// is running by the time Connect returns, so handlers registered next will
// see everything the peer sends.
func Connect(address string, port int, opts ...Option) (*Conn, error) {
	if port <= 0 {
		return nil, ErrInvalidPort
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	nc, err := net.Dial("tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("talk: connect %s:%d: %w", address, port, err)
	}
	return newConn(nc, o.runner), nil
}

// newConn wraps an established socket and starts its read loop. Inbound
// sockets reach it through the server's accept loop.
func newConn(nc net.Conn, runner Runner) *Conn {
	c := &Conn{
		nc:   nc,
		w:    bufio.NewWriter(nc),
		done: make(chan struct{}),
	}
	if addr := nc.RemoteAddr(); addr != nil {
		if host, port, err := net.SplitHostPort(addr.String()); err == nil {
			c.remoteAddr = host
			c.remotePort, _ = strconv.Atoi(port)
		}
	}
	runner.Go(c.readLoop)
	return c
}

// Connected reports whether the connection is still up. It may stay true
// for a moment after Disconnect returns; teardown completes asynchronously
// on the read loop.
func (c *Conn) Connected() bool {
	return !c.closed.Load()
}

// RemoteAddr returns the peer's host address, or "" when the socket does
// not carry one.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// RemotePort returns the peer's port, or 0 when the socket does not carry
// one.
func (c *Conn) RemotePort() int {
	return c.remotePort
}

// OnMessage registers a handler for received lines. The handler runs on the
// read loop for every line, in arrival order. Registering on a closed
// connection is a no-op.
func (c *Conn) OnMessage(fn MessageHandler) {
	if c.closed.Load() {
		return
	}
	c.onMessage.add(fn)
}

// OnClose registers a handler invoked exactly once when the connection
// ends, before the socket is released. Registering on a closed connection
// is a no-op.
func (c *Conn) OnClose(fn ConnHandler) {
	if c.closed.Load() {
		return
	}
	c.onClose.add(fn)
}

// Send writes message followed by a newline and flushes it to the socket.
// Concurrent Sends are serialized. The message must not contain a line
// break; ErrLineBreak is returned before anything is written.
func (c *Conn) Send(message string) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	if strings.ContainsAny(message, "\r\n") {
		return ErrLineBreak
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrNotConnected
	}
	if _, err := c.w.WriteString(message); err != nil {
		return fmt.Errorf("talk: send: %w", err)
	}
	if err := c.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("talk: send: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("talk: send: %w", err)
	}
	return nil
}

// Disconnect asks the read loop to tear the connection down and returns
// without waiting for it. The close handlers fire and the socket is
// released once the loop observes the request, so resources may be held
// briefly after Disconnect returns. Only the first call succeeds; later
// calls return ErrAlreadyDisconnected.
func (c *Conn) Disconnect() error {
	if c.closed.Load() || c.stopping.Swap(true) {
		return ErrAlreadyDisconnected
	}
	close(c.done)
	// Unblock a read in progress without closing the socket; releasing it
	// stays the read loop's job.
	_ = c.nc.SetReadDeadline(time.Now())
	return nil
}

// readLoop pulls newline-delimited lines off the socket and dispatches them
// until the peer closes, an I/O error occurs, or Disconnect is requested.
func (c *Conn) readLoop() {
	defer c.teardown()

	r := bufio.NewReader(c.nc)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			// A final line the peer never terminated still counts.
			if line != "" && errors.Is(err, io.EOF) {
				c.onMessage.fire(c, strings.TrimSuffix(line, "\r"))
			}
			return
		}
		c.onMessage.fire(c, trimLine(line))
		select {
		case <-c.done:
			return
		default:
		}
	}
}

// trimLine strips the terminator from a complete line, accepting both "\n"
// and "\r\n" so that either convention decodes to the same message.
func trimLine(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// teardown runs exactly once, on the read loop, after the loop exits. Close
// handlers fire first, then the socket goes down write side first, then all
// registrations are dropped.
func (c *Conn) teardown() {
	c.onClose.fire(c)

	c.writeMu.Lock()
	_ = c.w.Flush()
	if tc, ok := c.nc.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
		_ = tc.CloseRead()
	}
	_ = c.nc.Close()
	c.closed.Store(true)
	c.writeMu.Unlock()

	c.onMessage.clear()
	c.onClose.clear()
}
