// Package ws bridges WebSocket clients into the chat hub. One text frame
// carries one encoded chat line in each direction.
package ws

import (
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Peer adapts one upgraded WebSocket connection to chat.Peer.
type Peer struct {
	// mu serializes frame writes; the hub may broadcast from several
	// goroutines at once.
	mu   sync.Mutex
	conn net.Conn
}

// NewPeer wraps an upgraded connection.
func NewPeer(conn net.Conn) *Peer {
	return &Peer{conn: conn}
}

// Send implements chat.Peer by writing one text frame.
func (p *Peer) Send(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return wsutil.WriteServerText(p.conn, []byte(line))
}

// RemoteAddr implements chat.Peer.
func (p *Peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// close sends a close frame and releases the socket.
func (p *Peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = wsutil.WriteServerMessage(p.conn, ws.OpClose, nil)
	_ = p.conn.Close()
}
