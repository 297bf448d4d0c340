package ws

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/linetalk/internal/chat"
)

// Server upgrades incoming HTTP requests to WebSocket and delegates every
// received frame to the hub.
type Server struct {
	address  string
	hub      *chat.Hub
	listener net.Listener
	server   *http.Server
	wg       sync.WaitGroup
}

// New creates a WebSocket server that feeds the provided Hub.
func New(address string, hub *chat.Hub) *Server {
	return &Server{
		address: address,
		hub:     hub,
	}
}

// Start binds the listener and begins serving in the background. The error
// covers binding only.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("ws: listen on %s: %w", s.address, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)
	s.server = &http.Server{Handler: mux}

	log.Printf("WebSocket server started on %s", listener.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("WebSocket server error: %v", err)
		}
	}()
	return nil
}

// Stop closes the listener and waits for the serve loop to exit. Upgraded
// connections end when their peers go away or their read loops fail.
func (s *Server) Stop() {
	if s.server != nil {
		_ = s.server.Close()
	}
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket connection: %v", err)
		return
	}

	peer := NewPeer(conn)
	s.hub.Add(peer)

	go s.readLoop(peer)
}

// readLoop consumes text frames as chat lines until the peer goes away.
func (s *Server) readLoop(p *Peer) {
	defer func() {
		s.hub.Remove(p)
		p.close()
	}()

	for {
		data, err := wsutil.ReadClientText(p.conn)
		if err != nil {
			return
		}
		s.hub.HandleLine(p, string(data))
	}
}
