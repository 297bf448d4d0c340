// Package server assembles the chat service: the TCP listener, the optional
// WebSocket listener, the shared hub, and the optional message log.
package server

import (
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/omochice/linetalk/internal/chat"
	"github.com/omochice/linetalk/internal/config"
	"github.com/omochice/linetalk/internal/history"
	"github.com/omochice/linetalk/internal/transport/ws"
	"github.com/omochice/linetalk/pkg/talk"
)

// Server runs the whole chat service described by a Config.
type Server struct {
	cfg *config.Config
	hub *chat.Hub
	tcp *talk.Server
	ws  *ws.Server
	db  *history.Log
}

// New wires the service together without binding any sockets.
func New(cfg *config.Config) (*Server, error) {
	var opts []talk.Option
	if cfg.MaxConns > 0 {
		opts = append(opts, talk.WithMaxConns(cfg.MaxConns))
	}
	tcpSrv, err := talk.NewServer(cfg.Port, cfg.DualStack, opts...)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{
		cfg: cfg,
		hub: chat.NewHub(),
		tcp: tcpSrv,
	}

	if cfg.History != "" {
		db, err := history.Open(cfg.History)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		s.db = db
		s.hub.SetRecorder(db)
	}

	if cfg.WSAddress != "" {
		s.ws = ws.New(cfg.WSAddress, s.hub)
	}

	tcpSrv.OnConnect(s.admit)
	return s, nil
}

// admit plugs one accepted TCP connection into the hub.
func (s *Server) admit(c *talk.Conn) {
	s.hub.Add(c)
	c.OnMessage(func(c *talk.Conn, line string) {
		s.hub.HandleLine(c, line)
	})
	c.OnClose(func(c *talk.Conn) {
		s.hub.Remove(c)
	})
	log.Printf("server: connection from %s:%d (peers: %d)", c.RemoteAddr(), c.RemotePort(), s.hub.Count())
}

// Start binds every configured listener.
func (s *Server) Start() error {
	var g errgroup.Group
	g.Go(s.tcp.Start)
	if s.ws != nil {
		g.Go(s.ws.Start)
	}
	if err := g.Wait(); err != nil {
		s.Stop()
		return err
	}

	log.Printf("server: listening on %s (tcp)", s.tcp.Addr())
	if s.ws != nil {
		log.Printf("server: listening on %s (websocket)", s.ws.Addr())
	}
	return nil
}

// Stop closes the listeners and the message log. Established sessions are
// left to their own lifecycles.
func (s *Server) Stop() {
	s.tcp.Stop()
	if s.ws != nil {
		s.ws.Stop()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// Addr returns the TCP listen address, or "" before Start.
func (s *Server) Addr() string {
	return s.tcp.Addr()
}

// WSAddr returns the WebSocket listen address, or "" when disabled or
// before Start.
func (s *Server) WSAddr() string {
	if s.ws == nil {
		return ""
	}
	return s.ws.Addr()
}

// Peers returns the number of connected peers across all transports.
func (s *Server) Peers() int {
	return s.hub.Count()
}
