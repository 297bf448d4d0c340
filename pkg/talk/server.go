package talk

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"golang.org/x/net/netutil"
)

// Server owns a listening TCP socket and hands every accepted peer out as a
// Conn. Accepted connections live independently of the server: stopping it
// only stops accepting, established sessions stay up.
type Server struct {
	port      int
	dualStack bool
	opts      options

	mu sync.Mutex
	ln net.Listener

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	onConnect connHandlers
}

// NewServer configures a server without binding a socket; Start does that.
// With dualStack set, the listener accepts IPv4 and IPv6 peers on the same
// port, otherwise IPv4 only.
func NewServer(port int, dualStack bool, opts ...Option) (*Server, error) {
	if port <= 0 {
		return nil, ErrInvalidPort
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		port:      port,
		dualStack: dualStack,
		opts:      o,
		quit:      make(chan struct{}),
	}, nil
}

// OnConnect registers a handler invoked from the accept loop for every
// accepted connection. The connection's read loop is already running when
// the handler sees it.
func (s *Server) OnConnect(fn ConnHandler) {
	s.onConnect.add(fn)
}

// Start binds the listening socket and launches the accept loop. The error
// covers binding only; accept failures are logged and retried.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return ErrServerStarted
	}

	network, addr := "tcp4", fmt.Sprintf(":%d", s.port)
	if s.dualStack {
		network, addr = "tcp", fmt.Sprintf("[::]:%d", s.port)
	}
	ln, err := net.Listen(network, addr)
	if err != nil {
		return fmt.Errorf("talk: listen on port %d: %w", s.port, err)
	}
	if s.opts.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.opts.maxConns)
	}
	s.ln = ln

	s.wg.Add(1)
	s.opts.runner.Go(s.acceptLoop)
	return nil
}

// Stop closes the listening socket, which makes a blocked accept fail
// immediately, and waits for the accept loop to exit. Connections already
// handed out are untouched. Stop is idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.mu.Lock()
		ln := s.ln
		s.mu.Unlock()
		if ln != nil {
			_ = ln.Close()
		}
		s.wg.Wait()
	})
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		nc, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("talk: accept: %v", err)
			continue
		}
		c := newConn(nc, s.opts.runner)
		s.onConnect.fire(c)
	}
}
