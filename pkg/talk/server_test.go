package talk_test

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/omochice/linetalk/pkg/talk"
)

// freePort reserves an ephemeral port and releases it for the test to bind.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve a port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func ipv6Available(t *testing.T) bool {
	t.Helper()
	ln, err := net.Listen("tcp6", "[::1]:0")
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

func waitConn(t *testing.T, ch <-chan *talk.Conn) *talk.Conn {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for accepted connection")
		return nil
	}
}

func TestNewServerValidatesPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero", 0},
		{"negative", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := talk.NewServer(tt.port, false); !errors.Is(err, talk.ErrInvalidPort) {
				t.Errorf("Expected ErrInvalidPort for port %d, got %v", tt.port, err)
			}
		})
	}
}

func TestServerAcceptFiresOnConnect(t *testing.T) {
	port := freePort(t)
	srv, err := talk.NewServer(port, false)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	accepted := make(chan *talk.Conn, 1)
	srv.OnConnect(func(c *talk.Conn) {
		accepted <- c
	})

	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer srv.Stop()

	if srv.Addr() == "" {
		t.Error("Expected a listen address after Start")
	}

	client, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer client.Close()

	c := waitConn(t, accepted)
	if !c.Connected() {
		t.Error("Expected accepted connection to be connected")
	}
	if c.RemoteAddr() != "127.0.0.1" {
		t.Errorf("Expected remote address 127.0.0.1, got %q", c.RemoteAddr())
	}
	if c.RemotePort() == 0 {
		t.Error("Expected a nonzero remote port")
	}
}

func TestServerStartTwice(t *testing.T) {
	srv, err := talk.NewServer(freePort(t), false)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer srv.Stop()

	if err := srv.Start(); !errors.Is(err, talk.ErrServerStarted) {
		t.Errorf("Expected ErrServerStarted, got %v", err)
	}
}

func TestServerStopUnblocksAcceptPromptly(t *testing.T) {
	port := freePort(t)
	srv, err := talk.NewServer(port, false)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		srv.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while accept was blocked")
	}

	// Stop is idempotent.
	srv.Stop()

	if _, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 500*time.Millisecond); err == nil {
		t.Error("Expected dial to fail after Stop")
	}
}

func TestServerStopLeavesSessionsUp(t *testing.T) {
	port := freePort(t)
	srv, err := talk.NewServer(port, false)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	accepted := make(chan *talk.Conn, 1)
	srv.OnConnect(func(c *talk.Conn) {
		accepted <- c
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	client, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer client.Close()

	c := waitConn(t, accepted)
	received := make(chan string, 1)
	c.OnMessage(func(_ *talk.Conn, line string) {
		received <- line
	})

	srv.Stop()

	if !c.Connected() {
		t.Fatal("Expected session to survive server stop")
	}

	if _, err := client.Write([]byte("ping\n")); err != nil {
		t.Fatalf("Failed to write after stop: %v", err)
	}
	select {
	case line := <-received:
		if line != "ping" {
			t.Errorf("Expected %q, got %q", "ping", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for message after stop")
	}

	if err := c.Send("pong"); err != nil {
		t.Fatalf("Failed to send after stop: %v", err)
	}
	reply, err := bufio.NewReader(client).ReadString('\n')
	if err != nil {
		t.Fatalf("Failed to read reply: %v", err)
	}
	if reply != "pong\n" {
		t.Errorf("Expected %q, got %q", "pong\n", reply)
	}
}

func TestServerDualStack(t *testing.T) {
	if !ipv6Available(t) {
		t.Skip("IPv6 not available")
	}

	port := freePort(t)
	srv, err := talk.NewServer(port, true)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	accepted := make(chan *talk.Conn, 2)
	srv.OnConnect(func(c *talk.Conn) {
		accepted <- c
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer srv.Stop()

	v4, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("Failed to dial over IPv4: %v", err)
	}
	defer v4.Close()
	waitConn(t, accepted)

	v6, err := net.Dial("tcp", fmt.Sprintf("[::1]:%d", port))
	if err != nil {
		t.Fatalf("Failed to dial over IPv6: %v", err)
	}
	defer v6.Close()
	waitConn(t, accepted)
}

func TestServerIPv4OnlyRejectsIPv6(t *testing.T) {
	if !ipv6Available(t) {
		t.Skip("IPv6 not available")
	}

	port := freePort(t)
	srv, err := talk.NewServer(port, false)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer srv.Stop()

	v4, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("Failed to dial over IPv4: %v", err)
	}
	defer v4.Close()

	if c, err := net.DialTimeout("tcp", fmt.Sprintf("[::1]:%d", port), 500*time.Millisecond); err == nil {
		c.Close()
		t.Error("Expected IPv6 dial to fail on an IPv4-only server")
	}
}

func TestServerMaxConns(t *testing.T) {
	port := freePort(t)
	srv, err := talk.NewServer(port, false, talk.WithMaxConns(1))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	accepted := make(chan *talk.Conn, 2)
	srv.OnConnect(func(c *talk.Conn) {
		accepted <- c
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer srv.Stop()

	first, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("Failed to dial first client: %v", err)
	}
	defer first.Close()
	waitConn(t, accepted)

	second, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("Failed to dial second client: %v", err)
	}
	defer second.Close()

	select {
	case <-accepted:
		t.Fatal("Second connection accepted past the limit")
	case <-time.After(300 * time.Millisecond):
	}

	// Dropping the first session frees the slot.
	first.Close()
	waitConn(t, accepted)
}

func TestServerWithRunner(t *testing.T) {
	var launched atomic.Int32
	runner := talk.RunnerFunc(func(task func()) {
		launched.Add(1)
		go task()
	})

	port := freePort(t)
	srv, err := talk.NewServer(port, false, talk.WithRunner(runner))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	accepted := make(chan *talk.Conn, 1)
	srv.OnConnect(func(c *talk.Conn) {
		accepted <- c
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer srv.Stop()

	client, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer client.Close()
	waitConn(t, accepted)

	// One launch for the accept loop, one for the connection's read loop.
	if n := launched.Load(); n != 2 {
		t.Errorf("Expected 2 runner launches, got %d", n)
	}
}
