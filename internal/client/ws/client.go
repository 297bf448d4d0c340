// Package ws provides a WebSocket client for the chat server.
package ws

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/linetalk/pkg/envelope"
)

// Client is a WebSocket chat client. Each chat line travels as one text
// frame.
type Client struct {
	address  string
	username string

	mu   sync.Mutex
	conn net.Conn
	src  io.Reader

	messages chan *envelope.Envelope
	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a client for the ws:// address, chatting as username.
func New(address, username string) *Client {
	return &Client{
		address:  address,
		username: username,
		messages: make(chan *envelope.Envelope, 10),
		done:     make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the receive loop.
func (c *Client) Connect(ctx context.Context) error {
	conn, br, _, err := ws.Dial(ctx, c.address)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}

	// The handshake may buffer early frames; read through them first.
	var src io.Reader = conn
	if br != nil {
		src = io.MultiReader(br, conn)
	}

	c.mu.Lock()
	c.conn = conn
	c.src = src
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receive()

	return nil
}

// Disconnect sends a close frame, closes the connection, and waits for the
// receive loop to exit. Safe to call more than once.
func (c *Client) Disconnect() {
	c.doneOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, nil)
			c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
		c.wg.Wait()
	})
}

// IsConnected reports whether the client holds a live connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SendMessage sends a chat text message.
func (c *Client) SendMessage(content string) error {
	line, err := envelope.Text(c.username, content).Encode()
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return c.SendLine(line)
}

// Join announces this user to the chat.
func (c *Client) Join() error {
	line, err := envelope.Join(c.username).Encode()
	if err != nil {
		return fmt.Errorf("failed to encode join: %w", err)
	}
	return c.SendLine(line)
}

// Leave announces this user's departure.
func (c *Client) Leave() error {
	line, err := envelope.Leave(c.username).Encode()
	if err != nil {
		return fmt.Errorf("failed to encode leave: %w", err)
	}
	return c.SendLine(line)
}

// SendLine writes one already-encoded line as a text frame. Concurrent
// calls are serialized.
func (c *Client) SendLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected to server")
	}
	if err := wsutil.WriteClientText(c.conn, []byte(line)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Messages returns the channel of received envelopes. It is closed when
// the receive loop exits.
func (c *Client) Messages() <-chan *envelope.Envelope {
	return c.messages
}

func (c *Client) receive() {
	defer c.wg.Done()
	defer close(c.messages)

	c.mu.Lock()
	src := c.src
	var w io.Writer = io.Discard
	if c.conn != nil {
		w = c.conn
	}
	c.mu.Unlock()

	rw := readWriter{src, w}
	for {
		data, err := wsutil.ReadServerText(rw)
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Printf("Error reading from server: %v", err)
			}
			return
		}

		env, err := envelope.Decode(string(data))
		if err != nil {
			log.Printf("Failed to decode message: %v", err)
			continue
		}

		select {
		case c.messages <- env:
		case <-c.done:
			return
		}
	}
}

// readWriter lets wsutil reply to control frames while reading through the
// handshake's buffered reader.
type readWriter struct {
	io.Reader
	io.Writer
}
