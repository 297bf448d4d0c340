package talk

import "sync"

// ConnHandler observes a connection-level event: a new inbound connection
// on a Server, or the loss of an established connection.
type ConnHandler func(*Conn)

// MessageHandler observes one line received on a connection.
type MessageHandler func(*Conn, string)

// connHandlers is a multicast list of ConnHandler subscribers. Handlers are
// invoked in registration order, outside the list's own lock.
type connHandlers struct {
	mu  sync.Mutex
	fns []ConnHandler
}

func (h *connHandlers) add(fn ConnHandler) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

func (h *connHandlers) fire(c *Conn) {
	h.mu.Lock()
	fns := make([]ConnHandler, len(h.fns))
	copy(fns, h.fns)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

func (h *connHandlers) clear() {
	h.mu.Lock()
	h.fns = nil
	h.mu.Unlock()
}

// msgHandlers is a multicast list of MessageHandler subscribers.
type msgHandlers struct {
	mu  sync.Mutex
	fns []MessageHandler
}

func (h *msgHandlers) add(fn MessageHandler) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

func (h *msgHandlers) fire(c *Conn, line string) {
	h.mu.Lock()
	fns := make([]MessageHandler, len(h.fns))
	copy(fns, h.fns)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(c, line)
	}
}

func (h *msgHandlers) clear() {
	h.mu.Lock()
	h.fns = nil
	h.mu.Unlock()
}
