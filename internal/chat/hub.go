package chat

import (
	"log"
	"sync"

	"github.com/omochice/linetalk/pkg/envelope"
)

// Hub tracks the connected peers of all transports and fans messages out.
// A message from one peer is relayed, still encoded, to every other peer.
type Hub struct {
	mu       sync.RWMutex
	peers    map[Peer]string // joined username, "" until a join arrives
	recorder Recorder
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		peers: make(map[Peer]string),
	}
}

// SetRecorder attaches a message log. A nil recorder disables recording.
func (h *Hub) SetRecorder(r Recorder) {
	h.mu.Lock()
	h.recorder = r
	h.mu.Unlock()
}

// Add registers a peer that has not joined with a username yet.
func (h *Hub) Add(p Peer) {
	h.mu.Lock()
	h.peers[p] = ""
	h.mu.Unlock()
}

// Remove drops the peer and, when it had joined, announces the departure to
// the remaining peers.
func (h *Hub) Remove(p Peer) {
	h.mu.Lock()
	name, ok := h.peers[p]
	delete(h.peers, p)
	h.mu.Unlock()

	if !ok || name == "" {
		return
	}
	line, err := envelope.Leave(name).Encode()
	if err != nil {
		log.Printf("chat: encode leave notice: %v", err)
		return
	}
	h.broadcast(line, p)
}

// Count returns the number of connected peers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// HandleLine processes one raw line arriving from p: decode it, update
// membership, record text messages, and relay the line to everyone else.
// Undecodable lines are dropped.
func (h *Hub) HandleLine(p Peer, line string) {
	env, err := envelope.Decode(line)
	if err != nil {
		log.Printf("chat: dropping undecodable line from %s: %v", p.RemoteAddr(), err)
		return
	}

	switch env.Kind {
	case envelope.KindJoin:
		h.mu.Lock()
		h.peers[p] = env.Sender
		h.mu.Unlock()
		log.Printf("chat: %s joined from %s", env.Sender, p.RemoteAddr())
	case envelope.KindLeave:
		log.Printf("chat: %s left", env.Sender)
	default:
		h.record(env)
	}

	h.broadcast(line, p)
}

func (h *Hub) record(env *envelope.Envelope) {
	h.mu.RLock()
	rec := h.recorder
	h.mu.RUnlock()
	if rec == nil {
		return
	}
	if err := rec.Record(env.Sender, env.Body); err != nil {
		log.Printf("chat: record message: %v", err)
	}
}

// broadcast relays one encoded line to every peer except from. The peer
// list is copied first so sends run outside the lock.
func (h *Hub) broadcast(line string, from Peer) {
	h.mu.RLock()
	peers := make([]Peer, 0, len(h.peers))
	for p := range h.peers {
		if p != from {
			peers = append(peers, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range peers {
		if err := p.Send(line); err != nil {
			log.Printf("chat: send to %s: %v", p.RemoteAddr(), err)
		}
	}
}
