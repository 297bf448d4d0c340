package chat_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/linetalk/internal/chat"
	"github.com/omochice/linetalk/pkg/envelope"
	"github.com/omochice/linetalk/pkg/talk"
)

var (
	_ chat.Peer = (*fakePeer)(nil)
	_ chat.Peer = (*talk.Conn)(nil)
)

type fakePeer struct {
	mu    sync.Mutex
	addr  string
	lines []string
	err   error
}

func (f *fakePeer) Send(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.lines = append(f.lines, line)
	return nil
}

func (f *fakePeer) RemoteAddr() string {
	return f.addr
}

func (f *fakePeer) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries [][2]string
	err     error
}

func (r *fakeRecorder) Record(sender, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, [2]string{sender, body})
	return nil
}

func (r *fakeRecorder) recorded() [][2]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]string(nil), r.entries...)
}

func encode(t *testing.T, env *envelope.Envelope) string {
	t.Helper()
	line, err := env.Encode()
	require.NoError(t, err)
	return line
}

func TestHubAddRemoveCount(t *testing.T) {
	hub := chat.NewHub()
	p1 := &fakePeer{addr: "127.0.0.1:1111"}
	p2 := &fakePeer{addr: "127.0.0.1:2222"}

	hub.Add(p1)
	hub.Add(p2)
	assert.Equal(t, 2, hub.Count())

	hub.Remove(p1)
	assert.Equal(t, 1, hub.Count())

	// Removing an unknown peer is harmless.
	hub.Remove(p1)
	assert.Equal(t, 1, hub.Count())
}

func TestHubRelaysToEveryoneElse(t *testing.T) {
	hub := chat.NewHub()
	sender := &fakePeer{addr: "127.0.0.1:1111"}
	p2 := &fakePeer{addr: "127.0.0.1:2222"}
	p3 := &fakePeer{addr: "127.0.0.1:3333"}
	hub.Add(sender)
	hub.Add(p2)
	hub.Add(p3)

	line := encode(t, envelope.Text("alice", "hello room"))
	hub.HandleLine(sender, line)

	assert.Empty(t, sender.sent(), "sender must not receive its own message")
	require.Equal(t, []string{line}, p2.sent())
	require.Equal(t, []string{line}, p3.sent())
}

func TestHubAnnouncesLeaveAfterJoin(t *testing.T) {
	hub := chat.NewHub()
	joined := &fakePeer{addr: "127.0.0.1:1111"}
	other := &fakePeer{addr: "127.0.0.1:2222"}
	hub.Add(joined)
	hub.Add(other)

	hub.HandleLine(joined, encode(t, envelope.Join("alice")))
	require.Len(t, other.sent(), 1, "join must be relayed")

	hub.Remove(joined)

	lines := other.sent()
	require.Len(t, lines, 2, "departure must be announced")
	env, err := envelope.Decode(lines[1])
	require.NoError(t, err)
	assert.Equal(t, envelope.KindLeave, env.Kind)
	assert.Equal(t, "alice", env.Sender)
}

func TestHubRemoveBeforeJoinIsSilent(t *testing.T) {
	hub := chat.NewHub()
	anon := &fakePeer{addr: "127.0.0.1:1111"}
	other := &fakePeer{addr: "127.0.0.1:2222"}
	hub.Add(anon)
	hub.Add(other)

	hub.Remove(anon)

	assert.Empty(t, other.sent(), "no notice for a peer that never joined")
}

func TestHubDropsUndecodableLines(t *testing.T) {
	hub := chat.NewHub()
	sender := &fakePeer{addr: "127.0.0.1:1111"}
	other := &fakePeer{addr: "127.0.0.1:2222"}
	hub.Add(sender)
	hub.Add(other)

	hub.HandleLine(sender, "not an envelope")

	assert.Empty(t, other.sent())
}

func TestHubRecordsTextMessages(t *testing.T) {
	hub := chat.NewHub()
	rec := &fakeRecorder{}
	hub.SetRecorder(rec)

	sender := &fakePeer{addr: "127.0.0.1:1111"}
	hub.Add(sender)

	hub.HandleLine(sender, encode(t, envelope.Join("alice")))
	hub.HandleLine(sender, encode(t, envelope.Text("alice", "first")))
	hub.HandleLine(sender, encode(t, envelope.Text("alice", "second")))
	hub.HandleLine(sender, encode(t, envelope.Leave("alice")))

	require.Equal(t, [][2]string{
		{"alice", "first"},
		{"alice", "second"},
	}, rec.recorded(), "only text messages are recorded")
}

func TestHubRecorderFailureDoesNotStopRelay(t *testing.T) {
	hub := chat.NewHub()
	hub.SetRecorder(&fakeRecorder{err: errors.New("disk full")})

	sender := &fakePeer{addr: "127.0.0.1:1111"}
	other := &fakePeer{addr: "127.0.0.1:2222"}
	hub.Add(sender)
	hub.Add(other)

	line := encode(t, envelope.Text("alice", "still delivered"))
	hub.HandleLine(sender, line)

	assert.Equal(t, []string{line}, other.sent())
}

func TestHubSendFailureSkipsPeerOnly(t *testing.T) {
	hub := chat.NewHub()
	sender := &fakePeer{addr: "127.0.0.1:1111"}
	broken := &fakePeer{addr: "127.0.0.1:2222", err: errors.New("gone")}
	healthy := &fakePeer{addr: "127.0.0.1:3333"}
	hub.Add(sender)
	hub.Add(broken)
	hub.Add(healthy)

	line := encode(t, envelope.Text("alice", "hello"))
	hub.HandleLine(sender, line)

	assert.Equal(t, []string{line}, healthy.sent())
}
