package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Trios-de-tryharders/site-de-quiz/internal/protocol"
)

type stubSched struct {
	fns []func()
}

func (s *stubSched) After(d time.Duration, fn func()) { s.fns = append(s.fns, fn) }

// drain empties a client outbox into decoded messages; registry calls are
// synchronous so everything sent is already queued.
func drain(t *testing.T, c *Client) []protocol.ServerMessage {
	t.Helper()
	var out []protocol.ServerMessage
	for {
		select {
		case payload := <-c.Outbox():
			var msg protocol.ServerMessage
			require.NoError(t, json.Unmarshal(payload, &msg))
			out = append(out, msg)
		default:
			return out
		}
	}
}

func lastOfType(msgs []protocol.ServerMessage, kind string) (protocol.ServerMessage, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == kind {
			return msgs[i], true
		}
	}
	return protocol.ServerMessage{}, false
}

func newTestRegistry() (*Registry, *stubSched) {
	sched := &stubSched{}
	return New(sched, 5*time.Second, zap.NewNop()), sched
}

func TestConnect_LoginAndPresence(t *testing.T) {
	r, _ := newTestRegistry()
	alice, bob := NewClient(), NewClient()

	require.NoError(t, r.Connect(alice, "alice"))
	require.NoError(t, r.Connect(bob, "bob"))

	bobMsgs := drain(t, bob)
	login, ok := lastOfType(bobMsgs, protocol.EventLogin)
	require.True(t, ok)
	require.NotNil(t, login.Success)
	assert.True(t, *login.Success)
	assert.ElementsMatch(t, []string{"alice", "bob"}, login.Users)

	aliceMsgs := drain(t, alice)
	presence, ok := lastOfType(aliceMsgs, protocol.EventConnect)
	require.True(t, ok)
	assert.Equal(t, "bob", presence.Username)
}

func TestConnect_NameTaken(t *testing.T) {
	r, _ := newTestRegistry()
	alice, impostor := NewClient(), NewClient()

	require.NoError(t, r.Connect(alice, "alice"))
	err := r.Connect(impostor, "alice")
	require.ErrorIs(t, err, ErrNameTaken)
	assert.Equal(t, 1, r.Len())

	msgs := drain(t, impostor)
	login, ok := lastOfType(msgs, protocol.EventLogin)
	require.True(t, ok)
	require.NotNil(t, login.Success)
	assert.False(t, *login.Success)
}

func TestDisconnect_BroadcastsRemainingUsers(t *testing.T) {
	r, _ := newTestRegistry()
	alice, bob := NewClient(), NewClient()
	require.NoError(t, r.Connect(alice, "alice"))
	require.NoError(t, r.Connect(bob, "bob"))
	drain(t, alice)

	r.Disconnect(bob)
	assert.Equal(t, 1, r.Len())

	msgs := drain(t, alice)
	gone, ok := lastOfType(msgs, protocol.EventDisconnect)
	require.True(t, ok)
	assert.Equal(t, "bob", gone.Username)
	assert.Equal(t, []string{"alice"}, gone.Users)
}

func TestChat_RelaysToOthersOnly(t *testing.T) {
	r, _ := newTestRegistry()
	alice, bob := NewClient(), NewClient()
	require.NoError(t, r.Connect(alice, "alice"))
	require.NoError(t, r.Connect(bob, "bob"))
	drain(t, alice)
	drain(t, bob)

	r.Chat(alice, "hello")

	bobMsgs := drain(t, bob)
	chat, ok := lastOfType(bobMsgs, protocol.EventMessage)
	require.True(t, ok)
	assert.Equal(t, "hello", chat.Value)
	_, echoed := lastOfType(drain(t, alice), protocol.EventMessage)
	assert.False(t, echoed, "sender must not receive their own chat line")
}

func TestTyping_BroadcastsAndExpires(t *testing.T) {
	r, sched := newTestRegistry()
	alice, bob := NewClient(), NewClient()
	require.NoError(t, r.Connect(alice, "alice"))
	require.NoError(t, r.Connect(bob, "bob"))
	drain(t, bob)

	r.Typing(alice, true)
	msgs := drain(t, bob)
	typing, ok := lastOfType(msgs, protocol.EventWritting)
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, typing.Users)

	// Expiry fires: the set empties on its own.
	require.NotEmpty(t, sched.fns)
	sched.fns[len(sched.fns)-1]()
	msgs = drain(t, bob)
	typing, ok = lastOfType(msgs, protocol.EventWritting)
	require.True(t, ok)
	assert.Empty(t, typing.Users)
}

func TestTyping_RefreshOutlivesStaleExpiry(t *testing.T) {
	r, sched := newTestRegistry()
	alice := NewClient()
	require.NoError(t, r.Connect(alice, "alice"))

	r.Typing(alice, true)
	stale := sched.fns[len(sched.fns)-1]
	r.Typing(alice, true) // refresh re-arms

	stale()
	msgs := drain(t, alice)
	typing, ok := lastOfType(msgs, protocol.EventWritting)
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, typing.Users, "stale expiry must not clear a refreshed flag")
}
