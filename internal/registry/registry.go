// Package registry tracks connected clients: identity, delivery handles and
// the chat-level presence and typing indicators. It owns no game state.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Trios-de-tryharders/site-de-quiz/internal/protocol"
)

var ErrNameTaken = errors.New("registry: username already taken")

// Scheduler posts a callback after a delay. Callbacks must run on the same
// goroutine that mutates the registry, so all state stays single-threaded.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// Client is one connected socket. The transport layer drains Outbox; Send is
// best-effort and drops the payload when the outbox is full, the way a slow
// client loses snapshots rather than stalling the broadcaster.
type Client struct {
	ID       string
	Username string

	outbox chan []byte
	closed bool
}

func NewClient() *Client {
	return &Client{
		ID:     uuid.NewString(),
		outbox: make(chan []byte, 32),
	}
}

// Send marshals v and queues it for the writer goroutine.
func (c *Client) Send(v any) {
	if c.closed {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.outbox <- payload:
	default:
		// Slow client: drop the payload, never block the loop.
	}
}

func (c *Client) Outbox() <-chan []byte { return c.outbox }

// CloseOutbox tells the writer goroutine no more payloads are coming.
func (c *Client) CloseOutbox() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.outbox)
}

// Registry is the process-wide client list. All methods must be called from
// the dispatch loop; nothing here locks.
type Registry struct {
	clients map[string]*Client // by client id
	order   []*Client          // insertion order, for stable user lists

	writing    []*Client      // chat-level typing indicator
	typingGens map[string]int // stale-expiry protection per client

	typingExpiry time.Duration
	sched        Scheduler
	log          *zap.Logger
}

func New(sched Scheduler, typingExpiry time.Duration, log *zap.Logger) *Registry {
	return &Registry{
		clients:      make(map[string]*Client),
		typingGens:   make(map[string]int),
		typingExpiry: typingExpiry,
		sched:        sched,
		log:          log,
	}
}

// Connect registers the client under username and runs the login exchange:
// the caller gets a login reply, everyone else a presence event. A taken
// username fails the login without touching the registry.
func (r *Registry) Connect(c *Client, username string) error {
	for _, other := range r.order {
		if other.Username == username {
			c.Send(protocol.ServerMessage{
				Sender:   protocol.SenderServer,
				Type:     protocol.EventLogin,
				Username: protocol.SenderServer,
				Value:    "Username already taken",
				Success:  protocol.Bool(false),
			})
			return fmt.Errorf("%w: %s", ErrNameTaken, username)
		}
	}

	c.Username = username
	r.clients[c.ID] = c
	r.order = append(r.order, c)
	r.log.Info("client connected", zap.String("client", c.ID), zap.String("username", username))

	r.BroadcastExcept(c.ID, protocol.ServerMessage{
		Sender:   protocol.SenderServer,
		Type:     protocol.EventConnect,
		Username: username,
		Value:    username + " has joined the chat",
	})
	c.Send(protocol.ServerMessage{
		Sender:   protocol.SenderServer,
		Type:     protocol.EventLogin,
		Username: protocol.SenderServer,
		Value:    "Welcome to the chat",
		Success:  protocol.Bool(true),
		Users:    r.Usernames(),
	})
	return nil
}

// Disconnect drops the client and tells everyone left.
func (r *Registry) Disconnect(c *Client) {
	if _, ok := r.clients[c.ID]; !ok {
		return
	}
	delete(r.clients, c.ID)
	r.order = removeClient(r.order, c.ID)
	r.writing = removeClient(r.writing, c.ID)
	delete(r.typingGens, c.ID)
	r.log.Info("client disconnected", zap.String("client", c.ID), zap.String("username", c.Username))

	r.Broadcast(protocol.ServerMessage{
		Sender:   protocol.SenderServer,
		Type:     protocol.EventDisconnect,
		Username: c.Username,
		Value:    c.Username + " has left the chat",
		Users:    r.Usernames(),
	})
}

// Chat relays a plain chat line to every other client and clears the
// sender's typing flag.
func (r *Registry) Chat(c *Client, text string) {
	r.writing = removeClient(r.writing, c.ID)
	delete(r.typingGens, c.ID)
	r.BroadcastExcept(c.ID, protocol.ServerMessage{
		Sender:   protocol.SenderUser,
		Type:     protocol.EventMessage,
		Username: c.Username,
		Value:    text,
		Users:    r.writingUsernames(),
	})
}

// Typing flags or unflags the client as composing. A set flag expires on its
// own after typingExpiry unless refreshed; every change broadcasts the set.
func (r *Registry) Typing(c *Client, typing bool) {
	if typing {
		if _, pending := r.typingGens[c.ID]; !pending {
			r.writing = append(r.writing, c)
		}
		r.typingGens[c.ID]++
		gen := r.typingGens[c.ID]
		r.sched.After(r.typingExpiry, func() {
			if r.typingGens[c.ID] != gen {
				return
			}
			r.writing = removeClient(r.writing, c.ID)
			delete(r.typingGens, c.ID)
			r.broadcastTyping(c)
		})
	} else if _, pending := r.typingGens[c.ID]; pending {
		delete(r.typingGens, c.ID)
		r.writing = removeClient(r.writing, c.ID)
	}
	r.broadcastTyping(c)
}

func (r *Registry) broadcastTyping(c *Client) {
	r.Broadcast(protocol.ServerMessage{
		Sender:   protocol.SenderUser,
		Type:     protocol.EventWritting,
		Username: c.Username,
		Users:    r.writingUsernames(),
	})
}

// Broadcast sends to every registered client.
func (r *Registry) Broadcast(msg protocol.ServerMessage) {
	for _, c := range r.order {
		c.Send(msg)
	}
}

// BroadcastExcept sends to every registered client but one.
func (r *Registry) BroadcastExcept(id string, msg protocol.ServerMessage) {
	for _, c := range r.order {
		if c.ID != id {
			c.Send(msg)
		}
	}
}

func (r *Registry) Lookup(id string) (*Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

func (r *Registry) Usernames() []string {
	names := make([]string, 0, len(r.order))
	for _, c := range r.order {
		names = append(names, c.Username)
	}
	return names
}

func (r *Registry) Len() int { return len(r.clients) }

func (r *Registry) writingUsernames() []string {
	names := make([]string, 0, len(r.writing))
	for _, c := range r.writing {
		names = append(names, c.Username)
	}
	return names
}

func removeClient(list []*Client, id string) []*Client {
	out := list[:0]
	for _, c := range list {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
