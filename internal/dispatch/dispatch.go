// Package dispatch is the single loop that owns all mutable server state:
// the connection registry, the session directory and every session. Socket
// readers and timers talk to it through typed messages on its inbox, so no
// handler ever runs concurrently with another.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Trios-de-tryharders/site-de-quiz/internal/game"
	"github.com/Trios-de-tryharders/site-de-quiz/internal/protocol"
	"github.com/Trios-de-tryharders/site-de-quiz/internal/registry"
)

type Msg interface{ isDispatchMsg() }

// Inbound is one raw envelope read off a client socket.
type Inbound struct {
	Client *registry.Client
	Data   []byte
}

// Closed reports a socket that has gone away, cleanly or not. Both are
// treated as the player leaving.
type Closed struct {
	Client *registry.Client
}

// call carries a timer callback back onto the loop.
type call struct{ fn func() }

type Shutdown struct{}

// GetView reflects loop-internal counters without data races; test-only.
type GetView struct {
	Reply chan View
}

type View struct {
	Clients  int
	Sessions int
}

func (Inbound) isDispatchMsg()  {}
func (Closed) isDispatchMsg()   {}
func (call) isDispatchMsg()     {}
func (Shutdown) isDispatchMsg() {}
func (GetView) isDispatchMsg()  {}

type handlerFunc func(*registry.Client, protocol.ClientMessage)

type Dispatcher struct {
	inbox     chan Msg
	registry  *registry.Registry
	directory *game.Directory
	handlers  map[string]handlerFunc

	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

func New(parent context.Context, settings game.Settings, words game.WordSource, log *zap.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(parent)
	d := &Dispatcher{
		inbox:  make(chan Msg, 256),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
	d.registry = registry.New(d, settings.TypingExpiry, log)
	d.directory = game.NewDirectory(settings, words, d, log)
	d.handlers = map[string]handlerFunc{
		protocol.ActionConnect:    d.handleConnect,
		protocol.ActionMessage:    d.handleMessage,
		protocol.ActionWritting:   d.handleWritting,
		protocol.ActionCreateGame: d.handleCreateGame,
		protocol.ActionJoinGame:   d.handleJoinGame,
		protocol.ActionGetGame:    d.handleGetGame,
		protocol.ActionLaunchGame: d.handleLaunchGame,
		protocol.ActionChooseWord: d.handleChooseWord,
		protocol.ActionGuess:      d.handleGuess,
		protocol.ActionCanvas:     d.handleCanvas,
	}
	go d.loop()
	return d
}

func (d *Dispatcher) Inbox() chan<- Msg { return d.inbox }

// After schedules fn on the dispatch loop. This is the Scheduler both the
// registry and the sessions use: the callback is posted as a message, never
// run on the timer goroutine.
func (d *Dispatcher) After(dur time.Duration, fn func()) {
	time.AfterFunc(dur, func() {
		select {
		case d.inbox <- call{fn: fn}:
		case <-d.ctx.Done():
		}
	})
}

func (d *Dispatcher) loop() {
	for {
		select {
		case <-d.ctx.Done():
			return

		case m := <-d.inbox:
			switch msg := m.(type) {
			case Inbound:
				d.route(msg.Client, msg.Data)
			case Closed:
				d.dropClient(msg.Client)
			case call:
				msg.fn()
			case GetView:
				msg.Reply <- View{Clients: d.registry.Len(), Sessions: d.directory.Len()}
			case Shutdown:
				d.cancel()
				return
			}
		}
	}
}

// route decodes one envelope and hands it to the matching handler. Malformed
// or unknown envelopes are logged and dropped; the connection stays open.
func (d *Dispatcher) route(c *registry.Client, data []byte) {
	var msg protocol.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		d.log.Warn("malformed envelope", zap.String("client", c.ID), zap.Error(err))
		return
	}
	h, ok := d.handlers[msg.Type]
	if !ok {
		d.log.Warn("unknown action kind", zap.String("client", c.ID), zap.String("type", msg.Type))
		return
	}
	h(c, msg)
}

// dropClient tears one connection out of everything: chat presence, every
// session roster, and finally its outbox so the writer goroutine stops.
func (d *Dispatcher) dropClient(c *registry.Client) {
	d.registry.Disconnect(c)
	for _, s := range d.directory.Sessions() {
		s.RemovePlayer(c.ID)
		d.directory.RemoveIfEmpty(s)
	}
	c.CloseOutbox()
}

// --- handlers ---

func (d *Dispatcher) handleConnect(c *registry.Client, msg protocol.ClientMessage) {
	if msg.Username == "" {
		d.log.Debug("connect without username", zap.String("client", c.ID))
		return
	}
	if err := d.registry.Connect(c, msg.Username); err != nil {
		if errors.Is(err, registry.ErrNameTaken) {
			d.log.Debug("login refused", zap.String("username", msg.Username))
			return
		}
		d.log.Warn("connect failed", zap.Error(err))
	}
}

func (d *Dispatcher) handleMessage(c *registry.Client, msg protocol.ClientMessage) {
	if !d.registered(c) {
		return
	}
	d.registry.Chat(c, msg.Value)
}

func (d *Dispatcher) handleWritting(c *registry.Client, msg protocol.ClientMessage) {
	if !d.registered(c) {
		return
	}
	if msg.Game == "" {
		d.registry.Typing(c, msg.Typing())
		return
	}
	s, p, ok := d.sessionPlayer(c, msg.Game)
	if !ok {
		return
	}
	s.Typing(p, msg.Typing())
}

func (d *Dispatcher) handleCreateGame(c *registry.Client, msg protocol.ClientMessage) {
	if !d.registered(c) {
		return
	}
	s := d.directory.Create(game.NewPlayer(c.ID, c.Username, c))
	c.Send(protocol.ServerMessage{
		Sender: protocol.SenderServer,
		Type:   protocol.EventGameCreated,
		GameID: s.ID,
	})
}

func (d *Dispatcher) handleJoinGame(c *registry.Client, msg protocol.ClientMessage) {
	if !d.registered(c) {
		return
	}
	s, ok := d.directory.Find(msg.Game)
	if !ok {
		d.log.Debug("join on unknown game", zap.String("game", msg.Game))
		return
	}
	s.AddPlayer(game.NewPlayer(c.ID, c.Username, c))
}

func (d *Dispatcher) handleGetGame(c *registry.Client, msg protocol.ClientMessage) {
	s, ok := d.directory.Find(msg.Game)
	if !ok {
		c.Send(protocol.ServerMessage{
			Sender:   protocol.SenderServer,
			Type:     protocol.EventGetGame,
			GameInfo: &protocol.GameInfo{ID: msg.Game, State: protocol.StateNotFound},
		})
		return
	}
	c.Send(protocol.ServerMessage{
		Sender:   protocol.SenderServer,
		Type:     protocol.EventGetGame,
		GameInfo: s.Snapshot(),
	})
}

func (d *Dispatcher) handleLaunchGame(c *registry.Client, msg protocol.ClientMessage) {
	s, p, ok := d.sessionPlayer(c, msg.Game)
	if !ok {
		return
	}
	if err := s.StartGame(p); err != nil {
		d.log.Debug("launch refused", zap.String("game", s.ID), zap.Error(err))
	}
}

func (d *Dispatcher) handleChooseWord(c *registry.Client, msg protocol.ClientMessage) {
	s, p, ok := d.sessionPlayer(c, msg.Game)
	if !ok {
		return
	}
	if err := s.ChooseWord(p, msg.Value); err != nil {
		d.log.Debug("word choice refused", zap.String("game", s.ID), zap.Error(err))
	}
}

func (d *Dispatcher) handleGuess(c *registry.Client, msg protocol.ClientMessage) {
	s, p, ok := d.sessionPlayer(c, msg.Game)
	if !ok {
		return
	}
	s.Guess(p, msg.Value)
}

func (d *Dispatcher) handleCanvas(c *registry.Client, msg protocol.ClientMessage) {
	s, p, ok := d.sessionPlayer(c, msg.Game)
	if !ok {
		return
	}
	if err := s.HandleCanvas(p, msg.Image); err != nil {
		d.log.Debug("canvas refused", zap.String("game", s.ID), zap.Error(err))
	}
}

// --- cross-cutting preconditions ---

func (d *Dispatcher) registered(c *registry.Client) bool {
	if _, ok := d.registry.Lookup(c.ID); !ok {
		d.log.Debug("action from unregistered client", zap.String("client", c.ID))
		return false
	}
	return true
}

// sessionPlayer checks the two preconditions shared by every game action:
// the game exists and the actor is on its roster.
func (d *Dispatcher) sessionPlayer(c *registry.Client, gameID string) (*game.Session, *game.Player, bool) {
	s, ok := d.directory.Find(gameID)
	if !ok {
		d.log.Debug("game not found", zap.String("game", gameID))
		return nil, nil, false
	}
	p, ok := s.Player(c.ID)
	if !ok {
		d.log.Debug("actor not in game", zap.String("game", gameID), zap.String("client", c.ID))
		return nil, nil, false
	}
	return s, p, true
}
