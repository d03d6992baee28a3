// Package game owns the sketch game sessions: the turn and round state
// machine, guess scoring, word masking and the outbound event composition.
// Nothing in this package locks; every session is mutated only from the
// dispatch loop, timer callbacks included.
package game

import (
	"errors"
	"math/rand/v2"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/Trios-de-tryharders/site-de-quiz/internal/protocol"
)

// State is the session lifecycle. Wire names are kept from the original
// client: the drawing phase travels as "playing".
type State string

const (
	StateWaiting      State = "waiting"
	StateChooseWord   State = "chooseWord"
	StateDrawing      State = "playing"
	StateRoundTimeout State = "roundTimeout"
	StateEnded        State = "ended"
)

const wordChoiceCount = 3

var (
	ErrNotOwner          = errors.New("game: only the owner can start the game")
	ErrNotDrawer         = errors.New("game: only the drawer can do that")
	ErrWrongState        = errors.New("game: action not allowed in this state")
	ErrInvalidWordChoice = errors.New("game: word is not among the offered choices")
)

// Scheduler posts a callback after a delay. Callbacks must be delivered on
// the dispatch loop so session state stays single-threaded.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// WordSource hands out n distinct random words.
type WordSource interface {
	Pick(n int) []string
}

// Settings are the per-session tunables. Durations that travel on the wire
// are kept in whole seconds.
type Settings struct {
	MaxRound      int
	RoundDuration int
	ChoiceSeconds int
	TimeoutWindow int
	RevealMarks   []int
	TypingExpiry  time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		MaxRound:      3,
		RoundDuration: 60,
		ChoiceSeconds: 15,
		TimeoutWindow: 10,
		RevealMarks:   []int{40, 20},
		TypingExpiry:  5 * time.Second,
	}
}

// Session is one game instance. The zero value is not usable; construct
// through NewSession.
type Session struct {
	ID string

	owner   *Player
	players []*Player // insertion order

	state   State
	word    string
	secret  []rune
	masked  []rune
	choices []string

	round int
	time  int // seconds remaining on the active phase

	roundWinners []*Player
	drawOrder    []*Player
	drawerIdx    int

	canvas string

	writing    []*Player
	typingGens map[string]int

	settings Settings
	words    WordSource
	sched    Scheduler
	log      *zap.Logger

	// Single-slot timer: arming bumps the generation, which orphans any
	// callback still in flight from the previous timer.
	timerGen int
}

func NewSession(id string, owner *Player, settings Settings, words WordSource, sched Scheduler, log *zap.Logger) *Session {
	return &Session{
		ID:         id,
		owner:      owner,
		players:    []*Player{owner},
		state:      StateWaiting,
		typingGens: make(map[string]int),
		settings:   settings,
		words:      words,
		sched:      sched,
		log:        log.With(zap.String("game", id)),
	}
}

func (s *Session) State() State        { return s.state }
func (s *Session) Owner() *Player      { return s.owner }
func (s *Session) Round() int          { return s.round }
func (s *Session) Empty() bool         { return len(s.players) == 0 }
func (s *Session) Word() string        { return s.word }
func (s *Session) MaskedWord() string  { return string(s.masked) }
func (s *Session) Choices() []string   { return s.choices }
func (s *Session) TimeLeft() int       { return s.time }

func (s *Session) Players() []*Player      { return s.players }
func (s *Session) DrawOrder() []*Player    { return s.drawOrder }
func (s *Session) RoundWinners() []*Player { return s.roundWinners }

// Player finds a roster member by connection id.
func (s *Session) Player(id string) (*Player, bool) {
	for _, p := range s.players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Drawer is the player currently drawing, nil outside turn-bearing states.
func (s *Session) Drawer() *Player {
	if !s.midTurn() {
		return nil
	}
	if s.drawerIdx < 0 || s.drawerIdx >= len(s.drawOrder) {
		return nil
	}
	return s.drawOrder[s.drawerIdx]
}

// Winner is the highest-score player, first-seen on ties. Only meaningful
// once the game has ended.
func (s *Session) Winner() *Player {
	var best *Player
	for _, p := range s.players {
		if best == nil || p.Score > best.Score {
			best = p
		}
	}
	return best
}

// AddPlayer joins a player to the roster. Idempotent by identity; a latecomer
// joining mid-turn is queued into the current rotation.
func (s *Session) AddPlayer(p *Player) {
	if _, ok := s.Player(p.ID); ok {
		return
	}
	p.Score = 0
	s.players = append(s.players, p)
	if s.midTurn() {
		s.drawOrder = append(s.drawOrder, p)
	}
	s.log.Info("player joined", zap.String("username", p.Username))
	msg := s.event(protocol.EventPlayerJoined)
	msg.Username = p.Username
	s.broadcast(msg)
}

// RemovePlayer drops a player: leave and abrupt disconnect come through here
// identically. The drawer leaving rotates the turn at once; a roster of one
// ends the game; an empty roster leaves the session for the directory to reap.
func (s *Session) RemovePlayer(id string) {
	p, ok := s.Player(id)
	if !ok {
		return
	}
	wasDrawer := s.Drawer() == p
	wasOwner := s.owner == p
	inGame := s.midTurn()

	s.players = removePlayers(s.players, id)
	s.roundWinners = removePlayers(s.roundWinners, id)
	s.writing = removePlayers(s.writing, id)
	delete(s.typingGens, id)
	if inGame {
		if i := slices.Index(s.drawOrder, p); i >= 0 {
			s.drawOrder = slices.Delete(s.drawOrder, i, i+1)
			if i < s.drawerIdx {
				s.drawerIdx--
			}
		}
	}
	s.log.Info("player left", zap.String("username", p.Username))

	if len(s.players) == 0 {
		s.stopTimer()
		return
	}
	if wasOwner {
		s.owner = s.players[0]
	}

	msg := s.event(protocol.EventPlayerLeft)
	msg.Username = p.Username
	s.broadcast(msg)

	if inGame && len(s.players) == 1 {
		s.endGame()
		return
	}
	if wasDrawer {
		s.stopTimer()
		s.rotateFrom(s.drawerIdx)
		return
	}
	// Fewer guessers may mean everyone left has already found the word.
	if s.state == StateDrawing && len(s.roundWinners) >= len(s.players)-1 {
		s.endTurn()
	}
}

// StartGame launches (or relaunches) the game. Owner-only, from waiting or
// ended. Scores, rounds and the draw order are reset.
func (s *Session) StartGame(by *Player) error {
	if by.ID != s.owner.ID {
		return ErrNotOwner
	}
	if s.state != StateWaiting && s.state != StateEnded {
		return ErrWrongState
	}
	s.stopTimer()
	s.round = 0
	for _, p := range s.players {
		p.Score = 0
	}
	s.drawOrder = s.shuffledOrder()
	s.drawerIdx = 0
	s.log.Info("game started", zap.Int("players", len(s.players)))
	s.startTurn(protocol.EventGameUpdated)
	return nil
}

// ChooseWord fixes the secret word. Drawer-only, during chooseWord, and the
// word must be one of the offered candidates.
func (s *Session) ChooseWord(by *Player, word string) error {
	if s.state != StateChooseWord {
		return ErrWrongState
	}
	if s.Drawer() == nil || by.ID != s.Drawer().ID {
		return ErrNotDrawer
	}
	if !slices.Contains(s.choices, word) {
		return ErrInvalidWordChoice
	}
	s.beginDrawing(word)
	return nil
}

// Guess routes one line of text from a player: exact match scores, a near
// miss earns a private hint, anything else is chat with state-scoped
// recipients so winners never leak the word to active guessers.
func (s *Session) Guess(p *Player, text string) {
	eligible := s.state == StateDrawing && s.time > 0 && !s.isDrawer(p) && !s.isWinner(p)

	if eligible && Normalize(text) == Normalize(s.word) {
		award := 100.0 / float64(len(s.roundWinners)+1)
		p.Score += award
		s.roundWinners = append(s.roundWinners, p)
		s.log.Info("word found", zap.String("username", p.Username), zap.Float64("award", award))
		p.Conn.Send(protocol.ServerMessage{
			Sender: protocol.SenderServer,
			Type:   protocol.EventGuess,
			Value:  "You found the word",
			Score:  protocol.Float(award),
		})
		found := s.event(protocol.EventWordFound)
		found.Username = p.Username
		s.broadcast(found)
		if len(s.roundWinners) >= len(s.players)-1 {
			s.endTurn()
		}
		return
	}

	if eligible && IsWordClose(s.word, text) {
		p.Conn.Send(protocol.ServerMessage{
			Sender: protocol.SenderServer,
			Type:   protocol.EventGuess,
			Value:  "You are getting close to the word",
		})
		// The drawer and past winners still get to watch the attempts.
		s.sendPrivileged(protocol.ServerMessage{
			Sender:   protocol.SenderUser,
			Type:     protocol.EventMessage,
			Username: p.Username,
			Value:    text,
		})
		return
	}

	chat := protocol.ServerMessage{
		Sender:   protocol.SenderUser,
		Type:     protocol.EventMessage,
		Username: p.Username,
		Value:    text,
		Users:    usernames(s.writing),
	}
	if s.state == StateDrawing && (s.isDrawer(p) || s.isWinner(p)) {
		s.sendPrivileged(chat)
		return
	}
	s.broadcast(chat)
}

// HandleCanvas stores the drawer's latest snapshot verbatim and relays it.
// The blob is opaque; nothing here inspects it.
func (s *Session) HandleCanvas(p *Player, image string) error {
	if s.midTurn() && !s.isDrawer(p) {
		return ErrNotDrawer
	}
	s.canvas = image
	s.broadcast(s.event(protocol.EventCanvas))
	return nil
}

// Typing flags the player as composing, with a per-player expiry independent
// of the game timer. Every change broadcasts the current set.
func (s *Session) Typing(p *Player, typing bool) {
	if typing {
		if _, pending := s.typingGens[p.ID]; !pending {
			s.writing = append(s.writing, p)
		}
		s.typingGens[p.ID]++
		gen := s.typingGens[p.ID]
		s.sched.After(s.settings.TypingExpiry, func() {
			if s.typingGens[p.ID] != gen {
				return
			}
			s.writing = removePlayers(s.writing, p.ID)
			delete(s.typingGens, p.ID)
			s.broadcastTyping(p)
		})
	} else if _, pending := s.typingGens[p.ID]; pending {
		delete(s.typingGens, p.ID)
		s.writing = removePlayers(s.writing, p.ID)
	}
	s.broadcastTyping(p)
}

// Snapshot is the state-shaped game info sent to a single requester.
func (s *Session) Snapshot() *protocol.GameInfo { return s.gameInfo() }

// --- state machine internals ---

func (s *Session) midTurn() bool {
	return s.state == StateChooseWord || s.state == StateDrawing || s.state == StateRoundTimeout
}

func (s *Session) isDrawer(p *Player) bool { return s.Drawer() == p }

func (s *Session) isWinner(p *Player) bool { return slices.Contains(s.roundWinners, p) }

// startTurn enters chooseWord for the current drawer: fresh candidates, the
// choice timer armed, startDrawing to the drawer and announce to the rest.
func (s *Session) startTurn(announce string) {
	s.state = StateChooseWord
	s.word, s.secret, s.masked = "", nil, nil
	s.roundWinners = nil
	s.time = s.settings.RoundDuration
	s.choices = s.words.Pick(wordChoiceCount)

	drawer := s.Drawer()
	info := s.gameInfo()
	for _, p := range s.players {
		if p == drawer {
			p.Conn.Send(protocol.ServerMessage{
				Sender:   protocol.SenderServer,
				Type:     protocol.EventStartDrawing,
				GameInfo: info,
				Words:    s.choices,
			})
			continue
		}
		p.Conn.Send(protocol.ServerMessage{Sender: protocol.SenderServer, Type: announce, GameInfo: info})
	}
	s.armTimer(time.Duration(s.settings.ChoiceSeconds)*time.Second, s.autoChooseWord)
}

// autoChooseWord fires when the choice timer lapses: a random candidate is
// locked in on the drawer's behalf.
func (s *Session) autoChooseWord() {
	if s.state != StateChooseWord || len(s.choices) == 0 {
		return
	}
	s.beginDrawing(s.choices[rand.IntN(len(s.choices))])
}

func (s *Session) beginDrawing(word string) {
	s.word = word
	s.secret = []rune(word)
	s.masked = maskWord(word)
	s.state = StateDrawing
	s.time = s.settings.RoundDuration
	s.roundWinners = nil

	drawer := s.Drawer()
	info := s.gameInfo()
	for _, p := range s.players {
		msg := protocol.ServerMessage{
			Sender:   protocol.SenderServer,
			Type:     protocol.EventWordChosen,
			GameInfo: info,
			Word:     string(s.masked),
		}
		if p == drawer {
			msg.Word = s.word
		}
		p.Conn.Send(msg)
	}
	s.armTimer(time.Second, s.tick)
}

// tick runs once per second while drawing. Fixed countdown marks each reveal
// one extra letter; zero ends the turn.
func (s *Session) tick() {
	if s.state != StateDrawing {
		return
	}
	s.time--
	if s.time > 0 && slices.Contains(s.settings.RevealMarks, s.time) {
		revealOne(s.masked, s.secret)
	}
	s.broadcastTimer()
	if s.time <= 0 {
		s.endTurn()
		return
	}
	s.armTimer(time.Second, s.tick)
}

// broadcastTimer sends the countdown with per-recipient word visibility:
// the drawer and the round winners see the secret, everyone else the mask.
func (s *Session) broadcastTimer() {
	info := s.gameInfo()
	for _, p := range s.players {
		word := string(s.masked)
		if s.isDrawer(p) || s.isWinner(p) {
			word = s.word
		}
		p.Conn.Send(protocol.ServerMessage{
			Sender:   protocol.SenderServer,
			Type:     protocol.EventTimerUpdate,
			GameInfo: info,
			Word:     word,
		})
	}
}

// endTurn reveals the word to everyone and opens the timeout window.
func (s *Session) endTurn() {
	s.stopTimer()
	s.state = StateRoundTimeout
	msg := s.event(protocol.EventRevealWord)
	msg.Word = s.word
	s.broadcast(msg)
	s.armTimer(time.Duration(s.settings.TimeoutWindow)*time.Second, s.advanceTurn)
}

func (s *Session) advanceTurn() {
	if s.state != StateRoundTimeout {
		return
	}
	s.rotateFrom(s.drawerIdx + 1)
}

// rotateFrom hands the turn to the drawer at idx, or rolls the round over
// when the order is exhausted.
func (s *Session) rotateFrom(idx int) {
	if idx >= len(s.drawOrder) {
		s.nextRound()
		return
	}
	s.drawerIdx = idx
	s.startTurn(protocol.EventNextDrawer)
}

func (s *Session) nextRound() {
	s.round++
	if s.round >= s.settings.MaxRound {
		s.endGame()
		return
	}
	s.drawOrder = s.shuffledOrder()
	s.drawerIdx = 0
	s.startTurn(protocol.EventNextDrawer)
}

func (s *Session) endGame() {
	s.stopTimer()
	s.state = StateEnded
	s.word, s.secret, s.masked, s.choices = "", nil, nil, nil
	s.log.Info("game ended")
	s.broadcast(s.event(protocol.EventGameEnded))
}

// shuffledOrder permutes the roster by repeatedly removing a uniformly
// random remaining player.
func (s *Session) shuffledOrder() []*Player {
	pool := slices.Clone(s.players)
	order := make([]*Player, 0, len(pool))
	for len(pool) > 0 {
		i := rand.IntN(len(pool))
		order = append(order, pool[i])
		pool = slices.Delete(pool, i, i+1)
	}
	return order
}

// --- timers ---

func (s *Session) armTimer(d time.Duration, fn func()) {
	s.timerGen++
	gen := s.timerGen
	s.sched.After(d, func() {
		if gen != s.timerGen {
			return
		}
		fn()
	})
}

func (s *Session) stopTimer() { s.timerGen++ }

// --- outbound composition ---

// gameInfo shapes the snapshot by lifecycle state. The secret word is never
// part of it; word visibility is handled per-event.
func (s *Session) gameInfo() *protocol.GameInfo {
	info := &protocol.GameInfo{
		ID:      s.ID,
		Owner:   s.owner.Username,
		Players: usernames(s.players),
		State:   string(s.state),
	}
	switch s.state {
	case StateWaiting:
		info.Image = s.canvas
	case StateChooseWord, StateDrawing, StateRoundTimeout:
		info.DrawOrder = usernames(s.drawOrder)
		if d := s.Drawer(); d != nil {
			info.Drawer = d.Username
		}
		info.Round = protocol.Int(s.round)
		info.MaxRound = protocol.Int(s.settings.MaxRound)
		info.RoundDur = protocol.Int(s.settings.RoundDuration)
		info.Time = protocol.Int(s.time)
		info.RoundWinners = usernames(s.roundWinners)
		info.Image = s.canvas
	case StateEnded:
		if w := s.Winner(); w != nil {
			info.Winner = w.Username
		}
	}
	return info
}

func (s *Session) event(kind string) protocol.ServerMessage {
	return protocol.ServerMessage{Sender: protocol.SenderServer, Type: kind, GameInfo: s.gameInfo()}
}

func (s *Session) broadcast(msg protocol.ServerMessage) {
	for _, p := range s.players {
		p.Conn.Send(msg)
	}
}

// sendPrivileged reaches only the drawer and the current round winners.
func (s *Session) sendPrivileged(msg protocol.ServerMessage) {
	for _, p := range s.players {
		if s.isDrawer(p) || s.isWinner(p) {
			p.Conn.Send(msg)
		}
	}
}

func (s *Session) broadcastTyping(p *Player) {
	s.broadcast(protocol.ServerMessage{
		Sender:   protocol.SenderUser,
		Type:     protocol.EventWritting,
		Username: p.Username,
		Users:    usernames(s.writing),
	})
}

func usernames(players []*Player) []string {
	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, p.Username)
	}
	return names
}

func removePlayers(list []*Player, id string) []*Player {
	out := list[:0]
	for _, p := range list {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}
