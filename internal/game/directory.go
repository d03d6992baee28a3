package game

import (
	"math/rand/v2"

	"go.uber.org/zap"
)

// Directory maps game ids to live sessions. Like every game type it is only
// ever touched from the dispatch loop.
type Directory struct {
	sessions map[string]*Session

	settings Settings
	words    WordSource
	sched    Scheduler
	log      *zap.Logger
}

func NewDirectory(settings Settings, words WordSource, sched Scheduler, log *zap.Logger) *Directory {
	return &Directory{
		sessions: make(map[string]*Session),
		settings: settings,
		words:    words,
		sched:    sched,
		log:      log,
	}
}

// Create builds a session owned by owner under a fresh random id, retried
// until it does not collide with a live session.
func (d *Directory) Create(owner *Player) *Session {
	id := randomID()
	for {
		if _, taken := d.sessions[id]; !taken {
			break
		}
		id = randomID()
	}
	s := NewSession(id, owner, d.settings, d.words, d.sched, d.log)
	d.sessions[id] = s
	d.log.Info("session created", zap.String("game", id), zap.String("owner", owner.Username))
	return s
}

func (d *Directory) Find(id string) (*Session, bool) {
	s, ok := d.sessions[id]
	return s, ok
}

// RemoveIfEmpty reaps a session once its roster has emptied. Call it after
// every roster mutation.
func (d *Directory) RemoveIfEmpty(s *Session) bool {
	if !s.Empty() {
		return false
	}
	delete(d.sessions, s.ID)
	d.log.Info("session removed", zap.String("game", s.ID))
	return true
}

func (d *Directory) Sessions() []*Session {
	out := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		out = append(out, s)
	}
	return out
}

func (d *Directory) Len() int { return len(d.sessions) }

// randomID mints a short lowercase base-36 game id.
func randomID() string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 8)
	for i := range b {
		b[i] = charset[rand.IntN(len(charset))]
	}
	return string(b)
}
