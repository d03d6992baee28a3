package game

// Sender is the live delivery handle a player borrows from the connection
// registry. The session never closes it and never outlives the registry.
type Sender interface {
	Send(v any)
}

// Player is a session's view of a participant: identity, score and a
// borrowed send handle. Identity is the connection id; display names are
// unique process-wide but the id is what membership is keyed on.
type Player struct {
	ID       string
	Username string
	Score    float64
	Conn     Sender
}

func NewPlayer(id, username string, conn Sender) *Player {
	return &Player{ID: id, Username: username, Conn: conn}
}
