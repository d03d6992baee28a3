package protocol

// Action kinds accepted from clients.
const (
	ActionConnect    = "connect"
	ActionMessage    = "message"
	ActionWritting   = "writting"
	ActionCreateGame = "createSketchGame"
	ActionJoinGame   = "joinSketchGame"
	ActionGetGame    = "getSketchGame"
	ActionLaunchGame = "launchSketchGame"
	ActionChooseWord = "chooseWord"
	ActionGuess      = "guess"
	ActionCanvas     = "canvas"
)

// Event kinds sent to clients.
const (
	EventLogin        = "login"
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventMessage      = "message"
	EventWritting     = "writting"
	EventGameCreated  = "gameCreated"
	EventGetGame      = "getSketchGame"
	EventPlayerJoined = "playerJoined"
	EventPlayerLeft   = "playerLeft"
	EventGameUpdated  = "gameUpdated"
	EventStartDrawing = "startDrawing"
	EventWordChosen   = "wordChosen"
	EventNextDrawer   = "nextDrawer"
	EventTimerUpdate  = "timerUpdate"
	EventRevealWord   = "revealWord"
	EventWordFound    = "wordFound"
	EventGuess        = "guess"
	EventCanvas       = "canvas"
	EventGameEnded    = "gameEnded"
)

const (
	SenderServer = "server"
	SenderUser   = "user"

	// StateNotFound is not a session state; it is the reply shape for a
	// getSketchGame on an unknown id, which the client reads as "leave".
	StateNotFound = "notFound"
)

// ClientMessage is the single inbound envelope. Which fields matter depends
// on Type; unknown fields are ignored.
type ClientMessage struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Value    string `json:"value,omitempty"`
	Game     string `json:"game,omitempty"`
	Image    string `json:"image,omitempty"`

	// IsWritting is a tri-state: absent means "typing ping" (treated as true).
	IsWritting *bool `json:"isWritting,omitempty"`
}

// Typing reports the effective typing flag of a writting action.
func (m ClientMessage) Typing() bool {
	return m.IsWritting == nil || *m.IsWritting
}

// GameInfo is the state-shaped snapshot spread into most game events.
// Numeric fields are pointers so that a legitimate zero (round 0, time 0)
// still serializes while states that do not expose the field omit it.
type GameInfo struct {
	ID           string   `json:"id"`
	Owner        string   `json:"owner"`
	Players      []string `json:"players"`
	State        string   `json:"state"`
	DrawOrder    []string `json:"drawOrder,omitempty"`
	Drawer       string   `json:"drawer,omitempty"`
	Round        *int     `json:"round,omitempty"`
	MaxRound     *int     `json:"maxRound,omitempty"`
	RoundDur     *int     `json:"roundDuration,omitempty"`
	Time         *int     `json:"time,omitempty"`
	RoundWinners []string `json:"roundWinners,omitempty"`
	Image        string   `json:"image,omitempty"`
	Winner       string   `json:"winner,omitempty"`
}

// ServerMessage is the single outbound envelope. GameInfo, when set, is
// flattened into the object the way the original protocol spreads it.
type ServerMessage struct {
	Sender string `json:"sender"`
	Type   string `json:"type"`
	*GameInfo

	Username string   `json:"username,omitempty"`
	Value    string   `json:"value,omitempty"`
	Users    []string `json:"users,omitempty"`
	Words    []string `json:"words,omitempty"`
	Word     string   `json:"word,omitempty"`
	GameID   string   `json:"gameId,omitempty"`
	Success  *bool    `json:"success,omitempty"`
	Score    *float64 `json:"score,omitempty"`
}

func Int(v int) *int           { return &v }
func Bool(v bool) *bool        { return &v }
func Float(v float64) *float64 { return &v }
