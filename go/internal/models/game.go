package models

// GameStatus defines the lifecycle of a quiz round.
type GameStatus string

const (
	GameStatusPlaying GameStatus = "PLAYING"
	GameStatusEnded   GameStatus = "ENDED"
)

// GamePhase defines the per-question phase.
type GamePhase string

const (
	GamePhaseGuess  GamePhase = "GUESS"
	GamePhaseReveal GamePhase = "REVEAL"
)

// Choice is one selectable answer, tagged with the absolute index of the
// track it belongs to so answers survive reshuffles.
type Choice struct {
	Title      string `json:"title"`
	TrackIndex int    `json:"track_index"`
}

// GameState is the authoritative per-question snapshot. It is replaced
// wholesale on every game push and never extrapolated locally beyond
// display countdowns.
type GameState struct {
	Status           GameStatus `json:"status"`
	Phase            GamePhase  `json:"phase"`
	StartedAt        int64      `json:"started_at"` // epoch ms, stable for the whole game
	GuessDurationMs  int64      `json:"guess_duration_ms"`
	RevealEndsAt     int64      `json:"reveal_ends_at"` // epoch ms
	RevealDurationMs int64      `json:"reveal_duration_ms"`
	CurrentIndex     int        `json:"current_index"`
	TrackOrder       []int      `json:"track_order"`
	TrackCursor      int        `json:"track_cursor"`
	Choices          []Choice   `json:"choices"`
	LockedClientIDs  []string   `json:"locked_client_ids"`
	LockedOrder      []string   `json:"locked_order"`
	AnswerTitle      string     `json:"answer_title,omitempty"` // populated only during reveal
}

// QuestionKey identifies one question instance for answer deduplication.
type QuestionKey struct {
	StartedAt int64
	Index     int
}

// Key returns the dedup key for the current question.
func (g *GameState) Key() QuestionKey {
	return QuestionKey{StartedAt: g.StartedAt, Index: g.CurrentIndex}
}

// GuessDeadline returns the epoch ms at which the guess phase ends. Reveal
// always follows its guess deadline, so the deadline is derived from the
// pushed reveal window rather than accumulated locally.
func (g *GameState) GuessDeadline() int64 {
	if g.RevealEndsAt > 0 {
		return g.RevealEndsAt - g.RevealDurationMs
	}
	return g.StartedAt + g.GuessDurationMs
}

// Locked reports whether the given client already locked an answer in.
func (g *GameState) Locked(clientID string) bool {
	for _, id := range g.LockedClientIDs {
		if id == clientID {
			return true
		}
	}
	return false
}
