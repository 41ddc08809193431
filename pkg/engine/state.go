package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-tonypi/pkg/inference"
)

// State is the dialogue state.
type State int

const (
	// Idle listens for the wake and goodbye phrases.
	Idle State = iota
	// Active runs dialogue turns.
	Active
)

// String returns a human-readable state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// Outcome classifies a finished turn.
type Outcome int

const (
	// OutcomeSuccess means the model answered and the answer was delivered.
	OutcomeSuccess Outcome = iota
	// OutcomeEmpty means nothing usable was heard and the user was re-prompted.
	OutcomeEmpty
	// OutcomeRecovered means the turn failed and the session was reset.
	OutcomeRecovered
	// OutcomeEnded means the user said goodbye and the dialogue closed.
	OutcomeEnded
)

// String returns a human-readable outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeRecovered:
		return "recovered"
	case OutcomeEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Session is one wake-to-idle dialogue.
type Session struct {
	ID      string
	Started time.Time

	// Turns counts completed model turns.
	Turns int

	// History is the message list sent to the model, starting with the
	// system prompt.
	History []inference.Message
}

func newSession(systemPrompt string) *Session {
	s := &Session{ID: uuid.NewString(), Started: time.Now()}
	s.reseed(systemPrompt)
	return s
}

// reseed drops the history and starts over from the system prompt.
func (s *Session) reseed(systemPrompt string) {
	s.History = []inference.Message{inference.NewSystemMessage(systemPrompt)}
}

// commit appends the messages of one turn together.
func (s *Session) commit(msgs ...inference.Message) {
	s.History = append(s.History, msgs...)
}

func (s *Session) snapshot() Session {
	c := *s
	c.History = append([]inference.Message(nil), s.History...)
	return c
}

// Turn describes one Active turn.
type Turn struct {
	SessionID string
	Number    int
	User      string

	// Reply is the assistant text recorded for the turn.
	Reply string

	// Tool and Result are set when the model called a tool.
	Tool   string
	Result string

	Outcome Outcome
	Err     error
	Elapsed time.Duration
}
