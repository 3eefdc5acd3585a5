package dialog

import "time"

// Turn is one user utterance and the reply produced for it.
type Turn struct {
	Time          time.Time `json:"time"`
	UserText      string    `json:"userText"`
	AssistantText string    `json:"assistantText,omitempty"`
	Answered      bool      `json:"answered"`
}

// Session captures one guest conversation.
type Session struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"createdAt"`
	History   []Turn        `json:"history"`
	Data      CollectedData `json:"collectedData"`
	Stage     Stage         `json:"stage"`
	Stack     ContextStack  `json:"-"`
}

// NewSession returns a session at the welcome stage with nothing collected.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		History:   make([]Turn, 0, 8),
		Stage:     StageWelcome,
	}
}

// AppendTurn records a user utterance and returns its index.
func (s *Session) AppendTurn(at time.Time, userText string) int {
	s.History = append(s.History, Turn{Time: at, UserText: userText})
	return len(s.History) - 1
}

// Answer fills the assistant reply of the turn at idx.
func (s *Session) Answer(idx int, text string) bool {
	if idx < 0 || idx >= len(s.History) {
		return false
	}
	s.History[idx].AssistantText = text
	s.History[idx].Answered = true
	return true
}

// RecentTurns returns up to n of the latest turns.
func (s *Session) RecentTurns(n int) []Turn {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	start := len(s.History) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(s.History)-start)
	copy(out, s.History[start:])
	return out
}

// Save pushes the current stage and data onto the context stack.
func (s *Session) Save() {
	s.Stack.Push(Frame{Stage: s.Stage, Data: s.Data})
}

// Restore pops the latest frame into the session. It returns false and
// leaves the session untouched when nothing was saved.
func (s *Session) Restore() bool {
	frame, ok := s.Stack.Pop()
	if !ok {
		return false
	}
	s.Stage = frame.Stage
	s.Data = frame.Data
	return true
}

// Reset starts the conversation over: welcome stage, no data, no frames.
// History is kept.
func (s *Session) Reset() {
	s.Stage = StageWelcome
	s.Data.Clear()
	s.Stack.Clear()
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.History = make([]Turn, len(s.History))
	copy(c.History, s.History)
	c.Stack = s.Stack.clone()
	return &c
}
