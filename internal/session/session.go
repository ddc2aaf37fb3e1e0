// Package session holds the per-user conversation state: the active/inactive
// gate that decides whether the bot answers at all, and the bounded
// conversational memory fed back into the grounding prompt. Both live for the
// process lifetime only.
package session

import (
	"strings"
	"sync"
)

const (
	SpeakerUser = "Usuario"
	SpeakerBot  = "Bot"
)

type Turn struct {
	Speaker string
	Text    string
}

// Memory is a per-user FIFO log of conversation turns, capped at limit.
type Memory struct {
	mu    sync.Mutex
	limit int
	turns map[string][]Turn
}

func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = 10
	}
	return &Memory{
		limit: limit,
		turns: make(map[string][]Turn),
	}
}

// Append records a turn and evicts the oldest turns beyond the limit.
func (m *Memory) Append(user, speaker, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := append(m.turns[user], Turn{Speaker: speaker, Text: text})
	if len(turns) > m.limit {
		turns = turns[len(turns)-m.limit:]
	}
	m.turns[user] = turns
}

// History returns the user's turns oldest-first. The slice is a copy.
func (m *Memory) History(user string) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := m.turns[user]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

func (m *Memory) Clear(user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, user)
}

// Conversations reports how many users currently have recorded turns.
func (m *Memory) Conversations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// Format renders the history as "Usuario: ..." / "Bot: ..." lines for the
// grounding prompt. Returns "" when the user has no history.
func (m *Memory) Format(user string) string {
	turns := m.History(user)
	if len(turns) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(t.Speaker)
		sb.WriteString(": ")
		sb.WriteString(t.Text)
	}
	return sb.String()
}

// Controller is the per-user session gate. A user with no active session
// gets no reply and no memory writes; only the start command opens the gate.
type Controller struct {
	mu     sync.Mutex
	active map[string]bool
	mem    *Memory
}

func NewController(mem *Memory) *Controller {
	return &Controller{
		active: make(map[string]bool),
		mem:    mem,
	}
}

func (c *Controller) IsActive(user string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[user]
}

// Start opens a session. Starting an already-active session is harmless.
func (c *Controller) Start(user string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[user] = true
}

// End closes a session and wipes the user's conversation memory. Ending a
// session that was never started is a no-op.
func (c *Controller) End(user string) {
	c.mu.Lock()
	delete(c.active, user)
	c.mu.Unlock()

	c.mem.Clear(user)
}

func (c *Controller) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}
