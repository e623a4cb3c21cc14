// Package session stores per-conversation state in Redis. One session exists
// per (identity, instance) pair, where identity is the end user's WhatsApp
// address and instance identifies the channel tenant the message came through.
package session

import (
	"fmt"
	"strconv"
	"time"
)

// State is the macro-phase of a dialogue.
type State string

const (
	// StateInitial marks a session that has never produced a welcome message.
	StateInitial State = "inicio"
	// StateIdentifyingService means the welcome was sent and the engine is
	// waiting for the user to say what they need.
	StateIdentifyingService State = "identificando_servico"
)

// Turn is a single entry of the conversation transcript.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// HistoryLimit bounds the transcript kept in the session. Oldest turns are
// dropped first so the LLM context stays small.
const HistoryLimit = 20

// Session is the durable conversation record.
type Session struct {
	Identity  string         `json:"identity"`
	Instance  string         `json:"instance"`
	State     State          `json:"state"`
	Data      map[string]any `json:"data"`
	History   []Turn         `json:"history"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// New returns a fresh session in the initial state.
func New(identity, instance string) *Session {
	now := time.Now().UTC()
	return &Session{
		Identity:  identity,
		Instance:  instance,
		State:     StateInitial,
		Data:      map[string]any{},
		History:   []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Key builds the Redis key for a session.
func Key(identity, instance string) string {
	return fmt.Sprintf("session:%s:%s", identity, instance)
}

// AppendTurn adds a transcript entry, enforcing HistoryLimit FIFO eviction.
func (s *Session) AppendTurn(role, content string) {
	s.History = append(s.History, Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if len(s.History) > HistoryLimit {
		s.History = s.History[len(s.History)-HistoryLimit:]
	}
}

// DataString reads a session data value as a string. Numeric values are
// rendered as their decimal form because JSON round-trips numbers as float64.
func (s *Session) DataString(key string) string {
	if s.Data == nil {
		return ""
	}
	switch v := s.Data[key].(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// DataBool reads a session data value as a bool.
func (s *Session) DataBool(key string) bool {
	if s.Data == nil {
		return false
	}
	b, _ := s.Data[key].(bool)
	return b
}

// Authenticated reports whether the login handler has stored credentials.
func (s *Session) Authenticated() bool {
	return s.DataBool("autenticado") && s.DataString("token") != ""
}
