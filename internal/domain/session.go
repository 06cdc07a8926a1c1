// Package domain contains core domain types for the triage service.
package domain

import (
	"slices"
	"time"
)

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// Valid reports whether s is a known speaker.
func (s Speaker) Valid() bool {
	return s == SpeakerUser || s == SpeakerBot
}

// Turn is one entry in a session's rolling history.
type Turn struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Session holds the conversational state for one chat widget.
type Session struct {
	ID           string    `json:"id"`
	Page         string    `json:"page"`
	History      []Turn    `json:"history"`
	Segment      string    `json:"segment,omitempty"`
	LastIntent   Intent    `json:"last_intent,omitempty"`
	Stage        string    `json:"stage,omitempty"`
	ClarifyLoops int       `json:"clarify_loops,omitempty"`
	LabsRun      []LabTool `json:"labs_run,omitempty"`
	LastAction   Action    `json:"last_action,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewSession returns an empty session created at now.
func NewSession(id, page string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Page:      page,
		History:   []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers never share history slices with a store.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.History = slices.Clone(s.History)
	if c.History == nil {
		c.History = []Turn{}
	}
	c.LabsRun = slices.Clone(s.LabsRun)
	return &c
}

// AppendTurn adds a turn and drops the oldest turns beyond maxTurns.
func (s *Session) AppendTurn(t Turn, maxTurns int) {
	s.History = append(s.History, t)
	if maxTurns > 0 && len(s.History) > maxTurns {
		s.History = slices.Clone(s.History[len(s.History)-maxTurns:])
	}
}

// Apply merges the non-nil fields of m into the session.
func (s *Session) Apply(m MetaUpdate) {
	if m.Segment != nil {
		s.Segment = *m.Segment
	}
	if m.LastIntent != nil {
		s.LastIntent = *m.LastIntent
	}
	if m.Stage != nil {
		s.Stage = *m.Stage
	}
	if m.ClarifyLoops != nil {
		s.ClarifyLoops = *m.ClarifyLoops
	}
	if m.LastAction != nil {
		s.LastAction = *m.LastAction
	}
	if m.LabRun != "" && !s.HasRun(m.LabRun) {
		s.LabsRun = append(s.LabsRun, m.LabRun)
	}
}

// HasRun reports whether the lab tool's result was already seen in this session.
func (s *Session) HasRun(tool LabTool) bool {
	return slices.Contains(s.LabsRun, tool)
}

// HasTurns reports whether any turn has been recorded.
func (s *Session) HasTurns() bool {
	return len(s.History) > 0
}

// LastBotTurn returns the most recent bot turn, if any.
func (s *Session) LastBotTurn() (Turn, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Speaker == SpeakerBot {
			return s.History[i], true
		}
	}
	return Turn{}, false
}

// MetaUpdate carries optional changes to session metadata. Nil fields are left as is.
type MetaUpdate struct {
	Segment      *string
	LastIntent   *Intent
	Stage        *string
	ClarifyLoops *int
	LastAction   *Action
	LabRun       LabTool
}

// TurnCommit is the unit a chat turn writes: its turns and its metadata change.
// Stores apply a commit entirely or not at all.
type TurnCommit struct {
	Turns []Turn
	Meta  MetaUpdate
}

// Ptr returns a pointer to v. Handy for building MetaUpdate literals.
func Ptr[T any](v T) *T {
	return &v
}
