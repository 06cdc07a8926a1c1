package domain

import (
	"encoding/json"
	"time"
)

// FeedbackEvent records a widget interaction such as an action click.
type FeedbackEvent struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	VisitorID string          `json:"visitor_id,omitempty"`
	Event     string          `json:"event"`
	Action    Action          `json:"action,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// EscalationEvent is emitted when a conversation is handed to a human.
type EscalationEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	VisitorID string    `json:"visitor_id,omitempty"`
	Page      string    `json:"page,omitempty"`
	Intent    Intent    `json:"intent,omitempty"`
	Reason    string    `json:"reason"`
	Message   string    `json:"message,omitempty"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
