package domain

import (
	"encoding/json"
	"fmt"
)

// Action is what the client should do with a reply.
type Action string

const (
	ActionShowMessage   Action = "show_message"
	ActionShowOptions   Action = "show_options"
	ActionOpenLabTool   Action = "open_lab_tool"
	ActionEscalateHuman Action = "escalate_human"
)

// Payload is the action-specific data of an envelope. The concrete type
// decides the action: MessagePayload, OptionsPayload, LabToolPayload or
// EscalationPayload.
type Payload interface {
	Action() Action
}

// MessagePayload carries nothing; the bot reply holds the content.
type MessagePayload struct{}

func (MessagePayload) Action() Action { return ActionShowMessage }

// Option is one clickable choice in a show_options menu.
type Option struct {
	Intent Intent `json:"intent"`
	Label  string `json:"label"`
}

// OptionsPayload lists clarifying choices.
type OptionsPayload struct {
	Options []Option `json:"options"`
}

func (OptionsPayload) Action() Action { return ActionShowOptions }

// LabToolPayload asks the client to open a lab tool.
type LabToolPayload struct {
	LabTool     LabTool `json:"lab_tool"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	CTALabel    string  `json:"ctaLabel,omitempty"`
}

func (LabToolPayload) Action() Action { return ActionOpenLabTool }

// EscalationPayload hands the visitor to a human.
type EscalationPayload struct {
	Link        string `json:"link,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	CTALabel    string `json:"ctaLabel,omitempty"`
}

func (EscalationPayload) Action() Action { return ActionEscalateHuman }

// DecodePayload decodes raw into the payload variant for action.
func DecodePayload(action Action, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	switch action {
	case ActionShowMessage:
		return MessagePayload{}, nil
	case ActionShowOptions:
		var p OptionsPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode options payload: %w", err)
		}
		return p, nil
	case ActionOpenLabTool:
		var p LabToolPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode lab tool payload: %w", err)
		}
		return p, nil
	case ActionEscalateHuman:
		var p EscalationPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode escalation payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

// EnvelopeMeta is auxiliary routing information for the widget.
type EnvelopeMeta struct {
	Segment         string `json:"segment,omitempty"`
	SupportsHandoff bool   `json:"supports_handoff,omitempty"`
}

// Envelope is the reply to one chat turn.
type Envelope struct {
	SessionID        string       `json:"session_id"`
	Intent           Intent       `json:"intent"`
	IntentConfidence float64      `json:"intent_confidence"`
	Action           Action       `json:"action"`
	Payload          Payload      `json:"action_payload"`
	BotReply         string       `json:"bot_reply"`
	Meta             EnvelopeMeta `json:"meta"`
}

// NewEnvelope builds an envelope whose action is taken from the payload.
func NewEnvelope(sessionID string, ci ClassifiedIntent, reply string, p Payload, meta EnvelopeMeta) Envelope {
	if p == nil {
		p = MessagePayload{}
	}
	return Envelope{
		SessionID:        sessionID,
		Intent:           ci.Intent,
		IntentConfidence: ci.Confidence,
		Action:           p.Action(),
		Payload:          p,
		BotReply:         reply,
		Meta:             meta,
	}
}

// UnmarshalJSON restores the payload variant from the action tag.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	type plain Envelope
	var aux struct {
		plain
		Payload json.RawMessage `json:"action_payload"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p, err := DecodePayload(aux.Action, aux.Payload)
	if err != nil {
		return err
	}
	*e = Envelope(aux.plain)
	e.Payload = p
	return nil
}

// Suggestion is a follow-on action proposed after a lab result.
type Suggestion struct {
	Label   string  `json:"label"`
	Action  Action  `json:"action"`
	Payload Payload `json:"payload"`
}

// NewSuggestion builds a suggestion whose action is taken from the payload.
func NewSuggestion(label string, p Payload) Suggestion {
	return Suggestion{Label: label, Action: p.Action(), Payload: p}
}

// UnmarshalJSON restores the payload variant from the action tag.
func (s *Suggestion) UnmarshalJSON(data []byte) error {
	var aux struct {
		Label   string          `json:"label"`
		Action  Action          `json:"action"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p, err := DecodePayload(aux.Action, aux.Payload)
	if err != nil {
		return err
	}
	*s = Suggestion{Label: aux.Label, Action: aux.Action, Payload: p}
	return nil
}
