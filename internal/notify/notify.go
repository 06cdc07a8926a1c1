// Package notify delivers sales and escalation notifications to external
// sinks without blocking the request that triggered them.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ameotech/triage/internal/domain"
)

// Kind classifies a notification.
type Kind string

const (
	KindEscalation Kind = "escalation"
	KindSales      Kind = "sales"
)

// Notification is one message for the sales team.
type Notification struct {
	Kind       Kind
	Text       string
	Fields     map[string]any
	Escalation *domain.EscalationEvent
	At         time.Time
}

// Sink receives notifications.
type Sink interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// FromEscalation builds the notification for a handoff.
func FromEscalation(ev *domain.EscalationEvent) Notification {
	var b strings.Builder
	fmt.Fprintf(&b, "Chat escalation (%s)", ev.Reason)
	if ev.SessionID != "" {
		fmt.Fprintf(&b, " session=%s", ev.SessionID)
	}
	if ev.Page != "" {
		fmt.Fprintf(&b, " page=%s", ev.Page)
	}
	if ev.Intent != "" {
		fmt.Fprintf(&b, " intent=%s", ev.Intent)
	}
	if ev.Message != "" {
		fmt.Fprintf(&b, ": %q", ev.Message)
	}
	return Notification{Kind: KindEscalation, Text: b.String(), Escalation: ev, At: ev.CreatedAt}
}

// FromFields builds a sales notification from an arbitrary JSON object. A
// "text" field is used verbatim; otherwise fields are listed in key order.
func FromFields(fields map[string]any) Notification {
	n := Notification{Kind: KindSales, Fields: fields, At: time.Now()}
	if text, ok := fields["text"].(string); ok && strings.TrimSpace(text) != "" {
		n.Text = text
		return n
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, fields[k]))
	}
	n.Text = "Sales notification: " + strings.Join(parts, ", ")
	return n
}
