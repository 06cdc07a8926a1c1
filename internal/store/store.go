// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ameotech/triage/internal/domain"
)

// Repository persists analytics events and public site content.
type Repository interface {
	// RecordFeedback stores a widget feedback event.
	RecordFeedback(ctx context.Context, ev *domain.FeedbackEvent) error

	// RecordEscalation stores a human handoff event.
	RecordEscalation(ctx context.Context, ev *domain.EscalationEvent) error

	// ListEscalations returns the most recent escalations, newest first.
	ListEscalations(ctx context.Context, limit int) ([]*domain.EscalationEvent, error)

	// ListContent returns items of a kind ordered by publication date, newest
	// first. When publishedOnly is set drafts are excluded.
	ListContent(ctx context.Context, kind domain.ContentKind, publishedOnly bool) ([]*domain.ContentItem, error)

	// GetContent retrieves one item. It returns nil, nil when the item does not exist.
	GetContent(ctx context.Context, kind domain.ContentKind, slug string) (*domain.ContentItem, error)

	// UpsertContent creates or replaces an item keyed by kind and slug.
	UpsertContent(ctx context.Context, item *domain.ContentItem) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
