package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/shared"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	eventMu sync.Mutex // serializes event inserts to avoid SQLITE_BUSY under bursts
	now     func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS feedback_events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		visitor_id TEXT,
		event TEXT NOT NULL,
		action TEXT,
		payload_json TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_session ON feedback_events(session_id);

	CREATE TABLE IF NOT EXISTS escalations (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		visitor_id TEXT,
		page TEXT,
		intent TEXT,
		reason TEXT NOT NULL,
		message TEXT,
		link TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_escalations_created ON escalations(created_at);

	CREATE TABLE IF NOT EXISTS content_items (
		kind TEXT NOT NULL,
		slug TEXT NOT NULL,
		title TEXT NOT NULL,
		summary TEXT,
		body TEXT,
		tags_json TEXT,
		status TEXT NOT NULL,
		published_at INTEGER,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (kind, slug)
	);
	CREATE INDEX IF NOT EXISTS idx_content_listing ON content_items(kind, status, published_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// RecordFeedback stores a widget feedback event. Missing ids and timestamps
// are filled in.
func (s *SQLiteStore) RecordFeedback(ctx context.Context, ev *domain.FeedbackEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}

	var payload any
	if len(ev.Payload) > 0 && json.Valid(ev.Payload) {
		payload = string(ev.Payload)
	}

	query := `
		INSERT INTO feedback_events (id, session_id, visitor_id, event, action, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	return shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, "record_feedback", func(ctx context.Context) error {
		s.eventMu.Lock()
		defer s.eventMu.Unlock()

		_, err := s.db.ExecContext(ctx, query,
			ev.ID, ev.SessionID, nullString(ev.VisitorID), ev.Event,
			nullString(string(ev.Action)), payload, ev.CreatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert feedback event: %w", err)
		}
		return nil
	})
}

// RecordEscalation stores a human handoff event.
func (s *SQLiteStore) RecordEscalation(ctx context.Context, ev *domain.EscalationEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}

	query := `
		INSERT INTO escalations (id, session_id, visitor_id, page, intent, reason, message, link, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, "record_escalation", func(ctx context.Context) error {
		s.eventMu.Lock()
		defer s.eventMu.Unlock()

		_, err := s.db.ExecContext(ctx, query,
			ev.ID, nullString(ev.SessionID), nullString(ev.VisitorID), nullString(ev.Page),
			nullString(string(ev.Intent)), ev.Reason, nullString(ev.Message), nullString(ev.Link),
			ev.CreatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert escalation: %w", err)
		}
		return nil
	})
}

// ListEscalations returns the most recent escalations, newest first.
func (s *SQLiteStore) ListEscalations(ctx context.Context, limit int) ([]*domain.EscalationEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, session_id, visitor_id, page, intent, reason, message, link, created_at
		FROM escalations ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query escalations: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close escalation rows", "error", closeErr)
		}
	}()

	var out []*domain.EscalationEvent
	for rows.Next() {
		var ev domain.EscalationEvent
		var sessionID, visitorID, page, intent, message, link sql.NullString
		var createdAt int64
		if err := rows.Scan(&ev.ID, &sessionID, &visitorID, &page, &intent,
			&ev.Reason, &message, &link, &createdAt); err != nil {
			return nil, fmt.Errorf("scan escalation row: %w", err)
		}
		ev.SessionID = sessionID.String
		ev.VisitorID = visitorID.String
		ev.Page = page.String
		ev.Intent = domain.Intent(intent.String)
		ev.Message = message.String
		ev.Link = link.String
		ev.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escalations: %w", err)
	}
	return out, nil
}

const contentColumns = `kind, slug, title, summary, body, tags_json, status, published_at, updated_at`

// ListContent returns items of a kind, newest publication first.
func (s *SQLiteStore) ListContent(ctx context.Context, kind domain.ContentKind, publishedOnly bool) ([]*domain.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE kind = ?`
	args := []any{string(kind)}
	if publishedOnly {
		query += ` AND status = ?`
		args = append(args, string(domain.StatusPublished))
	}
	query += ` ORDER BY COALESCE(published_at, 0) DESC, slug ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close content rows", "error", closeErr)
		}
	}()

	items := []*domain.ContentItem{}
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content: %w", err)
	}
	return items, nil
}

// GetContent retrieves one item, or nil when it does not exist.
func (s *SQLiteStore) GetContent(ctx context.Context, kind domain.ContentKind, slug string) (*domain.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE kind = ? AND slug = ?`
	item, err := scanContent(s.db.QueryRowContext(ctx, query, string(kind), slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpsertContent creates or replaces an item.
func (s *SQLiteStore) UpsertContent(ctx context.Context, item *domain.ContentItem) error {
	if item.Kind != domain.ContentCaseStudy && item.Kind != domain.ContentJob {
		return fmt.Errorf("unknown content kind %q", item.Kind)
	}
	item.Slug = strings.TrimSpace(item.Slug)
	if item.Slug == "" || strings.TrimSpace(item.Title) == "" {
		return fmt.Errorf("content item needs a slug and a title")
	}
	if item.Status == "" {
		item.Status = domain.StatusDraft
	}
	item.UpdatedAt = s.now()

	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	var publishedAt any
	if item.PublishedAt != nil {
		publishedAt = item.PublishedAt.Unix()
	}

	query := `
	INSERT INTO content_items (` + contentColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(kind, slug) DO UPDATE SET
		title = excluded.title,
		summary = excluded.summary,
		body = excluded.body,
		tags_json = excluded.tags_json,
		status = excluded.status,
		published_at = excluded.published_at,
		updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, "upsert_content", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query,
			string(item.Kind), item.Slug, item.Title, item.Summary, item.Body,
			string(tags), string(item.Status), publishedAt, item.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert content: %w", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*domain.ContentItem, error) {
	var item domain.ContentItem
	var kind, status string
	var summary, body, tags sql.NullString
	var publishedAt sql.NullInt64
	var updatedAt int64

	err := row.Scan(&kind, &item.Slug, &item.Title, &summary, &body, &tags,
		&status, &publishedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan content row: %w", err)
	}

	item.Kind = domain.ContentKind(kind)
	item.Status = domain.ContentStatus(status)
	item.Summary = summary.String
	item.Body = body.String
	item.UpdatedAt = time.Unix(updatedAt, 0)
	if publishedAt.Valid {
		ts := time.Unix(publishedAt.Int64, 0)
		item.PublishedAt = &ts
	}
	if tags.Valid && tags.String != "" && tags.String != "null" {
		if err := json.Unmarshal([]byte(tags.String), &item.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s/%s: %w", kind, item.Slug, err)
		}
	}
	return &item, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
