package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ameotech/triage/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "triage.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStorePing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestSQLiteStoreRecordFeedback(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	ev := &domain.FeedbackEvent{
		SessionID: "sess-1234",
		Event:     "action_clicked",
		Action:    domain.ActionOpenLabTool,
		Payload:   json.RawMessage(`{"lab_tool":"audit"}`),
	}
	if err := s.RecordFeedback(ctx, ev); err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	if ev.ID == "" || ev.CreatedAt.IsZero() {
		t.Fatal("RecordFeedback should fill id and created_at")
	}

	var count int
	var payload string
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), MAX(payload_json) FROM feedback_events WHERE session_id = ?`, "sess-1234")
	if err := row.Scan(&count, &payload); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 1 || payload != `{"lab_tool":"audit"}` {
		t.Fatalf("count=%d payload=%q", count, payload)
	}
}

func TestSQLiteStoreConcurrentFeedback(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.RecordFeedback(ctx, &domain.FeedbackEvent{SessionID: "burst-session", Event: "shown"}); err != nil {
				t.Errorf("RecordFeedback: %v", err)
			}
		}()
	}
	wg.Wait()

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback_events`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 20 {
		t.Fatalf("count = %d, want 20", count)
	}
}

func TestSQLiteStoreEscalations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	for i, reason := range []string{"request_human", "clarify_loops"} {
		ev := &domain.EscalationEvent{
			SessionID: "sess-1234",
			Intent:    domain.IntentRequestHuman,
			Reason:    reason,
			Link:      "mailto:hello@ameotech.com",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.RecordEscalation(ctx, ev); err != nil {
			t.Fatalf("RecordEscalation: %v", err)
		}
	}

	got, err := s.ListEscalations(ctx, 10)
	if err != nil {
		t.Fatalf("ListEscalations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Reason != "clarify_loops" || got[1].Reason != "request_human" {
		t.Fatalf("escalations not newest first: %q, %q", got[0].Reason, got[1].Reason)
	}
	if got[0].Page != "" || got[0].Intent != domain.IntentRequestHuman {
		t.Fatalf("unexpected fields: %+v", got[0])
	}
}

func TestSQLiteStoreContent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	older := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	items := []*domain.ContentItem{
		{Kind: domain.ContentCaseStudy, Slug: "retail-forecasting", Title: "Retail forecasting", Tags: []string{"data", "ai"}, Status: domain.StatusPublished, PublishedAt: &older},
		{Kind: domain.ContentCaseStudy, Slug: "fintech-platform", Title: "Fintech platform", Status: domain.StatusPublished, PublishedAt: &newer},
		{Kind: domain.ContentCaseStudy, Slug: "unreleased", Title: "Unreleased", Status: domain.StatusDraft},
		{Kind: domain.ContentJob, Slug: "backend-engineer", Title: "Backend Engineer", Status: domain.StatusPublished, PublishedAt: &older},
	}
	for _, item := range items {
		if err := s.UpsertContent(ctx, item); err != nil {
			t.Fatalf("UpsertContent(%s): %v", item.Slug, err)
		}
	}

	published, err := s.ListContent(ctx, domain.ContentCaseStudy, true)
	if err != nil {
		t.Fatalf("ListContent: %v", err)
	}
	if len(published) != 2 || published[0].Slug != "fintech-platform" || published[1].Slug != "retail-forecasting" {
		t.Fatalf("unexpected published listing: %+v", published)
	}
	if len(published[1].Tags) != 2 || published[1].Tags[0] != "data" {
		t.Fatalf("tags not round-tripped: %v", published[1].Tags)
	}

	all, err := s.ListContent(ctx, domain.ContentCaseStudy, false)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListContent all: len=%d err=%v", len(all), err)
	}

	job, err := s.GetContent(ctx, domain.ContentJob, "backend-engineer")
	if err != nil || job == nil || job.Title != "Backend Engineer" {
		t.Fatalf("GetContent: %+v %v", job, err)
	}
	if job.PublishedAt == nil || !job.PublishedAt.Equal(older) {
		t.Fatalf("published_at = %v", job.PublishedAt)
	}

	missing, err := s.GetContent(ctx, domain.ContentJob, "nope")
	if err != nil || missing != nil {
		t.Fatalf("GetContent missing: %+v %v", missing, err)
	}

	// Upsert replaces in place.
	items[2].Status = domain.StatusPublished
	items[2].PublishedAt = &newer
	if err := s.UpsertContent(ctx, items[2]); err != nil {
		t.Fatalf("UpsertContent update: %v", err)
	}
	published, _ = s.ListContent(ctx, domain.ContentCaseStudy, true)
	if len(published) != 3 {
		t.Fatalf("len after publish = %d, want 3", len(published))
	}
}

func TestSQLiteStoreRejectsBadContent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	bad := []*domain.ContentItem{
		{Kind: "blog", Slug: "x", Title: "X"},
		{Kind: domain.ContentJob, Slug: " ", Title: "X"},
		{Kind: domain.ContentJob, Slug: "x", Title: ""},
	}
	for _, item := range bad {
		if err := s.UpsertContent(ctx, item); err == nil {
			t.Errorf("UpsertContent(%+v) succeeded", item)
		}
	}
}

func TestSeedContent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "content.yaml")
	seed := `
case_studies:
  - slug: logistics-dashboard
    title: Logistics dashboard
    summary: Real-time fleet visibility.
    tags: [data, dashboards]
    status: published
    published_at: 2024-03-05T00:00:00Z
jobs:
  - slug: data-engineer
    title: Data Engineer
    status: published
    published_at: 2024-05-01T00:00:00Z
  - slug: designer
    title: Product Designer
`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}

	n, err := SeedContent(ctx, s, path)
	if err != nil {
		t.Fatalf("SeedContent: %v", err)
	}
	if n != 3 {
		t.Fatalf("seeded %d, want 3", n)
	}

	jobs, _ := s.ListContent(ctx, domain.ContentJob, true)
	if len(jobs) != 1 || jobs[0].Slug != "data-engineer" {
		t.Fatalf("published jobs = %+v", jobs)
	}
	draft, _ := s.GetContent(ctx, domain.ContentJob, "designer")
	if draft == nil || draft.Status != domain.StatusDraft {
		t.Fatalf("designer should default to draft: %+v", draft)
	}

	// Seeding twice is idempotent.
	if _, err := SeedContent(ctx, s, path); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	all, _ := s.ListContent(ctx, domain.ContentJob, false)
	if len(all) != 2 {
		t.Fatalf("jobs after reseed = %d, want 2", len(all))
	}

	if _, err := SeedContent(ctx, s, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("SeedContent with a missing file should fail")
	}
}
