//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ameotech/triage/internal/dialogue"
	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/identity"
	"github.com/ameotech/triage/internal/intent"
	"github.com/ameotech/triage/internal/notify"
	"github.com/ameotech/triage/internal/session"
)

type fakeRepo struct {
	mu       sync.Mutex
	feedback []*domain.FeedbackEvent
	content  map[string]*domain.ContentItem
	pingErr  error
	listErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{content: make(map[string]*domain.ContentItem)}
}

func (f *fakeRepo) RecordFeedback(_ context.Context, ev *domain.FeedbackEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, ev)
	return nil
}

func (f *fakeRepo) RecordEscalation(context.Context, *domain.EscalationEvent) error { return nil }

func (f *fakeRepo) ListEscalations(context.Context, int) ([]*domain.EscalationEvent, error) {
	return nil, nil
}

func (f *fakeRepo) ListContent(_ context.Context, kind domain.ContentKind, publishedOnly bool) ([]*domain.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*domain.ContentItem
	for _, item := range f.content {
		if item.Kind == kind && (!publishedOnly || item.IsPublished()) {
			copy := *item
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetContent(_ context.Context, kind domain.ContentKind, slug string) (*domain.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item := f.content[string(kind)+"/"+slug]
	if item == nil {
		return nil, nil
	}
	copy := *item
	return &copy, nil
}

func (f *fakeRepo) UpsertContent(_ context.Context, item *domain.ContentItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *item
	f.content[string(item.Kind)+"/"+item.Slug] = &copy
	return nil
}

func (f *fakeRepo) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeRepo) Close() error { return nil }

func (f *fakeRepo) feedbackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.feedback)
}

type fakeQueue struct {
	mu   sync.Mutex
	full bool
	got  []notify.Notification
}

func (q *fakeQueue) Enqueue(n notify.Notification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.got = append(q.got, n)
	return true
}

type testServer struct {
	router *chi.Mux
	repo   *fakeRepo
	queue  *fakeQueue
	chat   *ChatHandler
	store  *session.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := newFakeRepo()
	queue := &fakeQueue{}
	store := session.NewMemoryStore(session.Options{})
	mgr := dialogue.New(store, intent.MustDefault(), queue, dialogue.Config{})

	ts := &testServer{
		router: chi.NewRouter(),
		repo:   repo,
		queue:  queue,
		chat:   NewChatHandler(mgr, repo, nil),
		store:  store,
	}
	ts.router.Use(identity.Middleware(true))
	ts.chat.RegisterRoutes(ts.router)
	NewLabsHandler(mgr).RegisterRoutes(ts.router)
	NewContentHandler(repo).RegisterRoutes(ts.router)
	NewNotifyHandler(queue).RegisterRoutes(ts.router)
	NewHealthHandler(map[string]Pinger{"database": repo}).RegisterHealth(ts.router)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return v
}

func TestJSON(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(w, r, errors.New("disk on fire at /var/lib/db"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "disk") {
		t.Errorf("Internal error leaked: %s", w.Body.String())
	}
}

func TestCreateSession(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/chat/session", `{"page":"/labs"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[dialogue.WelcomeResult](t, rec)
	if !session.ValidID(got.SessionID) {
		t.Errorf("Invalid session id %q", got.SessionID)
	}
	if got.Welcome == "" || len(got.Options) == 0 {
		t.Errorf("Expected a welcome with options, got %+v", got)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("Expected a visitor cookie")
	}

	// The body is optional.
	if rec := ts.do(t, http.MethodPost, "/chat/session", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for an empty body, got %d", rec.Code)
	}
}

func TestChatRoute(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/reason/chat-route", `{"message":"I want to start a new project","page":"/"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	env := decode[domain.Envelope](t, rec)
	if env.Intent != domain.IntentStartNewProject {
		t.Errorf("Expected start_new_project, got %s", env.Intent)
	}
	if env.Action != domain.ActionShowMessage {
		t.Errorf("Expected show_message, got %s", env.Action)
	}
	if env.BotReply == "" {
		t.Error("Expected a bot reply")
	}
}

func TestChatRouteEscalationCarriesVisitor(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/reason/chat-route", `{"message":"talk to a human","page":"/pricing"}`)
	env := decode[domain.Envelope](t, rec)
	if env.Action != domain.ActionEscalateHuman {
		t.Fatalf("Expected escalate_human, got %s", env.Action)
	}
	p, ok := env.Payload.(domain.EscalationPayload)
	if !ok || !strings.HasPrefix(p.Link, "mailto:") {
		t.Errorf("Expected a mailto link, got %#v", env.Payload)
	}

	ts.queue.mu.Lock()
	defer ts.queue.mu.Unlock()
	if len(ts.queue.got) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(ts.queue.got))
	}
	if !identity.IsValidVisitorID(ts.queue.got[0].Escalation.VisitorID) {
		t.Errorf("Expected the visitor id on the escalation, got %q", ts.queue.got[0].Escalation.VisitorID)
	}
}

func TestChatRouteRejectsMalformedJSON(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/reason/chat-route", `{"message":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestChatRouteBodyTooLarge(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	body := `{"message":"` + strings.Repeat("a", maxRequestBodySize) + `"}`
	rec := ts.do(t, http.MethodPost, "/reason/chat-route", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", rec.Code)
	}
}

func TestFeedbackIsRecordedAsynchronously(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/reason/feedback",
		`{"session_id":"abc-12345","event":"action_clicked","action":"open_lab_tool","payload":{"lab_tool":"audit"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}
	ts.chat.Wait()

	if n := ts.repo.feedbackCount(); n != 1 {
		t.Fatalf("Expected 1 feedback event, got %d", n)
	}
	ev := ts.repo.feedback[0]
	if ev.Event != "action_clicked" || ev.Action != domain.ActionOpenLabTool || ev.VisitorID == "" {
		t.Errorf("Unexpected feedback event %+v", ev)
	}

	if rec := ts.do(t, http.MethodPost, "/reason/feedback", `{"session_id":"abc-12345"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without an event, got %d", rec.Code)
	}
}

func TestLabNextEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/reason/lab-next",
		`{"lab_tool":"audit","lab_result":{"scores":{"product":85,"engineering":90,"data_ai":80}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[dialogue.LabNextResult](t, rec)
	for _, s := range res.NextActions {
		if s.Action == domain.ActionEscalateHuman {
			t.Error("Healthy audit must not escalate")
		}
	}

	for _, body := range []string{
		`{"lab_tool":"tarot","lab_result":{}}`,
		`{"lab_tool":"audit","lab_result":"nope"}`,
	} {
		if rec := ts.do(t, http.MethodPost, "/reason/lab-next", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestRunLab(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	for _, slug := range []string{"audit", "build-estimator", "architecture-blueprint", "ai-readiness"} {
		rec := ts.do(t, http.MethodPost, "/labs/"+slug+"/run", `{}`)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", slug, rec.Code)
			continue
		}
		got := decode[map[string]any](t, rec)
		if _, ok := got["scores"]; !ok {
			t.Errorf("%s: expected scores in %v", slug, got)
		}
	}

	if rec := ts.do(t, http.MethodPost, "/labs/horoscope/run", `{}`); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown tool, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/labs/audit/run", `[1]`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-object answers, got %d", rec.Code)
	}
}

func TestRunReadinessAddsNextActions(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	sess, err := ts.store.Create(context.Background(), "/labs/ai-readiness")
	if err != nil {
		t.Fatal(err)
	}

	rec := ts.do(t, http.MethodPost, "/labs/ai-readiness/run?session_id="+sess.ID, `{"org_stage":"startup"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	got := decode[map[string]json.RawMessage](t, rec)
	var actions []domain.Suggestion
	if err := json.Unmarshal(got["next_actions"], &actions); err != nil {
		t.Fatalf("Failed to decode next_actions: %v", err)
	}
	if len(actions) == 0 || len(actions) > dialogue.MaxNextActions {
		t.Errorf("Expected 1..%d next actions, got %d", dialogue.MaxNextActions, len(actions))
	}

	updated, err := ts.store.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !updated.HasRun(domain.LabAIReadiness) {
		t.Error("Expected the readiness run to be recorded on the session")
	}
}

func TestContentEndpoints(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	now := time.Now()
	for _, item := range []*domain.ContentItem{
		{Kind: domain.ContentCaseStudy, Slug: "pricing-engine", Title: "Pricing engine", Status: domain.StatusPublished, PublishedAt: &now},
		{Kind: domain.ContentCaseStudy, Slug: "secret", Title: "Draft", Status: domain.StatusDraft},
		{Kind: domain.ContentJob, Slug: "go-engineer", Title: "Go engineer", Status: domain.StatusPublished, PublishedAt: &now},
	} {
		if err := ts.repo.UpsertContent(context.Background(), item); err != nil {
			t.Fatal(err)
		}
	}

	rec := ts.do(t, http.MethodGet, "/content/case-studies", "")
	list := decode[struct {
		Items []domain.ContentItem `json:"items"`
	}](t, rec)
	if len(list.Items) != 1 || list.Items[0].Slug != "pricing-engine" {
		t.Errorf("Expected only the published case study, got %+v", list.Items)
	}

	if rec := ts.do(t, http.MethodGet, "/content/jobs/go-engineer", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for a published job, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/content/case-studies/secret", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a draft, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/content/jobs/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a missing job, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/content/jobs", "")
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"go-engineer"`)) {
		t.Errorf("Expected the job in the listing: %s", rec.Body.String())
	}
}

func TestContentListStoreFailure(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.repo.listErr = errors.New("database is locked")

	rec := ts.do(t, http.MethodGet, "/content/jobs", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "locked") {
		t.Errorf("Store error leaked: %s", rec.Body.String())
	}
}

func TestNotifySales(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	if rec := ts.do(t, http.MethodPost, "/internal/notify-sales", `{"text":"New lead from the pricing page"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/internal/notify-sales", `{"fields":{"name":"Ada","budget":"50k"}}`); rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/internal/notify-sales", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an empty notification, got %d", rec.Code)
	}

	ts.queue.mu.Lock()
	got := append([]notify.Notification(nil), ts.queue.got...)
	ts.queue.full = true
	ts.queue.mu.Unlock()

	if len(got) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(got))
	}
	if got[0].Text != "New lead from the pricing page" {
		t.Errorf("Unexpected text %q", got[0].Text)
	}
	if got[1].Text != "Sales notification: budget: 50k, name: Ada" {
		t.Errorf("Unexpected text %q", got[1].Text)
	}

	if rec := ts.do(t, http.MethodPost, "/internal/notify-sales", `{"text":"x"}`); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when the queue is full, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	if rec := ts.do(t, http.MethodGet, "/health/ready", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	ts.repo.mu.Lock()
	ts.repo.pingErr = errors.New("unreachable")
	ts.repo.mu.Unlock()

	rec := ts.do(t, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
	got := decode[map[string]any](t, rec)
	if got["status"] != "degraded" {
		t.Errorf("Expected degraded, got %v", got["status"])
	}
}
