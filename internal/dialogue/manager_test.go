package dialogue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/intent"
	"github.com/ameotech/triage/internal/notify"
	"github.com/ameotech/triage/internal/session"
)

// recordingNotifier keeps every notification it is given.
type recordingNotifier struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (n *recordingNotifier) Enqueue(x notify.Notification) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, x)
	return true
}

func (n *recordingNotifier) reasons() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, x := range n.got {
		out = append(out, x.Escalation.Reason)
	}
	return out
}

// brokenStore fails every call.
type brokenStore struct{}

var errStoreDown = errors.New("store down")

func (brokenStore) Create(context.Context, string) (*domain.Session, error) { return nil, errStoreDown }
func (brokenStore) Ensure(context.Context, string, string) (*domain.Session, bool, error) {
	return nil, false, errStoreDown
}
func (brokenStore) Get(context.Context, string) (*domain.Session, error) { return nil, errStoreDown }
func (brokenStore) AppendTurn(context.Context, string, domain.Speaker, string) (*domain.Session, error) {
	return nil, errStoreDown
}
func (brokenStore) UpdateMeta(context.Context, string, domain.MetaUpdate) (*domain.Session, error) {
	return nil, errStoreDown
}
func (brokenStore) Commit(context.Context, string, domain.TurnCommit) (*domain.Session, error) {
	return nil, errStoreDown
}
func (brokenStore) Update(context.Context, string, session.UpdateFunc) (*domain.Session, error) {
	return nil, errStoreDown
}

// commitFailingStore works until a turn is written.
type commitFailingStore struct {
	session.Store
}

func (commitFailingStore) Commit(context.Context, string, domain.TurnCommit) (*domain.Session, error) {
	return nil, errStoreDown
}

func (commitFailingStore) Update(context.Context, string, session.UpdateFunc) (*domain.Session, error) {
	return nil, errStoreDown
}

// lockstepStore holds every Ensure until n callers have loaded the session,
// so their turns overlap.
type lockstepStore struct {
	session.Store
	loaded *sync.WaitGroup
}

func newLockstepStore(inner session.Store, n int) lockstepStore {
	wg := &sync.WaitGroup{}
	wg.Add(n)
	return lockstepStore{Store: inner, loaded: wg}
}

func (s lockstepStore) Ensure(ctx context.Context, id, page string) (*domain.Session, bool, error) {
	sess, created, err := s.Store.Ensure(ctx, id, page)
	s.loaded.Done()
	s.loaded.Wait()
	return sess, created, err
}

// panickyClassifier panics on every message.
type panickyClassifier struct{}

func (panickyClassifier) Classify(string, string) domain.ClassifiedIntent { panic("rule table corrupt") }
func (panickyClassifier) Options() []domain.Option                       { return nil }

type fixture struct {
	mgr      *Manager
	store    *session.MemoryStore
	notifier *recordingNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := session.NewMemoryStore(session.Options{})
	n := &recordingNotifier{}
	return fixture{
		mgr:      New(store, intent.MustDefault(), n, Config{}),
		store:    store,
		notifier: n,
	}
}

func (f fixture) route(t *testing.T, id, msg string) domain.Envelope {
	t.Helper()
	return f.mgr.Route(context.Background(), RouteRequest{SessionID: id, Message: msg, Page: "/"})
}

func TestWelcome(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.mgr.Welcome(context.Background(), "/labs/audit")
	require.True(t, session.ValidID(res.SessionID))
	assert.Equal(t, replyWelcomeLabs, res.Welcome)
	assert.NotEmpty(t, res.Options)

	sess, err := f.store.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.History, 1)
	assert.Equal(t, domain.SpeakerBot, sess.History[0].Speaker)
	assert.Equal(t, domain.ActionShowOptions, sess.LastAction)
}

func TestWelcomeSurvivesStoreFailure(t *testing.T) {
	t.Parallel()
	mgr := New(brokenStore{}, intent.MustDefault(), nil, Config{})

	res := mgr.Welcome(context.Background(), "/")
	assert.True(t, session.ValidID(res.SessionID))
	assert.Equal(t, replyWelcome, res.Welcome)
}

func TestRouteNewProjectOnFreshSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	env := f.route(t, "", "I want to start a new project")

	assert.Equal(t, domain.IntentStartNewProject, env.Intent)
	assert.GreaterOrEqual(t, env.IntentConfidence, 0.6)
	assert.Contains(t, []domain.Action{domain.ActionShowMessage, domain.ActionShowOptions}, env.Action)
	assert.Equal(t, SegmentNewProject, env.Meta.Segment)
	assert.True(t, env.Meta.SupportsHandoff)
	assert.True(t, session.ValidID(env.SessionID))
}

func TestRouteNewProjectStages(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	env := f.route(t, "", "I want to start a new project")
	id := env.SessionID
	assert.Equal(t, replyProjectIntro, env.BotReply)

	env = f.route(t, id, "A marketplace for dog walkers")
	assert.Equal(t, replyProjectIdea, env.BotReply)
	assert.Equal(t, domain.ActionShowMessage, env.Action)

	env = f.route(t, id, "Mostly the timeline honestly")
	assert.Equal(t, replyProjectShaping, env.BotReply)

	env = f.route(t, id, "Not sure yet")
	assert.Equal(t, replyProjectClose, env.BotReply)

	env = f.route(t, id, "What would the budget look like?")
	assert.Equal(t, domain.ActionOpenLabTool, env.Action)
	p, ok := env.Payload.(domain.LabToolPayload)
	require.True(t, ok)
	assert.Equal(t, domain.LabBuildEstimator, p.LabTool)

	sess, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, sess.History, 10)
	assert.Equal(t, stageShaping, sess.Stage)
}

func TestRouteEmptyMessage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	// No prior turns: a welcome, nothing else.
	env := f.route(t, "", "   ")
	assert.Equal(t, domain.ActionShowMessage, env.Action)
	assert.Equal(t, domain.IntentUnknown, env.Intent)
	assert.Zero(t, env.IntentConfidence)

	// After the welcome menu: the menu is asked again.
	w := f.mgr.Welcome(context.Background(), "/")
	env = f.route(t, w.SessionID, "")
	assert.Equal(t, domain.ActionShowOptions, env.Action)
	assert.Equal(t, w.Welcome, env.BotReply)

	// After a lab tool was opened an empty message still only clarifies.
	env = f.route(t, w.SessionID, "open the build estimator")
	require.Equal(t, domain.ActionOpenLabTool, env.Action)
	env = f.route(t, w.SessionID, "")
	assert.Equal(t, domain.ActionShowOptions, env.Action)
	assert.Equal(t, replyReask, env.BotReply)
	assert.Empty(t, f.notifier.reasons())
}

func TestRouteRequestHumanEscalates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	env := f.route(t, "", "Can I talk to a human please?")

	assert.Equal(t, domain.ActionEscalateHuman, env.Action)
	p, ok := env.Payload.(domain.EscalationPayload)
	require.True(t, ok)
	assert.Equal(t, "mailto:hello@ameotech.com", p.Link)
	assert.Equal(t, SegmentHandoff, env.Meta.Segment)
	assert.Equal(t, []string{"request_human"}, f.notifier.reasons())
}

func TestRouteSensitiveTopicEscalates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	env := f.route(t, "", "We think there was a data breach")
	assert.Equal(t, domain.ActionEscalateHuman, env.Action)
	assert.Equal(t, replySensitive, env.BotReply)
	assert.Equal(t, []string{"sensitive_topic"}, f.notifier.reasons())
}

func TestRouteClarifyLoopsEscalateOnThirdTurn(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	env := f.route(t, "", "purple elephants")
	id := env.SessionID
	require.Equal(t, domain.ActionShowOptions, env.Action)
	full := env.Payload.(domain.OptionsPayload)
	assert.Len(t, full.Options, len(intent.MustDefault().Options()))

	env = f.route(t, id, "dancing in the moonlight")
	require.Equal(t, domain.ActionShowOptions, env.Action)
	assert.Equal(t, narrowMenu, env.Payload.(domain.OptionsPayload).Options)

	env = f.route(t, id, "zebra crossings")
	assert.Equal(t, domain.ActionEscalateHuman, env.Action)
	assert.Equal(t, []string{"clarify_loops"}, f.notifier.reasons())

	sess, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Zero(t, sess.ClarifyLoops)
}

func TestRouteClearTurnResetsClarifyLoops(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.route(t, "", "purple elephants").SessionID
	f.route(t, id, "Are you hiring?")
	env := f.route(t, id, "zebra crossings")

	assert.Equal(t, domain.ActionShowOptions, env.Action)
	assert.Equal(t, replyClarify, env.BotReply)
}

func TestRouteOpensLabTools(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		page    string
		ctx     Context
		want    domain.LabTool
	}{
		{"named in message", "Show me the architecture blueprint", "/", nil, domain.LabArchitectureBlueprint},
		{"ai readiness", "Can I run the AI readiness check?", "/", nil, domain.LabAIReadiness},
		{"from context", "I'd like to try the labs", "/", Context{"lab_tool": "ai-readiness"}, domain.LabAIReadiness},
		{"from page", "open the lab", "/labs/build-estimator", nil, domain.LabBuildEstimator},
		{"default", "I'd like to try the labs", "/", nil, domain.LabAudit},
		{"pricing", "How much does an MVP cost?", "/", nil, domain.LabBuildEstimator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			env := f.mgr.Route(context.Background(), RouteRequest{Message: tt.message, Page: tt.page, Context: tt.ctx})

			require.Equal(t, domain.ActionOpenLabTool, env.Action)
			p, ok := env.Payload.(domain.LabToolPayload)
			require.True(t, ok)
			assert.Equal(t, tt.want, p.LabTool)
			assert.Equal(t, tt.want.Title(), p.Title)
			assert.NotEmpty(t, p.CTALabel)
		})
	}
}

func TestRouteIntentReplies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		message string
		reply   string
		segment string
	}{
		{"Our legacy system keeps crashing", replyExistingIntro, SegmentExistingSystem},
		{"We need a data warehouse", replyDataPlatform, SegmentDataPlatform},
		{"Are you hiring?", replyCareers, SegmentCareers},
		{"Is this a real company?", replyTrust, ""},
		{"Hello!", replyGreeting, ""},
		{"Which tech stack do you recommend, react or django?", replyTechStack, ""},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			env := f.route(t, "", tt.message)
			assert.Equal(t, domain.ActionShowMessage, env.Action)
			assert.Equal(t, tt.reply, env.BotReply)
			assert.Equal(t, tt.segment, env.Meta.Segment)
		})
	}
}

func TestRouteAutoCreatesUnknownSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	env := f.mgr.Route(context.Background(), RouteRequest{
		SessionID: "client-session-42",
		Message:   "Are you hiring?",
		Page:      "/careers",
		History: []domain.Turn{
			{Speaker: domain.SpeakerBot, Text: "Hi!"},
			{Speaker: "system", Text: "dropped"},
			{Speaker: domain.SpeakerUser, Text: "   "},
		},
	})
	assert.Equal(t, "client-session-42", env.SessionID)

	sess, err := f.store.Get(context.Background(), "client-session-42")
	require.NoError(t, err)
	require.Len(t, sess.History, 3)
	assert.Equal(t, "Hi!", sess.History[0].Text)
	assert.Equal(t, "Are you hiring?", sess.History[1].Text)
	assert.Equal(t, "/careers", sess.Page)
}

func TestRouteReplacesMalformedSessionID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	env := f.route(t, "bad id", "hello")
	assert.NotEqual(t, "bad id", env.SessionID)
	assert.True(t, session.ValidID(env.SessionID))
}

func TestRouteFallsBackWhenStoreFails(t *testing.T) {
	t.Parallel()

	for name, store := range map[string]session.Store{
		"load":   brokenStore{},
		"commit": commitFailingStore{Store: session.NewMemoryStore(session.Options{})},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			n := &recordingNotifier{}
			mgr := New(store, intent.MustDefault(), n, Config{ContactEmail: "team@example.com"})

			env := mgr.Route(context.Background(), RouteRequest{SessionID: "session-0001", Message: "talk to a human"})
			assert.Equal(t, domain.ActionShowMessage, env.Action)
			assert.True(t, strings.Contains(env.BotReply, "team@example.com"))
			assert.Empty(t, n.reasons(), "no escalation is emitted for a turn that was not recorded")
		})
	}
}

func TestRouteRecoversFromPanics(t *testing.T) {
	t.Parallel()
	store := session.NewMemoryStore(session.Options{})
	mgr := New(store, panickyClassifier{}, nil, Config{})

	env := mgr.Route(context.Background(), RouteRequest{SessionID: "session-0001", Message: "hi"})
	assert.Equal(t, domain.ActionShowMessage, env.Action)
	assert.Equal(t, "session-0001", env.SessionID)
	assert.Contains(t, env.BotReply, "hello@ameotech.com")
}

func TestRouteConcurrentTurnsOnOneSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.mgr.Welcome(context.Background(), "/").SessionID

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.route(t, id, "Are you hiring?")
		}()
	}
	wg.Wait()

	sess, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, sess.History, 1+8*2)
}

func TestRouteOverlappingUnclearTurnsCountEveryLoop(t *testing.T) {
	t.Parallel()
	mem := session.NewMemoryStore(session.Options{})
	n := &recordingNotifier{}
	id := New(mem, intent.MustDefault(), n, Config{}).Welcome(context.Background(), "/").SessionID

	mgr := New(newLockstepStore(mem, 2), intent.MustDefault(), n, Config{})
	var wg sync.WaitGroup
	for _, msg := range []string{"purple elephants", "dancing in the moonlight"} {
		wg.Add(1)
		go func(msg string) {
			defer wg.Done()
			env := mgr.Route(context.Background(), RouteRequest{SessionID: id, Message: msg, Page: "/"})
			assert.Equal(t, domain.ActionShowOptions, env.Action)
		}(msg)
	}
	wg.Wait()

	sess, err := mem.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.ClarifyLoops)
	assert.Len(t, sess.History, 1+2*2)

	// The next unclear turn is the third in a row.
	env := New(mem, intent.MustDefault(), n, Config{}).Route(context.Background(),
		RouteRequest{SessionID: id, Message: "zebra crossings", Page: "/"})
	assert.Equal(t, domain.ActionEscalateHuman, env.Action)
	assert.Equal(t, []string{"clarify_loops"}, n.reasons())
}
