// Package dialogue decides how the chat assistant answers each turn and what
// to suggest after a lab tool finishes.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/notify"
	"github.com/ameotech/triage/internal/rules"
	"github.com/ameotech/triage/internal/session"
)

// Classifier labels chat messages.
type Classifier interface {
	Classify(text, page string) domain.ClassifiedIntent
	Options() []domain.Option
}

// Notifier accepts escalation notifications without blocking.
type Notifier interface {
	Enqueue(n notify.Notification) bool
}

// Context is the free-form client context sent with a turn, such as the lab
// tool currently open.
type Context map[string]any

// String returns the string value of key, or "".
func (c Context) String(key string) string {
	s, _ := c[key].(string)
	return strings.TrimSpace(s)
}

// Config tunes the manager.
type Config struct {
	ClarifyThreshold float64
	MaxClarifyLoops  int
	ContactEmail     string
	Logger           *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.ClarifyThreshold <= 0 {
		c.ClarifyThreshold = 0.4
	}
	if c.MaxClarifyLoops <= 0 {
		c.MaxClarifyLoops = 3
	}
	if c.ContactEmail == "" {
		c.ContactEmail = "hello@ameotech.com"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Manager routes chat turns. It is safe for concurrent use.
type Manager struct {
	store      session.Store
	classifier Classifier
	notifier   Notifier
	cfg        Config
	logger     *slog.Logger
	menu       []domain.Option
	table      []rules.Rule[turn, decision]
}

// New creates a manager. notifier may be nil.
func New(store session.Store, classifier Classifier, notifier Notifier, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		store:      store,
		classifier: classifier,
		notifier:   notifier,
		cfg:        cfg,
		logger:     cfg.Logger,
		menu:       classifier.Options(),
	}
	m.table = m.decisionTable()
	return m
}

func (m *Manager) contactLink() string {
	return "mailto:" + m.cfg.ContactEmail
}

// WelcomeResult opens a conversation.
type WelcomeResult struct {
	SessionID string          `json:"session_id"`
	Welcome   string          `json:"welcome"`
	Options   []domain.Option `json:"options"`
}

// Welcome creates a session and returns the greeting for page. When the
// store fails the visitor still gets a greeting and an id; the session is
// created on the first turn instead.
func (m *Manager) Welcome(ctx context.Context, page string) WelcomeResult {
	res := WelcomeResult{Welcome: welcomeFor(page), Options: m.menu}

	sess, err := m.store.Create(ctx, page)
	if err != nil {
		m.logger.Error("Failed to create session", "page", page, "error", err)
		res.SessionID = session.NewID()
		return res
	}
	res.SessionID = sess.ID

	_, err = m.store.Commit(ctx, sess.ID, domain.TurnCommit{
		Turns: []domain.Turn{{Speaker: domain.SpeakerBot, Text: res.Welcome}},
		Meta:  domain.MetaUpdate{LastAction: domain.Ptr(domain.ActionShowOptions)},
	})
	if err != nil {
		m.logger.Warn("Failed to record welcome turn", "session_id", sess.ID, "error", err)
	}
	return res
}

// RouteRequest is one chat turn.
type RouteRequest struct {
	SessionID string        `json:"session_id"`
	Message   string        `json:"message"`
	Page      string        `json:"page"`
	Context   Context       `json:"context"`
	History   []domain.Turn `json:"history"`
	// VisitorID is the anonymous visitor, set by the transport.
	VisitorID string `json:"-"`
}

// Route answers one chat turn. It never fails: internal errors and panics
// become a fallback message with a contact hint.
func (m *Manager) Route(ctx context.Context, req RouteRequest) (env domain.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Panic while routing chat turn", "session_id", req.SessionID, "panic", r)
			env = m.fallback(req.SessionID)
		}
	}()

	sess, err := m.ensureSession(ctx, req)
	if err != nil {
		m.logger.Error("Failed to load session", "session_id", req.SessionID, "error", err)
		return m.fallback(req.SessionID)
	}

	text := strings.TrimSpace(req.Message)

	// The decision reads clarify loops and stage, so it runs inside the
	// store's per-session update to see every earlier turn's commit.
	var (
		page  string
		ci    domain.ClassifiedIntent
		match rules.Match[decision]
	)
	_, err = m.store.Update(ctx, sess.ID, func(cur *domain.Session) (domain.TurnCommit, error) {
		page = strings.TrimSpace(req.Page)
		if page == "" {
			page = cur.Page
		}
		ci = m.classifier.Classify(text, page)
		match, _ = rules.First(m.table, newTurn(cur, ci, text, page, req.Context))
		d := match.Value

		segment := cur.Segment
		if d.segment != "" {
			segment = d.segment
		}
		env = domain.NewEnvelope(cur.ID, ci, d.reply, d.payload, domain.EnvelopeMeta{
			Segment:         segment,
			SupportsHandoff: supportsHandoff(segment),
		})

		commit := domain.TurnCommit{Meta: domain.MetaUpdate{
			Stage:        d.stage,
			ClarifyLoops: d.loops,
			LastAction:   domain.Ptr(env.Action),
		}}
		if text != "" {
			commit.Turns = append(commit.Turns, domain.Turn{Speaker: domain.SpeakerUser, Text: text})
			commit.Meta.LastIntent = domain.Ptr(ci.Intent)
		}
		commit.Turns = append(commit.Turns, domain.Turn{Speaker: domain.SpeakerBot, Text: d.reply})
		if d.segment != "" {
			commit.Meta.Segment = domain.Ptr(d.segment)
		}
		return commit, nil
	})
	if err != nil {
		m.logger.Error("Failed to commit chat turn", "session_id", sess.ID, "error", err)
		return m.fallback(sess.ID)
	}
	d := match.Value

	m.logger.Debug("Chat turn routed",
		"session_id", sess.ID,
		"intent", ci.Intent,
		"confidence", ci.Confidence,
		"rule", ci.Rule,
		"decision", match.Rule,
		"action", env.Action,
	)

	if d.escalation != "" {
		m.escalate(sess.ID, req.VisitorID, page, ci.Intent, d.escalation, text)
	}
	return env
}

// ensureSession loads the session, starting a new one when the id is missing,
// malformed or unknown. A new session is seeded from the client's history.
func (m *Manager) ensureSession(ctx context.Context, req RouteRequest) (*domain.Session, error) {
	var (
		sess    *domain.Session
		created bool
		err     error
	)
	if session.ValidID(req.SessionID) {
		sess, created, err = m.store.Ensure(ctx, req.SessionID, req.Page)
	} else {
		sess, err = m.store.Create(ctx, req.Page)
		created = true
	}
	if err != nil {
		return nil, err
	}
	if !created {
		return sess, nil
	}

	seed := make([]domain.Turn, 0, len(req.History))
	for _, t := range req.History {
		if t.Speaker.Valid() && strings.TrimSpace(t.Text) != "" {
			seed = append(seed, domain.Turn{Speaker: t.Speaker, Text: t.Text, At: t.At})
		}
	}
	if len(seed) == 0 {
		return sess, nil
	}
	m.logger.Info("Seeding new session from client history", "session_id", sess.ID, "turns", len(seed))
	return m.store.Commit(ctx, sess.ID, domain.TurnCommit{Turns: seed})
}

func (m *Manager) escalate(sessionID, visitorID, page string, in domain.Intent, reason, message string) {
	if m.notifier == nil {
		return
	}
	ev := &domain.EscalationEvent{
		SessionID: sessionID,
		VisitorID: visitorID,
		Page:      page,
		Intent:    in,
		Reason:    reason,
		Message:   message,
		Link:      m.contactLink(),
		CreatedAt: time.Now(),
	}
	if !m.notifier.Enqueue(notify.FromEscalation(ev)) {
		m.logger.Warn("Escalation notification dropped", "session_id", sessionID, "reason", reason)
	}
}

// fallback is the reply used when a turn cannot be processed.
func (m *Manager) fallback(sessionID string) domain.Envelope {
	return domain.NewEnvelope(
		sessionID,
		domain.ClassifiedIntent{Intent: domain.IntentUnknown},
		fmt.Sprintf(replyFallback, m.cfg.ContactEmail),
		domain.MessagePayload{},
		domain.EnvelopeMeta{},
	)
}
