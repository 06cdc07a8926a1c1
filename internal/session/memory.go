package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ameotech/triage/internal/domain"
)

// MemoryStore keeps sessions in process memory. Lookups share a read lock on
// the index; mutations of one session are serialized by that session's lock.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	opts     Options
}

type entry struct {
	mu    sync.Mutex
	meta  domain.Session // History lives in turns
	turns *Ring[domain.Turn]
	gone  bool // set when evicted; holders must treat the session as missing
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*entry),
		opts:     opts.withDefaults(),
	}
}

func (s *MemoryStore) newEntry(id, page string) *entry {
	sess := domain.NewSession(id, page, s.opts.Now())
	sess.History = nil
	return &entry{meta: *sess, turns: NewRing[domain.Turn](s.opts.MaxTurns)}
}

func (e *entry) snapshot() *domain.Session {
	c := e.meta.Clone()
	c.History = e.turns.Items()
	return c
}

// Create starts a session with a fresh id.
func (s *MemoryStore) Create(ctx context.Context, page string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := s.newEntry(NewID(), page)

	s.mu.Lock()
	s.sessions[e.meta.ID] = e
	s.mu.Unlock()

	return e.snapshot(), nil
}

// Ensure returns the session for id, creating it when missing.
func (s *MemoryStore) Ensure(ctx context.Context, id, page string) (*domain.Session, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if !ValidID(id) {
		return nil, false, ErrInvalidID
	}

	for {
		s.mu.Lock()
		e, ok := s.sessions[id]
		if !ok {
			e = s.newEntry(id, page)
			s.sessions[id] = e
			s.mu.Unlock()
			return e.snapshot(), true, nil
		}
		s.mu.Unlock()

		e.mu.Lock()
		if e.gone {
			// Evicted between the lookup and the lock; look again.
			e.mu.Unlock()
			continue
		}
		snap := e.snapshot()
		e.mu.Unlock()
		return snap, false, nil
	}
}

// Get returns the session for id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	var out *domain.Session
	err := s.with(ctx, id, func(e *entry) error {
		out = e.snapshot()
		return nil
	})
	return out, err
}

// AppendTurn records one turn.
func (s *MemoryStore) AppendTurn(ctx context.Context, id string, speaker domain.Speaker, text string) (*domain.Session, error) {
	return s.Commit(ctx, id, domain.TurnCommit{
		Turns: []domain.Turn{{Speaker: speaker, Text: text, At: s.opts.Now()}},
	})
}

// UpdateMeta merges metadata changes.
func (s *MemoryStore) UpdateMeta(ctx context.Context, id string, m domain.MetaUpdate) (*domain.Session, error) {
	return s.Commit(ctx, id, domain.TurnCommit{Meta: m})
}

// Commit applies turns and metadata under the session lock. Validation and
// the context check happen before anything is written.
func (s *MemoryStore) Commit(ctx context.Context, id string, c domain.TurnCommit) (*domain.Session, error) {
	if err := validateTurns(c.Turns); err != nil {
		return nil, err
	}

	var out *domain.Session
	err := s.with(ctx, id, func(e *entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out = s.apply(e, c)
		return nil
	})
	return out, err
}

// Update runs fn and applies its commit while holding the session lock.
func (s *MemoryStore) Update(ctx context.Context, id string, fn UpdateFunc) (*domain.Session, error) {
	var out *domain.Session
	err := s.with(ctx, id, func(e *entry) error {
		c, err := fn(e.snapshot())
		if err != nil {
			return err
		}
		if err := validateTurns(c.Turns); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		out = s.apply(e, c)
		return nil
	})
	return out, err
}

func (s *MemoryStore) apply(e *entry, c domain.TurnCommit) *domain.Session {
	now := s.opts.Now()
	for _, t := range c.Turns {
		if t.At.IsZero() {
			t.At = now
		}
		e.turns.Push(t)
	}
	e.meta.Apply(c.Meta)
	e.meta.UpdatedAt = now
	return e.snapshot()
}

// with runs fn holding the lock of the session named id.
func (s *MemoryStore) with(ctx context.Context, id string, fn func(*entry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return ErrNotFound
	}
	return fn(e)
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// EvictIdle removes sessions not updated within the TTL and returns how many
// were removed.
func (s *MemoryStore) EvictIdle() int {
	cutoff := s.opts.Now().Add(-s.opts.TTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.sessions {
		e.mu.Lock()
		if e.meta.UpdatedAt.Before(cutoff) {
			e.gone = true
			delete(s.sessions, id)
			evicted++
		}
		e.mu.Unlock()
	}
	return evicted
}

// RunSweeper evicts idle sessions every interval until ctx is cancelled.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("Session sweeper started", "interval", interval, "ttl", s.opts.TTL)

	for {
		select {
		case <-ticker.C:
			if n := s.EvictIdle(); n > 0 {
				slog.Info("Session sweeper evicted idle sessions", "count", n, "remaining", s.Len())
			}
		case <-ctx.Done():
			slog.Info("Session sweeper shutting down", "reason", ctx.Err())
			return
		}
	}
}
