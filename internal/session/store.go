// Package session keeps per-visitor conversation state for the chat widget.
package session

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/ameotech/triage/internal/domain"
)

// Defaults applied when options leave a field zero.
const (
	DefaultMaxTurns = 20
	DefaultTTL      = 60 * time.Minute
)

var (
	// ErrNotFound is returned when no session exists for an id.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidID is returned for client-supplied ids that fail ValidID.
	ErrInvalidID = errors.New("invalid session id")
	// ErrInvalidSpeaker is returned when a turn names an unknown speaker.
	ErrInvalidSpeaker = errors.New("invalid speaker")
)

// Store persists sessions. Implementations serialize mutations per session id
// and hand out copies, so a returned *domain.Session is owned by the caller.
type Store interface {
	// Create starts a session with a fresh id.
	Create(ctx context.Context, page string) (*domain.Session, error)

	// Ensure returns the session for id, creating it under that id when it
	// does not exist. The bool reports whether it was created.
	Ensure(ctx context.Context, id, page string) (*domain.Session, bool, error)

	// Get returns the session for id or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// AppendTurn records one turn, dropping the oldest beyond the history bound.
	AppendTurn(ctx context.Context, id string, speaker domain.Speaker, text string) (*domain.Session, error)

	// UpdateMeta merges metadata changes into the session.
	UpdateMeta(ctx context.Context, id string, m domain.MetaUpdate) (*domain.Session, error)

	// Commit applies the turns and metadata of one chat turn atomically.
	Commit(ctx context.Context, id string, c domain.TurnCommit) (*domain.Session, error)

	// Update reads the session, asks fn for the commit and applies it as one
	// serialized step, so fn always sees the latest state. fn may be called
	// more than once and must not have side effects. An error from fn aborts
	// the update and is returned unchanged.
	Update(ctx context.Context, id string, fn UpdateFunc) (*domain.Session, error)
}

// UpdateFunc computes a commit from the current session. The session passed
// in is a copy.
type UpdateFunc func(cur *domain.Session) (domain.TurnCommit, error)

// Options configure a store.
type Options struct {
	// MaxTurns bounds the rolling history.
	MaxTurns int
	// TTL is how long an untouched session survives.
	TTL time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxTurns <= 0 {
		o.MaxTurns = DefaultMaxTurns
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9-]{8,64}$`)

// ValidID reports whether id is acceptable as a client-supplied session id.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

func validateTurns(turns []domain.Turn) error {
	for _, t := range turns {
		if !t.Speaker.Valid() {
			return ErrInvalidSpeaker
		}
	}
	return nil
}
