package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ameotech/triage/internal/apperr"
	"github.com/ameotech/triage/internal/domain"
)

const (
	redisKeyPrefix = "triage:session:"
	maxTxRetries   = 10
)

// RedisStore keeps each session as one JSON value whose TTL is refreshed on
// every write. Mutations are optimistic transactions on the session key.
type RedisStore struct {
	client *redis.Client
	opts   Options
}

// NewRedisStore creates a store backed by client.
func NewRedisStore(client *redis.Client, opts Options) *RedisStore {
	return &RedisStore{client: client, opts: opts.withDefaults()}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// RedisConfig holds connection settings.
type RedisConfig struct {
	URL          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DialTimeout  time.Duration
}

// NewRedisClient parses the URL, applies timeouts and pings the server.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperr.WrapRedis(err)
	}
	return client, nil
}

// Create starts a session with a fresh id.
func (s *RedisStore) Create(ctx context.Context, page string) (*domain.Session, error) {
	sess := domain.NewSession(NewID(), page, s.opts.Now())
	if _, err := s.insert(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Ensure returns the session for id, creating it when missing.
func (s *RedisStore) Ensure(ctx context.Context, id, page string) (*domain.Session, bool, error) {
	if !ValidID(id) {
		return nil, false, ErrInvalidID
	}

	sess, err := s.Get(ctx, id)
	if err == nil {
		return sess, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	sess = domain.NewSession(id, page, s.opts.Now())
	created, err := s.insert(ctx, sess)
	if err != nil {
		return nil, false, err
	}
	if !created {
		// Another request created it first.
		sess, err = s.Get(ctx, id)
		return sess, false, err
	}
	return sess, true, nil
}

func (s *RedisStore) insert(ctx context.Context, sess *domain.Session) (bool, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return false, fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, redisKey(sess.ID), data, s.opts.TTL).Result()
	if err != nil {
		return false, apperr.WrapRedis(err)
	}
	return ok, nil
}

// Get returns the session for id.
func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.WrapRedis(err)
	}
	return decodeSession(data)
}

func decodeSession(data []byte) (*domain.Session, error) {
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sess.History == nil {
		sess.History = []domain.Turn{}
	}
	return &sess, nil
}

// AppendTurn records one turn.
func (s *RedisStore) AppendTurn(ctx context.Context, id string, speaker domain.Speaker, text string) (*domain.Session, error) {
	return s.Commit(ctx, id, domain.TurnCommit{
		Turns: []domain.Turn{{Speaker: speaker, Text: text, At: s.opts.Now()}},
	})
}

// UpdateMeta merges metadata changes.
func (s *RedisStore) UpdateMeta(ctx context.Context, id string, m domain.MetaUpdate) (*domain.Session, error) {
	return s.Commit(ctx, id, domain.TurnCommit{Meta: m})
}

// Commit applies turns and metadata in one transaction.
func (s *RedisStore) Commit(ctx context.Context, id string, c domain.TurnCommit) (*domain.Session, error) {
	if err := validateTurns(c.Turns); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(sess *domain.Session) error {
		s.apply(sess, c)
		return nil
	})
}

// Update runs fn inside the optimistic transaction. When another writer
// touches the session first, fn runs again on the fresh value.
func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*domain.Session, error) {
	return s.mutate(ctx, id, func(sess *domain.Session) error {
		c, err := fn(sess.Clone())
		if err != nil {
			return err
		}
		if err := validateTurns(c.Turns); err != nil {
			return err
		}
		s.apply(sess, c)
		return nil
	})
}

func (s *RedisStore) apply(sess *domain.Session, c domain.TurnCommit) {
	now := s.opts.Now()
	for _, t := range c.Turns {
		if t.At.IsZero() {
			t.At = now
		}
		sess.AppendTurn(t, s.opts.MaxTurns)
	}
	sess.Apply(c.Meta)
	sess.UpdatedAt = now
}

// mutate reads the session under WATCH, applies fn and writes it back in a
// MULTI block. A concurrent write to the key aborts the transaction, which is
// then retried. Errors from fn are returned as is.
func (s *RedisStore) mutate(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	key := redisKey(id)

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		var (
			out   *domain.Session
			fnErr error
		)
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}

			sess, err := decodeSession(data)
			if err != nil {
				return err
			}
			if fnErr = fn(sess); fnErr != nil {
				return fnErr
			}

			buf, err := json.Marshal(sess)
			if err != nil {
				return fmt.Errorf("encode session: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, buf, s.opts.TTL)
				return nil
			})
			if err == nil {
				out = sess
			}
			return err
		}, key)

		switch {
		case err == nil:
			return out, nil
		case fnErr != nil:
			return nil, fnErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrNotFound), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			return nil, apperr.WrapRedis(err)
		}
	}
	return nil, apperr.WrapRedis(fmt.Errorf("session %s: transaction retries exhausted", id))
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return apperr.WrapRedis(s.client.Ping(ctx).Err())
}
