package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ameotech/triage/internal/domain"
)

// newTestRedisStore connects to REDIS_URL or skips.
func newTestRedisStore(t *testing.T, opts Options) *RedisStore {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	client, err := NewRedisClient(ctx, RedisConfig{URL: url})
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, opts)
}

func TestRedisStoreLifecycle(t *testing.T) {
	s := newTestRedisStore(t, Options{MaxTurns: 3, TTL: time.Minute})
	ctx := context.Background()

	sess, err := s.Create(ctx, "/pricing")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { s.client.Del(context.Background(), redisKey(sess.ID)) })

	for _, text := range []string{"a", "b", "c", "d"} {
		if _, err := s.AppendTurn(ctx, sess.ID, domain.SpeakerUser, text); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}
	got, err := s.UpdateMeta(ctx, sess.ID, domain.MetaUpdate{Segment: domain.Ptr("pricing")})
	if err != nil {
		t.Fatalf("UpdateMeta: %v", err)
	}
	if len(got.History) != 3 || got.History[0].Text != "b" || got.Segment != "pricing" {
		t.Fatalf("unexpected session: %+v", got)
	}

	ttl, err := s.client.TTL(ctx, redisKey(sess.ID)).Result()
	if err != nil || ttl <= 0 {
		t.Fatalf("ttl = %v err = %v", ttl, err)
	}

	if _, err := s.Get(ctx, NewID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing: %v", err)
	}
}

func TestRedisStoreConcurrentCommits(t *testing.T) {
	s := newTestRedisStore(t, Options{MaxTurns: 100, TTL: time.Minute})
	ctx := context.Background()

	id := NewID()
	if _, created, err := s.Ensure(ctx, id, "/"); err != nil || !created {
		t.Fatalf("Ensure: created=%v err=%v", created, err)
	}
	t.Cleanup(func() { s.client.Del(context.Background(), redisKey(id)) })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AppendTurn(ctx, id, domain.SpeakerUser, "x"); err != nil {
				t.Errorf("AppendTurn: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.History) != 10 {
		t.Fatalf("history length = %d, want 10", len(got.History))
	}
}

func TestRedisStoreConcurrentUpdates(t *testing.T) {
	s := newTestRedisStore(t, Options{TTL: time.Minute})
	ctx := context.Background()

	sess, err := s.Create(ctx, "/")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { s.client.Del(context.Background(), redisKey(sess.ID)) })

	// Few enough writers that the optimistic retries always succeed.
	const writers = 5
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Update(ctx, sess.ID, incrementLoops); err != nil {
				t.Errorf("Update: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ClarifyLoops != writers {
		t.Fatalf("clarify loops = %d, want %d", got.ClarifyLoops, writers)
	}
}
