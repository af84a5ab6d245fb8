package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"discord-invite-tracker/internal/models"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(nil, Config{}, nil)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestGetFetchesOnceThenHits(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("value"), nil
	}

	got, err := c.Get(ctx, "k", fetch)
	if err != nil || string(got) != "value" {
		t.Fatalf("get = %q, %v", got, err)
	}
	c.wait()

	got, err = c.Get(ctx, "k", fetch)
	if err != nil || string(got) != "value" {
		t.Fatalf("second get = %q, %v", got, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch called %d times, want 1", calls.Load())
	}
	if s := c.Stats(); s.L1Hits != 1 || s.L1Misses != 1 {
		t.Fatalf("stats = %+v", s)
	}

	c.Delete(ctx, "k")
	if _, err := c.Get(ctx, "k", fetch); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Fatalf("fetch after delete called %d times, want 2", calls.Load())
	}
}

func TestGetPropagatesFetchError(t *testing.T) {
	c := newTestCache(t)
	boom := errors.New("boom")
	if _, err := c.Get(context.Background(), "k", func(context.Context) ([]byte, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

type countingSource struct {
	mu      sync.Mutex
	calls   int
	entries []models.LeaderboardEntry
}

func (s *countingSource) GetInviteLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.entries) > limit {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

func TestLeaderboardCachesAndInvalidates(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	src := &countingSource{entries: []models.LeaderboardEntry{
		{InviterID: "a", Joins: 5},
		{InviterID: "b", Joins: 2},
	}}
	lb := NewLeaderboard(c, src, 0)

	top, err := lb.Top(ctx)
	if err != nil || len(top) != 2 || top[0].InviterID != "a" || top[0].Joins != 5 {
		t.Fatalf("top = %+v, %v", top, err)
	}
	c.wait()
	if _, err := lb.Top(ctx); err != nil {
		t.Fatal(err)
	}
	if src.calls != 1 {
		t.Fatalf("source calls = %d, want 1", src.calls)
	}

	src.entries = append(src.entries, models.LeaderboardEntry{InviterID: "c", Joins: 9})
	lb.Invalidate(ctx)
	top, err = lb.Top(ctx)
	if err != nil || len(top) != 3 {
		t.Fatalf("top after invalidate = %+v, %v", top, err)
	}
	if src.calls != 2 {
		t.Fatalf("source calls = %d, want 2", src.calls)
	}
}

func TestLeaderboardEmpty(t *testing.T) {
	c := newTestCache(t)
	lb := NewLeaderboard(c, &countingSource{}, 10)
	top, err := lb.Top(context.Background())
	if err != nil || len(top) != 0 {
		t.Fatalf("top = %+v, %v", top, err)
	}
}

func TestLocalCooldown(t *testing.T) {
	cd, err := NewCooldowns("vouch", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(cd.Close)
	ctx := context.Background()

	now := time.Now()
	cd.now = func() time.Time { return now }

	if _, ok, err := cd.Acquire(ctx, "u1", 10*time.Second); err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	left, ok, err := cd.Acquire(ctx, "u1", 10*time.Second)
	if err != nil || ok {
		t.Fatalf("second acquire = %v, %v; want blocked", ok, err)
	}
	if left <= 0 || left > 10*time.Second {
		t.Fatalf("time left = %v", left)
	}
	if _, ok, _ := cd.Acquire(ctx, "u2", 10*time.Second); !ok {
		t.Fatal("cooldown leaked across keys")
	}

	now = now.Add(11 * time.Second)
	if _, ok, _ := cd.Acquire(ctx, "u1", 10*time.Second); !ok {
		t.Fatal("cooldown did not lapse")
	}
}
