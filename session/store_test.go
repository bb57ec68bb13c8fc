package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newSessionStoreTest(t *testing.T) (*Store, *redis.Client, *fakeClock) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	store := NewStore(rdb, Config{Prefix: "ts", TTL: 30 * 24 * time.Hour, Now: clock.Now})
	return store, rdb, clock
}

func TestCreateAndGet(t *testing.T) {
	store, _, clock := newSessionStoreTest(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "u-1", "Mozilla/5.0")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.SessionID == "" {
		t.Fatal("expected generated session id")
	}
	if !sess.ExpiresAt.Equal(clock.Now().Add(30 * 24 * time.Hour)) {
		t.Fatalf("unexpected expiry: %v", sess.ExpiresAt)
	}

	got, err := store.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "u-1" || got.ClientDescriptor != "Mozilla/5.0" || !got.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestGetMissingAndExpired(t *testing.T) {
	store, _, clock := newSessionStoreTest(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	sess, _ := store.Create(ctx, "u-1", "")
	clock.Advance(30*24*time.Hour + time.Millisecond)
	if _, err := store.Get(ctx, sess.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session to be not found, got %v", err)
	}
}

func TestExtendMovesExpiry(t *testing.T) {
	store, rdb, clock := newSessionStoreTest(t)
	ctx := context.Background()

	sess, _ := store.Create(ctx, "u-1", "cli")
	clock.Advance(29 * 24 * time.Hour)
	next := clock.Now().Add(30 * 24 * time.Hour)
	if err := store.Extend(ctx, sess.SessionID, next); err != nil {
		t.Fatalf("extend: %v", err)
	}

	got, err := store.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.ExpiresAt.Equal(next) {
		t.Fatalf("expected expiry %v, got %v", next, got.ExpiresAt)
	}
	if got.ClientDescriptor != "cli" || got.UserID != "u-1" {
		t.Fatalf("extend must not touch other fields: %+v", got)
	}

	ttl, err := rdb.PTTL(ctx, store.key(sess.SessionID)).Result()
	if err != nil {
		t.Fatalf("pttl: %v", err)
	}
	if ttl <= 29*24*time.Hour {
		t.Fatalf("expected key ttl to follow the new expiry, got %v", ttl)
	}
}

func TestExtendNeverResurrectsDeletedSession(t *testing.T) {
	store, rdb, clock := newSessionStoreTest(t)
	ctx := context.Background()

	sess, _ := store.Create(ctx, "u-1", "")
	if err := store.Delete(ctx, sess.SessionID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err := store.Extend(ctx, sess.SessionID, clock.Now().Add(time.Hour))
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	exists, _ := rdb.Exists(ctx, store.key(sess.SessionID)).Result()
	if exists != 0 {
		t.Fatal("extend recreated a deleted session")
	}
}

func TestExtendExpiredSessionFails(t *testing.T) {
	store, _, clock := newSessionStoreTest(t)
	ctx := context.Background()

	sess, _ := store.Create(ctx, "u-1", "")
	clock.Advance(31 * 24 * time.Hour)
	if err := store.Extend(ctx, sess.SessionID, clock.Now().Add(time.Hour)); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteSessionIdempotentAndIndex(t *testing.T) {
	store, rdb, _ := newSessionStoreTest(t)
	ctx := context.Background()

	sess, _ := store.Create(ctx, "u-1", "")
	if err := store.Delete(ctx, sess.SessionID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(ctx, sess.SessionID); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	members, err := rdb.SMembers(ctx, store.userKey("u-1")).Result()
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected no user index members, got %v", members)
	}
}

func TestDeleteAllForUser(t *testing.T) {
	store, _, _ := newSessionStoreTest(t)
	ctx := context.Background()

	a, _ := store.Create(ctx, "u-1", "a")
	b, _ := store.Create(ctx, "u-1", "b")
	other, _ := store.Create(ctx, "u-2", "c")

	n, err := store.DeleteAllForUser(ctx, "u-1")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}
	for _, id := range []string{a.SessionID, b.SessionID} {
		if _, err := store.Get(ctx, id); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("expected %s gone, got %v", id, err)
		}
	}
	if _, err := store.Get(ctx, other.SessionID); err != nil {
		t.Fatalf("other user's session must survive: %v", err)
	}

	n, err = store.DeleteAllForUser(ctx, "u-1")
	if err != nil || n != 0 {
		t.Fatalf("expected idempotent delete all, got n=%d err=%v", n, err)
	}
}

func TestListActiveNewestFirstAndPrunes(t *testing.T) {
	store, rdb, clock := newSessionStoreTest(t)
	ctx := context.Background()

	old, _ := store.Create(ctx, "u-1", "old")
	clock.Advance(time.Hour)
	mid, _ := store.Create(ctx, "u-1", "mid")
	clock.Advance(time.Hour)
	newest, _ := store.Create(ctx, "u-1", "new")

	// A dangling index entry whose row is gone.
	if err := rdb.SAdd(ctx, store.userKey("u-1"), "ghost").Err(); err != nil {
		t.Fatalf("sadd: %v", err)
	}

	list, err := store.ListActive(ctx, "u-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(list))
	}
	want := []string{newest.SessionID, mid.SessionID, old.SessionID}
	for i, sess := range list {
		if sess.SessionID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], sess.SessionID)
		}
	}

	isMember, _ := rdb.SIsMember(ctx, store.userKey("u-1"), "ghost").Result()
	if isMember {
		t.Fatal("expected dangling index entry to be pruned")
	}

	// Move past the oldest session's expiry only.
	clock.Advance(30*24*time.Hour - 2*time.Hour + time.Minute)
	list, err = store.ListActive(ctx, "u-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[1].SessionID != mid.SessionID {
		t.Fatalf("expected expired session to be filtered, got %d sessions", len(list))
	}
}

func TestConcurrentExtendAndDeleteIsTerminal(t *testing.T) {
	store, _, clock := newSessionStoreTest(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		sess, _ := store.Create(ctx, "u-race", "")
		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_ = store.Extend(ctx, sess.SessionID, clock.Now().Add(time.Hour))
		}()
		go func() {
			defer wg.Done()
			<-start
			_ = store.Delete(ctx, sess.SessionID)
		}()
		close(start)
		wg.Wait()

		if _, err := store.Get(ctx, sess.SessionID); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("iteration %d: deleted session came back: %v", i, err)
		}
	}
}
