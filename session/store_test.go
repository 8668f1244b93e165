package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb, "sa")
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func testSession(token, username string) *Session {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &Session{
		Token:     token,
		AccountID: "acc-" + username,
		Username:  username,
		Origin:    "9.9.9.9",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestCreateAndGet(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession("tok-1", "bob")
	if _, err := store.Create(ctx, sess, 2*time.Hour); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, "tok-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Token != "tok-1" || got.Username != "bob" || got.AccountID != "acc-bob" || got.Origin != "9.9.9.9" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if !got.ExpiresAt.Equal(sess.ExpiresAt) || !got.CreatedAt.Equal(sess.CreatedAt) {
		t.Fatalf("timestamps not preserved: %+v", got)
	}
}

func TestGetUnknownToken(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()

	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateReplacesEveryPreviousSession(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		// Simulate stray rows left by an older writer.
		data, err := Encode(testSession("", "alice"))
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		token := fmt.Sprintf("stale-%d", i)
		if err := mr.Set("{sa}:s:"+token, string(data)); err != nil {
			t.Fatalf("seed: %v", err)
		}
		if _, err := mr.SAdd("{sa}:u:alice", token); err != nil {
			t.Fatalf("seed index: %v", err)
		}
	}

	replaced, err := store.Create(ctx, testSession("fresh", "alice"), time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if replaced != 3 {
		t.Fatalf("expected 3 replaced sessions, got %d", replaced)
	}

	count, err := store.ActiveSessionCount(ctx, "alice")
	if err != nil {
		t.Fatalf("ActiveSessionCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one session, got %d", count)
	}
	if _, err := store.Get(ctx, "stale-0"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected stale token gone, got %v", err)
	}
}

func TestConcurrentCreateLeavesOneSession(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = store.Create(ctx, testSession(fmt.Sprintf("t-%d", i), "carol"), time.Hour)
		}(i)
	}
	wg.Wait()

	count, err := store.ActiveSessionCount(ctx, "carol")
	if err != nil {
		t.Fatalf("ActiveSessionCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one surviving session, got %d", count)
	}
}

func TestDeleteAllForUserIsIdempotentAndScoped(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if _, err := store.Create(ctx, testSession("a-1", "alice"), time.Hour); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create(ctx, testSession("b-1", "bob"), time.Hour); err != nil {
		t.Fatalf("Create: %v", err)
	}

	removed, err := store.DeleteAllForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("DeleteAllForUser: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	removed, err = store.DeleteAllForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("second DeleteAllForUser: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected 0 removed on second call, got %d", removed)
	}

	if _, err := store.Get(ctx, "b-1"); err != nil {
		t.Fatalf("other user's session must survive: %v", err)
	}
}

func TestCreateSetsKeyTTL(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()

	if _, err := store.Create(context.Background(), testSession("ttl", "dave"), 90*time.Minute); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ttl := mr.TTL("{sa}:s:ttl"); ttl != 90*time.Minute {
		t.Fatalf("expected 90m ttl, got %v", ttl)
	}

	mr.FastForward(91 * time.Minute)
	if _, err := store.Get(context.Background(), "ttl"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected key reclaimed after ttl, got %v", err)
	}
}

func TestKeysShareOneHashTag(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	for _, sess := range []*Session{testSession("t1", "alice"), testSession("t2", "bob")} {
		if _, err := store.Create(ctx, sess, time.Hour); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	keys := mr.Keys()
	if len(keys) != 4 {
		t.Fatalf("expected two sessions and two indexes, got %v", keys)
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, "{sa}:") {
			t.Fatalf("key %q is outside the {sa} hash tag", key)
		}
	}
}

func TestStoreRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := NewStore(rdb, "sa")
	mr.Close()

	if _, err := store.Get(context.Background(), "x"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.Ping(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable from Ping, got %v", err)
	}
}
