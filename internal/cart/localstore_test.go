package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelcommerce/storefront-backend/pkg/redis"
)

type fakeRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	switch v := value.(type) {
	case string:
		f.values[key] = v
	case []byte:
		f.values[key] = string(v)
	}
	f.ttls[key] = ttl
	return nil
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	return true, f.Set(context.Background(), key, value, ttl)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeRedis) GuestCartKey(sessionID string) string {
	return "sf:cart:guest:" + sessionID
}

func (f *fakeRedis) MergeFlagKey(userID, sessionID, loginID string) string {
	return "sf:cart:merged:" + userID + ":" + sessionID + ":" + loginID
}

func newLocalStore(t *testing.T, client redisStore) *RedisLocalStore {
	t.Helper()
	store, err := NewRedisLocalStore(client, nil, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("NewRedisLocalStore: %v", err)
	}
	return store
}

func TestRedisLocalStoreRoundTrip(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	store := newLocalStore(t, client)
	ctx := context.Background()
	productID := uuid.New()

	if err := store.Save(ctx, "sess-1", []Line{{ProductID: productID, Quantity: 3, Owner: OwnerGuest}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	lines, err := store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(lines) != 1 || lines[0].ProductID != productID || lines[0].Quantity != 3 {
		t.Fatalf("unexpected lines: %+v", lines)
	}
	if lines[0].Owner != OwnerGuest {
		t.Fatalf("loaded line should be guest-owned, got %q", lines[0].Owner)
	}
}

func TestRedisLocalStoreMissingSlotIsEmpty(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t, newFakeRedis())
	lines, err := store.Load(context.Background(), "sess-unknown")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("missing slot should read empty, got %+v", lines)
	}
}

func TestRedisLocalStoreCorruptSlotIsEmpty(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	client.values[client.GuestCartKey("sess-1")] = "{not json"
	store := newLocalStore(t, client)

	lines, err := store.Load(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("corrupt slot must not error, got %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("corrupt slot should read empty, got %+v", lines)
	}
}

func TestRedisLocalStoreSkipsInvalidEntries(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	good := uuid.New()
	client.values[client.GuestCartKey("sess-1")] = `[` +
		`{"product_id":"` + good.String() + `","quantity":2},` +
		`{"product_id":"not-a-uuid","quantity":1},` +
		`{"product_id":"` + uuid.New().String() + `","quantity":0}]`
	store := newLocalStore(t, client)

	lines, err := store.Load(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(lines) != 1 || lines[0].ProductID != good {
		t.Fatalf("expected only the valid entry, got %+v", lines)
	}
}

func TestRedisLocalStoreClear(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	store := newLocalStore(t, client)
	ctx := context.Background()

	if err := store.Save(ctx, "sess-1", []Line{{ProductID: uuid.New(), Quantity: 1}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	lines, err := store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("cleared slot should be empty, got %+v", lines)
	}
}

func TestRedisLocalStoreMarkMergedOnce(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t, newFakeRedis())
	ctx := context.Background()
	userID := uuid.New().String()

	first, err := store.MarkMerged(ctx, userID, "sess-1", "login-1")
	if err != nil {
		t.Fatalf("first MarkMerged: %v", err)
	}
	if !first {
		t.Fatal("first claim should succeed")
	}

	second, err := store.MarkMerged(ctx, userID, "sess-1", "login-1")
	if err != nil {
		t.Fatalf("second MarkMerged: %v", err)
	}
	if second {
		t.Fatal("second claim must be rejected")
	}

	other, err := store.MarkMerged(ctx, userID, "sess-2", "login-1")
	if err != nil {
		t.Fatalf("other-session MarkMerged: %v", err)
	}
	if !other {
		t.Fatal("a different session gets its own flag")
	}

	relogin, err := store.MarkMerged(ctx, userID, "sess-1", "login-2")
	if err != nil {
		t.Fatalf("re-login MarkMerged: %v", err)
	}
	if !relogin {
		t.Fatal("a new login in the same session gets its own flag")
	}
}
