package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelcommerce/storefront-backend/internal/identity"
	pkgerrors "github.com/kestrelcommerce/storefront-backend/pkg/errors"
)

func newTestService(t *testing.T, local *memLocal, remote *memRemote) Service {
	t.Helper()
	manager, err := NewManager(local, remote, &stubEnricher{}, nil, nil, 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	svc, err := NewService(manager)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestManagerReusesEngineByKey(t *testing.T) {
	t.Parallel()

	manager, err := NewManager(newMemLocal(), newMemRemote(), &stubEnricher{}, nil, nil, 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()
	ident := identity.Anonymous("sess-1")

	first, err := manager.Engine(ctx, ident)
	if err != nil {
		t.Fatalf("first Engine: %v", err)
	}
	second, err := manager.Engine(ctx, ident)
	if err != nil {
		t.Fatalf("second Engine: %v", err)
	}
	if first != second {
		t.Fatal("same identity key must map to the same engine")
	}

	other, err := manager.Engine(ctx, identity.Anonymous("sess-2"))
	if err != nil {
		t.Fatalf("other Engine: %v", err)
	}
	if other == first {
		t.Fatal("different sessions must not share an engine")
	}
}

func TestManagerEvictsIdleEngines(t *testing.T) {
	t.Parallel()

	manager, err := NewManager(newMemLocal(), newMemRemote(), &stubEnricher{}, nil, nil, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()
	clock := time.Now()
	manager.now = func() time.Time { return clock }

	stale, err := manager.Engine(ctx, identity.Anonymous("sess-stale"))
	if err != nil {
		t.Fatalf("stale Engine: %v", err)
	}

	// sess-active checks in again before the TTL elapses; sess-stale never
	// does.
	clock = clock.Add(30 * time.Minute)
	if _, err := manager.Engine(ctx, identity.Anonymous("sess-active")); err != nil {
		t.Fatalf("active Engine: %v", err)
	}

	clock = clock.Add(45 * time.Minute)
	active, err := manager.Engine(ctx, identity.Anonymous("sess-active"))
	if err != nil {
		t.Fatalf("active Engine after sweep: %v", err)
	}

	manager.mu.Lock()
	_, staleKept := manager.engines["sess-stale"]
	entry, activeKept := manager.engines["sess-active"]
	manager.mu.Unlock()
	if staleKept {
		t.Fatal("idle engine should be evicted")
	}
	if !activeKept || entry.engine != active {
		t.Fatal("recently observed engine must survive the sweep")
	}

	fresh, err := manager.Engine(ctx, identity.Anonymous("sess-stale"))
	if err != nil {
		t.Fatalf("fresh Engine: %v", err)
	}
	if fresh == stale {
		t.Fatal("an evicted session should get a new engine")
	}
}

func TestManagerRejectsEmptyIdentity(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newMemLocal(), newMemRemote())
	_, err := svc.Snapshot(context.Background(), identity.Identity{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceAnonymousToLoginFlow(t *testing.T) {
	t.Parallel()

	local := newMemLocal()
	remote := newMemRemote()
	svc := newTestService(t, local, remote)
	ctx := context.Background()
	productID := uuid.New()

	guest := identity.Anonymous("sess-1")
	snap, err := svc.Add(ctx, guest, productID, 2)
	if err != nil {
		t.Fatalf("guest Add: %v", err)
	}
	if !snap.Has(productID) {
		t.Fatalf("guest snapshot missing line: %+v", snap)
	}

	// The user logs in verified on the same device session. The guest line
	// follows them into the remote cart.
	userID := uuid.New()
	verified := identity.Authenticated(userID, "sess-1", true)
	snap, err = svc.Snapshot(ctx, verified)
	if err != nil {
		t.Fatalf("verified Snapshot: %v", err)
	}
	line := snap.LineFor(productID)
	if line == nil || line.Quantity != 2 {
		t.Fatalf("merged line not visible after login: %+v", snap)
	}
	if got := remote.quantity(userID, productID); got != 2 {
		t.Fatalf("remote cart should hold the merged line, got %d", got)
	}
	if _, ok := local.slots["sess-1"]; ok {
		t.Fatal("guest slot should be cleared after login")
	}

	snap, err = svc.Update(ctx, verified, productID, 5)
	if err != nil {
		t.Fatalf("verified Update: %v", err)
	}
	if line := snap.LineFor(productID); line == nil || line.Quantity != 5 {
		t.Fatalf("update not reflected: %+v", snap)
	}
}

func TestServiceUnverifiedReadsEmptyCart(t *testing.T) {
	t.Parallel()

	local := newMemLocal()
	local.slots["sess-1"] = []Line{{ProductID: uuid.New(), Quantity: 3, Owner: OwnerGuest}}
	svc := newTestService(t, local, newMemRemote())

	snap, err := svc.Snapshot(context.Background(), identity.Authenticated(uuid.New(), "sess-1", false))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Count() != 0 {
		t.Fatalf("unverified account must see an empty cart, got %+v", snap)
	}
}
