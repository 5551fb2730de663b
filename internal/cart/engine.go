package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelcommerce/storefront-backend/internal/identity"
	product "github.com/kestrelcommerce/storefront-backend/internal/products"
	pkgerrors "github.com/kestrelcommerce/storefront-backend/pkg/errors"
	"github.com/kestrelcommerce/storefront-backend/pkg/logger"
	"github.com/kestrelcommerce/storefront-backend/pkg/metrics"
)

// Engine owns one logical cart. The authoritative backing store is chosen
// purely by the observed identity state: anonymous reads the guest slot,
// verified reads the per-user remote table, unverified has no cart at all.
//
// Mutations are serialized by a single in-flight guard: an overlapping
// mutation is rejected, never queued. The snapshot only changes after the
// backing store acknowledged a write, so a failed mutation leaves the prior
// snapshot intact with no rollback.
type Engine struct {
	local    LocalStore
	remote   RemoteStore
	enricher product.Service
	logg     *logger.Logger
	metrics  *metrics.CartMetrics

	mu              sync.Mutex
	ident           identity.Identity
	booted          bool
	mergedLogins    map[string]struct{}
	snap            Snapshot
	mutating        bool
	mutatingProduct uuid.UUID
}

// NewEngine builds an engine with explicit store and enrichment deps.
func NewEngine(local LocalStore, remote RemoteStore, enricher product.Service, logg *logger.Logger, cartMetrics *metrics.CartMetrics) (*Engine, error) {
	if local == nil {
		return nil, fmt.Errorf("local cart store required")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote cart store required")
	}
	if enricher == nil {
		return nil, fmt.Errorf("enrichment service required")
	}
	return &Engine{
		local:        local,
		remote:       remote,
		enricher:     enricher,
		logg:         logg,
		metrics:      cartMetrics,
		mergedLogins: map[string]struct{}{},
		snap:         Snapshot{Lines: []EnrichedLine{}, Loading: true},
	}, nil
}

// Observe re-evaluates the engine against the current identity. On the
// transition into the verified state it runs the one-time guest merge, then
// reloads the snapshot from the authoritative store.
func (e *Engine) Observe(ctx context.Context, ident identity.Identity) error {
	e.mu.Lock()
	changed := !e.booted || e.ident != ident
	e.ident = ident
	e.booted = true
	e.mu.Unlock()

	if !changed {
		return nil
	}

	if ident.State == identity.StateVerified {
		e.maybeMerge(ctx, ident)
	}
	return e.reload(ctx, ident)
}

// Snapshot returns a copy of the observable cart state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.snap
	snap.Lines = append([]EnrichedLine(nil), e.snap.Lines...)
	return snap
}

// Has reports whether the in-memory snapshot holds a line for the product.
// It never touches a store.
func (e *Engine) Has(productID uuid.UUID) bool {
	return e.Snapshot().Has(productID)
}

// Add increments the line for the product by qty, creating it when absent.
func (e *Engine) Add(ctx context.Context, productID uuid.UUID, qty int) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return e.mutate(ctx, "add", productID, func(ctx context.Context, ident identity.Identity) error {
		if ident.State == identity.StateAnonymous {
			return e.guestApply(ctx, ident.SessionID, func(lines []Line) []Line {
				return addToLines(lines, productID, qty)
			})
		}
		existing, err := e.remote.FindLine(ctx, ident.UserID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart line")
		}
		if existing != nil {
			return wrapStore(e.remote.UpdateQuantity(ctx, ident.UserID, productID, existing.Quantity+qty))
		}
		return wrapStore(e.remote.Insert(ctx, ident.UserID, productID, qty))
	})
}

// Update sets the line quantity verbatim. qty below one is defined as
// removal; the engine never writes a zero-quantity line. Stock clamping is
// a caller-side policy, applied before this call.
func (e *Engine) Update(ctx context.Context, productID uuid.UUID, qty int) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty < 1 {
		return e.Remove(ctx, productID)
	}
	return e.mutate(ctx, "update", productID, func(ctx context.Context, ident identity.Identity) error {
		if ident.State == identity.StateAnonymous {
			return e.guestApply(ctx, ident.SessionID, func(lines []Line) []Line {
				return setLineQuantity(lines, productID, qty)
			})
		}
		existing, err := e.remote.FindLine(ctx, ident.UserID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart line")
		}
		if existing != nil {
			return wrapStore(e.remote.UpdateQuantity(ctx, ident.UserID, productID, qty))
		}
		return wrapStore(e.remote.Insert(ctx, ident.UserID, productID, qty))
	})
}

// Remove deletes the line for the product. Removing an absent line is a
// no-op success.
func (e *Engine) Remove(ctx context.Context, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return e.mutate(ctx, "remove", productID, func(ctx context.Context, ident identity.Identity) error {
		if ident.State == identity.StateAnonymous {
			return e.guestApply(ctx, ident.SessionID, func(lines []Line) []Line {
				return dropLine(lines, productID)
			})
		}
		return wrapStore(e.remote.DeleteLine(ctx, ident.UserID, productID))
	})
}

// Clear deletes every line from the active store.
func (e *Engine) Clear(ctx context.Context) error {
	return e.mutate(ctx, "clear", uuid.Nil, func(ctx context.Context, ident identity.Identity) error {
		if ident.State == identity.StateAnonymous {
			return wrapStore(e.local.Clear(ctx, ident.SessionID))
		}
		return wrapStore(e.remote.DeleteAll(ctx, ident.UserID))
	})
}

// Refresh forces a full reload from the active store plus re-enrichment.
// It bypasses the mutation guard so collaborators can resync after an
// external change (e.g. checkout emptied the cart).
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	ident := e.ident
	booted := e.booted
	e.mu.Unlock()

	if !booted {
		return nil
	}
	return e.reload(ctx, ident)
}

func (e *Engine) mutate(ctx context.Context, op string, productID uuid.UUID, fn func(context.Context, identity.Identity) error) error {
	start := time.Now()
	ident, err := e.beginMutation(productID)
	if err != nil {
		e.metrics.ObserveMutation(op, outcomeFor(err), time.Since(start))
		return err
	}
	defer e.endMutation()

	if err := fn(ctx, ident); err != nil {
		e.metrics.ObserveMutation(op, "failure", time.Since(start))
		return err
	}

	if err := e.reload(ctx, ident); err != nil {
		e.metrics.ObserveMutation(op, "failure", time.Since(start))
		return err
	}

	e.metrics.ObserveMutation(op, "success", time.Since(start))
	return nil
}

func (e *Engine) beginMutation(productID uuid.UUID) (identity.Identity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.booted {
		return identity.Identity{}, pkgerrors.New(pkgerrors.CodeConflict, "cart is still loading")
	}
	if e.ident.State == identity.StateUnverified {
		return identity.Identity{}, pkgerrors.New(pkgerrors.CodeForbidden, "account not verified")
	}
	if e.mutating {
		return identity.Identity{}, pkgerrors.New(pkgerrors.CodeConflict, "cart mutation already in progress")
	}

	e.mutating = true
	e.mutatingProduct = productID
	e.snap.Mutating = true
	e.snap.MutatingProductID = productID
	return e.ident, nil
}

func (e *Engine) endMutation() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mutating = false
	e.mutatingProduct = uuid.Nil
	e.snap.Mutating = false
	e.snap.MutatingProductID = uuid.Nil
}

// guestApply is the guest-store read-modify-write: load the slot, transform
// the line list, write it back whole.
func (e *Engine) guestApply(ctx context.Context, sessionID string, fn func([]Line) []Line) error {
	lines, err := e.local.Load(ctx, sessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
	}
	return wrapStore(e.local.Save(ctx, sessionID, fn(lines)))
}

func (e *Engine) reload(ctx context.Context, ident identity.Identity) error {
	var lines []Line
	var err error

	switch ident.State {
	case identity.StateAnonymous:
		lines, err = e.local.Load(ctx, ident.SessionID)
	case identity.StateVerified:
		lines, err = e.remote.ListForUser(ctx, ident.UserID)
	default:
		// Blocked or bootstrapping: no store is read.
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	enriched := e.enrichLines(ctx, lines)

	e.mu.Lock()
	e.snap = Snapshot{
		Lines:             enriched,
		Mutating:          e.mutating,
		MutatingProductID: e.mutatingProduct,
	}
	e.mu.Unlock()
	return nil
}

// enrichLines attaches catalog snapshots. A failed batch degrades every
// line instead of failing the cart read; a missing id degrades just that
// line. Lines are never dropped here.
func (e *Engine) enrichLines(ctx context.Context, lines []Line) []EnrichedLine {
	enriched := make([]EnrichedLine, 0, len(lines))
	if len(lines) == 0 {
		return enriched
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	snapshots, err := e.enricher.Enrich(ctx, ids)
	if err != nil {
		if e.logg != nil {
			e.logg.Warn(ctx, "cart enrichment degraded, rendering lines without products")
		}
		snapshots = nil
	}

	for _, line := range lines {
		entry := EnrichedLine{Line: line}
		if snap, ok := snapshots[line.ProductID]; ok {
			copied := snap
			entry.Product = &copied
		}
		enriched = append(enriched, entry)
	}
	return enriched
}

func wrapStore(err error) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart store write failed")
}

func outcomeFor(err error) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeForbidden {
		return "denied"
	}
	return "rejected"
}

func addToLines(lines []Line, productID uuid.UUID, qty int) []Line {
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity += qty
			return lines
		}
	}
	return append(lines, Line{ProductID: productID, Quantity: qty, Owner: OwnerGuest})
}

func setLineQuantity(lines []Line, productID uuid.UUID, qty int) []Line {
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity = qty
			return lines
		}
	}
	return append(lines, Line{ProductID: productID, Quantity: qty, Owner: OwnerGuest})
}

func dropLine(lines []Line, productID uuid.UUID) []Line {
	out := lines[:0]
	for _, line := range lines {
		if line.ProductID == productID {
			continue
		}
		out = append(out, line)
	}
	return out
}
