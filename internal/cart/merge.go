package cart

import (
	"context"

	"github.com/google/uuid"

	"github.com/kestrelcommerce/storefront-backend/internal/identity"
)

// maybeMerge runs the one-time additive guest merge for a verified login.
//
// The flow is two-phase: claim the per-login merge flag first (SETNX), then
// copy lines. Claiming first means a crash mid-merge loses guest lines
// rather than double-adding them on the next login; guest carts are
// best-effort and duplicated quantities are the worse failure.
//
// Merge failures never surface to the caller. The remote cart stays usable
// whatever happens to the guest slot.
func (e *Engine) maybeMerge(ctx context.Context, ident identity.Identity) {
	memo := mergeMemoKey(ident)
	e.mu.Lock()
	_, done := e.mergedLogins[memo]
	e.mu.Unlock()
	if done {
		return
	}

	guest, err := e.local.Load(ctx, ident.SessionID)
	if err != nil {
		if e.logg != nil {
			e.logg.Warn(ctx, "guest cart unavailable, skipping merge")
		}
		return
	}
	if len(guest) == 0 {
		e.rememberMerged(memo)
		return
	}

	claimed, err := e.local.MarkMerged(ctx, ident.UserID.String(), ident.SessionID, ident.LoginID)
	if err != nil {
		if e.logg != nil {
			e.logg.Error(ctx, "merge flag unavailable, deferring merge", err)
		}
		return
	}
	if !claimed {
		// Another instance already claimed this login's merge. Finish its
		// cleanup in case it died before clearing the slot.
		e.rememberMerged(memo)
		e.clearGuestSlot(ctx, ident.SessionID)
		return
	}

	e.metrics.IncMergeRun()

	merged := 0
	for _, line := range guest {
		if err := e.mergeLine(ctx, ident.UserID, line); err != nil {
			e.metrics.IncMergeConflict()
			if e.logg != nil {
				e.logg.Error(e.logg.WithField(ctx, "product_id", line.ProductID.String()), "guest line failed to merge, skipping", err)
			}
			continue
		}
		merged++
	}
	e.metrics.AddMergedLines(merged)

	e.rememberMerged(memo)
	e.clearGuestSlot(ctx, ident.SessionID)
}

// mergeLine adds one guest line into the remote cart. Quantities are summed
// when the product is already present; the guest copy never replaces the
// remote quantity.
func (e *Engine) mergeLine(ctx context.Context, userID uuid.UUID, line Line) error {
	existing, err := e.remote.FindLine(ctx, userID, line.ProductID)
	if err != nil {
		return err
	}
	if existing != nil {
		return e.remote.UpdateQuantity(ctx, userID, line.ProductID, existing.Quantity+line.Quantity)
	}
	return e.remote.Insert(ctx, userID, line.ProductID, line.Quantity)
}

func (e *Engine) rememberMerged(memo string) {
	e.mu.Lock()
	e.mergedLogins[memo] = struct{}{}
	e.mu.Unlock()
}

// mergeMemoKey scopes the in-process merge memo to one login session. A
// re-login mints a new login id, so its merge is considered afresh.
func mergeMemoKey(ident identity.Identity) string {
	return ident.UserID.String() + ":" + ident.SessionID + ":" + ident.LoginID
}

// clearGuestSlot empties the guest slot after a merge, retrying once. The
// merge flag already prevents a re-merge, so a leftover slot only wastes a
// redis key until its TTL.
func (e *Engine) clearGuestSlot(ctx context.Context, sessionID string) {
	if err := e.local.Clear(ctx, sessionID); err != nil {
		if err = e.local.Clear(ctx, sessionID); err != nil && e.logg != nil {
			e.logg.Error(e.logg.WithSessionID(ctx, sessionID), "guest cart slot not cleared after merge", err)
		}
	}
}
