package product

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kestrelcommerce/storefront-backend/pkg/db/models"
	"github.com/kestrelcommerce/storefront-backend/pkg/enums"
	pkgerrors "github.com/kestrelcommerce/storefront-backend/pkg/errors"
)

// Snapshot is the read-only product view attached to a cart line. It is
// fetched, never owned: a stale snapshot is replaced on the next refresh.
type Snapshot struct {
	ID                uuid.UUID           `json:"id"`
	Name              string              `json:"name"`
	SKU               string              `json:"sku"`
	Slug              string              `json:"slug"`
	ThumbnailURL      *string             `json:"thumbnail_url,omitempty"`
	StockQuantity     int                 `json:"stock_quantity"`
	WithCustomerCount int                 `json:"with_customer_count"`
	Status            enums.ProductStatus `json:"status"`
	PriceCents        int                 `json:"price_cents"`
}

type lister interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Service batches catalog lookups for cart display and validation.
type Service interface {
	Enrich(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Snapshot, error)
}

type service struct {
	repo lister
}

// NewService builds the enrichment service.
func NewService(repo lister) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

// Enrich resolves current metadata for the given product ids in one batched
// lookup. Ids with no matching product are absent from the returned map.
func (s *service) Enrich(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Snapshot, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]Snapshot{}, nil
	}

	rows, err := s.repo.ListByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	out := make(map[uuid.UUID]Snapshot, len(rows))
	for _, row := range rows {
		out[row.ID] = toSnapshot(row)
	}
	return out, nil
}

func toSnapshot(p models.Product) Snapshot {
	return Snapshot{
		ID:                p.ID,
		Name:              p.Name,
		SKU:               p.SKU,
		Slug:              p.Slug,
		ThumbnailURL:      p.ThumbnailURL,
		StockQuantity:     p.StockQuantity,
		WithCustomerCount: p.WithCustomerCount,
		Status:            p.Status,
		PriceCents:        p.PriceCents,
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ClampToStock is the shared caller-side quantity policy: the engine never
// clamps, so every call site that wants stock limiting applies this before
// mutating the cart.
func ClampToStock(snap *Snapshot, qty int) int {
	if qty < 1 {
		return qty
	}
	if snap == nil {
		return qty
	}
	if snap.StockQuantity > 0 && qty > snap.StockQuantity {
		return snap.StockQuantity
	}
	return qty
}
