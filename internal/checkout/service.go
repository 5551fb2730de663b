package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kestrelcommerce/storefront-backend/internal/cart"
	"github.com/kestrelcommerce/storefront-backend/internal/identity"
	product "github.com/kestrelcommerce/storefront-backend/internal/products"
	"github.com/kestrelcommerce/storefront-backend/pkg/db/models"
	"github.com/kestrelcommerce/storefront-backend/pkg/enums"
	pkgerrors "github.com/kestrelcommerce/storefront-backend/pkg/errors"
	"github.com/kestrelcommerce/storefront-backend/pkg/logger"
)

// Receipt summarizes a placed checkout.
type Receipt struct {
	OrderIDs []uuid.UUID     `json:"order_ids"`
	Lines    int             `json:"lines"`
	Total    decimal.Decimal `json:"total"`
}

type orderWriter interface {
	CreateOrders(ctx context.Context, rows []models.Order) error
}

// Service turns the current cart into order rows. It is a cart collaborator:
// it only reads the cart through the facade and resyncs it afterwards,
// never reaching into a cart store directly.
type Service interface {
	PlaceOrder(ctx context.Context, ident identity.Identity) (*Receipt, error)
}

type service struct {
	carts cart.Service
	repo  orderWriter
	logg  *logger.Logger
}

// NewService wires the checkout flow.
func NewService(carts cart.Service, repo orderWriter, logg *logger.Logger) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	return &service{carts: carts, repo: repo, logg: logg}, nil
}

// PlaceOrder checks out the verified user's full cart. Quantities above
// available stock are clamped, not rejected; a line whose product metadata
// is unavailable aborts the checkout because it cannot be priced.
func (s *service) PlaceOrder(ctx context.Context, ident identity.Identity) (*Receipt, error) {
	if ident.State != identity.StateVerified {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "checkout requires a verified account")
	}

	snap, err := s.carts.Refresh(ctx, ident)
	if err != nil {
		return nil, err
	}
	if snap.Count() == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	rows := make([]models.Order, 0, snap.Count())
	totalCents := int64(0)
	for _, line := range snap.Lines {
		if line.Product == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "product details unavailable, try again").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
		if line.Product.Status != enums.ProductStatusActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is no longer available").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
		if line.Product.StockQuantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is out of stock").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}

		qty := product.ClampToStock(line.Product, line.Quantity)
		lineTotal := qty * line.Product.PriceCents
		rows = append(rows, models.Order{
			ID:             uuid.New(),
			UserID:         ident.UserID,
			ProductID:      line.ProductID,
			Quantity:       qty,
			UnitPriceCents: line.Product.PriceCents,
			TotalCents:     lineTotal,
			Status:         enums.OrderStatusPending,
		})
		totalCents += int64(lineTotal)
	}

	if err := s.repo.CreateOrders(ctx, rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write orders")
	}

	if _, err := s.carts.Clear(ctx, ident); err != nil {
		// Orders are placed; a stale cart is recoverable by the next refresh.
		if s.logg != nil {
			s.logg.Error(s.logg.WithUserID(ctx, ident.UserID.String()), "cart not cleared after checkout", err)
		}
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return &Receipt{
		OrderIDs: ids,
		Lines:    len(rows),
		Total:    decimal.New(totalCents, -2),
	}, nil
}
