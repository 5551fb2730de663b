package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	product "github.com/kestrelcommerce/storefront-backend/internal/products"
)

// OwnerGuest marks lines held in the anonymous session slot.
const OwnerGuest = "guest"

// Line is one product entry in the logical cart. ProductID is unique within
// a cart; quantity is additive, never a count of duplicate lines.
type Line struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Owner     string    `json:"-"`
	CreatedAt time.Time `json:"-"`
}

// EnrichedLine pairs a line with a catalog snapshot. Product is nil when
// enrichment degraded; the line is kept and rendered without metadata.
type EnrichedLine struct {
	Line
	Product *product.Snapshot `json:"product,omitempty"`
}

// Snapshot is the observable cart state handed to collaborators. It is a
// value: mutating a copy never affects the engine.
type Snapshot struct {
	Lines             []EnrichedLine `json:"lines"`
	Loading           bool           `json:"is_loading"`
	Mutating          bool           `json:"is_mutating"`
	MutatingProductID uuid.UUID      `json:"-"`
}

// Count returns the number of distinct lines, not the quantity sum.
func (s Snapshot) Count() int {
	return len(s.Lines)
}

// TotalQuantity sums line quantities.
func (s Snapshot) TotalQuantity() int {
	total := 0
	for _, line := range s.Lines {
		total += line.Quantity
	}
	return total
}

// Total computes the monetary total. A line without a product snapshot
// contributes zero.
func (s Snapshot) Total() decimal.Decimal {
	cents := int64(0)
	for _, line := range s.Lines {
		if line.Product == nil {
			continue
		}
		cents += int64(line.Quantity) * int64(line.Product.PriceCents)
	}
	return decimal.New(cents, -2)
}

// Has reports whether the snapshot contains a line for the product. Pure
// in-memory read; never touches a store.
func (s Snapshot) Has(productID uuid.UUID) bool {
	for _, line := range s.Lines {
		if line.ProductID == productID {
			return true
		}
	}
	return false
}

// LineFor returns the snapshot line for the product, or nil.
func (s Snapshot) LineFor(productID uuid.UUID) *EnrichedLine {
	for i := range s.Lines {
		if s.Lines[i].ProductID == productID {
			return &s.Lines[i]
		}
	}
	return nil
}
