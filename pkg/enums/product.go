package enums

// ProductStatus describes the lifecycle of a catalog listing.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusArchived ProductStatus = "archived"
)

func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusActive, ProductStatusDraft, ProductStatusArchived:
		return true
	}
	return false
}

// OrderStatus describes a placed order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCanceled  OrderStatus = "canceled"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCanceled:
		return true
	}
	return false
}
