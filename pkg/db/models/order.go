package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kestrelcommerce/storefront-backend/pkg/enums"
)

// Order is the single-line order written by the checkout collaborator.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID      uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	Quantity       int               `gorm:"column:quantity;not null"`
	UnitPriceCents int               `gorm:"column:unit_price_cents;not null"`
	TotalCents     int               `gorm:"column:total_cents;not null"`
	Status         enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
}
