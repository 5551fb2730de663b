package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kestrelcommerce/storefront-backend/pkg/enums"
)

// Product represents the canonical catalog listing.
type Product struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU               string              `gorm:"column:sku;not null;uniqueIndex"`
	Name              string              `gorm:"column:name;not null"`
	Slug              string              `gorm:"column:slug;not null;uniqueIndex"`
	ThumbnailURL      *string             `gorm:"column:thumbnail_url"`
	StockQuantity     int                 `gorm:"column:stock_quantity;not null;default:0"`
	WithCustomerCount int                 `gorm:"column:with_customer_count;not null;default:0"`
	Status            enums.ProductStatus `gorm:"column:status;not null;default:'draft'"`
	PriceCents        int                 `gorm:"column:price_cents;not null"`
	Tags              pq.StringArray      `gorm:"column:tags;type:text[]"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
