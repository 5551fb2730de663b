package checkout

import (
	"context"

	"gorm.io/gorm"

	"github.com/kestrelcommerce/storefront-backend/pkg/db/models"
)

// GormRepository persists order rows.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository constructs an order repository bound to the provided DB.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// CreateOrders writes all rows in one transaction; either every line of the
// checkout lands or none does.
func (r *GormRepository) CreateOrders(ctx context.Context, rows []models.Order) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
}
