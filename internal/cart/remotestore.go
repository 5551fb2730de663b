package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kestrelcommerce/storefront-backend/pkg/db/models"
)

// GormRemoteStore persists cart lines one row per (user, product).
type GormRemoteStore struct {
	db *gorm.DB
}

// NewGormRemoteStore constructs a remote cart store bound to the provided DB.
func NewGormRemoteStore(db *gorm.DB) *GormRemoteStore {
	return &GormRemoteStore{db: db}
}

// ListForUser returns all cart lines for the user, oldest first.
func (r *GormRemoteStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]Line, error) {
	var rows []models.CartLine
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, fromModel(row))
	}
	return lines, nil
}

// FindLine loads the user's line for one product. Absence is (nil, nil),
// not an error.
func (r *GormRemoteStore) FindLine(ctx context.Context, userID, productID uuid.UUID) (*Line, error) {
	var row models.CartLine
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	line := fromModel(row)
	return &line, nil
}

// Insert creates a new line row.
func (r *GormRemoteStore) Insert(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	row := models.CartLine{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// UpdateQuantity sets the quantity on an existing line row.
func (r *GormRemoteStore) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Update("quantity", quantity).Error
}

// DeleteLine removes the user's line for one product. Deleting a missing
// line is a no-op.
func (r *GormRemoteStore) DeleteLine(ctx context.Context, userID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartLine{}).Error
}

// DeleteAll removes every line for the user.
func (r *GormRemoteStore) DeleteAll(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartLine{}).Error
}

func fromModel(row models.CartLine) Line {
	return Line{
		ProductID: row.ProductID,
		Quantity:  row.Quantity,
		Owner:     row.UserID.String(),
		CreatedAt: row.CreatedAt,
	}
}
