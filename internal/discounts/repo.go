package discounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
)

// Repository reads the discount rules configured for a product.
type Repository interface {
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.DiscountConfig, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a discount repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ListByProduct returns every rule for the product, active or not. Eligibility
// is decided by the engine so inactive rules selected by id are still skipped
// consistently.
func (r *repository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.DiscountConfig, error) {
	var rows []models.DiscountConfig
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
