package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// DiscountConfig is a product-scoped discount rule. Nil bounds are open.
type DiscountConfig struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index"`
	Name          string             `gorm:"column:name;not null"`
	DiscountType  enums.DiscountType `gorm:"column:discount_type;type:discount_type;not null"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric(14,2);not null"`
	MinQuantity   *int               `gorm:"column:min_quantity"`
	MaxQuantity   *int               `gorm:"column:max_quantity"`
	StartDate     *time.Time         `gorm:"column:start_date"`
	EndDate       *time.Time         `gorm:"column:end_date"`
	IsActive      bool               `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (DiscountConfig) TableName() string { return "discount_configs" }
