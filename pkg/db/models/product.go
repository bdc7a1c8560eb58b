package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog item a group order batches against. Prices are
// copied into GroupOrder when a batch opens and never read live afterwards.
type Product struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name         string          `gorm:"column:name;not null"`
	UnitLabel    string          `gorm:"column:unit_label;not null"`
	UnitSize     decimal.Decimal `gorm:"column:unit_size;type:numeric(10,2);not null"`
	MRP          decimal.Decimal `gorm:"column:mrp;type:numeric(14,2);not null"`
	SellingPrice decimal.Decimal `gorm:"column:selling_price;type:numeric(14,2);not null"`
	MinOrderQty  int             `gorm:"column:min_order_qty;not null;default:1"`
	MaxOrderQty  int             `gorm:"column:max_order_qty;not null;default:0"`
	IsActive     bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
