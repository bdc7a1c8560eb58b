package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// GroupOrder is one pooled batch against a product. The current_* columns and
// participant_count form the ledger and are only changed through atomic
// expression updates.
type GroupOrder struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	BatchNumber       string                 `gorm:"column:batch_number;not null;uniqueIndex:group_orders_batch_number_key"`
	ProductID         uuid.UUID              `gorm:"column:product_id;type:uuid;not null;index"`
	MinThreshold      decimal.Decimal        `gorm:"column:min_threshold;type:numeric(14,2);not null"`
	TargetQuantity    int                    `gorm:"column:target_quantity;not null;default:0"`
	PricePerUnit      decimal.Decimal        `gorm:"column:price_per_unit;type:numeric(14,2);not null"`
	Status            enums.GroupOrderStatus `gorm:"column:status;type:group_order_status;not null"`
	CurrentAmount     decimal.Decimal        `gorm:"column:current_amount;type:numeric(14,2);not null;default:0"`
	CurrentQuantity   int                    `gorm:"column:current_quantity;not null;default:0"`
	ParticipantCount  int                    `gorm:"column:participant_count;not null;default:0"`
	ExpiresAt         time.Time              `gorm:"column:expires_at;not null;index"`
	EstimatedDelivery *time.Time             `gorm:"column:estimated_delivery"`
	ActualDelivery    *time.Time             `gorm:"column:actual_delivery"`
	CancelReason      *string                `gorm:"column:cancel_reason"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (GroupOrder) TableName() string { return "group_orders" }

// ThresholdReached reports whether the pooled amount has met the minimum spend.
func (g GroupOrder) ThresholdReached() bool {
	return g.CurrentAmount.GreaterThanOrEqual(g.MinThreshold)
}

// RemainingCapacity returns how many units can still join; -1 means uncapped.
func (g GroupOrder) RemainingCapacity() int {
	if g.TargetQuantity <= 0 {
		return -1
	}
	remaining := g.TargetQuantity - g.CurrentQuantity
	if remaining < 0 {
		return 0
	}
	return remaining
}
