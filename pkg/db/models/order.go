package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// Order is a participant's commitment to a group order. Quantity, unit price
// and total are fixed when the buyer joins.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      string              `gorm:"column:order_number;not null;uniqueIndex:orders_order_number_key"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	GroupOrderID     uuid.UUID           `gorm:"column:group_order_id;type:uuid;not null;index"`
	Quantity         int                 `gorm:"column:quantity;not null"`
	UnitPrice        decimal.Decimal     `gorm:"column:unit_price;type:numeric(14,2);not null"`
	TotalAmount      decimal.Decimal     `gorm:"column:total_amount;type:numeric(14,2);not null"`
	Status           enums.OrderStatus   `gorm:"column:status;type:order_status;not null"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null"`
	AddressID        *uuid.UUID          `gorm:"column:address_id;type:uuid"`
	PaymentReference *string             `gorm:"column:payment_reference"`
	PlacedAt         time.Time           `gorm:"column:placed_at;not null"`
	ConfirmedAt      *time.Time          `gorm:"column:confirmed_at"`
	CancelledAt      *time.Time          `gorm:"column:cancelled_at"`
	DeliveredAt      *time.Time          `gorm:"column:delivered_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }
