package grouporders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-backend/internal/discounts"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

type joinRequest struct {
	UserID    uuid.UUID  `json:"user_id" validate:"required"`
	Quantity  int        `json:"quantity" validate:"required,gt=0"`
	AddressID *uuid.UUID `json:"address_id,omitempty"`
}

type cancelOrderRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

type pricingSelection struct {
	Mode        string           `json:"mode" validate:"omitempty,oneof=automatic selected manual"`
	DiscountIDs []uuid.UUID      `json:"discount_ids,omitempty"`
	ManualPrice *decimal.Decimal `json:"manual_price,omitempty" validate:"omitempty,positive_decimal"`
}

func (p *pricingSelection) toSelection() discounts.Selection {
	if p == nil {
		return discounts.Selection{Mode: enums.DiscountModeAutomatic}
	}
	mode := enums.DiscountMode(strings.TrimSpace(p.Mode))
	if mode == "" {
		mode = enums.DiscountModeAutomatic
	}
	return discounts.Selection{
		Mode:        mode,
		DiscountIDs: p.DiscountIDs,
		ManualPrice: p.ManualPrice,
	}
}

type openRequest struct {
	ProductID         uuid.UUID         `json:"product_id" validate:"required"`
	MinThreshold      decimal.Decimal   `json:"min_threshold" validate:"positive_decimal"`
	TargetQuantity    int               `json:"target_quantity" validate:"gte=0"`
	ExpiresAt         time.Time         `json:"expires_at"`
	EstimatedDelivery *time.Time        `json:"estimated_delivery,omitempty"`
	Pricing           *pricingSelection `json:"pricing,omitempty"`
}

type transitionRequest struct {
	Status            string     `json:"status" validate:"required"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	Reason            string     `json:"reason,omitempty" validate:"max=500"`
}

type cancelGroupRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
