package discounts

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

const pricePlaces = 2

var hundred = decimal.NewFromInt(100)

// Selection tells the engine which discounts to consider.
type Selection struct {
	Mode        enums.DiscountMode
	DiscountIDs []uuid.UUID
	ManualPrice *decimal.Decimal
}

// AppliedDiscount is one discount that contributed to the final price.
type AppliedDiscount struct {
	ID     uuid.UUID          `json:"id"`
	Name   string             `json:"name"`
	Type   enums.DiscountType `json:"type"`
	Value  decimal.Decimal    `json:"value"`
	Amount decimal.Decimal    `json:"amount"`
}

// Result is the per-unit price breakdown.
type Result struct {
	Mode           enums.DiscountMode `json:"mode"`
	Quantity       int                `json:"quantity"`
	BasePrice      decimal.Decimal    `json:"base_price"`
	TotalDiscount  decimal.Decimal    `json:"total_discount"`
	EffectivePrice decimal.Decimal    `json:"effective_price"`
	Applied        []AppliedDiscount  `json:"applied"`
}

// EffectivePrice computes the per-unit price for quantity units. Every
// applicable discount is evaluated against basePrice (not stacked) and the sum
// is subtracted once; the result never drops below zero.
func EffectivePrice(basePrice decimal.Decimal, quantity int, configs []models.DiscountConfig, selection Selection, now time.Time) (Result, error) {
	if basePrice.IsNegative() {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "base price must not be negative")
	}
	if quantity <= 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	mode := selection.Mode
	if mode == "" {
		mode = enums.DiscountModeAutomatic
	}

	result := Result{
		Mode:           mode,
		Quantity:       quantity,
		BasePrice:      basePrice,
		TotalDiscount:  decimal.Zero,
		EffectivePrice: basePrice.Round(pricePlaces),
		Applied:        []AppliedDiscount{},
	}

	var candidates []models.DiscountConfig
	switch mode {
	case enums.DiscountModeManual:
		if selection.ManualPrice == nil {
			return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "manual price required")
		}
		if selection.ManualPrice.IsNegative() {
			return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "manual price must not be negative")
		}
		result.EffectivePrice = selection.ManualPrice.Round(pricePlaces)
		result.TotalDiscount = floorZero(basePrice.Sub(result.EffectivePrice))
		return result, nil
	case enums.DiscountModeAutomatic:
		candidates = configs
	case enums.DiscountModeSelected:
		candidates = pick(configs, selection.DiscountIDs)
	default:
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported discount mode %q", mode))
	}

	total := decimal.Zero
	for _, cfg := range candidates {
		if !Eligible(cfg, quantity, now) {
			continue
		}
		amount := amountFor(basePrice, cfg)
		total = total.Add(amount)
		result.Applied = append(result.Applied, AppliedDiscount{
			ID:     cfg.ID,
			Name:   cfg.Name,
			Type:   cfg.DiscountType,
			Value:  cfg.DiscountValue,
			Amount: amount.Round(pricePlaces),
		})
	}

	result.TotalDiscount = total.Round(pricePlaces)
	result.EffectivePrice = floorZero(basePrice.Sub(total)).Round(pricePlaces)
	return result, nil
}

// Eligible reports whether cfg applies to quantity units at now.
func Eligible(cfg models.DiscountConfig, quantity int, now time.Time) bool {
	if !cfg.IsActive || cfg.DiscountValue.IsNegative() {
		return false
	}
	if cfg.StartDate != nil && now.Before(*cfg.StartDate) {
		return false
	}
	if cfg.EndDate != nil && now.After(*cfg.EndDate) {
		return false
	}
	if cfg.MinQuantity != nil && quantity < *cfg.MinQuantity {
		return false
	}
	if cfg.MaxQuantity != nil && quantity > *cfg.MaxQuantity {
		return false
	}
	return true
}

func amountFor(basePrice decimal.Decimal, cfg models.DiscountConfig) decimal.Decimal {
	switch cfg.DiscountType {
	case enums.DiscountTypePercentage:
		return basePrice.Mul(cfg.DiscountValue).Div(hundred)
	case enums.DiscountTypeFixedAmount:
		return cfg.DiscountValue
	}
	return decimal.Zero
}

// pick keeps configs whose id was selected, in config order. Unknown ids are ignored.
func pick(configs []models.DiscountConfig, ids []uuid.UUID) []models.DiscountConfig {
	if len(ids) == 0 {
		return nil
	}
	wanted := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := make([]models.DiscountConfig, 0, len(ids))
	for _, cfg := range configs {
		if _, ok := wanted[cfg.ID]; ok {
			out = append(out, cfg)
		}
	}
	return out
}

func floorZero(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
