package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-backend/api/responses"
	"github.com/angelmondragon/groupbuy-backend/api/validators"
	"github.com/angelmondragon/groupbuy-backend/internal/discounts"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

type pricingQuoteRequest struct {
	ProductID   uuid.UUID        `json:"product_id" validate:"required"`
	Quantity    int              `json:"quantity" validate:"required,gt=0"`
	Mode        string           `json:"mode" validate:"omitempty,oneof=automatic selected manual"`
	DiscountIDs []uuid.UUID      `json:"discount_ids,omitempty"`
	ManualPrice *decimal.Decimal `json:"manual_price,omitempty" validate:"omitempty,positive_decimal"`
}

type pricingQuoteResponse struct {
	discounts.Result
	LineTotal decimal.Decimal `json:"line_total"`
}

// PricingQuote prices a product for a quantity without placing an order.
func PricingQuote(svc discounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		var req pricingQuoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mode := enums.DiscountMode(strings.TrimSpace(req.Mode))
		if mode == "" {
			mode = enums.DiscountModeAutomatic
		}

		result, err := svc.ComputePrice(r.Context(), req.ProductID, req.Quantity, discounts.Selection{
			Mode:        mode,
			DiscountIDs: req.DiscountIDs,
			ManualPrice: req.ManualPrice,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, pricingQuoteResponse{
			Result:    result,
			LineTotal: result.EffectivePrice.Mul(decimal.NewFromInt(int64(result.Quantity))),
		})
	}
}
