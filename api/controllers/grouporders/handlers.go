package grouporders

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/groupbuy-backend/api/controllers/dto"
	"github.com/angelmondragon/groupbuy-backend/api/responses"
	"github.com/angelmondragon/groupbuy-backend/api/validators"
	internalgrouporders "github.com/angelmondragon/groupbuy-backend/internal/grouporders"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

const maxReasonLength = 500

// Get returns the current snapshot of a group order.
func Get(svc internalgrouporders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group order service unavailable"))
			return
		}

		groupOrderID, err := validators.ParseUUIDParam(r, "groupOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groupOrder, err := svc.GetGroupOrder(r.Context(), groupOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewGroupOrder(*groupOrder))
	}
}

// Join places a buyer order against an open group order.
func Join(svc internalgrouporders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group order service unavailable"))
			return
		}

		groupOrderID, err := validators.ParseUUIDParam(r, "groupOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req joinRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithGroupOrderID(r.Context(), groupOrderID.String())
		ctx = logg.WithUserID(ctx, req.UserID.String())

		result, err := svc.JoinGroupOrder(ctx, internalgrouporders.JoinInput{
			GroupOrderID: groupOrderID,
			UserID:       req.UserID,
			Quantity:     req.Quantity,
			AddressID:    req.AddressID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, dto.JoinResponse{
			Order:        dto.NewOrder(result.Order),
			GroupOrder:   dto.NewGroupOrder(result.GroupOrder),
			ThresholdMet: result.ThresholdMet,
		})
	}
}

// CancelOrder withdraws a buyer's order from its batch.
func CancelOrder(svc internalgrouporders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group order service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithUserID(r.Context(), req.UserID.String())
		order, err := svc.CancelOrder(ctx, orderID, req.UserID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewOrder(*order))
	}
}

// Open creates a new batch for a product. Operator only.
func Open(svc internalgrouporders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group order service unavailable"))
			return
		}

		var req openRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groupOrder, err := svc.OpenGroupOrder(r.Context(), internalgrouporders.OpenInput{
			ProductID:         req.ProductID,
			MinThreshold:      req.MinThreshold,
			TargetQuantity:    req.TargetQuantity,
			ExpiresAt:         req.ExpiresAt,
			EstimatedDelivery: req.EstimatedDelivery,
			Pricing:           req.Pricing.toSelection(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.NewGroupOrder(*groupOrder))
	}
}

// Transition moves a batch along its lifecycle. Operator only.
func Transition(svc internalgrouporders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group order service unavailable"))
			return
		}

		groupOrderID, err := validators.ParseUUIDParam(r, "groupOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseGroupOrderStatus(strings.TrimSpace(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		ctx := logg.WithGroupOrderID(r.Context(), groupOrderID.String())
		groupOrder, err := svc.TransitionGroupOrder(ctx, groupOrderID, internalgrouporders.TransitionInput{
			Status:            status,
			EstimatedDelivery: req.EstimatedDelivery,
			Reason:            validators.SanitizeString(req.Reason, maxReasonLength),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewGroupOrder(*groupOrder))
	}
}

// Cancel cancels a batch and every live order in it. Operator only.
func Cancel(svc internalgrouporders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group order service unavailable"))
			return
		}

		groupOrderID, err := validators.ParseUUIDParam(r, "groupOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelGroupRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		ctx := logg.WithGroupOrderID(r.Context(), groupOrderID.String())
		groupOrder, err := svc.CancelGroupOrder(ctx, groupOrderID, validators.SanitizeString(req.Reason, maxReasonLength))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewGroupOrder(*groupOrder))
	}
}
