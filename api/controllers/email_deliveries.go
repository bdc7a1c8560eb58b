package controllers

import (
	"net/http"

	"github.com/angelmondragon/groupbuy-backend/api/controllers/dto"
	"github.com/angelmondragon/groupbuy-backend/api/responses"
	"github.com/angelmondragon/groupbuy-backend/api/validators"
	"github.com/angelmondragon/groupbuy-backend/internal/emaildelivery"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/pagination"
)

// RetryEmailDeliveries runs one retry sweep on demand.
func RetryEmailDeliveries(tracker emaildelivery.Tracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tracker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "email tracker unavailable"))
			return
		}

		result, err := tracker.SweepRetries(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ListExhaustedEmailDeliveries lists failed emails with no retry budget left.
func ListExhaustedEmailDeliveries(tracker emaildelivery.Tracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tracker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "email tracker unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := tracker.ListExhausted(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]dto.EmailDelivery, 0, len(rows))
		for _, row := range rows {
			items = append(items, dto.NewEmailDelivery(row))
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}
