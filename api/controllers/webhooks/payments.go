package webhooks

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/api/controllers/dto"
	"github.com/angelmondragon/groupbuy-backend/api/responses"
	"github.com/angelmondragon/groupbuy-backend/api/validators"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentReference string) (*models.Order, error)
}

type paymentEvent struct {
	OrderID          uuid.UUID `json:"order_id" validate:"required"`
	PaymentReference string    `json:"payment_reference" validate:"required,max=255"`
	Status           string    `json:"status" validate:"required,oneof=succeeded failed"`
}

// PaymentWebhook records a provider-confirmed payment against an order.
// Failed payments are acknowledged without changing the order.
func PaymentWebhook(svc PaymentConfirmer, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		payload, err := readSigned(r, secret)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event paymentEvent
		if err := validators.DecodeJSONBody(requestWithBody(r, payload), &event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		ctx = logg.WithFields(ctx, map[string]any{
			"order_id":          event.OrderID.String(),
			"payment_reference": event.PaymentReference,
			"payment_status":    event.Status,
		})
		if event.Status != "succeeded" {
			logg.Warn(ctx, "payment.failed_event_ignored")
			responses.WriteSuccess(w, map[string]bool{"accepted": true})
			return
		}

		order, err := svc.ConfirmPayment(ctx, event.OrderID, validators.SanitizeString(event.PaymentReference, 255))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logg.Info(ctx, "payment.confirmed")
		responses.WriteSuccess(w, dto.NewOrder(*order))
	}
}

func requestWithBody(r *http.Request, payload []byte) *http.Request {
	clone := r.Clone(r.Context())
	clone.Body = io.NopCloser(bytes.NewReader(payload))
	return clone
}
