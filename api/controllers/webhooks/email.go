package webhooks

import (
	"context"
	"net/http"

	"github.com/angelmondragon/groupbuy-backend/api/responses"
	"github.com/angelmondragon/groupbuy-backend/api/validators"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

type DeliveryRecorder interface {
	MarkDelivered(ctx context.Context, providerMessageID string) error
}

type deliveryEvent struct {
	ProviderMessageID string `json:"provider_message_id" validate:"required,max=255"`
}

// EmailDeliveredWebhook marks a sent email as delivered when the provider
// confirms it reached the inbox.
func EmailDeliveredWebhook(tracker DeliveryRecorder, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if tracker == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "email tracker unavailable"))
			return
		}

		payload, err := readSigned(r, secret)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event deliveryEvent
		if err := validators.DecodeJSONBody(requestWithBody(r, payload), &event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := tracker.MarkDelivered(ctx, event.ProviderMessageID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"delivered": true})
	}
}
