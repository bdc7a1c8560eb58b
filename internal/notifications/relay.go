package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox/payloads"
)

// RelayConsumer names the claim scope used for outbox fan-out.
const RelayConsumer = "notification-fanout"

type outboxStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
}

type groupOrderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.GroupOrder, error)
}

type orderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type userDirectory interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

type claimer interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, groupOrder models.GroupOrder, event Event, recipients []Recipient) ([]RecipientOutcome, error)
}

// RelayParams wires relay dependencies. Claims is optional; without it the
// relay relies on the published_at stamp alone.
type RelayParams struct {
	Outbox      outboxStore
	GroupOrders groupOrderReader
	Orders      orderReader
	Users       userDirectory
	Dispatcher  dispatcher
	Claims      claimer
	Logger      *logger.Logger
}

// Relay turns committed outbox events into notification fan-outs. It runs
// inline after a transition commits and again from the recovery job for
// events that never got published.
type Relay struct {
	outbox      outboxStore
	groupOrders groupOrderReader
	orders      orderReader
	users       userDirectory
	dispatcher  dispatcher
	claims      claimer
	logg        *logger.Logger
}

// NewRelay builds a Relay.
func NewRelay(params RelayParams) (*Relay, error) {
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox store required")
	}
	if params.GroupOrders == nil {
		return nil, fmt.Errorf("group order reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Relay{
		outbox:      params.Outbox,
		groupOrders: params.GroupOrders,
		orders:      params.Orders,
		users:       params.Users,
		dispatcher:  params.Dispatcher,
		claims:      params.Claims,
		logg:        params.Logger,
	}, nil
}

// Deliver loads the event by id and handles it. Failures are recorded on the
// outbox row and returned; callers on the request path only log them.
func (r *Relay) Deliver(ctx context.Context, eventIDs ...uuid.UUID) error {
	var firstErr error
	for _, id := range eventIDs {
		row, err := r.outbox.FindByID(ctx, id)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("load outbox event %s: %w", id, err)
			}
			continue
		}
		if _, err := r.Handle(ctx, *row); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Handle dispatches one event. It returns the recipient outcomes, or nil when
// the event was already published or is claimed by another dispatcher.
func (r *Relay) Handle(ctx context.Context, row models.OutboxEvent) ([]RecipientOutcome, error) {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"event_id":     row.ID.String(),
		"event_type":   row.EventType,
		"aggregate_id": row.AggregateID.String(),
	})
	if row.PublishedAt != nil {
		r.logg.Debug(logCtx, "event already published")
		return nil, nil
	}

	if r.claims != nil {
		claimed, err := r.claims.Claim(ctx, RelayConsumer, row.ID)
		if err != nil {
			r.logg.Warn(logCtx, "claim check failed, dispatching without claim")
		} else if !claimed {
			r.logg.Info(logCtx, "event claimed by another dispatcher")
			return nil, nil
		}
	}

	outcomes, err := r.dispatch(ctx, row)
	if err != nil {
		r.logg.Error(logCtx, "notification fan-out failed", err)
		if markErr := r.outbox.MarkFailed(ctx, row.ID, err); markErr != nil {
			r.logg.Error(logCtx, "failed to record outbox failure", markErr)
		}
		if r.claims != nil {
			_ = r.claims.Release(ctx, RelayConsumer, row.ID)
		}
		return nil, err
	}
	if err := r.outbox.MarkPublished(ctx, row.ID); err != nil {
		r.logg.Error(logCtx, "failed to mark outbox event published", err)
		return outcomes, err
	}
	return outcomes, nil
}

func (r *Relay) dispatch(ctx context.Context, row models.OutboxEvent) ([]RecipientOutcome, error) {
	switch row.EventType {
	case enums.EventOrderConfirmed:
		var payload payloads.OrderConfirmedEvent
		if _, err := outbox.DecodeEnvelope(row, &payload); err != nil {
			return nil, err
		}
		order, err := r.orders.FindByID(ctx, payload.OrderID)
		if err != nil {
			return nil, fmt.Errorf("load order: %w", err)
		}
		groupOrder, err := r.groupOrders.FindByID(ctx, order.GroupOrderID)
		if err != nil {
			return nil, fmt.Errorf("load group order: %w", err)
		}
		recipients, err := r.recipients(ctx, []uuid.UUID{order.UserID})
		if err != nil {
			return nil, err
		}
		return r.dispatcher.Dispatch(ctx, *groupOrder, Event{Type: row.EventType, OrderNumber: order.OrderNumber}, recipients)
	default:
		if _, ok := enums.NotificationTypeForEvent(row.EventType); !ok {
			return nil, fmt.Errorf("unhandled event type %q", row.EventType)
		}
		var payload payloads.GroupOrderTransitionEvent
		if _, err := outbox.DecodeEnvelope(row, &payload); err != nil {
			return nil, err
		}
		groupOrder, err := r.groupOrders.FindByID(ctx, payload.GroupOrderID)
		if err != nil {
			return nil, fmt.Errorf("load group order: %w", err)
		}
		recipients, err := r.recipients(ctx, payload.UserIDs)
		if err != nil {
			return nil, err
		}
		return r.dispatcher.Dispatch(ctx, *groupOrder, Event{Type: row.EventType, Reason: payload.Reason}, recipients)
	}
}

// recipients resolves user ids in the order given. Users missing from the
// directory are kept with an empty address so they still get an in-app row.
func (r *Relay) recipients(ctx context.Context, ids []uuid.UUID) ([]Recipient, error) {
	users, err := r.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	byID := make(map[uuid.UUID]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	out := make([]Recipient, 0, len(ids))
	for _, id := range ids {
		user := byID[id]
		out = append(out, Recipient{UserID: id, Email: user.Email, Name: user.Name})
	}
	return out, nil
}
