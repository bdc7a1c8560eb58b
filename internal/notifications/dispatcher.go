package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/groupbuy-backend/internal/emaildelivery"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
)

const defaultFanOutConcurrency = 8

type notificationCreator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type emailSender interface {
	Send(ctx context.Context, attempt emaildelivery.Attempt) (uuid.UUID, error)
}

// Recipient is one participant resolved from the user directory.
type Recipient struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// Event is the transition being announced.
type Event struct {
	Type        enums.OutboxEventType
	Reason      string
	OrderNumber string
}

// RecipientOutcome reports what happened for one participant.
type RecipientOutcome struct {
	UserID              uuid.UUID `json:"user_id"`
	NotificationCreated bool      `json:"notification_created"`
	EmailSent           bool      `json:"email_sent"`
	DeliveryID          uuid.UUID `json:"delivery_id"`
	Error               string    `json:"error,omitempty"`
}

// DispatcherParams wires dispatcher dependencies.
type DispatcherParams struct {
	Notifications notificationCreator
	Emails        emailSender
	Renderer      *Renderer
	Logger        *logger.Logger
	Metrics       *metrics.GroupBuyMetrics
	Concurrency   int
}

// Dispatcher fans a transition out to every participant: one Notification row
// and one email each. Recipients are independent; a failure for one never
// stops the others and is reported in its outcome.
type Dispatcher struct {
	notifications notificationCreator
	emails        emailSender
	renderer      *Renderer
	logg          *logger.Logger
	metrics       *metrics.GroupBuyMetrics
	concurrency   int
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Emails == nil {
		return nil, fmt.Errorf("email tracker required")
	}
	renderer := params.Renderer
	if renderer == nil {
		var err error
		renderer, err = NewRenderer()
		if err != nil {
			return nil, err
		}
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultFanOutConcurrency
	}
	return &Dispatcher{
		notifications: params.Notifications,
		emails:        params.Emails,
		renderer:      renderer,
		logg:          params.Logger,
		metrics:       params.Metrics,
		concurrency:   concurrency,
	}, nil
}

// Dispatch notifies each distinct recipient and waits for every outcome. The
// returned slice is in recipient order after de-duplication by user.
func (d *Dispatcher) Dispatch(ctx context.Context, groupOrder models.GroupOrder, event Event, recipients []Recipient) ([]RecipientOutcome, error) {
	kind, ok := enums.NotificationTypeForEvent(event.Type)
	if !ok {
		return nil, fmt.Errorf("no notification for event %q", event.Type)
	}
	unique := dedupe(recipients)
	outcomes := make([]RecipientOutcome, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, recipient := range unique {
		i, recipient := i, recipient
		g.Go(func() error {
			outcomes[i] = d.notify(gctx, groupOrder, event, kind, recipient)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, outcome := range outcomes {
		ok := outcome.NotificationCreated && outcome.EmailSent
		if !ok {
			failed++
		}
		d.metrics.ObserveFanOut(string(event.Type), ok)
	}
	if d.logg != nil {
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"group_order_id": groupOrder.ID.String(),
			"event_type":     event.Type,
			"recipients":     len(outcomes),
			"failed":         failed,
		})
		d.logg.Info(logCtx, "notification fan-out complete")
	}
	return outcomes, nil
}

func (d *Dispatcher) notify(ctx context.Context, groupOrder models.GroupOrder, event Event, kind enums.NotificationType, recipient Recipient) RecipientOutcome {
	outcome := RecipientOutcome{UserID: recipient.UserID}
	var errs []string

	title, message := inAppMessage(kind, groupOrder.BatchNumber)
	payload, _ := json.Marshal(map[string]any{
		"event_type":     event.Type,
		"batch_number":   groupOrder.BatchNumber,
		"group_order_id": groupOrder.ID,
		"status":         groupOrder.Status,
	})
	groupOrderID := groupOrder.ID
	notification := &models.Notification{
		ID:           uuid.New(),
		UserID:       recipient.UserID,
		GroupOrderID: &groupOrderID,
		Type:         kind,
		Title:        title,
		Message:      message,
		Payload:      payload,
	}
	if err := d.notifications.Create(ctx, notification); err != nil {
		errs = append(errs, fmt.Sprintf("notification: %v", err))
	} else {
		outcome.NotificationCreated = true
	}

	if recipient.Email == "" {
		errs = append(errs, "email: recipient has no address")
		outcome.Error = strings.Join(errs, "; ")
		return outcome
	}
	subject, body, err := d.renderer.Render(kind, templateData(groupOrder, event, recipient))
	if err != nil {
		errs = append(errs, fmt.Sprintf("render: %v", err))
		outcome.Error = strings.Join(errs, "; ")
		return outcome
	}
	userID := recipient.UserID
	deliveryID, err := d.emails.Send(ctx, emaildelivery.Attempt{
		Recipient:         recipient.Email,
		Subject:           subject,
		TemplateName:      string(kind),
		Content:           body,
		RelatedUserID:     &userID,
		RelatedCampaignID: &groupOrderID,
	})
	outcome.DeliveryID = deliveryID
	if err != nil {
		errs = append(errs, fmt.Sprintf("email: %v", err))
	} else {
		outcome.EmailSent = true
	}
	outcome.Error = strings.Join(errs, "; ")
	return outcome
}

func templateData(groupOrder models.GroupOrder, event Event, recipient Recipient) TemplateData {
	name := recipient.Name
	if name == "" {
		name = "there"
	}
	data := TemplateData{
		RecipientName: name,
		BatchNumber:   groupOrder.BatchNumber,
		OrderNumber:   event.OrderNumber,
		Reason:        event.Reason,
		MinThreshold:  groupOrder.MinThreshold.StringFixed(2),
		CurrentAmount: groupOrder.CurrentAmount.StringFixed(2),
	}
	if groupOrder.EstimatedDelivery != nil {
		data.EstimatedDelivery = groupOrder.EstimatedDelivery.UTC().Format(time.DateOnly)
	}
	if groupOrder.ActualDelivery != nil {
		data.ActualDelivery = groupOrder.ActualDelivery.UTC().Format(time.DateOnly)
	}
	return data
}

func dedupe(recipients []Recipient) []Recipient {
	seen := make(map[uuid.UUID]struct{}, len(recipients))
	out := make([]Recipient, 0, len(recipients))
	for _, recipient := range recipients {
		if recipient.UserID == uuid.Nil {
			continue
		}
		if _, ok := seen[recipient.UserID]; ok {
			continue
		}
		seen[recipient.UserID] = struct{}{}
		out = append(out, recipient)
	}
	return out
}
