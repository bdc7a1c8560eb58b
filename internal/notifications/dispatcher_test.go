package notifications

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-backend/internal/emaildelivery"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

type recordingCreator struct {
	mu    sync.Mutex
	rows  []models.Notification
	failF func(*models.Notification) error
}

func (r *recordingCreator) Create(ctx context.Context, n *models.Notification) error {
	if r.failF != nil {
		if err := r.failF(n); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *n)
	return nil
}

type recordingSender struct {
	mu       sync.Mutex
	attempts []emaildelivery.Attempt
	failFor  map[string]bool
}

func (r *recordingSender) Send(ctx context.Context, attempt emaildelivery.Attempt) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	if r.failFor[attempt.Recipient] {
		return uuid.New(), errors.New("mailbox unavailable")
	}
	return uuid.New(), nil
}

func sampleGroupOrder() models.GroupOrder {
	eta := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	return models.GroupOrder{
		ID:                uuid.New(),
		BatchNumber:       "GB-20260801-K3P9QZ",
		MinThreshold:      decimal.NewFromInt(10000),
		CurrentAmount:     decimal.NewFromInt(12000),
		PricePerUnit:      decimal.NewFromInt(100),
		Status:            enums.GroupOrderStatusThresholdMet,
		EstimatedDelivery: &eta,
	}
}

func recipientsN(n int) []Recipient {
	out := make([]Recipient, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.New()
		out = append(out, Recipient{UserID: id, Email: id.String()[:8] + "@example.com", Name: "Buyer"})
	}
	return out
}

func newTestDispatcher(t *testing.T, creator notificationCreator, sender emailSender) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DispatcherParams{Notifications: creator, Emails: sender, Concurrency: 3})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func TestDispatchIsolatesRecipientFailures(t *testing.T) {
	recipients := recipientsN(5)
	sender := &recordingSender{failFor: map[string]bool{recipients[2].Email: true}}
	creator := &recordingCreator{}
	d := newTestDispatcher(t, creator, sender)

	outcomes, err := d.Dispatch(context.Background(), sampleGroupOrder(), Event{Type: enums.EventGroupOrderThresholdMet}, recipients)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(outcomes) != 5 {
		t.Fatalf("expected 5 outcomes, got %d", len(outcomes))
	}

	for i, outcome := range outcomes {
		if outcome.UserID != recipients[i].UserID {
			t.Fatalf("outcome %d out of recipient order", i)
		}
		if !outcome.NotificationCreated || outcome.DeliveryID == uuid.Nil {
			t.Fatalf("outcome %d: expected notification and delivery row, got %+v", i, outcome)
		}
		if i == 2 {
			if outcome.EmailSent || !strings.Contains(outcome.Error, "mailbox unavailable") {
				t.Fatalf("outcome %d: expected email failure, got %+v", i, outcome)
			}
			continue
		}
		if !outcome.EmailSent || outcome.Error != "" {
			t.Fatalf("outcome %d: expected clean send, got %+v", i, outcome)
		}
	}
	if len(creator.rows) != 5 || len(sender.attempts) != 5 {
		t.Fatalf("expected 5 rows and 5 attempts, got %d and %d", len(creator.rows), len(sender.attempts))
	}
}

func TestDispatchContinuesWhenNotificationInsertFails(t *testing.T) {
	recipients := recipientsN(3)
	creator := &recordingCreator{failF: func(n *models.Notification) error {
		if n.UserID == recipients[0].UserID {
			return errors.New("insert failed")
		}
		return nil
	}}
	sender := &recordingSender{}
	d := newTestDispatcher(t, creator, sender)

	outcomes, err := d.Dispatch(context.Background(), sampleGroupOrder(), Event{Type: enums.EventGroupOrderShipped}, recipients)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	first := outcomes[0]
	if first.NotificationCreated || !first.EmailSent || !strings.Contains(first.Error, "insert failed") {
		t.Fatalf("expected email despite insert failure, got %+v", first)
	}
	for _, outcome := range outcomes[1:] {
		if !outcome.NotificationCreated {
			t.Fatalf("other recipients should still be notified, got %+v", outcome)
		}
	}
}

func TestDispatchDedupesByUser(t *testing.T) {
	recipients := recipientsN(2)
	recipients = append(recipients, recipients[0], Recipient{})
	creator := &recordingCreator{}
	d := newTestDispatcher(t, creator, &recordingSender{})

	outcomes, err := d.Dispatch(context.Background(), sampleGroupOrder(), Event{Type: enums.EventGroupOrderDelivered}, recipients)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(outcomes) != 2 || len(creator.rows) != 2 {
		t.Fatalf("expected 2 distinct recipients, got %d outcomes and %d rows", len(outcomes), len(creator.rows))
	}
}

func TestDispatchRecipientWithoutEmailStillGetsNotification(t *testing.T) {
	creator := &recordingCreator{}
	sender := &recordingSender{}
	d := newTestDispatcher(t, creator, sender)

	outcomes, err := d.Dispatch(context.Background(), sampleGroupOrder(), Event{Type: enums.EventGroupOrderCancelled}, []Recipient{{UserID: uuid.New()}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(outcomes) != 1 || !outcomes[0].NotificationCreated || outcomes[0].EmailSent {
		t.Fatalf("expected in-app only outcome, got %+v", outcomes)
	}
	if len(sender.attempts) != 0 {
		t.Fatalf("no email should be attempted, got %d", len(sender.attempts))
	}
}

func TestDispatchRendersEventSpecificEmail(t *testing.T) {
	sender := &recordingSender{}
	creator := &recordingCreator{}
	d := newTestDispatcher(t, creator, sender)
	group := sampleGroupOrder()

	_, err := d.Dispatch(context.Background(), group, Event{Type: enums.EventGroupOrderCancelled, Reason: "supplier out of stock"}, recipientsN(1))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(sender.attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(sender.attempts))
	}

	attempt := sender.attempts[0]
	if attempt.Subject != "Batch GB-20260801-K3P9QZ was cancelled" {
		t.Fatalf("unexpected subject %q", attempt.Subject)
	}
	if attempt.TemplateName != string(enums.NotificationTypeCancelled) {
		t.Fatalf("unexpected template %q", attempt.TemplateName)
	}
	if !strings.Contains(attempt.Content, "supplier out of stock") {
		t.Fatalf("reason missing from body %q", attempt.Content)
	}
	if attempt.RelatedCampaignID == nil || *attempt.RelatedCampaignID != group.ID {
		t.Fatalf("delivery should link to group order %s", group.ID)
	}

	if len(creator.rows) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(creator.rows))
	}
	row := creator.rows[0]
	if row.Type != enums.NotificationTypeCancelled || row.GroupOrderID == nil || *row.GroupOrderID != group.ID {
		t.Fatalf("unexpected notification %+v", row)
	}
}

func TestDispatchRejectsUnknownEvent(t *testing.T) {
	d := newTestDispatcher(t, &recordingCreator{}, &recordingSender{})
	if _, err := d.Dispatch(context.Background(), sampleGroupOrder(), Event{Type: "group_order_paused"}, recipientsN(1)); err == nil {
		t.Fatal("expected unknown event to be rejected")
	}
}

func TestRendererCoversEveryNotificationType(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	data := TemplateData{
		RecipientName: "Asha <script>",
		BatchNumber:   "GB-20260801-K3P9QZ",
		OrderNumber:   "ORD-ABCDEF1234",
		MinThreshold:  "10000.00",
		CurrentAmount: "12000.00",
	}
	for kind := range messageCopies {
		subject, body, err := renderer.Render(kind, data)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if subject == "" || !strings.Contains(body, "GB-20260801-K3P9QZ") {
			t.Errorf("%s: missing subject or batch number", kind)
		}
		if strings.Contains(body, "<script>") {
			t.Errorf("%s: recipient name not escaped", kind)
		}
	}

	subject, _, err := renderer.Render(enums.NotificationTypeOrderConfirmed, data)
	if err != nil {
		t.Fatalf("render order confirmed: %v", err)
	}
	if subject != "Order ORD-ABCDEF1234 confirmed" {
		t.Fatalf("unexpected subject %q", subject)
	}
}
