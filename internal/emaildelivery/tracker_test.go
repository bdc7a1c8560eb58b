package emaildelivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/dbtest"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/mailer"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
)

var trackerNow = time.Date(2026, 7, 4, 8, 0, 0, 0, time.UTC)

type scriptedMailer struct {
	mu       sync.Mutex
	failures int
	failWith error
	sent     []mailer.Message
}

func (m *scriptedMailer) Send(ctx context.Context, msg mailer.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	if m.failures > 0 {
		m.failures--
		if m.failWith != nil {
			return "", m.failWith
		}
		return "", errors.New("smtp: 421 service not available")
	}
	return fmt.Sprintf("msg-%d", len(m.sent)), nil
}

func newTracker(t *testing.T, m mailer.Mailer, maxRetries int) (Tracker, Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t, "emaildelivery"))
	tr, err := NewTracker(TrackerParams{
		Repo:       repo,
		Mailer:     m,
		MaxRetries: maxRetries,
		Now:        func() time.Time { return trackerNow },
	})
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	return tr, repo
}

func mustFind(t *testing.T, repo Repository, id uuid.UUID) *models.EmailDelivery {
	t.Helper()
	row, err := repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find delivery %s: %v", id, err)
	}
	return row
}

func sampleAttempt() Attempt {
	userID := uuid.New()
	return Attempt{
		Recipient:     "meera@example.com",
		Subject:       "Your group order GB-20260704-ABC123 is confirmed",
		TemplateName:  "threshold_met",
		Content:       "<p>Threshold reached at 12000.00</p>",
		RelatedUserID: &userID,
	}
}

func TestSendRecordsSentDelivery(t *testing.T) {
	tr, repo := newTracker(t, &scriptedMailer{}, 3)

	id, err := tr.Send(context.Background(), sampleAttempt())
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	row := mustFind(t, repo, id)
	if row.Status != enums.EmailDeliveryStatusSent {
		t.Fatalf("expected sent, got %s", row.Status)
	}
	if row.ProviderMessageID == nil || *row.ProviderMessageID != "msg-1" {
		t.Fatalf("expected provider id msg-1, got %v", row.ProviderMessageID)
	}
	if row.SentAt == nil {
		t.Fatal("expected sent_at to be stamped")
	}
	if row.MaxRetries != 3 {
		t.Fatalf("expected max retries 3, got %d", row.MaxRetries)
	}
	if !row.CreatedAt.Equal(trackerNow) {
		t.Fatalf("expected created_at from the tracker clock, got %v", row.CreatedAt)
	}
}

func TestSendFailureThenSweepSucceeds(t *testing.T) {
	ctx := context.Background()
	m := &scriptedMailer{failures: 1}
	tr, repo := newTracker(t, m, 3)

	id, err := tr.Send(ctx, sampleAttempt())
	if err == nil {
		t.Fatal("expected first send to fail")
	}
	if id == uuid.Nil {
		t.Fatal("expected the failed attempt to be recorded")
	}

	row := mustFind(t, repo, id)
	if row.Status != enums.EmailDeliveryStatusFailed || row.RetryCount != 0 || row.Error == nil {
		t.Fatalf("unexpected row after failure: status=%s retries=%d error=%v", row.Status, row.RetryCount, row.Error)
	}

	result, err := tr.SweepRetries(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result != (SweepResult{Attempted: 1, Succeeded: 1}) {
		t.Fatalf("unexpected sweep result %+v", result)
	}

	row = mustFind(t, repo, id)
	if row.Status != enums.EmailDeliveryStatusSent || row.RetryCount != 1 || row.Error != nil {
		t.Fatalf("unexpected row after retry: status=%s retries=%d error=%v", row.Status, row.RetryCount, row.Error)
	}
	if len(m.sent) != 2 {
		t.Fatalf("expected 2 transport calls, got %d", len(m.sent))
	}
	if m.sent[0] != m.sent[1] {
		t.Fatalf("retry must resend the original bytes: %+v vs %+v", m.sent[0], m.sent[1])
	}
}

func TestClaimRetryMovesRowToPending(t *testing.T) {
	ctx := context.Background()
	tr, repo := newTracker(t, &scriptedMailer{failures: 1}, 3)

	id, _ := tr.Send(ctx, sampleAttempt())
	claimed, err := repo.ClaimRetry(ctx, id, trackerNow)
	if err != nil || !claimed {
		t.Fatalf("expected claim, got claimed=%v err=%v", claimed, err)
	}

	row := mustFind(t, repo, id)
	if row.Status != enums.EmailDeliveryStatusPending || row.RetryCount != 1 || row.Error != nil {
		t.Fatalf("unexpected claimed row: status=%s retries=%d error=%v", row.Status, row.RetryCount, row.Error)
	}

	claimed, err = repo.ClaimRetry(ctx, id, trackerNow)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatal("a pending row cannot be claimed twice")
	}
}

func TestSweepStopsAtMaxRetries(t *testing.T) {
	ctx := context.Background()
	m := &scriptedMailer{failures: 100}
	tr, repo := newTracker(t, m, 2)

	id, err := tr.Send(ctx, sampleAttempt())
	if err == nil {
		t.Fatal("expected send to fail")
	}

	want := []SweepResult{
		{Attempted: 1, StillFailed: 1},
		{Attempted: 1, StillFailed: 1, Exhausted: 1},
		{},
	}
	for i, expected := range want {
		got, err := tr.SweepRetries(ctx)
		if err != nil {
			t.Fatalf("sweep %d: %v", i+1, err)
		}
		if got != expected {
			t.Fatalf("sweep %d: expected %+v, got %+v", i+1, expected, got)
		}
	}

	row := mustFind(t, repo, id)
	if row.Status != enums.EmailDeliveryStatusFailed || row.RetryCount != 2 || !row.Exhausted() {
		t.Fatalf("expected exhausted row, got status=%s retries=%d", row.Status, row.RetryCount)
	}

	exhausted, err := tr.ListExhausted(ctx, 10)
	if err != nil {
		t.Fatalf("list exhausted: %v", err)
	}
	if len(exhausted) != 1 || exhausted[0].ID != id {
		t.Fatalf("expected only %s to be exhausted, got %+v", id, exhausted)
	}
	if len(m.sent) != 3 {
		t.Fatalf("expected 3 transport calls, got %d", len(m.sent))
	}
}

func TestSweepPublishesExhaustedGauge(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	repo := NewRepository(dbtest.Open(t, "emaildelivery_gauge"))
	tr, err := NewTracker(TrackerParams{
		Repo:       repo,
		Mailer:     &scriptedMailer{failures: 10},
		Metrics:    metrics.NewGroupBuyMetrics(reg),
		MaxRetries: 1,
	})
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	_, _ = tr.Send(ctx, sampleAttempt())
	if _, err := tr.SweepRetries(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var gauge float64
	for _, family := range families {
		if family.GetName() == "groupbuy_email_deliveries_exhausted" {
			gauge = family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	if gauge != 1 {
		t.Fatalf("expected exhausted gauge 1, got %f", gauge)
	}
}

func TestMarkFailedStoresValidUTF8(t *testing.T) {
	ctx := context.Background()
	// The byte cap lands inside the two-byte "é".
	providerErr := errors.New(strings.Repeat("a", maxErrorLen-1) + "é rejected by relay")
	tr, repo := newTracker(t, &scriptedMailer{failures: 1, failWith: providerErr}, 3)

	id, err := tr.Send(ctx, sampleAttempt())
	if err == nil {
		t.Fatal("expected send to fail")
	}

	row := mustFind(t, repo, id)
	if row.Status != enums.EmailDeliveryStatusFailed {
		t.Fatalf("expected failed, got %s", row.Status)
	}
	if row.Error == nil {
		t.Fatal("expected error to be stored")
	}
	if !utf8.ValidString(*row.Error) {
		t.Fatalf("stored error is not valid UTF-8: %q", (*row.Error)[len(*row.Error)-4:])
	}
	if got := len(*row.Error); got != maxErrorLen-1 {
		t.Fatalf("expected the split rune to be dropped, got length %d", got)
	}
}

func TestTruncateError(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "short", in: "timeout", want: "timeout"},
		{name: "exact", in: strings.Repeat("x", maxErrorLen), want: strings.Repeat("x", maxErrorLen)},
		{name: "split rune", in: strings.Repeat("x", maxErrorLen-1) + "ü", want: strings.Repeat("x", maxErrorLen-1)},
		{name: "invalid input", in: "bad \xff byte", want: "bad  byte"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := truncateError(tc.in); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSweepReclaimsStalePendingRows(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t, "emaildelivery_stale")
	repo := NewRepository(conn)
	m := &scriptedMailer{}
	now := trackerNow
	tr, err := NewTracker(TrackerParams{
		Repo:           repo,
		Mailer:         m,
		PendingTimeout: 10 * time.Minute,
		Now:            func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	// Recorded but the outcome never written back.
	stale, err := tr.Record(ctx, sampleAttempt())
	if err != nil {
		t.Fatalf("record stale: %v", err)
	}
	now = trackerNow.Add(9 * time.Minute)
	fresh, err := tr.Record(ctx, sampleAttempt())
	if err != nil {
		t.Fatalf("record fresh: %v", err)
	}

	now = trackerNow.Add(11 * time.Minute)
	result, err := tr.SweepRetries(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result != (SweepResult{Attempted: 1, Succeeded: 1, Reclaimed: 1}) {
		t.Fatalf("unexpected sweep result %+v", result)
	}

	if row := mustFind(t, repo, stale); row.Status != enums.EmailDeliveryStatusSent || row.RetryCount != 1 {
		t.Fatalf("expected stale row to be resent, got status=%s retries=%d", row.Status, row.RetryCount)
	}
	if row := mustFind(t, repo, fresh); row.Status != enums.EmailDeliveryStatusPending {
		t.Fatalf("expected fresh row to stay pending, got %s", row.Status)
	}
	if len(m.sent) != 1 {
		t.Fatalf("expected one resend, got %d", len(m.sent))
	}
}

func TestMarkDeliveredByProviderID(t *testing.T) {
	ctx := context.Background()
	tr, repo := newTracker(t, &scriptedMailer{}, 3)

	id, err := tr.Send(ctx, sampleAttempt())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := tr.MarkDelivered(ctx, "msg-1"); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	row := mustFind(t, repo, id)
	if row.Status != enums.EmailDeliveryStatusDelivered || row.DeliveredAt == nil {
		t.Fatalf("expected delivered row, got status=%s delivered_at=%v", row.Status, row.DeliveredAt)
	}

	if err := tr.MarkDelivered(ctx, "msg-unknown"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := tr.MarkDelivered(ctx, " "); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordValidatesAttempt(t *testing.T) {
	tr, _ := newTracker(t, &scriptedMailer{}, 3)

	if _, err := tr.Record(context.Background(), Attempt{Subject: "hi"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing recipient, got %v", err)
	}
	if _, err := tr.Record(context.Background(), Attempt{Recipient: "a@example.com"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing subject, got %v", err)
	}
}

func TestNewTrackerValidation(t *testing.T) {
	cases := []TrackerParams{
		{Mailer: &scriptedMailer{}},
		{Repo: NewRepository(nil)},
		{Repo: NewRepository(nil), Mailer: &scriptedMailer{}, MaxRetries: -1},
	}
	for i, params := range cases {
		if _, err := NewTracker(params); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
