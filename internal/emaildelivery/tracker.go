package emaildelivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/mailer"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
)

const (
	defaultMaxRetries     = 3
	defaultPendingTimeout = 15 * time.Minute
)

// Attempt is one rendered email about to be handed to the transport.
type Attempt struct {
	Recipient         string
	Subject           string
	TemplateName      string
	Content           string
	RelatedUserID     *uuid.UUID
	RelatedCampaignID *uuid.UUID
}

// SweepResult summarises one retry pass.
type SweepResult struct {
	Attempted   int `json:"attempted"`
	Succeeded   int `json:"succeeded"`
	StillFailed int `json:"still_failed"`
	Exhausted   int `json:"exhausted"`
	Reclaimed   int `json:"reclaimed"`
}

// Tracker owns the EmailDelivery lifecycle: every send is recorded before the
// transport is called and its outcome is written back afterwards.
type Tracker interface {
	Send(ctx context.Context, attempt Attempt) (uuid.UUID, error)
	Record(ctx context.Context, attempt Attempt) (uuid.UUID, error)
	MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
	MarkDelivered(ctx context.Context, providerMessageID string) error
	SweepRetries(ctx context.Context) (SweepResult, error)
	ListExhausted(ctx context.Context, limit int) ([]models.EmailDelivery, error)
}

// TrackerParams wires tracker dependencies.
type TrackerParams struct {
	Repo       Repository
	Mailer     mailer.Mailer
	Logger     *logger.Logger
	Metrics    *metrics.GroupBuyMetrics
	MaxRetries int
	BatchSize  int
	// PendingTimeout is how long a row may stay pending before the sweep
	// treats its send as failed.
	PendingTimeout time.Duration
	Now            func() time.Time
}

type tracker struct {
	repo           Repository
	mailer         mailer.Mailer
	logg           *logger.Logger
	metrics        *metrics.GroupBuyMetrics
	maxRetries     int
	batchSize      int
	pendingTimeout time.Duration
	now            func() time.Time
}

// NewTracker builds the delivery tracker.
func NewTracker(params TrackerParams) (Tracker, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("email delivery repository required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	maxRetries := params.MaxRetries
	if maxRetries < 0 {
		return nil, fmt.Errorf("max retries must be non-negative")
	}
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	pendingTimeout := params.PendingTimeout
	if pendingTimeout <= 0 {
		pendingTimeout = defaultPendingTimeout
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &tracker{
		repo:           params.Repo,
		mailer:         params.Mailer,
		logg:           params.Logger,
		metrics:        params.Metrics,
		maxRetries:     maxRetries,
		batchSize:      params.BatchSize,
		pendingTimeout: pendingTimeout,
		now:            now,
	}, nil
}

// Send records the attempt, calls the transport and stores the outcome. The
// returned id is set whenever the row was recorded, even if the send failed.
func (t *tracker) Send(ctx context.Context, attempt Attempt) (uuid.UUID, error) {
	id, err := t.Record(ctx, attempt)
	if err != nil {
		return uuid.Nil, err
	}
	return id, t.deliver(ctx, id, attempt.Recipient, attempt.Subject, attempt.Content)
}

func (t *tracker) Record(ctx context.Context, attempt Attempt) (uuid.UUID, error) {
	if strings.TrimSpace(attempt.Recipient) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient required")
	}
	if strings.TrimSpace(attempt.Subject) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subject required")
	}
	now := t.now().UTC()
	row := &models.EmailDelivery{
		ID:                uuid.New(),
		Recipient:         attempt.Recipient,
		Subject:           attempt.Subject,
		TemplateName:      attempt.TemplateName,
		Content:           attempt.Content,
		Status:            enums.EmailDeliveryStatusPending,
		MaxRetries:        t.maxRetries,
		RelatedUserID:     attempt.RelatedUserID,
		RelatedCampaignID: attempt.RelatedCampaignID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := t.repo.Create(ctx, row); err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record email delivery")
	}
	return row.ID, nil
}

func (t *tracker) MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string) error {
	if err := t.repo.MarkSent(ctx, id, providerMessageID, t.now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark email sent")
	}
	t.metrics.IncEmail(metrics.EmailOutcomeSent)
	return nil
}

func (t *tracker) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if err := t.repo.MarkFailed(ctx, id, msg, t.now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark email failed")
	}
	t.metrics.IncEmail(metrics.EmailOutcomeFailed)
	return nil
}

func (t *tracker) MarkDelivered(ctx context.Context, providerMessageID string) error {
	if strings.TrimSpace(providerMessageID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider message id required")
	}
	ok, err := t.repo.MarkDelivered(ctx, providerMessageID, t.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark email delivered")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "sent email delivery not found")
	}
	t.metrics.IncEmail(metrics.EmailOutcomeDelivered)
	return nil
}

// SweepRetries resends every failed delivery that still has budget, using the
// subject and content stored on the row. Rows stuck in pending past the
// timeout are failed first so they join the same pass.
func (t *tracker) SweepRetries(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := t.now().UTC()
	reclaimed, err := t.repo.FailStalePending(ctx, now.Add(-t.pendingTimeout), now)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail stale deliveries")
	}
	result.Reclaimed = int(reclaimed)

	rows, err := t.repo.ListRetryable(ctx, t.batchSize)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list retryable deliveries")
	}

	var errs []error
	for _, row := range rows {
		claimed, err := t.repo.ClaimRetry(ctx, row.ID, t.now().UTC())
		if err != nil {
			errs = append(errs, fmt.Errorf("claim %s: %w", row.ID, err))
			continue
		}
		if !claimed {
			continue
		}
		result.Attempted++
		t.metrics.IncEmail(metrics.EmailOutcomeRetried)
		if err := t.deliver(ctx, row.ID, row.Recipient, row.Subject, row.Content); err != nil {
			result.StillFailed++
			if row.RetryCount+1 >= row.MaxRetries {
				result.Exhausted++
			}
			continue
		}
		result.Succeeded++
	}

	if count, err := t.repo.CountExhausted(ctx); err == nil {
		t.metrics.SetExhaustedEmails(count)
	} else {
		errs = append(errs, fmt.Errorf("count exhausted: %w", err))
	}

	if t.logg != nil {
		logCtx := t.logg.WithFields(ctx, map[string]any{
			"attempted":    result.Attempted,
			"succeeded":    result.Succeeded,
			"still_failed": result.StillFailed,
			"exhausted":    result.Exhausted,
			"reclaimed":    result.Reclaimed,
		})
		t.logg.Info(logCtx, "email retry sweep finished")
	}
	return result, multierr.Combine(errs...)
}

func (t *tracker) ListExhausted(ctx context.Context, limit int) ([]models.EmailDelivery, error) {
	rows, err := t.repo.ListExhausted(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list exhausted deliveries")
	}
	return rows, nil
}

// deliver hands the stored bytes to the transport. Transport failures are
// written to the row and returned; bookkeeping failures are logged only.
func (t *tracker) deliver(ctx context.Context, id uuid.UUID, to, subject, content string) error {
	providerID, sendErr := t.mailer.Send(ctx, mailer.Message{To: to, Subject: subject, HTML: content})
	if sendErr != nil {
		if err := t.MarkFailed(ctx, id, sendErr); err != nil {
			t.logError(ctx, id, "failed to record email failure", err)
		}
		return sendErr
	}
	if err := t.MarkSent(ctx, id, providerID); err != nil {
		t.logError(ctx, id, "failed to record email success", err)
	}
	return nil
}

func (t *tracker) logError(ctx context.Context, id uuid.UUID, msg string, err error) {
	if t.logg == nil {
		return
	}
	t.logg.Error(t.logg.WithField(ctx, "email_delivery_id", id.String()), msg, err)
}
