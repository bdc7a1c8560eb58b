// Package outbox records domain events in the same transaction as the state
// change that caused them, so a crash between commit and fan-out can be
// recovered by replaying unpublished rows.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

// DomainEvent is one committed state change. Data is any JSON-encodable
// payload from the payloads package.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Data          any
	Version       int
	OccurredAt    time.Time
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds the outbox service. logg may be nil.
func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit inserts event inside tx and returns the row id, which the caller
// marks published once its post-commit fan-out has run.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) (uuid.UUID, error) {
	if tx == nil {
		return uuid.Nil, errors.New("outbox: emit requires the caller's transaction")
	}
	if !event.EventType.IsValid() {
		return uuid.Nil, fmt.Errorf("outbox: unknown event type %q", event.EventType)
	}
	row, err := event.toRow(uuid.New(), s.now().UTC())
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return uuid.Nil, fmt.Errorf("outbox: insert %s: %w", event.EventType, err)
	}

	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":     row.ID.String(),
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID.String(),
		}), "outbox event queued")
	}
	return row.ID, nil
}

func (s *Service) MarkPublished(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkPublished(ctx, id, s.now().UTC())
}

// MarkFailed bumps the attempt counter and keeps the error for operators.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	return s.repo.MarkFailed(ctx, id, cause)
}

func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*models.OutboxEvent, error) {
	return s.repo.FindByID(ctx, id)
}

// FetchStale returns unpublished events created before cutoff that have been
// tried fewer than maxAttempts times, oldest first.
func (s *Service) FetchStale(ctx context.Context, cutoff time.Time, maxAttempts, limit int) ([]models.OutboxEvent, error) {
	return s.repo.FetchStale(ctx, cutoff, maxAttempts, limit)
}
