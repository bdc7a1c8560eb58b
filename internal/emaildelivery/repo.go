package emaildelivery

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

const (
	maxErrorLen = 1024

	// staleOutcomeError is stored on rows whose send outcome was never written back.
	staleOutcomeError = "send outcome was not recorded"
)

// ErrNotFound is returned when a delivery lookup misses.
var ErrNotFound = errors.New("email delivery not found")

// Repository persists EmailDelivery rows.
type Repository interface {
	Create(ctx context.Context, row *models.EmailDelivery) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.EmailDelivery, error)
	MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string, now time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string, now time.Time) error
	MarkDelivered(ctx context.Context, providerMessageID string, now time.Time) (bool, error)
	ListRetryable(ctx context.Context, limit int) ([]models.EmailDelivery, error)
	ClaimRetry(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	FailStalePending(ctx context.Context, before, now time.Time) (int64, error)
	ListExhausted(ctx context.Context, limit int) ([]models.EmailDelivery, error)
	CountExhausted(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an email delivery repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, row *models.EmailDelivery) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.EmailDelivery, error) {
	var row models.EmailDelivery
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string, now time.Time) error {
	updates := map[string]any{
		"status":     enums.EmailDeliveryStatusSent,
		"sent_at":    now,
		"error":      nil,
		"updated_at": now,
	}
	if providerMessageID != "" {
		updates["provider_message_id"] = providerMessageID
	}
	return r.db.WithContext(ctx).
		Model(&models.EmailDelivery{}).
		Where("id = ?", id).
		UpdateColumns(updates).Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, message string, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.EmailDelivery{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"status":     enums.EmailDeliveryStatusFailed,
			"failed_at":  now,
			"error":      truncateError(message),
			"updated_at": now,
		}).Error
}

// truncateError caps a provider error at maxErrorLen bytes and drops any
// invalid UTF-8, including a rune split by the cut.
func truncateError(message string) string {
	if len(message) > maxErrorLen {
		message = message[:maxErrorLen]
	}
	return strings.ToValidUTF8(message, "")
}

// MarkDelivered is driven by the provider webhook. Only sent rows move forward.
func (r *repository) MarkDelivered(ctx context.Context, providerMessageID string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.EmailDelivery{}).
		Where("provider_message_id = ? AND status = ?", providerMessageID, enums.EmailDeliveryStatusSent).
		UpdateColumns(map[string]any{
			"status":       enums.EmailDeliveryStatusDelivered,
			"delivered_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListRetryable(ctx context.Context, limit int) ([]models.EmailDelivery, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.EmailDelivery
	if err := r.db.WithContext(ctx).
		Where("status = ? AND retry_count < max_retries", enums.EmailDeliveryStatusFailed).
		Order("failed_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ClaimRetry atomically moves a failed row back to pending and spends one
// retry. A false result means another sweep or send already took it.
func (r *repository) ClaimRetry(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.EmailDelivery{}).
		Where("id = ? AND status = ? AND retry_count < max_retries", id, enums.EmailDeliveryStatusFailed).
		UpdateColumns(map[string]any{
			"status":      enums.EmailDeliveryStatusPending,
			"retry_count": gorm.Expr("retry_count + 1"),
			"error":       nil,
			"updated_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FailStalePending marks rows that have sat in pending since before as failed
// so the retry sweep picks them up. A pending row only goes stale when the
// outcome of its send could not be written.
func (r *repository) FailStalePending(ctx context.Context, before, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.EmailDelivery{}).
		Where("status = ? AND updated_at < ?", enums.EmailDeliveryStatusPending, before).
		UpdateColumns(map[string]any{
			"status":     enums.EmailDeliveryStatusFailed,
			"failed_at":  now,
			"error":      staleOutcomeError,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) ListExhausted(ctx context.Context, limit int) ([]models.EmailDelivery, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.EmailDelivery
	if err := r.db.WithContext(ctx).
		Where("status = ? AND retry_count >= max_retries", enums.EmailDeliveryStatusFailed).
		Order("failed_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountExhausted(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EmailDelivery{}).
		Where("status = ? AND retry_count >= max_retries", enums.EmailDeliveryStatusFailed).
		Count(&count).Error
	return count, err
}
