package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/pagination"
)

// Repository persists in-app notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	Page(ctx context.Context, q pageQuery) ([]models.Notification, *pagination.Cursor, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) (readState, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	PurgeReadBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type pageQuery struct {
	UserID     uuid.UUID
	Limit      int
	After      *pagination.Cursor
	UnreadOnly bool
}

// readState reports what MarkRead did with a notification.
type readState int

const (
	readMissing readState = iota
	readAlready
	readMarked
)

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) owned(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

func (r *gormRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(notification).Error
}

// Page returns notifications newest first, resuming strictly after q.After.
func (r *gormRepository) Page(ctx context.Context, q pageQuery) ([]models.Notification, *pagination.Cursor, error) {
	tx := r.owned(ctx, q.UserID)
	if q.UnreadOnly {
		tx = tx.Where("read_at IS NULL")
	}
	if after := q.After; after != nil {
		tx = tx.Where("created_at < ? OR (created_at = ? AND id < ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}

	var rows []models.Notification
	err := tx.Order("created_at DESC").Order("id DESC").Limit(pagination.FetchSize(q.Limit)).Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, q.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *gormRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.owned(ctx, userID).Where("read_at IS NULL").Count(&n).Error
	return n, err
}

func (r *gormRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) (readState, error) {
	res := r.owned(ctx, userID).
		Where("id = ? AND read_at IS NULL", notificationID).
		UpdateColumn("read_at", at)
	if res.Error != nil {
		return readMissing, res.Error
	}
	if res.RowsAffected > 0 {
		return readMarked, nil
	}

	var n int64
	if err := r.owned(ctx, userID).Where("id = ?", notificationID).Count(&n).Error; err != nil {
		return readMissing, err
	}
	if n == 0 {
		return readMissing, nil
	}
	return readAlready, nil
}

func (r *gormRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.owned(ctx, userID).Where("read_at IS NULL").UpdateColumn("read_at", at)
	return res.RowsAffected, res.Error
}

// PurgeReadBefore deletes at most limit read notifications created before
// cutoff. Unread rows are never purged.
func (r *gormRepository) PurgeReadBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	ids := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Select("id").
		Where("read_at IS NOT NULL AND created_at < ?", cutoff).
		Order("created_at").
		Limit(limit)
	res := r.db.WithContext(ctx).Where("id IN (?)", ids).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
