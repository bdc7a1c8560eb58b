package grouporders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// ErrNotFound is returned when a group order lookup misses.
var ErrNotFound = errors.New("group order not found")

// Repository persists group orders outside of the ledger columns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, groupOrder *models.GroupOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.GroupOrder, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.GroupOrder, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.GroupOrderStatus, at time.Time, extra map[string]any) (bool, error)
	MarkThresholdMet(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]models.GroupOrder, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a group order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, groupOrder *models.GroupOrder) error {
	return r.db.WithContext(ctx).Create(groupOrder).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.GroupOrder, error) {
	return r.find(r.db.WithContext(ctx), id)
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.GroupOrder, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repository) find(query *gorm.DB, id uuid.UUID) (*models.GroupOrder, error) {
	var row models.GroupOrder
	err := query.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CompareAndSetStatus moves the row from one status to another only if it is
// still in from. extra columns are written in the same statement.
func (r *repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.GroupOrderStatus, at time.Time, extra map[string]any) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	for k, v := range extra {
		updates[k] = v
	}
	result := r.db.WithContext(ctx).
		Model(&models.GroupOrder{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkThresholdMet flips a collecting batch whose pooled amount has reached
// the minimum. Exactly one caller sees true for a given batch.
func (r *repository) MarkThresholdMet(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.GroupOrder{}).
		Where("id = ? AND status = ? AND current_amount >= min_threshold", id, enums.GroupOrderStatusCollecting).
		UpdateColumns(map[string]any{
			"status":     enums.GroupOrderStatusThresholdMet,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]models.GroupOrder, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.GroupOrder
	if err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.GroupOrderStatusCollecting, now).
		Order("expires_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
