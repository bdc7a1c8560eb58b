package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// ErrGroupOrderNotFound is returned when the locked row does not exist.
var ErrGroupOrderNotFound = errors.New("group order not found")

var errMissingTimestamp = errors.New("ledger delta requires a timestamp")

// Repository performs the aggregate updates on group_orders. Every mutation is
// a single conditional UPDATE so concurrent writers never lose increments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Lock(ctx context.Context, groupOrderID uuid.UUID) (*models.GroupOrder, error)
	Increment(ctx context.Context, delta Delta) (bool, error)
	Decrement(ctx context.Context, delta Delta) (bool, error)
	HasOtherActiveOrder(ctx context.Context, groupOrderID, userID, excludeOrderID uuid.UUID) (bool, error)
}

// Delta is one ledger adjustment. Values are always positive; the direction
// comes from the repository method. Now stamps updated_at, and on Increment
// it also rejects batches that have expired.
type Delta struct {
	GroupOrderID     uuid.UUID
	Amount           decimal.Decimal
	Quantity         int
	Participants     int
	ExpectedStatuses []enums.GroupOrderStatus
	Now              time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Lock reads the group order with a row lock. SQLite ignores the locking
// clause and serializes writers on its own.
func (r *repository) Lock(ctx context.Context, groupOrderID uuid.UUID) (*models.GroupOrder, error) {
	var row models.GroupOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", groupOrderID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGroupOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Increment(ctx context.Context, delta Delta) (bool, error) {
	if delta.Now.IsZero() {
		return false, errMissingTimestamp
	}
	query := r.db.WithContext(ctx).
		Model(&models.GroupOrder{}).
		Where("id = ?", delta.GroupOrderID).
		Where("(target_quantity = 0 OR current_quantity + ? <= target_quantity)", delta.Quantity)
	if len(delta.ExpectedStatuses) > 0 {
		query = query.Where("status IN ?", delta.ExpectedStatuses)
	}
	result := query.Where("expires_at > ?", delta.Now).UpdateColumns(map[string]any{
		"current_amount":    gorm.Expr("current_amount + ?", delta.Amount),
		"current_quantity":  gorm.Expr("current_quantity + ?", delta.Quantity),
		"participant_count": gorm.Expr("participant_count + ?", delta.Participants),
		"updated_at":        delta.Now,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) Decrement(ctx context.Context, delta Delta) (bool, error) {
	if delta.Now.IsZero() {
		return false, errMissingTimestamp
	}
	query := r.db.WithContext(ctx).
		Model(&models.GroupOrder{}).
		Where("id = ?", delta.GroupOrderID).
		Where("current_quantity >= ? AND participant_count >= ?", delta.Quantity, delta.Participants)
	if len(delta.ExpectedStatuses) > 0 {
		query = query.Where("status IN ?", delta.ExpectedStatuses)
	}
	result := query.UpdateColumns(map[string]any{
		"current_amount":    gorm.Expr("current_amount - ?", delta.Amount),
		"current_quantity":  gorm.Expr("current_quantity - ?", delta.Quantity),
		"participant_count": gorm.Expr("participant_count - ?", delta.Participants),
		"updated_at":        delta.Now,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) HasOtherActiveOrder(ctx context.Context, groupOrderID, userID, excludeOrderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("group_order_id = ? AND user_id = ? AND id <> ?", groupOrderID, userID, excludeOrderID).
		Where("status <> ?", enums.OrderStatusCancelled).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
