package orders

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

// ErrNotFound is returned when an order lookup misses.
var ErrNotFound = errors.New("order not found")

// Repository persists participant orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListActiveByGroupOrder(ctx context.Context, groupOrderID uuid.UUID) ([]models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	Cancel(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	Confirm(ctx context.Context, id uuid.UUID, paymentReference string, now time.Time) (bool, error)
	MarkDelivered(ctx context.Context, groupOrderID uuid.UUID, now time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.find(r.db.WithContext(ctx), id)
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repository) find(query *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := query.Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListActiveByGroupOrder returns every non-cancelled order for the batch.
func (r *repository) ListActiveByGroupOrder(ctx context.Context, groupOrderID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	if err := r.db.WithContext(ctx).
		Where("group_order_id = ? AND status <> ?", groupOrderID, enums.OrderStatusCancelled).
		Order("placed_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("placed_at DESC").
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Cancel moves a pending or confirmed order to cancelled. Paid orders are
// flagged for refund. Returns false when the order was not cancellable.
func (r *repository) Cancel(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed}).
		UpdateColumns(map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
			"payment_status": gorm.Expr("CASE WHEN payment_status = ? THEN ? ELSE payment_status END",
				enums.PaymentStatusPaid, enums.PaymentStatusRefundPending),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Confirm records a completed payment on a pending order.
func (r *repository) Confirm(ctx context.Context, id uuid.UUID, paymentReference string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND payment_status = ?", id, enums.OrderStatusPending, enums.PaymentStatusPending).
		UpdateColumns(map[string]any{
			"status":            enums.OrderStatusConfirmed,
			"payment_status":    enums.PaymentStatusPaid,
			"payment_reference": paymentReference,
			"confirmed_at":      now,
			"updated_at":        now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkDelivered stamps every surviving order of a delivered batch.
func (r *repository) MarkDelivered(ctx context.Context, groupOrderID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("group_order_id = ? AND status IN ?", groupOrderID, []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed}).
		UpdateColumns(map[string]any{
			"status":       enums.OrderStatusDelivered,
			"delivered_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
