package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

// Service keeps a group order's running totals consistent with its
// participant orders. Callers supply the transaction; the ledger never commits
// on its own so threshold evaluation can run in the same unit of work.
type Service interface {
	ApplyJoin(ctx context.Context, tx *gorm.DB, entry Entry) (*models.GroupOrder, error)
	ApplyCancellation(ctx context.Context, tx *gorm.DB, entry Entry) (*models.GroupOrder, error)
}

// Entry describes the participant order being added or removed.
type Entry struct {
	GroupOrderID uuid.UUID
	OrderID      uuid.UUID
	UserID       uuid.UUID
	Quantity     int
	UnitPrice    decimal.Decimal
}

// Amount is the money the entry contributes to the pool.
func (e Entry) Amount() decimal.Decimal {
	return e.UnitPrice.Mul(decimal.NewFromInt(int64(e.Quantity))).Round(2)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a ledger service.
func NewService(repo Repository, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, now: now}, nil
}

func (s *service) ApplyJoin(ctx context.Context, tx *gorm.DB, entry Entry) (*models.GroupOrder, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	current, err := s.lock(ctx, repo, entry.GroupOrderID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !current.Status.AcceptsJoins() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group order is not accepting joins").WithDetails(map[string]any{
			"status": current.Status,
		})
	}
	if !current.ExpiresAt.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group order has expired")
	}
	if remaining := current.RemainingCapacity(); remaining >= 0 && entry.Quantity > remaining {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds remaining capacity").WithDetails(map[string]any{
			"remaining_quantity": remaining,
			"requested_quantity": entry.Quantity,
		})
	}

	hasOther, err := repo.HasOtherActiveOrder(ctx, entry.GroupOrderID, entry.UserID, entry.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check participant orders")
	}
	participants := 1
	if hasOther {
		participants = 0
	}

	ok, err := repo.Increment(ctx, Delta{
		GroupOrderID:     entry.GroupOrderID,
		Amount:           entry.Amount(),
		Quantity:         entry.Quantity,
		Participants:     participants,
		ExpectedStatuses: enums.JoinableGroupOrderStatuses(),
		Now:              now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment ledger")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "group order changed while joining")
	}
	return s.lock(ctx, repo, entry.GroupOrderID)
}

// ApplyCancellation removes a cancelled order's contribution. The order row
// must already be marked cancelled in tx.
func (s *service) ApplyCancellation(ctx context.Context, tx *gorm.DB, entry Entry) (*models.GroupOrder, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	if _, err := s.lock(ctx, repo, entry.GroupOrderID); err != nil {
		return nil, err
	}
	hasOther, err := repo.HasOtherActiveOrder(ctx, entry.GroupOrderID, entry.UserID, entry.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check participant orders")
	}
	participants := 1
	if hasOther {
		participants = 0
	}
	ok, err := repo.Decrement(ctx, Delta{
		GroupOrderID: entry.GroupOrderID,
		Amount:       entry.Amount(),
		Quantity:     entry.Quantity,
		Participants: participants,
		Now:          s.now().UTC(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement ledger")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "ledger totals do not cover cancelled order")
	}
	return s.lock(ctx, repo, entry.GroupOrderID)
}

func (s *service) lock(ctx context.Context, repo Repository, id uuid.UUID) (*models.GroupOrder, error) {
	row, err := repo.Lock(ctx, id)
	if errors.Is(err, ErrGroupOrderNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group order")
	}
	return row, nil
}

func validateEntry(entry Entry) error {
	if entry.GroupOrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "group order id required")
	}
	if entry.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if entry.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	if entry.UnitPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}
	return nil
}
