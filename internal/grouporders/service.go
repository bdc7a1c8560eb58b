package grouporders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/internal/discounts"
	"github.com/angelmondragon/groupbuy-backend/internal/ledger"
	"github.com/angelmondragon/groupbuy-backend/internal/orders"
	"github.com/angelmondragon/groupbuy-backend/pkg/cache"
	"github.com/angelmondragon/groupbuy-backend/pkg/db"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox/payloads"
)

const (
	batchNumberConstraint = "group_orders_batch_number_key"
	orderNumberConstraint = "orders_order_number_key"
	defaultExpiryBatch    = 50
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type pricer interface {
	ComputePrice(ctx context.Context, productID uuid.UUID, quantity int, selection discounts.Selection) (discounts.Result, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (uuid.UUID, error)
}

type eventPublisher interface {
	Deliver(ctx context.Context, eventIDs ...uuid.UUID) error
}

// Service owns the group order lifecycle: opening batches, joins, buyer
// cancellations, operator transitions, payment confirmation and expiry.
type Service interface {
	OpenGroupOrder(ctx context.Context, input OpenInput) (*models.GroupOrder, error)
	GetGroupOrder(ctx context.Context, id uuid.UUID) (*models.GroupOrder, error)
	JoinGroupOrder(ctx context.Context, input JoinInput) (*JoinResult, error)
	TransitionGroupOrder(ctx context.Context, id uuid.UUID, input TransitionInput) (*models.GroupOrder, error)
	CancelGroupOrder(ctx context.Context, id uuid.UUID, reason string) (*models.GroupOrder, error)
	CancelOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentReference string) (*models.Order, error)
	ExpireDue(ctx context.Context, limit int) (ExpireResult, error)
}

// OpenInput describes a new batch.
type OpenInput struct {
	ProductID         uuid.UUID
	MinThreshold      decimal.Decimal
	TargetQuantity    int
	ExpiresAt         time.Time
	EstimatedDelivery *time.Time
	Pricing           discounts.Selection
}

// JoinInput is one buyer's request to join a batch.
type JoinInput struct {
	GroupOrderID uuid.UUID
	UserID       uuid.UUID
	Quantity     int
	AddressID    *uuid.UUID
}

// JoinResult carries the created order and the ledger state after the join.
type JoinResult struct {
	Order        models.Order      `json:"order"`
	GroupOrder   models.GroupOrder `json:"group_order"`
	ThresholdMet bool              `json:"threshold_met"`
}

// TransitionInput is an operator status change.
type TransitionInput struct {
	Status            enums.GroupOrderStatus
	EstimatedDelivery *time.Time
	Reason            string
}

// ExpireResult summarizes one expiry sweep.
type ExpireResult struct {
	Scanned         int `json:"scanned"`
	Expired         int `json:"expired"`
	OrdersCancelled int `json:"orders_cancelled"`
}

// ServiceParams wires the lifecycle service.
type ServiceParams struct {
	Tx        txRunner
	Repo      Repository
	Orders    orders.Repository
	Ledger    ledger.Service
	Products  productReader
	Pricing   pricer
	Outbox    eventEmitter
	Publisher eventPublisher
	Cache     cache.Store
	CacheTTL  time.Duration
	Metrics   *metrics.GroupBuyMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	tx        txRunner
	repo      Repository
	orders    orders.Repository
	ledger    ledger.Service
	products  productReader
	pricing   pricer
	outbox    eventEmitter
	publisher eventPublisher
	cache     cache.Store
	cacheTTL  time.Duration
	metrics   *metrics.GroupBuyMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the group order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("group order repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if params.Pricing == nil {
		return nil, fmt.Errorf("pricing service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	store := params.Cache
	if store == nil {
		store = cache.Noop{}
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:        params.Tx,
		repo:      params.Repo,
		orders:    params.Orders,
		ledger:    params.Ledger,
		products:  params.Products,
		pricing:   params.Pricing,
		outbox:    params.Outbox,
		publisher: params.Publisher,
		cache:     store,
		cacheTTL:  ttl,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// CacheKey is the read-through cache key for a group order.
func CacheKey(id uuid.UUID) string {
	return "group_order:" + id.String()
}

func (s *service) OpenGroupOrder(ctx context.Context, input OpenInput) (*models.GroupOrder, error) {
	now := s.now().UTC()
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if !input.MinThreshold.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min threshold must be greater than zero")
	}
	if input.TargetQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target quantity must not be negative")
	}
	if !input.ExpiresAt.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expires_at must be in the future")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}
	pricingQty := input.TargetQuantity
	if pricingQty <= 0 {
		pricingQty = max(product.MinOrderQty, 1)
	}
	price, err := s.pricing.ComputePrice(ctx, product.ID, pricingQty, input.Pricing)
	if err != nil {
		return nil, err
	}

	var created models.GroupOrder
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		batchNumber, err := NewBatchNumber(now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate batch number")
		}
		created = models.GroupOrder{
			ID:                uuid.New(),
			BatchNumber:       batchNumber,
			ProductID:         product.ID,
			MinThreshold:      input.MinThreshold.Round(2),
			TargetQuantity:    input.TargetQuantity,
			PricePerUnit:      price.EffectivePrice,
			Status:            enums.GroupOrderStatusCollecting,
			CurrentAmount:     decimal.Zero,
			ExpiresAt:         input.ExpiresAt.UTC(),
			EstimatedDelivery: input.EstimatedDelivery,
		}
		err = s.repo.Create(ctx, &created)
		if err == nil {
			break
		}
		if db.IsUniqueViolation(err, batchNumberConstraint) && attempt < maxNumberAttempts {
			continue
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create group order")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"group_order_id": created.ID.String(),
		"batch_number":   created.BatchNumber,
		"product_id":     created.ProductID.String(),
	})
	s.logg.Info(logCtx, "group order opened")
	return &created, nil
}

func (s *service) GetGroupOrder(ctx context.Context, id uuid.UUID) (*models.GroupOrder, error) {
	var cached models.GroupOrder
	if ok, err := cache.GetJSON(ctx, s.cache, CacheKey(id), &cached); err == nil && ok {
		return &cached, nil
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapGroupOrderErr(err)
	}
	_ = cache.SetJSON(ctx, s.cache, CacheKey(id), row, s.cacheTTL)
	return row, nil
}

func (s *service) JoinGroupOrder(ctx context.Context, input JoinInput) (*JoinResult, error) {
	result, events, err := s.join(ctx, input)
	if err != nil {
		s.metrics.IncJoin(metrics.JoinRejected)
		return nil, err
	}
	s.metrics.IncJoin(metrics.JoinAccepted)
	if result.ThresholdMet {
		s.metrics.IncThresholdCrossing()
		s.metrics.IncTransition(string(enums.GroupOrderStatusThresholdMet))
	}
	s.afterCommit(ctx, input.GroupOrderID, events)
	return result, nil
}

func (s *service) join(ctx context.Context, input JoinInput) (*JoinResult, []uuid.UUID, error) {
	if input.GroupOrderID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "group order id required")
	}
	if input.UserID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.Quantity <= 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}

	groupOrder, err := s.repo.FindByID(ctx, input.GroupOrderID)
	if err != nil {
		return nil, nil, mapGroupOrderErr(err)
	}
	product, err := s.products.FindByID(ctx, groupOrder.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateJoinQuantity(*product, input.Quantity); err != nil {
		return nil, nil, err
	}

	for attempt := 1; ; attempt++ {
		orderNumber, err := NewOrderNumber()
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		result, events, err := s.joinTx(ctx, input, groupOrder.PricePerUnit, orderNumber)
		if err == nil {
			return result, events, nil
		}
		if db.IsUniqueViolation(err, orderNumberConstraint) && attempt < maxNumberAttempts {
			continue
		}
		return nil, nil, asDomainErr(err, "join group order")
	}
}

func (s *service) joinTx(ctx context.Context, input JoinInput, unitPrice decimal.Decimal, orderNumber string) (*JoinResult, []uuid.UUID, error) {
	var (
		result JoinResult
		events []uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now().UTC()
		entry := ledger.Entry{
			GroupOrderID: input.GroupOrderID,
			OrderID:      uuid.New(),
			UserID:       input.UserID,
			Quantity:     input.Quantity,
			UnitPrice:    unitPrice,
		}
		updated, err := s.ledger.ApplyJoin(ctx, tx, entry)
		if err != nil {
			return err
		}

		order := models.Order{
			ID:            entry.OrderID,
			OrderNumber:   orderNumber,
			UserID:        input.UserID,
			GroupOrderID:  input.GroupOrderID,
			Quantity:      input.Quantity,
			UnitPrice:     unitPrice,
			TotalAmount:   entry.Amount(),
			Status:        enums.OrderStatusPending,
			PaymentStatus: enums.PaymentStatusPending,
			AddressID:     input.AddressID,
			PlacedAt:      now,
		}
		if err := s.orders.WithTx(tx).Create(ctx, &order); err != nil {
			return err
		}

		if updated.Status == enums.GroupOrderStatusCollecting {
			crossed, err := s.repo.WithTx(tx).MarkThresholdMet(ctx, updated.ID, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "evaluate threshold")
			}
			if crossed {
				from := updated.Status
				updated.Status = enums.GroupOrderStatusThresholdMet
				eventID, err := s.emitTransition(ctx, tx, *updated, from, "")
				if err != nil {
					return err
				}
				events = append(events, eventID)
				result.ThresholdMet = true
			}
		}

		result.Order = order
		result.GroupOrder = *updated
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &result, events, nil
}

func (s *service) TransitionGroupOrder(ctx context.Context, id uuid.UUID, input TransitionInput) (*models.GroupOrder, error) {
	target := input.Status
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown status %q", target))
	}
	if !adminTargets[target] {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("status %s cannot be requested directly", target))
	}
	if target == enums.GroupOrderStatusCancelled {
		return s.CancelGroupOrder(ctx, id, input.Reason)
	}

	var (
		updated models.GroupOrder
		events  []uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.LockByID(ctx, id)
		if err != nil {
			return mapGroupOrderErr(err)
		}
		if !CanTransition(current.Status, target) {
			return illegalTransition(current.Status, target)
		}

		now := s.now().UTC()
		extra := map[string]any{}
		switch target {
		case enums.GroupOrderStatusShipped:
			if input.EstimatedDelivery != nil {
				eta := input.EstimatedDelivery.UTC()
				extra["estimated_delivery"] = eta
				current.EstimatedDelivery = &eta
			}
		case enums.GroupOrderStatusDelivered:
			extra["actual_delivery"] = now
			current.ActualDelivery = &now
		}
		ok, err := repo.CompareAndSetStatus(ctx, id, current.Status, target, now, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update group order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "group order changed during transition")
		}
		if target == enums.GroupOrderStatusDelivered {
			if _, err := s.orders.WithTx(tx).MarkDelivered(ctx, id, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark orders delivered")
			}
		}

		from := current.Status
		current.Status = target
		eventID, err := s.emitTransition(ctx, tx, *current, from, input.Reason)
		if err != nil {
			return err
		}
		events = append(events, eventID)
		updated = *current
		return nil
	})
	if err != nil {
		return nil, asDomainErr(err, "transition group order")
	}
	s.metrics.IncTransition(string(target))
	s.afterCommit(ctx, id, events)
	return &updated, nil
}

func (s *service) CancelGroupOrder(ctx context.Context, id uuid.UUID, reason string) (*models.GroupOrder, error) {
	var (
		updated models.GroupOrder
		events  []uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.repo.WithTx(tx).LockByID(ctx, id)
		if err != nil {
			return mapGroupOrderErr(err)
		}
		if !CanTransition(current.Status, enums.GroupOrderStatusCancelled) {
			return illegalTransition(current.Status, enums.GroupOrderStatusCancelled)
		}
		eventID, _, err := s.closeBatch(ctx, tx, current, enums.GroupOrderStatusCancelled, reason)
		if err != nil {
			return err
		}
		events = append(events, eventID)
		updated = *current
		return nil
	})
	if err != nil {
		return nil, asDomainErr(err, "cancel group order")
	}
	s.metrics.IncTransition(string(enums.GroupOrderStatusCancelled))
	s.afterCommit(ctx, id, events)
	return &updated, nil
}

// closeBatch moves a locked batch to cancelled or expired and reverses every
// cancellable participant order through the ledger. The event payload keeps
// the recipients captured before the orders were cancelled.
func (s *service) closeBatch(ctx context.Context, tx *gorm.DB, current *models.GroupOrder, target enums.GroupOrderStatus, reason string) (uuid.UUID, int, error) {
	orderRepo := s.orders.WithTx(tx)
	active, err := orderRepo.ListActiveByGroupOrder(ctx, current.ID)
	if err != nil {
		return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list participant orders")
	}
	now := s.now().UTC()
	cancelled := 0
	for _, order := range active {
		if !order.Status.IsCancellable() {
			continue
		}
		ok, err := orderRepo.Cancel(ctx, order.ID, now)
		if err != nil {
			return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel participant order")
		}
		if !ok {
			continue
		}
		if _, err := s.ledger.ApplyCancellation(ctx, tx, entryFor(order)); err != nil {
			return uuid.Nil, 0, err
		}
		cancelled++
	}

	extra := map[string]any{}
	if reason != "" {
		extra["cancel_reason"] = reason
		current.CancelReason = &reason
	}
	ok, err := s.repo.WithTx(tx).CompareAndSetStatus(ctx, current.ID, current.Status, target, now, extra)
	if err != nil {
		return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update group order status")
	}
	if !ok {
		return uuid.Nil, 0, pkgerrors.New(pkgerrors.CodeConflict, "group order changed during transition")
	}

	refreshed, err := s.repo.WithTx(tx).FindByID(ctx, current.ID)
	if err != nil {
		return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload group order")
	}
	from := current.Status
	*current = *refreshed
	eventID, err := s.emitTransitionFor(ctx, tx, *current, from, reason, participantIDs(active))
	if err != nil {
		return uuid.Nil, 0, err
	}
	return eventID, cancelled, nil
}

func (s *service) CancelOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var (
		cancelled    models.Order
		groupOrderID uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		order, err := orderRepo.LockByID(ctx, orderID)
		if err != nil {
			return mapOrderErr(err)
		}
		if userID != uuid.Nil && order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !order.Status.IsCancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s", order.Status))
		}
		groupOrder, err := s.repo.WithTx(tx).LockByID(ctx, order.GroupOrderID)
		if err != nil {
			return mapGroupOrderErr(err)
		}
		if !groupOrder.Status.AcceptsJoins() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("group order is %s", groupOrder.Status))
		}

		now := s.now().UTC()
		ok, err := orderRepo.Cancel(ctx, order.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed during cancellation")
		}
		if _, err := s.ledger.ApplyCancellation(ctx, tx, entryFor(*order)); err != nil {
			return err
		}
		refreshed, err := orderRepo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		cancelled = *refreshed
		groupOrderID = order.GroupOrderID
		return nil
	})
	if err != nil {
		return nil, asDomainErr(err, "cancel order")
	}
	s.invalidate(ctx, groupOrderID)
	return &cancelled, nil
}

func (s *service) ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentReference string) (*models.Order, error) {
	var (
		confirmed models.Order
		events    []uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		order, err := orderRepo.LockByID(ctx, orderID)
		if err != nil {
			return mapOrderErr(err)
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			confirmed = *order
			return nil
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s", order.Status))
		}
		ok, err := orderRepo.Confirm(ctx, order.ID, paymentReference, s.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed during confirmation")
		}
		refreshed, err := orderRepo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		eventID, err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   refreshed.ID,
			Data: payloads.OrderConfirmedEvent{
				OrderID:      refreshed.ID,
				OrderNumber:  refreshed.OrderNumber,
				GroupOrderID: refreshed.GroupOrderID,
				UserID:       refreshed.UserID,
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order confirmed")
		}
		events = append(events, eventID)
		confirmed = *refreshed
		return nil
	})
	if err != nil {
		return nil, asDomainErr(err, "confirm payment")
	}
	s.publish(ctx, events)
	return &confirmed, nil
}

// ExpireDue moves collecting batches past their deadline to expired. Each
// batch commits on its own so one failure does not hold back the rest.
func (s *service) ExpireDue(ctx context.Context, limit int) (ExpireResult, error) {
	if limit <= 0 {
		limit = defaultExpiryBatch
	}
	var result ExpireResult
	due, err := s.repo.ListDueForExpiry(ctx, s.now().UTC(), limit)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired group orders")
	}
	result.Scanned = len(due)

	var errs error
	for _, candidate := range due {
		expired, cancelled, events, err := s.expireOne(ctx, candidate.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire %s: %w", candidate.ID, err))
			continue
		}
		if !expired {
			continue
		}
		result.Expired++
		result.OrdersCancelled += cancelled
		s.metrics.IncTransition(string(enums.GroupOrderStatusExpired))
		s.afterCommit(ctx, candidate.ID, events)
	}
	return result, errs
}

func (s *service) expireOne(ctx context.Context, id uuid.UUID) (bool, int, []uuid.UUID, error) {
	var (
		expired   bool
		cancelled int
		events    []uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.repo.WithTx(tx).LockByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != enums.GroupOrderStatusCollecting || current.ExpiresAt.After(s.now().UTC()) {
			return nil
		}
		eventID, count, err := s.closeBatch(ctx, tx, current, enums.GroupOrderStatusExpired, "")
		if err != nil {
			return err
		}
		cancelled = count
		expired = true
		events = append(events, eventID)
		return nil
	})
	if err != nil {
		return false, 0, nil, err
	}
	return expired, cancelled, events, nil
}

func (s *service) emitTransition(ctx context.Context, tx *gorm.DB, groupOrder models.GroupOrder, from enums.GroupOrderStatus, reason string) (uuid.UUID, error) {
	active, err := s.orders.WithTx(tx).ListActiveByGroupOrder(ctx, groupOrder.ID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list participant orders")
	}
	return s.emitTransitionFor(ctx, tx, groupOrder, from, reason, participantIDs(active))
}

func (s *service) emitTransitionFor(ctx context.Context, tx *gorm.DB, groupOrder models.GroupOrder, from enums.GroupOrderStatus, reason string, userIDs []uuid.UUID) (uuid.UUID, error) {
	eventType, ok := eventForStatus(groupOrder.Status)
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("no event for status %s", groupOrder.Status))
	}
	id, err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateGroupOrder,
		AggregateID:   groupOrder.ID,
		Data: payloads.GroupOrderTransitionEvent{
			GroupOrderID: groupOrder.ID,
			BatchNumber:  groupOrder.BatchNumber,
			From:         from,
			To:           groupOrder.Status,
			Reason:       reason,
			UserIDs:      userIDs,
		},
	})
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit transition event")
	}
	return id, nil
}

// afterCommit runs once the transaction is durable, so it must outlive a
// caller that has already gone away.
func (s *service) afterCommit(ctx context.Context, groupOrderID uuid.UUID, events []uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	s.invalidate(ctx, groupOrderID)
	s.publish(ctx, events)
}

func (s *service) invalidate(ctx context.Context, groupOrderID uuid.UUID) {
	if groupOrderID == uuid.Nil {
		return
	}
	if err := s.cache.Del(ctx, CacheKey(groupOrderID)); err != nil {
		s.logg.Warn(s.logg.WithGroupOrderID(ctx, groupOrderID.String()), "group order cache invalidation failed")
	}
}

// publish runs the fan-out for committed events. Failures stay on the outbox
// row for the recovery job and never reach the caller.
func (s *service) publish(ctx context.Context, events []uuid.UUID) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Deliver(ctx, events...); err != nil {
		s.logg.Error(ctx, "notification fan-out failed", err)
	}
}

func entryFor(order models.Order) ledger.Entry {
	return ledger.Entry{
		GroupOrderID: order.GroupOrderID,
		OrderID:      order.ID,
		UserID:       order.UserID,
		Quantity:     order.Quantity,
		UnitPrice:    order.UnitPrice,
	}
}

func participantIDs(rows []models.Order) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(rows))
	out := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.UserID]; ok {
			continue
		}
		seen[row.UserID] = struct{}{}
		out = append(out, row.UserID)
	}
	return out
}

func illegalTransition(from, to enums.GroupOrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move group order from %s to %s", from, to)).WithDetails(map[string]any{
		"from":    from,
		"to":      to,
		"allowed": AllowedTargets(from),
	})
}

func mapGroupOrderErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "group order not found")
	}
	return asDomainErr(err, "load group order")
}

func mapOrderErr(err error) error {
	if errors.Is(err, orders.ErrNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return asDomainErr(err, "load order")
}

func asDomainErr(err error, message string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
