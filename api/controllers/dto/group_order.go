package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// GroupOrder is the public view of a batch and its running totals.
type GroupOrder struct {
	ID                uuid.UUID              `json:"id"`
	BatchNumber       string                 `json:"batch_number"`
	ProductID         uuid.UUID              `json:"product_id"`
	Status            enums.GroupOrderStatus `json:"status"`
	MinThreshold      decimal.Decimal        `json:"min_threshold"`
	TargetQuantity    int                    `json:"target_quantity"`
	PricePerUnit      decimal.Decimal        `json:"price_per_unit"`
	CurrentAmount     decimal.Decimal        `json:"current_amount"`
	CurrentQuantity   int                    `json:"current_quantity"`
	ParticipantCount  int                    `json:"participant_count"`
	ThresholdReached  bool                   `json:"threshold_reached"`
	RemainingCapacity *int                   `json:"remaining_capacity,omitempty"`
	ExpiresAt         time.Time              `json:"expires_at"`
	EstimatedDelivery *time.Time             `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time             `json:"actual_delivery,omitempty"`
	CancelReason      *string                `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// NewGroupOrder maps the persisted batch into its API view.
func NewGroupOrder(g models.GroupOrder) GroupOrder {
	view := GroupOrder{
		ID:                g.ID,
		BatchNumber:       g.BatchNumber,
		ProductID:         g.ProductID,
		Status:            g.Status,
		MinThreshold:      g.MinThreshold,
		TargetQuantity:    g.TargetQuantity,
		PricePerUnit:      g.PricePerUnit,
		CurrentAmount:     g.CurrentAmount,
		CurrentQuantity:   g.CurrentQuantity,
		ParticipantCount:  g.ParticipantCount,
		ThresholdReached:  g.ThresholdReached(),
		ExpiresAt:         g.ExpiresAt,
		EstimatedDelivery: g.EstimatedDelivery,
		ActualDelivery:    g.ActualDelivery,
		CancelReason:      g.CancelReason,
		CreatedAt:         g.CreatedAt,
		UpdatedAt:         g.UpdatedAt,
	}
	if remaining := g.RemainingCapacity(); remaining >= 0 {
		view.RemainingCapacity = &remaining
	}
	return view
}

// Order is the public view of one participant order.
type Order struct {
	ID               uuid.UUID           `json:"id"`
	OrderNumber      string              `json:"order_number"`
	UserID           uuid.UUID           `json:"user_id"`
	GroupOrderID     uuid.UUID           `json:"group_order_id"`
	Quantity         int                 `json:"quantity"`
	UnitPrice        decimal.Decimal     `json:"unit_price"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	AddressID        *uuid.UUID          `json:"address_id,omitempty"`
	PaymentReference *string             `json:"payment_reference,omitempty"`
	PlacedAt         time.Time           `json:"placed_at"`
	ConfirmedAt      *time.Time          `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time          `json:"cancelled_at,omitempty"`
	DeliveredAt      *time.Time          `json:"delivered_at,omitempty"`
}

// NewOrder maps a persisted order into its API view.
func NewOrder(o models.Order) Order {
	return Order{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		UserID:           o.UserID,
		GroupOrderID:     o.GroupOrderID,
		Quantity:         o.Quantity,
		UnitPrice:        o.UnitPrice,
		TotalAmount:      o.TotalAmount,
		Status:           o.Status,
		PaymentStatus:    o.PaymentStatus,
		AddressID:        o.AddressID,
		PaymentReference: o.PaymentReference,
		PlacedAt:         o.PlacedAt,
		ConfirmedAt:      o.ConfirmedAt,
		CancelledAt:      o.CancelledAt,
		DeliveredAt:      o.DeliveredAt,
	}
}

// JoinResponse is returned after a buyer joins a batch.
type JoinResponse struct {
	Order        Order      `json:"order"`
	GroupOrder   GroupOrder `json:"group_order"`
	ThresholdMet bool       `json:"threshold_met"`
}
