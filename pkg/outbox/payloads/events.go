package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// GroupOrderTransitionEvent is emitted for every committed group order status
// change. UserIDs is captured inside the transition transaction so a replay
// reaches the same participants even after their orders were cancelled.
type GroupOrderTransitionEvent struct {
	GroupOrderID uuid.UUID              `json:"group_order_id"`
	BatchNumber  string                 `json:"batch_number"`
	From         enums.GroupOrderStatus `json:"from"`
	To           enums.GroupOrderStatus `json:"to"`
	Reason       string                 `json:"reason,omitempty"`
	UserIDs      []uuid.UUID            `json:"user_ids"`
}

// OrderConfirmedEvent is emitted when a participant's payment is confirmed.
type OrderConfirmedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	OrderNumber  string    `json:"order_number"`
	GroupOrderID uuid.UUID `json:"group_order_id"`
	UserID       uuid.UUID `json:"user_id"`
}
