package enums

// OrderStatus tracks a participant order inside a group order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusDelivered OrderStatus = "delivered"
)

var orderStatuses = newValueSet("order status",
	OrderStatusPending, OrderStatusConfirmed, OrderStatusCancelled, OrderStatusDelivered)

func (o OrderStatus) IsValid() bool { return orderStatuses.has(o) }

// IsCancellable reports whether the order can still be withdrawn.
func (o OrderStatus) IsCancellable() bool {
	return o == OrderStatusPending || o == OrderStatusConfirmed
}
