package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateGroupOrder OutboxAggregateType = "group_order"
	AggregateOrder      OutboxAggregateType = "order"
)

var aggregateTypes = newValueSet("aggregate type", AggregateGroupOrder, AggregateOrder)

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderConfirmed         OutboxEventType = "order_confirmed"
	EventGroupOrderThresholdMet OutboxEventType = "group_order_threshold_met"
	EventGroupOrderOrdered      OutboxEventType = "group_order_ordered"
	EventGroupOrderShipped      OutboxEventType = "group_order_shipped"
	EventGroupOrderDelivered    OutboxEventType = "group_order_delivered"
	EventGroupOrderCancelled    OutboxEventType = "group_order_cancelled"
	EventGroupOrderExpired      OutboxEventType = "group_order_expired"
)

var eventTypes = newValueSet("event type",
	EventOrderConfirmed,
	EventGroupOrderThresholdMet,
	EventGroupOrderOrdered,
	EventGroupOrderShipped,
	EventGroupOrderDelivered,
	EventGroupOrderCancelled,
	EventGroupOrderExpired,
)

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

// NotificationTypeForEvent maps a transition event to the notification it fans out.
func NotificationTypeForEvent(event OutboxEventType) (NotificationType, bool) {
	switch event {
	case EventOrderConfirmed:
		return NotificationTypeOrderConfirmed, true
	case EventGroupOrderThresholdMet:
		return NotificationTypeThresholdMet, true
	case EventGroupOrderOrdered:
		return NotificationTypeGroupOrdered, true
	case EventGroupOrderShipped:
		return NotificationTypeShipped, true
	case EventGroupOrderDelivered:
		return NotificationTypeDelivered, true
	case EventGroupOrderCancelled:
		return NotificationTypeCancelled, true
	case EventGroupOrderExpired:
		return NotificationTypeExpired, true
	}
	return "", false
}
