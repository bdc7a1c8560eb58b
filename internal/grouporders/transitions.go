package grouporders

import (
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

var allowedTransitions = map[enums.GroupOrderStatus][]enums.GroupOrderStatus{
	enums.GroupOrderStatusCollecting: {
		enums.GroupOrderStatusThresholdMet,
		enums.GroupOrderStatusExpired,
		enums.GroupOrderStatusCancelled,
	},
	enums.GroupOrderStatusThresholdMet: {
		enums.GroupOrderStatusOrdered,
		enums.GroupOrderStatusCancelled,
	},
	enums.GroupOrderStatusOrdered: {
		enums.GroupOrderStatusShipped,
		enums.GroupOrderStatusCancelled,
	},
	enums.GroupOrderStatusShipped: {
		enums.GroupOrderStatusDelivered,
		enums.GroupOrderStatusCancelled,
	},
}

// adminTargets are the forward edges an operator may request directly. The
// threshold edge is driven by the ledger and expiry by the sweep.
var adminTargets = map[enums.GroupOrderStatus]bool{
	enums.GroupOrderStatusOrdered:   true,
	enums.GroupOrderStatusShipped:   true,
	enums.GroupOrderStatusDelivered: true,
	enums.GroupOrderStatusCancelled: true,
}

var transitionEvents = map[enums.GroupOrderStatus]enums.OutboxEventType{
	enums.GroupOrderStatusThresholdMet: enums.EventGroupOrderThresholdMet,
	enums.GroupOrderStatusOrdered:      enums.EventGroupOrderOrdered,
	enums.GroupOrderStatusShipped:      enums.EventGroupOrderShipped,
	enums.GroupOrderStatusDelivered:    enums.EventGroupOrderDelivered,
	enums.GroupOrderStatusCancelled:    enums.EventGroupOrderCancelled,
	enums.GroupOrderStatusExpired:      enums.EventGroupOrderExpired,
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to enums.GroupOrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// AllowedTargets lists the statuses reachable from from.
func AllowedTargets(from enums.GroupOrderStatus) []enums.GroupOrderStatus {
	targets := allowedTransitions[from]
	out := make([]enums.GroupOrderStatus, len(targets))
	copy(out, targets)
	return out
}

func eventForStatus(status enums.GroupOrderStatus) (enums.OutboxEventType, bool) {
	event, ok := transitionEvents[status]
	return event, ok
}
