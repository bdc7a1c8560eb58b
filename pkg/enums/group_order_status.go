package enums

// GroupOrderStatus maps to the group_order_status enum in Postgres.
type GroupOrderStatus string

const (
	GroupOrderStatusCollecting   GroupOrderStatus = "collecting"
	GroupOrderStatusThresholdMet GroupOrderStatus = "threshold_met"
	GroupOrderStatusOrdered      GroupOrderStatus = "ordered"
	GroupOrderStatusShipped      GroupOrderStatus = "shipped"
	GroupOrderStatusDelivered    GroupOrderStatus = "delivered"
	GroupOrderStatusExpired      GroupOrderStatus = "expired"
	GroupOrderStatusCancelled    GroupOrderStatus = "cancelled"
)

var groupOrderStatuses = newValueSet("group order status",
	GroupOrderStatusCollecting,
	GroupOrderStatusThresholdMet,
	GroupOrderStatusOrdered,
	GroupOrderStatusShipped,
	GroupOrderStatusDelivered,
	GroupOrderStatusExpired,
	GroupOrderStatusCancelled,
)

func (s GroupOrderStatus) IsValid() bool { return groupOrderStatuses.has(s) }

// IsTerminal reports whether no further transitions are possible.
func (s GroupOrderStatus) IsTerminal() bool {
	switch s {
	case GroupOrderStatusDelivered, GroupOrderStatusExpired, GroupOrderStatusCancelled:
		return true
	}
	return false
}

// AcceptsJoins reports whether the ledger takes new participant orders in this status.
func (s GroupOrderStatus) AcceptsJoins() bool {
	return s == GroupOrderStatusCollecting || s == GroupOrderStatusThresholdMet
}

// JoinableGroupOrderStatuses lists the statuses in which joins and buyer cancellations are accepted.
func JoinableGroupOrderStatuses() []GroupOrderStatus {
	return []GroupOrderStatus{GroupOrderStatusCollecting, GroupOrderStatusThresholdMet}
}

// ParseGroupOrderStatus reads a status from API input.
func ParseGroupOrderStatus(value string) (GroupOrderStatus, error) {
	return groupOrderStatuses.parse(value)
}
