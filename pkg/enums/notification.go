package enums

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderConfirmed NotificationType = "order_confirmed"
	NotificationTypeThresholdMet   NotificationType = "threshold_met"
	NotificationTypeGroupOrdered   NotificationType = "group_ordered"
	NotificationTypeShipped        NotificationType = "shipped"
	NotificationTypeDelivered      NotificationType = "delivered"
	NotificationTypeCancelled      NotificationType = "cancelled"
	NotificationTypeExpired        NotificationType = "expired"
)

var notificationTypes = newValueSet("notification type",
	NotificationTypeOrderConfirmed,
	NotificationTypeThresholdMet,
	NotificationTypeGroupOrdered,
	NotificationTypeShipped,
	NotificationTypeDelivered,
	NotificationTypeCancelled,
	NotificationTypeExpired,
)

func (n NotificationType) IsValid() bool { return notificationTypes.has(n) }
