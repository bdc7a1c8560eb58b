package enums

// EmailDeliveryStatus tracks one outbound email. Failed rows are retried
// until their retry budget runs out.
type EmailDeliveryStatus string

const (
	EmailDeliveryStatusPending   EmailDeliveryStatus = "pending"
	EmailDeliveryStatusSent      EmailDeliveryStatus = "sent"
	EmailDeliveryStatusDelivered EmailDeliveryStatus = "delivered"
	EmailDeliveryStatusFailed    EmailDeliveryStatus = "failed"
)

var emailDeliveryStatuses = newValueSet("email delivery status",
	EmailDeliveryStatusPending, EmailDeliveryStatusSent, EmailDeliveryStatusDelivered, EmailDeliveryStatusFailed)

func (e EmailDeliveryStatus) IsValid() bool { return emailDeliveryStatuses.has(e) }
