package enums

// PaymentStatus tracks the payment side of a participant order.
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "pending"
	PaymentStatusPaid          PaymentStatus = "paid"
	PaymentStatusRefundPending PaymentStatus = "refund_pending"
)

var paymentStatuses = newValueSet("payment status",
	PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefundPending)

func (p PaymentStatus) IsValid() bool { return paymentStatuses.has(p) }

