package enums

import "strings"

// PaymentStatus is the state of one payment attempt.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

var paymentStatuses = set[PaymentStatus]{
	PaymentStatusPending, PaymentStatusProcessing, PaymentStatusCompleted,
	PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded,
}

// terminalPaymentStatuses accept no further settlement.
var terminalPaymentStatuses = set[PaymentStatus]{
	PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded,
}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return paymentStatuses.has(p) }

func (p PaymentStatus) IsTerminal() bool { return terminalPaymentStatuses.has(p) }

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return paymentStatuses.parse("payment status", value, strings.ToLower)
}
