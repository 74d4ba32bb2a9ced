package enums

import "strings"

// PaymentGateway is the processor behind a payment attempt.
type PaymentGateway string

const (
	PaymentGatewayRazorpay PaymentGateway = "razorpay"
	PaymentGatewayStripe   PaymentGateway = "stripe"
	PaymentGatewaySquare   PaymentGateway = "square"
	PaymentGatewayCOD      PaymentGateway = "cod"
	PaymentGatewayManual   PaymentGateway = "manual"
)

var paymentGateways = set[PaymentGateway]{
	PaymentGatewayRazorpay, PaymentGatewayStripe, PaymentGatewaySquare, PaymentGatewayCOD, PaymentGatewayManual,
}

func (g PaymentGateway) String() string { return string(g) }

func (g PaymentGateway) IsValid() bool { return paymentGateways.has(g) }

func ParsePaymentGateway(value string) (PaymentGateway, error) {
	return paymentGateways.parse("payment gateway", value, strings.ToLower)
}
