package enums

import "strings"

// PaymentMethod is how the buyer chose to pay.
type PaymentMethod string

const (
	PaymentMethodCOD        PaymentMethod = "cod"
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodNetbanking PaymentMethod = "netbanking"
	PaymentMethodWallet     PaymentMethod = "wallet"
)

var paymentMethods = set[PaymentMethod]{
	PaymentMethodCOD, PaymentMethodCard, PaymentMethodUPI, PaymentMethodNetbanking, PaymentMethodWallet,
}

func (m PaymentMethod) String() string { return string(m) }

func (m PaymentMethod) IsValid() bool { return paymentMethods.has(m) }

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return paymentMethods.parse("payment method", value, strings.ToLower)
}
