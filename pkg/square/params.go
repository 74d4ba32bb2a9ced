package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// defaultCurrency applies when a charge carries no currency code.
const defaultCurrency = sq.Currency("INR")

// PaymentCreateParams describe one card charge. SourceID is the nonce the
// Web Payments SDK produced in the browser.
type PaymentCreateParams struct {
	AmountMinor    int64
	Currency       string
	LocationID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
}

func (p PaymentCreateParams) toSquareRequest(key string) *sq.CreatePaymentRequest {
	return &sq.CreatePaymentRequest{
		IdempotencyKey: key,
		SourceID:       p.SourceID,
		LocationID:     optional(p.LocationID),
		Note:           optional(p.Note),
		ReferenceID:    optional(p.ReferenceID),
		AmountMoney:    money(p.AmountMinor, p.Currency),
	}
}

// optional maps blank strings to an omitted field.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func money(minor int64, code string) *sq.Money {
	if minor <= 0 {
		return nil
	}
	currency := defaultCurrency
	if c := strings.ToUpper(strings.TrimSpace(code)); c != "" {
		currency = sq.Currency(c)
	}
	return &sq.Money{Amount: &minor, Currency: &currency}
}
