package enums

import "strings"

// Currency is an ISO 4217 code accepted for order totals.
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

var currencies = set[Currency]{CurrencyINR, CurrencyUSD, CurrencyEUR, CurrencyGBP}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool { return currencies.has(c) }

// ParseCurrency accepts codes in any case.
func ParseCurrency(value string) (Currency, error) {
	return currencies.parse("currency", value, strings.ToUpper)
}
