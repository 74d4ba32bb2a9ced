// Package pricing turns a cart snapshot into checkout totals.
package pricing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

const moneyPlaces = 2

// Policy carries the tax and shipping schedule. It is injected from config so
// callers never hardcode rates.
type Policy struct {
	TaxRate     decimal.Decimal
	ShippingFee decimal.Decimal
}

// DefaultPolicy is 10% tax plus a flat 50.00 shipping fee.
func DefaultPolicy() Policy {
	return Policy{
		TaxRate:     decimal.RequireFromString("0.10"),
		ShippingFee: decimal.RequireFromString("50.00"),
	}
}

// PolicyFromConfig builds a policy from the pricing config block.
func PolicyFromConfig(cfg config.PricingConfig) (Policy, error) {
	policy := Policy{TaxRate: cfg.TaxRate, ShippingFee: cfg.ShippingFee}
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// Validate rejects negative rates and fees.
func (p Policy) Validate() error {
	if p.TaxRate.IsNegative() {
		return fmt.Errorf("tax rate must not be negative")
	}
	if p.ShippingFee.IsNegative() {
		return fmt.Errorf("shipping fee must not be negative")
	}
	return nil
}

// Line is one priced cart line.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
	Size      string
}

// Subtotal returns unit price times quantity rounded to cents.
func (l Line) Subtotal() decimal.Decimal {
	return Round(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
}

// Quote is the result of pricing a cart.
type Quote struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Total        decimal.Decimal `json:"total"`
}

// Balanced reports whether total equals subtotal + tax + shipping exactly.
func (q Quote) Balanced() bool {
	return q.Total.Equal(q.Subtotal.Add(q.Tax).Add(q.ShippingCost))
}

// Quote prices lines. It is a pure function of the policy and the input.
func (p Policy) Quote(lines []Line) Quote {
	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		subtotal = subtotal.Add(line.Subtotal())
	}
	subtotal = Round(subtotal)

	tax := Round(subtotal.Mul(p.TaxRate))
	shipping := decimal.Zero
	if subtotal.IsPositive() {
		shipping = Round(p.ShippingFee)
	}

	return Quote{
		Subtotal:     subtotal,
		Tax:          tax,
		ShippingCost: shipping,
		Total:        subtotal.Add(tax).Add(shipping),
	}
}

// Round applies half-up rounding to two decimal places.
func Round(value decimal.Decimal) decimal.Decimal {
	return value.Round(moneyPlaces)
}

// MinorUnits converts an amount to integer minor units (paise/cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(moneyPlaces).Round(0).IntPart()
}
