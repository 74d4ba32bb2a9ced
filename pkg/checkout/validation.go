package checkout

import (
	"fmt"
	"strings"
	"unicode"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	// DefaultCountry is applied when the buyer leaves the country blank.
	DefaultCountry = "India"

	minPhoneDigits = 10
	maxPhoneLen    = 15
	minZipLen      = 5
	maxZipLen      = 20
)

// Shipping is the delivery destination submitted at checkout.
type Shipping struct {
	Address string `json:"shipping_address"`
	City    string `json:"shipping_city"`
	State   string `json:"shipping_state"`
	ZipCode string `json:"shipping_zip_code"`
	Country string `json:"shipping_country"`
	Phone   string `json:"shipping_phone"`
}

// Normalize trims every field and applies the default country.
func (s Shipping) Normalize() Shipping {
	out := Shipping{
		Address: strings.TrimSpace(s.Address),
		City:    strings.TrimSpace(s.City),
		State:   strings.TrimSpace(s.State),
		ZipCode: strings.TrimSpace(s.ZipCode),
		Country: strings.TrimSpace(s.Country),
		Phone:   strings.TrimSpace(s.Phone),
	}
	if out.Country == "" {
		out.Country = DefaultCountry
	}
	return out
}

// ValidateShipping checks required fields, phone length and zip length.
// Failures are reported together, keyed by field name.
func ValidateShipping(s Shipping) error {
	s = s.Normalize()
	violations := map[string]string{}

	required := map[string]string{
		"shipping_address":  s.Address,
		"shipping_city":     s.City,
		"shipping_state":    s.State,
		"shipping_zip_code": s.ZipCode,
		"shipping_phone":    s.Phone,
	}
	for field, value := range required {
		if value == "" {
			violations[field] = "this field is required"
		}
	}

	if s.Phone != "" {
		digits := 0
		for _, r := range s.Phone {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		switch {
		case digits < minPhoneDigits:
			violations["shipping_phone"] = fmt.Sprintf("phone number must be at least %d digits", minPhoneDigits)
		case len(s.Phone) > maxPhoneLen:
			violations["shipping_phone"] = fmt.Sprintf("phone number must be at most %d characters", maxPhoneLen)
		}
	}
	if s.ZipCode != "" {
		switch {
		case len(s.ZipCode) < minZipLen:
			violations["shipping_zip_code"] = fmt.Sprintf("zip code must be at least %d characters", minZipLen)
		case len(s.ZipCode) > maxZipLen:
			violations["shipping_zip_code"] = fmt.Sprintf("zip code must be at most %d characters", maxZipLen)
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("shipping details invalid for %d field(s)", len(violations))).
		WithDetails(violations)
}
