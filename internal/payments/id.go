package payments

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/security"
)

// IDGenerator produces public payment identifiers.
type IDGenerator func(now time.Time) (string, error)

// NewPaymentID returns PAY-<UTC yyyymmddhhmmss>-<8 uppercase alphanumerics>.
func NewPaymentID(now time.Time) (string, error) {
	suffix, err := security.RandomCode(8)
	if err != nil {
		return "", err
	}
	return "PAY-" + now.UTC().Format("20060102150405") + "-" + suffix, nil
}
