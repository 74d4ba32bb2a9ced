package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/security"
)

const (
	orderNumberPrefix = "ORD"
	orderNumberSuffix = 6
	numberTimeLayout  = "20060102150405"
)

// NumberGenerator produces human-facing order numbers.
type NumberGenerator func(now time.Time) (string, error)

// NewOrderNumber formats ORD-<yyyymmddhhmmss>-<6 random uppercase alphanumerics>.
func NewOrderNumber(now time.Time) (string, error) {
	suffix, err := security.RandomCode(orderNumberSuffix)
	if err != nil {
		return "", err
	}
	return orderNumberPrefix + "-" + now.UTC().Format(numberTimeLayout) + "-" + suffix, nil
}
