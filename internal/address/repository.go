// Package address keeps the single saved shipping address of each user.
package address

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository persists user addresses.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an address repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByUser returns the saved address or nil when none exists.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.UserAddress, error) {
	var addr models.UserAddress
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&addr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &addr, nil
}

// Upsert overwrites the user's saved address with the submitted shipping details.
func (r *Repository) Upsert(ctx context.Context, userID uuid.UUID, shipping checkout.Shipping) (*models.UserAddress, error) {
	shipping = shipping.Normalize()
	row := models.UserAddress{
		UserID:      userID,
		AddressLine: shipping.Address,
		City:        shipping.City,
		State:       shipping.State,
		ZipCode:     shipping.ZipCode,
		Country:     shipping.Country,
		PhoneNumber: shipping.Phone,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"address_line", "city", "state", "zip_code", "country", "phone_number", "updated_at",
			}),
		}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}
	return r.FindByUser(ctx, userID)
}

// ToShipping converts a saved address into checkout pre-fill values.
func ToShipping(addr *models.UserAddress) checkout.Shipping {
	if addr == nil {
		return checkout.Shipping{Country: checkout.DefaultCountry}
	}
	return checkout.Shipping{
		Address: addr.AddressLine,
		City:    addr.City,
		State:   addr.State,
		ZipCode: addr.ZipCode,
		Country: addr.Country,
		Phone:   addr.PhoneNumber,
	}
}
