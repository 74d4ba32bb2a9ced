package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserAddress is the single saved shipping record per user.
type UserAddress struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_user_addresses_user_id"`
	AddressLine string    `gorm:"column:address_line;not null"`
	City        string    `gorm:"column:city;not null"`
	State       string    `gorm:"column:state;not null"`
	ZipCode     string    `gorm:"column:zip_code;not null"`
	Country     string    `gorm:"column:country;not null;default:'India'"`
	PhoneNumber string    `gorm:"column:phone_number;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *UserAddress) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
