package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anmolvirk/swiftcart-backend/pkg/types"
)

// CustomerAddress is a user's saved shipping address. Orders copy it into an
// immutable snapshot; they never reference this row.
type CustomerAddress struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Line1     string    `gorm:"column:line1;not null"`
	Line2     string    `gorm:"column:line2"`
	City      string    `gorm:"column:city;not null"`
	State     string    `gorm:"column:state;not null"`
	Pincode   string    `gorm:"column:pincode;not null"`
	Country   string    `gorm:"column:country;not null;default:'IN'"`
	Phone     string    `gorm:"column:phone"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Snapshot copies the saved address into the order-embedded form.
func (a CustomerAddress) Snapshot() types.Address {
	return types.Address{
		Name:    a.Name,
		Line1:   a.Line1,
		Line2:   a.Line2,
		City:    a.City,
		State:   a.State,
		Pincode: a.Pincode,
		Country: a.Country,
		Phone:   a.Phone,
	}
}

func (a *CustomerAddress) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
