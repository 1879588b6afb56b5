package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anmolvirk/swiftcart-backend/pkg/enums"
	"github.com/anmolvirk/swiftcart-backend/pkg/types"
)

// Order is the durable record of a checkout attempt: line-item snapshots,
// address snapshots, the monetary breakdown, and the embedded payment record.
// Status only changes through the order state machine.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber string            `gorm:"column:order_number;not null;uniqueIndex"`
	UserID      uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status      enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`

	Subtotal decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax      decimal.Decimal `gorm:"column:tax;type:numeric(12,2);not null"`
	Shipping decimal.Decimal `gorm:"column:shipping;type:numeric(12,2);not null"`
	Discount decimal.Decimal `gorm:"column:discount;type:numeric(12,2);not null"`
	Total    decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`

	CouponCode *string `gorm:"column:coupon_code"`
	Notes      *string `gorm:"column:notes"`

	ShippingAddress types.Address `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress  types.Address `gorm:"column:billing_address;type:jsonb;serializer:json"`

	CancellationReason *string    `gorm:"column:cancellation_reason"`
	CancelledAt        *time.Time `gorm:"column:cancelled_at"`
	TrackingRef        *string    `gorm:"column:tracking_ref"`

	Items   []OrderLineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment *Payment        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TotalConsistent checks total = subtotal + tax + shipping - discount.
func (o *Order) TotalConsistent() bool {
	expected := o.Subtotal.Add(o.Tax).Add(o.Shipping).Sub(o.Discount)
	return o.Total.Equal(expected)
}

func (o *Order) BeforeCreate(_ *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
