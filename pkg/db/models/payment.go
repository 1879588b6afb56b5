package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anmolvirk/swiftcart-backend/pkg/enums"
)

// Payment is the per-order payment record reconciliation writes back onto.
// TransactionID is write-once: it is set when the first verified confirmation
// lands and is never overwritten with a different value.
type Payment struct {
	ID      uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Method  enums.PaymentMethod `gorm:"column:method;not null"`
	Status  enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`

	// AmountPaise is the gateway-facing amount in integer minor units.
	AmountPaise int64 `gorm:"column:amount_paise;not null"`

	GatewayOrderID *string `gorm:"column:gateway_order_id;index"`
	TransactionID  *string `gorm:"column:transaction_id"`
	FailureReason  *string `gorm:"column:failure_reason"`

	RefundID     *string            `gorm:"column:refund_id"`
	RefundStatus enums.RefundStatus `gorm:"column:refund_status;not null;default:'none'"`
	RefundAmount *decimal.Decimal   `gorm:"column:refund_amount;type:numeric(12,2)"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
