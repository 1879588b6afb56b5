package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anmolvirk/swiftcart-backend/pkg/gateway/razorpay"
)

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockLedger applies atomic stock reservations and releases inside the
// caller's transaction.
type StockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// PaymentGateway creates the provider-side order the customer pays against.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, receiptRef string) (*razorpay.Intent, error)
}
