package activity

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anmolvirk/swiftcart-backend/pkg/logger"
)

// Recorder emits purchase-funnel events. Recording is strictly
// fire-and-forget: a failure here must never affect the order flow.
type Recorder interface {
	PurchaseCompleted(ctx context.Context, userID uuid.UUID, orderNumber string, total decimal.Decimal)
	OrderCancelled(ctx context.Context, orderNumber string, reason string)
}

type recorder struct {
	logg *logger.Logger
}

func NewRecorder(logg *logger.Logger) Recorder {
	return &recorder{logg: logg}
}

func (r *recorder) PurchaseCompleted(ctx context.Context, userID uuid.UUID, orderNumber string, total decimal.Decimal) {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"event":        "purchase_completed",
		"user_id":      userID.String(),
		"order_number": orderNumber,
		"total":        total.StringFixed(2),
	})
	r.logg.Info(ctx, "activity")
}

func (r *recorder) OrderCancelled(ctx context.Context, orderNumber string, reason string) {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"event":        "order_cancelled",
		"order_number": orderNumber,
		"reason":       reason,
	})
	r.logg.Info(ctx, "activity")
}
