package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anmolvirk/swiftcart-backend/pkg/db/models"
	"github.com/anmolvirk/swiftcart-backend/pkg/enums"
	apperrors "github.com/anmolvirk/swiftcart-backend/pkg/errors"
)

// Repository persists orders and applies the conditional writes the
// reconciliation flows depend on. Every status mutation is a single UPDATE
// guarded by the expected current value, so duplicate confirmations and
// concurrent cancels resolve to exactly one winner.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, order *models.Order) error
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindByNumberForUser(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)

	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error)
	MarkCancelled(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, reason string) (bool, error)
	SetTracking(ctx context.Context, orderID uuid.UUID, trackingRef string) error

	SetGatewayOrderID(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error
	MarkPaymentCompleted(ctx context.Context, orderID uuid.UUID, transactionID string) (bool, error)
	MarkPaymentFailed(ctx context.Context, orderID uuid.UUID, reason string) (bool, error)
	SetRefundInitiated(ctx context.Context, orderID uuid.UUID, refundID string) (bool, error)
	MarkPaymentRefunded(ctx context.Context, orderID uuid.UUID, refundID string, amount decimal.Decimal) (bool, error)
	MarkRefundFailed(ctx context.Context, orderID uuid.UUID, refundID, reason string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "create order")
	}
	return nil
}

func (r *repository) withAssociations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment")
}

func (r *repository) FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.withAssociations(ctx).First(&order, "order_number = ?", orderNumber).Error
	return finishFind(&order, err)
}

func (r *repository) FindByNumberForUser(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.withAssociations(ctx).
		First(&order, "order_number = ? AND user_id = ?", orderNumber, userID).Error
	return finishFind(&order, err)
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.withAssociations(ctx).
		Joins("JOIN payments ON payments.order_id = orders.id").
		Where("payments.gateway_order_id = ?", gatewayOrderID).
		First(&order).Error
	return finishFind(&order, err)
}

func (r *repository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	var order models.Order
	err := r.withAssociations(ctx).
		Joins("JOIN payments ON payments.order_id = orders.id").
		Where("payments.transaction_id = ?", transactionID).
		First(&order).Error
	return finishFind(&order, err)
}

func finishFind(order *models.Order, err error) (*models.Order, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "find order")
	}
	return order, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var orders []models.Order
	err := r.withAssociations(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "list orders")
	}
	return orders, nil
}

func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.withAssociations(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "list pending orders")
	}
	return orders, nil
}

func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return false, apperrors.Wrap(apperrors.CodeInternal, res.Error, "update order status")
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkCancelled(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, reason string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]any{
			"status":              enums.OrderStatusCancelled,
			"cancellation_reason": reason,
			"cancelled_at":        now,
		})
	if res.Error != nil {
		return false, apperrors.Wrap(apperrors.CodeInternal, res.Error, "cancel order")
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) SetTracking(ctx context.Context, orderID uuid.UUID, trackingRef string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("tracking_ref", trackingRef).Error
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "set tracking reference")
	}
	return nil
}

// SetGatewayOrderID records the gateway intent id. It only writes when the
// column is still empty so a retried intent can never repoint the payment.
func (r *repository) SetGatewayOrderID(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND gateway_order_id IS NULL", orderID).
		Update("gateway_order_id", gatewayOrderID).Error
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "set gateway order id")
	}
	return nil
}

// MarkPaymentCompleted flips the payment to completed and stamps the
// transaction id, but only while the payment is still pending. The returned
// bool reports whether this call was the one that won the flip.
func (r *repository) MarkPaymentCompleted(ctx context.Context, orderID uuid.UUID, transactionID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":         enums.PaymentStatusCompleted,
			"transaction_id": gorm.Expr("COALESCE(transaction_id, ?)", transactionID),
		})
	if res.Error != nil {
		return false, apperrors.Wrap(apperrors.CodeInternal, res.Error, "complete payment")
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID, reason string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":         enums.PaymentStatusFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return false, apperrors.Wrap(apperrors.CodeInternal, res.Error, "fail payment")
	}
	return res.RowsAffected > 0, nil
}

// SetRefundInitiated stamps the gateway refund id onto a settled payment.
// The refund_id guard makes initiation single-shot: a second attempt loses.
func (r *repository) SetRefundInitiated(ctx context.Context, orderID uuid.UUID, refundID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND status = ? AND refund_id IS NULL", orderID, enums.PaymentStatusCompleted).
		Update("refund_id", refundID)
	if res.Error != nil {
		return false, apperrors.Wrap(apperrors.CodeInternal, res.Error, "record refund initiation")
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkPaymentRefunded(ctx context.Context, orderID uuid.UUID, refundID string, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentStatusCompleted).
		Updates(map[string]any{
			"status":        enums.PaymentStatusRefunded,
			"refund_id":     refundID,
			"refund_status": enums.RefundStatusProcessed,
			"refund_amount": amount,
		})
	if res.Error != nil {
		return false, apperrors.Wrap(apperrors.CodeInternal, res.Error, "refund payment")
	}
	return res.RowsAffected > 0, nil
}

// MarkRefundFailed records the failed refund attempt without touching the
// payment status: the customer's money was charged and not returned.
func (r *repository) MarkRefundFailed(ctx context.Context, orderID uuid.UUID, refundID, reason string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{
			"refund_id":      refundID,
			"refund_status":  enums.RefundStatusFailed,
			"failure_reason": reason,
		}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "record refund failure")
	}
	return nil
}
