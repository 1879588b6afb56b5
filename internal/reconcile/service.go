package reconcile

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anmolvirk/swiftcart-backend/internal/orders"
	"github.com/anmolvirk/swiftcart-backend/pkg/db/models"
	"github.com/anmolvirk/swiftcart-backend/pkg/enums"
	apperrors "github.com/anmolvirk/swiftcart-backend/pkg/errors"
	"github.com/anmolvirk/swiftcart-backend/pkg/gateway/razorpay"
	"github.com/anmolvirk/swiftcart-backend/pkg/logger"
)

// SignatureVerifier checks the client-callback signature.
type SignatureVerifier interface {
	VerifyPayment(gatewayOrderID, paymentID, signature string) bool
}

// RefundGateway is the provider surface refund initiation needs.
type RefundGateway interface {
	FetchStatus(ctx context.Context, paymentID string) (*razorpay.PaymentStatus, error)
	CreateRefund(ctx context.Context, paymentID string, amount decimal.Decimal, reason string) (*razorpay.Refund, error)
}

// CallbackInput is the browser-posted confirmation after checkout. UserID
// comes from the session.
type CallbackInput struct {
	UserID         uuid.UUID `json:"-"`
	OrderNumber    string    `json:"order_number" validate:"required"`
	GatewayOrderID string    `json:"razorpay_order_id" validate:"required"`
	PaymentID      string    `json:"razorpay_payment_id" validate:"required"`
	Signature      string    `json:"razorpay_signature" validate:"required"`
}

// Service reconciles payment confirmations from both channels onto the local
// order. Either channel may land first, in any order, any number of times;
// conditional payment-status writes make the flip happen exactly once.
type Service interface {
	ConfirmCallback(ctx context.Context, input CallbackInput) (*models.Order, error)
	HandleEvent(ctx context.Context, event *razorpay.WebhookEvent) error
	InitiateRefund(ctx context.Context, orderNumber, reason string) (*models.Order, error)
}

type service struct {
	repo     orders.Repository
	tx       orders.TxRunner
	ledger   orders.StockLedger
	verifier SignatureVerifier
	gateway  RefundGateway
	metrics  *Metrics
	logg     *logger.Logger
}

// NewService wires the reconciliation service.
func NewService(
	repo orders.Repository,
	tx orders.TxRunner,
	ledger orders.StockLedger,
	verifier SignatureVerifier,
	gateway RefundGateway,
	metrics *Metrics,
	logg *logger.Logger,
) Service {
	return &service{
		repo:     repo,
		tx:       tx,
		ledger:   ledger,
		verifier: verifier,
		gateway:  gateway,
		metrics:  metrics,
		logg:     logg,
	}
}

// ConfirmCallback handles the client's post-checkout confirmation. A bad
// signature fails the payment and cancels the order; a valid one confirms
// it. Replays of a valid confirmation are accepted without a second write.
func (s *service) ConfirmCallback(ctx context.Context, input CallbackInput) (*models.Order, error) {
	ctx = s.logg.WithOrderNumber(ctx, input.OrderNumber)

	order, err := s.repo.FindByNumberForUser(ctx, input.UserID, input.OrderNumber)
	if err != nil {
		return nil, err
	}
	if order.Payment == nil || order.Payment.GatewayOrderID == nil || *order.Payment.GatewayOrderID != input.GatewayOrderID {
		return nil, apperrors.New(apperrors.CodeValidation, "gateway order does not match this order")
	}

	if !s.verifier.VerifyPayment(input.GatewayOrderID, input.PaymentID, input.Signature) {
		s.metrics.Inc("callback", "signature_mismatch")
		s.logg.Warn(ctx, "payment callback signature mismatch")
		if err := s.applyFailure(ctx, order, "signature verification failed"); err != nil {
			return nil, err
		}
		return nil, apperrors.New(apperrors.CodeUnauthorized, "payment signature verification failed")
	}

	confirmed := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		completed, err := repo.MarkPaymentCompleted(ctx, order.ID, input.PaymentID)
		if err != nil {
			return err
		}
		if !completed {
			return nil
		}
		confirmed = true
		_, err = repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
		return err
	})
	if err != nil {
		return nil, err
	}

	if confirmed {
		s.metrics.Inc("callback", "confirmed")
		s.logg.Info(ctx, "payment confirmed via callback")
	} else {
		s.metrics.Inc("callback", "duplicate")
	}
	return s.repo.FindByNumber(ctx, input.OrderNumber)
}

// HandleEvent routes one verified webhook event. Events referencing unknown
// orders are logged and acknowledged so the provider stops retrying them.
func (s *service) HandleEvent(ctx context.Context, event *razorpay.WebhookEvent) error {
	if event == nil {
		return apperrors.New(apperrors.CodeValidation, "event is required")
	}

	switch event.Normalized() {
	case razorpay.EventPaymentCaptured:
		return s.onPaymentCaptured(ctx, event)
	case razorpay.EventPaymentFailed:
		return s.onPaymentFailed(ctx, event)
	case razorpay.EventRefundProcessed:
		return s.onRefundProcessed(ctx, event)
	case razorpay.EventRefundFailed:
		return s.onRefundFailed(ctx, event)
	default:
		s.logg.Info(ctx, "ignoring unhandled gateway event "+event.Normalized())
		return nil
	}
}

func (s *service) onPaymentCaptured(ctx context.Context, event *razorpay.WebhookEvent) error {
	entity := event.Payment()
	if entity == nil || entity.OrderID == "" {
		return apperrors.New(apperrors.CodeValidation, "payment entity missing from event")
	}
	ctx = s.logg.WithGatewayOrderID(ctx, entity.OrderID)

	order, found, err := s.findByGatewayOrder(ctx, entity.OrderID)
	if err != nil {
		return err
	}
	if !found {
		s.metrics.Inc("webhook", "unmatched")
		return nil
	}

	confirmed := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		completed, err := repo.MarkPaymentCompleted(ctx, order.ID, entity.ID)
		if err != nil {
			return err
		}
		if !completed {
			return nil
		}
		confirmed = true
		_, err = repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
		return err
	})
	if err != nil {
		return err
	}

	if confirmed {
		s.metrics.Inc("webhook", "confirmed")
		s.logg.Info(s.logg.WithOrderNumber(ctx, order.OrderNumber), "payment confirmed via webhook")
	} else {
		s.metrics.Inc("webhook", "duplicate")
	}
	return nil
}

func (s *service) onPaymentFailed(ctx context.Context, event *razorpay.WebhookEvent) error {
	entity := event.Payment()
	if entity == nil || entity.OrderID == "" {
		return apperrors.New(apperrors.CodeValidation, "payment entity missing from event")
	}
	ctx = s.logg.WithGatewayOrderID(ctx, entity.OrderID)

	order, found, err := s.findByGatewayOrder(ctx, entity.OrderID)
	if err != nil {
		return err
	}
	if !found {
		s.metrics.Inc("webhook", "unmatched")
		return nil
	}

	reason := entity.ErrorDescription
	if reason == "" {
		reason = "payment failed at gateway"
	}
	if err := s.applyFailure(ctx, order, reason); err != nil {
		return err
	}
	s.metrics.Inc("webhook", "failed")
	return nil
}

func (s *service) onRefundProcessed(ctx context.Context, event *razorpay.WebhookEvent) error {
	entity := event.Refund()
	if entity == nil || entity.PaymentID == "" {
		return apperrors.New(apperrors.CodeValidation, "refund entity missing from event")
	}

	order, found, err := s.findByTransaction(ctx, entity.PaymentID)
	if err != nil {
		return err
	}
	if !found {
		s.metrics.Inc("webhook", "unmatched")
		return nil
	}
	ctx = s.logg.WithOrderNumber(ctx, order.OrderNumber)

	amount := razorpay.FromPaise(entity.AmountPaise)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		refunded, err := repo.MarkPaymentRefunded(ctx, order.ID, entity.ID, amount)
		if err != nil {
			return err
		}
		if !refunded {
			return nil
		}
		moved, err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusDelivered, enums.OrderStatusRefunded)
		if err != nil {
			return err
		}
		if !moved {
			s.logg.Warn(ctx, "refund processed for order not in delivered status")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.Inc("webhook", "refunded")
	s.logg.Info(ctx, "refund reconciled")
	return nil
}

func (s *service) onRefundFailed(ctx context.Context, event *razorpay.WebhookEvent) error {
	entity := event.Refund()
	if entity == nil || entity.PaymentID == "" {
		return apperrors.New(apperrors.CodeValidation, "refund entity missing from event")
	}

	order, found, err := s.findByTransaction(ctx, entity.PaymentID)
	if err != nil {
		return err
	}
	if !found {
		s.metrics.Inc("webhook", "unmatched")
		return nil
	}
	ctx = s.logg.WithOrderNumber(ctx, order.OrderNumber)

	reason := entity.ErrorDescription
	if reason == "" {
		reason = "refund failed at gateway"
	}
	if err := s.repo.MarkRefundFailed(ctx, order.ID, entity.ID, reason); err != nil {
		return err
	}

	s.metrics.Inc("webhook", "refund_failed")
	s.logg.Warn(ctx, "gateway refund failed")
	return nil
}

// InitiateRefund asks the gateway to refund a delivered order in full. The
// local payment keeps its completed status until the refund.processed event
// confirms the money moved; only the refund id is stamped here, and stamping
// it is what makes a second initiation attempt lose.
func (s *service) InitiateRefund(ctx context.Context, orderNumber, reason string) (*models.Order, error) {
	ctx = s.logg.WithOrderNumber(ctx, orderNumber)

	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusDelivered {
		return nil, apperrors.New(apperrors.CodeStateConflict, "only delivered orders can be refunded").
			WithDetails(map[string]any{"status": order.Status})
	}
	payment := order.Payment
	if payment == nil || payment.Status != enums.PaymentStatusCompleted || payment.TransactionID == nil {
		return nil, apperrors.New(apperrors.CodeStateConflict, "payment is not settled")
	}
	if payment.RefundID != nil {
		return nil, apperrors.New(apperrors.CodeConflict, "refund already initiated").
			WithDetails(map[string]any{"refund_id": *payment.RefundID})
	}

	status, err := s.gateway.FetchStatus(ctx, *payment.TransactionID)
	if err != nil {
		return nil, err
	}
	if status.Status != razorpay.StatusCaptured {
		return nil, apperrors.New(apperrors.CodeStateConflict, "payment is not captured at the gateway").
			WithDetails(map[string]any{"gateway_status": status.Status})
	}

	refund, err := s.gateway.CreateRefund(ctx, *payment.TransactionID, razorpay.FromPaise(payment.AmountPaise), reason)
	if err != nil {
		return nil, err
	}

	won, err := s.repo.SetRefundInitiated(ctx, order.ID, refund.RefundID)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperrors.New(apperrors.CodeConflict, "refund already initiated")
	}

	s.metrics.Inc("admin", "refund_initiated")
	s.logg.Info(s.logg.WithField(ctx, "refund_id", refund.RefundID), "gateway refund initiated")
	return s.repo.FindByNumber(ctx, orderNumber)
}

// applyFailure fails the payment and cancels the order, releasing reserved
// stock. The payment-status guard means a payment that already settled is
// left untouched.
func (s *service) applyFailure(ctx context.Context, order *models.Order, reason string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		failed, err := repo.MarkPaymentFailed(ctx, order.ID, reason)
		if err != nil {
			return err
		}
		if !failed {
			return nil
		}
		cancelled, err := repo.MarkCancelled(ctx, order.ID, enums.OrderStatusPending, reason)
		if err != nil {
			return err
		}
		if !cancelled {
			return nil
		}
		for _, item := range order.Items {
			if err := s.ledger.Release(ctx, tx, item.ProductID, item.Qty); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) findByGatewayOrder(ctx context.Context, gatewayOrderID string) (*models.Order, bool, error) {
	order, err := s.repo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if typed := apperrors.As(err); typed != nil && typed.Code() == apperrors.CodeNotFound {
		s.logg.Warn(ctx, "gateway event references unknown order")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return order, true, nil
}

func (s *service) findByTransaction(ctx context.Context, transactionID string) (*models.Order, bool, error) {
	order, err := s.repo.FindByTransactionID(ctx, transactionID)
	if typed := apperrors.As(err); typed != nil && typed.Code() == apperrors.CodeNotFound {
		s.logg.Warn(ctx, "gateway event references unknown payment")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return order, true, nil
}
