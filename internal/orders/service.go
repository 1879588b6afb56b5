package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anmolvirk/swiftcart-backend/internal/activity"
	"github.com/anmolvirk/swiftcart-backend/internal/address"
	"github.com/anmolvirk/swiftcart-backend/internal/cart"
	"github.com/anmolvirk/swiftcart-backend/internal/catalog"
	"github.com/anmolvirk/swiftcart-backend/pkg/config"
	"github.com/anmolvirk/swiftcart-backend/pkg/db/models"
	"github.com/anmolvirk/swiftcart-backend/pkg/enums"
	apperrors "github.com/anmolvirk/swiftcart-backend/pkg/errors"
	"github.com/anmolvirk/swiftcart-backend/pkg/gateway/razorpay"
	"github.com/anmolvirk/swiftcart-backend/pkg/logger"
	"github.com/anmolvirk/swiftcart-backend/pkg/types"
)

// Service drives the order lifecycle: checkout, fulfilment transitions,
// cancellation with stock compensation, and the stale-order expiry sweep.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	Get(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error)
	Cancel(ctx context.Context, userID uuid.UUID, orderNumber, reason string) (*models.Order, error)

	MarkProcessing(ctx context.Context, orderNumber string) (*models.Order, error)
	MarkShipped(ctx context.Context, orderNumber, trackingRef string) (*models.Order, error)
	MarkDelivered(ctx context.Context, orderNumber string) (*models.Order, error)

	ReleaseExpired(ctx context.Context, olderThan time.Duration) (int, error)
}

type service struct {
	repo      Repository
	carts     cart.Repository
	catalog   catalog.Repository
	addresses address.Repository
	tx        TxRunner
	ledger    StockLedger
	gateway   PaymentGateway
	keyID     string
	policy    config.CheckoutConfig
	activity  activity.Recorder
	logg      *logger.Logger
}

// NewService wires the order service and its collaborators.
func NewService(
	repo Repository,
	carts cart.Repository,
	catalogRepo catalog.Repository,
	addresses address.Repository,
	tx TxRunner,
	ledger StockLedger,
	gateway PaymentGateway,
	keyID string,
	policy config.CheckoutConfig,
	recorder activity.Recorder,
	logg *logger.Logger,
) Service {
	return &service{
		repo:      repo,
		carts:     carts,
		catalog:   catalogRepo,
		addresses: addresses,
		tx:        tx,
		ledger:    ledger,
		gateway:   gateway,
		keyID:     keyID,
		policy:    policy,
		activity:  recorder,
		logg:      logg,
	}
}

// Create turns the user's cart into an order. Stock reservation, order row,
// line-item snapshots, payment record, and cart clearing all commit in one
// transaction; the gateway intent is created only after that commit and a
// gateway failure compensates by cancelling the order and releasing stock.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	method, err := enums.ParsePaymentMethod(input.Method)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeValidation, "unknown payment method").
			WithDetails(map[string]any{"payment_method": input.Method})
	}

	// Cart emptiness is checked before any other lookup so an abandoned
	// cart reports as such regardless of what else is wrong with the
	// request. The transactional re-read below stays authoritative.
	items, err := s.carts.ListItems(ctx, input.UserID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "load cart")
	}
	if len(items) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "cart is empty")
	}

	addr, err := s.addresses.Find(ctx, input.UserID, input.AddressID)
	if err != nil {
		return nil, err
	}
	if !method.RequiresGateway() && !s.policy.CODAllowed(addr.Pincode) {
		return nil, apperrors.New(apperrors.CodeValidation, "cash on delivery is not available for this pincode").
			WithDetails(map[string]any{"pincode": addr.Pincode})
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err = s.buildAndPersist(ctx, tx, input, method, addr.Snapshot())
		return err
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderNumber(ctx, order.OrderNumber)
	result := &CreateOrderResult{Order: order}

	if method.RequiresGateway() {
		checkout, err := s.createIntent(ctx, order)
		if err != nil {
			s.compensate(ctx, order, "payment intent creation failed")
			return nil, err
		}
		result.Checkout = checkout
	}

	s.activity.PurchaseCompleted(ctx, input.UserID, order.OrderNumber, order.Total)
	s.logg.Info(ctx, "order created")
	return result, nil
}

func (s *service) buildAndPersist(
	ctx context.Context,
	tx *gorm.DB,
	input CreateOrderInput,
	method enums.PaymentMethod,
	snapshot types.Address,
) (*models.Order, error) {
	carts := s.carts.WithTx(tx)
	catalogRepo := s.catalog.WithTx(tx)
	repo := s.repo.WithTx(tx)

	items, err := carts.ListItems(ctx, input.UserID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "load cart")
	}
	if len(items) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "cart is empty")
	}

	subtotal := decimal.Zero
	lineItems := make([]models.OrderLineItem, 0, len(items))
	for _, item := range items {
		product, err := catalogRepo.FindProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.Reserve(ctx, tx, product.ID, item.Quantity); err != nil {
			return nil, err
		}

		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		lineItems = append(lineItems, models.OrderLineItem{
			ProductID: product.ID,
			Name:      product.Name,
			Qty:       item.Quantity,
			UnitPrice: product.Price,
			LineTotal: lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	discount := decimal.Zero
	var couponCode *string
	if input.CouponCode != nil {
		code := strings.TrimSpace(*input.CouponCode)
		if code != "" {
			coupon, err := catalogRepo.FindCoupon(ctx, code)
			if err != nil {
				return nil, err
			}
			discount = subtotal.
				Mul(decimal.NewFromInt(int64(coupon.PercentOff))).
				Div(decimal.NewFromInt(100)).
				Round(2)
			couponCode = &code
		}
	}

	tax := subtotal.Mul(s.policy.TaxRate()).Round(2)
	shipping := s.policy.ShippingFee(subtotal)
	total := subtotal.Add(tax).Add(shipping).Sub(discount)

	status := enums.OrderStatusPending
	payment := &models.Payment{
		Method:      method,
		Status:      enums.PaymentStatusPending,
		AmountPaise: razorpay.ToPaise(total),
	}
	if !method.RequiresGateway() {
		// Cash on delivery has no payment window: the order confirms at
		// checkout and the payment settles at the door.
		if err := Transition(status, enums.OrderStatusConfirmed); err != nil {
			return nil, err
		}
		status = enums.OrderStatusConfirmed
		transactionID := "COD-" + uuid.NewString()
		payment.TransactionID = &transactionID
	}

	order := &models.Order{
		OrderNumber:     newOrderNumber(),
		UserID:          input.UserID,
		Status:          status,
		Subtotal:        subtotal,
		Tax:             tax,
		Shipping:        shipping,
		Discount:        discount,
		Total:           total,
		CouponCode:      couponCode,
		Notes:           input.Notes,
		ShippingAddress: snapshot,
		BillingAddress:  snapshot,
		Items:           lineItems,
		Payment:         payment,
	}
	if err := repo.Create(ctx, order); err != nil {
		return nil, err
	}
	if err := carts.Clear(ctx, input.UserID); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "clear cart")
	}
	return order, nil
}

func (s *service) createIntent(ctx context.Context, order *models.Order) (*GatewayCheckout, error) {
	intent, err := s.gateway.CreateIntent(ctx, order.Total, order.OrderNumber)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetGatewayOrderID(ctx, order.ID, intent.GatewayOrderID); err != nil {
		return nil, err
	}
	if order.Payment != nil {
		order.Payment.GatewayOrderID = &intent.GatewayOrderID
	}

	currency := intent.Currency
	if currency == "" {
		currency = "INR"
	}
	return &GatewayCheckout{
		GatewayOrderID: intent.GatewayOrderID,
		AmountPaise:    intent.AmountPaise,
		Currency:       currency,
		KeyID:          s.keyID,
	}, nil
}

// compensate undoes an order whose gateway intent could not be created:
// cancel the order, release the reserved stock, fail the payment. The
// conditional cancel means a concurrent confirmation wins over us.
func (s *service) compensate(ctx context.Context, order *models.Order, reason string) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cancelled, err := repo.MarkCancelled(ctx, order.ID, order.Status, reason)
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
		_, err = repo.MarkPaymentFailed(ctx, order.ID, reason)
		return err
	})
	if err != nil {
		s.logg.Error(ctx, "order compensation failed", err)
		return
	}
	s.activity.OrderCancelled(ctx, order.OrderNumber, reason)
}

func (s *service) Get(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error) {
	return s.repo.FindByNumberForUser(ctx, userID, orderNumber)
}

func (s *service) List(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

// Cancel is the customer-initiated cancellation. Only pending and confirmed
// orders may cancel; reserved stock is returned in the same transaction.
func (s *service) Cancel(ctx context.Context, userID uuid.UUID, orderNumber, reason string) (*models.Order, error) {
	order, err := s.repo.FindByNumberForUser(ctx, userID, orderNumber)
	if err != nil {
		return nil, err
	}
	if err := Transition(order.Status, enums.OrderStatusCancelled); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "cancelled by customer"
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cancelled, err := repo.MarkCancelled(ctx, order.ID, order.Status, reason)
		if err != nil {
			return err
		}
		if !cancelled {
			return apperrors.New(apperrors.CodeStateConflict, "order status changed concurrently")
		}
		for _, item := range order.Items {
			if err := s.ledger.Release(ctx, tx, item.ProductID, item.Qty); err != nil {
				return err
			}
		}
		_, err = repo.MarkPaymentFailed(ctx, order.ID, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.OrderCancelled(ctx, order.OrderNumber, reason)
	return s.repo.FindByNumber(ctx, orderNumber)
}

func (s *service) MarkProcessing(ctx context.Context, orderNumber string) (*models.Order, error) {
	return s.advance(ctx, orderNumber, enums.OrderStatusProcessing, nil)
}

func (s *service) MarkShipped(ctx context.Context, orderNumber, trackingRef string) (*models.Order, error) {
	trackingRef = strings.TrimSpace(trackingRef)
	if trackingRef == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "tracking reference is required")
	}
	return s.advance(ctx, orderNumber, enums.OrderStatusShipped, &trackingRef)
}

func (s *service) MarkDelivered(ctx context.Context, orderNumber string) (*models.Order, error) {
	return s.advance(ctx, orderNumber, enums.OrderStatusDelivered, nil)
}

func (s *service) advance(ctx context.Context, orderNumber string, to enums.OrderStatus, trackingRef *string) (*models.Order, error) {
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if err := Transition(order.Status, to); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, order.ID, order.Status, to)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, apperrors.New(apperrors.CodeStateConflict, "order status changed concurrently")
	}
	if trackingRef != nil {
		if err := s.repo.SetTracking(ctx, order.ID, *trackingRef); err != nil {
			return nil, err
		}
	}
	return s.repo.FindByNumber(ctx, orderNumber)
}

// ReleaseExpired cancels pending orders older than the payment window and
// returns their reserved stock. Per-order failures are logged and skipped so
// one bad row cannot stall the sweep.
func (s *service) ReleaseExpired(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	stale, err := s.repo.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	released := 0
	for i := range stale {
		order := &stale[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			cancelled, err := repo.MarkCancelled(ctx, order.ID, enums.OrderStatusPending, "payment window expired")
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
			if _, err := repo.MarkPaymentFailed(ctx, order.ID, "payment window expired"); err != nil {
				return err
			}
			released++
			return nil
		})
		if err != nil {
			s.logg.Error(s.logg.WithOrderNumber(ctx, order.OrderNumber), "expiry sweep failed for order", err)
		}
	}
	return released, nil
}

func newOrderNumber() string {
	datePart := time.Now().UTC().Format("20060102")
	randomPart := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "SC-" + datePart + "-" + randomPart
}
