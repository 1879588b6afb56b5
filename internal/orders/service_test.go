package orders

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/anmolvirk/swiftcart-backend/internal/activity"
	"github.com/anmolvirk/swiftcart-backend/internal/address"
	"github.com/anmolvirk/swiftcart-backend/internal/cart"
	"github.com/anmolvirk/swiftcart-backend/internal/catalog"
	"github.com/anmolvirk/swiftcart-backend/internal/inventory"
	"github.com/anmolvirk/swiftcart-backend/pkg/config"
	"github.com/anmolvirk/swiftcart-backend/pkg/db/models"
	"github.com/anmolvirk/swiftcart-backend/pkg/enums"
	apperrors "github.com/anmolvirk/swiftcart-backend/pkg/errors"
	"github.com/anmolvirk/swiftcart-backend/pkg/gateway/razorpay"
	"github.com/anmolvirk/swiftcart-backend/pkg/logger"
)

const codPincode = "560001"

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeGateway struct {
	intent *razorpay.Intent
	err    error
	calls  int
}

func (g *fakeGateway) CreateIntent(_ context.Context, amount decimal.Decimal, receiptRef string) (*razorpay.Intent, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	if g.intent != nil {
		return g.intent, nil
	}
	return &razorpay.Intent{
		GatewayOrderID: "order_test_" + receiptRef,
		AmountPaise:    razorpay.ToPaise(amount),
		Currency:       "INR",
		Receipt:        receiptRef,
		Status:         "created",
	}, nil
}

type testEnv struct {
	db      *gorm.DB
	svc     Service
	repo    Repository
	gateway *fakeGateway
	userID  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.CartItem{},
		&models.CustomerAddress{},
		&models.Coupon{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.Payment{},
	))

	policy, err := config.NewCheckoutConfig("5", "40", "1000", []string{codPincode})
	require.NoError(t, err)

	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	gateway := &fakeGateway{}
	repo := NewRepository(db)

	svc := NewService(
		repo,
		cart.NewRepository(db),
		catalog.NewRepository(db),
		address.NewRepository(db),
		gormTxRunner{db: db},
		inventory.NewLedger(),
		gateway,
		"rzp_test_key",
		policy,
		activity.NewRecorder(logg),
		logg,
	)

	return &testEnv{
		db:      db,
		svc:     svc,
		repo:    repo,
		gateway: gateway,
		userID:  uuid.New(),
	}
}

func (e *testEnv) seedProduct(t *testing.T, name string, price string, stock int) *models.Product {
	t.Helper()
	amount, err := decimal.NewFromString(price)
	require.NoError(t, err)
	product := &models.Product{Name: name, Price: amount, Stock: stock}
	require.NoError(t, e.db.Create(product).Error)
	return product
}

func (e *testEnv) seedCartItem(t *testing.T, productID uuid.UUID, qty int) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.CartItem{
		UserID:    e.userID,
		ProductID: productID,
		Quantity:  qty,
	}).Error)
}

func (e *testEnv) seedAddress(t *testing.T, pincode string) *models.CustomerAddress {
	t.Helper()
	addr := &models.CustomerAddress{
		UserID:  e.userID,
		Name:    "Asha Rao",
		Line1:   "14 MG Road",
		City:    "Bengaluru",
		State:   "Karnataka",
		Pincode: pincode,
		Country: "IN",
		Phone:   "+919800000000",
	}
	require.NoError(t, e.db.Create(addr).Error)
	return addr
}

func (e *testEnv) stock(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	require.NoError(t, e.db.First(&product, "id = ?", productID).Error)
	return product.Stock
}

func (e *testEnv) cartSize(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&models.CartItem{}).Where("user_id = ?", e.userID).Count(&count).Error)
	return count
}

func TestCreateOrderCODHappyPath(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	product := env.seedProduct(t, "kettle", "499.00", 5)
	env.seedCartItem(t, product.ID, 2)
	addr := env.seedAddress(t, codPincode)

	result, err := env.svc.Create(context.Background(), CreateOrderInput{
		UserID:    env.userID,
		AddressID: addr.ID,
		Method:    "cod",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.Nil(t, result.Checkout)

	order := result.Order
	assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "SC-"))
	assert.True(t, order.TotalConsistent())
	assert.Equal(t, "998.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, "49.90", order.Tax.StringFixed(2))
	assert.Equal(t, "40.00", order.Shipping.StringFixed(2))

	require.NotNil(t, order.Payment)
	require.NotNil(t, order.Payment.TransactionID)
	assert.True(t, strings.HasPrefix(*order.Payment.TransactionID, "COD-"))
	assert.Equal(t, razorpay.ToPaise(order.Total), order.Payment.AmountPaise)

	assert.Equal(t, 3, env.stock(t, product.ID))
	assert.Zero(t, env.cartSize(t))
	assert.Zero(t, env.gateway.calls)
}

func TestCreateOrderGatewayPath(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	product := env.seedProduct(t, "headphones", "2500.00", 4)
	env.seedCartItem(t, product.ID, 1)
	addr := env.seedAddress(t, "110001")

	result, err := env.svc.Create(context.Background(), CreateOrderInput{
		UserID:    env.userID,
		AddressID: addr.ID,
		Method:    "upi",
	})
	require.NoError(t, err)

	order := result.Order
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	// Subtotal 2500 crosses the free-shipping threshold.
	assert.Equal(t, "0.00", order.Shipping.StringFixed(2))
	assert.True(t, order.TotalConsistent())

	require.NotNil(t, result.Checkout)
	assert.Equal(t, "rzp_test_key", result.Checkout.KeyID)
	assert.Equal(t, "INR", result.Checkout.Currency)
	assert.Equal(t, razorpay.ToPaise(order.Total), result.Checkout.AmountPaise)
	assert.Equal(t, 1, env.gateway.calls)

	reloaded, err := env.repo.FindByGatewayOrderID(context.Background(), result.Checkout.GatewayOrderID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, reloaded.ID)
	require.NotNil(t, reloaded.Payment.GatewayOrderID)
	assert.Equal(t, result.Checkout.GatewayOrderID, *reloaded.Payment.GatewayOrderID)

	assert.Equal(t, 3, env.stock(t, product.ID))
	assert.Zero(t, env.cartSize(t))
}

func TestCreateOrderInsufficientStockAborts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	inStock := env.seedProduct(t, "notebook", "120.00", 10)
	scarce := env.seedProduct(t, "lamp", "900.00", 1)
	env.seedCartItem(t, inStock.ID, 2)
	env.seedCartItem(t, scarce.ID, 3)
	addr := env.seedAddress(t, codPincode)

	_, err := env.svc.Create(context.Background(), CreateOrderInput{
		UserID:    env.userID,
		AddressID: addr.ID,
		Method:    "cod",
	})
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeConflict, typed.Code())

	// Nothing from the aborted transaction may stick.
	assert.Equal(t, 10, env.stock(t, inStock.ID))
	assert.Equal(t, 1, env.stock(t, scarce.ID))
	assert.Equal(t, int64(2), env.cartSize(t))

	var orderCount int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Zero(t, orderCount)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	addr := env.seedAddress(t, codPincode)

	_, err := env.svc.Create(context.Background(), CreateOrderInput{
		UserID:    env.userID,
		AddressID: addr.ID,
		Method:    "cod",
	})
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeValidation, typed.Code())
}

func TestCreateOrderEmptyCartWinsOverBadAddress(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	_, err := env.svc.Create(context.Background(), CreateOrderInput{
		UserID:    env.userID,
		AddressID: uuid.New(),
		Method:    "cod",
	})
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeValidation, typed.Code())
	assert.Equal(t, "cart is empty", typed.Message())
}

func TestCreateOrderCODPincodeNotServed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	product := env.seedProduct(t, "mug", "250.00", 5)
	env.seedCartItem(t, product.ID, 1)
	addr := env.seedAddress(t, "400001")

	_, err := env.svc.Create(context.Background(), CreateOrderInput{
		UserID:    env.userID,
		AddressID: addr.ID,
		Method:    "cod",
	})
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeValidation, typed.Code())

	// Rejected before any reservation.
	assert.Equal(t, 5, env.stock(t, product.ID))
	assert.Equal(t, int64(1), env.cartSize(t))
}

func TestCreateOrderGatewayFailureCompensates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.gateway.err = apperrors.New(apperrors.CodeDependency, "gateway unavailable")
	product := env.seedProduct(t, "speaker", "1500.00", 3)
	env.seedCartItem(t, product.ID, 2)
	addr := env.seedAddress(t, "110001")

	_, err := env.svc.Create(context.Background(), CreateOrderInput{
		UserID:    env.userID,
		AddressID: addr.ID,
		Method:    "credit_card",
	})
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeDependency, typed.Code())

	// The committed order must have been compensated: cancelled, stock back,
	// payment failed.
	var order models.Order
	require.NoError(t, env.db.Preload("Payment").First(&order, "user_id = ?", env.userID).Error)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	require.NotNil(t, order.CancellationReason)
	assert.Equal(t, "payment intent creation failed", *order.CancellationReason)
	assert.Equal(t, enums.PaymentStatusFailed, order.Payment.Status)

	assert.Equal(t, 3, env.stock(t, product.ID))
}

func TestCreateOrderWithCoupon(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	product := env.seedProduct(t, "chair", "2000.00", 2)
	env.seedCartItem(t, product.ID, 1)
	addr := env.seedAddress(t, codPincode)
	require.NoError(t, env.db.Create(&models.Coupon{Code: "FESTIVE10", PercentOff: 10, Active: true}).Error)

	code := "FESTIVE10"
	result, err := env.svc.Create(context.Background(), CreateOrderInput{
		UserID:     env.userID,
		AddressID:  addr.ID,
		Method:     "cod",
		CouponCode: &code,
	})
	require.NoError(t, err)

	order := result.Order
	assert.Equal(t, "200.00", order.Discount.StringFixed(2))
	assert.Equal(t, "100.00", order.Tax.StringFixed(2))
	assert.Equal(t, "0.00", order.Shipping.StringFixed(2))
	assert.Equal(t, "1900.00", order.Total.StringFixed(2))
	assert.True(t, order.TotalConsistent())
	require.NotNil(t, order.CouponCode)
	assert.Equal(t, code, *order.CouponCode)
}

func TestCreateOrderInactiveCoupon(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	product := env.seedProduct(t, "desk", "5000.00", 2)
	env.seedCartItem(t, product.ID, 1)
	addr := env.seedAddress(t, codPincode)
	require.NoError(t, env.db.Create(&models.Coupon{Code: "EXPIRED", PercentOff: 20, Active: false}).Error)

	code := "EXPIRED"
	_, err := env.svc.Create(context.Background(), CreateOrderInput{
		UserID:     env.userID,
		AddressID:  addr.ID,
		Method:     "cod",
		CouponCode: &code,
	})
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeValidation, typed.Code())

	// Reservation rolled back with the coupon rejection.
	assert.Equal(t, 2, env.stock(t, product.ID))
}

func TestCancelConfirmedOrderReleasesStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	product := env.seedProduct(t, "fan", "1800.00", 6)
	env.seedCartItem(t, product.ID, 2)
	addr := env.seedAddress(t, codPincode)

	result, err := env.svc.Create(context.Background(), CreateOrderInput{
		UserID:    env.userID,
		AddressID: addr.ID,
		Method:    "cod",
	})
	require.NoError(t, err)
	require.Equal(t, 4, env.stock(t, product.ID))

	cancelled, err := env.svc.Cancel(context.Background(), env.userID, result.Order.OrderNumber, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "changed my mind", *cancelled.CancellationReason)
	assert.NotNil(t, cancelled.CancelledAt)

	assert.Equal(t, 6, env.stock(t, product.ID))
}

func TestCancelShippedOrderRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	product := env.seedProduct(t, "heater", "3200.00", 2)
	env.seedCartItem(t, product.ID, 1)
	addr := env.seedAddress(t, codPincode)

	result, err := env.svc.Create(context.Background(), CreateOrderInput{
		UserID:    env.userID,
		AddressID: addr.ID,
		Method:    "cod",
	})
	require.NoError(t, err)

	number := result.Order.OrderNumber
	_, err = env.svc.MarkProcessing(context.Background(), number)
	require.NoError(t, err)
	_, err = env.svc.MarkShipped(context.Background(), number, "TRK123")
	require.NoError(t, err)

	_, err = env.svc.Cancel(context.Background(), env.userID, number, "")
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeStateConflict, typed.Code())

	// Stock stays reserved for the shipped order.
	assert.Equal(t, 1, env.stock(t, product.ID))
}

func TestFulfilmentTransitions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	product := env.seedProduct(t, "mixer", "4200.00", 2)
	env.seedCartItem(t, product.ID, 1)
	addr := env.seedAddress(t, codPincode)

	result, err := env.svc.Create(context.Background(), CreateOrderInput{
		UserID:    env.userID,
		AddressID: addr.ID,
		Method:    "cod",
	})
	require.NoError(t, err)
	number := result.Order.OrderNumber

	// Cannot ship before processing.
	_, err = env.svc.MarkShipped(context.Background(), number, "TRK999")
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeStateConflict, typed.Code())

	order, err := env.svc.MarkProcessing(context.Background(), number)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)

	order, err = env.svc.MarkShipped(context.Background(), number, "TRK999")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, order.Status)
	require.NotNil(t, order.TrackingRef)
	assert.Equal(t, "TRK999", *order.TrackingRef)

	order, err = env.svc.MarkDelivered(context.Background(), number)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, order.Status)
}

func TestReleaseExpiredSweep(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	product := env.seedProduct(t, "router", "2200.00", 5)
	env.seedCartItem(t, product.ID, 2)
	addr := env.seedAddress(t, "110001")

	result, err := env.svc.Create(context.Background(), CreateOrderInput{
		UserID:    env.userID,
		AddressID: addr.ID,
		Method:    "upi",
	})
	require.NoError(t, err)
	require.Equal(t, 3, env.stock(t, product.ID))

	// Backdate the pending order past the payment window.
	stale := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, env.db.Model(&models.Order{}).
		Where("id = ?", result.Order.ID).
		Update("created_at", stale).Error)

	released, err := env.svc.ReleaseExpired(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	reloaded, err := env.repo.FindByNumber(context.Background(), result.Order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, reloaded.Status)
	assert.Equal(t, enums.PaymentStatusFailed, reloaded.Payment.Status)
	assert.Equal(t, 5, env.stock(t, product.ID))

	// A second sweep finds nothing.
	released, err = env.svc.ReleaseExpired(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, released)
}

func TestGetAndListScopedToUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	product := env.seedProduct(t, "bottle", "300.00", 10)
	env.seedCartItem(t, product.ID, 1)
	addr := env.seedAddress(t, codPincode)

	result, err := env.svc.Create(context.Background(), CreateOrderInput{
		UserID:    env.userID,
		AddressID: addr.ID,
		Method:    "cod",
	})
	require.NoError(t, err)

	found, err := env.svc.Get(context.Background(), env.userID, result.Order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, result.Order.ID, found.ID)
	assert.Len(t, found.Items, 1)

	_, err = env.svc.Get(context.Background(), uuid.New(), result.Order.OrderNumber)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeNotFound, typed.Code())

	listed, err := env.svc.List(context.Background(), env.userID, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	listedOther, err := env.svc.List(context.Background(), uuid.New(), 0)
	require.NoError(t, err)
	assert.Empty(t, listedOther)
}
