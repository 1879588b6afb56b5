package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/anmolvirk/swiftcart-backend/pkg/db/models"
	"github.com/anmolvirk/swiftcart-backend/pkg/enums"
	"github.com/anmolvirk/swiftcart-backend/pkg/types"
)

// CreateOrderInput carries the checkout request. UserID comes from the
// authenticated session, never from the body.
type CreateOrderInput struct {
	UserID     uuid.UUID `json:"-"`
	AddressID  uuid.UUID `json:"address_id" validate:"required"`
	Method     string    `json:"payment_method" validate:"required"`
	CouponCode *string   `json:"coupon_code,omitempty"`
	Notes      *string   `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// GatewayCheckout is what the browser needs to open the provider's checkout
// for a freshly created order. Nil for cash on delivery.
type GatewayCheckout struct {
	GatewayOrderID string `json:"gateway_order_id"`
	AmountPaise    int64  `json:"amount_paise"`
	Currency       string `json:"currency"`
	KeyID          string `json:"key_id"`
}

// CreateOrderResult pairs the persisted order with its checkout parameters.
type CreateOrderResult struct {
	Order    *models.Order
	Checkout *GatewayCheckout
}

// LineItemView is the read shape of one order line.
type LineItemView struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Qty       int       `json:"qty"`
	UnitPrice string    `json:"unit_price"`
	LineTotal string    `json:"line_total"`
}

// PaymentView is the read shape of the order's payment record.
type PaymentView struct {
	Method         enums.PaymentMethod `json:"method"`
	Status         enums.PaymentStatus `json:"status"`
	AmountPaise    int64               `json:"amount_paise"`
	GatewayOrderID *string             `json:"gateway_order_id,omitempty"`
	TransactionID  *string             `json:"transaction_id,omitempty"`
	FailureReason  *string             `json:"failure_reason,omitempty"`
	RefundStatus   enums.RefundStatus  `json:"refund_status"`
}

// OrderView is the API read shape of an order. Monetary fields are fixed
// two-decimal strings.
type OrderView struct {
	OrderNumber string            `json:"order_number"`
	Status      enums.OrderStatus `json:"status"`

	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Shipping string `json:"shipping"`
	Discount string `json:"discount"`
	Total    string `json:"total"`

	CouponCode *string `json:"coupon_code,omitempty"`
	Notes      *string `json:"notes,omitempty"`

	ShippingAddress types.Address `json:"shipping_address"`
	BillingAddress  types.Address `json:"billing_address"`

	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	TrackingRef        *string    `json:"tracking_ref,omitempty"`

	Items   []LineItemView `json:"items"`
	Payment *PaymentView   `json:"payment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ToView maps a persisted order onto the API read shape.
func ToView(order *models.Order) *OrderView {
	if order == nil {
		return nil
	}

	view := &OrderView{
		OrderNumber:        order.OrderNumber,
		Status:             order.Status,
		Subtotal:           order.Subtotal.StringFixed(2),
		Tax:                order.Tax.StringFixed(2),
		Shipping:           order.Shipping.StringFixed(2),
		Discount:           order.Discount.StringFixed(2),
		Total:              order.Total.StringFixed(2),
		CouponCode:         order.CouponCode,
		Notes:              order.Notes,
		ShippingAddress:    order.ShippingAddress,
		BillingAddress:     order.BillingAddress,
		CancellationReason: order.CancellationReason,
		CancelledAt:        order.CancelledAt,
		TrackingRef:        order.TrackingRef,
		Items:              make([]LineItemView, 0, len(order.Items)),
		CreatedAt:          order.CreatedAt,
	}

	for _, item := range order.Items {
		view.Items = append(view.Items, LineItemView{
			ProductID: item.ProductID,
			Name:      item.Name,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice.StringFixed(2),
			LineTotal: item.LineTotal.StringFixed(2),
		})
	}

	if order.Payment != nil {
		view.Payment = &PaymentView{
			Method:         order.Payment.Method,
			Status:         order.Payment.Status,
			AmountPaise:    order.Payment.AmountPaise,
			GatewayOrderID: order.Payment.GatewayOrderID,
			TransactionID:  order.Payment.TransactionID,
			FailureReason:  order.Payment.FailureReason,
			RefundStatus:   order.Payment.RefundStatus,
		}
	}

	return view
}
