package razorpay

import "strings"

// Webhook event names this engine reconciles on.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventRefundProcessed = "refund.processed"
	EventRefundFailed    = "refund.failed"
)

// WebhookEvent is the typed event envelope the gateway posts: an event name
// plus nested entity payloads keyed by entity kind.
type WebhookEvent struct {
	EventID string         `json:"event_id"`
	Event   string         `json:"event"`
	Payload WebhookPayload `json:"payload"`
}

// WebhookPayload nests the entities the event describes.
type WebhookPayload struct {
	Payment *WebhookEntity `json:"payment,omitempty"`
	Refund  *WebhookEntity `json:"refund,omitempty"`
}

// WebhookEntity wraps the provider's entity envelope.
type WebhookEntity struct {
	Entity EventEntity `json:"entity"`
}

// EventEntity carries the fields shared by payment and refund entities. The
// gateway identifies orders by its own ids, never by the local order number.
type EventEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id,omitempty"`
	PaymentID        string `json:"payment_id,omitempty"`
	AmountPaise      int64  `json:"amount,omitempty"`
	Status           string `json:"status,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Payment returns the payment entity, or nil when absent.
func (e *WebhookEvent) Payment() *EventEntity {
	if e == nil || e.Payload.Payment == nil {
		return nil
	}
	return &e.Payload.Payment.Entity
}

// Refund returns the refund entity, or nil when absent.
func (e *WebhookEvent) Refund() *EventEntity {
	if e == nil || e.Payload.Refund == nil {
		return nil
	}
	return &e.Payload.Refund.Entity
}

// Normalized returns the trimmed lowercase event name.
func (e *WebhookEvent) Normalized() string {
	if e == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(e.Event))
}
