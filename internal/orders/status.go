package orders

import (
	"github.com/anmolvirk/swiftcart-backend/pkg/enums"
	apperrors "github.com/anmolvirk/swiftcart-backend/pkg/errors"
)

// allowedTransitions is the single authority on order status changes. Any
// status not listed as a source here is terminal for that edge.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:  {enums.OrderStatusRefunded},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to and returns a typed state-conflict error
// naming both statuses when the edge is not allowed.
func Transition(from, to enums.OrderStatus) error {
	if !from.IsValid() || !to.IsValid() {
		return apperrors.New(apperrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"from": from.String(), "to": to.String()})
	}
	if !CanTransition(from, to) {
		return apperrors.New(apperrors.CodeStateConflict, "order status transition not allowed").
			WithDetails(map[string]any{"from": from.String(), "to": to.String()})
	}
	return nil
}
