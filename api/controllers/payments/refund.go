package payments

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/anmolvirk/swiftcart-backend/api/responses"
	"github.com/anmolvirk/swiftcart-backend/api/validators"
	internalorders "github.com/anmolvirk/swiftcart-backend/internal/orders"
	"github.com/anmolvirk/swiftcart-backend/internal/reconcile"
	pkgerrors "github.com/anmolvirk/swiftcart-backend/pkg/errors"
	"github.com/anmolvirk/swiftcart-backend/pkg/logger"
)

type refundRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=280"`
}

// Refund initiates a gateway refund for a delivered order.
func Refund(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		orderNumber := chi.URLParam(r, "orderNumber")
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		var body refundRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.InitiateRefund(r.Context(), orderNumber, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.ToView(order))
	}
}
