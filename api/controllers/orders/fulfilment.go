package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/anmolvirk/swiftcart-backend/api/responses"
	"github.com/anmolvirk/swiftcart-backend/api/validators"
	internalorders "github.com/anmolvirk/swiftcart-backend/internal/orders"
	pkgerrors "github.com/anmolvirk/swiftcart-backend/pkg/errors"
	"github.com/anmolvirk/swiftcart-backend/pkg/logger"
)

// MarkProcessing moves a confirmed order into fulfilment.
func MarkProcessing(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNumber, ok := requireOrderNumber(w, r, svc, logg)
		if !ok {
			return
		}
		order, err := svc.MarkProcessing(r.Context(), orderNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.ToView(order))
	}
}

type shipRequest struct {
	TrackingRef string `json:"tracking_ref" validate:"required,max=100"`
}

// MarkShipped records dispatch with its tracking reference.
func MarkShipped(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNumber, ok := requireOrderNumber(w, r, svc, logg)
		if !ok {
			return
		}

		var body shipRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.MarkShipped(r.Context(), orderNumber, body.TrackingRef)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.ToView(order))
	}
}

// MarkDelivered records successful delivery.
func MarkDelivered(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNumber, ok := requireOrderNumber(w, r, svc, logg)
		if !ok {
			return
		}
		order, err := svc.MarkDelivered(r.Context(), orderNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.ToView(order))
	}
}

func requireOrderNumber(w http.ResponseWriter, r *http.Request, svc internalorders.Service, logg *logger.Logger) (string, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
		return "", false
	}
	orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	if orderNumber == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
		return "", false
	}
	return orderNumber, true
}
