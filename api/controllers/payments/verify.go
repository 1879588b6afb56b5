package payments

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/anmolvirk/swiftcart-backend/api/middleware"
	"github.com/anmolvirk/swiftcart-backend/api/responses"
	"github.com/anmolvirk/swiftcart-backend/api/validators"
	internalorders "github.com/anmolvirk/swiftcart-backend/internal/orders"
	"github.com/anmolvirk/swiftcart-backend/internal/reconcile"
	pkgerrors "github.com/anmolvirk/swiftcart-backend/pkg/errors"
	"github.com/anmolvirk/swiftcart-backend/pkg/logger"
)

// Verify handles the browser's post-checkout payment confirmation.
func Verify(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user"))
			return
		}

		var input reconcile.CallbackInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.UserID = userID

		order, err := svc.ConfirmCallback(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.ToView(order))
	}
}
