package orders

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anmolvirk/swiftcart-backend/pkg/enums"
	apperrors "github.com/anmolvirk/swiftcart-backend/pkg/errors"
)

func TestTransitionAllowedEdges(t *testing.T) {
	t.Parallel()

	allowed := []struct {
		from enums.OrderStatus
		to   enums.OrderStatus
	}{
		{enums.OrderStatusPending, enums.OrderStatusConfirmed},
		{enums.OrderStatusPending, enums.OrderStatusCancelled},
		{enums.OrderStatusConfirmed, enums.OrderStatusProcessing},
		{enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
		{enums.OrderStatusProcessing, enums.OrderStatusShipped},
		{enums.OrderStatusShipped, enums.OrderStatusDelivered},
		{enums.OrderStatusDelivered, enums.OrderStatusRefunded},
	}
	for _, edge := range allowed {
		require.NoError(t, Transition(edge.from, edge.to), "%s -> %s", edge.from, edge.to)
	}
}

func TestTransitionRejectedEdges(t *testing.T) {
	t.Parallel()

	rejected := []struct {
		from enums.OrderStatus
		to   enums.OrderStatus
	}{
		{enums.OrderStatusPending, enums.OrderStatusShipped},
		{enums.OrderStatusPending, enums.OrderStatusDelivered},
		{enums.OrderStatusProcessing, enums.OrderStatusCancelled},
		{enums.OrderStatusShipped, enums.OrderStatusCancelled},
		{enums.OrderStatusDelivered, enums.OrderStatusCancelled},
		{enums.OrderStatusCancelled, enums.OrderStatusConfirmed},
		{enums.OrderStatusRefunded, enums.OrderStatusPending},
		{enums.OrderStatusConfirmed, enums.OrderStatusConfirmed},
	}
	for _, edge := range rejected {
		err := Transition(edge.from, edge.to)
		require.Error(t, err, "%s -> %s", edge.from, edge.to)

		typed := apperrors.As(err)
		require.NotNil(t, typed)
		require.Equal(t, apperrors.CodeStateConflict, typed.Code())
	}
}

func TestTransitionUnknownStatus(t *testing.T) {
	t.Parallel()

	err := Transition(enums.OrderStatus("archived"), enums.OrderStatusCancelled)
	require.Error(t, err)

	typed := apperrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, apperrors.CodeValidation, typed.Code())
}
