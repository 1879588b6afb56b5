package address

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anmolvirk/swiftcart-backend/pkg/db/models"
	apperrors "github.com/anmolvirk/swiftcart-backend/pkg/errors"
)

// Repository resolves a customer's saved addresses. Lookups are always
// scoped to the owning user so one customer can never ship to another's
// address by guessing IDs.
type Repository interface {
	Find(ctx context.Context, userID, addressID uuid.UUID) (*models.CustomerAddress, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Find(ctx context.Context, userID, addressID uuid.UUID) (*models.CustomerAddress, error) {
	var addr models.CustomerAddress
	err := r.db.WithContext(ctx).
		First(&addr, "id = ? AND user_id = ?", addressID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "address not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "find address")
	}
	return &addr, nil
}
