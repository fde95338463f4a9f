package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
)

// Repository manages buyer delivery addresses.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, addr *models.DeliveryAddress) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.DeliveryAddress, error)
	FindOwned(ctx context.Context, addressID, buyerID uuid.UUID) (*models.DeliveryAddress, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an address repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, addr *models.DeliveryAddress) error {
	return r.db.WithContext(ctx).Create(addr).Error
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.DeliveryAddress, error) {
	var addrs []models.DeliveryAddress
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Find(&addrs).Error
	if err != nil {
		return nil, err
	}
	return addrs, nil
}

// FindOwned loads the address only when it belongs to the buyer. A foreign or
// missing address surfaces as not found so ownership is never leaked.
func (r *repository) FindOwned(ctx context.Context, addressID, buyerID uuid.UUID) (*models.DeliveryAddress, error) {
	var addr models.DeliveryAddress
	err := r.db.WithContext(ctx).
		Where("id = ? AND buyer_id = ?", addressID, buyerID).
		First(&addr).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery address not found")
		}
		return nil, err
	}
	return &addr, nil
}
