package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
)

// Repository manages a buyer's cart lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, item *models.CartItem) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.CartItem, error)
	Remove(ctx context.Context, buyerID, productID uuid.UUID) error
	ClearProducts(ctx context.Context, buyerID uuid.UUID, productIDs []uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert inserts the line or replaces its quantity when the (buyer, product)
// pair already exists.
func (r *repository) Upsert(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "buyer_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"qty", "updated_at"}),
		}).
		Create(item).Error
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) Remove(ctx context.Context, buyerID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("buyer_id = ? AND product_id = ?", buyerID, productID).
		Delete(&models.CartItem{}).Error
}

// ClearProducts deletes the buyer's lines for the given products. Called when
// an order turns paid so only the purchased lines leave the cart.
func (r *repository) ClearProducts(ctx context.Context, buyerID uuid.UUID, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("buyer_id = ? AND product_id IN ?", buyerID, productIDs).
		Delete(&models.CartItem{}).Error
}
