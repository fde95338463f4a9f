package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
	"github.com/gathergrid/gathergrid-backend/pkg/enums"
	"github.com/gathergrid/gathergrid-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProductsForCheckout(ctx context.Context, productIDs []uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("Inventory").
		Where("id IN ?", productIDs).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) SaveUserCustomerRef(ctx context.Context, userID uuid.UUID, customerRef string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("payment_customer_ref", customerRef).Error
}

func (r *repository) CreateVendorOrders(ctx context.Context, orders []models.VendorOrder) error {
	if len(orders) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&orders).Error
}

func (r *repository) SetPaymentIntentByRef(ctx context.Context, orderRef, intentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.VendorOrder{}).
		Where("order_ref = ?", orderRef).
		Update("payment_intent_id", intentID).Error
}

func (r *repository) FindByOrderRef(ctx context.Context, orderRef string) ([]models.VendorOrder, error) {
	var orders []models.VendorOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_ref = ?", orderRef).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) FindByRefAndVendor(ctx context.Context, orderRef string, vendorID uuid.UUID) (*models.VendorOrder, error) {
	var order models.VendorOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_ref = ? AND vendor_id = ?", orderRef, vendorID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIntentID(ctx context.Context, intentID string) ([]models.VendorOrder, error) {
	var orders []models.VendorOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_intent_id = ?", intentID).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// MarkPaymentStatusByRef flips the payment status of every vendor order in a
// checkout, guarded on the current value so duplicate deliveries are no-ops.
func (r *repository) MarkPaymentStatusByRef(ctx context.Context, orderRef string, from, to enums.PaymentStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.VendorOrder{}).
		Where("order_ref = ? AND payment_status = ?", orderRef, from).
		Update("payment_status", to)
	return res.RowsAffected, res.Error
}

// UpdateLifecycleByRef stamps the lifecycle status across a checkout.
// Cancelled vendor orders keep their terminal status.
func (r *repository) UpdateLifecycleByRef(ctx context.Context, orderRef string, status enums.OrderStatus) error {
	updates := map[string]any{"status": status}
	if col := lifecycleColumn(status); col != "" {
		updates[col] = gorm.Expr("CURRENT_TIMESTAMP")
	}
	return r.db.WithContext(ctx).
		Model(&models.VendorOrder{}).
		Where("order_ref = ? AND status <> ?", orderRef, enums.OrderStatusCancelled).
		Updates(updates).Error
}

// UpdateDelivery applies a vendor transition guarded on the current status.
// Zero rows affected means a concurrent writer got there first.
func (r *repository) UpdateDelivery(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	if col := lifecycleColumn(to); col != "" {
		updates[col] = gorm.Expr("CURRENT_TIMESTAMP")
	}
	res := r.db.WithContext(ctx).
		Model(&models.VendorOrder{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateLineItemStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderLineItem{}).
		Where("order_id = ?", orderID).
		Update("status", status).Error
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.VendorOrder, error) {
	query := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var orders []models.VendorOrder
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func lifecycleColumn(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusPlaced:
		return "placed_at"
	case enums.OrderStatusShipped:
		return "shipped_at"
	case enums.OrderStatusDelivered:
		return "delivered_at"
	case enums.OrderStatusCancelled:
		return "cancelled_at"
	default:
		return ""
	}
}
