package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
	"github.com/gathergrid/gathergrid-backend/pkg/enums"
	"github.com/gathergrid/gathergrid-backend/pkg/pagination"
	"github.com/gathergrid/gathergrid-backend/pkg/stripe"
)

// Repository is the persistence surface for vendor orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindProductsForCheckout(ctx context.Context, productIDs []uuid.UUID) ([]models.Product, error)
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	SaveUserCustomerRef(ctx context.Context, userID uuid.UUID, customerRef string) error

	CreateVendorOrders(ctx context.Context, orders []models.VendorOrder) error
	SetPaymentIntentByRef(ctx context.Context, orderRef, intentID string) error

	FindByOrderRef(ctx context.Context, orderRef string) ([]models.VendorOrder, error)
	FindByRefAndVendor(ctx context.Context, orderRef string, vendorID uuid.UUID) (*models.VendorOrder, error)
	FindByIntentID(ctx context.Context, intentID string) ([]models.VendorOrder, error)

	MarkPaymentStatusByRef(ctx context.Context, orderRef string, from, to enums.PaymentStatus) (int64, error)
	UpdateLifecycleByRef(ctx context.Context, orderRef string, status enums.OrderStatus) error
	UpdateDelivery(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error)
	UpdateLineItemStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error

	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.VendorOrder, error)
}

// PaymentGateway is the slice of the payment adapter that checkout needs.
type PaymentGateway interface {
	CreateCustomerProfile(ctx context.Context, name, email string) (string, error)
	CreatePaymentIntent(ctx context.Context, customerRef string, amount decimal.Decimal, currency, transferGroup string) (*stripe.PaymentHandle, error)
	ConfirmPaymentIntent(ctx context.Context, intentID string) (string, error)
}

// StockLedger is the slice of the inventory ledger that orders drive.
type StockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Commit(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// CartClearer removes purchased lines once payment completes.
type CartClearer interface {
	ClearProducts(ctx context.Context, buyerID uuid.UUID, productIDs []uuid.UUID) error
}

// AddressChecker verifies address ownership at checkout.
type AddressChecker interface {
	FindOwned(ctx context.Context, addressID, buyerID uuid.UUID) (*models.DeliveryAddress, error)
}

// Notifier enqueues receipt and invoice jobs transactionally. Failures are
// soft: callers log and continue, they never roll back the transition.
type Notifier interface {
	Enqueue(ctx context.Context, tx *gorm.DB, kind enums.NotificationKind, recipient string, payload any) error
}
