package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gathergrid/gathergrid-backend/internal/inventory"
	"github.com/gathergrid/gathergrid-backend/pkg/enums"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
)

// sqliteTxRunner drives the real repository and ledger through a database
// transaction, matching how the service runs in production.
type sqliteTxRunner struct {
	db *gorm.DB
}

func (r *sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupCheckoutDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:orderscheckout?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL,
  payment_customer_ref TEXT,
  connected_account_ref TEXT,
  payouts_enabled INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  unit_price TEXT NOT NULL,
  discount_percent INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'USD',
  approval_status TEXT NOT NULL DEFAULT 'pending',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS inventory_items (
  product_id TEXT PRIMARY KEY,
  available_qty INTEGER NOT NULL DEFAULT 0,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS vendor_orders (
  id TEXT PRIMARY KEY,
  order_ref TEXT NOT NULL,
  transfer_group TEXT,
  buyer_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  delivery_address_id TEXT,
  currency TEXT NOT NULL DEFAULT 'USD',
  total_amount TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  status TEXT NOT NULL DEFAULT 'pending',
  payment_intent_id TEXT,
  tracking_id TEXT,
  carrier_partner TEXT,
  cancellation_remark TEXT,
  placed_at DATETIME,
  shipped_at DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unit_price TEXT NOT NULL,
  net_price TEXT NOT NULL,
  line_total TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedCheckoutBuyer(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, db.Exec(
		`INSERT INTO users (id, name, email, payment_customer_ref) VALUES (?, ?, ?, ?)`,
		id, "Buyer", "buyer@example.com", "cus_seeded",
	).Error)
	return id
}

func seedCheckoutProduct(t *testing.T, db *gorm.DB, available int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, db.Exec(
		`INSERT INTO products (id, vendor_id, title, unit_price, approval_status, is_active)
		 VALUES (?, ?, ?, '10.00', 'approved', 1)`,
		id, uuid.New(), "product-"+id.String(),
	).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO inventory_items (product_id, available_qty, reserved_qty) VALUES (?, ?, 0)`,
		id, available,
	).Error)
	return id
}

func checkoutCounts(t *testing.T, db *gorm.DB, productID uuid.UUID) (available, reserved int) {
	t.Helper()
	row := db.Raw(`SELECT available_qty, reserved_qty FROM inventory_items WHERE product_id = ?`, productID).Row()
	require.NoError(t, row.Scan(&available, &reserved))
	return available, reserved
}

func newCheckoutService(t *testing.T, db *gorm.DB, gateway *stubGateway, buyerID uuid.UUID) Service {
	t.Helper()
	stock, err := inventory.NewLedger(db)
	require.NoError(t, err)
	svc, err := NewService(
		NewRepository(db),
		&sqliteTxRunner{db: db},
		gateway,
		stock,
		&stubCart{},
		&stubAddresses{ownerID: buyerID},
		&stubNotifier{},
		testLogger(),
	)
	require.NoError(t, err)
	return svc
}

func TestPlaceOrderRollsBackWhenIntentFails(t *testing.T) {
	db := setupCheckoutDB(t)
	buyerID := seedCheckoutBuyer(t, db)
	productA := seedCheckoutProduct(t, db, 5)
	productB := seedCheckoutProduct(t, db, 5)

	svc := newCheckoutService(t, db, &stubGateway{failIntent: true}, buyerID)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		BuyerID: buyerID,
		Lines: []OrderLineRequest{
			{ProductID: productA, Qty: 2},
			{ProductID: productB, Qty: 1},
		},
		AddressID:      uuid.New(),
		DeclaredAmount: decimal.RequireFromString("30.00"),
		Currency:       enums.CurrencyUSD,
	})
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeDependency, appErr.Code())

	// the transaction rolled back: no vendor order from either vendor survives
	var orderCount int64
	require.NoError(t, db.Table("vendor_orders").Where("buyer_id = ?", buyerID).Count(&orderCount).Error)
	assert.Zero(t, orderCount)

	var lineCount int64
	require.NoError(t, db.Table("order_line_items").Where("product_id IN ?", []uuid.UUID{productA, productB}).Count(&lineCount).Error)
	assert.Zero(t, lineCount)

	// reservations made before the intent call are undone with it
	available, reserved := checkoutCounts(t, db, productA)
	assert.Equal(t, 5, available)
	assert.Equal(t, 0, reserved)
	available, reserved = checkoutCounts(t, db, productB)
	assert.Equal(t, 5, available)
	assert.Equal(t, 0, reserved)
}

func TestPlaceOrderCommitsAcrossVendors(t *testing.T) {
	db := setupCheckoutDB(t)
	buyerID := seedCheckoutBuyer(t, db)
	productA := seedCheckoutProduct(t, db, 5)
	productB := seedCheckoutProduct(t, db, 5)

	svc := newCheckoutService(t, db, &stubGateway{}, buyerID)

	result, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		BuyerID: buyerID,
		Lines: []OrderLineRequest{
			{ProductID: productA, Qty: 2},
			{ProductID: productB, Qty: 1},
		},
		AddressID:      uuid.New(),
		DeclaredAmount: decimal.RequireFromString("30.00"),
		Currency:       enums.CurrencyUSD,
	})
	require.NoError(t, err)
	require.Len(t, result.Orders, 2)

	var orderCount int64
	require.NoError(t, db.Table("vendor_orders").Where("order_ref = ?", result.OrderRef).Count(&orderCount).Error)
	assert.EqualValues(t, 2, orderCount)

	var intentIDs []string
	require.NoError(t, db.Table("vendor_orders").
		Where("order_ref = ?", result.OrderRef).
		Distinct("payment_intent_id").
		Pluck("payment_intent_id", &intentIDs).Error)
	assert.Equal(t, []string{"pi_stub"}, intentIDs)

	available, reserved := checkoutCounts(t, db, productA)
	assert.Equal(t, 3, available)
	assert.Equal(t, 2, reserved)
	available, reserved = checkoutCounts(t, db, productB)
	assert.Equal(t, 4, available)
	assert.Equal(t, 1, reserved)
}
