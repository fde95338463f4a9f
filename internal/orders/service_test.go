package orders

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
	"github.com/gathergrid/gathergrid-backend/pkg/enums"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
	"github.com/gathergrid/gathergrid-backend/pkg/pagination"
	"github.com/gathergrid/gathergrid-backend/pkg/stripe"
)

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOrdersRepo struct {
	products      []models.Product
	users         map[uuid.UUID]*models.User
	created       []models.VendorOrder
	refOrders     []models.VendorOrder
	intentByRef   map[string]string
	markRows      int64
	markCalls     int
	lifecycle     []enums.OrderStatus
	lineStatuses  []enums.OrderStatus
	deliveryRows  int64
	deliveryCalls int
	listed        []models.VendorOrder
	customerRefs  map[uuid.UUID]string
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{
		users:        map[uuid.UUID]*models.User{},
		intentByRef:  map[string]string{},
		customerRefs: map[uuid.UUID]string{},
	}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrdersRepo) FindProductsForCheckout(ctx context.Context, productIDs []uuid.UUID) ([]models.Product, error) {
	return s.products, nil
}

func (s *stubOrdersRepo) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubOrdersRepo) SaveUserCustomerRef(ctx context.Context, userID uuid.UUID, customerRef string) error {
	s.customerRefs[userID] = customerRef
	return nil
}

func (s *stubOrdersRepo) CreateVendorOrders(ctx context.Context, orders []models.VendorOrder) error {
	s.created = append(s.created, orders...)
	return nil
}

func (s *stubOrdersRepo) SetPaymentIntentByRef(ctx context.Context, orderRef, intentID string) error {
	s.intentByRef[orderRef] = intentID
	return nil
}

func (s *stubOrdersRepo) FindByOrderRef(ctx context.Context, orderRef string) ([]models.VendorOrder, error) {
	return s.refOrders, nil
}

func (s *stubOrdersRepo) FindByRefAndVendor(ctx context.Context, orderRef string, vendorID uuid.UUID) (*models.VendorOrder, error) {
	for i := range s.refOrders {
		if s.refOrders[i].VendorID == vendorID {
			return &s.refOrders[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) FindByIntentID(ctx context.Context, intentID string) ([]models.VendorOrder, error) {
	return s.refOrders, nil
}

func (s *stubOrdersRepo) MarkPaymentStatusByRef(ctx context.Context, orderRef string, from, to enums.PaymentStatus) (int64, error) {
	s.markCalls++
	return s.markRows, nil
}

func (s *stubOrdersRepo) UpdateLifecycleByRef(ctx context.Context, orderRef string, status enums.OrderStatus) error {
	s.lifecycle = append(s.lifecycle, status)
	return nil
}

func (s *stubOrdersRepo) UpdateDelivery(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error) {
	s.deliveryCalls++
	return s.deliveryRows, nil
}

func (s *stubOrdersRepo) UpdateLineItemStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	s.lineStatuses = append(s.lineStatuses, status)
	return nil
}

func (s *stubOrdersRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.VendorOrder, error) {
	if limit < len(s.listed) {
		return s.listed[:limit], nil
	}
	return s.listed, nil
}

type stubGateway struct {
	customerRef  string
	intents      int
	intentAmount decimal.Decimal
	confirmState string
	failIntent   bool
}

func (s *stubGateway) CreateCustomerProfile(ctx context.Context, name, email string) (string, error) {
	if s.customerRef == "" {
		s.customerRef = "cus_stub"
	}
	return s.customerRef, nil
}

func (s *stubGateway) CreatePaymentIntent(ctx context.Context, customerRef string, amount decimal.Decimal, currency, transferGroup string) (*stripe.PaymentHandle, error) {
	if s.failIntent {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "provider unavailable")
	}
	s.intents++
	s.intentAmount = amount
	return &stripe.PaymentHandle{IntentID: "pi_stub", ClientSecret: "secret_stub"}, nil
}

func (s *stubGateway) ConfirmPaymentIntent(ctx context.Context, intentID string) (string, error) {
	if s.confirmState == "" {
		return "succeeded", nil
	}
	return s.confirmState, nil
}

type stubStock struct {
	reserved map[uuid.UUID]int
	commits  map[uuid.UUID]int
	released map[uuid.UUID]int
	failFor  uuid.UUID
}

func newStubStock() *stubStock {
	return &stubStock{
		reserved: map[uuid.UUID]int{},
		commits:  map[uuid.UUID]int{},
		released: map[uuid.UUID]int{},
	}
}

func (s *stubStock) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if productID == s.failFor {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "product is out of stock")
	}
	s.reserved[productID] += qty
	return nil
}

func (s *stubStock) Commit(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	s.commits[productID] += qty
	return nil
}

func (s *stubStock) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	s.released[productID] += qty
	return nil
}

type stubCart struct {
	cleared []uuid.UUID
}

func (s *stubCart) ClearProducts(ctx context.Context, buyerID uuid.UUID, productIDs []uuid.UUID) error {
	s.cleared = append(s.cleared, productIDs...)
	return nil
}

type stubAddresses struct {
	ownerID uuid.UUID
}

func (s *stubAddresses) FindOwned(ctx context.Context, addressID, buyerID uuid.UUID) (*models.DeliveryAddress, error) {
	if buyerID != s.ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery address not found")
	}
	return &models.DeliveryAddress{ID: addressID, BuyerID: buyerID}, nil
}

type stubNotifier struct {
	enqueued []enums.NotificationKind
}

func (s *stubNotifier) Enqueue(ctx context.Context, tx *gorm.DB, kind enums.NotificationKind, recipient string, payload any) error {
	s.enqueued = append(s.enqueued, kind)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
}

func checkoutFixture(t *testing.T) (*stubOrdersRepo, *stubStock, *stubCart, *stubNotifier, *stubGateway, PlaceOrderInput) {
	t.Helper()

	buyerID := uuid.New()
	vendorA := uuid.New()
	vendorB := uuid.New()

	p1 := models.Product{
		ID: uuid.New(), VendorID: vendorA, Title: "alpha",
		UnitPrice: decimal.RequireFromString("90.00"), DiscountPercent: 10,
		Currency: enums.CurrencyUSD, ApprovalStatus: enums.ApprovalStatusApproved, IsActive: true,
		Inventory: &models.InventoryItem{AvailableQty: 10},
	}
	p2 := models.Product{
		ID: uuid.New(), VendorID: vendorB, Title: "beta",
		UnitPrice: decimal.RequireFromString("20.00"),
		Currency:  enums.CurrencyUSD, ApprovalStatus: enums.ApprovalStatusApproved, IsActive: true,
		Inventory: &models.InventoryItem{AvailableQty: 10},
	}

	repo := newStubOrdersRepo()
	repo.products = []models.Product{p1, p2}
	ref := "cus_existing"
	repo.users[buyerID] = &models.User{ID: buyerID, Name: "Buyer", Email: "buyer@example.com", PaymentCustomerRef: &ref}

	input := PlaceOrderInput{
		BuyerID:   buyerID,
		AddressID: uuid.New(),
		// 81*2 + 20 = 182.00
		DeclaredAmount: decimal.RequireFromString("182.00"),
		Lines: []OrderLineRequest{
			{ProductID: p1.ID, Qty: 2},
			{ProductID: p2.ID, Qty: 1},
		},
	}

	return repo, newStubStock(), &stubCart{}, &stubNotifier{}, &stubGateway{}, input
}

func newTestService(t *testing.T, repo *stubOrdersRepo, stock *stubStock, cart *stubCart, notifier *stubNotifier, gateway *stubGateway, buyerID uuid.UUID) Service {
	t.Helper()
	svc, err := NewService(repo, stubTx{}, gateway, stock, cart, &stubAddresses{ownerID: buyerID}, notifier, testLogger())
	require.NoError(t, err)
	return svc
}

func TestPlaceOrderSplitsByVendor(t *testing.T) {
	repo, stock, cart, notifier, gateway, input := checkoutFixture(t)
	svc := newTestService(t, repo, stock, cart, notifier, gateway, input.BuyerID)

	result, err := svc.PlaceOrder(context.Background(), input)
	require.NoError(t, err)

	assert.Len(t, result.Orders, 2)
	assert.NotEmpty(t, result.OrderRef)
	assert.Equal(t, "pi_stub", result.IntentID)
	assert.True(t, result.TotalAmount.Equal(decimal.RequireFromString("182.00")))

	// one vendor order per vendor, all sharing the ref and transfer group
	require.Len(t, repo.created, 2)
	sum := decimal.Zero
	for _, order := range repo.created {
		assert.Equal(t, result.OrderRef, order.OrderRef)
		assert.Equal(t, result.OrderRef, order.TransferGroup)
		assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
		sum = sum.Add(order.TotalAmount)
	}
	assert.True(t, sum.Equal(result.TotalAmount), "vendor totals must sum to the checkout amount")

	// a single combined intent, recorded against the ref
	assert.Equal(t, 1, gateway.intents)
	assert.True(t, gateway.intentAmount.Equal(result.TotalAmount))
	assert.Equal(t, "pi_stub", repo.intentByRef[result.OrderRef])

	// reservations hold the full requested quantities
	assert.Equal(t, 2, stock.reserved[input.Lines[0].ProductID])
	assert.Equal(t, 1, stock.reserved[input.Lines[1].ProductID])
}

func TestPlaceOrderRejectsAmountMismatch(t *testing.T) {
	repo, stock, cart, notifier, gateway, input := checkoutFixture(t)
	svc := newTestService(t, repo, stock, cart, notifier, gateway, input.BuyerID)

	input.DeclaredAmount = decimal.RequireFromString("150.00")
	_, err := svc.PlaceOrder(context.Background(), input)
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
	assert.Empty(t, repo.created)
	assert.Equal(t, 0, gateway.intents)
}

func TestPlaceOrderRejectsShortStock(t *testing.T) {
	repo, stock, cart, notifier, gateway, input := checkoutFixture(t)
	repo.products[0].Inventory.AvailableQty = 1
	svc := newTestService(t, repo, stock, cart, notifier, gateway, input.BuyerID)

	_, err := svc.PlaceOrder(context.Background(), input)
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
	assert.Empty(t, repo.created)
}

func TestPlaceOrderProvisionsCustomerProfileLazily(t *testing.T) {
	repo, stock, cart, notifier, gateway, input := checkoutFixture(t)
	repo.users[input.BuyerID].PaymentCustomerRef = nil
	svc := newTestService(t, repo, stock, cart, notifier, gateway, input.BuyerID)

	_, err := svc.PlaceOrder(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "cus_stub", repo.customerRefs[input.BuyerID])
}

func paidFixtureOrders(buyerID uuid.UUID) []models.VendorOrder {
	productA := uuid.New()
	productB := uuid.New()
	return []models.VendorOrder{
		{
			ID: uuid.New(), OrderRef: "GG-TEST", BuyerID: buyerID, VendorID: uuid.New(),
			PaymentStatus: enums.PaymentStatusPending, Status: enums.OrderStatusPending,
			TotalAmount: decimal.RequireFromString("162.00"),
			Items: []models.OrderLineItem{
				{ID: uuid.New(), ProductID: productA, Qty: 2, Name: "alpha"},
			},
		},
		{
			ID: uuid.New(), OrderRef: "GG-TEST", BuyerID: buyerID, VendorID: uuid.New(),
			PaymentStatus: enums.PaymentStatusPending, Status: enums.OrderStatusPending,
			TotalAmount: decimal.RequireFromString("20.00"),
			Items: []models.OrderLineItem{
				{ID: uuid.New(), ProductID: productB, Qty: 1, Name: "beta"},
			},
		},
	}
}

func TestUpdateOrderStatusCompletedSettlesOnce(t *testing.T) {
	buyerID := uuid.New()
	repo := newStubOrdersRepo()
	repo.refOrders = paidFixtureOrders(buyerID)
	repo.markRows = 2
	repo.users[buyerID] = &models.User{ID: buyerID, Name: "Buyer", Email: "buyer@example.com"}
	for _, order := range repo.refOrders {
		repo.users[order.VendorID] = &models.User{ID: order.VendorID, Name: "Vendor", Email: "vendor@example.com"}
	}

	stock := newStubStock()
	cart := &stubCart{}
	notifier := &stubNotifier{}
	svc := newTestService(t, repo, stock, cart, notifier, &stubGateway{}, buyerID)

	completed := enums.PaymentStatusCompleted
	err := svc.UpdateOrderStatus(context.Background(), UpdateOrderStatusInput{
		OrderRef:      "GG-TEST",
		PaymentStatus: &completed,
	})
	require.NoError(t, err)

	// reservations burned and cart cleared for every purchased product
	assert.Equal(t, 2, stock.commits[repo.refOrders[0].Items[0].ProductID])
	assert.Equal(t, 1, stock.commits[repo.refOrders[1].Items[0].ProductID])
	assert.Len(t, cart.cleared, 2)

	// lifecycle stamped and settlement mail queued: receipt + 2 invoices
	assert.Contains(t, repo.lifecycle, enums.OrderStatusPlaced)
	require.Len(t, notifier.enqueued, 3)
	assert.Equal(t, enums.NotificationKindOrderReceipt, notifier.enqueued[0])
	assert.Equal(t, enums.NotificationKindVendorInvoice, notifier.enqueued[1])
}

func TestUpdateOrderStatusCompletedIdempotent(t *testing.T) {
	buyerID := uuid.New()
	repo := newStubOrdersRepo()
	repo.refOrders = paidFixtureOrders(buyerID)
	repo.markRows = 0 // already terminal

	stock := newStubStock()
	notifier := &stubNotifier{}
	svc := newTestService(t, repo, stock, &stubCart{}, notifier, &stubGateway{}, buyerID)

	completed := enums.PaymentStatusCompleted
	err := svc.UpdateOrderStatus(context.Background(), UpdateOrderStatusInput{
		OrderRef:      "GG-TEST",
		PaymentStatus: &completed,
	})
	require.NoError(t, err)

	assert.Empty(t, stock.commits)
	assert.Empty(t, notifier.enqueued)
}

func TestUpdateOrderStatusFailedReleasesStock(t *testing.T) {
	buyerID := uuid.New()
	repo := newStubOrdersRepo()
	repo.refOrders = paidFixtureOrders(buyerID)
	repo.markRows = 2

	stock := newStubStock()
	svc := newTestService(t, repo, stock, &stubCart{}, &stubNotifier{}, &stubGateway{}, buyerID)

	failed := enums.PaymentStatusFailed
	err := svc.UpdateOrderStatus(context.Background(), UpdateOrderStatusInput{
		OrderRef:      "GG-TEST",
		PaymentStatus: &failed,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, stock.released[repo.refOrders[0].Items[0].ProductID])
	assert.Equal(t, 1, stock.released[repo.refOrders[1].Items[0].ProductID])
}

func TestUpdateOrderStatusFailedSkipsCancelledOrders(t *testing.T) {
	buyerID := uuid.New()
	repo := newStubOrdersRepo()
	repo.refOrders = paidFixtureOrders(buyerID)
	repo.markRows = 2
	repo.deliveryRows = 1

	stock := newStubStock()
	svc := newTestService(t, repo, stock, &stubCart{}, &stubNotifier{}, &stubGateway{}, buyerID)

	// vendor cancels their unpaid order, which returns its reservations
	remark := "out of stock"
	err := svc.UpdateDeliveryStatus(context.Background(), UpdateDeliveryStatusInput{
		OrderRef:           "GG-TEST",
		VendorID:           repo.refOrders[0].VendorID,
		Status:             enums.OrderStatusCancelled,
		CancellationRemark: &remark,
	})
	require.NoError(t, err)
	repo.refOrders[0].Status = enums.OrderStatusCancelled

	failed := enums.PaymentStatusFailed
	err = svc.UpdateOrderStatus(context.Background(), UpdateOrderStatusInput{
		OrderRef:      "GG-TEST",
		PaymentStatus: &failed,
	})
	require.NoError(t, err)

	// the cancelled order's units come back exactly once
	assert.Equal(t, 2, stock.released[repo.refOrders[0].Items[0].ProductID])
	assert.Equal(t, 1, stock.released[repo.refOrders[1].Items[0].ProductID])
}

func TestUpdateOrderStatusCompletedSkipsCancelledOrders(t *testing.T) {
	buyerID := uuid.New()
	repo := newStubOrdersRepo()
	repo.refOrders = paidFixtureOrders(buyerID)
	repo.refOrders[0].Status = enums.OrderStatusCancelled
	repo.markRows = 2
	repo.users[buyerID] = &models.User{ID: buyerID, Name: "Buyer", Email: "buyer@example.com"}
	for _, order := range repo.refOrders {
		repo.users[order.VendorID] = &models.User{ID: order.VendorID, Name: "Vendor", Email: "vendor@example.com"}
	}

	stock := newStubStock()
	notifier := &stubNotifier{}
	svc := newTestService(t, repo, stock, &stubCart{}, notifier, &stubGateway{}, buyerID)

	completed := enums.PaymentStatusCompleted
	err := svc.UpdateOrderStatus(context.Background(), UpdateOrderStatusInput{
		OrderRef:      "GG-TEST",
		PaymentStatus: &completed,
	})
	require.NoError(t, err)

	// only the surviving vendor order settles
	assert.NotContains(t, stock.commits, repo.refOrders[0].Items[0].ProductID)
	assert.Equal(t, 1, stock.commits[repo.refOrders[1].Items[0].ProductID])
	require.Len(t, notifier.enqueued, 2)
	assert.Equal(t, enums.NotificationKindOrderReceipt, notifier.enqueued[0])
	assert.Equal(t, enums.NotificationKindVendorInvoice, notifier.enqueued[1])
}

func TestUpdateDeliveryStatusRejectsBackwardTransition(t *testing.T) {
	buyerID := uuid.New()
	repo := newStubOrdersRepo()
	repo.refOrders = paidFixtureOrders(buyerID)
	repo.refOrders[0].Status = enums.OrderStatusDelivered

	svc := newTestService(t, repo, newStubStock(), &stubCart{}, &stubNotifier{}, &stubGateway{}, buyerID)

	err := svc.UpdateDeliveryStatus(context.Background(), UpdateDeliveryStatusInput{
		OrderRef: "GG-TEST",
		VendorID: repo.refOrders[0].VendorID,
		Status:   enums.OrderStatusShipped,
	})
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
	assert.Equal(t, 0, repo.deliveryCalls)
}

func TestUpdateDeliveryStatusCancelReleasesUnpaidStock(t *testing.T) {
	buyerID := uuid.New()
	repo := newStubOrdersRepo()
	repo.refOrders = paidFixtureOrders(buyerID)
	repo.deliveryRows = 1

	stock := newStubStock()
	svc := newTestService(t, repo, stock, &stubCart{}, &stubNotifier{}, &stubGateway{}, buyerID)

	remark := "buyer requested"
	err := svc.UpdateDeliveryStatus(context.Background(), UpdateDeliveryStatusInput{
		OrderRef:           "GG-TEST",
		VendorID:           repo.refOrders[0].VendorID,
		Status:             enums.OrderStatusCancelled,
		CancellationRemark: &remark,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, stock.released[repo.refOrders[0].Items[0].ProductID])
}

func TestConfirmPaymentRunsPaidTransition(t *testing.T) {
	buyerID := uuid.New()
	repo := newStubOrdersRepo()
	repo.refOrders = paidFixtureOrders(buyerID)
	repo.markRows = 2
	repo.users[buyerID] = &models.User{ID: buyerID, Name: "Buyer", Email: "buyer@example.com"}
	for _, order := range repo.refOrders {
		repo.users[order.VendorID] = &models.User{ID: order.VendorID, Name: "Vendor", Email: "vendor@example.com"}
	}

	stock := newStubStock()
	svc := newTestService(t, repo, stock, &stubCart{}, &stubNotifier{}, &stubGateway{}, buyerID)

	status, err := svc.ConfirmPayment(context.Background(), "pi_stub")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", status)
	assert.NotEmpty(t, stock.commits)
}

func TestListBuyerOrdersPaginates(t *testing.T) {
	buyerID := uuid.New()
	repo := newStubOrdersRepo()
	for i := 0; i < 3; i++ {
		repo.listed = append(repo.listed, models.VendorOrder{
			ID: uuid.New(), OrderRef: "GG-TEST", BuyerID: buyerID,
			TotalAmount: decimal.RequireFromString("10.00"),
		})
	}

	svc := newTestService(t, repo, newStubStock(), &stubCart{}, &stubNotifier{}, &stubGateway{}, buyerID)

	result, err := svc.ListBuyerOrders(context.Background(), ListOrdersInput{
		BuyerID: buyerID,
		Page:    pagination.Params{Limit: 2},
	})
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
	assert.NotEmpty(t, result.NextCursor)
}
