package orders

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gathergrid/gathergrid-backend/internal/notifications"
	"github.com/gathergrid/gathergrid-backend/internal/pricing"
	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
	"github.com/gathergrid/gathergrid-backend/pkg/enums"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
	"github.com/gathergrid/gathergrid-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the order aggregate operations.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error)
	ConfirmPayment(ctx context.Context, intentID string) (string, error)
	UpdateOrderStatus(ctx context.Context, input UpdateOrderStatusInput) error
	UpdateDeliveryStatus(ctx context.Context, input UpdateDeliveryStatusInput) error
	ListBuyerOrders(ctx context.Context, input ListOrdersInput) (*ListOrdersResult, error)
	GetOrder(ctx context.Context, orderRef string, buyerID uuid.UUID) ([]models.VendorOrder, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	gateway   PaymentGateway
	stock     StockLedger
	cart      CartClearer
	addresses AddressChecker
	notifier  Notifier
	logg      *logger.Logger
}

// NewService builds the order service with its required collaborators.
func NewService(
	repo Repository,
	tx txRunner,
	gateway PaymentGateway,
	stock StockLedger,
	cart CartClearer,
	addresses AddressChecker,
	notifier Notifier,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if cart == nil {
		return nil, fmt.Errorf("cart clearer required")
	}
	if addresses == nil {
		return nil, fmt.Errorf("address checker required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		gateway:   gateway,
		stock:     stock,
		cart:      cart,
		addresses: addresses,
		notifier:  notifier,
		logg:      logg,
	}, nil
}

// PlaceOrder prices the requested lines, reserves stock, persists one vendor
// order per vendor under a shared reference, and opens a single combined
// payment sheet. Everything runs in one transaction: either every vendor
// order lands with its reservations and intent, or nothing does.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one line")
	}
	if input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}

	quantities := make(map[uuid.UUID]int, len(input.Lines))
	productIDs := make([]uuid.UUID, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		if _, seen := quantities[line.ProductID]; !seen {
			productIDs = append(productIDs, line.ProductID)
		}
		quantities[line.ProductID] += line.Qty
	}

	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}

	var result *PlaceOrderResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		products, err := repo.FindProductsForCheckout(ctx, productIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}

		quote, err := pricing.BuildQuote(products, quantities)
		if err != nil {
			return err
		}
		if err := pricing.ValidateStock(products, quantities); err != nil {
			return err
		}
		if err := pricing.VerifyDeclaredTotal(quote.Total, input.DeclaredAmount); err != nil {
			return err
		}

		if _, err := s.addresses.FindOwned(ctx, input.AddressID, input.BuyerID); err != nil {
			return err
		}

		buyer, err := repo.FindUser(ctx, input.BuyerID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
		}

		customerRef, err := s.ensureCustomerRef(ctx, repo, buyer)
		if err != nil {
			return err
		}

		for _, line := range quote.Lines {
			if err := s.stock.Reserve(ctx, tx, line.ProductID, line.Qty); err != nil {
				return err
			}
		}

		orderRef := newOrderRef()
		vendorOrders := make([]models.VendorOrder, 0, len(quote.ByVendor))
		summaries := make([]VendorOrderSummary, 0, len(quote.ByVendor))
		for vendorID, lines := range quote.ByVendor {
			order := models.VendorOrder{
				ID:                uuid.New(),
				OrderRef:          orderRef,
				TransferGroup:     orderRef,
				BuyerID:           input.BuyerID,
				VendorID:          vendorID,
				DeliveryAddressID: input.AddressID,
				Currency:          currency,
				TotalAmount:       pricing.VendorTotal(lines),
				PaymentStatus:     enums.PaymentStatusPending,
				Status:            enums.OrderStatusPending,
			}
			for _, line := range lines {
				order.Items = append(order.Items, models.OrderLineItem{
					ID:        uuid.New(),
					OrderID:   order.ID,
					ProductID: line.ProductID,
					Name:      line.Name,
					Qty:       line.Qty,
					UnitPrice: line.UnitPrice,
					NetPrice:  line.NetPrice,
					LineTotal: line.LineTotal,
					Currency:  line.Currency,
					Status:    enums.OrderStatusPending,
				})
			}
			vendorOrders = append(vendorOrders, order)
			summaries = append(summaries, VendorOrderSummary{
				OrderID:     order.ID,
				VendorID:    vendorID,
				TotalAmount: order.TotalAmount,
				ItemCount:   len(order.Items),
			})
		}

		if err := repo.CreateVendorOrders(ctx, vendorOrders); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist vendor orders")
		}

		handle, err := s.gateway.CreatePaymentIntent(ctx, customerRef, quote.Total, currency.String(), orderRef)
		if err != nil {
			return err
		}
		if err := repo.SetPaymentIntentByRef(ctx, orderRef, handle.IntentID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment intent")
		}

		result = &PlaceOrderResult{
			OrderRef:     orderRef,
			IntentID:     handle.IntentID,
			ClientSecret: handle.ClientSecret,
			TotalAmount:  quote.Total,
			Orders:       summaries,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderRef(ctx, result.OrderRef)
	s.logg.Info(ctx, "order placed")
	return result, nil
}

// ConfirmPayment confirms the intent upstream and, on success, runs the paid
// transition for every vendor order sharing it.
func (s *service) ConfirmPayment(ctx context.Context, intentID string) (string, error) {
	if strings.TrimSpace(intentID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}

	status, err := s.gateway.ConfirmPaymentIntent(ctx, intentID)
	if err != nil {
		return "", err
	}
	if status != "succeeded" {
		return status, nil
	}

	ordersByIntent, err := s.repo.FindByIntentID(ctx, intentID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders for intent")
	}
	if len(ordersByIntent) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "no orders for payment intent")
	}

	completed := enums.PaymentStatusCompleted
	err = s.UpdateOrderStatus(ctx, UpdateOrderStatusInput{
		OrderRef:      ordersByIntent[0].OrderRef,
		PaymentStatus: &completed,
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

// UpdateOrderStatus is the shared transition entry for payment callbacks and
// internal updates. Payment completion is idempotent: the flip is guarded on
// the pending value and the side effects run only on the first delivery.
func (s *service) UpdateOrderStatus(ctx context.Context, input UpdateOrderStatusInput) error {
	if strings.TrimSpace(input.OrderRef) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order ref required")
	}
	if input.Status == nil && input.PaymentStatus == nil && input.PaymentIntentID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}

	ctx = s.logg.WithOrderRef(ctx, input.OrderRef)

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		refOrders, err := repo.FindByOrderRef(ctx, input.OrderRef)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
		}
		if len(refOrders) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		if input.PaymentIntentID != nil {
			if err := repo.SetPaymentIntentByRef(ctx, input.OrderRef, *input.PaymentIntentID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment intent")
			}
		}

		if input.PaymentStatus != nil {
			if err := s.applyPaymentStatus(ctx, tx, repo, refOrders, *input.PaymentStatus); err != nil {
				return err
			}
		}

		if input.Status != nil {
			if err := s.applyLifecycle(ctx, repo, refOrders, *input.Status); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) applyPaymentStatus(ctx context.Context, tx *gorm.DB, repo Repository, refOrders []models.VendorOrder, target enums.PaymentStatus) error {
	if !target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	if target == enums.PaymentStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment status cannot return to pending")
	}

	orderRef := refOrders[0].OrderRef
	rows, err := repo.MarkPaymentStatusByRef(ctx, orderRef, enums.PaymentStatusPending, target)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
	}
	if rows == 0 {
		// already terminal, duplicate delivery
		return nil
	}

	switch target {
	case enums.PaymentStatusCompleted:
		return s.settleCompleted(ctx, tx, repo, refOrders)
	case enums.PaymentStatusFailed:
		for _, order := range refOrders {
			// vendor cancellation already returned these reservations
			if order.Status == enums.OrderStatusCancelled {
				continue
			}
			for _, item := range order.Items {
				if err := s.stock.Release(ctx, tx, item.ProductID, item.Qty); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return nil
	}
}

// settleCompleted runs the first-delivery side effects of a paid checkout:
// burn reservations, clear purchased cart lines, stamp the placed lifecycle,
// and enqueue the buyer receipt plus one invoice per vendor.
func (s *service) settleCompleted(ctx context.Context, tx *gorm.DB, repo Repository, refOrders []models.VendorOrder) error {
	buyerID := refOrders[0].BuyerID
	orderRef := refOrders[0].OrderRef

	// vendor orders cancelled before settlement already returned their
	// reservations and stay cancelled
	live := make([]models.VendorOrder, 0, len(refOrders))
	for _, order := range refOrders {
		if order.Status != enums.OrderStatusCancelled {
			live = append(live, order)
		}
	}
	if len(live) == 0 {
		return nil
	}

	var productIDs []uuid.UUID
	for _, order := range live {
		for _, item := range order.Items {
			if err := s.stock.Commit(ctx, tx, item.ProductID, item.Qty); err != nil {
				return err
			}
			productIDs = append(productIDs, item.ProductID)
		}
	}

	if err := s.cart.ClearProducts(ctx, buyerID, productIDs); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart lines")
	}

	if err := repo.UpdateLifecycleByRef(ctx, orderRef, enums.OrderStatusPlaced); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp placed status")
	}
	for _, order := range live {
		if err := repo.UpdateLineItemStatus(ctx, order.ID, enums.OrderStatusPlaced); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp line item status")
		}
	}

	s.enqueueSettlementMail(ctx, tx, repo, live)
	return nil
}

// enqueueSettlementMail is soft-fail: a queue hiccup is logged and the paid
// transition commits regardless.
func (s *service) enqueueSettlementMail(ctx context.Context, tx *gorm.DB, repo Repository, refOrders []models.VendorOrder) {
	buyer, err := repo.FindUser(ctx, refOrders[0].BuyerID)
	if err != nil {
		s.logg.Error(ctx, "load buyer for receipt", err)
		return
	}

	receipt := notifications.BuildOrderReceipt(buyer.Name, refOrders)
	if err := s.notifier.Enqueue(ctx, tx, enums.NotificationKindOrderReceipt, buyer.Email, receipt); err != nil {
		s.logg.Error(ctx, "enqueue order receipt", err)
	}

	for _, order := range refOrders {
		vendor, err := repo.FindUser(ctx, order.VendorID)
		if err != nil {
			s.logg.Error(ctx, "load vendor for invoice", err)
			continue
		}
		invoice := notifications.BuildVendorInvoice(vendor.Name, buyer.Name, order)
		if err := s.notifier.Enqueue(ctx, tx, enums.NotificationKindVendorInvoice, vendor.Email, invoice); err != nil {
			s.logg.Error(ctx, "enqueue vendor invoice", err)
		}
	}
}

func (s *service) applyLifecycle(ctx context.Context, repo Repository, refOrders []models.VendorOrder, target enums.OrderStatus) error {
	if !target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	for _, order := range refOrders {
		if order.Status == target {
			continue
		}
		if !order.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").
				WithDetails(map[string]any{"from": order.Status, "to": target})
		}
	}
	if err := repo.UpdateLifecycleByRef(ctx, refOrders[0].OrderRef, target); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	for _, order := range refOrders {
		if err := repo.UpdateLineItemStatus(ctx, order.ID, target); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update line item status")
		}
	}
	return nil
}

// UpdateDeliveryStatus moves one vendor's order along the fulfillment state
// machine. The write is guarded on the current status so concurrent writers
// cannot double-apply a transition.
func (s *service) UpdateDeliveryStatus(ctx context.Context, input UpdateDeliveryStatusInput) error {
	if strings.TrimSpace(input.OrderRef) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order ref required")
	}
	if input.VendorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor identity missing")
	}
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery status")
	}

	ctx = s.logg.WithOrderRef(ctx, input.OrderRef)
	ctx = s.logg.WithVendorID(ctx, input.VendorID.String())

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByRefAndVendor(ctx, input.OrderRef, input.VendorID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor order")
		}

		if order.Status == input.Status {
			return nil
		}
		if !order.Status.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery status transition not allowed").
				WithDetails(map[string]any{"from": order.Status, "to": input.Status})
		}

		updates := map[string]any{}
		if input.TrackingID != nil {
			updates["tracking_id"] = *input.TrackingID
		}
		if input.CarrierPartner != nil {
			updates["carrier_partner"] = *input.CarrierPartner
		}
		if input.CancellationRemark != nil {
			updates["cancellation_remark"] = *input.CancellationRemark
		}

		rows, err := repo.UpdateDelivery(ctx, order.ID, order.Status, input.Status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}
		if err := repo.UpdateLineItemStatus(ctx, order.ID, input.Status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update line item status")
		}

		if input.Status == enums.OrderStatusCancelled && order.PaymentStatus == enums.PaymentStatusPending {
			for _, item := range order.Items {
				if err := s.stock.Release(ctx, tx, item.ProductID, item.Qty); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *service) ListBuyerOrders(ctx context.Context, input ListOrdersInput) (*ListOrdersResult, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	cursor, err := pagination.ParseCursor(input.Page.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(input.Page.Limit)

	rows, err := s.repo.ListByBuyer(ctx, input.BuyerID, pagination.LimitWithBuffer(input.Page.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	result := &ListOrdersResult{}
	for i, order := range rows {
		if i == limit {
			last := rows[limit-1]
			result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
				CreatedAt: last.CreatedAt,
				ID:        last.ID,
			})
			break
		}
		result.Items = append(result.Items, OrderListItem{
			OrderID:       order.ID,
			OrderRef:      order.OrderRef,
			VendorID:      order.VendorID,
			TotalAmount:   order.TotalAmount,
			Currency:      order.Currency,
			Status:        order.Status,
			PaymentStatus: order.PaymentStatus,
			CreatedAt:     order.CreatedAt,
		})
	}
	return result, nil
}

func (s *service) GetOrder(ctx context.Context, orderRef string, buyerID uuid.UUID) ([]models.VendorOrder, error) {
	if strings.TrimSpace(orderRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ref required")
	}

	refOrders, err := s.repo.FindByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
	}
	if len(refOrders) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if refOrders[0].BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return refOrders, nil
}

func (s *service) ensureCustomerRef(ctx context.Context, repo Repository, buyer *models.User) (string, error) {
	if buyer.PaymentCustomerRef != nil && *buyer.PaymentCustomerRef != "" {
		return *buyer.PaymentCustomerRef, nil
	}

	customerRef, err := s.gateway.CreateCustomerProfile(ctx, buyer.Name, buyer.Email)
	if err != nil {
		return "", err
	}
	if err := repo.SaveUserCustomerRef(ctx, buyer.ID, customerRef); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save customer ref")
	}
	return customerRef, nil
}

func newOrderRef() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "GG-" + strings.ToUpper(uuid.New().String()[:12])
	}
	return "GG-" + strings.ToUpper(hex.EncodeToString(buf))
}
