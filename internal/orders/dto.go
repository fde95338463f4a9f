package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gathergrid/gathergrid-backend/pkg/enums"
	"github.com/gathergrid/gathergrid-backend/pkg/pagination"
)

// OrderLineRequest is one requested (product, quantity) pair at checkout.
type OrderLineRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// PlaceOrderInput carries a buyer's checkout request.
type PlaceOrderInput struct {
	BuyerID        uuid.UUID
	Lines          []OrderLineRequest
	AddressID      uuid.UUID
	DeclaredAmount decimal.Decimal
	Currency       enums.Currency
}

// VendorOrderSummary is the per-vendor slice of a placed checkout.
type VendorOrderSummary struct {
	OrderID     uuid.UUID       `json:"order_id"`
	VendorID    uuid.UUID       `json:"vendor_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// PlaceOrderResult returns the shared reference, the payment sheet handle,
// and the vendor splits.
type PlaceOrderResult struct {
	OrderRef     string               `json:"order_ref"`
	IntentID     string               `json:"payment_intent_id"`
	ClientSecret string               `json:"client_secret"`
	TotalAmount  decimal.Decimal      `json:"total_amount"`
	Orders       []VendorOrderSummary `json:"orders"`
}

// UpdateOrderStatusInput drives the payment/lifecycle transition entry point
// shared by the authenticated endpoint and the webhook consumer.
type UpdateOrderStatusInput struct {
	OrderRef        string
	Status          *enums.OrderStatus
	PaymentStatus   *enums.PaymentStatus
	PaymentIntentID *string
}

// UpdateDeliveryStatusInput is the vendor-scoped fulfillment transition.
type UpdateDeliveryStatusInput struct {
	OrderRef           string
	VendorID           uuid.UUID
	Status             enums.OrderStatus
	TrackingID         *string
	CarrierPartner     *string
	CancellationRemark *string
}

// ListOrdersInput pages a buyer's orders newest first.
type ListOrdersInput struct {
	BuyerID uuid.UUID
	Page    pagination.Params
}

// OrderListItem is the list-view projection of a vendor order.
type OrderListItem struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderRef      string              `json:"order_ref"`
	VendorID      uuid.UUID           `json:"vendor_id"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	Currency      enums.Currency      `json:"currency"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time           `json:"created_at"`
}

// ListOrdersResult carries one page plus the cursor for the next.
type ListOrdersResult struct {
	Items      []OrderListItem `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}
