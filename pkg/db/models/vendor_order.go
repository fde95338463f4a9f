package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gathergrid/gathergrid-backend/pkg/enums"
)

// VendorOrder is the per-vendor record produced from one checkout. All vendor
// orders of a checkout share OrderRef and TransferGroup; the sum of their
// totals equals the buyer-declared checkout amount.
type VendorOrder struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderRef           string              `gorm:"column:order_ref;not null;index"`
	TransferGroup      string              `gorm:"column:transfer_group;not null;index"`
	BuyerID            uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	VendorID           uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null;index"`
	DeliveryAddressID  uuid.UUID           `gorm:"column:delivery_address_id;type:uuid;not null"`
	Currency           enums.Currency      `gorm:"column:currency;type:text;not null;default:'USD'"`
	TotalAmount        decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Status             enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentIntentID    *string             `gorm:"column:payment_intent_id;index"`
	TrackingID         *string             `gorm:"column:tracking_id"`
	CarrierPartner     *string             `gorm:"column:carrier_partner"`
	CancellationRemark *string             `gorm:"column:cancellation_remark"`
	PlacedAt           *time.Time          `gorm:"column:placed_at"`
	ShippedAt          *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt        *time.Time          `gorm:"column:delivered_at"`
	CancelledAt        *time.Time          `gorm:"column:cancelled_at"`
	Items              []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
