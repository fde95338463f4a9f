package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gathergrid/gathergrid-backend/pkg/enums"
)

// OrderLineItem captures the priced snapshot of each item within a vendor
// order. NetPrice is the unit price after the product discount.
type OrderLineItem struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	Name      string            `gorm:"column:name;not null"`
	Qty       int               `gorm:"column:qty;not null"`
	UnitPrice decimal.Decimal   `gorm:"column:unit_price;type:numeric(12,2);not null"`
	NetPrice  decimal.Decimal   `gorm:"column:net_price;type:numeric(12,2);not null"`
	LineTotal decimal.Decimal   `gorm:"column:line_total;type:numeric(12,2);not null"`
	Currency  enums.Currency    `gorm:"column:currency;type:text;not null;default:'USD'"`
	Status    enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
