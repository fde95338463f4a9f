package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gathergrid/gathergrid-backend/pkg/enums"
)

// Product represents the canonical vendor listing. Orders snapshot pricing at
// checkout; products are never deleted by settlement.
type Product struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID        uuid.UUID            `gorm:"column:vendor_id;type:uuid;not null;index"`
	Title           string               `gorm:"column:title;not null"`
	Description     *string              `gorm:"column:description"`
	UnitPrice       decimal.Decimal      `gorm:"column:unit_price;type:numeric(12,2);not null"`
	DiscountPercent int                  `gorm:"column:discount_percent;not null;default:0"`
	Currency        enums.Currency       `gorm:"column:currency;type:text;not null;default:'USD'"`
	ApprovalStatus  enums.ApprovalStatus `gorm:"column:approval_status;type:text;not null;default:'pending'"`
	IsActive        bool                 `gorm:"column:is_active;not null;default:true"`
	Inventory       *InventoryItem       `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
