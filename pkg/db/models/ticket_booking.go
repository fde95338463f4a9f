package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gathergrid/gathergrid-backend/pkg/enums"
)

// TicketBooking records a buyer's ticket purchase for a virtual event.
// TicketID is the unique proof-of-purchase token embedded in the ticket QR.
type TicketBooking struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID         uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	EventID         uuid.UUID           `gorm:"column:event_id;type:uuid;not null;index"`
	TicketCount     int                 `gorm:"column:ticket_count;not null"`
	TotalPrice      decimal.Decimal     `gorm:"column:total_price;type:numeric(12,2);not null"`
	Currency        enums.Currency      `gorm:"column:currency;type:text;not null;default:'USD'"`
	Status          enums.BookingStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	BookingAt       time.Time           `gorm:"column:booking_at;not null"`
	TicketID        string              `gorm:"column:ticket_id;not null;uniqueIndex"`
	PaymentIntentID *string             `gorm:"column:payment_intent_id;index"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	UsedAt          *time.Time          `gorm:"column:used_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
