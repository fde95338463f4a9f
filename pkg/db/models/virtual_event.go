package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gathergrid/gathergrid-backend/pkg/enums"
)

// VirtualEvent is an organizer-owned ticketed event. SlotsRemaining is only
// decremented through atomic conditional updates; TracksSlots false means
// unlimited capacity.
type VirtualEvent struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizerID    uuid.UUID            `gorm:"column:organizer_id;type:uuid;not null;index"`
	Name           string               `gorm:"column:name;not null;uniqueIndex"`
	Description    *string              `gorm:"column:description"`
	StartAt        time.Time            `gorm:"column:start_at;not null"`
	EndAt          time.Time            `gorm:"column:end_at;not null"`
	TicketPrice    decimal.Decimal      `gorm:"column:ticket_price;type:numeric(12,2);not null"`
	Currency       enums.Currency       `gorm:"column:currency;type:text;not null;default:'USD'"`
	TracksSlots    bool                 `gorm:"column:tracks_slots;not null;default:true"`
	SlotsRemaining int                  `gorm:"column:slots_remaining;not null;default:0"`
	ApprovalStatus enums.ApprovalStatus `gorm:"column:approval_status;type:text;not null;default:'pending'"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
