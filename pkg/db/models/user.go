package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the platform account referenced by orders, bookings, and events.
// Payment references are provisioned lazily through the payment gateway.
type User struct {
	ID                  uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                string    `gorm:"column:name;not null"`
	Email               string    `gorm:"column:email;not null;uniqueIndex"`
	PaymentCustomerRef  *string   `gorm:"column:payment_customer_ref"`
	ConnectedAccountRef *string   `gorm:"column:connected_account_ref"`
	PayoutsEnabled      bool      `gorm:"column:payouts_enabled;not null;default:false"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
