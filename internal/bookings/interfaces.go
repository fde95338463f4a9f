package bookings

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
	"github.com/gathergrid/gathergrid-backend/pkg/enums"
	"github.com/gathergrid/gathergrid-backend/pkg/stripe"
)

// Repository is the persistence surface for events and ticket bookings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindEvent(ctx context.Context, eventID uuid.UUID) (*models.VirtualEvent, error)
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	SaveUserCustomerRef(ctx context.Context, userID uuid.UUID, customerRef string) error

	CreateBooking(ctx context.Context, booking *models.TicketBooking) error
	SetBookingIntent(ctx context.Context, bookingID uuid.UUID, intentID string) error

	FindBooking(ctx context.Context, bookingID uuid.UUID) (*models.TicketBooking, error)
	FindBookingByTicket(ctx context.Context, eventID uuid.UUID, ticketID string) (*models.TicketBooking, error)
	FindBookingByIntent(ctx context.Context, intentID string) (*models.TicketBooking, error)

	MarkBooked(ctx context.Context, bookingID uuid.UUID) (int64, error)
	MarkPaymentFailed(ctx context.Context, bookingID uuid.UUID) (int64, error)
	MarkCancelled(ctx context.Context, bookingID uuid.UUID) (int64, error)
	MarkUsed(ctx context.Context, bookingID uuid.UUID) (int64, error)
}

// PaymentGateway is the slice of the payment adapter that bookings need.
type PaymentGateway interface {
	CreateCustomerProfile(ctx context.Context, name, email string) (string, error)
	CreateSplitPaymentSheet(ctx context.Context, customerRef string, amount decimal.Decimal, currency, destinationRef string, applicationFee decimal.Decimal) (*stripe.PaymentHandle, error)
	CancelPaymentIntent(ctx context.Context, intentID string) error
}

// SlotLedger is the slice of the inventory ledger that bookings drive.
type SlotLedger interface {
	ReserveSlots(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, count int) error
	ReleaseSlots(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, count int) error
}

// Notifier enqueues the ticket delivery job transactionally.
type Notifier interface {
	Enqueue(ctx context.Context, tx *gorm.DB, kind enums.NotificationKind, recipient string, payload any) error
}
