package bookings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gathergrid/gathergrid-backend/pkg/enums"
)

// BookTicketsInput is a buyer's request to book seats on a virtual event.
type BookTicketsInput struct {
	BuyerID       uuid.UUID
	EventID       uuid.UUID
	TicketCount   int
	DeclaredTotal decimal.Decimal
	BookingAt     time.Time
}

// BookTicketsResult returns the pending booking and its payment sheet.
type BookTicketsResult struct {
	BookingID    uuid.UUID       `json:"booking_id"`
	TicketID     string          `json:"ticket_id"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	IntentID     string          `json:"payment_intent_id"`
	ClientSecret string          `json:"client_secret"`
}

// UpdateBookingStatusInput drives the booking settlement transition.
type UpdateBookingStatusInput struct {
	BookingID     uuid.UUID
	BookingStatus enums.BookingStatus
	PaymentStatus enums.PaymentStatus
}

// TicketExhaustInput marks one ticket consumed at event check-in.
type TicketExhaustInput struct {
	ActorID  uuid.UUID
	EventID  uuid.UUID
	TicketID string
}

// QRContents is the proof-of-purchase document encoded into the ticket QR.
type QRContents struct {
	TicketID  string    `json:"ticket_id"`
	EventID   uuid.UUID `json:"event_id"`
	EventName string    `json:"event_name"`
	StartAt   time.Time `json:"start_at"`
}
