package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/gathergrid/gathergrid-backend/internal/bookings"
	"github.com/gathergrid/gathergrid-backend/internal/orders"
	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
	"github.com/gathergrid/gathergrid-backend/pkg/enums"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
)

// Event types the consumer reacts to. Everything else is acknowledged and
// dropped so the provider stops redelivering.
const (
	eventIntentSucceeded = "payment_intent.succeeded"
	eventIntentFailed    = "payment_intent.payment_failed"
)

// OrderTransitioner is the slice of the orders service the webhook drives.
type OrderTransitioner interface {
	UpdateOrderStatus(ctx context.Context, input orders.UpdateOrderStatusInput) error
}

// BookingTransitioner is the slice of the bookings service the webhook drives.
type BookingTransitioner interface {
	UpdateBookingStatus(ctx context.Context, input bookings.UpdateBookingStatusInput) error
}

// OrderLookup resolves vendor orders from a payment intent reference.
type OrderLookup interface {
	FindByIntentID(ctx context.Context, intentID string) ([]models.VendorOrder, error)
}

// BookingLookup resolves a ticket booking from a payment intent reference.
type BookingLookup interface {
	FindBookingByIntent(ctx context.Context, intentID string) (*models.TicketBooking, error)
}

// Service routes verified provider events onto the marketplace and booking
// settlement transitions. One payment intent belongs to exactly one of the
// two domains; the consumer resolves which by lookup.
type Service struct {
	orders      OrderTransitioner
	bookings    BookingTransitioner
	orderRepo   OrderLookup
	bookingRepo BookingLookup
	logg        *logger.Logger
}

// NewService wires the webhook consumer.
func NewService(
	ordersSvc OrderTransitioner,
	bookingsSvc BookingTransitioner,
	orderRepo OrderLookup,
	bookingRepo BookingLookup,
	logg *logger.Logger,
) (*Service, error) {
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if bookingsSvc == nil {
		return nil, fmt.Errorf("bookings service required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders lookup required")
	}
	if bookingRepo == nil {
		return nil, fmt.Errorf("bookings lookup required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		orders:      ordersSvc,
		bookings:    bookingsSvc,
		orderRepo:   orderRepo,
		bookingRepo: bookingRepo,
		logg:        logg,
	}, nil
}

// Process applies one verified event. Unknown event types return nil so the
// provider treats them as delivered.
func (s *Service) Process(ctx context.Context, event *stripeapi.Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event required")
	}

	switch string(event.Type) {
	case eventIntentSucceeded:
		return s.applyIntentOutcome(ctx, event, enums.PaymentStatusCompleted)
	case eventIntentFailed:
		return s.applyIntentOutcome(ctx, event, enums.PaymentStatusFailed)
	default:
		ctx = s.logg.WithFields(ctx, map[string]any{"event_type": string(event.Type)})
		s.logg.Info(ctx, "webhook event ignored")
		return nil
	}
}

func (s *Service) applyIntentOutcome(ctx context.Context, event *stripeapi.Event, outcome enums.PaymentStatus) error {
	var intent stripeapi.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent payload")
	}
	if intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing from event")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":          event.ID,
		"payment_intent_id": intent.ID,
		"payment_status":    string(outcome),
	})

	refOrders, err := s.orderRepo.FindByIntentID(ctx, intent.ID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve orders for intent")
	}
	if len(refOrders) > 0 {
		status := outcome
		intentID := intent.ID
		s.logg.Info(ctx, "applying intent outcome to marketplace order")
		return s.orders.UpdateOrderStatus(ctx, orders.UpdateOrderStatusInput{
			OrderRef:        refOrders[0].OrderRef,
			PaymentStatus:   &status,
			PaymentIntentID: &intentID,
		})
	}

	booking, err := s.bookingRepo.FindBookingByIntent(ctx, intent.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// Intent created outside this platform, or the booking row never
			// landed. Acknowledge so the provider stops retrying.
			s.logg.Warn(ctx, "no order or booking matches payment intent")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve booking for intent")
	}

	input := bookings.UpdateBookingStatusInput{
		BookingID:     booking.ID,
		PaymentStatus: outcome,
	}
	if outcome == enums.PaymentStatusCompleted {
		input.BookingStatus = enums.BookingStatusBooked
	} else {
		input.BookingStatus = booking.Status
	}

	s.logg.Info(ctx, "applying intent outcome to ticket booking")
	return s.bookings.UpdateBookingStatus(ctx, input)
}
