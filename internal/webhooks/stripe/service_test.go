package stripewebhook

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	stripeapi "github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/gathergrid/gathergrid-backend/internal/bookings"
	"github.com/gathergrid/gathergrid-backend/internal/orders"
	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
	"github.com/gathergrid/gathergrid-backend/pkg/enums"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
)

type stubOrderTransitioner struct {
	inputs []orders.UpdateOrderStatusInput
}

func (s *stubOrderTransitioner) UpdateOrderStatus(ctx context.Context, input orders.UpdateOrderStatusInput) error {
	s.inputs = append(s.inputs, input)
	return nil
}

type stubBookingTransitioner struct {
	inputs []bookings.UpdateBookingStatusInput
}

func (s *stubBookingTransitioner) UpdateBookingStatus(ctx context.Context, input bookings.UpdateBookingStatusInput) error {
	s.inputs = append(s.inputs, input)
	return nil
}

type stubOrderLookup struct {
	byIntent map[string][]models.VendorOrder
}

func (s *stubOrderLookup) FindByIntentID(ctx context.Context, intentID string) ([]models.VendorOrder, error) {
	return s.byIntent[intentID], nil
}

type stubBookingLookup struct {
	byIntent map[string]*models.TicketBooking
}

func (s *stubBookingLookup) FindBookingByIntent(ctx context.Context, intentID string) (*models.TicketBooking, error) {
	if booking, ok := s.byIntent[intentID]; ok {
		return booking, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func intentEvent(t *testing.T, eventType, intentID string) *stripeapi.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"id": intentID})
	require.NoError(t, err)
	return &stripeapi.Event{
		ID:   "evt_" + intentID,
		Type: stripeapi.EventType(eventType),
		Data: &stripeapi.EventData{Raw: raw},
	}
}

func newTestService(t *testing.T, ordersSvc *stubOrderTransitioner, bookingsSvc *stubBookingTransitioner, orderRepo *stubOrderLookup, bookingRepo *stubBookingLookup) *Service {
	t.Helper()
	svc, err := NewService(ordersSvc, bookingsSvc, orderRepo, bookingRepo, testLogger())
	require.NoError(t, err)
	return svc
}

func TestProcessSucceededIntentDrivesOrderSettlement(t *testing.T) {
	ordersSvc := &stubOrderTransitioner{}
	bookingsSvc := &stubBookingTransitioner{}
	orderRepo := &stubOrderLookup{byIntent: map[string][]models.VendorOrder{
		"pi_order": {{OrderRef: "GG-AB12CD34EF56"}},
	}}
	bookingRepo := &stubBookingLookup{byIntent: map[string]*models.TicketBooking{}}
	svc := newTestService(t, ordersSvc, bookingsSvc, orderRepo, bookingRepo)

	err := svc.Process(context.Background(), intentEvent(t, "payment_intent.succeeded", "pi_order"))
	require.NoError(t, err)

	require.Len(t, ordersSvc.inputs, 1)
	input := ordersSvc.inputs[0]
	require.Equal(t, "GG-AB12CD34EF56", input.OrderRef)
	require.NotNil(t, input.PaymentStatus)
	require.Equal(t, enums.PaymentStatusCompleted, *input.PaymentStatus)
	require.NotNil(t, input.PaymentIntentID)
	require.Equal(t, "pi_order", *input.PaymentIntentID)
	require.Empty(t, bookingsSvc.inputs)
}

func TestProcessFailedIntentDrivesBookingRelease(t *testing.T) {
	bookingID := uuid.New()
	intentID := "pi_booking"
	ordersSvc := &stubOrderTransitioner{}
	bookingsSvc := &stubBookingTransitioner{}
	orderRepo := &stubOrderLookup{byIntent: map[string][]models.VendorOrder{}}
	bookingRepo := &stubBookingLookup{byIntent: map[string]*models.TicketBooking{
		intentID: {
			ID:              bookingID,
			Status:          enums.BookingStatusPending,
			PaymentIntentID: &intentID,
		},
	}}
	svc := newTestService(t, ordersSvc, bookingsSvc, orderRepo, bookingRepo)

	err := svc.Process(context.Background(), intentEvent(t, "payment_intent.payment_failed", intentID))
	require.NoError(t, err)

	require.Empty(t, ordersSvc.inputs)
	require.Len(t, bookingsSvc.inputs, 1)
	require.Equal(t, bookingID, bookingsSvc.inputs[0].BookingID)
	require.Equal(t, enums.PaymentStatusFailed, bookingsSvc.inputs[0].PaymentStatus)
}

func TestProcessSucceededIntentCompletesBooking(t *testing.T) {
	bookingID := uuid.New()
	intentID := "pi_booking_ok"
	ordersSvc := &stubOrderTransitioner{}
	bookingsSvc := &stubBookingTransitioner{}
	orderRepo := &stubOrderLookup{byIntent: map[string][]models.VendorOrder{}}
	bookingRepo := &stubBookingLookup{byIntent: map[string]*models.TicketBooking{
		intentID: {
			ID:              bookingID,
			Status:          enums.BookingStatusPending,
			PaymentIntentID: &intentID,
		},
	}}
	svc := newTestService(t, ordersSvc, bookingsSvc, orderRepo, bookingRepo)

	err := svc.Process(context.Background(), intentEvent(t, "payment_intent.succeeded", intentID))
	require.NoError(t, err)

	require.Len(t, bookingsSvc.inputs, 1)
	require.Equal(t, enums.BookingStatusBooked, bookingsSvc.inputs[0].BookingStatus)
	require.Equal(t, enums.PaymentStatusCompleted, bookingsSvc.inputs[0].PaymentStatus)
}

func TestProcessIgnoresUnknownEventTypes(t *testing.T) {
	ordersSvc := &stubOrderTransitioner{}
	bookingsSvc := &stubBookingTransitioner{}
	svc := newTestService(t, ordersSvc, bookingsSvc,
		&stubOrderLookup{byIntent: map[string][]models.VendorOrder{}},
		&stubBookingLookup{byIntent: map[string]*models.TicketBooking{}})

	err := svc.Process(context.Background(), intentEvent(t, "charge.refunded", "pi_whatever"))
	require.NoError(t, err)
	require.Empty(t, ordersSvc.inputs)
	require.Empty(t, bookingsSvc.inputs)
}

func TestProcessUnmatchedIntentIsAcknowledged(t *testing.T) {
	ordersSvc := &stubOrderTransitioner{}
	bookingsSvc := &stubBookingTransitioner{}
	svc := newTestService(t, ordersSvc, bookingsSvc,
		&stubOrderLookup{byIntent: map[string][]models.VendorOrder{}},
		&stubBookingLookup{byIntent: map[string]*models.TicketBooking{}})

	err := svc.Process(context.Background(), intentEvent(t, "payment_intent.succeeded", "pi_foreign"))
	require.NoError(t, err)
	require.Empty(t, ordersSvc.inputs)
	require.Empty(t, bookingsSvc.inputs)
}

type stubGuardStore struct {
	keys map[string]string
	ttl  time.Duration
}

func (s *stubGuardStore) Get(ctx context.Context, key string) (string, error) {
	return s.keys[key], nil
}

func (s *stubGuardStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := s.keys[key]; exists {
		return false, nil
	}
	s.keys[key] = "claimed"
	s.ttl = ttl
	return true, nil
}

func (s *stubGuardStore) IdempotencyKey(scope, id string) string {
	return scope + "|" + id
}

func (s *stubGuardStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func TestIdempotencyGuardClaimsOnce(t *testing.T) {
	store := &stubGuardStore{keys: map[string]string{}}
	guard, err := NewIdempotencyGuard(store, time.Hour)
	require.NoError(t, err)

	first, err := guard.Claim(context.Background(), "evt_1")
	require.NoError(t, err)
	require.True(t, first)
	require.Equal(t, time.Hour, store.ttl)

	second, err := guard.Claim(context.Background(), "evt_1")
	require.NoError(t, err)
	require.False(t, second)

	require.NoError(t, guard.Release(context.Background(), "evt_1"))
	again, err := guard.Claim(context.Background(), "evt_1")
	require.NoError(t, err)
	require.True(t, again)
}
