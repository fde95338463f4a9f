package bookings

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gathergrid/gathergrid-backend/internal/notifications"
	"github.com/gathergrid/gathergrid-backend/internal/pricing"
	"github.com/gathergrid/gathergrid-backend/pkg/config"
	"github.com/gathergrid/gathergrid-backend/pkg/db"
	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
	"github.com/gathergrid/gathergrid-backend/pkg/enums"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
	"github.com/gathergrid/gathergrid-backend/pkg/stripe"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the ticket booking operations.
type Service interface {
	BookTickets(ctx context.Context, input BookTicketsInput) (*BookTicketsResult, error)
	UpdateBookingStatus(ctx context.Context, input UpdateBookingStatusInput) error
	CancelBooking(ctx context.Context, bookingID, buyerID uuid.UUID) error
	TicketExhaust(ctx context.Context, input TicketExhaustInput) error
}

type service struct {
	repo       Repository
	tx         txRunner
	gateway    PaymentGateway
	slots      SlotLedger
	notifier   Notifier
	bookingCfg config.BookingConfig
	feePercent int
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds the booking service with its required collaborators.
func NewService(
	repo Repository,
	tx txRunner,
	gateway PaymentGateway,
	slots SlotLedger,
	notifier Notifier,
	bookingCfg config.BookingConfig,
	stripeCfg config.StripeConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if slots == nil {
		return nil, fmt.Errorf("slot ledger required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		tx:         tx,
		gateway:    gateway,
		slots:      slots,
		notifier:   notifier,
		bookingCfg: bookingCfg,
		feePercent: stripeCfg.PlatformFeePercent,
		logg:       logg,
		now:        time.Now,
	}, nil
}

// BookTickets reserves slots, persists a pending booking, and opens a split
// payment sheet routed to the organizer's connected account. The slot
// decrement and the booking row land in one transaction.
func (s *service) BookTickets(ctx context.Context, input BookTicketsInput) (*BookTicketsResult, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.EventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if input.TicketCount < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket count must be at least 1")
	}

	ctx = s.logg.WithUserID(ctx, input.BuyerID.String())

	var result *BookTicketsResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		event, err := repo.FindEvent(ctx, input.EventID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event")
		}
		if event.ApprovalStatus != enums.ApprovalStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "event is not open for booking")
		}

		if err := s.checkBookingWindow(event, input.BookingAt); err != nil {
			return err
		}

		total := event.TicketPrice.Mul(decimal.NewFromInt(int64(input.TicketCount))).Round(2)
		if err := pricing.VerifyDeclaredTotal(total, input.DeclaredTotal); err != nil {
			return err
		}

		organizer, err := repo.FindUser(ctx, event.OrganizerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load organizer")
		}
		if organizer.ConnectedAccountRef == nil || *organizer.ConnectedAccountRef == "" || !organizer.PayoutsEnabled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "organizer has no payout account configured")
		}

		buyer, err := repo.FindUser(ctx, input.BuyerID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
		}
		customerRef, err := s.ensureCustomerRef(ctx, repo, buyer)
		if err != nil {
			return err
		}

		if err := s.slots.ReserveSlots(ctx, tx, event.ID, input.TicketCount); err != nil {
			return err
		}

		booking := &models.TicketBooking{
			ID:            uuid.New(),
			BuyerID:       input.BuyerID,
			EventID:       event.ID,
			TicketCount:   input.TicketCount,
			TotalPrice:    total,
			Currency:      event.Currency,
			Status:        enums.BookingStatusPending,
			PaymentStatus: enums.PaymentStatusPending,
			BookingAt:     input.BookingAt,
			TicketID:      newTicketID(),
		}
		if err := repo.CreateBooking(ctx, booking); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "ticket id collision, retry booking")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist booking")
		}

		fee := total.Mul(decimal.NewFromInt(int64(s.feePercent))).Div(decimal.NewFromInt(100)).Round(2)
		handle, err := s.gateway.CreateSplitPaymentSheet(
			ctx, customerRef, total, event.Currency.String(), *organizer.ConnectedAccountRef, fee)
		if err != nil {
			return err
		}
		if err := repo.SetBookingIntent(ctx, booking.ID, handle.IntentID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment intent")
		}

		result = &BookTicketsResult{
			BookingID:    booking.ID,
			TicketID:     booking.TicketID,
			TotalPrice:   total,
			IntentID:     handle.IntentID,
			ClientSecret: handle.ClientSecret,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithBookingID(ctx, result.BookingID.String())
	s.logg.Info(ctx, "tickets booked")
	return result, nil
}

// UpdateBookingStatus settles a pending booking. booked+completed flips the
// row once (duplicate deliveries are caught by the conditional update) and
// enqueues the ticket email; a failed payment releases the reserved slots.
func (s *service) UpdateBookingStatus(ctx context.Context, input UpdateBookingStatusInput) error {
	if input.BookingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	if !input.BookingStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid booking status")
	}
	if !input.PaymentStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}

	ctx = s.logg.WithBookingID(ctx, input.BookingID.String())

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		booking, err := repo.FindBooking(ctx, input.BookingID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
		}

		switch {
		case input.BookingStatus == enums.BookingStatusBooked && input.PaymentStatus == enums.PaymentStatusCompleted:
			if booking.Status == enums.BookingStatusBooked && booking.PaymentStatus == enums.PaymentStatusCompleted {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "booking already completed")
			}
			rows, err := repo.MarkBooked(ctx, booking.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark booking booked")
			}
			if rows == 0 {
				// lost the race to another delivery
				return nil
			}
			s.enqueueTicketMail(ctx, tx, repo, booking)
			return nil

		case input.PaymentStatus == enums.PaymentStatusFailed:
			rows, err := repo.MarkPaymentFailed(ctx, booking.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
			}
			if rows == 0 {
				return nil
			}
			return s.slots.ReleaseSlots(ctx, tx, booking.EventID, booking.TicketCount)

		default:
			return pkgerrors.New(pkgerrors.CodeValidation, "unsupported booking status combination")
		}
	})
}

// CancelBooking cancels the booking, attempts to cancel the upstream intent
// (tolerating one that was already consumed), and restores slots when the
// policy allows.
func (s *service) CancelBooking(ctx context.Context, bookingID, buyerID uuid.UUID) error {
	if bookingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	if buyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	ctx = s.logg.WithBookingID(ctx, bookingID.String())

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		booking, err := repo.FindBooking(ctx, bookingID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
		}
		if booking.BuyerID != buyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking does not belong to user")
		}
		if booking.Status == enums.BookingStatusUsed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "ticket already used")
		}
		if booking.Status == enums.BookingStatusCancelled {
			return nil
		}

		rows, err := repo.MarkCancelled(ctx, booking.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark booking cancelled")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "booking changed concurrently")
		}
		if booking.PaymentStatus == enums.PaymentStatusPending {
			if _, err := repo.MarkPaymentFailed(ctx, booking.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
			}
		}

		if booking.PaymentIntentID != nil && *booking.PaymentIntentID != "" {
			if err := s.gateway.CancelPaymentIntent(ctx, *booking.PaymentIntentID); err != nil {
				if !stripe.IsIntentConsumed(err) {
					return err
				}
				s.logg.Warn(ctx, "payment intent already consumed, continuing cancellation")
			}
		}

		// a failed payment already returned these slots
		if s.bookingCfg.RestoreSlotsOnCancel && booking.PaymentStatus != enums.PaymentStatusFailed {
			return s.slots.ReleaseSlots(ctx, tx, booking.EventID, booking.TicketCount)
		}
		return nil
	})
}

// TicketExhaust consumes a ticket at check-in. Only the event organizer may
// do this, and the used flip is one-way.
func (s *service) TicketExhaust(ctx context.Context, input TicketExhaustInput) error {
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.EventID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if strings.TrimSpace(input.TicketID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "ticket id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		event, err := repo.FindEvent(ctx, input.EventID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event")
		}
		if event.OrganizerID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "only the organizer can consume tickets")
		}

		booking, err := repo.FindBookingByTicket(ctx, event.ID, input.TicketID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket")
		}

		if booking.Status == enums.BookingStatusUsed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "ticket already used")
		}
		if booking.Status != enums.BookingStatusBooked {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "ticket is not in booked state").
				WithDetails(map[string]any{"status": booking.Status})
		}

		rows, err := repo.MarkUsed(ctx, booking.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark ticket used")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "ticket already used")
		}
		return nil
	})
}

// checkBookingWindow rejects datetimes outside [start, end] and events whose
// window has already closed.
func (s *service) checkBookingWindow(event *models.VirtualEvent, bookingAt time.Time) error {
	if bookingAt.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "booking datetime required")
	}
	if s.now().After(event.EndAt) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "event has already ended")
	}
	if bookingAt.Before(event.StartAt) || bookingAt.After(event.EndAt) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "booking datetime outside the event window").
			WithDetails(map[string]any{
				"start_at": event.StartAt,
				"end_at":   event.EndAt,
			})
	}
	return nil
}

// enqueueTicketMail is soft-fail: delivery trouble is logged, the settlement
// commits regardless.
func (s *service) enqueueTicketMail(ctx context.Context, tx *gorm.DB, repo Repository, booking *models.TicketBooking) {
	event, err := repo.FindEvent(ctx, booking.EventID)
	if err != nil {
		s.logg.Error(ctx, "load event for ticket mail", err)
		return
	}
	buyer, err := repo.FindUser(ctx, booking.BuyerID)
	if err != nil {
		s.logg.Error(ctx, "load buyer for ticket mail", err)
		return
	}

	qrPayload, err := EncodeQRPayload(QRContents{
		TicketID:  booking.TicketID,
		EventID:   event.ID,
		EventName: event.Name,
		StartAt:   event.StartAt,
	})
	if err != nil {
		s.logg.Error(ctx, "encode ticket qr payload", err)
		return
	}

	payload := notifications.BuildEventTicket(buyer.Name, qrPayload, *booking, *event)
	if err := s.notifier.Enqueue(ctx, tx, enums.NotificationKindEventTicket, buyer.Email, payload); err != nil {
		s.logg.Error(ctx, "enqueue ticket mail", err)
	}
}

func (s *service) ensureCustomerRef(ctx context.Context, repo Repository, buyer *models.User) (string, error) {
	if buyer.PaymentCustomerRef != nil && *buyer.PaymentCustomerRef != "" {
		return *buyer.PaymentCustomerRef, nil
	}

	customerRef, err := s.gateway.CreateCustomerProfile(ctx, buyer.Name, buyer.Email)
	if err != nil {
		return "", err
	}
	if err := repo.SaveUserCustomerRef(ctx, buyer.ID, customerRef); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save customer ref")
	}
	return customerRef, nil
}

// EncodeQRPayload serializes the proof-of-purchase as base64 JSON, the format
// embedded in the ticket QR image.
func EncodeQRPayload(contents QRContents) (string, error) {
	raw, err := json.Marshal(contents)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal qr contents")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func newTicketID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "TKT-" + strings.ToUpper(uuid.New().String()[:16])
	}
	return "TKT-" + strings.ToUpper(hex.EncodeToString(buf))
}
