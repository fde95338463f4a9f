package bookings

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gathergrid/gathergrid-backend/api/middleware"
	"github.com/gathergrid/gathergrid-backend/api/responses"
	"github.com/gathergrid/gathergrid-backend/api/validators"
	bookingsvc "github.com/gathergrid/gathergrid-backend/internal/bookings"
	"github.com/gathergrid/gathergrid-backend/pkg/enums"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
)

type bookTicketsRequest struct {
	EventID     uuid.UUID       `json:"event_id" validate:"required"`
	TicketCount int             `json:"ticket_count" validate:"required,min=1"`
	TotalPrice  decimal.Decimal `json:"total_price" validate:"required"`
	BookingDate string          `json:"booking_date" validate:"required"`
	BookingTime string          `json:"booking_time" validate:"required"`
}

// BookTickets reserves seats on an event and opens the split payment sheet.
func BookTickets(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req bookTicketsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bookingAt, err := parseBookingMoment(req.BookingDate, req.BookingTime)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.BookTickets(r.Context(), bookingsvc.BookTicketsInput{
			BuyerID:       buyerID,
			EventID:       req.EventID,
			TicketCount:   req.TicketCount,
			DeclaredTotal: req.TotalPrice,
			BookingAt:     bookingAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type updateBookingStatusRequest struct {
	BookingID     uuid.UUID `json:"booking_id" validate:"required"`
	BookingStatus string    `json:"booking_status" validate:"required"`
	PaymentStatus string    `json:"payment_status" validate:"required"`
}

// UpdateBookingStatus drives the booking settlement transition.
func UpdateBookingStatus(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateBookingStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bookingStatus, err := enums.ParseBookingStatus(req.BookingStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid booking status"))
			return
		}
		paymentStatus, err := enums.ParsePaymentStatus(req.PaymentStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status"))
			return
		}

		err = svc.UpdateBookingStatus(r.Context(), bookingsvc.UpdateBookingStatusInput{
			BookingID:     req.BookingID,
			BookingStatus: bookingStatus,
			PaymentStatus: paymentStatus,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"booking_id": req.BookingID.String(), "result": "applied"})
	}
}

type cancelBookingRequest struct {
	BookingID uuid.UUID `json:"booking_id" validate:"required"`
}

// CancelBooking cancels the caller's booking and voids its payment intent.
func CancelBooking(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelBookingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.CancelBooking(r.Context(), req.BookingID, buyerID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"booking_id": req.BookingID.String(), "status": string(enums.BookingStatusCancelled)})
	}
}

type ticketExhaustRequest struct {
	EventID  uuid.UUID `json:"event_id" validate:"required"`
	TicketID string    `json:"ticket_id" validate:"required"`
}

// TicketExhaust consumes one ticket at event check-in, organizer only.
func TicketExhaust(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req ticketExhaustRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.TicketExhaust(r.Context(), bookingsvc.TicketExhaustInput{
			ActorID:  actorID,
			EventID:  req.EventID,
			TicketID: req.TicketID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"ticket_id": req.TicketID, "status": string(enums.BookingStatusUsed)})
	}
}

// parseBookingMoment combines the date and time fields into one instant.
// The pair arrives as "2006-01-02" and "15:04".
func parseBookingMoment(date, clock string) (time.Time, error) {
	moment, err := time.Parse("2006-01-02 15:04", date+" "+clock)
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "booking_date and booking_time must be YYYY-MM-DD and HH:MM").
			WithDetails(map[string]string{"booking_date": date, "booking_time": clock})
	}
	return moment.UTC(), nil
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity malformed")
	}
	return id, nil
}
