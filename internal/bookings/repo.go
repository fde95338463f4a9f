package bookings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
	"github.com/gathergrid/gathergrid-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bookings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindEvent(ctx context.Context, eventID uuid.UUID) (*models.VirtualEvent, error) {
	var event models.VirtualEvent
	if err := r.db.WithContext(ctx).Where("id = ?", eventID).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) SaveUserCustomerRef(ctx context.Context, userID uuid.UUID, customerRef string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("payment_customer_ref", customerRef).Error
}

func (r *repository) CreateBooking(ctx context.Context, booking *models.TicketBooking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *repository) SetBookingIntent(ctx context.Context, bookingID uuid.UUID, intentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.TicketBooking{}).
		Where("id = ?", bookingID).
		Update("payment_intent_id", intentID).Error
}

func (r *repository) FindBooking(ctx context.Context, bookingID uuid.UUID) (*models.TicketBooking, error) {
	var booking models.TicketBooking
	if err := r.db.WithContext(ctx).Where("id = ?", bookingID).First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) FindBookingByTicket(ctx context.Context, eventID uuid.UUID, ticketID string) (*models.TicketBooking, error) {
	var booking models.TicketBooking
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND ticket_id = ?", eventID, ticketID).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) FindBookingByIntent(ctx context.Context, intentID string) (*models.TicketBooking, error) {
	var booking models.TicketBooking
	err := r.db.WithContext(ctx).
		Where("payment_intent_id = ?", intentID).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// MarkBooked flips a pending booking to booked+completed. The guard on both
// pending values makes duplicate webhook deliveries no-ops.
func (r *repository) MarkBooked(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TicketBooking{}).
		Where("id = ? AND status = ? AND payment_status = ?",
			bookingID, enums.BookingStatusPending, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":         enums.BookingStatusBooked,
			"payment_status": enums.PaymentStatusCompleted,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) MarkPaymentFailed(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TicketBooking{}).
		Where("id = ? AND payment_status = ?", bookingID, enums.PaymentStatusPending).
		Update("payment_status", enums.PaymentStatusFailed)
	return res.RowsAffected, res.Error
}

func (r *repository) MarkCancelled(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TicketBooking{}).
		Where("id = ? AND status IN ?", bookingID,
			[]enums.BookingStatus{enums.BookingStatusPending, enums.BookingStatusBooked}).
		Updates(map[string]any{
			"status":       enums.BookingStatusCancelled,
			"cancelled_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	return res.RowsAffected, res.Error
}

// MarkUsed is the one-way ticket consumption flip.
func (r *repository) MarkUsed(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TicketBooking{}).
		Where("id = ? AND status = ?", bookingID, enums.BookingStatusBooked).
		Updates(map[string]any{
			"status":  enums.BookingStatusUsed,
			"used_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	return res.RowsAffected, res.Error
}
