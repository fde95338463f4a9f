package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
)

// Ledger mutates stock and slot counts. Every mutation is a single
// conditional UPDATE so concurrent buyers cannot oversell: the guard lives in
// the WHERE clause and zero rows affected means the count was short.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Commit(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	ReserveSlots(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, count int) error
	ReleaseSlots(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, count int) error
}

type ledger struct {
	db *gorm.DB
}

// NewLedger builds the inventory ledger bound to the provided DB. The db
// argument serves calls made outside an explicit transaction.
func NewLedger(db *gorm.DB) (Ledger, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger requires a db")
	}
	return &ledger{db: db}, nil
}

func (l *ledger) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return l.db
}

// Reserve moves qty units from available to reserved, failing with a state
// conflict when availability is short.
func (l *ledger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserve quantity must be positive")
	}

	res := l.conn(tx).WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET available_qty = available_qty - ?,
			reserved_qty = reserved_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND available_qty >= ?
	`, qty, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "product is out of stock").
			WithDetails(map[string]any{"product_id": productID, "requested": qty})
	}
	return nil
}

// Commit burns reserved units after payment completes.
func (l *ledger) Commit(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}

	res := l.conn(tx).WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET reserved_qty = reserved_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND reserved_qty >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "commit inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reserved quantity short on commit").
			WithDetails(map[string]any{"product_id": productID, "qty": qty})
	}
	return nil
}

// Release returns reserved units to availability, used when an order line is
// rejected or payment fails.
func (l *ledger) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}

	res := l.conn(tx).WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET available_qty = available_qty + ?,
			reserved_qty = reserved_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND reserved_qty >= ?
	`, qty, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory")
	}
	return nil
}

// ReserveSlots decrements an event's remaining slots. Events that do not
// track slots always succeed.
func (l *ledger) ReserveSlots(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, count int) error {
	if count <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "slot count must be positive")
	}

	res := l.conn(tx).WithContext(ctx).Exec(`
		UPDATE virtual_events
		SET slots_remaining = CASE WHEN tracks_slots THEN slots_remaining - ? ELSE slots_remaining END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND (tracks_slots = FALSE OR slots_remaining >= ?)
	`, count, eventID, count)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve event slots")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "not enough slots remaining").
			WithDetails(map[string]any{"event_id": eventID, "requested": count})
	}
	return nil
}

// ReleaseSlots returns slots when a booking is cancelled under the
// restore-on-cancel policy. Untracked events are left untouched.
func (l *ledger) ReleaseSlots(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, count int) error {
	if count <= 0 {
		return nil
	}

	res := l.conn(tx).WithContext(ctx).Exec(`
		UPDATE virtual_events
		SET slots_remaining = slots_remaining + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND tracks_slots = TRUE
	`, count, eventID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release event slots")
	}
	return nil
}
