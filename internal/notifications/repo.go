package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
	"github.com/gathergrid/gathergrid-backend/pkg/enums"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
)

// Repository persists and drains the notification queue.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, job *models.NotificationJob) error
	FindDue(ctx context.Context, now time.Time, limit int) ([]models.NotificationJob, error)
	MarkSent(ctx context.Context, jobID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, jobID uuid.UUID, attempts int, nextAttemptAt time.Time, lastError string) error
	MarkDead(ctx context.Context, jobID uuid.UUID, lastError string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a notification queue repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, job *models.NotificationJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repository) FindDue(ctx context.Context, now time.Time, limit int) ([]models.NotificationJob, error) {
	var jobs []models.NotificationJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", enums.NotificationJobStatusPending, now).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repository) MarkSent(ctx context.Context, jobID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.NotificationJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":  enums.NotificationJobStatusSent,
			"sent_at": at,
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, jobID uuid.UUID, attempts int, nextAttemptAt time.Time, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&models.NotificationJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"attempts":        attempts,
			"next_attempt_at": nextAttemptAt,
			"last_error":      lastError,
		}).Error
}

func (r *repository) MarkDead(ctx context.Context, jobID uuid.UUID, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&models.NotificationJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":     enums.NotificationJobStatusDead,
			"last_error": lastError,
		}).Error
}

// Enqueuer writes queue rows inside the caller's transaction so a job exists
// exactly when the state change it announces commits.
type Enqueuer struct {
	repo Repository
}

// NewEnqueuer builds the transactional enqueuer.
func NewEnqueuer(repo Repository) (*Enqueuer, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifications repository required")
	}
	return &Enqueuer{repo: repo}, nil
}

// Enqueue serializes the payload and inserts a pending job due immediately.
func (e *Enqueuer) Enqueue(ctx context.Context, tx *gorm.DB, kind enums.NotificationKind, recipient string, payload any) error {
	if !kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid notification kind")
	}
	if recipient == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal notification payload")
	}

	job := &models.NotificationJob{
		ID:            uuid.New(),
		Kind:          kind,
		Recipient:     recipient,
		Payload:       raw,
		Status:        enums.NotificationJobStatusPending,
		NextAttemptAt: time.Now().UTC(),
	}
	return e.repo.WithTx(tx).Create(ctx, job)
}
