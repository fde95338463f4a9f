package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/gathergrid/gathergrid-backend/pkg/enums"
)

// NotificationJob is a durable queue row for outbound email. Jobs are enqueued
// in the same transaction as the state change they announce and drained by the
// worker with capped backoff.
type NotificationJob struct {
	ID            uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Kind          enums.NotificationKind      `gorm:"column:kind;type:text;not null"`
	Recipient     string                      `gorm:"column:recipient;not null"`
	Payload       json.RawMessage             `gorm:"column:payload;type:jsonb;not null"`
	Status        enums.NotificationJobStatus `gorm:"column:status;type:text;not null;default:'pending';index:ix_notification_jobs_due"`
	Attempts      int                         `gorm:"column:attempts;not null;default:0"`
	NextAttemptAt time.Time                   `gorm:"column:next_attempt_at;not null;index:ix_notification_jobs_due"`
	LastError     *string                     `gorm:"column:last_error"`
	SentAt        *time.Time                  `gorm:"column:sent_at"`
	CreatedAt     time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
