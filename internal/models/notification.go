package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// NOTIFICATIONS
// ============================================================================

// Notification is one delivery of an alert through one channel to one
// recipient. Its ID doubles as the idempotency key handed to the transport
// provider, so retries never mint a new key.
type Notification struct {
	ID          uuid.UUID           `json:"id" db:"id"`
	AlertID     uuid.UUID           `json:"alert_id" db:"alert_id"`
	TenantID    uuid.UUID           `json:"tenant_id" db:"tenant_id"`
	Channel     NotificationChannel `json:"channel" db:"channel"`
	Recipient   string              `json:"recipient" db:"recipient"`
	Status      NotificationStatus  `json:"status" db:"status"`
	ExternalRef *string             `json:"external_ref,omitempty" db:"external_ref"`
	ErrorDetail *string             `json:"error_detail,omitempty" db:"error_detail"`
	Attempts    int                 `json:"attempts" db:"attempts"`
	SentAt      *int64              `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at" db:"updated_at"`
}
