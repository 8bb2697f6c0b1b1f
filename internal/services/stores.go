package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/knulata/satteli/internal/models"
)

// Store interfaces consumed by the service layer. The sqlx repositories in
// internal/repository satisfy them; tests substitute in-memory fakes.

type TenantStore interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, scope models.AccessScope, id uuid.UUID) (*models.Tenant, error)
	GetActive(ctx context.Context, scope models.AccessScope) ([]models.Tenant, error)
	UpdateThresholds(ctx context.Context, scope models.AccessScope, id uuid.UUID, areaThresholdHa, ndviChangeThreshold float64) error
	Deactivate(ctx context.Context, scope models.AccessScope, id uuid.UUID) error
}

type ParcelStore interface {
	CreateWithAggregate(ctx context.Context, parcel *models.Parcel) error
	UpdateWithAggregate(ctx context.Context, parcel *models.Parcel) error
	DeleteWithAggregate(ctx context.Context, scope models.AccessScope, id uuid.UUID) error
	GetByID(ctx context.Context, scope models.AccessScope, id uuid.UUID) (*models.Parcel, error)
	ListByTenant(ctx context.Context, scope models.AccessScope, tenantID uuid.UUID) ([]models.Parcel, error)
	ListActiveByTenant(ctx context.Context, scope models.AccessScope, tenantID uuid.UUID) ([]models.Parcel, error)
	UpdateSnapshot(ctx context.Context, id uuid.UUID, currentNDVI float64, health models.HealthStatus, scannedAt int64) error
	MarkAlerted(ctx context.Context, id uuid.UUID, alertedAt int64) error
}

type ReadingStore interface {
	Insert(ctx context.Context, reading *models.Reading) error
	Upsert(ctx context.Context, reading *models.Reading) error
	GetLatestBefore(ctx context.Context, parcelID uuid.UUID, periodDate string) (*models.Reading, error)
	ListByParcel(ctx context.Context, parcelID uuid.UUID, limit int) ([]models.Reading, error)
}

type AlertStore interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, scope models.AccessScope, id uuid.UUID) (*models.Alert, error)
	FindOpenByParcelAndType(ctx context.Context, parcelID uuid.UUID, alertType models.AlertType) (*models.Alert, error)
	Extend(ctx context.Context, alert *models.Alert) error
	UpdateStatus(ctx context.Context, alert *models.Alert, from models.AlertStatus) error
	ListOpenByTenant(ctx context.Context, scope models.AccessScope, tenantID uuid.UUID, limit int) ([]models.AlertListItem, error)
}

type NotificationStore interface {
	CreateBatch(ctx context.Context, notifications []*models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, externalRef string, attempts int) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorDetail string, attempts int) error
	ListByAlert(ctx context.Context, scope models.AccessScope, alertID uuid.UUID) ([]models.Notification, error)
	ListPending(ctx context.Context, limit int) ([]models.Notification, error)
}

type ScanRunStore interface {
	Open(ctx context.Context, run *models.ScanRun) error
	Close(ctx context.Context, run *models.ScanRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ScanRun, error)
	ListRecent(ctx context.Context, limit int) ([]models.ScanRun, error)
}

type DashboardStore interface {
	GetTenantSummary(ctx context.Context, scope models.AccessScope, tenantID uuid.UUID) (*models.TenantSummary, error)
}

// Cache is the dashboard read-through cache. The Redis client wrapper
// satisfies it.
type Cache interface {
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	Invalidate(ctx context.Context, keys ...string) error
}

// SendRequest is one delivery attempt handed to a transport provider. The
// notification ID doubles as the provider idempotency key.
type SendRequest struct {
	NotificationID uuid.UUID
	Channel        models.NotificationChannel
	Recipient      string
	Subject        string
	Body           string
}

// Sender delivers one message through one channel. Implementations live in
// internal/transport.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (externalRef string, err error)
}

// AlertEventPublisher fans alert-created events out to the message broker
// for downstream consumers.
type AlertEventPublisher interface {
	PublishAlertCreated(ctx context.Context, alert *models.Alert) error
}

// JobRunner offloads work onto the shared worker pool.
type JobRunner interface {
	SubmitJob(job func(ctx context.Context) error) error
}
