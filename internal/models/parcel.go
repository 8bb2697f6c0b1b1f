package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// PARCEL MANAGEMENT
// ============================================================================

type Parcel struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	TenantID   uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	Name       string          `json:"name" db:"name"`
	ParcelCode *string         `json:"parcel_code,omitempty" db:"parcel_code"`
	Boundary   *GeoJSONPolygon `json:"boundary,omitempty" db:"boundary"`
	Centroid   *GeoJSONPoint   `json:"centroid,omitempty" db:"centroid"`
	AreaHa     float64         `json:"area_ha" db:"area_ha"`
	Status     ParcelStatus    `json:"status" db:"status"`

	// Current snapshot, refreshed on every accepted reading.
	HealthStatus HealthStatus `json:"health_status" db:"health_status"`
	CurrentNDVI  *float64     `json:"current_ndvi,omitempty" db:"current_ndvi"`
	LastScanAt   *int64       `json:"last_scan_at,omitempty" db:"last_scan_at"`
	LastAlertAt  *int64       `json:"last_alert_at,omitempty" db:"last_alert_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
