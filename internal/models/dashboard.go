package models

import (
	"github.com/google/uuid"
)

// ============================================================================
// DASHBOARD VIEWS (derived on demand, not separately persisted)
// ============================================================================

// TenantSummary is the per-tenant dashboard aggregate.
type TenantSummary struct {
	TenantID           uuid.UUID `json:"tenant_id" db:"tenant_id"`
	ParcelCount        int       `json:"parcel_count" db:"parcel_count"`
	TotalAreaHa        float64   `json:"total_area_ha" db:"total_area_ha"`
	OpenAlertCount     int       `json:"open_alert_count" db:"open_alert_count"`
	CriticalOpenAlerts int       `json:"critical_open_alerts" db:"critical_open_alerts"`
	AvgCurrentNDVI     *float64  `json:"avg_current_ndvi,omitempty" db:"avg_current_ndvi"`
	LastAlertAt        *int64    `json:"last_alert_at,omitempty" db:"last_alert_at"`
	LastScanAt         *int64    `json:"last_scan_at,omitempty" db:"last_scan_at"`
}

// AlertListItem is the denormalized alert row joined with parcel/tenant
// display fields.
type AlertListItem struct {
	Alert
	ParcelName *string `json:"parcel_name,omitempty" db:"parcel_name"`
	TenantName string  `json:"tenant_name" db:"tenant_name"`
}
