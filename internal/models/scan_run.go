package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// SCAN RUNS (BATCH PROVENANCE)
// ============================================================================

// ScanRun records one batch pass over a cohort of tenants/parcels.
// Operator-only visibility; not tenant-scoped.
type ScanRun struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	Trigger         ScanTrigger `json:"trigger" db:"trigger"`
	Status          ScanStatus  `json:"status" db:"status"`
	TenantsScanned  int         `json:"tenants_scanned" db:"tenants_scanned"`
	ParcelsScanned  int         `json:"parcels_scanned" db:"parcels_scanned"`
	ParcelsFailed   int         `json:"parcels_failed" db:"parcels_failed"`
	AlertsGenerated int         `json:"alerts_generated" db:"alerts_generated"`

	// Estimated satellite processing units consumed by the pass.
	ProcessingUnits float64 `json:"processing_units" db:"processing_units"`

	ErrorDetail *string    `json:"error_detail,omitempty" db:"error_detail"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}
