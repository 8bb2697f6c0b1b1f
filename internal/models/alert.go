package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/knulata/satteli/utils"
)

// ============================================================================
// ALERTS
// ============================================================================

type Alert struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	TenantID        uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	ParcelID        *uuid.UUID      `json:"parcel_id,omitempty" db:"parcel_id"`
	Type            AlertType       `json:"type" db:"type"`
	Severity        AlertSeverity   `json:"severity" db:"severity"`
	Status          AlertStatus     `json:"status" db:"status"`
	Title           string          `json:"title" db:"title"`
	Description     *string         `json:"description,omitempty" db:"description"`
	AffectedAreaHa  *float64        `json:"affected_area_ha,omitempty" db:"affected_area_ha"`
	Centroid        *GeoJSONPoint   `json:"centroid,omitempty" db:"centroid"`
	EvidenceURLs    utils.JSONArray `json:"evidence_urls" db:"evidence_urls"`
	DetectionMethod DetectionMethod `json:"detection_method" db:"detection_method"`
	ConfidenceScore float64         `json:"confidence_score" db:"confidence_score"`
	DetectedAt      int64           `json:"detected_at" db:"detected_at"`

	// Workflow audit fields.
	AcknowledgedBy *string `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AcknowledgedAt *int64  `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	ResolvedBy     *string `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt     *int64  `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolutionNote *string `json:"resolution_note,omitempty" db:"resolution_note"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CanTransitionTo reports whether the alert state machine allows moving from
// the current status to target. Same-state transitions are allowed (and
// treated as idempotent no-ops by the lifecycle service).
func (a *Alert) CanTransitionTo(target AlertStatus) bool {
	if a.Status == target {
		return true
	}
	switch a.Status {
	case AlertNew:
		return target == AlertAcknowledged || target == AlertInvestigating ||
			target == AlertResolved || target == AlertFalsePositive
	case AlertAcknowledged:
		return target == AlertInvestigating || target == AlertResolved || target == AlertFalsePositive
	case AlertInvestigating:
		return target == AlertResolved || target == AlertFalsePositive
	default:
		// resolved and false_positive are terminal
		return false
	}
}
