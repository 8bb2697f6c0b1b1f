package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// NDVI READINGS (TIME-SERIES)
// ============================================================================

// Reading is one periodic vegetation-index observation for a parcel.
// At most one reading exists per (parcel, period).
type Reading struct {
	ID               uuid.UUID `json:"id" db:"id"`
	ParcelID         uuid.UUID `json:"parcel_id" db:"parcel_id"`
	PeriodDate       string    `json:"period_date" db:"period_date"` // YYYY-MM-DD
	MeanNDVI         float64   `json:"mean_ndvi" db:"mean_ndvi"`
	MinNDVI          *float64  `json:"min_ndvi,omitempty" db:"min_ndvi"`
	MaxNDVI          *float64  `json:"max_ndvi,omitempty" db:"max_ndvi"`
	StdNDVI          *float64  `json:"std_ndvi,omitempty" db:"std_ndvi"`
	CloudCoverPct    float64   `json:"cloud_cover_pct" db:"cloud_cover_pct"`
	ValidPixelPct    float64   `json:"valid_pixel_pct" db:"valid_pixel_pct"`
	ObservationCount int       `json:"observation_count" db:"observation_count"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
