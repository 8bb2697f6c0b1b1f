package models

// ============================================================================
// REQUEST MODELS
// ============================================================================

type CreateParcelRequest struct {
	Name     string          `json:"name"`
	Boundary *GeoJSONPolygon `json:"boundary"`
}

type UpdateParcelRequest struct {
	Name     *string         `json:"name,omitempty"`
	Boundary *GeoJSONPolygon `json:"boundary,omitempty"`
	Status   *ParcelStatus   `json:"status,omitempty"`
}

// SubmitReadingRequest is the imagery-analysis service's ingest payload.
type SubmitReadingRequest struct {
	PeriodDate       string   `json:"period_date"`
	MeanNDVI         float64  `json:"mean_ndvi"`
	MinNDVI          *float64 `json:"min_ndvi,omitempty"`
	MaxNDVI          *float64 `json:"max_ndvi,omitempty"`
	StdNDVI          *float64 `json:"std_ndvi,omitempty"`
	CloudCoverPct    float64  `json:"cloud_cover_pct"`
	ValidPixelPct    float64  `json:"valid_pixel_pct"`
	ObservationCount int      `json:"observation_count"`
	EvidenceURLs     []string `json:"evidence_urls,omitempty"`
}

type AlertActionRequest struct {
	Note *string `json:"note,omitempty"`
}

type TriggerScanRequest struct {
	Trigger  ScanTrigger `json:"trigger"`
	TenantID *string     `json:"tenant_id,omitempty"`
}
