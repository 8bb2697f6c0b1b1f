package services

import (
	"fmt"
	"math"

	"github.com/knulata/satteli/internal/models"
)

// Detection is one anomaly derived from a pair of readings. The alert
// lifecycle turns detections into alerts.
type Detection struct {
	Type            models.AlertType
	Severity        models.AlertSeverity
	Method          models.DetectionMethod
	Title           string
	Description     string
	AffectedAreaHa  *float64
	ConfidenceScore float64
}

// DetectionInput bundles everything a single detection pass needs. Previous
// may be nil; fire hotspot counts come from the imagery source, not the
// reading itself.
type DetectionInput struct {
	Tenant       *models.Tenant
	Parcel       *models.Parcel
	Previous     *models.Reading
	Current      *models.Reading
	FireHotspots int
}

// ChangeDetector compares consecutive readings against tenant thresholds.
// Pure computation, no I/O.
type ChangeDetector struct{}

func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{}
}

// Detect evaluates the input and returns zero or more detections. A parcel
// with no baseline reading produces no vegetation-change detection; the
// first reading only establishes the baseline.
func (d *ChangeDetector) Detect(in DetectionInput) []Detection {
	var out []Detection

	if det := d.detectVegetationLoss(in); det != nil {
		out = append(out, *det)
	}
	if det := d.detectFire(in); det != nil {
		out = append(out, *det)
	}
	return out
}

func (d *ChangeDetector) detectVegetationLoss(in DetectionInput) *Detection {
	if in.Previous == nil || in.Current == nil {
		return nil
	}

	decrease := in.Previous.MeanNDVI - in.Current.MeanNDVI
	if decrease <= 0 {
		return nil
	}

	// Estimate the affected share of the parcel from the relative index
	// drop, capped at the full parcel.
	var affectedHa float64
	if in.Previous.MeanNDVI > 0 {
		fraction := math.Min(1, decrease/in.Previous.MeanNDVI)
		affectedHa = in.Parcel.AreaHa * fraction
	}

	// A zero threshold disables that trigger path.
	changeThreshold := in.Tenant.NDVIChangeThreshold
	areaThreshold := in.Tenant.DeforestationAreaThresholdHa

	var maxRatio float64
	if changeThreshold > 0 && decrease >= changeThreshold {
		maxRatio = math.Max(maxRatio, decrease/changeThreshold)
	}
	if areaThreshold > 0 && affectedHa >= areaThreshold {
		maxRatio = math.Max(maxRatio, affectedHa/areaThreshold)
	}
	if maxRatio == 0 {
		return nil
	}

	lossPct := math.Min(100, decrease/in.Previous.MeanNDVI*100)

	return &Detection{
		Type:     models.AlertDeforestation,
		Severity: severityFromExceedance(maxRatio),
		Method:   models.DetectionNDVIChange,
		Title:    fmt.Sprintf("Vegetation loss detected on %s", in.Parcel.Name),
		Description: fmt.Sprintf(
			"Mean NDVI dropped from %.3f to %.3f (%.1f%% loss), approx %.2f ha affected",
			in.Previous.MeanNDVI, in.Current.MeanNDVI, lossPct, affectedHa),
		AffectedAreaHa:  &affectedHa,
		ConfidenceScore: confidenceFromQuality(in.Current),
	}
}

func (d *ChangeDetector) detectFire(in DetectionInput) *Detection {
	if in.FireHotspots < 1 {
		return nil
	}

	severity := models.SeverityHigh
	if in.FireHotspots >= 5 {
		severity = models.SeverityCritical
	}

	return &Detection{
		Type:     models.AlertFire,
		Severity: severity,
		Method:   models.DetectionFireHotspots,
		Title:    fmt.Sprintf("Fire activity detected on %s", in.Parcel.Name),
		Description: fmt.Sprintf("%d active fire hotspot(s) observed within the parcel boundary",
			in.FireHotspots),
		ConfidenceScore: confidenceFromQuality(in.Current),
	}
}

// severityFromExceedance grades how far past its threshold a signal landed.
func severityFromExceedance(ratio float64) models.AlertSeverity {
	switch {
	case ratio >= 3:
		return models.SeverityCritical
	case ratio >= 2:
		return models.SeverityHigh
	case ratio >= 1.5:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// confidenceFromQuality derives a confidence score from the observation's
// pixel validity and cloud cover, clamped to [0, 1].
func confidenceFromQuality(reading *models.Reading) float64 {
	if reading == nil {
		return 0
	}
	c := (reading.ValidPixelPct / 100) * (1 - reading.CloudCoverPct/100)
	return math.Max(0, math.Min(1, c))
}
