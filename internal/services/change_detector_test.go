package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/knulata/satteli/internal/models"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func detectionInput(prevNDVI, currNDVI float64, parcelArea, areaThreshold, ndviThreshold float64) DetectionInput {
	tenant := newTestTenant("owner@example.com", "")
	tenant.DeforestationAreaThresholdHa = areaThreshold
	tenant.NDVIChangeThreshold = ndviThreshold

	parcel := newTestParcel(tenant.ID, parcelArea)

	return DetectionInput{
		Tenant: tenant,
		Parcel: parcel,
		Previous: &models.Reading{
			ParcelID:      parcel.ID,
			PeriodDate:    "2025-06-01",
			MeanNDVI:      prevNDVI,
			ValidPixelPct: 100,
		},
		Current: &models.Reading{
			ParcelID:      parcel.ID,
			PeriodDate:    "2025-06-16",
			MeanNDVI:      currNDVI,
			ValidPixelPct: 100,
		},
	}
}

// ============================================================================
// TEST SUITE 1: VEGETATION LOSS DETECTION
// ============================================================================

func TestDetect_NoBaselineProducesNothing(t *testing.T) {
	detector := NewChangeDetector()

	in := detectionInput(0.7, 0.3, 10, 1, 0.2)
	in.Previous = nil

	detections := detector.Detect(in)
	assert.Empty(t, detections, "First reading only establishes the baseline")
}

func TestDetect_NDVIIncreaseProducesNothing(t *testing.T) {
	detector := NewChangeDetector()

	detections := detector.Detect(detectionInput(0.4, 0.6, 10, 1, 0.2))
	assert.Empty(t, detections, "Vegetation recovery should not alert")
}

func TestDetect_BelowBothThresholdsProducesNothing(t *testing.T) {
	detector := NewChangeDetector()

	// Decrease of 0.05 on a 1 ha parcel: ~0.083 ha affected, change below 0.2.
	detections := detector.Detect(detectionInput(0.6, 0.55, 1, 1, 0.2))
	assert.Empty(t, detections, "Small drops below both thresholds should stay quiet")
}

func TestDetect_ChangeThresholdPathTriggers(t *testing.T) {
	detector := NewChangeDetector()

	// Decrease 0.3 >= threshold 0.2; area path disabled by a huge threshold.
	detections := detector.Detect(detectionInput(0.7, 0.4, 1, 1000, 0.2))

	assert.Len(t, detections, 1, "NDVI change alone should trigger")
	det := detections[0]
	assert.Equal(t, models.AlertDeforestation, det.Type)
	assert.Equal(t, models.DetectionNDVIChange, det.Method)
}

func TestDetect_AreaThresholdPathTriggers(t *testing.T) {
	detector := NewChangeDetector()

	// Drop 0.68 -> 0.40 with NDVI threshold 0.3: change path misses (0.28 < 0.3),
	// but ~41% of a 10 ha parcel is affected, well past the 1 ha area threshold.
	detections := detector.Detect(detectionInput(0.68, 0.40, 10, 1, 0.3))

	assert.Len(t, detections, 1, "Area path should trigger even when the change path misses")
	det := detections[0]
	assert.NotNil(t, det.AffectedAreaHa)
	assert.InDelta(t, 4.118, *det.AffectedAreaHa, 0.01, "Affected area should be parcelArea * drop/prior")
	assert.Equal(t, models.SeverityCritical, det.Severity, "4.1x over the 1 ha threshold grades critical")
}

func TestDetect_ZeroThresholdDisablesPath(t *testing.T) {
	detector := NewChangeDetector()

	// Both thresholds zeroed: nothing can trigger, however large the drop.
	detections := detector.Detect(detectionInput(0.9, 0.1, 100, 0, 0))
	assert.Empty(t, detections, "Zero thresholds disable both trigger paths")

	// Only the change path enabled.
	detections = detector.Detect(detectionInput(0.9, 0.1, 100, 0, 0.2))
	assert.Len(t, detections, 1, "Change path should still work with the area path disabled")
}

func TestDetect_ExactlyAtThresholdTriggers(t *testing.T) {
	detector := NewChangeDetector()

	// Change path: 0.75 - 0.50 is exactly the 0.25 threshold. All three
	// values are exact in binary, so the comparison is a true tie.
	detections := detector.Detect(detectionInput(0.75, 0.50, 1, 1000, 0.25))
	assert.Len(t, detections, 1, "A drop exactly at the change threshold triggers")
	assert.Equal(t, models.SeverityLow, detections[0].Severity, "A 1.0x ratio grades low")

	// Area path: half of an 8 ha parcel is exactly the 4 ha threshold;
	// the 0.25 drop stays under the 0.9 change threshold.
	detections = detector.Detect(detectionInput(0.5, 0.25, 8, 4, 0.9))
	assert.Len(t, detections, 1, "Affected area exactly at the area threshold triggers")
	assert.InDelta(t, 4.0, *detections[0].AffectedAreaHa, 1e-12)
	assert.Equal(t, models.SeverityLow, detections[0].Severity)
}

func TestDetect_SeverityBands(t *testing.T) {
	detector := NewChangeDetector()

	cases := []struct {
		name     string
		prev     float64
		curr     float64
		expected models.AlertSeverity
	}{
		// Area path disabled; severity comes from decrease/0.2.
		{"barely over threshold is low", 0.60, 0.38, models.SeverityLow},       // ratio 1.1
		{"1.5x over threshold is medium", 0.75, 0.44, models.SeverityMedium},   // ratio 1.55
		{"2x over threshold is high", 0.85, 0.43, models.SeverityHigh},         // ratio 2.1
		{"3x over threshold is critical", 0.90, 0.26, models.SeverityCritical}, // ratio 3.2
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			detections := detector.Detect(detectionInput(tc.prev, tc.curr, 1, 1000, 0.2))
			assert.Len(t, detections, 1)
			assert.Equal(t, tc.expected, detections[0].Severity)
		})
	}
}

// ============================================================================
// TEST SUITE 2: FIRE DETECTION
// ============================================================================

func TestDetect_FireHotspotsGrading(t *testing.T) {
	detector := NewChangeDetector()

	in := detectionInput(0.6, 0.6, 10, 1, 0.2)
	in.FireHotspots = 2

	detections := detector.Detect(in)
	assert.Len(t, detections, 1, "Hotspots should alert even with a flat NDVI")
	assert.Equal(t, models.AlertFire, detections[0].Type)
	assert.Equal(t, models.SeverityHigh, detections[0].Severity, "1-4 hotspots grade high")
	assert.Equal(t, models.DetectionFireHotspots, detections[0].Method)

	in.FireHotspots = 5
	detections = detector.Detect(in)
	assert.Equal(t, models.SeverityCritical, detections[0].Severity, "5+ hotspots grade critical")
}

func TestDetect_FireAndVegetationLossTogether(t *testing.T) {
	detector := NewChangeDetector()

	in := detectionInput(0.8, 0.3, 10, 1, 0.2)
	in.FireHotspots = 1

	detections := detector.Detect(in)
	assert.Len(t, detections, 2, "A burn shows up as both vegetation loss and fire")
	assert.Equal(t, models.AlertDeforestation, detections[0].Type)
	assert.Equal(t, models.AlertFire, detections[1].Type)
}

// ============================================================================
// TEST SUITE 3: CONFIDENCE SCORING
// ============================================================================

func TestConfidenceFromQuality(t *testing.T) {
	assert.Equal(t, 1.0, confidenceFromQuality(&models.Reading{ValidPixelPct: 100, CloudCoverPct: 0}),
		"Perfect observation should score 1")
	assert.InDelta(t, 0.72, confidenceFromQuality(&models.Reading{ValidPixelPct: 90, CloudCoverPct: 20}), 0.001,
		"Confidence should be validPct * (1 - cloudPct)")
	assert.Equal(t, 0.0, confidenceFromQuality(&models.Reading{ValidPixelPct: 0, CloudCoverPct: 100}),
		"Fully obscured observation should score 0")
	assert.Equal(t, 0.0, confidenceFromQuality(nil))
}

func TestDetect_ConfidenceCarriesObservationQuality(t *testing.T) {
	detector := NewChangeDetector()

	in := detectionInput(0.8, 0.3, 10, 1, 0.2)
	in.Current.ValidPixelPct = 80
	in.Current.CloudCoverPct = 50

	detections := detector.Detect(in)
	assert.Len(t, detections, 1)
	assert.InDelta(t, 0.4, detections[0].ConfidenceScore, 0.001)
}
