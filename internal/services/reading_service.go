package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/knulata/satteli/internal/models"
	"github.com/knulata/satteli/utils"
)

// ReadingService ingests vegetation-index readings and drives the detection
// pipeline: accept the reading, refresh the parcel snapshot, compare against
// the baseline, and hand anomalies to the alert lifecycle. Ingest for one
// parcel is serialized so baseline lookups and snapshot writes cannot
// interleave.
type ReadingService struct {
	readings  ReadingStore
	parcels   ParcelStore
	tenants   TenantStore
	detector  *ChangeDetector
	alertSvc  *AlertService
	dashboard *DashboardService

	duplicatePolicy models.DuplicateReadingPolicy
	parcelLocks     *utils.KeyedMutex
}

func NewReadingService(readings ReadingStore, parcels ParcelStore, tenants TenantStore, detector *ChangeDetector, alertSvc *AlertService, dashboard *DashboardService, duplicatePolicy models.DuplicateReadingPolicy) *ReadingService {
	if duplicatePolicy == "" {
		duplicatePolicy = models.DuplicateReject
	}
	return &ReadingService{
		readings:        readings,
		parcels:         parcels,
		tenants:         tenants,
		detector:        detector,
		alertSvc:        alertSvc,
		dashboard:       dashboard,
		duplicatePolicy: duplicatePolicy,
		parcelLocks:     utils.NewKeyedMutex(),
	}
}

// IngestResult reports what one accepted reading produced.
type IngestResult struct {
	Reading       *models.Reading `json:"reading"`
	Alerts        []*models.Alert `json:"alerts,omitempty"`
	CreatedAlerts int             `json:"created_alerts"`
}

// Submit ingests one reading for a parcel via the API.
func (s *ReadingService) Submit(ctx context.Context, scope models.AccessScope, parcelID uuid.UUID, req *models.SubmitReadingRequest) (*IngestResult, error) {
	return s.ingest(ctx, scope, parcelID, req, 0)
}

// SubmitObservation ingests a scanner observation, which can carry fire
// hotspot counts alongside the vegetation reading.
func (s *ReadingService) SubmitObservation(ctx context.Context, scope models.AccessScope, parcelID uuid.UUID, req *models.SubmitReadingRequest, fireHotspots int) (*IngestResult, error) {
	return s.ingest(ctx, scope, parcelID, req, fireHotspots)
}

func (s *ReadingService) ingest(ctx context.Context, scope models.AccessScope, parcelID uuid.UUID, req *models.SubmitReadingRequest, fireHotspots int) (*IngestResult, error) {
	if err := validateReadingRequest(req); err != nil {
		return nil, err
	}

	parcel, err := s.parcels.GetByID(ctx, scope, parcelID)
	if err != nil {
		return nil, err
	}
	if parcel.Status != models.ParcelActive {
		return nil, fmt.Errorf("parcel %s is not active: %w", parcelID, models.ErrValidation)
	}

	tenant, err := s.tenants.GetByID(ctx, scope, parcel.TenantID)
	if err != nil {
		return nil, err
	}

	unlock := s.parcelLocks.Lock(parcelID.String())
	defer unlock()

	baseline, err := s.readings.GetLatestBefore(ctx, parcelID, req.PeriodDate)
	if err != nil {
		return nil, err
	}

	reading := &models.Reading{
		ParcelID:         parcelID,
		PeriodDate:       req.PeriodDate,
		MeanNDVI:         req.MeanNDVI,
		MinNDVI:          req.MinNDVI,
		MaxNDVI:          req.MaxNDVI,
		StdNDVI:          req.StdNDVI,
		CloudCoverPct:    req.CloudCoverPct,
		ValidPixelPct:    req.ValidPixelPct,
		ObservationCount: req.ObservationCount,
	}

	switch s.duplicatePolicy {
	case models.DuplicateUpsert:
		err = s.readings.Upsert(ctx, reading)
	default:
		err = s.readings.Insert(ctx, reading)
	}
	if err != nil {
		return nil, err
	}

	detections := s.detector.Detect(DetectionInput{
		Tenant:       tenant,
		Parcel:       parcel,
		Previous:     baseline,
		Current:      reading,
		FireHotspots: fireHotspots,
	})

	health := classifyHealth(reading.MeanNDVI, len(detections) > 0)
	now := time.Now().Unix()
	if err := s.parcels.UpdateSnapshot(ctx, parcelID, reading.MeanNDVI, health, now); err != nil {
		return nil, err
	}

	result := &IngestResult{Reading: reading}
	for _, det := range detections {
		alert, created, err := s.alertSvc.HandleDetection(ctx, tenant, parcel, det, req.EvidenceURLs)
		if err != nil {
			// The reading is already accepted; a failed alert write must not
			// unwind it. Surface the failure and keep going.
			slog.Error("failed to handle detection", "parcel_id", parcelID,
				"type", det.Type, "error", err)
			continue
		}
		result.Alerts = append(result.Alerts, alert)
		if created {
			result.CreatedAlerts++
		}
	}

	s.dashboard.InvalidateTenant(ctx, tenant.ID)
	return result, nil
}

// History returns the reading time series for a parcel, newest first.
func (s *ReadingService) History(ctx context.Context, scope models.AccessScope, parcelID uuid.UUID, limit int) ([]models.Reading, error) {
	if _, err := s.parcels.GetByID(ctx, scope, parcelID); err != nil {
		return nil, err
	}
	return s.readings.ListByParcel(ctx, parcelID, limit)
}

func validateReadingRequest(req *models.SubmitReadingRequest) error {
	if _, err := time.Parse("2006-01-02", req.PeriodDate); err != nil {
		return fmt.Errorf("period_date must be YYYY-MM-DD: %w", models.ErrValidation)
	}
	if req.MeanNDVI < -1 || req.MeanNDVI > 1 {
		return fmt.Errorf("mean_ndvi must be within [-1, 1]: %w", models.ErrValidation)
	}
	if req.CloudCoverPct < 0 || req.CloudCoverPct > 100 {
		return fmt.Errorf("cloud_cover_pct must be within [0, 100]: %w", models.ErrValidation)
	}
	if req.ValidPixelPct < 0 || req.ValidPixelPct > 100 {
		return fmt.Errorf("valid_pixel_pct must be within [0, 100]: %w", models.ErrValidation)
	}
	if req.ObservationCount < 0 {
		return fmt.Errorf("observation_count must be >= 0: %w", models.ErrValidation)
	}
	return nil
}

// classifyHealth derives the parcel snapshot status from the latest index
// value. Any active detection pins the parcel to alert.
func classifyHealth(meanNDVI float64, anomaly bool) models.HealthStatus {
	if anomaly {
		return models.HealthAlert
	}
	if meanNDVI >= 0.4 {
		return models.HealthHealthy
	}
	return models.HealthWarning
}
