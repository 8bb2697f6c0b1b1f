package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/knulata/satteli/internal/models"
)

// ParcelObservation is what the imagery provider reports for one parcel in
// one scan period.
type ParcelObservation struct {
	Reading      models.SubmitReadingRequest
	FireHotspots int
}

// ImagerySource fetches and summarizes satellite imagery for a parcel.
// Implementations talk to the external analysis provider.
type ImagerySource interface {
	Observe(ctx context.Context, parcel *models.Parcel, periodDate string) (*ParcelObservation, error)
}

// ScanService runs batch passes over the active tenant cohort: one imagery
// observation per active parcel, pushed through the ingest pipeline. One
// parcel failing never stops the pass; failures are counted and the pass
// carries on.
type ScanService struct {
	scanRuns   ScanRunStore
	tenants    TenantStore
	parcels    ParcelStore
	readingSvc *ReadingService
	imagery    ImagerySource
	runner     JobRunner

	running atomic.Bool
}

func NewScanService(scanRuns ScanRunStore, tenants TenantStore, parcels ParcelStore, readingSvc *ReadingService, imagery ImagerySource, runner JobRunner) *ScanService {
	return &ScanService{
		scanRuns:   scanRuns,
		tenants:    tenants,
		parcels:    parcels,
		readingSvc: readingSvc,
		imagery:    imagery,
		runner:     runner,
	}
}

// RunScan executes one batch pass and returns its closed provenance record.
// Only one pass runs at a time; a second trigger while one is in flight is
// rejected.
func (s *ScanService) RunScan(ctx context.Context, trigger models.ScanTrigger, tenantID *uuid.UUID) (*models.ScanRun, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("a scan is already in progress: %w", models.ErrValidation)
	}
	defer s.running.Store(false)

	scope := models.ServiceScope("batch-scanner")
	run := &models.ScanRun{Trigger: trigger}
	if err := s.scanRuns.Open(ctx, run); err != nil {
		return nil, err
	}

	cohort, err := s.scanCohort(ctx, scope, tenantID)
	if err != nil {
		return s.closeFailed(ctx, run, err)
	}

	periodDate := time.Now().UTC().Format("2006-01-02")

	var (
		wg              sync.WaitGroup
		parcelsScanned  atomic.Int64
		parcelsFailed   atomic.Int64
		alertsGenerated atomic.Int64

		hectaresMu sync.Mutex
		hectares   float64
	)

	addHectares := func(ha float64) {
		hectaresMu.Lock()
		hectares += ha
		hectaresMu.Unlock()
	}

	canceled := false

cohortLoop:
	for _, tenant := range cohort {
		parcels, err := s.parcels.ListActiveByTenant(ctx, scope, tenant.ID)
		if err != nil {
			slog.Error("failed to list parcels for scan", "tenant_id", tenant.ID, "error", err)
			continue
		}
		run.TenantsScanned++

		for i := range parcels {
			if ctx.Err() != nil {
				canceled = true
				break cohortLoop
			}

			parcel := parcels[i]
			wg.Add(1)
			job := func(jobCtx context.Context) error {
				defer wg.Done()
				if err := s.scanParcel(jobCtx, scope, &parcel, periodDate, &alertsGenerated); err != nil {
					parcelsFailed.Add(1)
					slog.Error("parcel scan failed", "parcel_id", parcel.ID, "error", err)
					return err
				}
				parcelsScanned.Add(1)
				addHectares(parcel.AreaHa)
				return nil
			}

			if s.runner != nil {
				if err := s.runner.SubmitJob(job); err == nil {
					continue
				}
			}
			// Pool unavailable or saturated; run inline.
			_ = job(ctx)
		}
	}

	wg.Wait()

	run.ParcelsScanned = int(parcelsScanned.Load())
	run.ParcelsFailed = int(parcelsFailed.Load())
	run.AlertsGenerated = int(alertsGenerated.Load())
	hectaresMu.Lock()
	run.ProcessingUnits = estimateProcessingUnits(hectares)
	hectaresMu.Unlock()

	if canceled {
		return s.closeFailed(ctx, run, ctx.Err())
	}

	run.Status = models.ScanCompleted
	if err := s.scanRuns.Close(context.WithoutCancel(ctx), run); err != nil {
		return nil, err
	}

	slog.Info("scan completed", "scan_run_id", run.ID, "trigger", trigger,
		"tenants", run.TenantsScanned, "parcels", run.ParcelsScanned,
		"failed", run.ParcelsFailed, "alerts", run.AlertsGenerated,
		"processing_units", run.ProcessingUnits)
	return run, nil
}

func (s *ScanService) scanCohort(ctx context.Context, scope models.AccessScope, tenantID *uuid.UUID) ([]models.Tenant, error) {
	if tenantID != nil {
		tenant, err := s.tenants.GetByID(ctx, scope, *tenantID)
		if err != nil {
			return nil, err
		}
		if tenant.Status != models.TenantActive {
			return nil, fmt.Errorf("tenant %s is not active: %w", *tenantID, models.ErrValidation)
		}
		return []models.Tenant{*tenant}, nil
	}
	return s.tenants.GetActive(ctx, scope)
}

func (s *ScanService) scanParcel(ctx context.Context, scope models.AccessScope, parcel *models.Parcel, periodDate string, alertsGenerated *atomic.Int64) error {
	obs, err := s.imagery.Observe(ctx, parcel, periodDate)
	if err != nil {
		return fmt.Errorf("failed to observe parcel %s: %w", parcel.ID, err)
	}

	result, err := s.readingSvc.SubmitObservation(ctx, scope, parcel.ID, &obs.Reading, obs.FireHotspots)
	if err != nil {
		return err
	}
	alertsGenerated.Add(int64(result.CreatedAlerts))
	return nil
}

func (s *ScanService) closeFailed(ctx context.Context, run *models.ScanRun, cause error) (*models.ScanRun, error) {
	run.Status = models.ScanFailed
	if cause != nil {
		detail := cause.Error()
		run.ErrorDetail = &detail
	}
	if err := s.scanRuns.Close(context.WithoutCancel(ctx), run); err != nil {
		slog.Error("failed to close scan run", "scan_run_id", run.ID, "error", err)
	}
	return run, cause
}

func (s *ScanService) GetRun(ctx context.Context, id uuid.UUID) (*models.ScanRun, error) {
	return s.scanRuns.GetByID(ctx, id)
}

func (s *ScanService) ListRecentRuns(ctx context.Context, limit int) ([]models.ScanRun, error) {
	return s.scanRuns.ListRecent(ctx, limit)
}

// estimateProcessingUnits converts scanned hectares to provider processing
// units: imagery is billed per km2 at 0.8 PU for the two bands fetched.
func estimateProcessingUnits(totalHectares float64) float64 {
	return totalHectares / 100 * 0.8 * 2
}
