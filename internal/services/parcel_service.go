package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/knulata/satteli/internal/models"
	"github.com/knulata/satteli/utils"
)

// ParcelService manages the monitored-parcel registry. Parcel mutations and
// the tenant's total-area aggregate change together: the store methods run
// both in one transaction and tenantLocks serializes writers per tenant.
type ParcelService struct {
	parcels     ParcelStore
	tenants     TenantStore
	geometry    *GeometryProcessor
	dashboard   *DashboardService
	tenantLocks *utils.KeyedMutex
}

func NewParcelService(parcels ParcelStore, tenants TenantStore, geometry *GeometryProcessor, dashboard *DashboardService) *ParcelService {
	return &ParcelService{
		parcels:     parcels,
		tenants:     tenants,
		geometry:    geometry,
		dashboard:   dashboard,
		tenantLocks: utils.NewKeyedMutex(),
	}
}

func (s *ParcelService) Create(ctx context.Context, scope models.AccessScope, tenantID uuid.UUID, req *models.CreateParcelRequest) (*models.Parcel, error) {
	if !scope.Allows(tenantID) {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, models.ErrNotFound)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("parcel name is required: %w", models.ErrValidation)
	}
	if req.Boundary == nil {
		return nil, fmt.Errorf("parcel boundary is required: %w", models.ErrValidation)
	}

	tenant, err := s.tenants.GetByID(ctx, scope, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.Status != models.TenantActive {
		return nil, fmt.Errorf("tenant %s is not active: %w", tenantID, models.ErrValidation)
	}

	areaHa, centroid, err := s.geometry.ComputeFacts(req.Boundary)
	if err != nil {
		return nil, err
	}

	code := fmt.Sprintf("PRC-%s", strings.ToUpper(utils.GenerateRandomStringWithLength(8)))
	parcel := &models.Parcel{
		TenantID:     tenantID,
		Name:         strings.TrimSpace(req.Name),
		ParcelCode:   &code,
		Boundary:     req.Boundary,
		Centroid:     centroid,
		AreaHa:       areaHa,
		Status:       models.ParcelActive,
		HealthStatus: models.HealthUnknown,
	}

	unlock := s.tenantLocks.Lock(tenantID.String())
	defer unlock()

	if err := s.parcels.CreateWithAggregate(ctx, parcel); err != nil {
		return nil, err
	}

	s.dashboard.InvalidateTenant(ctx, tenantID)
	slog.Info("parcel created", "parcel_id", parcel.ID, "tenant_id", tenantID, "area_ha", areaHa)
	return parcel, nil
}

func (s *ParcelService) Update(ctx context.Context, scope models.AccessScope, id uuid.UUID, req *models.UpdateParcelRequest) (*models.Parcel, error) {
	parcel, err := s.parcels.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if parcel.Status == models.ParcelDeleted {
		return nil, fmt.Errorf("parcel %s: %w", id, models.ErrNotFound)
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, fmt.Errorf("parcel name cannot be empty: %w", models.ErrValidation)
		}
		parcel.Name = strings.TrimSpace(*req.Name)
	}
	if req.Status != nil {
		if *req.Status != models.ParcelActive && *req.Status != models.ParcelPaused {
			return nil, fmt.Errorf("status must be active or paused: %w", models.ErrValidation)
		}
		parcel.Status = *req.Status
	}
	if req.Boundary != nil {
		areaHa, centroid, err := s.geometry.ComputeFacts(req.Boundary)
		switch {
		case errors.Is(err, models.ErrInvalidGeometry):
			// Keep the stored boundary, area and centroid; the rest of the
			// update still applies.
			slog.Warn("ignoring malformed boundary on parcel update", "parcel_id", id, "error", err)
		case err != nil:
			return nil, err
		default:
			parcel.Boundary = req.Boundary
			parcel.Centroid = centroid
			parcel.AreaHa = areaHa
		}
	}

	unlock := s.tenantLocks.Lock(parcel.TenantID.String())
	defer unlock()

	if err := s.parcels.UpdateWithAggregate(ctx, parcel); err != nil {
		return nil, err
	}

	s.dashboard.InvalidateTenant(ctx, parcel.TenantID)
	return parcel, nil
}

func (s *ParcelService) Delete(ctx context.Context, scope models.AccessScope, id uuid.UUID) error {
	parcel, err := s.parcels.GetByID(ctx, scope, id)
	if err != nil {
		return err
	}

	unlock := s.tenantLocks.Lock(parcel.TenantID.String())
	defer unlock()

	if err := s.parcels.DeleteWithAggregate(ctx, scope, id); err != nil {
		return err
	}

	s.dashboard.InvalidateTenant(ctx, parcel.TenantID)
	slog.Info("parcel deleted", "parcel_id", id, "tenant_id", parcel.TenantID)
	return nil
}

func (s *ParcelService) Get(ctx context.Context, scope models.AccessScope, id uuid.UUID) (*models.Parcel, error) {
	return s.parcels.GetByID(ctx, scope, id)
}

func (s *ParcelService) List(ctx context.Context, scope models.AccessScope, tenantID uuid.UUID) ([]models.Parcel, error) {
	return s.parcels.ListByTenant(ctx, scope, tenantID)
}
