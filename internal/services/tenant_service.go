package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/knulata/satteli/internal/models"
)

type TenantService struct {
	tenants   TenantStore
	dashboard *DashboardService
}

func NewTenantService(tenants TenantStore, dashboard *DashboardService) *TenantService {
	return &TenantService{tenants: tenants, dashboard: dashboard}
}

type RegisterTenantRequest struct {
	Name                         string  `json:"name"`
	Email                        *string `json:"email,omitempty"`
	Phone                        *string `json:"phone,omitempty"`
	DeforestationAreaThresholdHa float64 `json:"deforestation_area_threshold_ha"`
	NDVIChangeThreshold          float64 `json:"ndvi_change_threshold"`
	NotifyWhatsApp               bool    `json:"notify_whatsapp"`
	NotifyEmail                  bool    `json:"notify_email"`
	NotifySMS                    bool    `json:"notify_sms"`
}

func (s *TenantService) Register(ctx context.Context, req *RegisterTenantRequest) (*models.Tenant, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("tenant name is required: %w", models.ErrValidation)
	}
	if req.DeforestationAreaThresholdHa < 0 || req.NDVIChangeThreshold < 0 {
		return nil, fmt.Errorf("thresholds must be >= 0: %w", models.ErrValidation)
	}
	if req.NotifyEmail && (req.Email == nil || *req.Email == "") {
		return nil, fmt.Errorf("email channel enabled without an email address: %w", models.ErrValidation)
	}
	if (req.NotifyWhatsApp || req.NotifySMS) && (req.Phone == nil || *req.Phone == "") {
		return nil, fmt.Errorf("phone channel enabled without a phone number: %w", models.ErrValidation)
	}

	tenant := &models.Tenant{
		Name:                         strings.TrimSpace(req.Name),
		Email:                        req.Email,
		Phone:                        req.Phone,
		Status:                       models.TenantActive,
		DeforestationAreaThresholdHa: req.DeforestationAreaThresholdHa,
		NDVIChangeThreshold:          req.NDVIChangeThreshold,
		NotifyWhatsApp:               req.NotifyWhatsApp,
		NotifyEmail:                  req.NotifyEmail,
		NotifySMS:                    req.NotifySMS,
	}

	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, err
	}

	slog.Info("tenant registered", "tenant_id", tenant.ID, "name", tenant.Name)
	return tenant, nil
}

func (s *TenantService) Get(ctx context.Context, scope models.AccessScope, id uuid.UUID) (*models.Tenant, error) {
	return s.tenants.GetByID(ctx, scope, id)
}

func (s *TenantService) UpdateThresholds(ctx context.Context, scope models.AccessScope, id uuid.UUID, areaThresholdHa, ndviChangeThreshold float64) (*models.Tenant, error) {
	if err := s.tenants.UpdateThresholds(ctx, scope, id, areaThresholdHa, ndviChangeThreshold); err != nil {
		return nil, err
	}
	slog.Info("tenant thresholds updated", "tenant_id", id,
		"area_threshold_ha", areaThresholdHa, "ndvi_change_threshold", ndviChangeThreshold)
	return s.tenants.GetByID(ctx, scope, id)
}

func (s *TenantService) Deactivate(ctx context.Context, scope models.AccessScope, id uuid.UUID) error {
	if err := s.tenants.Deactivate(ctx, scope, id); err != nil {
		return err
	}
	s.dashboard.InvalidateTenant(ctx, id)
	slog.Info("tenant deactivated", "tenant_id", id)
	return nil
}
