package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/knulata/satteli/internal/models"
	"github.com/knulata/satteli/utils"
)

type TenantRepository struct {
	db *sqlx.DB
}

func NewTenantRepository(db *sqlx.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	if tenant.Status == "" {
		tenant.Status = models.TenantActive
	}
	tenant.CreatedAt = time.Now()
	tenant.UpdatedAt = time.Now()

	query := `
		INSERT INTO tenant (
			id, name, email, phone, status, total_area_ha,
			deforestation_area_threshold_ha, ndvi_change_threshold,
			notify_whatsapp, notify_email, notify_sms,
			created_at, updated_at
		) VALUES (
			:id, :name, :email, :phone, :status, :total_area_ha,
			:deforestation_area_threshold_ha, :ndvi_change_threshold,
			:notify_whatsapp, :notify_email, :notify_sms,
			:created_at, :updated_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, tenant)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) GetByID(ctx context.Context, scope models.AccessScope, id uuid.UUID) (*models.Tenant, error) {
	if !scope.Allows(id) {
		return nil, fmt.Errorf("tenant %s: %w", id, models.ErrNotFound)
	}

	var tenant models.Tenant
	query := `SELECT * FROM tenant WHERE id = $1`
	err := r.db.GetContext(ctx, &tenant, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

// GetActive returns all active tenants. Service scope only: this feeds the
// batch scanner cohort.
func (r *TenantRepository) GetActive(ctx context.Context, scope models.AccessScope) ([]models.Tenant, error) {
	if !scope.Service {
		return nil, fmt.Errorf("listing tenants: %w", models.ErrForbidden)
	}

	var tenants []models.Tenant
	query := `SELECT * FROM tenant WHERE status = 'active' ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &tenants, query); err != nil {
		return nil, fmt.Errorf("failed to get active tenants: %w", err)
	}
	return tenants, nil
}

// UpdateThresholds changes a tenant's alerting configuration.
func (r *TenantRepository) UpdateThresholds(ctx context.Context, scope models.AccessScope, id uuid.UUID, areaThresholdHa, ndviChangeThreshold float64) error {
	if !scope.Allows(id) {
		return fmt.Errorf("tenant %s: %w", id, models.ErrNotFound)
	}
	if areaThresholdHa < 0 || ndviChangeThreshold < 0 {
		return fmt.Errorf("thresholds must be >= 0: %w", models.ErrValidation)
	}

	query := `
		UPDATE tenant
		SET deforestation_area_threshold_ha = $1, ndvi_change_threshold = $2, updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, areaThresholdHa, ndviChangeThreshold, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update tenant thresholds: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("tenant %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// Deactivate soft-deactivates a tenant; child rows are kept.
func (r *TenantRepository) Deactivate(ctx context.Context, scope models.AccessScope, id uuid.UUID) error {
	if !scope.Allows(id) {
		return fmt.Errorf("tenant %s: %w", id, models.ErrNotFound)
	}

	query := `UPDATE tenant SET status = 'inactive', updated_at = $1 WHERE id = $2`
	err := utils.ExecWithCheck(ctx, r.db, query, utils.ExecUpdate, time.Now(), id)
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return fmt.Errorf("tenant %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to deactivate tenant: %w", err)
	}
	return nil
}

// DeleteCascade hard-deletes a tenant and everything it owns. Explicit
// administrative action; the schema cascades parcels, readings, alerts and
// notifications.
func (r *TenantRepository) DeleteCascade(ctx context.Context, scope models.AccessScope, id uuid.UUID) error {
	if !scope.Service {
		return fmt.Errorf("tenant cascade delete: %w", models.ErrForbidden)
	}

	query := `DELETE FROM tenant WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	return nil
}
