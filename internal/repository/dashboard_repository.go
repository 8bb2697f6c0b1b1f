package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/knulata/satteli/internal/models"
)

// DashboardRepository derives tenant-facing aggregates directly from the
// source rows. Nothing here is persisted; the service layer caches results.
type DashboardRepository struct {
	db *sqlx.DB
}

func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// GetTenantSummary computes the dashboard aggregate for one tenant in a
// single statement, so the counters are mutually consistent.
func (r *DashboardRepository) GetTenantSummary(ctx context.Context, scope models.AccessScope, tenantID uuid.UUID) (*models.TenantSummary, error) {
	if !scope.Allows(tenantID) {
		return nil, fmt.Errorf("tenant %s summary: %w", tenantID, models.ErrNotFound)
	}

	query := `
		SELECT
			t.id as tenant_id,
			t.total_area_ha,
			COALESCE(p.parcel_count, 0) as parcel_count,
			p.avg_current_ndvi,
			p.last_scan_at,
			p.last_alert_at,
			COALESCE(a.open_alert_count, 0) as open_alert_count,
			COALESCE(a.critical_open_alerts, 0) as critical_open_alerts
		FROM tenant t
		LEFT JOIN (
			SELECT tenant_id,
			       COUNT(*) as parcel_count,
			       AVG(current_ndvi) as avg_current_ndvi,
			       MAX(last_scan_at) as last_scan_at,
			       MAX(last_alert_at) as last_alert_at
			FROM parcel
			WHERE status = 'active'
			GROUP BY tenant_id
		) p ON p.tenant_id = t.id
		LEFT JOIN (
			SELECT tenant_id,
			       COUNT(*) as open_alert_count,
			       COUNT(*) FILTER (WHERE severity = 'critical') as critical_open_alerts
			FROM alert
			WHERE status IN ('new', 'acknowledged', 'investigating')
			GROUP BY tenant_id
		) a ON a.tenant_id = t.id
		WHERE t.id = $1`

	var summary models.TenantSummary
	err := r.db.GetContext(ctx, &summary, query, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant %s summary: %w", tenantID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tenant summary: %w", err)
	}
	return &summary, nil
}
