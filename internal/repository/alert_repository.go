package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/knulata/satteli/internal/models"
)

type AlertRepository struct {
	db *sqlx.DB
}

func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

type alertRow struct {
	models.Alert
	CentroidWKB []byte `db:"centroid_wkb"`
}

const alertSelectColumns = `
	id, tenant_id, parcel_id, type, severity, status, title, description,
	affected_area_ha, evidence_urls, detection_method, confidence_score,
	detected_at, acknowledged_by, acknowledged_at, resolved_by, resolved_at,
	resolution_note, created_at, updated_at,
	ST_AsBinary(centroid) as centroid_wkb`

func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.Status == "" {
		alert.Status = models.AlertNew
	}
	alert.CreatedAt = time.Now()
	alert.UpdatedAt = time.Now()

	query := `
		INSERT INTO alert (
			id, tenant_id, parcel_id, type, severity, status, title, description,
			affected_area_ha, centroid, evidence_urls, detection_method,
			confidence_score, detected_at, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :parcel_id, :type, :severity, :status, :title, :description,
			:affected_area_ha, ST_GeomFromText(:centroid), :evidence_urls, :detection_method,
			:confidence_score, :detected_at, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (r *AlertRepository) GetByID(ctx context.Context, scope models.AccessScope, id uuid.UUID) (*models.Alert, error) {
	query := `SELECT ` + alertSelectColumns + ` FROM alert WHERE id = $1`
	args := []any{id}
	if !scope.Service {
		query += ` AND tenant_id = $2`
		args = append(args, scope.TenantID)
	}

	var row alertRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	alert := row.Alert
	if err := unmarshalAlertCentroid(&row, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

// FindOpenByParcelAndType returns the open alert for (parcel, type), or nil
// when none exists. At most one open alert per pair is allowed; the partial
// unique index enforces it.
func (r *AlertRepository) FindOpenByParcelAndType(ctx context.Context, parcelID uuid.UUID, alertType models.AlertType) (*models.Alert, error) {
	query := `SELECT ` + alertSelectColumns + `
		FROM alert
		WHERE parcel_id = $1 AND type = $2
		  AND status IN ('new', 'acknowledged', 'investigating')
		LIMIT 1`

	var row alertRow
	err := r.db.GetContext(ctx, &row, query, parcelID, alertType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open alert: %w", err)
	}

	alert := row.Alert
	if err := unmarshalAlertCentroid(&row, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

// Extend folds a fresh detection into an existing open alert: severity only
// escalates, detected_at advances, evidence accumulates.
func (r *AlertRepository) Extend(ctx context.Context, alert *models.Alert) error {
	alert.UpdatedAt = time.Now()

	query := `
		UPDATE alert SET
			severity = :severity, description = :description,
			affected_area_ha = :affected_area_ha,
			evidence_urls = :evidence_urls, confidence_score = :confidence_score,
			detected_at = :detected_at, updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, alert)
	if err != nil {
		return fmt.Errorf("failed to extend alert: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("alert %s: %w", alert.ID, models.ErrNotFound)
	}
	return nil
}

// UpdateStatus persists a lifecycle transition with its audit fields. The
// WHERE clause pins the expected current status so concurrent transitions
// cannot both apply.
func (r *AlertRepository) UpdateStatus(ctx context.Context, alert *models.Alert, from models.AlertStatus) error {
	alert.UpdatedAt = time.Now()

	query := `
		UPDATE alert SET
			status = $1, acknowledged_by = $2, acknowledged_at = $3,
			resolved_by = $4, resolved_at = $5, resolution_note = $6, updated_at = $7
		WHERE id = $8 AND status = $9`

	result, err := r.db.ExecContext(ctx, query,
		alert.Status, alert.AcknowledgedBy, alert.AcknowledgedAt,
		alert.ResolvedBy, alert.ResolvedAt, alert.ResolutionNote, alert.UpdatedAt,
		alert.ID, from)
	if err != nil {
		return fmt.Errorf("failed to update alert status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("alert %s moved concurrently: %w", alert.ID, models.ErrInvalidTransition)
	}
	return nil
}

// ListOpenByTenant returns open alerts for a tenant, most recent detection
// first, joined with parcel and tenant display names.
func (r *AlertRepository) ListOpenByTenant(ctx context.Context, scope models.AccessScope, tenantID uuid.UUID, limit int) ([]models.AlertListItem, error) {
	if !scope.Allows(tenantID) {
		return nil, fmt.Errorf("tenant %s alerts: %w", tenantID, models.ErrNotFound)
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT a.id, a.tenant_id, a.parcel_id, a.type, a.severity, a.status,
		       a.title, a.description, a.affected_area_ha, a.evidence_urls,
		       a.detection_method, a.confidence_score, a.detected_at,
		       a.acknowledged_by, a.acknowledged_at, a.resolved_by, a.resolved_at,
		       a.resolution_note, a.created_at, a.updated_at,
		       ST_AsBinary(a.centroid) as centroid_wkb,
		       p.name as parcel_name, t.name as tenant_name
		FROM alert a
		JOIN tenant t ON t.id = a.tenant_id
		LEFT JOIN parcel p ON p.id = a.parcel_id
		WHERE a.tenant_id = $1
		  AND a.status IN ('new', 'acknowledged', 'investigating')
		ORDER BY a.detected_at DESC
		LIMIT $2`

	type listRow struct {
		alertRow
		ParcelName *string `db:"parcel_name"`
		TenantName string  `db:"tenant_name"`
	}

	var rows []listRow
	if err := r.db.SelectContext(ctx, &rows, query, tenantID, limit); err != nil {
		return nil, fmt.Errorf("failed to list open alerts: %w", err)
	}

	items := make([]models.AlertListItem, 0, len(rows))
	for i := range rows {
		alert := rows[i].Alert
		if err := unmarshalAlertCentroid(&rows[i].alertRow, &alert); err != nil {
			return nil, err
		}
		items = append(items, models.AlertListItem{
			Alert:      alert,
			ParcelName: rows[i].ParcelName,
			TenantName: rows[i].TenantName,
		})
	}
	return items, nil
}

func unmarshalAlertCentroid(row *alertRow, alert *models.Alert) error {
	if len(row.CentroidWKB) == 0 {
		return nil
	}
	centroidGeom, err := wkb.Unmarshal(row.CentroidWKB)
	if err != nil {
		return fmt.Errorf("unmarshal centroid: %w", err)
	}
	point, ok := centroidGeom.(*geom.Point)
	if !ok {
		return fmt.Errorf("centroid is not a Point")
	}
	coords := point.Coords()
	alert.Centroid = models.NewGeoJSONPoint(coords.X(), coords.Y())
	return nil
}
