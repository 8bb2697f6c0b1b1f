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
	"github.com/knulata/satteli/utils"
)

type ParcelRepository struct {
	db *sqlx.DB
}

func NewParcelRepository(db *sqlx.DB) *ParcelRepository {
	return &ParcelRepository{db: db}
}

type parcelRow struct {
	models.Parcel
	BoundaryWKB []byte `db:"boundary_wkb"`
	CentroidWKB []byte `db:"centroid_wkb"`
}

const parcelSelectColumns = `
	id, tenant_id, name, parcel_code, area_ha, status,
	health_status, current_ndvi, last_scan_at, last_alert_at,
	created_at, updated_at,
	ST_AsBinary(boundary) as boundary_wkb,
	ST_AsBinary(centroid) as centroid_wkb`

// CreateWithAggregate inserts the parcel and recomputes the owning tenant's
// total monitored area in one transaction, so no reader observes the parcel
// without the aggregate update. Callers serialize per tenant.
func (r *ParcelRepository) CreateWithAggregate(ctx context.Context, parcel *models.Parcel) error {
	if parcel.ID == uuid.Nil {
		parcel.ID = uuid.New()
	}
	if parcel.Status == "" {
		parcel.Status = models.ParcelActive
	}
	if parcel.HealthStatus == "" {
		parcel.HealthStatus = models.HealthUnknown
	}
	parcel.CreatedAt = time.Now()
	parcel.UpdatedAt = time.Now()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO parcel (
			id, tenant_id, name, parcel_code,
			boundary, centroid, area_ha, status,
			health_status, current_ndvi, last_scan_at, last_alert_at,
			created_at, updated_at
		) VALUES (
			:id, :tenant_id, :name, :parcel_code,
			ST_GeomFromText(:boundary), ST_GeomFromText(:centroid), :area_ha, :status,
			:health_status, :current_ndvi, :last_scan_at, :last_alert_at,
			:created_at, :updated_at
		)`

	if _, err := tx.NamedExecContext(ctx, query, parcel); err != nil {
		return fmt.Errorf("failed to create parcel: %w", err)
	}

	if err := recomputeTenantAreaTx(ctx, tx, parcel.TenantID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit parcel create: %w", err)
	}
	return nil
}

// UpdateWithAggregate persists a parcel mutation and recomputes the owning
// tenant's total area in the same transaction.
func (r *ParcelRepository) UpdateWithAggregate(ctx context.Context, parcel *models.Parcel) error {
	parcel.UpdatedAt = time.Now()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE parcel SET
			name = :name, parcel_code = :parcel_code,
			boundary = ST_GeomFromText(:boundary), centroid = ST_GeomFromText(:centroid),
			area_ha = :area_ha, status = :status,
			health_status = :health_status, current_ndvi = :current_ndvi,
			last_scan_at = :last_scan_at, last_alert_at = :last_alert_at,
			updated_at = :updated_at
		WHERE id = :id AND tenant_id = :tenant_id`

	result, err := tx.NamedExecContext(ctx, query, parcel)
	if err != nil {
		return fmt.Errorf("failed to update parcel: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("parcel %s: %w", parcel.ID, models.ErrNotFound)
	}

	if err := recomputeTenantAreaTx(ctx, tx, parcel.TenantID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit parcel update: %w", err)
	}
	return nil
}

// DeleteWithAggregate soft-deletes the parcel and recomputes the tenant
// aggregate transactionally.
func (r *ParcelRepository) DeleteWithAggregate(ctx context.Context, scope models.AccessScope, id uuid.UUID) error {
	parcel, err := r.GetByID(ctx, scope, id)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE parcel SET status = 'deleted', updated_at = $1 WHERE id = $2`
	if _, err := tx.ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("failed to delete parcel: %w", err)
	}

	if err := recomputeTenantAreaTx(ctx, tx, parcel.TenantID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit parcel delete: %w", err)
	}
	return nil
}

// recomputeTenantAreaTx rewrites the tenant aggregate from its source rows.
// Recompute-from-source, never increment, so concurrent parcel changes can
// not produce a partial aggregate.
func recomputeTenantAreaTx(ctx context.Context, tx *sqlx.Tx, tenantID uuid.UUID) error {
	query := `
		UPDATE tenant
		SET total_area_ha = COALESCE((
			SELECT SUM(area_ha) FROM parcel
			WHERE tenant_id = $1 AND status = 'active'
		), 0), updated_at = $2
		WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, tenantID, time.Now()); err != nil {
		return fmt.Errorf("failed to recompute tenant area: %w", err)
	}
	return nil
}

func (r *ParcelRepository) GetByID(ctx context.Context, scope models.AccessScope, id uuid.UUID) (*models.Parcel, error) {
	query := `SELECT ` + parcelSelectColumns + ` FROM parcel WHERE id = $1`
	args := []any{id}
	if !scope.Service {
		query += ` AND tenant_id = $2`
		args = append(args, scope.TenantID)
	}

	var row parcelRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("parcel %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get parcel: %w", err)
	}

	parcel := row.Parcel
	if err := unmarshalParcelGeometry(&row, &parcel); err != nil {
		return nil, err
	}
	return &parcel, nil
}

func (r *ParcelRepository) ListByTenant(ctx context.Context, scope models.AccessScope, tenantID uuid.UUID) ([]models.Parcel, error) {
	if !scope.Allows(tenantID) {
		return nil, fmt.Errorf("tenant %s parcels: %w", tenantID, models.ErrNotFound)
	}

	query := `SELECT ` + parcelSelectColumns + `
		FROM parcel
		WHERE tenant_id = $1 AND status != 'deleted'
		ORDER BY created_at DESC`

	var rows []parcelRow
	if err := r.db.SelectContext(ctx, &rows, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list parcels: %w", err)
	}

	parcels := make([]models.Parcel, 0, len(rows))
	for i := range rows {
		parcel := rows[i].Parcel
		if err := unmarshalParcelGeometry(&rows[i], &parcel); err != nil {
			return nil, err
		}
		parcels = append(parcels, parcel)
	}
	return parcels, nil
}

// ListActiveByTenant feeds the batch scanner. Service scope only.
func (r *ParcelRepository) ListActiveByTenant(ctx context.Context, scope models.AccessScope, tenantID uuid.UUID) ([]models.Parcel, error) {
	if !scope.Service {
		return nil, fmt.Errorf("listing scan cohort: %w", models.ErrForbidden)
	}

	query := `SELECT ` + parcelSelectColumns + `
		FROM parcel
		WHERE tenant_id = $1 AND status = 'active'
		ORDER BY created_at`

	var rows []parcelRow
	if err := r.db.SelectContext(ctx, &rows, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list active parcels: %w", err)
	}

	parcels := make([]models.Parcel, 0, len(rows))
	for i := range rows {
		parcel := rows[i].Parcel
		if err := unmarshalParcelGeometry(&rows[i], &parcel); err != nil {
			return nil, err
		}
		parcels = append(parcels, parcel)
	}
	return parcels, nil
}

// UpdateSnapshot refreshes the parcel's current-index snapshot after an
// accepted reading.
func (r *ParcelRepository) UpdateSnapshot(ctx context.Context, id uuid.UUID, currentNDVI float64, health models.HealthStatus, scannedAt int64) error {
	query := `
		UPDATE parcel
		SET current_ndvi = $1, health_status = $2, last_scan_at = $3, updated_at = $4
		WHERE id = $5`
	err := utils.ExecWithCheck(ctx, r.db, query, utils.ExecUpdate, currentNDVI, health, scannedAt, time.Now(), id)
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return fmt.Errorf("parcel %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update parcel snapshot: %w", err)
	}
	return nil
}

// MarkAlerted stamps the parcel's last-alert timestamp and flips its health
// to alert.
func (r *ParcelRepository) MarkAlerted(ctx context.Context, id uuid.UUID, alertedAt int64) error {
	query := `
		UPDATE parcel
		SET last_alert_at = $1, health_status = 'alert', updated_at = $2
		WHERE id = $3`
	err := utils.ExecWithCheck(ctx, r.db, query, utils.ExecUpdate, alertedAt, time.Now(), id)
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return fmt.Errorf("parcel %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to mark parcel alerted: %w", err)
	}
	return nil
}

func unmarshalParcelGeometry(row *parcelRow, parcel *models.Parcel) error {
	if len(row.BoundaryWKB) > 0 {
		boundaryGeom, err := wkb.Unmarshal(row.BoundaryWKB)
		if err != nil {
			return fmt.Errorf("unmarshal boundary: %w", err)
		}
		poly, ok := boundaryGeom.(*geom.Polygon)
		if !ok {
			return fmt.Errorf("boundary is not a Polygon")
		}

		coords := make([][][]float64, poly.NumLinearRings())
		for i := 0; i < poly.NumLinearRings(); i++ {
			ring := poly.LinearRing(i)
			ringCoords := make([][]float64, ring.NumCoords())
			for j := 0; j < ring.NumCoords(); j++ {
				coord := ring.Coord(j)
				ringCoords[j] = []float64{coord.X(), coord.Y()}
			}
			coords[i] = ringCoords
		}

		parcel.Boundary = &models.GeoJSONPolygon{
			Type:        "Polygon",
			Coordinates: coords,
		}
	}

	if len(row.CentroidWKB) > 0 {
		centroidGeom, err := wkb.Unmarshal(row.CentroidWKB)
		if err != nil {
			return fmt.Errorf("unmarshal centroid: %w", err)
		}
		point, ok := centroidGeom.(*geom.Point)
		if !ok {
			return fmt.Errorf("centroid is not a Point")
		}

		pointCoords := point.Coords()
		parcel.Centroid = models.NewGeoJSONPoint(pointCoords.X(), pointCoords.Y())
	}

	return nil
}
