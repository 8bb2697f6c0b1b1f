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
)

type ScanRunRepository struct {
	db *sqlx.DB
}

func NewScanRunRepository(db *sqlx.DB) *ScanRunRepository {
	return &ScanRunRepository{db: db}
}

// Open records the start of a batch pass.
func (r *ScanRunRepository) Open(ctx context.Context, run *models.ScanRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.Status = models.ScanRunning
	run.StartedAt = time.Now()

	query := `
		INSERT INTO scan_run (
			id, trigger, status, tenants_scanned, parcels_scanned,
			parcels_failed, alerts_generated, processing_units, started_at
		) VALUES (
			:id, :trigger, :status, :tenants_scanned, :parcels_scanned,
			:parcels_failed, :alerts_generated, :processing_units, :started_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("failed to open scan run: %w", err)
	}
	return nil
}

// Close writes the final counters and terminal status for a finished pass.
func (r *ScanRunRepository) Close(ctx context.Context, run *models.ScanRun) error {
	now := time.Now()
	run.FinishedAt = &now

	query := `
		UPDATE scan_run SET
			status = :status, tenants_scanned = :tenants_scanned,
			parcels_scanned = :parcels_scanned, parcels_failed = :parcels_failed,
			alerts_generated = :alerts_generated, processing_units = :processing_units,
			error_detail = :error_detail, finished_at = :finished_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, run)
	if err != nil {
		return fmt.Errorf("failed to close scan run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("scan run %s: %w", run.ID, models.ErrNotFound)
	}
	return nil
}

func (r *ScanRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ScanRun, error) {
	var run models.ScanRun
	query := `SELECT * FROM scan_run WHERE id = $1`
	err := r.db.GetContext(ctx, &run, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("scan run %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get scan run: %w", err)
	}
	return &run, nil
}

// ListRecent returns the latest passes for the operator view.
func (r *ScanRunRepository) ListRecent(ctx context.Context, limit int) ([]models.ScanRun, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []models.ScanRun
	query := `SELECT * FROM scan_run ORDER BY started_at DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list scan runs: %w", err)
	}
	return runs, nil
}
