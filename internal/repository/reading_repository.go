package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/knulata/satteli/internal/models"
)

type ReadingRepository struct {
	db *sqlx.DB
}

func NewReadingRepository(db *sqlx.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// Insert stores a new reading. A second reading for the same (parcel, period)
// trips the unique constraint and surfaces as ErrDuplicateReading.
func (r *ReadingRepository) Insert(ctx context.Context, reading *models.Reading) error {
	if reading.ID == uuid.Nil {
		reading.ID = uuid.New()
	}
	reading.CreatedAt = time.Now()

	query := `
		INSERT INTO ndvi_reading (
			id, parcel_id, period_date, mean_ndvi, min_ndvi, max_ndvi, std_ndvi,
			cloud_cover_pct, valid_pixel_pct, observation_count, created_at
		) VALUES (
			:id, :parcel_id, :period_date, :mean_ndvi, :min_ndvi, :max_ndvi, :std_ndvi,
			:cloud_cover_pct, :valid_pixel_pct, :observation_count, :created_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, reading)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("reading for parcel %s period %s: %w",
				reading.ParcelID, reading.PeriodDate, models.ErrDuplicateReading)
		}
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// Upsert replaces the existing reading for the same (parcel, period) when the
// duplicate policy allows it. The period's identity (id, created_at) is kept
// from the first write.
func (r *ReadingRepository) Upsert(ctx context.Context, reading *models.Reading) error {
	if reading.ID == uuid.Nil {
		reading.ID = uuid.New()
	}
	reading.CreatedAt = time.Now()

	query := `
		INSERT INTO ndvi_reading (
			id, parcel_id, period_date, mean_ndvi, min_ndvi, max_ndvi, std_ndvi,
			cloud_cover_pct, valid_pixel_pct, observation_count, created_at
		) VALUES (
			:id, :parcel_id, :period_date, :mean_ndvi, :min_ndvi, :max_ndvi, :std_ndvi,
			:cloud_cover_pct, :valid_pixel_pct, :observation_count, :created_at
		)
		ON CONFLICT (parcel_id, period_date) DO UPDATE SET
			mean_ndvi = EXCLUDED.mean_ndvi,
			min_ndvi = EXCLUDED.min_ndvi,
			max_ndvi = EXCLUDED.max_ndvi,
			std_ndvi = EXCLUDED.std_ndvi,
			cloud_cover_pct = EXCLUDED.cloud_cover_pct,
			valid_pixel_pct = EXCLUDED.valid_pixel_pct,
			observation_count = EXCLUDED.observation_count`

	if _, err := r.db.NamedExecContext(ctx, query, reading); err != nil {
		return fmt.Errorf("failed to upsert reading: %w", err)
	}
	return nil
}

// GetLatestBefore returns the most recent reading for the parcel strictly
// before periodDate. This is the comparison baseline for change detection;
// nil baseline (no error) means the parcel has no usable history yet.
func (r *ReadingRepository) GetLatestBefore(ctx context.Context, parcelID uuid.UUID, periodDate string) (*models.Reading, error) {
	var reading models.Reading
	query := `
		SELECT * FROM ndvi_reading
		WHERE parcel_id = $1 AND period_date < $2
		ORDER BY period_date DESC
		LIMIT 1`
	err := r.db.GetContext(ctx, &reading, query, parcelID, periodDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get baseline reading: %w", err)
	}
	return &reading, nil
}

// ListByParcel returns the reading history for a parcel, newest first.
func (r *ReadingRepository) ListByParcel(ctx context.Context, parcelID uuid.UUID, limit int) ([]models.Reading, error) {
	if limit <= 0 {
		limit = 50
	}

	var readings []models.Reading
	query := `
		SELECT * FROM ndvi_reading
		WHERE parcel_id = $1
		ORDER BY period_date DESC
		LIMIT $2`
	if err := r.db.SelectContext(ctx, &readings, query, parcelID, limit); err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	return readings, nil
}
