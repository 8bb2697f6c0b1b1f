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

type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateBatch inserts the pending rows for one alert dispatch in a single
// transaction so the fan-out is all-or-nothing.
func (r *NotificationRepository) CreateBatch(ctx context.Context, notifications []*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO notification (
			id, alert_id, tenant_id, channel, recipient, status,
			attempts, created_at, updated_at
		) VALUES (
			:id, :alert_id, :tenant_id, :channel, :recipient, :status,
			:attempts, :created_at, :updated_at
		)`

	for _, n := range notifications {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		if n.Status == "" {
			n.Status = models.NotificationPending
		}
		n.CreatedAt = time.Now()
		n.UpdatedAt = time.Now()

		if _, err := tx.NamedExecContext(ctx, query, n); err != nil {
			return fmt.Errorf("failed to create notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit notification batch: %w", err)
	}
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	query := `SELECT * FROM notification WHERE id = $1`
	err := r.db.GetContext(ctx, &n, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("notification %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

// MarkSent records a successful delivery attempt. Already-sent rows are left
// untouched so a redelivered job cannot double-send.
func (r *NotificationRepository) MarkSent(ctx context.Context, id uuid.UUID, externalRef string, attempts int) error {
	query := `
		UPDATE notification
		SET status = 'sent', external_ref = $1, attempts = $2, sent_at = $3,
		    error_detail = NULL, updated_at = $4
		WHERE id = $5 AND status != 'sent'`
	if _, err := r.db.ExecContext(ctx, query, externalRef, attempts, time.Now().Unix(), time.Now(), id); err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records a permanently failed delivery with its last error.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorDetail string, attempts int) error {
	query := `
		UPDATE notification
		SET status = 'failed', error_detail = $1, attempts = $2, updated_at = $3
		WHERE id = $4 AND status != 'sent'`
	if _, err := r.db.ExecContext(ctx, query, errorDetail, attempts, time.Now(), id); err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

// ListByAlert returns the delivery record for one alert, all channels.
func (r *NotificationRepository) ListByAlert(ctx context.Context, scope models.AccessScope, alertID uuid.UUID) ([]models.Notification, error) {
	query := `SELECT * FROM notification WHERE alert_id = $1`
	args := []any{alertID}
	if !scope.Service {
		query += ` AND tenant_id = $2`
		args = append(args, scope.TenantID)
	}
	query += ` ORDER BY created_at`

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// ListPending returns undelivered rows for the dispatcher to pick up, oldest
// first. Used at startup to resume deliveries interrupted by a crash.
func (r *NotificationRepository) ListPending(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}

	var notifications []models.Notification
	query := `
		SELECT * FROM notification
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1`
	if err := r.db.SelectContext(ctx, &notifications, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	return notifications, nil
}
