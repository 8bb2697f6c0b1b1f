package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/knulata/satteli/internal/models"
)

// NotificationDispatcher fans one alert out to the tenant's enabled channels.
// Pending rows are written synchronously so an accepted alert can never lose
// its deliveries to a crash; the sends themselves run on the worker pool and
// retry independently per channel.
type NotificationDispatcher struct {
	notifications NotificationStore
	alerts        AlertStore
	sender        Sender
	runner        JobRunner

	maxRetries     int
	attemptTimeout time.Duration
}

func NewNotificationDispatcher(notifications NotificationStore, alerts AlertStore, sender Sender, runner JobRunner, maxRetries int, attemptTimeout time.Duration) *NotificationDispatcher {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if attemptTimeout <= 0 {
		attemptTimeout = 30 * time.Second
	}
	return &NotificationDispatcher{
		notifications:  notifications,
		alerts:         alerts,
		sender:         sender,
		runner:         runner,
		maxRetries:     maxRetries,
		attemptTimeout: attemptTimeout,
	}
}

// Dispatch records one pending notification per enabled channel and queues
// the deliveries. A tenant with no usable channel yields no rows; the alert
// itself is unaffected.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, alert *models.Alert, tenant *models.Tenant) error {
	channels := tenant.EnabledChannels()
	if len(channels) == 0 {
		slog.Warn("tenant has no notification channel configured", "tenant_id", tenant.ID, "alert_id", alert.ID)
		return nil
	}

	notifications := make([]*models.Notification, 0, len(channels))
	for _, ch := range channels {
		notifications = append(notifications, &models.Notification{
			ID:        uuid.New(),
			AlertID:   alert.ID,
			TenantID:  tenant.ID,
			Channel:   ch.Channel,
			Recipient: ch.Recipient,
			Status:    models.NotificationPending,
		})
	}

	if err := d.notifications.CreateBatch(ctx, notifications); err != nil {
		return fmt.Errorf("failed to record notifications for alert %s: %w", alert.ID, err)
	}

	for _, n := range notifications {
		d.enqueue(n.ID)
	}
	return nil
}

// ResumePending requeues deliveries left pending by a previous run.
func (d *NotificationDispatcher) ResumePending(ctx context.Context, limit int) error {
	pending, err := d.notifications.ListPending(ctx, limit)
	if err != nil {
		return err
	}
	for _, n := range pending {
		d.enqueue(n.ID)
	}
	if len(pending) > 0 {
		slog.Info("resumed pending notifications", "count", len(pending))
	}
	return nil
}

func (d *NotificationDispatcher) enqueue(id uuid.UUID) {
	job := func(ctx context.Context) error {
		return d.Deliver(ctx, id)
	}
	if d.runner == nil {
		// No pool wired (tests); deliver inline.
		if err := job(context.Background()); err != nil {
			slog.Error("notification delivery failed", "notification_id", id, "error", err)
		}
		return
	}
	if err := d.runner.SubmitJob(job); err != nil {
		// Row stays pending; ResumePending picks it up later.
		slog.Error("failed to queue notification delivery", "notification_id", id, "error", err)
	}
}

// Deliver attempts one notification end to end with bounded retries. The
// notification ID is handed to the provider as the idempotency key, so a
// retried or requeued delivery cannot double-send.
func (d *NotificationDispatcher) Deliver(ctx context.Context, id uuid.UUID) error {
	n, err := d.notifications.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.Status == models.NotificationSent {
		return nil
	}

	alert, err := d.alerts.GetByID(ctx, models.ServiceScope("notification-dispatcher"), n.AlertID)
	if err != nil {
		return err
	}

	req := SendRequest{
		NotificationID: n.ID,
		Channel:        n.Channel,
		Recipient:      n.Recipient,
		Subject:        fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Title),
		Body:           formatAlertBody(alert),
	}

	attempts := n.Attempts
	var lastErr error
	for try := 0; try < d.maxRetries; try++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
		externalRef, err := d.sender.Send(attemptCtx, req)
		cancel()

		if err == nil {
			if err := d.notifications.MarkSent(ctx, n.ID, externalRef, attempts); err != nil {
				return err
			}
			slog.Info("notification sent", "notification_id", n.ID,
				"channel", n.Channel, "attempts", attempts)
			return nil
		}

		lastErr = err
		slog.Warn("notification attempt failed", "notification_id", n.ID,
			"channel", n.Channel, "attempt", attempts, "error", err)
	}

	detail := "delivery failed"
	if lastErr != nil {
		detail = lastErr.Error()
	}
	if err := d.notifications.MarkFailed(ctx, n.ID, detail, attempts); err != nil {
		return err
	}
	return fmt.Errorf("notification %s exhausted %d attempts: %w", n.ID, attempts, lastErr)
}

func formatAlertBody(alert *models.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", alert.Title)
	fmt.Fprintf(&b, "Severity: %s\n", alert.Severity)
	fmt.Fprintf(&b, "Detected: %s\n", time.Unix(alert.DetectedAt, 0).UTC().Format(time.RFC3339))
	if alert.Description != nil && *alert.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", *alert.Description)
	}
	if alert.AffectedAreaHa != nil {
		fmt.Fprintf(&b, "Affected area: %.2f ha\n", *alert.AffectedAreaHa)
	}
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", alert.ConfidenceScore*100)
	return b.String()
}
