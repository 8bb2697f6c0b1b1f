package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/knulata/satteli/internal/models"
	"github.com/knulata/satteli/utils"
)

// AlertService owns the alert lifecycle: deduplicated creation from
// detections, the status state machine, and the notification fan-out that
// fires exactly once per alert.
type AlertService struct {
	alerts     AlertStore
	parcels    ParcelStore
	tenants    TenantStore
	dispatcher *NotificationDispatcher
	publisher  AlertEventPublisher
	dashboard  *DashboardService
}

func NewAlertService(alerts AlertStore, parcels ParcelStore, tenants TenantStore, dispatcher *NotificationDispatcher, publisher AlertEventPublisher, dashboard *DashboardService) *AlertService {
	return &AlertService{
		alerts:     alerts,
		parcels:    parcels,
		tenants:    tenants,
		dispatcher: dispatcher,
		publisher:  publisher,
		dashboard:  dashboard,
	}
}

// HandleDetection turns one detection into an alert. An open alert for the
// same (parcel, type) absorbs the detection instead of spawning a duplicate;
// only genuinely new alerts notify the tenant. Returns the alert and whether
// it was newly created.
func (s *AlertService) HandleDetection(ctx context.Context, tenant *models.Tenant, parcel *models.Parcel, det Detection, evidenceURLs []string) (*models.Alert, bool, error) {
	now := time.Now().Unix()

	existing, err := s.alerts.FindOpenByParcelAndType(ctx, parcel.ID, det.Type)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		// Severity only escalates while an alert stays open.
		if det.Severity.AtLeast(existing.Severity) {
			existing.Severity = det.Severity
		}
		existing.Description = &det.Description
		if det.AffectedAreaHa != nil {
			existing.AffectedAreaHa = det.AffectedAreaHa
		}
		existing.EvidenceURLs = existing.EvidenceURLs.AppendUnique(evidenceURLs...)
		existing.ConfidenceScore = det.ConfidenceScore
		existing.DetectedAt = now

		if err := s.alerts.Extend(ctx, existing); err != nil {
			return nil, false, err
		}
		slog.Info("open alert extended", "alert_id", existing.ID,
			"parcel_id", parcel.ID, "type", det.Type, "severity", existing.Severity)
		return existing, false, nil
	}

	parcelID := parcel.ID
	alert := &models.Alert{
		TenantID:        tenant.ID,
		ParcelID:        &parcelID,
		Type:            det.Type,
		Severity:        det.Severity,
		Status:          models.AlertNew,
		Title:           det.Title,
		Description:     &det.Description,
		AffectedAreaHa:  det.AffectedAreaHa,
		Centroid:        parcel.Centroid,
		EvidenceURLs:    utils.JSONArray{}.AppendUnique(evidenceURLs...),
		DetectionMethod: det.Method,
		ConfidenceScore: det.ConfidenceScore,
		DetectedAt:      now,
	}

	if err := s.alerts.Create(ctx, alert); err != nil {
		return nil, false, err
	}

	if err := s.parcels.MarkAlerted(ctx, parcel.ID, now); err != nil {
		slog.Error("failed to stamp parcel alert time", "parcel_id", parcel.ID, "error", err)
	}

	// Notification rows are written before the function returns; delivery
	// itself runs on the worker pool.
	if err := s.dispatcher.Dispatch(ctx, alert, tenant); err != nil {
		slog.Error("failed to dispatch alert notifications", "alert_id", alert.ID, "error", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishAlertCreated(ctx, alert); err != nil {
			slog.Error("failed to publish alert event", "alert_id", alert.ID, "error", err)
		}
	}

	s.dashboard.InvalidateTenant(ctx, tenant.ID)
	slog.Info("alert created", "alert_id", alert.ID, "parcel_id", parcel.ID,
		"type", det.Type, "severity", det.Severity)
	return alert, true, nil
}

// Acknowledge moves an alert to acknowledged. Re-acknowledging is a no-op.
func (s *AlertService) Acknowledge(ctx context.Context, scope models.AccessScope, id uuid.UUID, actor string) (*models.Alert, error) {
	return s.transition(ctx, scope, id, actor, models.AlertAcknowledged, nil)
}

// StartInvestigation moves an alert to investigating.
func (s *AlertService) StartInvestigation(ctx context.Context, scope models.AccessScope, id uuid.UUID, actor string) (*models.Alert, error) {
	return s.transition(ctx, scope, id, actor, models.AlertInvestigating, nil)
}

// Resolve closes an alert as handled.
func (s *AlertService) Resolve(ctx context.Context, scope models.AccessScope, id uuid.UUID, actor string, note *string) (*models.Alert, error) {
	return s.transition(ctx, scope, id, actor, models.AlertResolved, note)
}

// MarkFalsePositive closes an alert as spurious.
func (s *AlertService) MarkFalsePositive(ctx context.Context, scope models.AccessScope, id uuid.UUID, actor string, note *string) (*models.Alert, error) {
	return s.transition(ctx, scope, id, actor, models.AlertFalsePositive, note)
}

func (s *AlertService) transition(ctx context.Context, scope models.AccessScope, id uuid.UUID, actor string, target models.AlertStatus, note *string) (*models.Alert, error) {
	if actor == "" {
		return nil, fmt.Errorf("actor is required for alert transitions: %w", models.ErrValidation)
	}

	alert, err := s.alerts.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	if alert.Status == target {
		return alert, nil
	}
	if !alert.CanTransitionTo(target) {
		return nil, fmt.Errorf("alert %s cannot move from %s to %s: %w",
			id, alert.Status, target, models.ErrInvalidTransition)
	}

	from := alert.Status
	now := time.Now().Unix()
	alert.Status = target

	switch target {
	case models.AlertAcknowledged:
		alert.AcknowledgedBy = &actor
		alert.AcknowledgedAt = &now
	case models.AlertResolved, models.AlertFalsePositive:
		alert.ResolvedBy = &actor
		alert.ResolvedAt = &now
		alert.ResolutionNote = note
	}

	if err := s.alerts.UpdateStatus(ctx, alert, from); err != nil {
		return nil, err
	}

	s.dashboard.InvalidateTenant(ctx, alert.TenantID)
	slog.Info("alert transitioned", "alert_id", id, "from", from, "to", target, "actor", actor)
	return alert, nil
}

func (s *AlertService) Get(ctx context.Context, scope models.AccessScope, id uuid.UUID) (*models.Alert, error) {
	return s.alerts.GetByID(ctx, scope, id)
}

func (s *AlertService) ListOpen(ctx context.Context, scope models.AccessScope, tenantID uuid.UUID, limit int) ([]models.AlertListItem, error) {
	return s.alerts.ListOpenByTenant(ctx, scope, tenantID, limit)
}
