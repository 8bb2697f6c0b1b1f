package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/knulata/satteli/internal/models"
	"github.com/knulata/satteli/internal/services"
	"github.com/knulata/satteli/utils"
)

// EvidenceResolver turns stored evidence object keys into servable URLs.
// The MinIO evidence store satisfies it.
type EvidenceResolver interface {
	ResolveURL(objectKey string) string
}

type AlertHandler struct {
	alertService  *services.AlertService
	notifications services.NotificationStore
	evidence      EvidenceResolver
	serviceKey    string
}

func NewAlertHandler(alertService *services.AlertService, notifications services.NotificationStore, evidence EvidenceResolver, serviceKey string) *AlertHandler {
	return &AlertHandler{alertService: alertService, notifications: notifications, evidence: evidence, serviceKey: serviceKey}
}

// resolveEvidence rewrites evidence object keys into dashboard-servable
// URLs. Absolute URLs pass through unchanged.
func (h *AlertHandler) resolveEvidence(alert *models.Alert) {
	if h.evidence == nil {
		return
	}
	for i, key := range alert.EvidenceURLs {
		alert.EvidenceURLs[i] = h.evidence.ResolveURL(key)
	}
}

func (h *AlertHandler) RegisterRoutes(app *fiber.App) {
	gr := app.Group("monitoring/api/v1")

	gr.Get("/tenants/:tenant_id/alerts/open", h.ListOpenAlerts)
	gr.Get("/alerts/:id", h.GetAlert)
	gr.Get("/alerts/:id/notifications", h.ListAlertNotifications)
	gr.Post("/alerts/:id/acknowledge", h.AcknowledgeAlert)
	gr.Post("/alerts/:id/investigate", h.InvestigateAlert)
	gr.Post("/alerts/:id/resolve", h.ResolveAlert)
	gr.Post("/alerts/:id/false-positive", h.MarkFalsePositive)
}

func (h *AlertHandler) ListOpenAlerts(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	tenantID, err := parseIDParam(c, "tenant_id")
	if err != nil {
		return respondError(c, err)
	}

	limit, _ := strconv.Atoi(c.Query("limit", "100"))

	alerts, err := h.alertService.ListOpen(c.Context(), scope, tenantID, limit)
	if err != nil {
		return respondError(c, err)
	}
	for i := range alerts {
		h.resolveEvidence(&alerts[i].Alert)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(alerts))
}

func (h *AlertHandler) GetAlert(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	alert, err := h.alertService.Get(c.Context(), scope, id)
	if err != nil {
		return respondError(c, err)
	}
	h.resolveEvidence(alert)
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(alert))
}

func (h *AlertHandler) ListAlertNotifications(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	notifications, err := h.notifications.ListByAlert(c.Context(), scope, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(notifications))
}

func (h *AlertHandler) AcknowledgeAlert(c fiber.Ctx) error {
	return h.runTransition(c, func(scope models.AccessScope, alertID uuid.UUID, actor string) (*models.Alert, error) {
		return h.alertService.Acknowledge(c.Context(), scope, alertID, actor)
	})
}

func (h *AlertHandler) InvestigateAlert(c fiber.Ctx) error {
	return h.runTransition(c, func(scope models.AccessScope, alertID uuid.UUID, actor string) (*models.Alert, error) {
		return h.alertService.StartInvestigation(c.Context(), scope, alertID, actor)
	})
}

func (h *AlertHandler) ResolveAlert(c fiber.Ctx) error {
	var req models.AlertActionRequest
	_ = c.Bind().Body(&req)

	return h.runTransition(c, func(scope models.AccessScope, alertID uuid.UUID, actor string) (*models.Alert, error) {
		return h.alertService.Resolve(c.Context(), scope, alertID, actor, req.Note)
	})
}

func (h *AlertHandler) MarkFalsePositive(c fiber.Ctx) error {
	var req models.AlertActionRequest
	_ = c.Bind().Body(&req)

	return h.runTransition(c, func(scope models.AccessScope, alertID uuid.UUID, actor string) (*models.Alert, error) {
		return h.alertService.MarkFalsePositive(c.Context(), scope, alertID, actor, req.Note)
	})
}

func (h *AlertHandler) runTransition(c fiber.Ctx, fn func(scope models.AccessScope, alertID uuid.UUID, actor string) (*models.Alert, error)) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	alertID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	actor := c.Get("X-User-ID")
	if actor == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(utils.CreateErrorResponse("UNAUTHORIZED", "X-User-ID header is required"))
	}

	alert, err := fn(scope, alertID, actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(alert))
}
