package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/knulata/satteli/internal/services"
	"github.com/knulata/satteli/utils"
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
	serviceKey       string
}

func NewDashboardHandler(dashboardService *services.DashboardService, serviceKey string) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService, serviceKey: serviceKey}
}

func (h *DashboardHandler) RegisterRoutes(app *fiber.App) {
	gr := app.Group("monitoring/api/v1")

	gr.Get("/tenants/:tenant_id/summary", h.GetTenantSummary)
}

func (h *DashboardHandler) GetTenantSummary(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	tenantID, err := parseIDParam(c, "tenant_id")
	if err != nil {
		return respondError(c, err)
	}

	summary, err := h.dashboardService.GetTenantSummary(c.Context(), scope, tenantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(summary))
}
