package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/knulata/satteli/internal/services"
	"github.com/knulata/satteli/utils"
)

type TenantHandler struct {
	tenantService *services.TenantService
	serviceKey    string
}

func NewTenantHandler(tenantService *services.TenantService, serviceKey string) *TenantHandler {
	return &TenantHandler{tenantService: tenantService, serviceKey: serviceKey}
}

func (h *TenantHandler) RegisterRoutes(app *fiber.App) {
	gr := app.Group("monitoring/api/v1")

	gr.Post("/tenants", h.RegisterTenant)
	gr.Get("/tenants/:id", h.GetTenant)
	gr.Put("/tenants/:id/thresholds", h.UpdateThresholds)
	gr.Delete("/tenants/:id", h.DeactivateTenant)
}

func (h *TenantHandler) RegisterTenant(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	if !scope.Service {
		return c.Status(fiber.StatusForbidden).JSON(utils.CreateErrorResponse("FORBIDDEN", "tenant registration requires the service key"))
	}

	var req services.RegisterTenantRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("BAD_REQUEST", "Invalid request body"))
	}

	tenant, err := h.tenantService.Register(c.Context(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.CreateSuccessResponse(tenant))
}

func (h *TenantHandler) GetTenant(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	tenant, err := h.tenantService.Get(c.Context(), scope, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(tenant))
}

type updateThresholdsRequest struct {
	DeforestationAreaThresholdHa float64 `json:"deforestation_area_threshold_ha"`
	NDVIChangeThreshold          float64 `json:"ndvi_change_threshold"`
}

func (h *TenantHandler) UpdateThresholds(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req updateThresholdsRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("BAD_REQUEST", "Invalid request body"))
	}

	tenant, err := h.tenantService.UpdateThresholds(c.Context(), scope, id,
		req.DeforestationAreaThresholdHa, req.NDVIChangeThreshold)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(tenant))
}

func (h *TenantHandler) DeactivateTenant(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.tenantService.Deactivate(c.Context(), scope, id); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(map[string]string{
		"message": "tenant deactivated",
	}))
}
