package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/knulata/satteli/internal/models"
	"github.com/knulata/satteli/internal/services"
	"github.com/knulata/satteli/utils"
)

type ScanHandler struct {
	scanService *services.ScanService
	serviceKey  string
}

func NewScanHandler(scanService *services.ScanService, serviceKey string) *ScanHandler {
	return &ScanHandler{scanService: scanService, serviceKey: serviceKey}
}

func (h *ScanHandler) RegisterRoutes(app *fiber.App) {
	gr := app.Group("monitoring/api/v1")

	gr.Post("/scans", h.TriggerScan)
	gr.Get("/scans", h.ListScans)
	gr.Get("/scans/:id", h.GetScan)
}

// TriggerScan starts a batch pass. Operator-only; runs synchronously and
// returns the closed provenance record.
func (h *ScanHandler) TriggerScan(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	if !scope.Service {
		return c.Status(fiber.StatusForbidden).JSON(utils.CreateErrorResponse("FORBIDDEN", "scan triggering requires the service key"))
	}

	var req models.TriggerScanRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("BAD_REQUEST", "Invalid request body"))
	}

	trigger := req.Trigger
	if trigger == "" {
		trigger = models.ScanManual
	}

	var tenantID *uuid.UUID
	if req.TenantID != nil && *req.TenantID != "" {
		id, err := uuid.Parse(*req.TenantID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("BAD_REQUEST", "tenant_id must be a valid UUID"))
		}
		tenantID = &id
	}

	run, err := h.scanService.RunScan(c.Context(), trigger, tenantID)
	if err != nil && run == nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(run))
}

func (h *ScanHandler) ListScans(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	if !scope.Service {
		return c.Status(fiber.StatusForbidden).JSON(utils.CreateErrorResponse("FORBIDDEN", "scan history requires the service key"))
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	runs, err := h.scanService.ListRecentRuns(c.Context(), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(runs))
}

func (h *ScanHandler) GetScan(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	if !scope.Service {
		return c.Status(fiber.StatusForbidden).JSON(utils.CreateErrorResponse("FORBIDDEN", "scan history requires the service key"))
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	run, err := h.scanService.GetRun(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(run))
}
