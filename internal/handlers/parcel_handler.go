package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/knulata/satteli/internal/models"
	"github.com/knulata/satteli/internal/services"
	"github.com/knulata/satteli/utils"
)

type ParcelHandler struct {
	parcelService *services.ParcelService
	serviceKey    string
}

func NewParcelHandler(parcelService *services.ParcelService, serviceKey string) *ParcelHandler {
	return &ParcelHandler{parcelService: parcelService, serviceKey: serviceKey}
}

func (h *ParcelHandler) RegisterRoutes(app *fiber.App) {
	gr := app.Group("monitoring/api/v1")

	gr.Post("/tenants/:tenant_id/parcels", h.CreateParcel)
	gr.Get("/tenants/:tenant_id/parcels", h.ListParcels)
	gr.Get("/parcels/:id", h.GetParcel)
	gr.Put("/parcels/:id", h.UpdateParcel)
	gr.Delete("/parcels/:id", h.DeleteParcel)
}

func (h *ParcelHandler) CreateParcel(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	tenantID, err := parseIDParam(c, "tenant_id")
	if err != nil {
		return respondError(c, err)
	}

	var req models.CreateParcelRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("BAD_REQUEST", "Invalid request body"))
	}

	parcel, err := h.parcelService.Create(c.Context(), scope, tenantID, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.CreateSuccessResponse(parcel))
}

func (h *ParcelHandler) ListParcels(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	tenantID, err := parseIDParam(c, "tenant_id")
	if err != nil {
		return respondError(c, err)
	}

	parcels, err := h.parcelService.List(c.Context(), scope, tenantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(parcels))
}

func (h *ParcelHandler) GetParcel(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	parcel, err := h.parcelService.Get(c.Context(), scope, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(parcel))
}

func (h *ParcelHandler) UpdateParcel(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req models.UpdateParcelRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("BAD_REQUEST", "Invalid request body"))
	}

	parcel, err := h.parcelService.Update(c.Context(), scope, id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(parcel))
}

func (h *ParcelHandler) DeleteParcel(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.parcelService.Delete(c.Context(), scope, id); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(map[string]string{
		"message": "parcel deleted",
	}))
}
