package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/knulata/satteli/internal/models"
	"github.com/knulata/satteli/internal/services"
	"github.com/knulata/satteli/utils"
)

type ReadingHandler struct {
	readingService *services.ReadingService
	serviceKey     string
}

func NewReadingHandler(readingService *services.ReadingService, serviceKey string) *ReadingHandler {
	return &ReadingHandler{readingService: readingService, serviceKey: serviceKey}
}

func (h *ReadingHandler) RegisterRoutes(app *fiber.App) {
	gr := app.Group("monitoring/api/v1")

	gr.Post("/parcels/:id/readings", h.SubmitReading)
	gr.Get("/parcels/:id/readings", h.ListReadings)
}

func (h *ReadingHandler) SubmitReading(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	parcelID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req models.SubmitReadingRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("BAD_REQUEST", "Invalid request body"))
	}

	result, err := h.readingService.Submit(c.Context(), scope, parcelID, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.CreateSuccessResponse(result))
}

func (h *ReadingHandler) ListReadings(c fiber.Ctx) error {
	scope, err := scopeFromRequest(c, h.serviceKey)
	if err != nil {
		return respondError(c, err)
	}
	parcelID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	readings, err := h.readingService.History(c.Context(), scope, parcelID, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(readings))
}
