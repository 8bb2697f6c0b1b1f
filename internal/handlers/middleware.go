package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/knulata/satteli/internal/models"
	"github.com/knulata/satteli/utils"
)

// scopeFromRequest builds the caller's access scope from the gateway
// headers. A matching X-Service-Key grants the unscoped service capability;
// otherwise X-Tenant-ID pins the request to one tenant's rows.
func scopeFromRequest(c fiber.Ctx, serviceKey string) (models.AccessScope, error) {
	actor := c.Get("X-User-ID")

	if key := c.Get("X-Service-Key"); key != "" && serviceKey != "" && key == serviceKey {
		if actor == "" {
			actor = "service"
		}
		return models.ServiceScope(actor), nil
	}

	tenantHeader := c.Get("X-Tenant-ID")
	if tenantHeader == "" {
		return models.AccessScope{}, fiber.NewError(fiber.StatusUnauthorized, "X-Tenant-ID header is required")
	}
	tenantID, err := uuid.Parse(tenantHeader)
	if err != nil {
		return models.AccessScope{}, fiber.NewError(fiber.StatusUnauthorized, "X-Tenant-ID must be a valid UUID")
	}
	return models.TenantScope(tenantID, actor), nil
}

// parseIDParam parses a UUID path parameter.
func parseIDParam(c fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", name))
	}
	return id, nil
}

// respondError maps domain errors onto HTTP statuses with the standard
// error envelope.
func respondError(c fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(utils.CreateErrorResponse("REQUEST_ERROR", fiberErr.Message))
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(utils.CreateErrorResponse("NOT_FOUND", err.Error()))
	case errors.Is(err, models.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(utils.CreateErrorResponse("FORBIDDEN", err.Error()))
	case errors.Is(err, models.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("VALIDATION_ERROR", err.Error()))
	case errors.Is(err, models.ErrInvalidGeometry):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(utils.CreateErrorResponse("INVALID_GEOMETRY", err.Error()))
	case errors.Is(err, models.ErrDuplicateReading):
		return c.Status(fiber.StatusConflict).JSON(utils.CreateErrorResponse("DUPLICATE_READING", err.Error()))
	case errors.Is(err, models.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(utils.CreateErrorResponse("INVALID_TRANSITION", err.Error()))
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(utils.CreateErrorResponse("INTERNAL_ERROR", "internal server error"))
	}
}
