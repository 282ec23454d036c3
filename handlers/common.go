package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"trackdesk/authz"
	"trackdesk/metrics"
	"trackdesk/middleware"
	"trackdesk/services"
	"trackdesk/utils"
)

// principalFromCtx builds the authorization principal from the JWT locals
func principalFromCtx(c *fiber.Ctx) (authz.Principal, error) {
	userID, err := middleware.GetUserIDFromToken(c)
	if err != nil {
		return authz.Principal{}, err
	}
	role, err := middleware.GetRoleFromToken(c)
	if err != nil {
		return authz.Principal{}, err
	}
	return authz.Principal{UserID: userID, Role: role}, nil
}

// paramID parses a positive int64 route parameter
func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// writeServiceError maps service and authorization failures onto HTTP responses.
// Ownership denials are reported as 403 so callers can distinguish them from
// entities that do not exist.
func writeServiceError(c *fiber.Ctx, err error, entity string) error {
	if errors.Is(err, authz.ErrDenied) {
		metrics.IncrementAccessDenied(entity)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	if errors.Is(err, authz.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	status := services.HTTPStatus(err)
	if status >= 500 {
		utils.LogRequestError(c, "request failed", err, "entity", entity)
		return c.Status(status).JSON(fiber.Map{"error": "Internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
