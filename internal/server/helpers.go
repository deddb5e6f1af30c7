package server

import (
	"strconv"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// parsePagination reads limit and offset query parameters. Bounds are
// enforced by the repository.
func parsePagination(c *fiber.Ctx) repository.Page {
	return repository.Page{
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
}

// parseID parses a positive numeric path parameter.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	raw := c.Params(param)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, models.NewValidationError("Invalid " + param)
	}
	return uint(id), nil
}

// currentUserID returns the authenticated user. Routes using it sit behind
// AuthRequired, so a miss is reported as 401.
func currentUserID(c *fiber.Ctx) (uint, error) {
	uid, ok := middleware.UserIDFromLocals(c)
	if !ok {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Authorization required")
	}
	return uid, nil
}

// bindJSON parses the request body into dest.
func bindJSON(c *fiber.Ctx, dest interface{}) error {
	if err := c.BodyParser(dest); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}
