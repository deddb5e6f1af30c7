package server

import (
	"storefront/internal/featureflags"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gofiber/fiber/v2"
)

type registerVendorRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterVendor creates a pending vendor profile for the caller. A repeat
// registration returns the existing profile with 200.
func (s *Server) RegisterVendor(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	res := resolvedTenant(c)
	if !s.featureFlags.EnabledOr(featureflags.FlagVendorRegistration, res.TenantKey, true) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			&models.AppError{Code: models.CodeNotFound, Message: "Not found"})
	}

	var req registerVendorRequest
	if len(c.Body()) > 0 {
		if err := bindJSON(c, &req); err != nil {
			return s.respondOutcome(c, err)
		}
	}

	profile, created, err := s.vendors.Register(c.UserContext(), res, service.RegisterInput{
		UserID:      uid,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return s.respondOutcome(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"vendor":  newVendorSummary(profile, true),
		"created": created,
	})
}
