package server

import (
	"errors"
	"log/slog"

	"storefront/internal/capability"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/observability"
	"storefront/internal/registry"

	"github.com/gofiber/fiber/v2"
)

// TenantRequired resolves the request host to a tenant before any handler
// runs. Unknown hosts get a 404, never a 500.
func (s *Server) TenantRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := s.resolver.Resolve(c.UserContext(), c.Hostname())
		if err != nil {
			return s.respondOutcome(c, err)
		}
		c.SetUserContext(registry.WithResolved(c.UserContext(), res))
		c.Locals("tenantKey", res.TenantKey)
		return c.Next()
	}
}

// resolvedTenant returns the tenant attached by TenantRequired.
func resolvedTenant(c *fiber.Ctx) *registry.Resolved {
	res, _ := registry.FromContext(c.UserContext())
	return res
}

// primaryHost returns the tenant's primary domain from the database, then
// the static registry, falling back to the host the request came in on.
func (s *Server) primaryHost(c *fiber.Ctx, res *registry.Resolved) (string, bool) {
	if primary, err := s.domainRepo.PrimaryForTenant(c.UserContext(), res.Tenant.ID); err == nil {
		return primary.Domain, true
	}
	if s.static != nil {
		if host, ok := s.static.PrimaryDomain(res.TenantKey); ok {
			return host, true
		}
	}
	return res.Host, false
}

// respondOutcome maps domain, gate and mode errors onto HTTP responses.
func (s *Server) respondOutcome(c *fiber.Ctx, err error) error {
	var denied *capability.Denied
	if errors.As(err, &denied) {
		observability.CapabilityDenials.WithLabelValues(string(denied.Key)).Inc()
		switch denied.OnFail {
		case capability.Redirect:
			return c.Redirect(denied.Target, fiber.StatusFound)
		case capability.NotFound:
			return models.RespondWithError(c, fiber.StatusNotFound,
				&models.AppError{Code: models.CodeNotFound, Message: "Not found"})
		default:
			return models.RespondWithError(c, fiber.StatusForbidden,
				&models.AppError{Code: models.CodeCapabilityDenied, Message: denied.Error(), Err: denied})
		}
	}

	var modeErr *capability.ModeForbiddenError
	if errors.As(err, &modeErr) {
		observability.ModeDenials.WithLabelValues(modeErr.Feature).Inc()
		return models.RespondWithError(c, fiber.StatusForbidden,
			&models.AppError{Code: models.CodeModeForbidden, Message: modeErr.Error(), Err: modeErr})
	}

	status := statusForCode(models.ErrorCode(err))
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "Request failed",
			slog.String("path", c.Path()),
			slog.String("code", models.ErrorCode(err)),
			slog.String("error", err.Error()),
		)
		var appErr *models.AppError
		if !errors.As(err, &appErr) {
			err = models.NewInternalError(err)
		}
	}
	return models.RespondWithError(c, status, err)
}

func statusForCode(code string) int {
	switch code {
	case models.CodeTenantNotFound, models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeUnauthorized:
		return fiber.StatusForbidden
	case models.CodeCapabilityDenied, models.CodeModeForbidden:
		return fiber.StatusForbidden
	case models.CodeLegacyDataInconsistency:
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return models.CodeNotFound
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
		return models.CodeValidation
	case fiber.StatusUnauthorized, fiber.StatusForbidden:
		return models.CodeUnauthorized
	}
	if status >= fiber.StatusInternalServerError {
		return models.CodeInternal
	}
	return ""
}
