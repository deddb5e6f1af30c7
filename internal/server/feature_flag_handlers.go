package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns raw flag definitions and their evaluation for the
// resolved tenant.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	res := resolvedTenant(c)
	return c.JSON(fiber.Map{
		"tenant":    res.TenantKey,
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(res.TenantKey),
	})
}
