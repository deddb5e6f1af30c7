package server

import (
	"strings"

	"storefront/internal/capability"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/visibility"

	"github.com/gofiber/fiber/v2"
)

// Moderation and tenant administration. Every route here sits behind
// AuthRequired and AdminRequired and acts on the tenant resolved from the
// request host, except user blocks, which are global.

// BlockUser blocks a user and hides their products in every tenant.
func (s *Server) BlockUser(c *fiber.Ctx) error {
	return s.setUserBlocked(c, true)
}

// UnblockUser lifts a block and restores products the block had hidden.
func (s *Server) UnblockUser(c *fiber.Ctx) error {
	return s.setUserBlocked(c, false)
}

func (s *Server) setUserBlocked(c *fiber.Ctx, blocked bool) error {
	actorID, err := currentUserID(c)
	if err != nil {
		return err
	}
	userID, err := parseID(c, "id")
	if err != nil {
		return s.respondOutcome(c, err)
	}
	if blocked && userID == actorID {
		return s.respondOutcome(c, models.NewValidationError("Admins cannot block themselves"))
	}

	result, err := s.moderation.SetUserBlocked(c.UserContext(), actorID, userID, blocked)
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.JSON(result)
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetVendorStatus moves a vendor profile in this tenant to a new status.
func (s *Server) SetVendorStatus(c *fiber.Ctx) error {
	actorID, err := currentUserID(c)
	if err != nil {
		return err
	}
	userID, err := parseID(c, "userId")
	if err != nil {
		return s.respondOutcome(c, err)
	}
	var req statusRequest
	if err := bindJSON(c, &req); err != nil {
		return s.respondOutcome(c, err)
	}

	res := resolvedTenant(c)
	result, err := s.moderation.SetVendorStatus(c.UserContext(), actorID, res.TenantKey, userID,
		models.VendorStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.JSON(result)
}

// ApproveVendor approves the user's profile in this tenant, creating it when
// missing.
func (s *Server) ApproveVendor(c *fiber.Ctx) error {
	actorID, err := currentUserID(c)
	if err != nil {
		return err
	}
	userID, err := parseID(c, "userId")
	if err != nil {
		return s.respondOutcome(c, err)
	}

	res := resolvedTenant(c)
	if err := capability.RequireMode(res.Tenant, capability.MarketplaceOnly, capability.FeatureVendorProfile); err != nil {
		return s.respondOutcome(c, err)
	}

	result, err := s.moderation.ApproveOrCreateVendorProfile(c.UserContext(), actorID, res.TenantKey, userID)
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.JSON(result)
}

// SetProductStatus sets the status of one product in this tenant.
func (s *Server) SetProductStatus(c *fiber.Ctx) error {
	actorID, err := currentUserID(c)
	if err != nil {
		return err
	}
	productID, err := parseID(c, "id")
	if err != nil {
		return s.respondOutcome(c, err)
	}
	var req statusRequest
	if err := bindJSON(c, &req); err != nil {
		return s.respondOutcome(c, err)
	}

	res := resolvedTenant(c)
	result, err := s.moderation.SetProductStatus(c.UserContext(), actorID, res.TenantKey, productID,
		models.ProductStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.JSON(result)
}

// GetAdminProducts lists every product in this tenant regardless of status.
func (s *Server) GetAdminProducts(c *fiber.Ctx) error {
	actorID, err := currentUserID(c)
	if err != nil {
		return err
	}
	res := resolvedTenant(c)

	products, err := s.catalog.ListProducts(c.UserContext(),
		visibility.Admin(res.TenantKey, res.Tenant.Mode, actorID), parsePagination(c))
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.JSON(productList(products, true))
}

// GetAdminVendors lists every vendor profile in this tenant.
func (s *Server) GetAdminVendors(c *fiber.Ctx) error {
	actorID, err := currentUserID(c)
	if err != nil {
		return err
	}
	res := resolvedTenant(c)

	profiles, err := s.catalog.ListVendors(c.UserContext(),
		visibility.Admin(res.TenantKey, res.Tenant.Mode, actorID), parsePagination(c))
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.JSON(vendorList(profiles, true))
}

// GetDomains lists this tenant's domains.
func (s *Server) GetDomains(c *fiber.Ctx) error {
	domains, err := s.domains.List(c.UserContext(), resolvedTenant(c).TenantKey)
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.JSON(domains)
}

type addDomainRequest struct {
	Domain      string `json:"domain"`
	MakePrimary bool   `json:"make_primary"`
}

// AddDomain attaches a domain to this tenant.
func (s *Server) AddDomain(c *fiber.Ctx) error {
	actorID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req addDomainRequest
	if err := bindJSON(c, &req); err != nil {
		return s.respondOutcome(c, err)
	}

	domain, err := s.domains.AddDomain(c.UserContext(), actorID, resolvedTenant(c).TenantKey, req.Domain, req.MakePrimary)
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(domain)
}

// RemoveDomain detaches a domain. When it was primary the response names the
// domain promoted in its place.
func (s *Server) RemoveDomain(c *fiber.Ctx) error {
	actorID, err := currentUserID(c)
	if err != nil {
		return err
	}

	promoted, err := s.domains.RemoveDomain(c.UserContext(), actorID, resolvedTenant(c).TenantKey, c.Params("domain"))
	if err != nil {
		return s.respondOutcome(c, err)
	}
	resp := fiber.Map{"removed": c.Params("domain")}
	if promoted != nil {
		resp["promoted"] = promoted.Domain
	}
	return c.JSON(resp)
}

// SetPrimaryDomain makes an existing domain the tenant's primary.
func (s *Server) SetPrimaryDomain(c *fiber.Ctx) error {
	actorID, err := currentUserID(c)
	if err != nil {
		return err
	}

	domain, err := s.domains.SetPrimary(c.UserContext(), actorID, resolvedTenant(c).TenantKey, c.Params("domain"))
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.JSON(domain)
}

type planRequest struct {
	Plan string `json:"plan"`
}

// ChangePlan moves this tenant to another plan and returns the new
// capability set.
func (s *Server) ChangePlan(c *fiber.Ctx) error {
	actorID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req planRequest
	if err := bindJSON(c, &req); err != nil {
		return s.respondOutcome(c, err)
	}

	tenant, caps, err := s.tenants.ChangePlan(c.UserContext(), actorID, resolvedTenant(c).TenantKey, req.Plan)
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.JSON(fiber.Map{"tenant": tenant, "capabilities": caps})
}

type modeRequest struct {
	Mode string `json:"mode"`
}

// ChangeMode switches this tenant between white-label and marketplace.
func (s *Server) ChangeMode(c *fiber.Ctx) error {
	actorID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req modeRequest
	if err := bindJSON(c, &req); err != nil {
		return s.respondOutcome(c, err)
	}

	tenant, caps, err := s.tenants.ChangeMode(c.UserContext(), actorID, resolvedTenant(c).TenantKey, req.Mode)
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.JSON(fiber.Map{"tenant": tenant, "capabilities": caps})
}

// GetTenants lists all tenants on the platform.
func (s *Server) GetTenants(c *fiber.Ctx) error {
	tenants, err := s.tenantRepo.List(c.UserContext())
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.JSON(tenants)
}

type createTenantRequest struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Mode string `json:"mode"`
	Plan string `json:"plan"`
}

// CreateTenant onboards a new tenant. Domains are attached separately from
// one of the tenant's hosts.
func (s *Server) CreateTenant(c *fiber.Ctx) error {
	actorID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req createTenantRequest
	if err := bindJSON(c, &req); err != nil {
		return s.respondOutcome(c, err)
	}

	tenant, err := s.tenants.Create(c.UserContext(), actorID, service.CreateTenantInput{
		Key:  req.Key,
		Name: req.Name,
		Mode: req.Mode,
		Plan: req.Plan,
	})
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tenant)
}
