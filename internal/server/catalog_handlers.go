package server

import (
	"fmt"

	"storefront/internal/capability"
	"storefront/internal/featureflags"
	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/visibility"

	"github.com/gofiber/fiber/v2"
)

// sitemapPageSize bounds each section of the sitemap.
const sitemapPageSize = 100

// GetTenant returns the resolved tenant and its capability set.
func (s *Server) GetTenant(c *fiber.Ctx) error {
	res := resolvedTenant(c)
	t := res.Tenant

	resp := fiber.Map{
		"key":          t.Key,
		"name":         t.Name,
		"mode":         t.Mode,
		"plan":         t.Plan,
		"capabilities": res.Capabilities,
		"fallback":     res.Fallback,
	}
	if host, ok := s.primaryHost(c, res); ok {
		resp["primary_domain"] = host
	}
	if res.Capabilities.CustomBranding && len(t.Theme) > 0 {
		resp["theme"] = t.Theme
	}
	return c.JSON(resp)
}

// GetShop is the white-label landing page: branding plus the public catalog.
func (s *Server) GetShop(c *fiber.Ctx) error {
	res := resolvedTenant(c)
	if err := capability.RequireMode(res.Tenant, capability.WhiteLabelOnly, capability.FeatureShopLanding); err != nil {
		return s.respondOutcome(c, err)
	}
	if err := capability.Require(res.Capabilities, capability.WhiteLabelStore, capability.Hide()); err != nil {
		return s.respondOutcome(c, err)
	}

	products, err := s.catalog.ListProducts(c.UserContext(),
		visibility.Public(res.TenantKey, res.Tenant.Mode), parsePagination(c))
	if err != nil {
		return s.respondOutcome(c, err)
	}

	resp := fiber.Map{
		"name":        res.Tenant.Name,
		"products":    productList(products, false),
		"powered_by":  !res.Capabilities.RemovePoweredBy,
		"custom_logo": false,
	}
	if res.Capabilities.CustomBranding && len(res.Tenant.Theme) > 0 {
		resp["theme"] = res.Tenant.Theme
		_, hasLogo := res.Tenant.Theme["logo_url"]
		resp["custom_logo"] = hasLogo
	}
	return c.JSON(resp)
}

// GetProducts lists the marketplace's public catalog.
func (s *Server) GetProducts(c *fiber.Ctx) error {
	res := resolvedTenant(c)
	if err := capability.Require(res.Capabilities, capability.PublicProducts, capability.Hide()); err != nil {
		return s.respondOutcome(c, err)
	}

	products, err := s.catalog.ListProducts(c.UserContext(),
		visibility.Public(res.TenantKey, res.Tenant.Mode), parsePagination(c))
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.JSON(productList(products, false))
}

// GetProduct returns one publicly visible product. Hidden and foreign
// products are both 404.
func (s *Server) GetProduct(c *fiber.Ctx) error {
	res := resolvedTenant(c)
	id, err := parseID(c, "id")
	if err != nil {
		return s.respondOutcome(c, err)
	}

	product, err := s.catalog.GetProduct(c.UserContext(), visibility.Public(res.TenantKey, res.Tenant.Mode), id)
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.JSON(newProductResponse(product, false))
}

// GetVendors is the marketplace vendor directory.
func (s *Server) GetVendors(c *fiber.Ctx) error {
	res := resolvedTenant(c)
	if err := capability.RequireMode(res.Tenant, capability.MarketplaceOnly, capability.FeatureVendorDirectory); err != nil {
		return s.respondOutcome(c, err)
	}

	profiles, err := s.catalog.ListVendors(c.UserContext(),
		visibility.Public(res.TenantKey, res.Tenant.Mode), parsePagination(c))
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.JSON(vendorList(profiles, false))
}

// GetVendor returns one storefront-visible vendor with its public products.
func (s *Server) GetVendor(c *fiber.Ctx) error {
	res := resolvedTenant(c)
	if err := capability.RequireMode(res.Tenant, capability.MarketplaceOnly, capability.FeatureVendorProfile); err != nil {
		return s.respondOutcome(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return s.respondOutcome(c, err)
	}

	viewer := visibility.Public(res.TenantKey, res.Tenant.Mode)
	profile, err := s.catalog.GetVendor(c.UserContext(), viewer, id)
	if err != nil {
		return s.respondOutcome(c, err)
	}

	products, err := s.catalog.ListVendorProducts(c.UserContext(), viewer, profile, parsePagination(c))
	if err != nil {
		return s.respondOutcome(c, err)
	}

	return c.JSON(fiber.Map{
		"vendor":   newVendorSummary(profile, false),
		"products": productList(products, false),
	})
}

// GetMyProducts lists every product the caller owns in this tenant,
// including drafts and blocked items.
func (s *Server) GetMyProducts(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	res := resolvedTenant(c)

	products, err := s.catalog.ListProducts(c.UserContext(),
		visibility.Owner(res.TenantKey, res.Tenant.Mode, uid), parsePagination(c))
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.JSON(productList(products, true))
}

type createProductRequest struct {
	Title      string `json:"title"`
	PriceCents int64  `json:"price_cents"`
	Publish    bool   `json:"publish"`
}

// CreateMyProduct lists a new product for the caller.
func (s *Server) CreateMyProduct(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req createProductRequest
	if err := bindJSON(c, &req); err != nil {
		return s.respondOutcome(c, err)
	}

	product, err := s.catalog.CreateProduct(c.UserContext(), resolvedTenant(c), service.CreateProductInput{
		OwnerID:    uid,
		Title:      req.Title,
		PriceCents: req.PriceCents,
		Publish:    req.Publish,
	})
	if err != nil {
		return s.respondOutcome(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newProductResponse(product, true))
}

type sitemapEntry struct {
	Loc  string `json:"loc"`
	Kind string `json:"kind"`
}

// GetSitemap lists the tenant's public URLs on its primary domain.
func (s *Server) GetSitemap(c *fiber.Ctx) error {
	res := resolvedTenant(c)
	if !s.featureFlags.EnabledOr(featureflags.FlagSitemap, res.TenantKey, true) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			&models.AppError{Code: models.CodeNotFound, Message: "Not found"})
	}

	host, _ := s.primaryHost(c, res)
	base := fmt.Sprintf("%s://%s", c.Protocol(), host)

	viewer := visibility.Public(res.TenantKey, res.Tenant.Mode)
	entries := []sitemapEntry{{Loc: base + "/", Kind: "home"}}

	products, err := s.catalog.ListProducts(c.UserContext(), viewer, repository.Page{Limit: sitemapPageSize})
	if err != nil {
		return s.respondOutcome(c, err)
	}
	for _, p := range products {
		entries = append(entries, sitemapEntry{Loc: fmt.Sprintf("%s/products/%d", base, p.ID), Kind: "product"})
	}

	if res.Tenant.Mode == models.TenantModeMarketplace {
		profiles, err := s.catalog.ListVendors(c.UserContext(), viewer, repository.Page{Limit: sitemapPageSize})
		if err != nil {
			return s.respondOutcome(c, err)
		}
		for _, p := range profiles {
			entries = append(entries, sitemapEntry{Loc: fmt.Sprintf("%s/vendors/%d", base, p.ID), Kind: "vendor"})
		}
	}

	return c.JSON(fiber.Map{"tenant": res.TenantKey, "urls": entries})
}
