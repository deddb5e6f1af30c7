// Package service provides the storefront's application logic on top of the
// repositories: catalog reads, vendor registration, domain management and
// tenant plan/mode transitions.
package service

import (
	"context"
	"log/slog"
	"strings"

	"storefront/internal/capability"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/observability"
	"storefront/internal/registry"
	"storefront/internal/repository"
	"storefront/internal/visibility"
)

// CatalogService reads products and vendor profiles for a viewer.
type CatalogService struct {
	products repository.ProductRepository
	profiles repository.VendorProfileRepository
	users    repository.UserRepository
	// strictViewer surfaces InvalidViewerContext instead of an empty result.
	strictViewer bool
}

// NewCatalogService returns a new CatalogService. With strictViewer set an
// incomplete viewer is reported as an error; otherwise it sees nothing.
func NewCatalogService(
	products repository.ProductRepository,
	profiles repository.VendorProfileRepository,
	users repository.UserRepository,
	strictViewer bool,
) *CatalogService {
	return &CatalogService{
		products:     products,
		profiles:     profiles,
		users:        users,
		strictViewer: strictViewer,
	}
}

// CreateProductInput is the input for listing a new product.
type CreateProductInput struct {
	OwnerID    uint
	Title      string
	PriceCents int64
	Publish    bool
}

func (s *CatalogService) productPredicate(ctx context.Context, v visibility.Viewer) (visibility.Predicate, error) {
	p, err := visibility.ProductPredicate(v)
	if err != nil {
		return s.viewerFailure(ctx, "product", err)
	}
	return p, nil
}

func (s *CatalogService) profilePredicate(ctx context.Context, v visibility.Viewer) (visibility.Predicate, error) {
	p, err := visibility.VendorProfilePredicate(v)
	if err != nil {
		return s.viewerFailure(ctx, "vendor_profile", err)
	}
	return p, nil
}

func (s *CatalogService) viewerFailure(ctx context.Context, entity string, err error) (visibility.Predicate, error) {
	middleware.Logger.ErrorContext(ctx, "Visibility predicate requested with an invalid viewer",
		slog.String("entity", entity),
		slog.String("error", err.Error()),
	)
	if s.strictViewer {
		return visibility.DenyAll, err
	}
	return visibility.DenyAll, nil
}

// ListProducts returns the products v may see. Rows with legacy values are
// left out and counted.
func (s *CatalogService) ListProducts(ctx context.Context, v visibility.Viewer, page repository.Page) ([]models.Product, error) {
	p, err := s.productPredicate(ctx, v)
	if err != nil {
		return nil, err
	}
	return s.listProducts(ctx, p, page)
}

func (s *CatalogService) listProducts(ctx context.Context, p visibility.Predicate, page repository.Page) ([]models.Product, error) {
	rows, err := s.products.List(ctx, p, page)
	if err != nil {
		return nil, err
	}

	out := rows[:0]
	for i := range rows {
		if keepProduct(ctx, p, &rows[i]) {
			out = append(out, rows[i])
		}
	}
	return out, nil
}

// ListVendorProducts returns the products of one vendor that v may see. The
// vendor filter is part of the query, so paging works over that vendor only.
func (s *CatalogService) ListVendorProducts(ctx context.Context, v visibility.Viewer, profile *models.VendorProfile, page repository.Page) ([]models.Product, error) {
	p, err := s.productPredicate(ctx, v)
	if err != nil {
		return nil, err
	}
	if !p.IsDenyAll() {
		p = visibility.All(p, visibility.Eq(visibility.ProductVendorID, profile.UserID))
	}
	return s.listProducts(ctx, p, page)
}

// GetProduct returns one product if v may see it.
func (s *CatalogService) GetProduct(ctx context.Context, v visibility.Viewer, id uint) (*models.Product, error) {
	p, err := s.productPredicate(ctx, v)
	if err != nil {
		return nil, err
	}
	product, err := s.products.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !keepProduct(ctx, p, product) {
		return nil, models.NewNotFoundError("Product", id)
	}
	return product, nil
}

// ListVendors returns the vendor profiles v may see.
func (s *CatalogService) ListVendors(ctx context.Context, v visibility.Viewer, page repository.Page) ([]models.VendorProfile, error) {
	p, err := s.profilePredicate(ctx, v)
	if err != nil {
		return nil, err
	}
	rows, err := s.profiles.List(ctx, p, page)
	if err != nil {
		return nil, err
	}

	out := rows[:0]
	for i := range rows {
		if keepProfile(ctx, p, &rows[i]) {
			out = append(out, rows[i])
		}
	}
	return out, nil
}

// GetVendor returns one vendor profile if v may see it.
func (s *CatalogService) GetVendor(ctx context.Context, v visibility.Viewer, id uint) (*models.VendorProfile, error) {
	p, err := s.profilePredicate(ctx, v)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !keepProfile(ctx, p, profile) {
		return nil, models.NewNotFoundError("Vendor", id)
	}
	return profile, nil
}

// CreateProduct lists a new product for the owner in the resolved tenant.
// White-label stores accept products from tenant admins, and from other users
// only when vendorSell is granted by override. Marketplaces need an unblocked
// vendor profile. The plan's product limit applies.
func (s *CatalogService) CreateProduct(ctx context.Context, res *registry.Resolved, in CreateProductInput) (*models.Product, error) {
	whiteLabel := res.Tenant.Mode == models.TenantModeWhiteLabel
	if whiteLabel {
		if err := capability.Require(res.Capabilities, capability.WhiteLabelStore, capability.Hide()); err != nil {
			return nil, err
		}
	} else if err := capability.Require(res.Capabilities, capability.VendorSell, capability.RedirectTo("/")); err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, models.NewValidationError("Product title is required")
	}
	if in.PriceCents < 0 {
		return nil, models.NewValidationError("Product price cannot be negative")
	}

	owner, err := s.users.GetByID(ctx, in.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner.IsBlocked {
		return nil, models.NewValidationError("Blocked users cannot list products")
	}

	product := &models.Product{
		TenantKey:  res.TenantKey,
		VendorID:   owner.ID,
		Title:      in.Title,
		Slug:       slugify(in.Title),
		PriceCents: in.PriceCents,
		Status:     models.ProductStatusDraft,
	}

	if whiteLabel {
		if !owner.IsAdmin {
			if err := capability.Require(res.Capabilities, capability.VendorSell, capability.RedirectTo("/")); err != nil {
				return nil, err
			}
		}
	} else {
		profile, err := s.profiles.GetByTenantUser(ctx, res.TenantKey, owner.ID)
		if err != nil {
			if models.ErrorCode(err) == models.CodeNotFound {
				return nil, models.NewValidationError("Register as a vendor before listing products")
			}
			return nil, err
		}
		if profile.Status == models.VendorStatusBlocked {
			return nil, models.NewValidationError("Blocked vendors cannot list products")
		}
		product.VendorProfileID = &profile.ID
	}

	count, err := s.products.CountByTenant(ctx, res.TenantKey)
	if err != nil {
		return nil, err
	}
	if err := capability.RequireWithinLimit(res.Capabilities, capability.MaxProducts, count, capability.RedirectTo("/")); err != nil {
		return nil, err
	}

	if in.Publish {
		product.Status = models.ProductStatusActive
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// keepProduct re-evaluates pred against a fetched row and then normalizes
// it. A row the query returned but pred rejects is dropped and logged.
func keepProduct(ctx context.Context, pred visibility.Predicate, p *models.Product) bool {
	if !pred.Matches(visibility.ProductFactsOf(p)) {
		observability.VisibilityMismatches.WithLabelValues("product").Inc()
		middleware.Logger.ErrorContext(ctx, "Product returned by query failed visibility check",
			slog.Uint64("product_id", uint64(p.ID)),
			slog.String("predicate", pred.String()),
		)
		return false
	}
	if err := p.Normalize(); err != nil {
		observability.LegacyRows.WithLabelValues("product").Inc()
		middleware.Logger.WarnContext(ctx, "Product with legacy data excluded",
			slog.Uint64("product_id", uint64(p.ID)),
			slog.String("error", err.Error()),
		)
		return false
	}
	if p.VendorProfile != nil && !normalizeProfile(ctx, p.VendorProfile) {
		return false
	}
	return true
}

// keepProfile is keepProduct for vendor profiles.
func keepProfile(ctx context.Context, pred visibility.Predicate, p *models.VendorProfile) bool {
	if !pred.Matches(visibility.ProfileFactsOf(p)) {
		observability.VisibilityMismatches.WithLabelValues("vendor_profile").Inc()
		middleware.Logger.ErrorContext(ctx, "Vendor profile returned by query failed visibility check",
			slog.Uint64("vendor_profile_id", uint64(p.ID)),
			slog.String("predicate", pred.String()),
		)
		return false
	}
	return normalizeProfile(ctx, p)
}

func normalizeProfile(ctx context.Context, p *models.VendorProfile) bool {
	status, err := models.NormalizeVendorStatus(string(p.Status))
	if err != nil {
		observability.LegacyRows.WithLabelValues("vendor_profile").Inc()
		middleware.Logger.WarnContext(ctx, "Vendor profile with legacy data excluded",
			slog.Uint64("vendor_profile_id", uint64(p.ID)),
			slog.String("error", err.Error()),
		)
		return false
	}
	p.Status = status
	return true
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
