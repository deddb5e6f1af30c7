package service

import (
	"context"
	"strings"

	"storefront/internal/capability"
	"storefront/internal/models"
	"storefront/internal/registry"
	"storefront/internal/repository"
)

// VendorService handles vendor self-registration.
type VendorService struct {
	profiles repository.VendorProfileRepository
	users    repository.UserRepository
}

// NewVendorService returns a new VendorService.
func NewVendorService(profiles repository.VendorProfileRepository, users repository.UserRepository) *VendorService {
	return &VendorService{profiles: profiles, users: users}
}

// RegisterInput is the input for vendor registration.
type RegisterInput struct {
	UserID      uint
	DisplayName string
}

// Register creates a PENDING vendor profile for the user in the resolved
// marketplace. A user who already holds a profile gets it back unchanged,
// whatever its status.
func (s *VendorService) Register(ctx context.Context, res *registry.Resolved, in RegisterInput) (*models.VendorProfile, bool, error) {
	if err := capability.RequireMode(res.Tenant, capability.MarketplaceOnly, capability.FeatureVendorRegister); err != nil {
		return nil, false, err
	}
	if err := capability.Require(res.Capabilities, capability.VendorSell, capability.RedirectTo("/")); err != nil {
		return nil, false, err
	}

	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, false, err
	}
	if user.IsBlocked {
		return nil, false, models.NewValidationError("Blocked users cannot register as vendors")
	}

	existing, err := s.profiles.GetByTenantUser(ctx, res.TenantKey, user.ID)
	if err == nil {
		return existing, false, nil
	}
	if models.ErrorCode(err) != models.CodeNotFound {
		return nil, false, err
	}

	count, err := s.profiles.CountByTenant(ctx, res.TenantKey)
	if err != nil {
		return nil, false, err
	}
	if err := capability.RequireWithinLimit(res.Capabilities, capability.MaxVendors, count, capability.RedirectTo("/")); err != nil {
		return nil, false, err
	}

	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		name = user.Username
	}
	if len(name) > 120 {
		return nil, false, models.NewValidationError("Display name must be at most 120 characters")
	}

	profile := &models.VendorProfile{
		TenantKey:   res.TenantKey,
		UserID:      user.ID,
		Status:      models.VendorStatusPending,
		IsPublic:    true,
		DisplayName: name,
		Slug:        slugify(name),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, false, err
	}
	profile.User = user
	return profile, true, nil
}
