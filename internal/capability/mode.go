package capability

import (
	"fmt"
	"slices"

	"storefront/internal/models"
)

// Mode-exclusive features.
const (
	FeatureVendorRegister  = "vendor.register"
	FeatureVendorDirectory = "vendor.directory"
	FeatureVendorProfile   = "vendor.profile"
	FeatureShopLanding     = "shop.landing"
)

var (
	MarketplaceOnly = []models.TenantMode{models.TenantModeMarketplace}
	WhiteLabelOnly  = []models.TenantMode{models.TenantModeWhiteLabel}
)

// ModeForbiddenError reports a feature that the tenant's mode does not allow.
type ModeForbiddenError struct {
	Feature string
	Mode    models.TenantMode
}

func (e *ModeForbiddenError) Error() string {
	return fmt.Sprintf("%s is not available for %s tenants", e.Feature, e.Mode)
}

// Is makes errors.Is(err, models.ErrModeForbidden) hold.
func (e *ModeForbiddenError) Is(target error) bool {
	return target == models.ErrModeForbidden
}

// FeatureName exposes the feature in error responses.
func (e *ModeForbiddenError) FeatureName() string {
	return e.Feature
}

// RequireMode returns nil when t's mode is one of allowed. Legacy mode names
// are normalized first; an unrecognized mode is always forbidden.
func RequireMode(t *models.Tenant, allowed []models.TenantMode, feature string) error {
	if t == nil {
		return &ModeForbiddenError{Feature: feature}
	}
	mode, err := models.NormalizeTenantMode(string(t.Mode))
	if err != nil {
		return &ModeForbiddenError{Feature: feature, Mode: t.Mode}
	}
	if slices.Contains(allowed, mode) {
		return nil
	}
	return &ModeForbiddenError{Feature: feature, Mode: mode}
}
