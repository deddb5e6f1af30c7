package visibility

import "storefront/internal/models"

// ProductPredicate returns the rows of products the viewer may see.
//
//	ADMIN         tenant match
//	VENDOR_OWNER  tenant match and own products
//	PUBLIC        tenant match, ACTIVE and isActive, vendor not blocked and,
//	              in MARKETPLACE mode, a storefront-visible profile of this tenant
//
// Incomplete viewer context returns DenyAll with an INVALID_VIEWER_CONTEXT error.
func ProductPredicate(v Viewer) (Predicate, error) {
	mode, err := v.validate()
	if err != nil {
		return DenyAll, err
	}

	tenant := Eq(ProductTenantKey, v.TenantKey)
	switch v.Role {
	case RoleAdmin:
		return All(tenant), nil
	case RoleVendorOwner:
		return All(tenant, Eq(ProductVendorID, v.UserID)), nil
	}

	conds := []Predicate{
		tenant,
		Eq(ProductStatus, models.ProductStatusActive),
		Eq(ProductIsActive, true),
		Eq(ProductVendorBlocked, false),
	}
	// The tenant is fixed by the tenant match above, so the mode branch is
	// decided here rather than tested per row.
	if mode == models.TenantModeMarketplace {
		conds = append(conds, Eq(ProfileExists, true))
		conds = append(conds, storefrontProfile(v.TenantKey)...)
	}
	return All(conds...), nil
}

// VendorProfilePredicate returns the vendor profiles the viewer may see.
// Whether profile pages exist at all for the tenant's mode is the mode
// guard's decision, not this predicate's.
func VendorProfilePredicate(v Viewer) (Predicate, error) {
	if _, err := v.validate(); err != nil {
		return DenyAll, err
	}

	public := All(storefrontProfile(v.TenantKey)...)
	switch v.Role {
	case RoleAdmin:
		return All(Eq(ProfileTenantKey, v.TenantKey)), nil
	case RoleVendorOwner:
		return Any(public, All(Eq(ProfileTenantKey, v.TenantKey), Eq(ProfileUserID, v.UserID))), nil
	}
	return public, nil
}

func storefrontProfile(tenantKey string) []Predicate {
	return []Predicate{
		Eq(ProfileTenantKey, tenantKey),
		Eq(ProfileStatus, models.VendorStatusApproved),
		Eq(ProfileIsPublic, true),
		Eq(ProfileUserBlocked, false),
	}
}
