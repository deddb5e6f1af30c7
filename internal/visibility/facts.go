package visibility

import "storefront/internal/models"

// ProductFacts are the values the product predicate reads for one product.
type ProductFacts struct {
	TenantKey     string
	VendorID      uint
	Status        models.ProductStatus
	IsActive      bool
	VendorBlocked bool
	// VendorKnown is false when the vendor user was not loaded.
	VendorKnown bool
	Profile     *ProfileFacts
}

// ProfileFacts are the values the vendor profile predicate reads.
type ProfileFacts struct {
	TenantKey   string
	UserID      uint
	Status      models.VendorStatus
	IsPublic    bool
	UserBlocked bool
	UserKnown   bool
}

// Fact implements Facts.
func (f ProductFacts) Fact(field Field) (any, bool) {
	switch field {
	case ProductTenantKey:
		return f.TenantKey, f.TenantKey != ""
	case ProductVendorID:
		return f.VendorID, true
	case ProductStatus:
		return f.Status, f.Status != ""
	case ProductIsActive:
		return f.IsActive, true
	case ProductVendorBlocked:
		return f.VendorBlocked, f.VendorKnown
	case ProfileExists:
		return f.Profile != nil, true
	}
	if f.Profile == nil {
		return nil, false
	}
	return f.Profile.Fact(field)
}

// Fact implements Facts.
func (f ProfileFacts) Fact(field Field) (any, bool) {
	switch field {
	case ProfileExists:
		return true, true
	case ProfileTenantKey:
		return f.TenantKey, f.TenantKey != ""
	case ProfileUserID:
		return f.UserID, true
	case ProfileStatus:
		return f.Status, f.Status != ""
	case ProfileIsPublic:
		return f.IsPublic, true
	case ProfileUserBlocked:
		return f.UserBlocked, f.UserKnown
	}
	return nil, false
}

// ProfileFactsOf extracts facts from a profile with its User preloaded.
// Facts are the stored values: a status outside the canonical spelling is
// left empty, so the profile fails closed exactly as it does in SQL.
func ProfileFactsOf(p *models.VendorProfile) *ProfileFacts {
	if p == nil {
		return nil
	}
	f := &ProfileFacts{
		TenantKey: p.TenantKey,
		UserID:    p.UserID,
		Status:    storedVendorStatus(p.Status),
		IsPublic:  p.IsPublic,
	}
	if p.User != nil {
		f.UserKnown = true
		f.UserBlocked = p.User.IsBlocked
	}
	return f
}

// ProductFactsOf extracts facts from a product with Vendor and
// VendorProfile.User preloaded. Legacy statuses such as PUBLISHED are not
// normalized here; they stay hidden until the backfill rewrites them.
func ProductFactsOf(p *models.Product) ProductFacts {
	f := ProductFacts{
		TenantKey: p.TenantKey,
		VendorID:  p.VendorID,
		Status:    storedProductStatus(p.Status),
		IsActive:  p.IsActive,
		Profile:   ProfileFactsOf(p.VendorProfile),
	}
	if p.Vendor != nil {
		f.VendorKnown = true
		f.VendorBlocked = p.Vendor.IsBlocked
	}
	return f
}

func storedProductStatus(s models.ProductStatus) models.ProductStatus {
	switch s {
	case models.ProductStatusDraft, models.ProductStatusActive, models.ProductStatusBlocked:
		return s
	}
	return ""
}

func storedVendorStatus(s models.VendorStatus) models.VendorStatus {
	switch s {
	case models.VendorStatusPending, models.VendorStatusApproved, models.VendorStatusBlocked:
		return s
	}
	return ""
}
