package visibility

import (
	"strings"

	"storefront/internal/models"
)

// Role is the viewer's relationship to the catalog.
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleVendorOwner Role = "VENDOR_OWNER"
	RolePublic      Role = "PUBLIC"
)

// Viewer is the context a predicate is built for.
type Viewer struct {
	Role       Role
	UserID     uint
	TenantKey  string
	TenantMode models.TenantMode
}

// Public returns a PUBLIC viewer for the tenant.
func Public(tenantKey string, mode models.TenantMode) Viewer {
	return Viewer{Role: RolePublic, TenantKey: tenantKey, TenantMode: mode}
}

// Owner returns a VENDOR_OWNER viewer for userID in the tenant.
func Owner(tenantKey string, mode models.TenantMode, userID uint) Viewer {
	return Viewer{Role: RoleVendorOwner, TenantKey: tenantKey, TenantMode: mode, UserID: userID}
}

// Admin returns an ADMIN viewer for the tenant.
func Admin(tenantKey string, mode models.TenantMode, userID uint) Viewer {
	return Viewer{Role: RoleAdmin, TenantKey: tenantKey, TenantMode: mode, UserID: userID}
}

func (v Viewer) validate() (models.TenantMode, error) {
	if strings.TrimSpace(v.TenantKey) == "" {
		return "", models.NewInvalidViewerContextError("viewer has no tenant key")
	}
	switch v.Role {
	case RoleAdmin:
	case RoleVendorOwner:
		if v.UserID == 0 {
			return "", models.NewInvalidViewerContextError("vendor owner viewer has no user id")
		}
	case RolePublic:
	default:
		return "", models.NewInvalidViewerContextError("unknown viewer role " + string(v.Role))
	}

	mode, err := models.NormalizeTenantMode(string(v.TenantMode))
	if err != nil {
		return "", models.NewInvalidViewerContextError("viewer tenant mode " + string(v.TenantMode) + " is not recognized")
	}
	return mode, nil
}
