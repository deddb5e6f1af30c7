package repository

import (
	"fmt"
	"reflect"
	"strings"

	"storefront/internal/visibility"

	"gorm.io/gorm"
)

// This file is the only place visibility predicates become SQL.

const (
	joinProductVendor      = "LEFT JOIN users AS vendor_user ON vendor_user.id = products.vendor_id"
	joinProductProfile     = "LEFT JOIN vendor_profiles AS vp ON vp.id = products.vendor_profile_id"
	joinProductProfileUser = "LEFT JOIN users AS vp_user ON vp_user.id = vp.user_id"
	joinProfileUser        = "LEFT JOIN users AS vp_user ON vp_user.id = vendor_profiles.user_id"
)

var productColumns = map[visibility.Field]string{
	visibility.ProductTenantKey:     "products.tenant_key",
	visibility.ProductVendorID:      "products.vendor_id",
	visibility.ProductStatus:        "products.status",
	visibility.ProductIsActive:      "products.is_active",
	visibility.ProductVendorBlocked: "vendor_user.is_blocked",
	visibility.ProfileExists:        "vp.id",
	visibility.ProfileTenantKey:     "vp.tenant_key",
	visibility.ProfileUserID:        "vp.user_id",
	visibility.ProfileStatus:        "vp.status",
	visibility.ProfileIsPublic:      "vp.is_public",
	visibility.ProfileUserBlocked:   "vp_user.is_blocked",
}

var profileColumns = map[visibility.Field]string{
	visibility.ProfileExists:      "vendor_profiles.id",
	visibility.ProfileTenantKey:   "vendor_profiles.tenant_key",
	visibility.ProfileUserID:      "vendor_profiles.user_id",
	visibility.ProfileStatus:      "vendor_profiles.status",
	visibility.ProfileIsPublic:    "vendor_profiles.is_public",
	visibility.ProfileUserBlocked: "vp_user.is_blocked",
}

// ApplyProductPredicate scopes a query on products to the rows p allows,
// adding only the joins p needs. A DenyAll predicate matches nothing.
func ApplyProductPredicate(db *gorm.DB, p visibility.Predicate) *gorm.DB {
	if p.IsDenyAll() {
		return db.Where("1 = 0")
	}

	usesProfile := p.Uses(visibility.ProfileExists) || p.Uses(visibility.ProfileTenantKey) ||
		p.Uses(visibility.ProfileUserID) || p.Uses(visibility.ProfileStatus) ||
		p.Uses(visibility.ProfileIsPublic) || p.Uses(visibility.ProfileUserBlocked)

	if p.Uses(visibility.ProductVendorBlocked) {
		db = db.Joins(joinProductVendor)
	}
	if usesProfile {
		db = db.Joins(joinProductProfile)
	}
	if p.Uses(visibility.ProfileUserBlocked) {
		db = db.Joins(joinProductProfileUser)
	}
	return where(db, p, productColumns)
}

// ApplyVendorProfilePredicate scopes a query on vendor_profiles to the rows p allows.
func ApplyVendorProfilePredicate(db *gorm.DB, p visibility.Predicate) *gorm.DB {
	if p.IsDenyAll() {
		return db.Where("1 = 0")
	}
	if p.Uses(visibility.ProfileUserBlocked) {
		db = db.Joins(joinProfileUser)
	}
	return where(db, p, profileColumns)
}

func where(db *gorm.DB, p visibility.Predicate, cols map[visibility.Field]string) *gorm.DB {
	sql, args, err := translate(p, cols)
	if err != nil {
		_ = db.AddError(err)
		return db.Where("1 = 0")
	}
	return db.Where(sql, args...)
}

func translate(p visibility.Predicate, cols map[visibility.Field]string) (string, []any, error) {
	switch p.Op {
	case visibility.OpDeny:
		return "1 = 0", nil, nil
	case visibility.OpEq:
		col, ok := cols[p.Field]
		if !ok {
			return "", nil, fmt.Errorf("visibility field %s has no column here", p.Field)
		}
		if p.Field == visibility.ProfileExists {
			if exists, _ := p.Value.(bool); exists {
				return col + " IS NOT NULL", nil, nil
			}
			return col + " IS NULL", nil, nil
		}
		return col + " = ?", []any{sqlValue(p.Value)}, nil
	case visibility.OpAll, visibility.OpAny:
		if len(p.Children) == 0 {
			if p.Op == visibility.OpAll {
				return "1 = 1", nil, nil
			}
			return "1 = 0", nil, nil
		}
		parts := make([]string, 0, len(p.Children))
		var args []any
		for _, c := range p.Children {
			sql, a, err := translate(c, cols)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			args = append(args, a...)
		}
		sep := " AND "
		if p.Op == visibility.OpAny {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")", args, nil
	}
	return "", nil, fmt.Errorf("unknown predicate op %q", p.Op)
}

// sqlValue unwraps named string types such as models.ProductStatus.
func sqlValue(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return v
}
