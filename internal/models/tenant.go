package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// TenantMode selects between a single-operator shop and a multi-vendor marketplace.
type TenantMode string

const (
	// TenantModeWhiteLabel is a single-vendor branded shop.
	TenantModeWhiteLabel TenantMode = "WHITE_LABEL"
	// TenantModeMarketplace is a multi-vendor public catalog.
	TenantModeMarketplace TenantMode = "MARKETPLACE"
)

// Plan drives quantitative limits and branding features.
type Plan string

const (
	PlanFree       Plan = "FREE"
	PlanPro        Plan = "PRO"
	PlanEnterprise Plan = "ENTERPRISE"
)

var legacyTenantModes = map[string]TenantMode{
	"WHITE_LABEL":   TenantModeWhiteLabel,
	"WHITELABEL":    TenantModeWhiteLabel,
	"SINGLE_VENDOR": TenantModeWhiteLabel,
	"MARKETPLACE":   TenantModeMarketplace,
	"CONTENT_OS":    TenantModeMarketplace,
	"PAID_VENDOR":   TenantModeMarketplace,
	"MIXED":         TenantModeMarketplace,
}

// NormalizeTenantMode maps stored mode values, including legacy names, onto the canonical set.
func NormalizeTenantMode(raw string) (TenantMode, error) {
	if mode, ok := legacyTenantModes[canonicalEnum(raw)]; ok {
		return mode, nil
	}
	return "", NewLegacyDataError("tenant", "mode", raw)
}

// NormalizePlan maps stored plan values onto the canonical set.
func NormalizePlan(raw string) (Plan, error) {
	switch canonicalEnum(raw) {
	case "FREE", "":
		return PlanFree, nil
	case "PRO":
		return PlanPro, nil
	case "ENTERPRISE":
		return PlanEnterprise, nil
	}
	return "", NewLegacyDataError("tenant", "plan", raw)
}

// IsCanonical reports whether m is one of the two canonical modes.
func (m TenantMode) IsCanonical() bool {
	return m == TenantModeWhiteLabel || m == TenantModeMarketplace
}

// Tenant is an isolated storefront sharing the deployment and database.
type Tenant struct {
	ID                  uint              `gorm:"primaryKey" json:"id"`
	Key                 string            `gorm:"size:64;not null;uniqueIndex" json:"key"`
	Name                string            `gorm:"size:120;not null" json:"name"`
	Mode                TenantMode        `gorm:"type:varchar(20);not null" json:"mode"`
	Plan                Plan              `gorm:"type:varchar(20);not null" json:"plan"`
	Theme               datatypes.JSONMap `json:"theme,omitempty"`
	CapabilityOverrides datatypes.JSONMap `json:"capability_overrides,omitempty"`
	Domains             []TenantDomain    `gorm:"foreignKey:TenantID" json:"domains,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Tenant) TableName() string {
	return "tenants"
}

// Normalize rewrites legacy mode and plan values in place.
// It fails with a LegacyDataInconsistency error for values it cannot map.
func (t *Tenant) Normalize() error {
	mode, err := NormalizeTenantMode(string(t.Mode))
	if err != nil {
		return err
	}
	plan, err := NormalizePlan(string(t.Plan))
	if err != nil {
		return err
	}
	t.Mode = mode
	t.Plan = plan
	return nil
}

// TenantDomain maps one hostname to a tenant.
type TenantDomain struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  uint      `gorm:"not null;index" json:"tenant_id"`
	Domain    string    `gorm:"size:253;not null;uniqueIndex" json:"domain"`
	IsPrimary bool      `gorm:"not null" json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (TenantDomain) TableName() string {
	return "tenant_domains"
}

func canonicalEnum(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}
