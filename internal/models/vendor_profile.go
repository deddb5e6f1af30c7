package models

import "time"

// VendorStatus defines the moderation state of a vendor profile.
type VendorStatus string

const (
	// VendorStatusPending is awaiting admin approval.
	VendorStatusPending VendorStatus = "PENDING"
	// VendorStatusApproved may sell and be listed publicly.
	VendorStatusApproved VendorStatus = "APPROVED"
	// VendorStatusBlocked is removed by moderation.
	VendorStatusBlocked VendorStatus = "BLOCKED"
)

// ReadableVendorStatuses are the upper-cased stored spellings
// NormalizeVendorStatus accepts.
var ReadableVendorStatuses = []string{"PENDING", "APPROVED", "BLOCKED", "SUSPENDED", "REJECTED"}

// NormalizeVendorStatus maps stored vendor statuses, including SUSPENDED and REJECTED, onto the canonical set.
func NormalizeVendorStatus(raw string) (VendorStatus, error) {
	switch canonicalEnum(raw) {
	case "PENDING":
		return VendorStatusPending, nil
	case "APPROVED":
		return VendorStatusApproved, nil
	case "BLOCKED", "SUSPENDED", "REJECTED":
		return VendorStatusBlocked, nil
	}
	return "", NewLegacyDataError("vendor_profile", "status", raw)
}

// VendorProfile is a user's seller identity within one tenant.
type VendorProfile struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	TenantKey   string       `gorm:"size:64;not null;uniqueIndex:ux_vendor_profiles_tenant_user,priority:1" json:"tenant_key"`
	UserID      uint         `gorm:"not null;uniqueIndex:ux_vendor_profiles_tenant_user,priority:2" json:"user_id"`
	User        *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Status      VendorStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	IsPublic    bool         `gorm:"not null" json:"is_public"`
	DisplayName string       `gorm:"size:120" json:"display_name"`
	Slug        string       `gorm:"size:64" json:"slug"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (VendorProfile) TableName() string {
	return "vendor_profiles"
}
