package models

import "time"

// ProductStatus defines the lifecycle state of a product.
type ProductStatus string

const (
	ProductStatusDraft   ProductStatus = "DRAFT"
	ProductStatusActive  ProductStatus = "ACTIVE"
	ProductStatusBlocked ProductStatus = "BLOCKED"
)

// ReadableProductStatuses are the upper-cased stored spellings
// NormalizeProductStatus accepts.
var ReadableProductStatuses = []string{"DRAFT", "ARCHIVED", "ACTIVE", "PUBLISHED", "BLOCKED"}

// NormalizeProductStatus maps stored statuses onto the canonical set.
// PUBLISHED is treated as ACTIVE and ARCHIVED as DRAFT.
func NormalizeProductStatus(raw string) (ProductStatus, error) {
	switch canonicalEnum(raw) {
	case "DRAFT", "ARCHIVED":
		return ProductStatusDraft, nil
	case "ACTIVE", "PUBLISHED":
		return ProductStatusActive, nil
	case "BLOCKED":
		return ProductStatusBlocked, nil
	}
	return "", NewLegacyDataError("product", "status", raw)
}

// Product is a digital good listed by a vendor inside one tenant.
type Product struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	TenantKey       string         `gorm:"size:64;not null;index" json:"tenant_key"`
	VendorID        uint           `gorm:"not null;index" json:"vendor_id"`
	Vendor          *User          `gorm:"foreignKey:VendorID" json:"-"`
	VendorProfileID *uint          `gorm:"index" json:"vendor_profile_id,omitempty"`
	VendorProfile   *VendorProfile `gorm:"foreignKey:VendorProfileID" json:"vendor_profile,omitempty"`
	Title           string         `gorm:"size:200;not null" json:"title"`
	Slug            string         `gorm:"size:200" json:"slug"`
	PriceCents      int64          `gorm:"not null" json:"price_cents"`
	Status          ProductStatus  `gorm:"type:varchar(20);not null;index" json:"status"`
	IsActive        bool           `gorm:"not null" json:"is_active"`
	// BlockedByCascade marks products blocked by a user/vendor cascade so an
	// unblock restores exactly those rows.
	BlockedByCascade bool      `gorm:"not null" json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Product) TableName() string {
	return "products"
}

// Normalize validates the tenant key and rewrites a legacy status in place.
func (p *Product) Normalize() error {
	if p.TenantKey == "" {
		return NewLegacyDataError("product", "tenant_key", "")
	}
	status, err := NormalizeProductStatus(string(p.Status))
	if err != nil {
		return err
	}
	p.Status = status
	return nil
}
