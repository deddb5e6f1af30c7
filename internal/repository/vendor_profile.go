package repository

import (
	"context"
	"errors"

	"storefront/internal/models"
	"storefront/internal/visibility"

	"gorm.io/gorm"
)

// VendorProfileRepository defines persistence operations for vendor profiles.
type VendorProfileRepository interface {
	List(ctx context.Context, p visibility.Predicate, page Page) ([]models.VendorProfile, error)
	Get(ctx context.Context, p visibility.Predicate, id uint) (*models.VendorProfile, error)
	GetByTenantUser(ctx context.Context, tenantKey string, userID uint) (*models.VendorProfile, error)
	CountByTenant(ctx context.Context, tenantKey string) (int64, error)
	Create(ctx context.Context, profile *models.VendorProfile) error
}

type vendorProfileRepository struct {
	db *gorm.DB
}

// NewVendorProfileRepository returns a new VendorProfileRepository implementation.
func NewVendorProfileRepository(db *gorm.DB) VendorProfileRepository {
	return &vendorProfileRepository{db: db}
}

func (r *vendorProfileRepository) scoped(ctx context.Context, p visibility.Predicate) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.VendorProfile{}).Select("vendor_profiles.*").Preload("User")
	return withoutUnreadableProfiles(ApplyVendorProfilePredicate(q, p))
}

func (r *vendorProfileRepository) List(ctx context.Context, p visibility.Predicate, page Page) ([]models.VendorProfile, error) {
	if p.IsDenyAll() {
		return []models.VendorProfile{}, nil
	}
	page = page.normalized()

	var profiles []models.VendorProfile
	if err := r.scoped(ctx, p).
		Order("vendor_profiles.id ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&profiles).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return profiles, nil
}

func (r *vendorProfileRepository) Get(ctx context.Context, p visibility.Predicate, id uint) (*models.VendorProfile, error) {
	if p.IsDenyAll() {
		return nil, models.NewNotFoundError("Vendor", id)
	}
	var profile models.VendorProfile
	if err := r.scoped(ctx, p).Where("vendor_profiles.id = ?", id).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Vendor", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &profile, nil
}

func (r *vendorProfileRepository) GetByTenantUser(ctx context.Context, tenantKey string, userID uint) (*models.VendorProfile, error) {
	var profile models.VendorProfile
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("tenant_key = ? AND user_id = ?", tenantKey, userID).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Vendor profile for user", userID)
		}
		return nil, models.NewInternalError(err)
	}
	return &profile, nil
}

func (r *vendorProfileRepository) CountByTenant(ctx context.Context, tenantKey string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.VendorProfile{}).
		Where("tenant_key = ? AND status <> ?", tenantKey, models.VendorStatusBlocked).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *vendorProfileRepository) Create(ctx context.Context, profile *models.VendorProfile) error {
	if profile.TenantKey == "" {
		return models.NewValidationError("vendor profile requires a tenant key")
	}
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		if IsUniqueViolation(err) {
			return models.NewValidationError("user already has a vendor profile in this tenant")
		}
		return models.NewInternalError(err)
	}
	return nil
}
