package repository

import (
	"context"
	"errors"

	"storefront/internal/models"

	"gorm.io/gorm"
)

// DomainRepository defines read operations on tenant domains. Writes that
// touch the primary flag go through DomainService transactions.
type DomainRepository interface {
	TenantKeyForDomain(ctx context.Context, domain string) (string, error)
	GetByDomain(ctx context.Context, domain string) (*models.TenantDomain, error)
	ListByTenant(ctx context.Context, tenantID uint) ([]models.TenantDomain, error)
	PrimaryForTenant(ctx context.Context, tenantID uint) (*models.TenantDomain, error)
}

type domainRepository struct {
	db *gorm.DB
}

// NewDomainRepository returns a new DomainRepository implementation.
func NewDomainRepository(db *gorm.DB) DomainRepository {
	return &domainRepository{db: db}
}

func (r *domainRepository) TenantKeyForDomain(ctx context.Context, domain string) (string, error) {
	var keys []string
	err := r.db.WithContext(ctx).
		Table("tenant_domains").
		Select(`"tenants"."key"`).
		Joins("JOIN tenants ON tenants.id = tenant_domains.tenant_id").
		Where("tenant_domains.domain = ?", domain).
		Limit(1).
		Pluck(`"tenants"."key"`, &keys).Error
	if err != nil {
		return "", models.NewInternalError(err)
	}
	if len(keys) == 0 {
		return "", models.NewNotFoundError("TenantDomain", domain)
	}
	return keys[0], nil
}

func (r *domainRepository) GetByDomain(ctx context.Context, domain string) (*models.TenantDomain, error) {
	var d models.TenantDomain
	if err := r.db.WithContext(ctx).Where("domain = ?", domain).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("TenantDomain", domain)
		}
		return nil, models.NewInternalError(err)
	}
	return &d, nil
}

func (r *domainRepository) ListByTenant(ctx context.Context, tenantID uint) ([]models.TenantDomain, error) {
	var domains []models.TenantDomain
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC, id ASC").
		Find(&domains).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return domains, nil
}

func (r *domainRepository) PrimaryForTenant(ctx context.Context, tenantID uint) (*models.TenantDomain, error) {
	var d models.TenantDomain
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND is_primary = ?", tenantID, true).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("primary domain for tenant", tenantID)
		}
		return nil, models.NewInternalError(err)
	}
	return &d, nil
}
