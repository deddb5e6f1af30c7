package service

import (
	"context"
	"errors"
	"log/slog"

	"storefront/internal/audit"
	"storefront/internal/cache"
	"storefront/internal/capability"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/registry"
	"storefront/internal/repository"
	"storefront/internal/validation"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Domain audit actions.
const (
	ActionDomainAdd        = "domain.add"
	ActionDomainRemove     = "domain.remove"
	ActionDomainSetPrimary = "domain.set_primary"
)

// DomainService manages a tenant's hostnames. Every write that touches the
// primary flag clears it for the whole tenant and sets it on one row inside
// the same transaction, with the tenant row locked.
type DomainService struct {
	db             *gorm.DB
	tenants        repository.TenantRepository
	domains        repository.DomainRepository
	cache          *cache.Store
	emitter        audit.Emitter
	platformDomain string
	// reserved holds hosts claimed outside the database, such as the static
	// registry file, which resolution consults first.
	reserved registry.Registry
}

// NewDomainService returns a new DomainService. Hosts under platformDomain
// are platform subdomains; any other host needs the customDomain capability.
func NewDomainService(
	db *gorm.DB,
	tenants repository.TenantRepository,
	domains repository.DomainRepository,
	store *cache.Store,
	emitter audit.Emitter,
	platformDomain string,
) *DomainService {
	return &DomainService{
		db:             db,
		tenants:        tenants,
		domains:        domains,
		cache:          store,
		emitter:        emitter,
		platformDomain: platformDomain,
	}
}

// WithReserved makes AddDomain refuse hosts that reg maps to another tenant.
func (s *DomainService) WithReserved(reg registry.Registry) *DomainService {
	s.reserved = reg
	return s
}

// adminPolicy surfaces capability failures on admin APIs as 403.
var adminPolicy = capability.Policy{OnFail: capability.Forbidden}

// List returns the tenant's domains, oldest first.
func (s *DomainService) List(ctx context.Context, tenantKey string) ([]models.TenantDomain, error) {
	tenant, err := s.tenants.GetByKey(ctx, tenantKey)
	if err != nil {
		return nil, err
	}
	return s.domains.ListByTenant(ctx, tenant.ID)
}

// AddDomain attaches host to the tenant. The first domain of a tenant is
// always primary; later ones become primary only with makePrimary.
func (s *DomainService) AddDomain(ctx context.Context, actorID uint, tenantKey, rawHost string, makePrimary bool) (*models.TenantDomain, error) {
	host, err := cleanHost(rawHost)
	if err != nil {
		return nil, err
	}
	if s.reserved != nil {
		owner, ok, err := s.reserved.Lookup(ctx, host)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		if ok && owner != tenantKey {
			return nil, models.NewValidationError("Domain is already registered")
		}
	}

	var domain models.TenantDomain
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant, err := lockTenant(tx, tenantKey)
		if err != nil {
			return err
		}
		caps := capability.Derive(tenant)

		var count int64
		if err := tx.Model(&models.TenantDomain{}).Where("tenant_id = ?", tenant.ID).Count(&count).Error; err != nil {
			return err
		}
		if err := capability.RequireWithinLimit(caps, capability.MaxDomains, count, adminPolicy); err != nil {
			return err
		}
		if count > 0 {
			if err := capability.Require(caps, capability.MultiDomain, adminPolicy); err != nil {
				return err
			}
		}
		if validation.IsCustomDomain(host, s.platformDomain) {
			if err := capability.Require(caps, capability.CustomDomain, adminPolicy); err != nil {
				return err
			}
		}

		primary := makePrimary || count == 0
		if primary {
			if err := clearPrimary(tx, tenant.ID); err != nil {
				return err
			}
		}
		domain = models.TenantDomain{TenantID: tenant.ID, Domain: host, IsPrimary: primary}
		if err := tx.Create(&domain).Error; err != nil {
			if repository.IsUniqueViolation(err) {
				return models.NewValidationError("Domain is already registered")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, domainError(err)
	}

	s.cache.InvalidateDomains(ctx, host)
	s.record(ctx, actorID, ActionDomainAdd, tenantKey, host, map[string]interface{}{"primary": domain.IsPrimary})
	return &domain, nil
}

// RemoveDomain detaches host from the tenant. Removing the primary promotes
// the most recently created remaining domain. The promoted domain, if any,
// is returned.
func (s *DomainService) RemoveDomain(ctx context.Context, actorID uint, tenantKey, rawHost string) (*models.TenantDomain, error) {
	host, err := cleanHost(rawHost)
	if err != nil {
		return nil, err
	}

	var promoted *models.TenantDomain
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant, err := lockTenant(tx, tenantKey)
		if err != nil {
			return err
		}
		domain, err := tenantDomain(tx, tenant.ID, host)
		if err != nil {
			return err
		}
		if err := tx.Delete(domain).Error; err != nil {
			return err
		}
		if !domain.IsPrimary {
			return nil
		}

		var next models.TenantDomain
		err = tx.Where("tenant_id = ?", tenant.ID).Order("created_at DESC, id DESC").First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&models.TenantDomain{}).Where("id = ?", next.ID).Update("is_primary", true).Error; err != nil {
			return err
		}
		next.IsPrimary = true
		promoted = &next
		return nil
	})
	if err != nil {
		return nil, domainError(err)
	}

	s.cache.InvalidateDomains(ctx, host)
	meta := map[string]interface{}{}
	if promoted != nil {
		meta["promoted"] = promoted.Domain
	}
	s.record(ctx, actorID, ActionDomainRemove, tenantKey, host, meta)
	return promoted, nil
}

// SetPrimary makes host the tenant's primary domain.
func (s *DomainService) SetPrimary(ctx context.Context, actorID uint, tenantKey, rawHost string) (*models.TenantDomain, error) {
	host, err := cleanHost(rawHost)
	if err != nil {
		return nil, err
	}

	var domain *models.TenantDomain
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant, err := lockTenant(tx, tenantKey)
		if err != nil {
			return err
		}
		domain, err = tenantDomain(tx, tenant.ID, host)
		if err != nil {
			return err
		}
		if domain.IsPrimary {
			return nil
		}
		if err := clearPrimary(tx, tenant.ID); err != nil {
			return err
		}
		if err := tx.Model(&models.TenantDomain{}).Where("id = ?", domain.ID).Update("is_primary", true).Error; err != nil {
			return err
		}
		domain.IsPrimary = true
		return nil
	})
	if err != nil {
		return nil, domainError(err)
	}

	s.record(ctx, actorID, ActionDomainSetPrimary, tenantKey, host, nil)
	return domain, nil
}

func (s *DomainService) record(ctx context.Context, actorID uint, action, tenantKey, host string, meta map[string]interface{}) {
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["tenant_key"] = tenantKey
	audit.Record(ctx, s.emitter, audit.Event{
		ActorID:    actorID,
		Action:     action,
		TargetType: models.AuditTargetDomain,
		TargetID:   host,
		Meta:       meta,
	})
	middleware.Logger.InfoContext(ctx, "Tenant domain updated",
		slog.String("action", action),
		slog.String("tenant_key", tenantKey),
		slog.String("domain", host),
	)
}

func cleanHost(raw string) (string, error) {
	host := registry.NormalizeHost(raw)
	if err := validation.ValidateHostname(host); err != nil {
		return "", models.NewValidationError(err.Error())
	}
	return host, nil
}

func lockTenant(tx *gorm.DB, key string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(map[string]interface{}{"key": key}).
		First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Tenant", key)
	}
	if err != nil {
		return nil, err
	}
	if err := tenant.Normalize(); err != nil {
		return nil, err
	}
	return &tenant, nil
}

func tenantDomain(tx *gorm.DB, tenantID uint, host string) (*models.TenantDomain, error) {
	var domain models.TenantDomain
	err := tx.Where("tenant_id = ? AND domain = ?", tenantID, host).First(&domain).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("TenantDomain", host)
	}
	if err != nil {
		return nil, err
	}
	return &domain, nil
}

func clearPrimary(tx *gorm.DB, tenantID uint) error {
	return tx.Model(&models.TenantDomain{}).
		Where("tenant_id = ? AND is_primary = ?", tenantID, true).
		Update("is_primary", false).Error
}

// domainError keeps domain and capability errors and wraps the rest.
func domainError(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) || errors.Is(err, models.ErrCapabilityDenied) {
		return err
	}
	return models.NewInternalError(err)
}
