package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/cache"
	"storefront/internal/models"

	"gorm.io/gorm"
)

// TenantTTL bounds how long a cached tenant survives a missed invalidation.
const TenantTTL = time.Minute

// TenantRepository defines persistence operations for tenants.
type TenantRepository interface {
	GetByKey(ctx context.Context, key string) (*models.Tenant, error)
	GetByKeyWithDomains(ctx context.Context, key string) (*models.Tenant, error)
	List(ctx context.Context) ([]models.Tenant, error)
	Create(ctx context.Context, tenant *models.Tenant) error
	UpdatePlan(ctx context.Context, key string, plan models.Plan) error
	UpdateMode(ctx context.Context, key string, mode models.TenantMode) error
}

type tenantRepository struct {
	db    *gorm.DB
	cache *cache.Store
}

// NewTenantRepository returns a TenantRepository. Reads by key go through
// store when it is enabled.
func NewTenantRepository(db *gorm.DB, store *cache.Store) TenantRepository {
	return &tenantRepository{db: db, cache: store}
}

func (r *tenantRepository) GetByKey(ctx context.Context, key string) (*models.Tenant, error) {
	var tenant models.Tenant
	_, err := r.cache.CacheAside(ctx, cache.TenantKey(key), &tenant, TenantTTL, func() error {
		if err := r.db.WithContext(ctx).Where(map[string]interface{}{"key": key}).First(&tenant).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Tenant", key)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepository) GetByKeyWithDomains(ctx context.Context, key string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).
		Preload("Domains", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where(map[string]interface{}{"key": key}).
		First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Tenant", key)
		}
		return nil, models.NewInternalError(err)
	}
	return &tenant, nil
}

func (r *tenantRepository) List(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := r.db.WithContext(ctx).Order("key ASC").Find(&tenants).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tenants, nil
}

func (r *tenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	if err := r.db.WithContext(ctx).Create(tenant).Error; err != nil {
		if IsUniqueViolation(err) {
			return models.NewValidationError("tenant key is already in use")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *tenantRepository) UpdatePlan(ctx context.Context, key string, plan models.Plan) error {
	return r.updateColumn(ctx, key, "plan", plan)
}

func (r *tenantRepository) UpdateMode(ctx context.Context, key string, mode models.TenantMode) error {
	return r.updateColumn(ctx, key, "mode", mode)
}

func (r *tenantRepository) updateColumn(ctx context.Context, key, column string, value interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Tenant{}).Where(map[string]interface{}{"key": key}).Update(column, value)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Tenant", key)
	}
	r.cache.Invalidate(ctx, cache.TenantKey(key))
	return nil
}
