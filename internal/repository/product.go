package repository

import (
	"context"
	"errors"

	"storefront/internal/models"
	"storefront/internal/visibility"

	"gorm.io/gorm"
)

// ProductRepository defines persistence operations for products. Every read
// takes a visibility predicate.
type ProductRepository interface {
	List(ctx context.Context, p visibility.Predicate, page Page) ([]models.Product, error)
	Get(ctx context.Context, p visibility.Predicate, id uint) (*models.Product, error)
	CountByTenant(ctx context.Context, tenantKey string) (int64, error)
	Create(ctx context.Context, product *models.Product) error
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository returns a new ProductRepository implementation.
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) scoped(ctx context.Context, p visibility.Predicate) *gorm.DB {
	q := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("products.*").
		Preload("Vendor").
		Preload("VendorProfile.User")
	return withoutUnreadableProducts(ApplyProductPredicate(q, p))
}

func (r *productRepository) List(ctx context.Context, p visibility.Predicate, page Page) ([]models.Product, error) {
	if p.IsDenyAll() {
		return []models.Product{}, nil
	}
	page = page.normalized()

	var products []models.Product
	if err := r.scoped(ctx, p).
		Order("products.created_at DESC, products.id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&products).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return products, nil
}

func (r *productRepository) Get(ctx context.Context, p visibility.Predicate, id uint) (*models.Product, error) {
	if p.IsDenyAll() {
		return nil, models.NewNotFoundError("Product", id)
	}
	var product models.Product
	if err := r.scoped(ctx, p).Where("products.id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Product", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &product, nil
}

func (r *productRepository) CountByTenant(ctx context.Context, tenantKey string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_key = ?", tenantKey).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// Create inserts a product. The tenant key is required and new products
// start as DRAFT unless a canonical status is given.
func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	if product.TenantKey == "" {
		return models.NewValidationError("product requires a tenant key")
	}
	if product.Status == "" {
		product.Status = models.ProductStatusDraft
	}
	status, err := models.NormalizeProductStatus(string(product.Status))
	if err != nil {
		return models.NewValidationError(err.Error())
	}
	product.Status = status
	product.IsActive = status == models.ProductStatusActive

	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
