// Package seed creates demo tenants, vendors and products for development
// and tests. It is not used by the server at runtime.
package seed

import (
	"fmt"
	"strings"

	"storefront/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded user.
const DemoPassword = "password123"

// FactoryOptions tune the factory.
type FactoryOptions struct {
	// SkipBcrypt stores the plain demo password. Tests use it to stay fast.
	SkipBcrypt bool
	// Seed makes generated data reproducible when non-zero.
	Seed int64
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts FactoryOptions
	fake *gofakeit.Faker
	hash string
}

// NewFactory creates a new Factory bound to db.
func NewFactory(db *gorm.DB, opts FactoryOptions) *Factory {
	return &Factory{db: db, opts: opts, fake: gofakeit.New(opts.Seed)}
}

func (f *Factory) password() (string, error) {
	if f.opts.SkipBcrypt {
		return DemoPassword, nil
	}
	if f.hash == "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("hash demo password: %w", err)
		}
		f.hash = string(hashed)
	}
	return f.hash, nil
}

// CreateUser persists a user with a generated name and email.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	password, err := f.password()
	if err != nil {
		return nil, err
	}
	username := strings.ToLower(f.fake.Username()) + fmt.Sprintf("%d", f.fake.Number(100, 999))
	user := &models.User{
		Username: username,
		Email:    username + "@" + f.fake.DomainName(),
		Password: password,
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateTenant persists a tenant and its domains. The first domain is primary.
func (f *Factory) CreateTenant(key string, mode models.TenantMode, plan models.Plan, domains ...string) (*models.Tenant, error) {
	tenant := &models.Tenant{
		Key:  key,
		Name: f.fake.Company(),
		Mode: mode,
		Plan: plan,
	}
	if plan != models.PlanFree {
		tenant.Theme = map[string]interface{}{
			"primary_color": f.fake.HexColor(),
			"tagline":       f.fake.HipsterSentence(6),
		}
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tenant).Error; err != nil {
			return err
		}
		for i, host := range domains {
			d := models.TenantDomain{TenantID: tenant.ID, Domain: host, IsPrimary: i == 0}
			if err := tx.Create(&d).Error; err != nil {
				return err
			}
			tenant.Domains = append(tenant.Domains, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// CreateVendorProfile persists a vendor profile for user in tenantKey.
func (f *Factory) CreateVendorProfile(tenantKey string, user *models.User, status models.VendorStatus) (*models.VendorProfile, error) {
	name := f.fake.Company()
	profile := &models.VendorProfile{
		TenantKey:   tenantKey,
		UserID:      user.ID,
		Status:      status,
		IsPublic:    true,
		DisplayName: name,
		Slug:        slug(name),
	}
	if err := f.db.Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

// CreateProduct persists a product owned by vendor. profile may be nil for
// white-label stores.
func (f *Factory) CreateProduct(tenantKey string, vendor *models.User, profile *models.VendorProfile, status models.ProductStatus) (*models.Product, error) {
	title := strings.TrimSpace(f.fake.ProductName())
	product := &models.Product{
		TenantKey:  tenantKey,
		VendorID:   vendor.ID,
		Title:      title,
		Slug:       slug(title),
		PriceCents: int64(f.fake.Number(99, 9999)),
		Status:     status,
		IsActive:   status == models.ProductStatusActive,
	}
	if profile != nil {
		product.VendorProfileID = &profile.ID
	}
	if err := f.db.Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
