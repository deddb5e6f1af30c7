package seed

import (
	"fmt"
	"log/slog"

	"storefront/internal/middleware"
	"storefront/internal/models"

	"gorm.io/gorm"
)

// Demo tenant keys.
const (
	DemoShopKey   = "demo-shop"
	DemoMarketKey = "demo-market"
)

// Options configure the demo seed.
type Options struct {
	// Domain is appended to the demo tenant hosts, e.g. shop.<Domain>.
	Domain            string
	Vendors           int
	ProductsPerVendor int
	Clean             bool
	Factory           FactoryOptions
}

// Summary reports what Demo created.
type Summary struct {
	Tenants  int
	Users    int
	Vendors  int
	Products int
}

// Demo seeds a white-label shop and a marketplace. Marketplace vendors are
// spread across APPROVED, PENDING and BLOCKED so every visibility rule has
// data to act on.
func Demo(db *gorm.DB, opts Options) (*Summary, error) {
	if opts.Domain == "" {
		opts.Domain = "localhost"
	}
	if opts.Vendors <= 0 {
		opts.Vendors = 6
	}
	if opts.ProductsPerVendor <= 0 {
		opts.ProductsPerVendor = 4
	}

	if opts.Clean {
		if err := ClearAll(db); err != nil {
			return nil, err
		}
	}

	f := NewFactory(db, opts.Factory)
	sum := &Summary{}

	operator, err := f.CreateUser(func(u *models.User) { u.IsAdmin = true })
	if err != nil {
		return nil, fmt.Errorf("create shop operator: %w", err)
	}
	sum.Users++

	if _, err := f.CreateTenant(DemoShopKey, models.TenantModeWhiteLabel, models.PlanPro, "shop."+opts.Domain); err != nil {
		return nil, fmt.Errorf("create %s: %w", DemoShopKey, err)
	}
	sum.Tenants++
	for i := 0; i < opts.ProductsPerVendor*2; i++ {
		status := models.ProductStatusActive
		if i%4 == 3 {
			status = models.ProductStatusDraft
		}
		if _, err := f.CreateProduct(DemoShopKey, operator, nil, status); err != nil {
			return nil, fmt.Errorf("create shop product: %w", err)
		}
		sum.Products++
	}

	if _, err := f.CreateTenant(DemoMarketKey, models.TenantModeMarketplace, models.PlanFree, "market."+opts.Domain); err != nil {
		return nil, fmt.Errorf("create %s: %w", DemoMarketKey, err)
	}
	sum.Tenants++

	statuses := []models.VendorStatus{models.VendorStatusApproved, models.VendorStatusApproved, models.VendorStatusPending, models.VendorStatusBlocked}
	for i := 0; i < opts.Vendors; i++ {
		status := statuses[i%len(statuses)]
		user, err := f.CreateUser(func(u *models.User) { u.IsBlocked = status == models.VendorStatusBlocked })
		if err != nil {
			return nil, fmt.Errorf("create vendor user: %w", err)
		}
		sum.Users++

		profile, err := f.CreateVendorProfile(DemoMarketKey, user, status)
		if err != nil {
			return nil, fmt.Errorf("create vendor profile: %w", err)
		}
		sum.Vendors++

		for j := 0; j < opts.ProductsPerVendor; j++ {
			productStatus := models.ProductStatusActive
			switch {
			case status == models.VendorStatusBlocked:
				productStatus = models.ProductStatusBlocked
			case j == opts.ProductsPerVendor-1:
				productStatus = models.ProductStatusDraft
			}
			if _, err := f.CreateProduct(DemoMarketKey, user, profile, productStatus); err != nil {
				return nil, fmt.Errorf("create vendor product: %w", err)
			}
			sum.Products++
		}
	}

	middleware.Logger.Info("Demo data seeded",
		slog.Int("tenants", sum.Tenants),
		slog.Int("users", sum.Users),
		slog.Int("vendors", sum.Vendors),
		slog.Int("products", sum.Products),
	)
	return sum, nil
}

// ClearAll deletes all tenancy and catalog rows, children first.
func ClearAll(db *gorm.DB) error {
	tables := []interface{}{
		&models.AuditLog{},
		&models.Product{},
		&models.VendorProfile{},
		&models.TenantDomain{},
		&models.Tenant{},
		&models.User{},
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(table).Error; err != nil {
				return fmt.Errorf("clear %T: %w", table, err)
			}
		}
		return nil
	})
}
