// Package testutil provides shared fixtures for storefront tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/database"
	"storefront/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Uint64

// NewSQLiteDB opens an isolated in-memory SQLite database with the full
// schema applied, including the partial primary-domain index.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:storefront_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// CreateTenant inserts a tenant with the given domains; the first domain is primary.
func CreateTenant(t *testing.T, db *gorm.DB, key string, mode models.TenantMode, plan models.Plan, domains ...string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{Key: key, Name: key, Mode: mode, Plan: plan}
	require.NoError(t, db.Create(tenant).Error)

	for i, d := range domains {
		row := models.TenantDomain{
			TenantID:  tenant.ID,
			Domain:    d,
			IsPrimary: i == 0,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, db.Create(&row).Error)
		tenant.Domains = append(tenant.Domains, row)
	}
	return tenant
}

// CreateUser inserts a user.
func CreateUser(t *testing.T, db *gorm.DB, name string, admin bool) *models.User {
	t.Helper()
	user := &models.User{
		Username: name,
		Email:    name + "@example.test",
		Password: "x",
		IsAdmin:  admin,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateVendorProfile inserts a vendor profile for user in tenantKey.
func CreateVendorProfile(t *testing.T, db *gorm.DB, tenantKey string, user *models.User, status models.VendorStatus, public bool) *models.VendorProfile {
	t.Helper()
	profile := &models.VendorProfile{
		TenantKey:   tenantKey,
		UserID:      user.ID,
		Status:      status,
		IsPublic:    public,
		DisplayName: user.Username,
		Slug:        user.Username,
	}
	require.NoError(t, db.Create(profile).Error)
	return profile
}

// CreateProduct inserts a product owned by vendor. isActive follows status.
func CreateProduct(t *testing.T, db *gorm.DB, tenantKey string, vendor *models.User, profile *models.VendorProfile, title string, status models.ProductStatus) *models.Product {
	t.Helper()
	product := &models.Product{
		TenantKey:  tenantKey,
		VendorID:   vendor.ID,
		Title:      title,
		Slug:       title,
		PriceCents: 999,
		Status:     status,
		IsActive:   status == models.ProductStatusActive,
	}
	if profile != nil {
		product.VendorProfileID = &profile.ID
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

// ReloadProduct reads the product back from the database.
func ReloadProduct(t *testing.T, db *gorm.DB, id uint) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, id).Error)
	return p
}
