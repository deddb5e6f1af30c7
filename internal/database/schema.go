package database

import (
	"context"
	"fmt"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/models"

	"gorm.io/gorm"
)

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Tenant{},
		&models.TenantDomain{},
		&models.VendorProfile{},
		&models.Product{},
		&models.AuditLog{},
	}
}

// primaryDomainIndexSQL allows at most one primary domain per tenant.
// Partial indexes are supported by both PostgreSQL and SQLite.
const primaryDomainIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS ux_tenant_domains_primary ON tenant_domains (tenant_id) WHERE is_primary`

// AutoMigrate creates or updates the schema from the GORM models and adds
// the indexes GORM cannot express.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := db.Exec(primaryDomainIndexSQL).Error; err != nil {
		return fmt.Errorf("failed to create primary domain index: %w", err)
	}
	return nil
}

// ApplySchema runs versioned SQL migrations in production and AutoMigrate elsewhere.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	if cfg.IsProduction() {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
		return nil
	}

	if err := AutoMigrate(db.WithContext(ctx)); err != nil {
		return err
	}
	middleware.Logger.Info("Database migration completed")
	return nil
}
