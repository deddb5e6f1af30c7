package repository

import (
	"context"
	"errors"
	"log/slog"

	"storefront/internal/middleware"
	"storefront/internal/models"

	"gorm.io/gorm"
)

var errDryRun = errors.New("dry run rollback")

var (
	canonicalProductStatuses = []string{string(models.ProductStatusDraft), string(models.ProductStatusActive), string(models.ProductStatusBlocked)}
	canonicalVendorStatuses  = []string{string(models.VendorStatusPending), string(models.VendorStatusApproved), string(models.VendorStatusBlocked)}
)

// withoutUnreadableProducts drops products whose status, or whose vendor
// profile's status, no normalization can read. Filtering here keeps pages
// full instead of shrinking them after LIMIT.
func withoutUnreadableProducts(db *gorm.DB) *gorm.DB {
	return db.
		Where("UPPER(TRIM(products.status)) IN ?", models.ReadableProductStatuses).
		Where("(products.vendor_profile_id IS NULL OR EXISTS (SELECT 1 FROM vendor_profiles lp WHERE lp.id = products.vendor_profile_id AND UPPER(TRIM(lp.status)) IN ?))",
			models.ReadableVendorStatuses)
}

func withoutUnreadableProfiles(db *gorm.DB) *gorm.DB {
	return db.Where("UPPER(TRIM(vendor_profiles.status)) IN ?", models.ReadableVendorStatuses)
}

// LegacyReport summarizes a backfill run.
type LegacyReport struct {
	Rewritten  map[string]int64 `json:"rewritten"`
	Unresolved map[string]int64 `json:"unresolved"`
}

func newLegacyReport() *LegacyReport {
	return &LegacyReport{Rewritten: map[string]int64{}, Unresolved: map[string]int64{}}
}

// LegacyRepository finds and rewrites rows holding non-canonical values.
type LegacyRepository interface {
	CountForTenant(ctx context.Context, tenantKey string) (int64, error)
	Backfill(ctx context.Context, dryRun bool) (*LegacyReport, error)
}

type legacyRepository struct {
	db *gorm.DB
}

// NewLegacyRepository returns a new LegacyRepository implementation.
func NewLegacyRepository(db *gorm.DB) LegacyRepository {
	return &legacyRepository{db: db}
}

// CountForTenant counts the tenant's products and vendor profiles whose
// status is outside the canonical set.
func (r *legacyRepository) CountForTenant(ctx context.Context, tenantKey string) (int64, error) {
	var products, profiles int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Product{}).
		Where("tenant_key = ? AND status NOT IN ?", tenantKey, canonicalProductStatuses).
		Count(&products).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	if err := db.Model(&models.VendorProfile{}).
		Where("tenant_key = ? AND status NOT IN ?", tenantKey, canonicalVendorStatuses).
		Count(&profiles).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return products + profiles, nil
}

type legacyRow struct {
	ID    uint
	Value string
}

type legacyColumn struct {
	entity    string
	table     string
	column    string
	canonical []string
	normalize func(string) (string, error)
	// extra returns additional columns to set alongside the rewritten value.
	extra func(canonical string) map[string]interface{}
}

var legacyColumns = []legacyColumn{
	{
		entity: "tenant.mode", table: "tenants", column: "mode",
		canonical: []string{string(models.TenantModeWhiteLabel), string(models.TenantModeMarketplace)},
		normalize: func(v string) (string, error) {
			m, err := models.NormalizeTenantMode(v)
			return string(m), err
		},
	},
	{
		entity: "tenant.plan", table: "tenants", column: "plan",
		canonical: []string{string(models.PlanFree), string(models.PlanPro), string(models.PlanEnterprise)},
		normalize: func(v string) (string, error) {
			p, err := models.NormalizePlan(v)
			return string(p), err
		},
	},
	{
		entity: "vendor_profile.status", table: "vendor_profiles", column: "status",
		canonical: canonicalVendorStatuses,
		normalize: func(v string) (string, error) {
			s, err := models.NormalizeVendorStatus(v)
			return string(s), err
		},
	},
	{
		entity: "product.status", table: "products", column: "status",
		canonical: canonicalProductStatuses,
		normalize: func(v string) (string, error) {
			s, err := models.NormalizeProductStatus(v)
			return string(s), err
		},
		extra: func(canonical string) map[string]interface{} {
			// ARCHIVED becomes DRAFT and must not stay active.
			if canonical != string(models.ProductStatusActive) {
				return map[string]interface{}{"is_active": false}
			}
			return nil
		},
	},
}

// Backfill rewrites legacy enum values to their canonical form and fills
// empty product tenant keys from the linked vendor profile. Rows that cannot
// be mapped are counted as unresolved and left for manual remediation. With
// dryRun the transaction is rolled back after counting.
func (r *legacyRepository) Backfill(ctx context.Context, dryRun bool) (*LegacyReport, error) {
	report := newLegacyReport()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, col := range legacyColumns {
			var rows []legacyRow
			if err := tx.Table(col.table).
				Select("id, "+col.column+" AS value").
				Where(col.column+" NOT IN ?", col.canonical).
				Scan(&rows).Error; err != nil {
				return err
			}
			for _, row := range rows {
				canonical, err := col.normalize(row.Value)
				if err != nil {
					report.Unresolved[col.entity]++
					middleware.Logger.WarnContext(ctx, "Unresolvable legacy value",
						slog.String("entity", col.entity), slog.Uint64("id", uint64(row.ID)), slog.String("value", row.Value))
					continue
				}
				updates := map[string]interface{}{col.column: canonical}
				if col.extra != nil {
					for k, v := range col.extra(canonical) {
						updates[k] = v
					}
				}
				if err := tx.Table(col.table).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
					return err
				}
				report.Rewritten[col.entity]++
			}
		}

		res := tx.Exec(`UPDATE products SET tenant_key = (
			SELECT vendor_profiles.tenant_key FROM vendor_profiles WHERE vendor_profiles.id = products.vendor_profile_id
		) WHERE tenant_key = '' AND vendor_profile_id IS NOT NULL AND EXISTS (
			SELECT 1 FROM vendor_profiles WHERE vendor_profiles.id = products.vendor_profile_id AND vendor_profiles.tenant_key <> ''
		)`)
		if res.Error != nil {
			return res.Error
		}
		report.Rewritten["product.tenant_key"] = res.RowsAffected

		var orphaned int64
		if err := tx.Model(&models.Product{}).Where("tenant_key = ''").Count(&orphaned).Error; err != nil {
			return err
		}
		if orphaned > 0 {
			report.Unresolved["product.tenant_key"] = orphaned
		}

		if dryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return nil, models.NewInternalError(err)
	}
	return report, nil
}
