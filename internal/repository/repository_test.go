package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"storefront/internal/cache"
	"storefront/internal/models"
	"storefront/internal/testutil"
	"storefront/internal/visibility"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func predicate(t *testing.T, v visibility.Viewer) visibility.Predicate {
	t.Helper()
	p, err := visibility.ProductPredicate(v)
	require.NoError(t, err)
	return p
}

func titles(products []models.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Title)
	}
	return out
}

func TestProductRepository_PublicMarketplaceSQLShape(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewProductRepository(db)

	pattern := regexp.QuoteMeta(`SELECT products.* FROM "products"`) + ".*" +
		regexp.QuoteMeta("LEFT JOIN users AS vendor_user ON vendor_user.id = products.vendor_id") + ".*" +
		regexp.QuoteMeta("LEFT JOIN vendor_profiles AS vp ON vp.id = products.vendor_profile_id") + ".*" +
		regexp.QuoteMeta("LEFT JOIN users AS vp_user ON vp_user.id = vp.user_id") + ".*" +
		regexp.QuoteMeta("products.tenant_key = $1 AND products.status = $2 AND products.is_active = $3 AND vendor_user.is_blocked = $4 AND vp.id IS NOT NULL AND vp.tenant_key = $5 AND vp.status = $6 AND vp.is_public = $7 AND vp_user.is_blocked = $8")
	mock.ExpectQuery(pattern).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := repo.List(context.Background(), predicate(t, visibility.Public("market-b", models.TenantModeMarketplace)), Page{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_AdminSQLHasNoJoins(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewProductRepository(db)

	mock.ExpectQuery(`^` + regexp.QuoteMeta(`SELECT products.* FROM "products" WHERE (products.tenant_key = $1)`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.List(context.Background(), predicate(t, visibility.Admin("t", models.TenantModeWhiteLabel, 1)), Page{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_DenyAllSkipsQuery(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewProductRepository(db)

	got, err := repo.List(context.Background(), visibility.DenyAll, Page{})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = repo.Get(context.Background(), visibility.DenyAll, 1)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_PendingVendorScenario(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	testutil.CreateTenant(t, db, "market-b", models.TenantModeMarketplace, models.PlanPro, "market-b.example")
	vendor := testutil.CreateUser(t, db, "pending-vendor", false)
	profile := testutil.CreateVendorProfile(t, db, "market-b", vendor, models.VendorStatusPending, true)
	testutil.CreateProduct(t, db, "market-b", vendor, profile, "ebook", models.ProductStatusActive)
	testutil.CreateProduct(t, db, "market-b", vendor, profile, "course", models.ProductStatusActive)

	public, err := repo.List(ctx, predicate(t, visibility.Public("market-b", models.TenantModeMarketplace)), Page{})
	require.NoError(t, err)
	assert.Empty(t, public, "products of a pending vendor are not public")

	owned, err := repo.List(ctx, predicate(t, visibility.Owner("market-b", models.TenantModeMarketplace, vendor.ID)), Page{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ebook", "course"}, titles(owned))

	require.NoError(t, db.Model(profile).Update("status", models.VendorStatusApproved).Error)
	public, err = repo.List(ctx, predicate(t, visibility.Public("market-b", models.TenantModeMarketplace)), Page{})
	require.NoError(t, err)
	assert.Len(t, public, 2)
	require.NotNil(t, public[0].VendorProfile)
	require.NotNil(t, public[0].VendorProfile.User)
}

func TestProductRepository_PublicGateAgainstSQLite(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	testutil.CreateTenant(t, db, "m", models.TenantModeMarketplace, models.PlanFree, "m.example")
	good := testutil.CreateUser(t, db, "good", false)
	goodProfile := testutil.CreateVendorProfile(t, db, "m", good, models.VendorStatusApproved, true)
	hidden := testutil.CreateUser(t, db, "hidden", false)
	hiddenProfile := testutil.CreateVendorProfile(t, db, "m", hidden, models.VendorStatusApproved, false)
	blocked := testutil.CreateUser(t, db, "blocked", false)
	blockedProfile := testutil.CreateVendorProfile(t, db, "m", blocked, models.VendorStatusApproved, true)
	require.NoError(t, db.Model(blocked).Update("is_blocked", true).Error)

	testutil.CreateProduct(t, db, "m", good, goodProfile, "visible", models.ProductStatusActive)
	testutil.CreateProduct(t, db, "m", good, goodProfile, "draft", models.ProductStatusDraft)
	testutil.CreateProduct(t, db, "m", good, nil, "no-profile", models.ProductStatusActive)
	testutil.CreateProduct(t, db, "m", hidden, hiddenProfile, "private-vendor", models.ProductStatusActive)
	testutil.CreateProduct(t, db, "m", blocked, blockedProfile, "blocked-vendor", models.ProductStatusActive)
	inactive := testutil.CreateProduct(t, db, "m", good, goodProfile, "inactive", models.ProductStatusActive)
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	got, err := repo.List(ctx, predicate(t, visibility.Public("m", models.TenantModeMarketplace)), Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"visible"}, titles(got))

	one, err := repo.Get(ctx, predicate(t, visibility.Public("m", models.TenantModeMarketplace)), got[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "visible", one.Title)

	_, err = repo.Get(ctx, predicate(t, visibility.Public("m", models.TenantModeMarketplace)), inactive.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	all, err := repo.List(ctx, predicate(t, visibility.Admin("m", models.TenantModeMarketplace, 1)), Page{})
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestProductRepository_WhiteLabelIgnoresProfiles(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewProductRepository(db)

	testutil.CreateTenant(t, db, "shop-a", models.TenantModeWhiteLabel, models.PlanFree, "shop-a.example")
	operator := testutil.CreateUser(t, db, "operator", false)
	testutil.CreateProduct(t, db, "shop-a", operator, nil, "poster", models.ProductStatusActive)

	got, err := repo.List(context.Background(), predicate(t, visibility.Public("shop-a", models.TenantModeWhiteLabel)), Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"poster"}, titles(got))
}

func TestProductRepository_TenantScoping(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	keys := []string{"t1", "t2"}
	vendor := testutil.CreateUser(t, db, "shared-vendor", false)
	for _, key := range keys {
		testutil.CreateTenant(t, db, key, models.TenantModeMarketplace, models.PlanPro, key+".example")
		profile := testutil.CreateVendorProfile(t, db, key, vendor, models.VendorStatusApproved, true)
		testutil.CreateProduct(t, db, key, vendor, profile, "product-of-"+key, models.ProductStatusActive)
	}
	// A product linked to another tenant's profile stays invisible everywhere public.
	var t1Profile models.VendorProfile
	require.NoError(t, db.Where("tenant_key = ?", "t1").First(&t1Profile).Error)
	testutil.CreateProduct(t, db, "t2", vendor, &t1Profile, "cross-linked", models.ProductStatusActive)

	for _, key := range keys {
		viewers := []visibility.Viewer{
			visibility.Public(key, models.TenantModeMarketplace),
			visibility.Owner(key, models.TenantModeMarketplace, vendor.ID),
			visibility.Admin(key, models.TenantModeMarketplace, 1),
		}
		for _, v := range viewers {
			got, err := repo.List(ctx, predicate(t, v), Page{Limit: 100})
			require.NoError(t, err)
			for _, p := range got {
				assert.Equal(t, key, p.TenantKey, "%s viewer of %s saw %s", v.Role, key, p.Title)
			}
			if v.Role == visibility.RolePublic {
				assert.Equal(t, []string{"product-of-" + key}, titles(got))
			}
		}
	}
}

func TestVendorProfileRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewVendorProfileRepository(db)
	ctx := context.Background()

	testutil.CreateTenant(t, db, "m", models.TenantModeMarketplace, models.PlanPro, "m.example")
	approved := testutil.CreateUser(t, db, "approved", false)
	pending := testutil.CreateUser(t, db, "pending", false)
	blocked := testutil.CreateUser(t, db, "blocked", false)
	testutil.CreateVendorProfile(t, db, "m", approved, models.VendorStatusApproved, true)
	pendingProfile := testutil.CreateVendorProfile(t, db, "m", pending, models.VendorStatusPending, true)
	testutil.CreateVendorProfile(t, db, "m", blocked, models.VendorStatusApproved, true)
	require.NoError(t, db.Model(blocked).Update("is_blocked", true).Error)
	testutil.CreateVendorProfile(t, db, "other", approved, models.VendorStatusApproved, true)

	public, err := visibility.VendorProfilePredicate(visibility.Public("m", models.TenantModeMarketplace))
	require.NoError(t, err)
	got, err := repo.List(ctx, public, Page{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, approved.ID, got[0].UserID)
	assert.True(t, public.Matches(visibility.ProfileFactsOf(&got[0])), "the row satisfies the predicate it was fetched with")

	owner, err := visibility.VendorProfilePredicate(visibility.Owner("m", models.TenantModeMarketplace, pending.ID))
	require.NoError(t, err)
	own, err := repo.Get(ctx, owner, pendingProfile.ID)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, own.UserID)

	_, err = repo.Get(ctx, public, pendingProfile.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	count, err := repo.CountByTenant(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	err = repo.Create(ctx, &models.VendorProfile{TenantKey: "m", UserID: approved.ID, Status: models.VendorStatusPending})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err), "one profile per user per tenant")

	err = repo.Create(ctx, &models.VendorProfile{UserID: approved.ID, Status: models.VendorStatusPending})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}

func TestProductRepository_UnreadableRowsDoNotShortenPages(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	products := NewProductRepository(db)
	profiles := NewVendorProfileRepository(db)
	ctx := context.Background()
	vendor := testutil.CreateUser(t, db, "v", false)
	other := testutil.CreateUser(t, db, "o", false)

	good := testutil.CreateProduct(t, db, "t", vendor, nil, "good", models.ProductStatusActive)
	published := testutil.CreateProduct(t, db, "t", vendor, nil, "published", models.ProductStatusActive)
	require.NoError(t, db.Model(published).Update("status", "published").Error)
	live := testutil.CreateProduct(t, db, "t", vendor, nil, "live", models.ProductStatusDraft)
	require.NoError(t, db.Model(live).Update("status", "LIVE").Error)
	oddProfile := testutil.CreateVendorProfile(t, db, "t", other, models.VendorStatusApproved, true)
	require.NoError(t, db.Model(oddProfile).Update("status", "ON_HOLD").Error)
	testutil.CreateProduct(t, db, "t", other, oddProfile, "odd-vendor", models.ProductStatusActive)

	admin := predicate(t, visibility.Admin("t", models.TenantModeWhiteLabel, 1))
	first, err := products.List(ctx, admin, Page{Limit: 1})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, published.ID, first[0].ID, "normalizable legacy values stay readable")

	second, err := products.List(ctx, admin, Page{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, good.ID, second[0].ID)

	_, err = products.Get(ctx, admin, live.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	all, err := visibility.VendorProfilePredicate(visibility.Admin("t", models.TenantModeMarketplace, 1))
	require.NoError(t, err)
	got, err := profiles.List(ctx, all, Page{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProductRepository_Create(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()
	vendor := testutil.CreateUser(t, db, "v", false)

	p := &models.Product{TenantKey: "t", VendorID: vendor.ID, Title: "new"}
	require.NoError(t, repo.Create(ctx, p))
	assert.Equal(t, models.ProductStatusDraft, p.Status)
	assert.False(t, p.IsActive)

	legacy := &models.Product{TenantKey: "t", VendorID: vendor.ID, Title: "legacy", Status: "PUBLISHED"}
	require.NoError(t, repo.Create(ctx, legacy))
	assert.Equal(t, models.ProductStatusActive, legacy.Status)
	assert.True(t, legacy.IsActive)

	err := repo.Create(ctx, &models.Product{VendorID: vendor.ID, Title: "orphan"})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	count, err := repo.CountByTenant(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestTenantRepository_CachesAndInvalidates(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := NewTenantRepository(db, cache.NewStore(client))
	ctx := context.Background()

	testutil.CreateTenant(t, db, "acme", models.TenantModeWhiteLabel, models.PlanFree, "acme.example")

	got, err := repo.GetByKey(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, got.Plan)
	assert.True(t, mr.Exists(cache.TenantKey("acme")))

	require.NoError(t, repo.UpdatePlan(ctx, "acme", models.PlanEnterprise))
	assert.False(t, mr.Exists(cache.TenantKey("acme")), "writes drop the cached tenant")

	got, err = repo.GetByKey(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, models.PlanEnterprise, got.Plan)

	_, err = repo.GetByKey(ctx, "missing")
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(repo.UpdateMode(ctx, "missing", models.TenantModeMarketplace)))

	withDomains, err := repo.GetByKeyWithDomains(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, withDomains.Domains, 1)

	err = repo.Create(ctx, &models.Tenant{Key: "acme", Name: "dup", Mode: models.TenantModeWhiteLabel, Plan: models.PlanFree})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}

func TestDomainRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewDomainRepository(db)
	ctx := context.Background()

	tenant := testutil.CreateTenant(t, db, "acme", models.TenantModeWhiteLabel, models.PlanPro, "acme.example", "www.acme.example")

	key, err := repo.TenantKeyForDomain(ctx, "www.acme.example")
	require.NoError(t, err)
	assert.Equal(t, "acme", key)

	_, err = repo.TenantKeyForDomain(ctx, "ghost.example")
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	domains, err := repo.ListByTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Len(t, domains, 2)

	primary, err := repo.PrimaryForTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme.example", primary.Domain)

	d, err := repo.GetByDomain(ctx, "acme.example")
	require.NoError(t, err)
	assert.True(t, d.IsPrimary)
}

func TestUserRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := &models.User{Username: "Ann", Email: " Ann@Example.TEST ", Password: "x"}
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.GetByEmail(ctx, "ann@example.test")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	err = repo.Create(ctx, &models.User{Username: "dup", Email: "ann@example.test", Password: "x"})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	admin := testutil.CreateUser(t, db, "root", true)
	isAdmin, err := repo.IsAdmin(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	isAdmin, err = repo.IsAdmin(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, isAdmin)

	_, err = repo.GetByID(ctx, 9999)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestLegacyRepository_Backfill(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewLegacyRepository(db)
	ctx := context.Background()

	tenant := testutil.CreateTenant(t, db, "legacy", models.TenantModeMarketplace, models.PlanFree)
	require.NoError(t, db.Model(tenant).Updates(map[string]interface{}{"mode": "PAID_VENDOR", "plan": "pro"}).Error)

	vendor := testutil.CreateUser(t, db, "v", false)
	profile := testutil.CreateVendorProfile(t, db, "legacy", vendor, models.VendorStatusApproved, true)
	require.NoError(t, db.Model(profile).Update("status", "SUSPENDED").Error)

	published := testutil.CreateProduct(t, db, "legacy", vendor, profile, "published", models.ProductStatusActive)
	require.NoError(t, db.Model(published).Update("status", "PUBLISHED").Error)
	archived := testutil.CreateProduct(t, db, "legacy", vendor, profile, "archived", models.ProductStatusActive)
	require.NoError(t, db.Model(archived).Update("status", "ARCHIVED").Error)
	weird := testutil.CreateProduct(t, db, "legacy", vendor, profile, "weird", models.ProductStatusDraft)
	require.NoError(t, db.Model(weird).Update("status", "LIVE").Error)
	orphanLinked := testutil.CreateProduct(t, db, "legacy", vendor, profile, "orphan-linked", models.ProductStatusDraft)
	require.NoError(t, db.Model(orphanLinked).Update("tenant_key", "").Error)
	orphan := testutil.CreateProduct(t, db, "legacy", vendor, nil, "orphan", models.ProductStatusDraft)
	require.NoError(t, db.Model(orphan).Update("tenant_key", "").Error)

	count, err := repo.CountForTenant(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, int64(4), count, "three products and one profile hold legacy statuses")

	dry, err := repo.Backfill(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), dry.Rewritten["product.status"])
	assert.Equal(t, models.ProductStatus("PUBLISHED"), testutil.ReloadProduct(t, db, published.ID).Status, "dry run rolls back")

	report, err := repo.Backfill(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Rewritten["tenant.mode"])
	assert.Equal(t, int64(1), report.Rewritten["tenant.plan"])
	assert.Equal(t, int64(1), report.Rewritten["vendor_profile.status"])
	assert.Equal(t, int64(2), report.Rewritten["product.status"])
	assert.Equal(t, int64(1), report.Unresolved["product.status"])
	assert.Equal(t, int64(1), report.Rewritten["product.tenant_key"])
	assert.Equal(t, int64(1), report.Unresolved["product.tenant_key"])

	assert.Equal(t, models.ProductStatusActive, testutil.ReloadProduct(t, db, published.ID).Status)
	reArchived := testutil.ReloadProduct(t, db, archived.ID)
	assert.Equal(t, models.ProductStatusDraft, reArchived.Status)
	assert.False(t, reArchived.IsActive)
	assert.Equal(t, "legacy", testutil.ReloadProduct(t, db, orphanLinked.ID).TenantKey)

	var reloaded models.Tenant
	require.NoError(t, db.First(&reloaded, tenant.ID).Error)
	assert.Equal(t, models.TenantModeMarketplace, reloaded.Mode)
	assert.Equal(t, models.PlanPro, reloaded.Plan)

	count, err = repo.CountForTenant(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "only the unmappable status remains")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: tenant_domains.domain")))
	assert.False(t, IsUniqueViolation(errors.New("disk full")))
}

func TestTranslateRejectsUnknownFields(t *testing.T) {
	_, _, err := translate(visibility.Eq(visibility.ProductStatus, "ACTIVE"), profileColumns)
	assert.Error(t, err)

	sql, args, err := translate(visibility.Any(), productColumns)
	require.NoError(t, err)
	assert.Equal(t, "1 = 0", sql)
	assert.Empty(t, args)

	sql, args, err = translate(visibility.All(visibility.Eq(visibility.ProfileExists, false)), productColumns)
	require.NoError(t, err)
	assert.Equal(t, "(vp.id IS NULL)", sql)
	assert.Empty(t, args)

	_, args, err = translate(visibility.Eq(visibility.ProductStatus, models.ProductStatusActive), productColumns)
	require.NoError(t, err)
	assert.Equal(t, []any{"ACTIVE"}, args)
}
