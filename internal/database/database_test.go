package database

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"storefront/internal/config"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:database_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func TestAutoMigrate_PrimaryDomainIsUniquePerTenant(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, AutoMigrate(db))

	tenant := models.Tenant{Key: "acme", Name: "Acme", Mode: models.TenantModeWhiteLabel, Plan: models.PlanPro}
	require.NoError(t, db.Create(&tenant).Error)

	require.NoError(t, db.Create(&models.TenantDomain{TenantID: tenant.ID, Domain: "acme.test", IsPrimary: true}).Error)
	require.NoError(t, db.Create(&models.TenantDomain{TenantID: tenant.ID, Domain: "www.acme.test"}).Error)

	err := db.Create(&models.TenantDomain{TenantID: tenant.ID, Domain: "shop.acme.test", IsPrimary: true}).Error
	assert.Error(t, err, "a second primary domain for the same tenant must be rejected")

	other := models.Tenant{Key: "globex", Name: "Globex", Mode: models.TenantModeMarketplace, Plan: models.PlanFree}
	require.NoError(t, db.Create(&other).Error)
	assert.NoError(t, db.Create(&models.TenantDomain{TenantID: other.ID, Domain: "globex.test", IsPrimary: true}).Error)
}

func TestAutoMigrate_DomainIsGloballyUnique(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, AutoMigrate(db))

	require.NoError(t, db.Create(&models.TenantDomain{TenantID: 1, Domain: "shared.test"}).Error)
	assert.Error(t, db.Create(&models.TenantDomain{TenantID: 2, Domain: "shared.test"}).Error)
}

func TestApplySchema_NonProductionUsesAutoMigrate(t *testing.T) {
	db := openSQLite(t)
	cfg := &config.Config{Env: "development"}

	require.NoError(t, ApplySchema(context.Background(), db, cfg))
	for _, model := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(model))
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	all := GetMigrations()
	require.NotEmpty(t, all)

	first := GetMigrationByVersion(1)
	require.NotNil(t, first)
	assert.Equal(t, "000001_tenancy_core", first.String())
	assert.Contains(t, first.UpScript, "ux_tenant_domains_primary")
	assert.Contains(t, first.DownScript, "DROP TABLE IF EXISTS tenants")
	assert.Nil(t, GetMigrationByVersion(999999))
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_second.up.sql":   {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"m/000002_second.down.sql": {Data: []byte("DROP TABLE b;")},
		"m/000001_first.up.sql":    {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"m/000001_first.down.sql":  {Data: []byte("DROP TABLE a;")},
		"m/bad.up.sql":             {Data: []byte("SELECT 1;")},
		"m/README.md":              {Data: []byte("ignored")},
	}

	got, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Version)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, 2, got[1].Version)
}

func TestLoadMigrations_MissingDownScript(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000001_first.up.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
	}
	_, err := LoadMigrations(fsys, "m")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "down migration"))
}

func TestRunMigrationsAndRollback(t *testing.T) {
	saved := migrations
	t.Cleanup(func() { migrations = saved })
	migrations = []Migration{
		{Version: 1, Name: "widgets", UpScript: "CREATE TABLE widgets (id INTEGER PRIMARY KEY);", DownScript: "DROP TABLE widgets;"},
		{Version: 2, Name: "gadgets", UpScript: "CREATE TABLE gadgets (id INTEGER PRIMARY KEY);", DownScript: "DROP TABLE gadgets;"},
	}

	db := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, db))
	assert.True(t, db.Migrator().HasTable("widgets"))
	assert.True(t, db.Migrator().HasTable("gadgets"))

	// Re-running is a no-op.
	require.NoError(t, RunMigrations(ctx, db))
	var count int64
	require.NoError(t, db.Model(&MigrationLog{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	require.NoError(t, RollbackMigration(ctx, db, 2))
	assert.False(t, db.Migrator().HasTable("gadgets"))
	assert.Error(t, RollbackMigration(ctx, db, 2))
	assert.Error(t, RollbackMigration(ctx, db, 42))
}

func TestRunMigrations_FailureLeavesNoLogRow(t *testing.T) {
	saved := migrations
	t.Cleanup(func() { migrations = saved })
	migrations = []Migration{
		{Version: 1, Name: "broken", UpScript: "CREATE TABLE (", DownScript: ""},
	}

	db := openSQLite(t)
	require.Error(t, RunMigrations(context.Background(), db))

	var count int64
	require.NoError(t, db.Model(&MigrationLog{}).Count(&count).Error)
	assert.Zero(t, count)
}
