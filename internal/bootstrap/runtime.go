// Package bootstrap wires process-level dependencies for the commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	SeedDemo bool
}

// InitRuntime connects to the database and Redis and applies the development
// bootstrap. A Redis failure is logged and yields a nil client.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	r, err := cache.Connect(cfg.RedisURL)
	if err != nil {
		middleware.Logger.Warn("Redis unavailable, running without cache", slog.String("error", err.Error()))
		r = nil
	}

	ctx := context.Background()
	if err := EnsureDevDefaultTenant(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development tenant: %w", err)
	}
	if err := EnsureDevAdmin(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
	}

	if opts.SeedDemo {
		if _, err := seed.Demo(db, seed.Options{Domain: cfg.PlatformDomain}); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

func isDevelopment(cfg *config.Config) bool {
	return cfg != nil && strings.EqualFold(strings.TrimSpace(cfg.Env), "development")
}

// EnsureDevDefaultTenant creates the fallback tenant and maps the platform
// domain to it, so a fresh development database serves localhost. It does
// nothing outside development or when the tenant already exists.
func EnsureDevDefaultTenant(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if !isDevelopment(cfg) || !cfg.DevBootstrapTenant || db == nil {
		return nil
	}
	key := strings.TrimSpace(cfg.DefaultTenantKey)
	if key == "" {
		return nil
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tenant models.Tenant
		err := tx.Where(map[string]interface{}{"key": key}).First(&tenant).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		tenant = models.Tenant{
			Key:  key,
			Name: "Development Marketplace",
			Mode: models.TenantModeMarketplace,
			Plan: models.PlanEnterprise,
		}
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}

		host := strings.ToLower(strings.TrimSpace(cfg.PlatformDomain))
		if host != "" {
			var taken int64
			if err := tx.Model(&models.TenantDomain{}).Where("domain = ?", host).Count(&taken).Error; err != nil {
				return err
			}
			if taken == 0 {
				if err := tx.Create(&models.TenantDomain{TenantID: tenant.ID, Domain: host, IsPrimary: true}).Error; err != nil {
					return err
				}
			}
		}

		middleware.Logger.Info("Development tenant bootstrapped",
			slog.String("tenant_key", key), slog.String("domain", host))
		return nil
	})
}

// EnsureDevAdmin creates or promotes the development admin account.
// It requires DEV_ADMIN_PASSWORD and does nothing outside development.
func EnsureDevAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if !isDevelopment(cfg) || db == nil {
		return nil
	}
	password := cfg.DevAdminPassword
	if password == "" {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(cfg.DevAdminEmail))
	if email == "" {
		email = "admin@storefront.local"
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var admin models.User
		findErr := tx.Where("email = ?", email).First(&admin).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			admin = models.User{
				Username: strings.SplitN(email, "@", 2)[0],
				Email:    email,
				Password: string(hashedPassword),
				IsAdmin:  true,
			}
			if err := tx.Create(&admin).Error; err != nil {
				return err
			}
		case findErr != nil:
			return findErr
		default:
			if err := tx.Model(&admin).Updates(map[string]any{"is_admin": true, "is_blocked": false}).Error; err != nil {
				return err
			}
		}

		middleware.Logger.Info("Development admin ensured", slog.String("email", email), slog.Uint64("user_id", uint64(admin.ID)))
		return nil
	})
}
