// Package server contains the HTTP handlers for the storefront and admin APIs.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"storefront/internal/audit"
	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/featureflags"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/moderation"
	"storefront/internal/registry"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	featureFlags   *featureflags.Manager
	resolver       *registry.Resolver
	static         *registry.StaticRegistry
	emitter        audit.Emitter
	userRepo       repository.UserRepository
	tenantRepo     repository.TenantRepository
	domainRepo     repository.DomainRepository
	catalog        *service.CatalogService
	vendors        *service.VendorService
	domains        *service.DomainService
	tenants        *service.TenantService
	moderation     *moderation.Engine
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching and the audit publisher are then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	store := cache.NewStore(redisClient)

	userRepo := repository.NewUserRepository(db)
	tenantRepo := repository.NewTenantRepository(db, store)
	domainRepo := repository.NewDomainRepository(db)
	productRepo := repository.NewProductRepository(db)
	profileRepo := repository.NewVendorProfileRepository(db)
	legacyRepo := repository.NewLegacyRepository(db)

	reg, static, err := buildRegistry(cfg, domainRepo, store)
	if err != nil {
		return nil, err
	}
	fallbackKey := ""
	if cfg.AllowTenantFallback() {
		fallbackKey = cfg.DefaultTenantKey
	}

	emitter := audit.Multi{audit.NewDBSink(db)}
	if redisClient != nil {
		emitter = append(emitter, audit.NewRedisPublisher(redisClient, cfg.AuditChannel))
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("storefront-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		resolver:       registry.NewResolver(reg, tenantRepo, fallbackKey),
		static:         static,
		emitter:        emitter,
		userRepo:       userRepo,
		tenantRepo:     tenantRepo,
		domainRepo:     domainRepo,
	}
	s.catalog = service.NewCatalogService(productRepo, profileRepo, userRepo, !cfg.IsProduction())
	s.vendors = service.NewVendorService(profileRepo, userRepo)
	s.domains = service.NewDomainService(db, tenantRepo, domainRepo, store, emitter, cfg.PlatformDomain)
	if static != nil {
		s.domains.WithReserved(static)
	}
	s.tenants = service.NewTenantService(tenantRepo, legacyRepo, emitter)
	s.moderation = moderation.NewEngine(db, emitter)

	return s, nil
}

// buildRegistry chains the optional static registry file in front of the
// database-backed registry.
func buildRegistry(cfg *config.Config, domains repository.DomainRepository, store *cache.Store) (registry.Registry, *registry.StaticRegistry, error) {
	ttl := time.Duration(cfg.DomainCacheTTLSeconds) * time.Second
	dbRegistry := registry.NewDBRegistry(domains, store, ttl)
	if cfg.DomainRegistryFile == "" {
		return dbRegistry, nil, nil
	}

	static, err := registry.LoadStaticFile(cfg.DomainRegistryFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load domain registry: %w", err)
	}
	middleware.Logger.Info("Static domain registry loaded",
		slog.String("file", cfg.DomainRegistryFile),
		slog.Int("tenants", static.Len()),
	)
	return registry.ChainRegistry{static, dbRegistry}, static, nil
}

// NewApp builds the Fiber app with middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Storefront API",
		BodyLimit:    1024 * 1024,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return models.RespondWithError(c, fe.Code, &models.AppError{Code: codeForStatus(fe.Code), Message: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "Unhandled request error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Optional bearer identity; routes that need a user add AuthRequired.
	app.Use(middleware.Identity(s.config.JWTSecret))

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS must run before middlewares that can short-circuit.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting per IP
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Get("/sitemap.json", s.TenantRequired(), s.GetSitemap)

	api := app.Group("/api", s.TenantRequired())
	api.Get("/tenant", s.GetTenant)
	api.Get("/shop", s.GetShop)
	api.Get("/products", s.GetProducts)
	api.Get("/products/:id", s.GetProduct)
	api.Get("/vendors", s.GetVendors)
	api.Get("/vendors/:id", s.GetVendor)

	protected := api.Group("", middleware.AuthRequired(s.config.JWTSecret))
	protected.Post("/sell/register", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "vendor_register", middleware.FailOpen), s.RegisterVendor)
	protected.Get("/me/products", s.GetMyProducts)
	protected.Post("/me/products", middleware.RateLimit(
		s.redis, 30, time.Minute, "create_product", middleware.FailOpen), s.CreateMyProduct)

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/products", s.GetAdminProducts)
	admin.Put("/products/:id/status", s.SetProductStatus)
	admin.Get("/vendors", s.GetAdminVendors)
	admin.Put("/vendors/:userId/status", s.SetVendorStatus)
	admin.Post("/vendors/:userId/approve", s.ApproveVendor)
	admin.Post("/users/:id/block", s.BlockUser)
	admin.Delete("/users/:id/block", s.UnblockUser)
	admin.Get("/domains", s.GetDomains)
	admin.Post("/domains", s.AddDomain)
	admin.Put("/domains/:domain/primary", s.SetPrimaryDomain)
	admin.Delete("/domains/:domain", s.RemoveDomain)
	admin.Put("/tenant/plan", s.ChangePlan)
	admin.Put("/tenant/mode", s.ChangeMode)
	admin.Get("/tenants", s.GetTenants)
	admin.Post("/tenants", s.CreateTenant)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: a
// missing client degrades caching but does not fail readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "disabled"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := middleware.UserIDFromLocals(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		admin, err := s.userRepo.IsAdmin(c.UserContext(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewUnauthorizedError("Admin access required"))
		}

		return c.Next()
	}
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	app := s.NewApp()
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("Error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("Error closing database", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("Error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
