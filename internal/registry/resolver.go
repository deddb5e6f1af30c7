package registry

import (
	"context"
	"log/slog"

	"storefront/internal/capability"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// TenantSource loads a tenant by key. A miss is a NOT_FOUND AppError.
type TenantSource interface {
	GetByKey(ctx context.Context, key string) (*models.Tenant, error)
}

// Resolved is the per-request tenant context.
type Resolved struct {
	Tenant       *models.Tenant
	TenantKey    string
	Host         string
	Capabilities capability.Set
	// Fallback is set when the host matched nothing and the default tenant was used.
	Fallback bool
}

// Resolver maps hosts to tenants and derives their capabilities.
type Resolver struct {
	registry    Registry
	tenants     TenantSource
	fallbackKey string
}

// NewResolver builds a resolver. fallbackKey is used for unmatched hosts and
// must be empty in production.
func NewResolver(reg Registry, tenants TenantSource, fallbackKey string) *Resolver {
	return &Resolver{registry: reg, tenants: tenants, fallbackKey: fallbackKey}
}

// Resolve returns the tenant for host. An unmatched host without a fallback,
// or a mapping to a tenant that no longer loads, is a TENANT_NOT_FOUND error.
// Registry and store failures are returned as internal errors.
func (r *Resolver) Resolve(ctx context.Context, host string) (res *Resolved, err error) {
	normalized := NormalizeHost(host)
	ctx, span := observability.StartSpan(ctx, "tenant.resolve", attribute.String("tenant.host", normalized))
	defer func() {
		outcome := observability.ResolutionMatched
		switch {
		case models.ErrorCode(err) == models.CodeTenantNotFound:
			outcome = observability.ResolutionNotFound
		case err != nil:
			outcome = observability.ResolutionError
		case res.Fallback:
			outcome = observability.ResolutionFallback
		}
		observability.TenantResolutions.WithLabelValues(outcome).Inc()
		if res != nil {
			span.SetAttributes(attribute.String("tenant.key", res.TenantKey), attribute.Bool("tenant.fallback", res.Fallback))
		}
		observability.EndSpan(span, err)
	}()

	var key string
	var matched bool
	if normalized != "" {
		key, matched, err = r.registry.Lookup(ctx, normalized)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
	}

	fallback := false
	if !matched {
		if r.fallbackKey == "" {
			return nil, models.NewTenantNotFoundError(normalized)
		}
		key = r.fallbackKey
		fallback = true
	}

	tenant, err := r.tenants.GetByKey(ctx, key)
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			middleware.Logger.WarnContext(ctx, "Host maps to a missing tenant",
				slog.String("host", normalized), slog.String("tenant_key", key))
			return nil, models.NewTenantNotFoundError(normalized)
		}
		return nil, err
	}

	if err := tenant.Normalize(); err != nil {
		observability.LegacyRows.WithLabelValues("tenant").Inc()
		middleware.Logger.WarnContext(ctx, "Tenant has legacy data and is treated as unresolved",
			slog.String("tenant_key", key), slog.String("error", err.Error()))
		return nil, models.NewTenantNotFoundError(normalized)
	}

	return &Resolved{
		Tenant:       tenant,
		TenantKey:    tenant.Key,
		Host:         normalized,
		Capabilities: capability.Derive(tenant),
		Fallback:     fallback,
	}, nil
}

type resolvedKey struct{}

// WithResolved stores res in ctx.
func WithResolved(ctx context.Context, res *Resolved) context.Context {
	ctx = context.WithValue(ctx, resolvedKey{}, res)
	return context.WithValue(ctx, middleware.TenantKeyKey, res.TenantKey)
}

// FromContext returns the resolution stored by WithResolved.
func FromContext(ctx context.Context) (*Resolved, bool) {
	res, ok := ctx.Value(resolvedKey{}).(*Resolved)
	return res, ok && res != nil
}
