package registry

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/capability"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTenants struct {
	tenants map[string]models.Tenant
	err     error
}

func (f *fakeTenants) GetByKey(_ context.Context, key string) (*models.Tenant, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tenants[key]
	if !ok {
		return nil, models.NewNotFoundError("Tenant", key)
	}
	return &t, nil
}

func newTestResolver(t *testing.T, fallbackKey string) *Resolver {
	t.Helper()
	reg, err := NewStaticRegistry([]StaticTenant{
		{Key: "shop-a", Domains: []StaticDomain{{Domain: "shop-a.example", Primary: true}}},
		{Key: "legacy", Domains: []StaticDomain{{Domain: "legacy.example"}}},
		{Key: "broken", Domains: []StaticDomain{{Domain: "broken.example"}}},
		{Key: "dangling", Domains: []StaticDomain{{Domain: "dangling.example"}}},
	})
	require.NoError(t, err)

	tenants := &fakeTenants{tenants: map[string]models.Tenant{
		"shop-a":    {Key: "shop-a", Mode: models.TenantModeWhiteLabel, Plan: models.PlanFree},
		"legacy":    {Key: "legacy", Mode: "SINGLE_VENDOR", Plan: "pro"},
		"broken":    {Key: "broken", Mode: "HYBRID", Plan: models.PlanFree},
		"localhost": {Key: "localhost", Mode: models.TenantModeMarketplace, Plan: models.PlanFree},
	}}
	return NewResolver(reg, tenants, fallbackKey)
}

func TestResolve_WhiteLabelFreeTenant(t *testing.T) {
	res, err := newTestResolver(t, "").Resolve(context.Background(), "Shop-A.example:443")
	require.NoError(t, err)

	assert.Equal(t, "shop-a", res.TenantKey)
	assert.Equal(t, "shop-a.example", res.Host)
	assert.False(t, res.Fallback)
	assert.False(t, res.Capabilities.PublicProducts)
	assert.NoError(t, capability.Require(res.Capabilities, capability.WhiteLabelStore, capability.Hide()))
	assert.Error(t, capability.Require(res.Capabilities, capability.VendorSell, capability.RedirectTo("/shop")))
}

func TestResolve_UnknownHostIsTenantNotFound(t *testing.T) {
	res, err := newTestResolver(t, "").Resolve(context.Background(), "ghost.example")
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTenantNotFound))
	assert.Equal(t, models.CodeTenantNotFound, models.ErrorCode(err))
}

func TestResolve_FallbackWhenConfigured(t *testing.T) {
	r := newTestResolver(t, "localhost")

	res, err := r.Resolve(context.Background(), "ghost.example")
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, "localhost", res.TenantKey)

	res, err = r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, res.Fallback)

	res, err = r.Resolve(context.Background(), "shop-a.example")
	require.NoError(t, err)
	assert.False(t, res.Fallback, "an exact match never uses the fallback")
}

func TestResolve_MissingFallbackTenant(t *testing.T) {
	_, err := newTestResolver(t, "nowhere").Resolve(context.Background(), "ghost.example")
	assert.True(t, errors.Is(err, models.ErrTenantNotFound))
}

func TestResolve_LegacyAndBrokenTenants(t *testing.T) {
	r := newTestResolver(t, "")

	res, err := r.Resolve(context.Background(), "legacy.example")
	require.NoError(t, err)
	assert.Equal(t, models.TenantModeWhiteLabel, res.Tenant.Mode)
	assert.Equal(t, models.PlanPro, res.Tenant.Plan)
	assert.True(t, res.Capabilities.CustomBranding)

	_, err = r.Resolve(context.Background(), "broken.example")
	assert.True(t, errors.Is(err, models.ErrTenantNotFound), "unmappable tenant mode fails closed")

	_, err = r.Resolve(context.Background(), "dangling.example")
	assert.True(t, errors.Is(err, models.ErrTenantNotFound))
}

func TestResolve_StoreFailureIsNotNotFound(t *testing.T) {
	reg, err := NewStaticRegistry([]StaticTenant{{Key: "a", Domains: []StaticDomain{{Domain: "a.example"}}}})
	require.NoError(t, err)
	boom := models.NewInternalError(errors.New("db down"))
	r := NewResolver(reg, &fakeTenants{err: boom}, "")

	_, err = r.Resolve(context.Background(), "a.example")
	require.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrTenantNotFound))
	assert.Equal(t, models.CodeInternal, models.ErrorCode(err))
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	res := &Resolved{TenantKey: "shop-a"}
	got, ok := FromContext(WithResolved(context.Background(), res))
	assert.True(t, ok)
	assert.Same(t, res, got)
}
