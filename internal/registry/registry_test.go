package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"storefront/internal/cache"
	"storefront/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHost(t *testing.T) {
	tests := map[string]string{
		"Shop-A.Example":            "shop-a.example",
		"shop-a.example:8443":       "shop-a.example",
		"shop-a.example.":           "shop-a.example",
		"  SHOP.example  ":          "shop.example",
		"[::1]:3000":                "::1",
		"::1":                       "::1",
		"a.example, proxy.internal": "a.example",
		"":                          "",
		"localhost:3000":            "localhost",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeHost(in), "input %q", in)
	}
}

const registryYAML = `
tenants:
  - key: shop-a
    domains:
      - domain: Shop-A.Example
        primary: true
      - domain: www.shop-a.example
  - key: market-b
    domains:
      - domain: market-b.example
`

func TestStaticRegistry(t *testing.T) {
	reg, err := ParseStatic([]byte(registryYAML))
	require.NoError(t, err)
	ctx := context.Background()

	key, ok, err := reg.Lookup(ctx, "shop-a.example")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "shop-a", key)

	_, ok, err = reg.Lookup(ctx, "sub.shop-a.example")
	require.NoError(t, err)
	assert.False(t, ok, "only exact hostnames match")

	primary, ok := reg.PrimaryDomain("shop-a")
	assert.True(t, ok)
	assert.Equal(t, "shop-a.example", primary)

	primary, ok = reg.PrimaryDomain("market-b")
	assert.True(t, ok)
	assert.Equal(t, "market-b.example", primary, "first domain becomes primary when none is marked")
	assert.Equal(t, 3, reg.Len())
}

func TestStaticRegistry_Validation(t *testing.T) {
	tests := []struct {
		name    string
		tenants []StaticTenant
	}{
		{"missing key", []StaticTenant{{Domains: []StaticDomain{{Domain: "a.example"}}}}},
		{"empty domain", []StaticTenant{{Key: "a", Domains: []StaticDomain{{Domain: " "}}}}},
		{"duplicate across tenants", []StaticTenant{
			{Key: "a", Domains: []StaticDomain{{Domain: "x.example"}}},
			{Key: "b", Domains: []StaticDomain{{Domain: "X.example:80"}}},
		}},
		{"two primaries", []StaticTenant{{Key: "a", Domains: []StaticDomain{
			{Domain: "one.example", Primary: true},
			{Domain: "two.example", Primary: true},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStaticRegistry(tt.tenants)
			assert.Error(t, err)
		})
	}
}

func TestLoadStaticFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domains.yml")
	require.NoError(t, os.WriteFile(path, []byte(registryYAML), 0o600))

	reg, err := LoadStaticFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())

	_, err = LoadStaticFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	_, err = ParseStatic([]byte("tenants: [this is not"))
	assert.Error(t, err)
}

type fakeDomains struct {
	hosts map[string]string
	calls int
	err   error
}

func (f *fakeDomains) TenantKeyForDomain(_ context.Context, domain string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	key, ok := f.hosts[domain]
	if !ok {
		return "", models.NewNotFoundError("TenantDomain", domain)
	}
	return key, nil
}

func TestDBRegistry_ReadThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := cache.NewStore(client)

	source := &fakeDomains{hosts: map[string]string{"shop-a.example": "shop-a"}}
	reg := NewDBRegistry(source, store, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		key, ok, err := reg.Lookup(ctx, "shop-a.example")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "shop-a", key)
	}
	assert.Equal(t, 1, source.calls)

	// Invalidation forces the next lookup back to the source.
	source.hosts["shop-a.example"] = "shop-a-renamed"
	store.InvalidateDomains(ctx, "shop-a.example")
	key, _, err := reg.Lookup(ctx, "shop-a.example")
	require.NoError(t, err)
	assert.Equal(t, "shop-a-renamed", key)
	assert.Equal(t, 2, source.calls)

	// Misses are not cached.
	for i := 0; i < 2; i++ {
		_, ok, err := reg.Lookup(ctx, "ghost.example")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 4, source.calls)
	assert.False(t, mr.Exists(cache.DomainKey("ghost.example")))
}

func TestDBRegistry_NoCacheAndErrors(t *testing.T) {
	boom := errors.New("connection reset")
	reg := NewDBRegistry(&fakeDomains{err: boom}, nil, time.Minute)

	_, ok, err := reg.Lookup(context.Background(), "shop-a.example")
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestChainRegistry(t *testing.T) {
	static, err := NewStaticRegistry([]StaticTenant{{Key: "static", Domains: []StaticDomain{{Domain: "static.example"}}}})
	require.NoError(t, err)
	db := NewDBRegistry(&fakeDomains{hosts: map[string]string{"static.example": "db", "db.example": "db"}}, nil, 0)
	chain := ChainRegistry{static, nil, db}
	ctx := context.Background()

	key, ok, err := chain.Lookup(ctx, "static.example")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "static", key, "earlier registries win")

	key, ok, err = chain.Lookup(ctx, "db.example")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "db", key)

	_, ok, err = chain.Lookup(ctx, "none.example")
	require.NoError(t, err)
	assert.False(t, ok)

	failing := ChainRegistry{NewDBRegistry(&fakeDomains{err: errors.New("down")}, nil, 0), static}
	_, _, err = failing.Lookup(ctx, "static.example")
	assert.Error(t, err)
}
