package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "development defaults",
			cfg:  Config{Port: "8375", JWTSecret: defaultJWTSecret, Env: "development"},
		},
		{
			name:    "missing port",
			cfg:     Config{JWTSecret: "x"},
			wantErr: true,
		},
		{
			name:    "production rejects default secret",
			cfg:     Config{Port: "8375", JWTSecret: defaultJWTSecret, Env: "production", DBPassword: "s3cure!"},
			wantErr: true,
		},
		{
			name:    "production rejects weak db password",
			cfg:     Config{Port: "8375", JWTSecret: "0123456789abcdef0123456789abcdef", Env: "production", DBPassword: "password"},
			wantErr: true,
		},
		{
			name:    "negative cache ttl",
			cfg:     Config{Port: "8375", JWTSecret: "x", DomainCacheTTLSeconds: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAllowTenantFallback(t *testing.T) {
	assert.True(t, (&Config{Env: "development", DefaultTenantKey: "localhost"}).AllowTenantFallback())
	assert.False(t, (&Config{Env: "development", DefaultTenantKey: " "}).AllowTenantFallback())
	assert.False(t, (&Config{Env: "production", DefaultTenantKey: "localhost"}).AllowTenantFallback())
	assert.False(t, (&Config{Env: "prod", DefaultTenantKey: "localhost"}).AllowTenantFallback())
}
