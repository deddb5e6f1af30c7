// Package capability derives a tenant's capability set from its mode, plan and
// overrides, and enforces capabilities and modes at the start of an operation.
package capability

import (
	"encoding/json"
	"math"

	"storefront/internal/models"
)

// Key names one capability. Keys match the JSON field names of Set and the
// keys accepted in Tenant.CapabilityOverrides.
type Key string

const (
	WhiteLabelStore Key = "whiteLabelStore"
	VendorSell      Key = "vendorSell"
	PublicProducts  Key = "publicProducts"
	CustomDomain    Key = "customDomain"
	MultiDomain     Key = "multiDomain"
	CustomBranding  Key = "customBranding"
	RemovePoweredBy Key = "removePoweredBy"
	TenantScoping   Key = "tenantScoping"

	MaxDomains  Key = "maxDomains"
	MaxVendors  Key = "maxVendors"
	MaxProducts Key = "maxProducts"
)

// Unlimited is the limit value meaning "no bound".
const Unlimited = -1

// MatrixVersion identifies the capability matrix below. Bump it whenever a
// mode or plan default changes so cached or logged sets can be told apart.
const MatrixVersion = 3

// protected keys cannot be changed through overrides.
var protected = map[Key]bool{
	TenantScoping: true,
}

// Set is the derived capability set of one tenant.
type Set struct {
	WhiteLabelStore bool `json:"whiteLabelStore"`
	VendorSell      bool `json:"vendorSell"`
	PublicProducts  bool `json:"publicProducts"`
	CustomDomain    bool `json:"customDomain"`
	MultiDomain     bool `json:"multiDomain"`
	CustomBranding  bool `json:"customBranding"`
	RemovePoweredBy bool `json:"removePoweredBy"`
	TenantScoping   bool `json:"tenantScoping"`

	MaxDomains  int `json:"maxDomains"`
	MaxVendors  int `json:"maxVendors"`
	MaxProducts int `json:"maxProducts"`

	Version int `json:"version"`
}

func (s *Set) flag(key Key) *bool {
	switch key {
	case WhiteLabelStore:
		return &s.WhiteLabelStore
	case VendorSell:
		return &s.VendorSell
	case PublicProducts:
		return &s.PublicProducts
	case CustomDomain:
		return &s.CustomDomain
	case MultiDomain:
		return &s.MultiDomain
	case CustomBranding:
		return &s.CustomBranding
	case RemovePoweredBy:
		return &s.RemovePoweredBy
	case TenantScoping:
		return &s.TenantScoping
	}
	return nil
}

func (s *Set) limit(key Key) *int {
	switch key {
	case MaxDomains:
		return &s.MaxDomains
	case MaxVendors:
		return &s.MaxVendors
	case MaxProducts:
		return &s.MaxProducts
	}
	return nil
}

// Get reports whether key is granted. A limit key is granted when its limit
// is non-zero. Unknown keys are never granted.
func (s Set) Get(key Key) bool {
	if f := s.flag(key); f != nil {
		return *f
	}
	if l := s.limit(key); l != nil {
		return *l != 0
	}
	return false
}

// Limit returns the limit for key and whether key is a limit key.
func (s Set) Limit(key Key) (int, bool) {
	if l := s.limit(key); l != nil {
		return *l, true
	}
	return 0, false
}

// Within reports whether current is below the limit for key, so one more
// item may be added.
func (s Set) Within(key Key, current int64) bool {
	limit, ok := s.Limit(key)
	if !ok {
		return false
	}
	return limit == Unlimited || current < int64(limit)
}

// Derive computes the capability set for t. It performs no I/O and does not
// modify t. A tenant whose mode cannot be normalized gets the minimal set.
func Derive(t *models.Tenant) Set {
	set := Set{TenantScoping: true, Version: MatrixVersion}
	if t == nil {
		return set
	}

	mode, err := models.NormalizeTenantMode(string(t.Mode))
	if err != nil {
		return set
	}
	plan, err := models.NormalizePlan(string(t.Plan))
	if err != nil {
		plan = models.PlanFree
	}

	switch mode {
	case models.TenantModeWhiteLabel:
		set.WhiteLabelStore = true
	case models.TenantModeMarketplace:
		set.PublicProducts = true
		set.VendorSell = true
	}

	switch plan {
	case models.PlanFree:
		set.MaxDomains = 1
		set.MaxProducts = 50
		set.MaxVendors = 1
		if mode == models.TenantModeMarketplace {
			set.MaxVendors = 25
		}
	case models.PlanPro:
		set.MaxDomains = 5
		set.CustomDomain = true
		set.MultiDomain = true
		set.CustomBranding = true
		set.MaxProducts = 1000
		set.MaxVendors = 1
		if mode == models.TenantModeMarketplace {
			set.MaxVendors = 250
		}
	case models.PlanEnterprise:
		set.MaxDomains = Unlimited
		set.CustomDomain = true
		set.MultiDomain = true
		set.CustomBranding = true
		set.RemovePoweredBy = true
		set.MaxProducts = Unlimited
		set.MaxVendors = Unlimited
	}

	applyOverrides(&set, t.CapabilityOverrides)
	return set
}

func applyOverrides(set *Set, overrides map[string]interface{}) {
	for raw, value := range overrides {
		key := Key(raw)
		if protected[key] {
			continue
		}
		if f := set.flag(key); f != nil {
			if b, ok := value.(bool); ok {
				*f = b
			}
			continue
		}
		if l := set.limit(key); l != nil {
			if n, ok := toLimit(value); ok {
				*l = n
			}
		}
	}
}

// toLimit accepts the numeric shapes an override can arrive in: Go ints from
// code and float64 or json.Number from a decoded JSON column.
func toLimit(v interface{}) (int, bool) {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		n = int(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, false
		}
		n = int(i)
	default:
		return 0, false
	}
	if n < Unlimited {
		return 0, false
	}
	return n, true
}
