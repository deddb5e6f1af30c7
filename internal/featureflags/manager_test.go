package featureflags

import "testing"

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	if !m.Enabled("a", "acme") || !m.Enabled("c", "acme") || !m.Enabled("e", "acme") {
		t.Fatal("expected enabled boolean values to evaluate true")
	}
	if m.Enabled("b", "acme") || m.Enabled("d", "acme") || m.Enabled("f", "acme") {
		t.Fatal("expected disabled boolean values to evaluate false")
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%")

	if !m.Enabled("always", "acme") {
		t.Fatal("100% rollout should always be enabled")
	}
	if m.Enabled("never", "acme") {
		t.Fatal("0% rollout should always be disabled")
	}

	first := m.Enabled("canary", "market-b")
	for i := 0; i < 5; i++ {
		if got := m.Enabled("canary", "market-b"); got != first {
			t.Fatal("rollout evaluation must be deterministic per tenant")
		}
	}

	if m.Enabled("canary", "") {
		t.Fatal("percentage rollout requires a tenant key")
	}
}

func TestEnabledOr_Fallback(t *testing.T) {
	m := NewManager("sitemap=off,odd=maybe")

	if m.EnabledOr(FlagSitemap, "acme", true) {
		t.Fatal("explicit off must win over the fallback")
	}
	if !m.EnabledOr(FlagVendorRegistration, "acme", true) {
		t.Fatal("unconfigured flag should return the fallback")
	}
	if !m.EnabledOr("odd", "acme", true) {
		t.Fatal("unrecognized value should return the fallback")
	}

	var nilManager *Manager
	if !nilManager.EnabledOr("x", "acme", true) || nilManager.Enabled("x", "acme") {
		t.Fatal("nil manager should return the fallback")
	}
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off ")

	raw := m.Raw()
	if len(raw) != 3 {
		t.Fatalf("expected 3 parsed flags, got %d", len(raw))
	}
	if raw["x"] != "on" || raw["y"] != "20%" || raw["z"] != "off" {
		t.Fatalf("unexpected raw flags: %#v", raw)
	}

	snap := m.Snapshot("acme")
	if len(snap) != 3 {
		t.Fatalf("expected snapshot size 3, got %d", len(snap))
	}
}
