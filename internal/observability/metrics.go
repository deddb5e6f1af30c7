// Package observability provides metrics and tracing for the tenancy and moderation engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tenant resolution outcomes.
const (
	ResolutionMatched  = "matched"
	ResolutionFallback = "fallback"
	ResolutionNotFound = "not_found"
	ResolutionError    = "error"
)

var (
	// TenantResolutions counts host resolutions by outcome.
	TenantResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_tenant_resolutions_total",
		Help: "Total number of tenant resolutions by outcome",
	}, []string{"outcome"})

	// DomainCacheLookups counts domain registry cache hits and misses.
	DomainCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_domain_cache_lookups_total",
		Help: "Domain registry cache lookups by result",
	}, []string{"result"})

	// CapabilityDenials counts requests stopped by the capability gate.
	CapabilityDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_capability_denials_total",
		Help: "Total number of requests denied by capability",
	}, []string{"capability"})

	// ModeDenials counts requests stopped by the mode guard.
	ModeDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_mode_denials_total",
		Help: "Total number of requests denied for the tenant mode",
	}, []string{"feature"})

	// ModerationCascades counts cascade executions by action and outcome.
	ModerationCascades = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_moderation_cascades_total",
		Help: "Total number of moderation cascades by action and outcome",
	}, []string{"action", "outcome"})

	// CascadeProducts counts products touched by cascades.
	CascadeProducts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cascade_products_total",
		Help: "Products updated by moderation cascades",
	}, []string{"action"})

	// LegacyRows counts rows excluded at read time for holding non-canonical data.
	LegacyRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_legacy_rows_total",
		Help: "Rows treated as non-visible because of legacy data",
	}, []string{"entity"})

	// VisibilityMismatches counts fetched rows the in-memory predicate rejected.
	VisibilityMismatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_visibility_mismatches_total",
		Help: "Rows returned by a scoped query that failed the in-memory predicate",
	}, []string{"entity"})

	// AuditEmitFailures counts audit events that could not be delivered.
	AuditEmitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_audit_emit_failures_total",
		Help: "Audit events that failed to emit by sink",
	}, []string{"sink"})
)
