package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"storefront/internal/audit"
	"storefront/internal/capability"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/validation"
)

// Tenant audit actions.
const (
	ActionTenantCreate     = "tenant.create"
	ActionTenantChangePlan = "tenant.change_plan"
	ActionTenantChangeMode = "tenant.change_mode"
)

// TenantService owns tenant onboarding and the guarded plan and mode
// transitions. Each transition drops the cached tenant so the next
// resolution derives capabilities from the new values.
type TenantService struct {
	tenants repository.TenantRepository
	legacy  repository.LegacyRepository
	emitter audit.Emitter
}

// NewTenantService returns a new TenantService.
func NewTenantService(tenants repository.TenantRepository, legacy repository.LegacyRepository, emitter audit.Emitter) *TenantService {
	return &TenantService{tenants: tenants, legacy: legacy, emitter: emitter}
}

// CreateTenantInput is the input for onboarding a tenant.
type CreateTenantInput struct {
	Key  string
	Name string
	Mode string
	Plan string
}

// Create onboards a tenant. Mode and plan must map onto the canonical values.
func (s *TenantService) Create(ctx context.Context, actorID uint, in CreateTenantInput) (*models.Tenant, error) {
	key := strings.TrimSpace(in.Key)
	if err := validation.ValidateTenantKey(key); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	mode, err := models.NormalizeTenantMode(in.Mode)
	if err != nil {
		return nil, models.NewValidationError(fmt.Sprintf("unknown tenant mode %q", in.Mode))
	}
	plan, err := models.NormalizePlan(in.Plan)
	if err != nil {
		return nil, models.NewValidationError(fmt.Sprintf("unknown plan %q", in.Plan))
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = key
	}

	tenant := &models.Tenant{Key: key, Name: name, Mode: mode, Plan: plan}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, ActionTenantCreate, key, map[string]interface{}{
		"mode": string(mode),
		"plan": string(plan),
	})
	return tenant, nil
}

// ChangePlan moves the tenant to plan and returns the capabilities it now has.
// Existing domains, vendors and products over a lower limit are kept; the
// limit only stops further additions.
func (s *TenantService) ChangePlan(ctx context.Context, actorID uint, key, rawPlan string) (*models.Tenant, capability.Set, error) {
	plan, err := models.NormalizePlan(rawPlan)
	if err != nil || strings.TrimSpace(rawPlan) == "" {
		return nil, capability.Set{}, models.NewValidationError(fmt.Sprintf("unknown plan %q", rawPlan))
	}
	if err := s.tenants.UpdatePlan(ctx, key, plan); err != nil {
		return nil, capability.Set{}, err
	}
	tenant, err := s.reload(ctx, key)
	if err != nil {
		return nil, capability.Set{}, err
	}

	s.record(ctx, actorID, ActionTenantChangePlan, key, map[string]interface{}{"plan": string(plan)})
	return tenant, capability.Derive(tenant), nil
}

// ChangeMode switches the tenant between white-label and marketplace. The
// switch is refused while the tenant still has rows with legacy statuses:
// the backfill must run first so the new mode's predicates see clean data.
func (s *TenantService) ChangeMode(ctx context.Context, actorID uint, key, rawMode string) (*models.Tenant, capability.Set, error) {
	mode, err := models.NormalizeTenantMode(rawMode)
	if err != nil {
		return nil, capability.Set{}, models.NewValidationError(fmt.Sprintf("unknown tenant mode %q", rawMode))
	}

	pending, err := s.legacy.CountForTenant(ctx, key)
	if err != nil {
		return nil, capability.Set{}, err
	}
	if pending > 0 {
		return nil, capability.Set{}, &models.AppError{
			Code:    models.CodeLegacyDataInconsistency,
			Message: fmt.Sprintf("tenant %s has %d rows with legacy values; run the normalization backfill first", key, pending),
			Err:     models.ErrLegacyDataInconsistency,
		}
	}

	if err := s.tenants.UpdateMode(ctx, key, mode); err != nil {
		return nil, capability.Set{}, err
	}
	tenant, err := s.reload(ctx, key)
	if err != nil {
		return nil, capability.Set{}, err
	}

	s.record(ctx, actorID, ActionTenantChangeMode, key, map[string]interface{}{"mode": string(mode)})
	return tenant, capability.Derive(tenant), nil
}

func (s *TenantService) reload(ctx context.Context, key string) (*models.Tenant, error) {
	tenant, err := s.tenants.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := tenant.Normalize(); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (s *TenantService) record(ctx context.Context, actorID uint, action, key string, meta map[string]interface{}) {
	audit.Record(ctx, s.emitter, audit.Event{
		ActorID:    actorID,
		Action:     action,
		TargetType: models.AuditTargetTenant,
		TargetID:   key,
		Meta:       meta,
	})
	middleware.Logger.InfoContext(ctx, "Tenant updated",
		slog.String("action", action),
		slog.String("tenant_key", key),
	)
}
