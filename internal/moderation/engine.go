// Package moderation applies admin decisions to users, vendor profiles and
// products. Each decision runs in one transaction together with every product
// row it implies, so visibility never observes a half-applied block.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"storefront/internal/audit"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Actions recorded in metrics and the audit log.
const (
	ActionUserBlock     = "user.block"
	ActionUserUnblock   = "user.unblock"
	ActionVendorStatus  = "vendor.set_status"
	ActionVendorApprove = "vendor.approve"
	ActionProductStatus = "product.set_status"
)

const (
	outcomeCommitted  = "committed"
	outcomeRolledBack = "rolled_back"
	outcomeRejected   = "rejected"
)

// blockable are the product statuses a cascade block takes down.
// PUBLISHED is the legacy spelling of ACTIVE.
var blockable = []string{string(models.ProductStatusActive), "PUBLISHED"}

// Result describes what one moderation call changed.
type Result struct {
	Action           string                `json:"action"`
	Changed          bool                  `json:"changed"`
	ProductsAffected int64                 `json:"products_affected"`
	User             *models.User          `json:"user,omitempty"`
	Profile          *models.VendorProfile `json:"profile,omitempty"`
	Product          *models.Product       `json:"product,omitempty"`
	AuditID          string                `json:"audit_id,omitempty"`
}

// Engine executes moderation cascades.
type Engine struct {
	db      *gorm.DB
	emitter audit.Emitter
}

// NewEngine returns an engine writing through db and reporting to emitter.
// A nil emitter discards audit events.
func NewEngine(db *gorm.DB, emitter audit.Emitter) *Engine {
	if emitter == nil {
		emitter = audit.Noop{}
	}
	return &Engine{db: db, emitter: emitter}
}

// SetUserBlocked blocks or unblocks a user everywhere. Blocking takes down
// every ACTIVE product the user owns in any tenant; unblocking restores only
// the products an earlier cascade took down.
func (e *Engine) SetUserBlocked(ctx context.Context, actorID, userID uint, blocked bool) (*Result, error) {
	action := ActionUserUnblock
	if blocked {
		action = ActionUserBlock
	}
	res := &Result{Action: action}

	err := e.run(ctx, action, attribute.Int64("user_id", int64(userID)), func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		if blocked {
			res.ProductsAffected, err = blockProducts(tx, userID)
		} else {
			res.ProductsAffected, err = restoreProducts(tx, userID)
		}
		if err != nil {
			return err
		}

		res.Changed = user.IsBlocked != blocked || res.ProductsAffected > 0
		if user.IsBlocked != blocked {
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("is_blocked", blocked).Error; err != nil {
				return err
			}
			user.IsBlocked = blocked
		}
		res.User = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.finish(ctx, actorID, res, models.AuditTargetUser, audit.TargetID(userID), map[string]interface{}{
		"blocked": blocked,
	})
	return res, nil
}

// SetVendorStatus sets the vendor profile status for (tenantKey, userID),
// creating the profile when none exists. BLOCKED also blocks the owning user
// and cascades to their products. Other statuses leave products untouched.
func (e *Engine) SetVendorStatus(ctx context.Context, actorID uint, tenantKey string, userID uint, status models.VendorStatus) (*Result, error) {
	canonical, err := models.NormalizeVendorStatus(string(status))
	if err != nil {
		return nil, models.NewValidationError(fmt.Sprintf("unknown vendor status %q", status))
	}
	tenantKey = strings.TrimSpace(tenantKey)
	if tenantKey == "" {
		return nil, models.NewValidationError("tenant key is required")
	}

	res := &Result{Action: ActionVendorStatus}
	err = e.run(ctx, ActionVendorStatus, attribute.Int64("user_id", int64(userID)), func(tx *gorm.DB) error {
		if err := tenantExists(tx, tenantKey); err != nil {
			return err
		}
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		profile, created, err := lockOrCreateProfile(tx, tenantKey, userID, canonical)
		if err != nil {
			return err
		}

		res.Changed = created
		if !created && profile.Status != canonical {
			if err := tx.Model(&models.VendorProfile{}).Where("id = ?", profile.ID).Update("status", canonical).Error; err != nil {
				return err
			}
			profile.Status = canonical
			res.Changed = true
		}

		if canonical == models.VendorStatusBlocked {
			if res.ProductsAffected, err = blockProducts(tx, userID); err != nil {
				return err
			}
			if !user.IsBlocked {
				if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("is_blocked", true).Error; err != nil {
					return err
				}
				user.IsBlocked = true
				res.Changed = true
			}
			res.Changed = res.Changed || res.ProductsAffected > 0
		}

		profile.User = user
		res.User = user
		res.Profile = profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.finish(ctx, actorID, res, models.AuditTargetVendorProfile, audit.TargetID(res.Profile.ID), map[string]interface{}{
		"tenant_key": tenantKey,
		"user_id":    userID,
		"status":     string(canonical),
	})
	return res, nil
}

// ApproveOrCreateVendorProfile ensures the user holds an APPROVED profile in
// the tenant. It is idempotent: an approved profile is left as is, and a
// missing one is created already approved.
func (e *Engine) ApproveOrCreateVendorProfile(ctx context.Context, actorID uint, tenantKey string, userID uint) (*Result, error) {
	tenantKey = strings.TrimSpace(tenantKey)
	if tenantKey == "" {
		return nil, models.NewValidationError("tenant key is required")
	}

	res := &Result{Action: ActionVendorApprove}
	err := e.run(ctx, ActionVendorApprove, attribute.Int64("user_id", int64(userID)), func(tx *gorm.DB) error {
		if err := tenantExists(tx, tenantKey); err != nil {
			return err
		}
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		profile, created, err := lockOrCreateProfile(tx, tenantKey, userID, models.VendorStatusApproved)
		if err != nil {
			return err
		}

		res.Changed = created
		if profile.Status != models.VendorStatusApproved {
			if err := tx.Model(&models.VendorProfile{}).Where("id = ?", profile.ID).Update("status", models.VendorStatusApproved).Error; err != nil {
				return err
			}
			profile.Status = models.VendorStatusApproved
			res.Changed = true
		}

		profile.User = user
		res.User = user
		res.Profile = profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.finish(ctx, actorID, res, models.AuditTargetVendorProfile, audit.TargetID(res.Profile.ID), map[string]interface{}{
		"tenant_key": tenantKey,
		"user_id":    userID,
		"changed":    res.Changed,
	})
	return res, nil
}

// SetProductStatus sets one product's status in the tenant and keeps
// is_active in step with it. A product of a blocked vendor cannot be
// activated. An explicit decision clears any cascade marker.
func (e *Engine) SetProductStatus(ctx context.Context, actorID uint, tenantKey string, productID uint, status models.ProductStatus) (*Result, error) {
	canonical, err := models.NormalizeProductStatus(string(status))
	if err != nil {
		return nil, models.NewValidationError(fmt.Sprintf("unknown product status %q", status))
	}

	res := &Result{Action: ActionProductStatus}
	err = e.run(ctx, ActionProductStatus, attribute.Int64("product_id", int64(productID)), func(tx *gorm.DB) error {
		var product models.Product
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(map[string]interface{}{"id": productID, "tenant_key": tenantKey}).
			First(&product).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Product", productID)
		}
		if err != nil {
			return err
		}

		if canonical == models.ProductStatusActive {
			vendor, err := lockUser(tx, product.VendorID)
			if err != nil {
				return err
			}
			if vendor.IsBlocked {
				return models.NewValidationError("cannot activate a product of a blocked vendor")
			}
		}

		active := canonical == models.ProductStatusActive
		res.Changed = product.Status != canonical || product.IsActive != active || product.BlockedByCascade
		if res.Changed {
			err := tx.Model(&models.Product{}).Where("id = ?", product.ID).Updates(map[string]interface{}{
				"status":             canonical,
				"is_active":          active,
				"blocked_by_cascade": false,
			}).Error
			if err != nil {
				return err
			}
			res.ProductsAffected = 1
		}
		product.Status = canonical
		product.IsActive = active
		product.BlockedByCascade = false
		res.Product = &product
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.finish(ctx, actorID, res, models.AuditTargetProduct, audit.TargetID(productID), map[string]interface{}{
		"tenant_key": tenantKey,
		"status":     string(canonical),
	})
	return res, nil
}

// run executes fn in a transaction. Domain errors (not found, validation)
// pass through unchanged; anything else becomes a cascade failure.
func (e *Engine) run(ctx context.Context, action string, attr attribute.KeyValue, fn func(tx *gorm.DB) error) (err error) {
	ctx, span := observability.StartSpan(ctx, "moderation."+action, attribute.String("action", action), attr)
	defer func() { observability.EndSpan(span, err) }()

	err = e.db.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code != models.CodeInternal {
		observability.ModerationCascades.WithLabelValues(action, outcomeRejected).Inc()
		return err
	}

	observability.ModerationCascades.WithLabelValues(action, outcomeRolledBack).Inc()
	middleware.Logger.ErrorContext(ctx, "Moderation cascade rolled back",
		slog.String("action", action),
		slog.String("error", err.Error()),
	)
	return models.NewCascadeError(action, err)
}

// finish records metrics, logs the committed action and emits its audit event.
func (e *Engine) finish(ctx context.Context, actorID uint, res *Result, targetType, targetID string, meta map[string]interface{}) {
	observability.ModerationCascades.WithLabelValues(res.Action, outcomeCommitted).Inc()
	if res.ProductsAffected > 0 {
		observability.CascadeProducts.WithLabelValues(res.Action).Add(float64(res.ProductsAffected))
	}

	meta["products_affected"] = res.ProductsAffected
	event := audit.Record(ctx, e.emitter, audit.Event{
		ActorID:    actorID,
		Action:     res.Action,
		TargetType: targetType,
		TargetID:   targetID,
		Meta:       meta,
	})
	res.AuditID = event.ID

	middleware.Logger.InfoContext(ctx, "Moderation action applied",
		slog.String("action", res.Action),
		slog.Uint64("actor_id", uint64(actorID)),
		slog.String("target_type", targetType),
		slog.String("target_id", targetID),
		slog.Bool("changed", res.Changed),
		slog.Int64("products_affected", res.ProductsAffected),
		slog.String("audit_id", event.ID),
	)
}

func lockUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("User", userID)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func tenantExists(tx *gorm.DB, tenantKey string) error {
	var count int64
	if err := tx.Model(&models.Tenant{}).Where(map[string]interface{}{"key": tenantKey}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return models.NewNotFoundError("Tenant", tenantKey)
	}
	return nil
}

// lockOrCreateProfile returns the locked profile for (tenantKey, userID), or
// creates one with status when none exists.
func lockOrCreateProfile(tx *gorm.DB, tenantKey string, userID uint, status models.VendorStatus) (*models.VendorProfile, bool, error) {
	var profile models.VendorProfile
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(map[string]interface{}{"tenant_key": tenantKey, "user_id": userID}).
		First(&profile).Error
	if err == nil {
		if normalized, nerr := models.NormalizeVendorStatus(string(profile.Status)); nerr == nil {
			profile.Status = normalized
		}
		return &profile, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	profile = models.VendorProfile{
		TenantKey: tenantKey,
		UserID:    userID,
		Status:    status,
		IsPublic:  true,
	}
	if err := tx.Create(&profile).Error; err != nil {
		return nil, false, err
	}
	return &profile, true, nil
}

// blockProducts takes down every active product the user owns, marking the
// rows so a later unblock can restore them.
func blockProducts(tx *gorm.DB, userID uint) (int64, error) {
	result := tx.Model(&models.Product{}).
		Where("vendor_id = ? AND status IN ?", userID, blockable).
		Updates(map[string]interface{}{
			"status":             models.ProductStatusBlocked,
			"is_active":          false,
			"blocked_by_cascade": true,
		})
	return result.RowsAffected, result.Error
}

// restoreProducts reactivates the products a cascade block took down.
// Products blocked by an explicit admin decision stay blocked.
func restoreProducts(tx *gorm.DB, userID uint) (int64, error) {
	result := tx.Model(&models.Product{}).
		Where("vendor_id = ? AND status = ? AND blocked_by_cascade = ?", userID, models.ProductStatusBlocked, true).
		Updates(map[string]interface{}{
			"status":             models.ProductStatusActive,
			"is_active":          true,
			"blocked_by_cascade": false,
		})
	return result.RowsAffected, result.Error
}
