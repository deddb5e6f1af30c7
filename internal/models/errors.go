package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes surfaced in ErrorResponse.Code.
const (
	CodeNotFound                 = "NOT_FOUND"
	CodeValidation               = "VALIDATION_ERROR"
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeInternal                 = "INTERNAL_ERROR"
	CodeTenantNotFound           = "TENANT_NOT_FOUND"
	CodeInvalidViewerContext     = "INVALID_VIEWER_CONTEXT"
	CodeCapabilityDenied         = "CAPABILITY_DENIED"
	CodeModeForbidden            = "MODE_FORBIDDEN"
	CodeCascadeTransactionFailed = "CASCADE_TRANSACTION_FAILED"
	CodeLegacyDataInconsistency  = "LEGACY_DATA_INCONSISTENCY"
)

// Sentinels for errors.Is checks across packages.
var (
	ErrTenantNotFound           = errors.New("tenant not found")
	ErrInvalidViewerContext     = errors.New("invalid viewer context")
	ErrCapabilityDenied         = errors.New("capability denied")
	ErrModeForbidden            = errors.New("forbidden for this tenant mode")
	ErrCascadeTransactionFailed = errors.New("cascade transaction failed")
	ErrLegacyDataInconsistency  = errors.New("legacy data inconsistency")
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	Feature string `json:"feature,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// NewTenantNotFoundError reports a host that maps to no tenant.
func NewTenantNotFoundError(host string) *AppError {
	return &AppError{
		Code:    CodeTenantNotFound,
		Message: fmt.Sprintf("no storefront is configured for host %q", host),
		Err:     ErrTenantNotFound,
	}
}

// NewInvalidViewerContextError reports a predicate request missing required context.
func NewInvalidViewerContextError(reason string) *AppError {
	return &AppError{
		Code:    CodeInvalidViewerContext,
		Message: reason,
		Err:     ErrInvalidViewerContext,
	}
}

// NewCascadeError wraps a failure inside a moderation transaction.
func NewCascadeError(action string, cause error) *AppError {
	return &AppError{
		Code:    CodeCascadeTransactionFailed,
		Message: fmt.Sprintf("moderation action %s rolled back", action),
		Err:     fmt.Errorf("%w: %w", ErrCascadeTransactionFailed, cause),
	}
}

// NewLegacyDataError reports a stored value outside the canonical set.
func NewLegacyDataError(entity, field, value string) *AppError {
	return &AppError{
		Code:    CodeLegacyDataInconsistency,
		Message: fmt.Sprintf("%s.%s has unrecognized value %q", entity, field, value),
		Err:     ErrLegacyDataInconsistency,
	}
}

// ErrorCode returns the AppError code carried by err, or "" if none.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil && appErr.Code == CodeInternal {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	var featured interface{ FeatureName() string }
	if errors.As(err, &featured) {
		response.Feature = featured.FeatureName()
	}

	return c.Status(status).JSON(response)
}
