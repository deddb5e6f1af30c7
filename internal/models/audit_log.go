package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit target types.
const (
	AuditTargetUser          = "user"
	AuditTargetVendorProfile = "vendor_profile"
	AuditTargetProduct       = "product"
	AuditTargetTenant        = "tenant"
	AuditTargetDomain        = "tenant_domain"
)

// AuditLog records one admin moderation action.
type AuditLog struct {
	ID         string            `gorm:"primaryKey;size:36" json:"id"`
	ActorID    uint              `gorm:"not null;index" json:"actor_id"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	TargetType string            `gorm:"size:32;not null" json:"target_type"`
	TargetID   string            `gorm:"size:64;not null" json:"target_id"`
	Meta       datatypes.JSONMap `json:"meta,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
