package audit

import (
	"context"
	"strconv"

	"storefront/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DBSink stores events in the audit_logs table.
type DBSink struct {
	db *gorm.DB
}

// NewDBSink returns a sink writing through db.
func NewDBSink(db *gorm.DB) *DBSink {
	return &DBSink{db: db}
}

// Name implements Emitter.
func (s *DBSink) Name() string { return "db" }

// Emit implements Emitter.
func (s *DBSink) Emit(ctx context.Context, e Event) error {
	row := models.AuditLog{
		ID:         e.ID,
		ActorID:    e.ActorID,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Meta:       datatypes.JSONMap(e.Meta),
		CreatedAt:  e.OccurredAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// TargetID formats a numeric id for Event.TargetID.
func TargetID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
