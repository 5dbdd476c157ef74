// Package domain contains persistence models and ports for the audit log.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/baytretail/core/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActorType distinguishes who performed the audited action.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
	ActorTypeAgent  ActorType = "ai_agent"
)

// AuditLog is an append-only structured record of a state-changing action.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	CompanyID  *snowflake.ID     `gorm:"column:company_id;index" json:"company_id,omitempty"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null" json:"action"`
	EntityType string            `gorm:"type:text;not null" json:"entity_type"`
	EntityID   *string           `gorm:"type:text" json:"entity_id,omitempty"`
	Details    datatypes.JSONMap `gorm:"type:jsonb" json:"details,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	CompanyID  snowflake.ID
	Action     string
	EntityType string
	EntityID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	EntityType string
	EntityID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

// Repository persists and queries audit log rows within the caller's transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

// Service records and lists audit entries.
type Service interface {
	// Record writes one audit entry inside the caller's transaction, never "fire and forget" —
	// tx must be the same transaction as the state change it describes.
	Record(ctx context.Context, tx *gorm.DB, companyID snowflake.ID, actorType ActorType, actorID *string, action, entityType string, entityID *string, details map[string]any) error
	List(ctx context.Context, companyID snowflake.ID, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidCompany   = errors.New("invalid_company")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidAction    = errors.New("invalid_action")
)
