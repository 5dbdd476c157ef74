// Package domain holds the persistence models for the AI recommendation and action
// pipeline: per-agent settings, raw recommendations, the actions an approved executable
// recommendation spawns, and the daily sales rollup the demand agent reads.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// RecommendationStatus is the lifecycle of one AiRecommendation row.
type RecommendationStatus string

const (
	RecommendationPending  RecommendationStatus = "pending"
	RecommendationApproved RecommendationStatus = "approved"
	RecommendationRejected RecommendationStatus = "rejected"
	RecommendationExecuted RecommendationStatus = "executed"
)

// ActionStatus is the lifecycle of one AiAction row.
type ActionStatus string

const (
	ActionApproved  ActionStatus = "approved"
	ActionQueued    ActionStatus = "queued"
	ActionExecuting ActionStatus = "executing"
	ActionExecuted  ActionStatus = "executed"
	ActionFailed    ActionStatus = "failed"
	ActionBlocked   ActionStatus = "blocked"
	ActionCanceled  ActionStatus = "canceled"
)

// ExecutableAgentCodes is the fixed set of agents whose approved recommendations spawn an
// AiAction; every other agent code is review-only.
var ExecutableAgentCodes = map[string]bool{
	"AI_PURCHASE": true,
	"AI_DEMAND":   true,
	"AI_PRICING":  true,
}

// IsExecutableAgent reports whether agentCode spawns AiAction rows on approval.
func IsExecutableAgent(agentCode string) bool {
	return ExecutableAgentCodes[agentCode]
}

// AiAgentSetting is the per-(company, agent) guardrail configuration an operator tunes:
// whether approvals auto-queue for execution, and the two caps the executor enforces.
type AiAgentSetting struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID        snowflake.ID `gorm:"not null;uniqueIndex:ux_ai_agent_settings,priority:1" json:"company_id"`
	AgentCode        string       `gorm:"type:text;not null;uniqueIndex:ux_ai_agent_settings,priority:2" json:"agent_code"`
	AutoExecute      bool         `gorm:"not null;default:false" json:"auto_execute"`
	MaxAmountUSD     string       `gorm:"type:numeric;not null;default:0" json:"max_amount_usd"`
	MaxActionsPerDay int          `gorm:"not null;default:0" json:"max_actions_per_day"`
}

func (AiAgentSetting) TableName() string { return "ai_agent_settings" }

// AiRecommendation is one agent-generated signal awaiting a human decision.
// RecommendationJSON is an opaque, agent-defined payload (spec's "tagged sum type with an
// escape hatch"): the view projection in service/view.go is what renders it uniformly.
type AiRecommendation struct {
	ID                 snowflake.ID         `gorm:"primaryKey" json:"id"`
	CompanyID          snowflake.ID         `gorm:"not null;index" json:"company_id"`
	AgentCode          string               `gorm:"type:text;not null;index" json:"agent_code"`
	RecommendationJSON datatypes.JSONMap    `gorm:"type:jsonb;not null" json:"recommendation_json"`
	Status             RecommendationStatus `gorm:"type:text;not null;default:pending;index" json:"status"`
	DecidedAt          *time.Time           `json:"decided_at,omitempty"`
	DecidedByUserID    string               `gorm:"type:text" json:"decided_by_user_id,omitempty"`
	DecisionReason     string               `gorm:"type:text" json:"decision_reason,omitempty"`
	DecisionNotes      string               `gorm:"type:text" json:"decision_notes,omitempty"`
	CreatedAt          time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AiRecommendation) TableName() string { return "ai_recommendations" }

// AiAction is the executable unit an approved recommendation from an executable agent
// spawns. Unique on (company, recommendation) so a second approval of the same
// recommendation upserts rather than duplicates.
type AiAction struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	CompanyID        snowflake.ID      `gorm:"not null;index" json:"company_id"`
	AgentCode        string            `gorm:"type:text;not null" json:"agent_code"`
	RecommendationID snowflake.ID      `gorm:"not null;uniqueIndex:ux_ai_actions_rec" json:"recommendation_id"`
	ActionJSON       datatypes.JSONMap `gorm:"type:jsonb" json:"action_json"`
	Status           ActionStatus      `gorm:"type:text;not null;default:approved;index" json:"status"`
	AttemptCount     int               `gorm:"not null;default:0" json:"attempt_count"`
	ErrorMessage     string            `gorm:"type:text" json:"error_message,omitempty"`
	ResultEntityType string            `gorm:"type:text" json:"result_entity_type,omitempty"`
	ResultEntityID   *snowflake.ID     `json:"result_entity_id,omitempty"`
	ApprovedByUserID string            `gorm:"type:text" json:"approved_by_user_id,omitempty"`
	ApprovedAt       *time.Time        `json:"approved_at,omitempty"`
	QueuedByUserID   string            `gorm:"type:text" json:"queued_by_user_id,omitempty"`
	QueuedAt         *time.Time        `json:"queued_at,omitempty"`
	ExecutedByUserID string            `gorm:"type:text" json:"executed_by_user_id,omitempty"`
	ExecutedAt       *time.Time        `json:"executed_at,omitempty"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (AiAction) TableName() string { return "ai_actions" }

// AiItemSalesDaily is a per-(item, warehouse, day) sales rollup: the only demand signal the
// AI_DEMAND agent needs beyond the catalog's own reorder_point/reorder_qty.
type AiItemSalesDaily struct {
	CompanyID   snowflake.ID `gorm:"not null;uniqueIndex:ux_ai_sales_daily,priority:1" json:"company_id"`
	ItemID      snowflake.ID `gorm:"not null;uniqueIndex:ux_ai_sales_daily,priority:2" json:"item_id"`
	WarehouseID snowflake.ID `gorm:"not null;uniqueIndex:ux_ai_sales_daily,priority:3" json:"warehouse_id"`
	SaleDate    time.Time    `gorm:"type:date;not null;uniqueIndex:ux_ai_sales_daily,priority:4" json:"sale_date"`
	QtySold     string       `gorm:"type:numeric;not null;default:0" json:"qty_sold"`
	RevenueUSD  string       `gorm:"type:numeric;not null;default:0" json:"revenue_usd"`
	RevenueLBP  string       `gorm:"type:numeric;not null;default:0" json:"revenue_lbp"`
}

func (AiItemSalesDaily) TableName() string { return "ai_item_sales_daily" }
