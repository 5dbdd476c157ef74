package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the persistence port for agent settings, recommendations, actions, and the
// daily sales rollup the demand agent reads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetAgentSetting(ctx context.Context, companyID snowflake.ID, agentCode string) (*AiAgentSetting, error)
	ListAgentSettings(ctx context.Context, companyID snowflake.ID) ([]AiAgentSetting, error)
	UpsertAgentSetting(ctx context.Context, s AiAgentSetting) error

	CreateRecommendation(ctx context.Context, rec AiRecommendation) (*AiRecommendation, error)
	GetRecommendation(ctx context.Context, companyID, id snowflake.ID) (*AiRecommendation, error)
	ListRecommendations(ctx context.Context, companyID snowflake.ID, status RecommendationStatus, agentCode string) ([]AiRecommendation, error)
	// ListPendingByNaturalKey finds pending recommendations for the agent whose
	// recommendation_json carries the given key/value, used to dedupe a generator job's
	// output against what is already awaiting review.
	ListPendingByNaturalKey(ctx context.Context, companyID snowflake.ID, agentCode, key, value string) ([]AiRecommendation, error)
	UpdateRecommendation(ctx context.Context, rec AiRecommendation) error

	GetAction(ctx context.Context, companyID, id snowflake.ID) (*AiAction, error)
	GetActionByRecommendation(ctx context.Context, companyID, recommendationID snowflake.ID) (*AiAction, error)
	ListActions(ctx context.Context, companyID snowflake.ID, status ActionStatus, agentCode string) ([]AiAction, error)
	// ListDueActions returns queued actions for a company, locking rows FOR UPDATE SKIP
	// LOCKED so concurrent executor sweeps don't double-execute the same action.
	ListDueActions(ctx context.Context, companyID snowflake.ID, limit int) ([]AiAction, error)
	// UpsertAction inserts a new action or, if one already exists for this recommendation,
	// updates it in place — mirrors the Python service's ON CONFLICT (company_id,
	// recommendation_id) DO UPDATE.
	UpsertAction(ctx context.Context, a AiAction) (*AiAction, error)
	UpdateAction(ctx context.Context, a AiAction) error
	// CountExecutedToday returns how many actions for this agent have already executed
	// today, the input to the per-agent max_actions_per_day guardrail.
	CountExecutedToday(ctx context.Context, companyID snowflake.ID, agentCode string, since time.Time) (int64, error)

	ListSalesDaily(ctx context.Context, companyID, itemID snowflake.ID, since time.Time) ([]AiItemSalesDaily, error)
}
