// Package repository is the gorm-backed implementation of the AI domain port.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/baytretail/core/internal/ai/domain"
	"github.com/baytretail/core/pkg/db/option"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) WithTx(tx *gorm.DB) domain.Repository {
	return &repo{db: tx}
}

func (r *repo) GetAgentSetting(ctx context.Context, companyID snowflake.ID, agentCode string) (*domain.AiAgentSetting, error) {
	var s domain.AiAgentSetting
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND agent_code = ?", companyID, agentCode).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repo) ListAgentSettings(ctx context.Context, companyID snowflake.ID) ([]domain.AiAgentSetting, error) {
	var out []domain.AiAgentSetting
	err := r.db.WithContext(ctx).Where("company_id = ?", companyID).Find(&out).Error
	return out, err
}

func (r *repo) UpsertAgentSetting(ctx context.Context, s domain.AiAgentSetting) error {
	return r.db.WithContext(ctx).
		Where("company_id = ? AND agent_code = ?", s.CompanyID, s.AgentCode).
		Assign(domain.AiAgentSetting{
			AutoExecute:      s.AutoExecute,
			MaxAmountUSD:     s.MaxAmountUSD,
			MaxActionsPerDay: s.MaxActionsPerDay,
		}).
		FirstOrCreate(&s).Error
}

func (r *repo) CreateRecommendation(ctx context.Context, rec domain.AiRecommendation) (*domain.AiRecommendation, error) {
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repo) GetRecommendation(ctx context.Context, companyID, id snowflake.ID) (*domain.AiRecommendation, error) {
	var rec domain.AiRecommendation
	err := r.db.WithContext(ctx).Where("company_id = ? AND id = ?", companyID, id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repo) ListRecommendations(ctx context.Context, companyID snowflake.ID, status domain.RecommendationStatus, agentCode string) ([]domain.AiRecommendation, error) {
	q := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if agentCode != "" {
		q = q.Where("agent_code = ?", agentCode)
	}
	var out []domain.AiRecommendation
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *repo) ListPendingByNaturalKey(ctx context.Context, companyID snowflake.ID, agentCode, key, value string) ([]domain.AiRecommendation, error) {
	var out []domain.AiRecommendation
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND agent_code = ? AND status = ?", companyID, agentCode, domain.RecommendationPending).
		Where(fmt.Sprintf("recommendation_json->>'%s' = ?", key), value).
		Find(&out).Error
	return out, err
}

func (r *repo) UpdateRecommendation(ctx context.Context, rec domain.AiRecommendation) error {
	return r.db.WithContext(ctx).Save(&rec).Error
}

func (r *repo) GetAction(ctx context.Context, companyID, id snowflake.ID) (*domain.AiAction, error) {
	var a domain.AiAction
	err := r.db.WithContext(ctx).Where("company_id = ? AND id = ?", companyID, id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repo) GetActionByRecommendation(ctx context.Context, companyID, recommendationID snowflake.ID) (*domain.AiAction, error) {
	var a domain.AiAction
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND recommendation_id = ?", companyID, recommendationID).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repo) ListActions(ctx context.Context, companyID snowflake.ID, status domain.ActionStatus, agentCode string) ([]domain.AiAction, error) {
	q := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if agentCode != "" {
		q = q.Where("agent_code = ?", agentCode)
	}
	var out []domain.AiAction
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *repo) ListDueActions(ctx context.Context, companyID snowflake.ID, limit int) ([]domain.AiAction, error) {
	var out []domain.AiAction
	stmt := option.ForUpdateSkipLocked().Apply(r.db.WithContext(ctx).Model(&domain.AiAction{}))
	err := stmt.
		Where("company_id = ? AND status = ?", companyID, domain.ActionQueued).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *repo) UpsertAction(ctx context.Context, a domain.AiAction) (*domain.AiAction, error) {
	existing, err := r.GetActionByRecommendation(ctx, a.CompanyID, a.RecommendationID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := r.db.WithContext(ctx).Create(&a).Error; err != nil {
			return nil, err
		}
		return &a, nil
	}
	a.ID = existing.ID
	a.CreatedAt = existing.CreatedAt
	if err := r.db.WithContext(ctx).Save(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repo) UpdateAction(ctx context.Context, a domain.AiAction) error {
	return r.db.WithContext(ctx).Save(&a).Error
}

func (r *repo) CountExecutedToday(ctx context.Context, companyID snowflake.ID, agentCode string, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.AiAction{}).
		Where("company_id = ? AND agent_code = ? AND status = ? AND executed_at >= ?", companyID, agentCode, domain.ActionExecuted, since).
		Count(&n).Error
	return n, err
}

func (r *repo) ListSalesDaily(ctx context.Context, companyID, itemID snowflake.ID, since time.Time) ([]domain.AiItemSalesDaily, error) {
	var out []domain.AiItemSalesDaily
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND item_id = ? AND sale_date >= ?", companyID, itemID, since).
		Order("sale_date ASC").
		Find(&out).Error
	return out, err
}
