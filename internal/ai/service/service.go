// Package service implements the AI recommendation and action pipeline: a uniform review
// queue for agent-generated signals, the approve/execute/reject decision flow, and the
// guardrail-gated executor and reorder-recommendation generator background jobs.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/baytretail/core/internal/ai/domain"
	"github.com/baytretail/core/internal/apperr"
	auditdomain "github.com/baytretail/core/internal/audit/domain"
	batchdomain "github.com/baytretail/core/internal/batch/domain"
	catalogservice "github.com/baytretail/core/internal/catalog/service"
	"github.com/baytretail/core/internal/config"
	"github.com/baytretail/core/internal/money"
	purchasingdomain "github.com/baytretail/core/internal/purchasing/domain"
	purchasingservice "github.com/baytretail/core/internal/purchasing/service"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// DraftPOCreator is the slice of purchasing the executor needs: materializing an approved
// reorder action as a draft purchase order a buyer reviews and submits.
type DraftPOCreator interface {
	CreatePO(ctx context.Context, tx purchasingdomain.Repository, companyID, supplierID snowflake.ID, orderDate time.Time, exchangeRate decimal.Decimal, lines []purchasingservice.CreatePOLine) (*purchasingdomain.PurchaseOrder, error)
}

type Params struct {
	fx.In

	Repo       domain.Repository
	Batch      batchdomain.Repository
	Catalog    catalogservice.Service
	Purchasing DraftPOCreator
	PurchRepo  purchasingdomain.Repository
	Audit      auditdomain.Service
	Config     config.Config
	GenID      *snowflake.Node
	Log        *zap.Logger
}

type Service struct {
	repo       domain.Repository
	batch      batchdomain.Repository
	catalog    catalogservice.Service
	purchasing DraftPOCreator
	purchRepo  purchasingdomain.Repository
	audit      auditdomain.Service
	cfg        config.Config
	genID      *snowflake.Node
	log        *zap.Logger
}

func New(p Params) *Service {
	return &Service{
		repo: p.Repo, batch: p.Batch, catalog: p.Catalog,
		purchasing: p.Purchasing, purchRepo: p.PurchRepo, audit: p.Audit,
		cfg: p.Config, genID: p.GenID, log: p.Log.Named("ai.service"),
	}
}

// ListRecommendations returns recommendations for review, each paired with its uniform view
// projection.
func (s *Service) ListRecommendations(ctx context.Context, companyID snowflake.ID, status domain.RecommendationStatus, agentCode string) ([]domain.AiRecommendation, []View, error) {
	recs, err := s.repo.ListRecommendations(ctx, companyID, status, agentCode)
	if err != nil {
		return nil, nil, err
	}
	views := make([]View, len(recs))
	for i, r := range recs {
		views[i] = recommendationView(r)
	}
	return recs, views, nil
}

func (s *Service) GetRecommendation(ctx context.Context, companyID, id snowflake.ID) (*domain.AiRecommendation, *View, error) {
	rec, err := s.repo.GetRecommendation(ctx, companyID, id)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, domain.ErrRecommendationNotFound
	}
	v := recommendationView(*rec)
	return rec, &v, nil
}

type DecideInput struct {
	Decision string // "approved" | "executed" | "rejected"
	UserID   string
	Reason   string
	Notes    string
}

// Decide transitions a pending recommendation, mirroring the original review endpoint's
// three-way branch:
//   - approved: for an executable agent, upserts (creates or refreshes) its AiAction in
//     approved or queued state depending on the agent's auto_execute setting.
//   - executed: marks the recommendation executed directly, and if an action row already
//     exists for it, marks that action executed too (covers a reviewer marking a review-only
//     recommendation as actioned by hand).
//   - rejected: cancels any non-terminal action tied to this recommendation.
func (s *Service) Decide(ctx context.Context, companyID, recID snowflake.ID, in DecideInput) (*domain.AiRecommendation, error) {
	rec, err := s.repo.GetRecommendation(ctx, companyID, recID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrRecommendationNotFound
	}
	if rec.Status != domain.RecommendationPending {
		return nil, domain.ErrRecommendationNotPending
	}

	now := time.Now()
	rec.DecidedAt = &now
	rec.DecidedByUserID = in.UserID
	rec.DecisionReason = in.Reason
	rec.DecisionNotes = in.Notes

	var auditAction string
	switch in.Decision {
	case "approved":
		rec.Status = domain.RecommendationApproved
		if domain.IsExecutableAgent(rec.AgentCode) {
			if err := s.upsertActionFromRecommendation(ctx, companyID, *rec, in.UserID); err != nil {
				return nil, err
			}
		}
		auditAction = "ai_approve"

	case "executed":
		rec.Status = domain.RecommendationExecuted
		if action, err := s.repo.GetActionByRecommendation(ctx, companyID, recID); err == nil && action != nil {
			action.Status = domain.ActionExecuted
			action.ExecutedByUserID = in.UserID
			action.ExecutedAt = &now
			if err := s.repo.UpdateAction(ctx, *action); err != nil {
				return nil, err
			}
			auditAction = "ai_execute"
		} else if domain.IsExecutableAgent(rec.AgentCode) {
			auditAction = "ai_execute_without_action_row"
		} else {
			auditAction = "ai_review_only_marked"
		}

	case "rejected":
		rec.Status = domain.RecommendationRejected
		if action, err := s.repo.GetActionByRecommendation(ctx, companyID, recID); err == nil && action != nil {
			if isCancelable(action.Status) {
				action.Status = domain.ActionCanceled
				action.ErrorMessage = firstNonEmpty(in.Reason, in.Notes, "Rejected by user")
				action.QueuedByUserID = ""
				action.QueuedAt = nil
				action.AttemptCount = 0
				if err := s.repo.UpdateAction(ctx, *action); err != nil {
					return nil, err
				}
			}
		}
		auditAction = "ai_reject"

	default:
		return nil, domain.ErrRecommendationNotPending
	}

	if err := s.repo.UpdateRecommendation(ctx, *rec); err != nil {
		return nil, err
	}
	if s.audit != nil && auditAction != "" {
		entityID := fmt.Sprintf("%d", rec.ID)
		var userID *string
		if in.UserID != "" {
			userID = &in.UserID
		}
		if err := s.audit.Record(ctx, nil, companyID, auditdomain.ActorTypeUser, userID, auditAction, "ai_recommendation", &entityID, map[string]any{
			"agent_code": rec.AgentCode, "reason": in.Reason, "notes": in.Notes,
		}); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// upsertActionFromRecommendation mirrors _upsert_ai_action_from_recommendation: the new
// action's status depends on the agent's auto_execute setting, and a previous failed/
// blocked/canceled action's attempt_count resets to zero on re-approval while any other
// previous status's attempt history is preserved.
func (s *Service) upsertActionFromRecommendation(ctx context.Context, companyID snowflake.ID, rec domain.AiRecommendation, userID string) error {
	setting, err := s.repo.GetAgentSetting(ctx, companyID, rec.AgentCode)
	if err != nil {
		return err
	}
	autoExecute := setting != nil && setting.AutoExecute

	existing, err := s.repo.GetActionByRecommendation(ctx, companyID, rec.ID)
	if err != nil {
		return err
	}

	now := time.Now()
	status := domain.ActionApproved
	var queuedAt *time.Time
	queuedBy := ""
	if autoExecute {
		status = domain.ActionQueued
		queuedAt = &now
		queuedBy = userID
	}

	a := domain.AiAction{
		ID:               s.genID.Generate(),
		CompanyID:        companyID,
		AgentCode:        rec.AgentCode,
		RecommendationID: rec.ID,
		ActionJSON:       rec.RecommendationJSON,
		Status:           status,
		ApprovedByUserID: userID,
		ApprovedAt:       &now,
		QueuedByUserID:   queuedBy,
		QueuedAt:         queuedAt,
		ErrorMessage:     "",
	}
	if existing != nil {
		a.AttemptCount = existing.AttemptCount
		if existing.Status == domain.ActionFailed || existing.Status == domain.ActionBlocked || existing.Status == domain.ActionCanceled {
			a.AttemptCount = 0
		}
	}
	_, err = s.repo.UpsertAction(ctx, a)
	return err
}

func isCancelable(st domain.ActionStatus) bool {
	switch st {
	case domain.ActionQueued, domain.ActionApproved, domain.ActionBlocked, domain.ActionFailed:
		return true
	default:
		return false
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (s *Service) ListActions(ctx context.Context, companyID snowflake.ID, status domain.ActionStatus, agentCode string) ([]domain.AiAction, error) {
	return s.repo.ListActions(ctx, companyID, status, agentCode)
}

func (s *Service) QueueAction(ctx context.Context, companyID, id snowflake.ID, userID string) (*domain.AiAction, error) {
	a, err := s.repo.GetAction(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrActionNotFound
	}
	switch a.Status {
	case domain.ActionApproved, domain.ActionBlocked, domain.ActionFailed:
	default:
		return nil, domain.ErrActionNotQueueable
	}
	now := time.Now()
	a.Status = domain.ActionQueued
	a.QueuedByUserID = userID
	a.QueuedAt = &now
	a.ErrorMessage = ""
	if err := s.repo.UpdateAction(ctx, *a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) CancelAction(ctx context.Context, companyID, id snowflake.ID, reason string) (*domain.AiAction, error) {
	a, err := s.repo.GetAction(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrActionNotFound
	}
	if !isCancelable(a.Status) {
		return nil, domain.ErrActionNotCancelable
	}
	a.Status = domain.ActionCanceled
	a.ErrorMessage = firstNonEmpty(reason, "Canceled by user")
	a.QueuedByUserID = ""
	a.QueuedAt = nil
	a.AttemptCount = 0
	if err := s.repo.UpdateAction(ctx, *a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) RequeueAction(ctx context.Context, companyID, id snowflake.ID, userID string) (*domain.AiAction, error) {
	a, err := s.repo.GetAction(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrActionNotFound
	}
	switch a.Status {
	case domain.ActionFailed, domain.ActionCanceled, domain.ActionBlocked:
	default:
		return nil, domain.ErrActionNotRequeueable
	}
	now := time.Now()
	a.Status = domain.ActionQueued
	a.QueuedByUserID = userID
	a.QueuedAt = &now
	a.ErrorMessage = ""
	if err := s.repo.UpdateAction(ctx, *a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ListAgentSettings(ctx context.Context, companyID snowflake.ID) ([]domain.AiAgentSetting, error) {
	return s.repo.ListAgentSettings(ctx, companyID)
}

func (s *Service) UpsertAgentSetting(ctx context.Context, setting domain.AiAgentSetting) error {
	if setting.ID == 0 {
		setting.ID = s.genID.Generate()
	}
	return s.repo.UpsertAgentSetting(ctx, setting)
}

// ExecuteDueJob is the scheduler job that drains queued actions for a company, enforcing
// each agent's per-day action cap and per-action dollar cap before performing the agent's
// side effect. It is deliberately conservative: any guardrail miss blocks the action for a
// human to review rather than silently skipping or retrying it.
func (s *Service) ExecuteDueJob(ctx context.Context, companyID snowflake.ID, _ map[string]any) error {
	actions, err := s.repo.ListDueActions(ctx, companyID, 50)
	if err != nil {
		return err
	}
	dayStart := time.Now().Truncate(24 * time.Hour)
	for _, a := range actions {
		if err := s.executeOne(ctx, companyID, a, dayStart); err != nil {
			s.log.Warn("ai action execution failed", zap.Int64("action_id", int64(a.ID)), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) executeOne(ctx context.Context, companyID snowflake.ID, a domain.AiAction, dayStart time.Time) error {
	setting, err := s.repo.GetAgentSetting(ctx, companyID, a.AgentCode)
	if err != nil {
		return err
	}

	a.Status = domain.ActionExecuting
	a.AttemptCount++
	if err := s.repo.UpdateAction(ctx, a); err != nil {
		return err
	}

	if setting != nil && setting.MaxActionsPerDay > 0 {
		n, err := s.repo.CountExecutedToday(ctx, companyID, a.AgentCode, dayStart)
		if err != nil {
			return err
		}
		if n >= int64(setting.MaxActionsPerDay) {
			return s.blockAction(ctx, a, "daily action cap reached for this agent")
		}
	}
	if setting != nil {
		amountCap, _ := decimal.NewFromString(setting.MaxAmountUSD)
		if amountCap.IsPositive() {
			amount := decimal.NewFromFloat(num(map[string]any(a.ActionJSON), "amount_usd"))
			if amount.GreaterThan(amountCap) {
				return s.blockAction(ctx, a, "action amount exceeds the agent's per-action cap")
			}
		}
	}

	switch a.AgentCode {
	case "AI_PURCHASE", "AI_DEMAND":
		po, err := s.createDraftPO(ctx, companyID, a)
		if err != nil {
			return s.failAction(ctx, a, err)
		}
		poID := po.ID
		a.ResultEntityType = "purchase_order"
		a.ResultEntityID = &poID
	default:
		// An executable agent whose side effect has no executor wired (AI_PRICING) must
		// never report done; block it for a human to carry out by hand.
		return s.blockAction(ctx, a, "no executor wired for agent "+a.AgentCode)
	}

	now := time.Now()
	a.Status = domain.ActionExecuted
	a.ExecutedAt = &now
	a.ErrorMessage = ""
	return s.repo.UpdateAction(ctx, a)
}

// createDraftPO materializes a reorder action as a draft purchase order: the item and
// quantity come off the action payload, the supplier and unit cost off the item's
// freshest supplier record.
func (s *Service) createDraftPO(ctx context.Context, companyID snowflake.ID, a domain.AiAction) (*purchasingdomain.PurchaseOrder, error) {
	payload := map[string]any(a.ActionJSON)
	itemID, err := snowflake.ParseString(str(payload, "item_id"))
	if err != nil || itemID == 0 {
		return nil, apperr.New(apperr.KindValidation, "action payload has no item_id")
	}
	qty := decimal.NewFromFloat(num(payload, "suggested_qty"))
	if !qty.IsPositive() {
		return nil, apperr.New(apperr.KindValidation, "action payload has no positive suggested_qty")
	}

	supplier, err := s.catalog.LatestItemSupplier(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if supplier == nil {
		return nil, apperr.Newf(apperr.KindMissingConfig, "no known supplier for item %d", itemID)
	}

	costUSD, _ := decimal.NewFromString(supplier.LastCostUSD)
	costLBP, _ := decimal.NewFromString(supplier.LastCostLBP)
	return s.purchasing.CreatePO(ctx, s.purchRepo, companyID, supplier.SupplierID, time.Now().UTC(), decimal.Zero, []purchasingservice.CreatePOLine{
		{ItemID: itemID, Qty: qty, UnitCost: money.Dual{USD: costUSD, LBP: costLBP}},
	})
}

func (s *Service) blockAction(ctx context.Context, a domain.AiAction, reason string) error {
	a.Status = domain.ActionBlocked
	a.ErrorMessage = reason
	return s.repo.UpdateAction(ctx, a)
}

// failAction records the failure on the action (attempt_count was already bumped) and
// propagates the cause so the job log carries it too.
func (s *Service) failAction(ctx context.Context, a domain.AiAction, cause error) error {
	a.Status = domain.ActionFailed
	a.ErrorMessage = cause.Error()
	if err := s.repo.UpdateAction(ctx, a); err != nil {
		return err
	}
	return cause
}

// reorderTargetDays is how many days of cover a suggested reorder quantity aims to restore,
// applied on top of the item's own reorder_qty when sales history is available.
const reorderTargetDays = 14

// GenerateReorderRecommendationsJob scans items with a positive reorder point across every
// warehouse, compares against on-hand quantity, and files a pending AI_DEMAND recommendation
// when stock has fallen below the threshold — deduping against any recommendation already
// pending for the same item/warehouse, the same natural-key pattern the original cost-impact
// generator worker uses.
func (s *Service) GenerateReorderRecommendationsJob(ctx context.Context, companyID snowflake.ID, _ map[string]any) error {
	items, err := s.catalog.ListItems(ctx, companyID)
	if err != nil {
		return err
	}
	warehouses, err := s.catalog.ListWarehouses(ctx, companyID)
	if err != nil {
		return err
	}

	for _, item := range items {
		if !item.Active {
			continue
		}
		reorderPoint, _ := decimal.NewFromString(item.ReorderPoint)
		if !reorderPoint.IsPositive() {
			continue
		}
		reorderQty, _ := decimal.NewFromString(item.ReorderQty)
		if reorderQty.IsZero() {
			reorderQty = reorderPoint
		}

		sales, err := s.repo.ListSalesDaily(ctx, companyID, item.ID, time.Now().AddDate(0, 0, -reorderTargetDays))
		if err != nil {
			return err
		}
		if demandQty := projectedDemand(sales); demandQty.GreaterThan(reorderQty) {
			reorderQty = demandQty
		}

		for _, wh := range warehouses {
			if !wh.Active {
				continue
			}
			cost, err := s.batch.GetItemWarehouseCost(ctx, item.ID, wh.ID)
			if err != nil {
				return err
			}
			if cost == nil {
				continue
			}
			onHand, _ := decimal.NewFromString(cost.OnHandQty)
			if onHand.GreaterThanOrEqual(reorderPoint) {
				continue
			}

			changeKey := fmt.Sprintf("%d:%d", item.ID, wh.ID)
			dupes, err := s.repo.ListPendingByNaturalKey(ctx, companyID, "AI_DEMAND", "change_key", changeKey)
			if err != nil {
				return err
			}
			if len(dupes) > 0 {
				continue
			}

			severity := "medium"
			if onHand.IsZero() || onHand.IsNegative() {
				severity = "high"
			}
			rec := domain.AiRecommendation{
				ID:        s.genID.Generate(),
				CompanyID: companyID,
				AgentCode: "AI_DEMAND",
				Status:    domain.RecommendationPending,
				RecommendationJSON: map[string]any{
					"kind":          "reorder",
					"change_key":    changeKey,
					"item_id":       fmt.Sprintf("%d", item.ID),
					"item_name":     item.Name,
					"warehouse_id":  fmt.Sprintf("%d", wh.ID),
					"on_hand_qty":   mustFloat(onHand),
					"reorder_point": mustFloat(reorderPoint),
					"suggested_qty": mustFloat(reorderQty),
					"entity_type":   "item",
					"entity_id":     fmt.Sprintf("%d", item.ID),
					"severity":      severity,
				},
			}
			if _, err := s.repo.CreateRecommendation(ctx, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// projectedDemand sums the recent qty_sold rollup and scales it to a reorderTargetDays
// cover, so a fast-moving item suggests a bigger reorder than its static reorder_qty alone.
func projectedDemand(sales []domain.AiItemSalesDaily) decimal.Decimal {
	if len(sales) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, s := range sales {
		qty, _ := decimal.NewFromString(s.QtySold)
		total = total.Add(qty)
	}
	avgPerDay := total.Div(decimal.NewFromInt(int64(len(sales))))
	return avgPerDay.Mul(decimal.NewFromInt(reorderTargetDays))
}
