package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/baytretail/core/internal/ai/domain"
	airepository "github.com/baytretail/core/internal/ai/repository"
	batchdomain "github.com/baytretail/core/internal/batch/domain"
	batchrepository "github.com/baytretail/core/internal/batch/repository"
	catalogdomain "github.com/baytretail/core/internal/catalog/domain"
	catalogservice "github.com/baytretail/core/internal/catalog/service"
	purchasingdomain "github.com/baytretail/core/internal/purchasing/domain"
	purchasingservice "github.com/baytretail/core/internal/purchasing/service"
	genrepo "github.com/baytretail/core/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.AiAgentSetting{}, &domain.AiRecommendation{}, &domain.AiAction{}, &domain.AiItemSalesDaily{},
		&batchdomain.ItemWarehouseCost{},
		&catalogdomain.Item{}, &catalogdomain.Warehouse{}, &catalogdomain.TaxCode{},
		&catalogdomain.SupplierItemAlias{}, &catalogdomain.ItemSupplier{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) (*Service, domain.Repository) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	repo := airepository.New(db)
	catalog := catalogservice.New(catalogservice.Params{
		Items:           genrepo.ProvideStore[catalogdomain.Item](db),
		Warehouses:      genrepo.ProvideStore[catalogdomain.Warehouse](db),
		TaxCodes:        genrepo.ProvideStore[catalogdomain.TaxCode](db),
		SupplierAliases: genrepo.ProvideStore[catalogdomain.SupplierItemAlias](db),
		ItemSuppliers:   genrepo.ProvideStore[catalogdomain.ItemSupplier](db),
		GenID:           node,
		Logger:          zap.NewNop(),
	})
	batch := batchrepository.New(db)

	svc := New(Params{
		Repo: repo, Batch: batch, Catalog: catalog, Purchasing: &fakePOCreator{}, Audit: nil,
		GenID: node, Log: zap.NewNop(),
	})
	return svc, repo
}

// fakePOCreator stands in for the purchasing service: the executor's contract is that it
// hands over supplier/item/qty and records the returned entity, not how the PO persists.
type fakePOCreator struct {
	lastSupplier snowflake.ID
	lastLines    []purchasingservice.CreatePOLine
}

func (f *fakePOCreator) CreatePO(_ context.Context, _ purchasingdomain.Repository, companyID, supplierID snowflake.ID, orderDate time.Time, _ decimal.Decimal, lines []purchasingservice.CreatePOLine) (*purchasingdomain.PurchaseOrder, error) {
	f.lastSupplier = supplierID
	f.lastLines = lines
	return &purchasingdomain.PurchaseOrder{
		ID: 7777, CompanyID: companyID, SupplierID: supplierID,
		Status: purchasingdomain.POStatusDraft, OrderDate: orderDate,
	}, nil
}

func TestDecideApproveExecutableAgentQueuesWhenAutoExecute(t *testing.T) {
	db := setupDB(t)
	svc, repo := newTestService(t, db)
	ctx := context.Background()

	companyID := snowflake.ID(1)
	require.NoError(t, repo.UpsertAgentSetting(ctx, domain.AiAgentSetting{
		ID: 2, CompanyID: companyID, AgentCode: "AI_PURCHASE", AutoExecute: true,
	}))

	rec, err := repo.CreateRecommendation(ctx, domain.AiRecommendation{
		ID: 3, CompanyID: companyID, AgentCode: "AI_PURCHASE", Status: domain.RecommendationPending,
		RecommendationJSON: map[string]any{"kind": "reorder", "item_name": "Widget"},
	})
	require.NoError(t, err)

	decided, err := svc.Decide(ctx, companyID, rec.ID, DecideInput{Decision: "approved", UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, domain.RecommendationApproved, decided.Status)

	action, err := repo.GetActionByRecommendation(ctx, companyID, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, action)
	require.Equal(t, domain.ActionQueued, action.Status)
}

func TestDecideApproveNonExecutableAgentSpawnsNoAction(t *testing.T) {
	db := setupDB(t)
	svc, repo := newTestService(t, db)
	ctx := context.Background()

	companyID := snowflake.ID(1)
	rec, err := repo.CreateRecommendation(ctx, domain.AiRecommendation{
		ID: 3, CompanyID: companyID, AgentCode: "AI_DATA_HYGIENE", Status: domain.RecommendationPending,
		RecommendationJSON: map[string]any{"issues": []any{}},
	})
	require.NoError(t, err)

	_, err = svc.Decide(ctx, companyID, rec.ID, DecideInput{Decision: "approved", UserID: "u1"})
	require.NoError(t, err)

	action, err := repo.GetActionByRecommendation(ctx, companyID, rec.ID)
	require.NoError(t, err)
	require.Nil(t, action)
}

func TestDecideRejectCancelsOpenAction(t *testing.T) {
	db := setupDB(t)
	svc, repo := newTestService(t, db)
	ctx := context.Background()

	companyID := snowflake.ID(1)
	rec, err := repo.CreateRecommendation(ctx, domain.AiRecommendation{
		ID: 3, CompanyID: companyID, AgentCode: "AI_PRICING", Status: domain.RecommendationPending,
		RecommendationJSON: map[string]any{"kind": "low_margin"},
	})
	require.NoError(t, err)
	_, err = svc.Decide(ctx, companyID, rec.ID, DecideInput{Decision: "approved", UserID: "u1"})
	require.NoError(t, err)

	rec2, err := repo.GetRecommendation(ctx, companyID, rec.ID)
	require.NoError(t, err)
	rec2.Status = domain.RecommendationPending
	require.NoError(t, repo.UpdateRecommendation(ctx, *rec2))

	decided, err := svc.Decide(ctx, companyID, rec.ID, DecideInput{Decision: "rejected", UserID: "u1", Reason: "bad suggestion"})
	require.NoError(t, err)
	require.Equal(t, domain.RecommendationRejected, decided.Status)

	action, err := repo.GetActionByRecommendation(ctx, companyID, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, action)
	require.Equal(t, domain.ActionCanceled, action.Status)
	require.Equal(t, "bad suggestion", action.ErrorMessage)
}

// executeOne is exercised directly rather than through ExecuteDueJob/ListDueActions: the
// latter issues a FOR UPDATE SKIP LOCKED select, which the sqlite driver used in tests
// doesn't support, while production always runs it against Postgres.
func TestExecuteOneBlocksOnDailyActionCap(t *testing.T) {
	db := setupDB(t)
	svc, repo := newTestService(t, db)
	ctx := context.Background()

	companyID := snowflake.ID(1)
	require.NoError(t, repo.UpsertAgentSetting(ctx, domain.AiAgentSetting{
		ID: 2, CompanyID: companyID, AgentCode: "AI_PURCHASE", MaxActionsPerDay: 1,
	}))
	now := time.Now()
	_, err := repo.UpsertAction(ctx, domain.AiAction{
		ID: 9, CompanyID: companyID, AgentCode: "AI_PURCHASE", RecommendationID: 99,
		Status: domain.ActionExecuted, ExecutedAt: &now,
	})
	require.NoError(t, err)
	queued, err := repo.UpsertAction(ctx, domain.AiAction{
		ID: 10, CompanyID: companyID, AgentCode: "AI_PURCHASE", RecommendationID: 100,
		Status: domain.ActionQueued,
	})
	require.NoError(t, err)

	require.NoError(t, svc.executeOne(ctx, companyID, *queued, now.Truncate(24*time.Hour)))

	action, err := repo.GetAction(ctx, companyID, 10)
	require.NoError(t, err)
	require.Equal(t, domain.ActionBlocked, action.Status)
}

func TestExecuteOneCreatesDraftPOAndRecordsResult(t *testing.T) {
	db := setupDB(t)
	svc, repo := newTestService(t, db)
	ctx := context.Background()

	companyID, itemID, supplierID := snowflake.ID(1), snowflake.ID(20), snowflake.ID(40)
	require.NoError(t, db.Create(&catalogdomain.ItemSupplier{
		ID: 41, ItemID: itemID, SupplierID: supplierID, LastCostUSD: "4", LastCostLBP: "358000",
	}).Error)

	queued, err := repo.UpsertAction(ctx, domain.AiAction{
		ID: 10, CompanyID: companyID, AgentCode: "AI_DEMAND", RecommendationID: 100,
		Status: domain.ActionQueued,
		ActionJSON: map[string]any{"item_id": "20", "suggested_qty": 50.0},
	})
	require.NoError(t, err)

	require.NoError(t, svc.executeOne(ctx, companyID, *queued, time.Now().Truncate(24*time.Hour)))

	action, err := repo.GetAction(ctx, companyID, 10)
	require.NoError(t, err)
	require.Equal(t, domain.ActionExecuted, action.Status)
	require.Equal(t, "purchase_order", action.ResultEntityType)
	require.NotNil(t, action.ResultEntityID)
	require.EqualValues(t, 7777, *action.ResultEntityID)

	fake := svc.purchasing.(*fakePOCreator)
	require.Equal(t, supplierID, fake.lastSupplier)
	require.Len(t, fake.lastLines, 1)
	require.Equal(t, itemID, fake.lastLines[0].ItemID)
	require.True(t, fake.lastLines[0].Qty.Equal(decimal.NewFromInt(50)))
}

func TestExecuteOneFailsWhenNoSupplierKnown(t *testing.T) {
	db := setupDB(t)
	svc, repo := newTestService(t, db)
	ctx := context.Background()

	companyID := snowflake.ID(1)
	queued, err := repo.UpsertAction(ctx, domain.AiAction{
		ID: 11, CompanyID: companyID, AgentCode: "AI_PURCHASE", RecommendationID: 101,
		Status: domain.ActionQueued,
		ActionJSON: map[string]any{"item_id": "999", "suggested_qty": 5.0},
	})
	require.NoError(t, err)

	require.Error(t, svc.executeOne(ctx, companyID, *queued, time.Now().Truncate(24*time.Hour)))

	action, err := repo.GetAction(ctx, companyID, 11)
	require.NoError(t, err)
	require.Equal(t, domain.ActionFailed, action.Status)
	require.NotEmpty(t, action.ErrorMessage)
	require.Equal(t, 1, action.AttemptCount)
}

func TestExecuteOneBlocksAgentWithoutExecutor(t *testing.T) {
	db := setupDB(t)
	svc, repo := newTestService(t, db)
	ctx := context.Background()

	companyID := snowflake.ID(1)
	queued, err := repo.UpsertAction(ctx, domain.AiAction{
		ID: 12, CompanyID: companyID, AgentCode: "AI_PRICING", RecommendationID: 102,
		Status: domain.ActionQueued,
		ActionJSON: map[string]any{"item_id": "20"},
	})
	require.NoError(t, err)

	require.NoError(t, svc.executeOne(ctx, companyID, *queued, time.Now().Truncate(24*time.Hour)))

	action, err := repo.GetAction(ctx, companyID, 12)
	require.NoError(t, err)
	require.Equal(t, domain.ActionBlocked, action.Status)
	require.Contains(t, action.ErrorMessage, "no executor wired")
}

func TestGenerateReorderRecommendationsJobFiresBelowThreshold(t *testing.T) {
	db := setupDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	companyID := snowflake.ID(1)
	itemID, warehouseID := snowflake.ID(20), snowflake.ID(30)
	require.NoError(t, db.Create(&catalogdomain.Item{
		ID: itemID, CompanyID: companyID, SKU: "W1", Name: "Widget", Active: true,
		UnitOfMeasure: "EA", ReorderPoint: "10", ReorderQty: "50",
	}).Error)
	require.NoError(t, db.Create(&catalogdomain.Warehouse{
		ID: warehouseID, CompanyID: companyID, Code: "MAIN", Name: "Main", Active: true,
	}).Error)
	require.NoError(t, db.Create(&batchdomain.ItemWarehouseCost{
		ItemID: itemID, WarehouseID: warehouseID, OnHandQty: "3",
	}).Error)

	require.NoError(t, svc.GenerateReorderRecommendationsJob(ctx, companyID, nil))

	recs, _, err := svc.ListRecommendations(ctx, companyID, domain.RecommendationPending, "AI_DEMAND")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "reorder", recs[0].RecommendationJSON["kind"])

	// Re-running the generator must not duplicate the recommendation for the same item/warehouse.
	require.NoError(t, svc.GenerateReorderRecommendationsJob(ctx, companyID, nil))
	recs, _, err = svc.ListRecommendations(ctx, companyID, domain.RecommendationPending, "AI_DEMAND")
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestRecommendationViewReorderAndFallback(t *testing.T) {
	reorder := recommendationView(domain.AiRecommendation{
		AgentCode: "AI_DEMAND",
		RecommendationJSON: map[string]any{
			"item_name": "Widget", "on_hand_qty": 3.0, "reorder_point": 10.0, "suggested_qty": 50.0,
			"entity_type": "item", "entity_id": "20",
		},
	})
	require.Equal(t, "reorder", reorder.Kind)
	require.Contains(t, reorder.Summary, "Widget")
	require.Equal(t, "/catalog/items/20", reorder.LinkHref)

	fallback := recommendationView(domain.AiRecommendation{AgentCode: "AI_CORE", RecommendationJSON: map[string]any{}})
	require.Equal(t, "generic", fallback.Kind)
	require.Equal(t, "Recommendation", fallback.Title)
}
