package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/baytretail/core/internal/batch/domain"
	"github.com/baytretail/core/internal/batch/repository"
	catalogdomain "github.com/baytretail/core/internal/catalog/domain"
	"github.com/baytretail/core/internal/money"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
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
		&domain.Batch{}, &domain.StockMove{}, &domain.BatchCostLayer{},
		&domain.ItemWarehouseCost{}, &domain.InventoryCostAdjustment{},
	))
	return db
}

func newService(t *testing.T, db *gorm.DB) (*Service, domain.Repository) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	repo := repository.New(db)
	return New(repo, node, zap.NewNop()), repo
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAllocateFEFOOrdersByExpiryAscending(t *testing.T) {
	db := setupDB(t)
	svc, repo := newService(t, db)
	ctx := context.Background()

	companyID, itemID, warehouseID := snowflake.ID(1), snowflake.ID(2), snowflake.ID(3)
	near := time.Now().UTC().AddDate(0, 0, 5)
	far := time.Now().UTC().AddDate(0, 0, 30)

	nearBatch := domain.Batch{ID: 10, CompanyID: companyID, ItemID: itemID, Status: domain.BatchStatusAvailable, ExpiryDate: &near}
	farBatch := domain.Batch{ID: 11, CompanyID: companyID, ItemID: itemID, Status: domain.BatchStatusAvailable, ExpiryDate: &far}
	require.NoError(t, db.Create(&nearBatch).Error)
	require.NoError(t, db.Create(&farBatch).Error)

	require.NoError(t, repo.CreateStockMove(ctx, domain.StockMove{
		ID: 100, CompanyID: companyID, ItemID: itemID, WarehouseID: warehouseID, BatchID: &nearBatch.ID,
		QtyIn: "5", MoveDate: time.Now().UTC(), SourceType: "goods_receipt", SourceID: 1,
	}))
	require.NoError(t, repo.CreateStockMove(ctx, domain.StockMove{
		ID: 101, CompanyID: companyID, ItemID: itemID, WarehouseID: warehouseID, BatchID: &farBatch.ID,
		QtyIn: "5", MoveDate: time.Now().UTC(), SourceType: "goods_receipt", SourceID: 1,
	}))

	item := catalogdomain.Item{ID: itemID, TrackBatches: true}
	allocs, err := svc.AllocateFEFO(ctx, repo, companyID, warehouseID, item, dec("7"), 0)
	require.NoError(t, err)
	require.Len(t, allocs, 2)
	require.Equal(t, nearBatch.ID, *allocs[0].BatchID)
	require.True(t, allocs[0].Qty.Equal(dec("5")))
	require.Equal(t, farBatch.ID, *allocs[1].BatchID)
	require.True(t, allocs[1].Qty.Equal(dec("2")))
}

func TestAllocateFEFOUntrackedItemIsUnbatched(t *testing.T) {
	db := setupDB(t)
	svc, repo := newService(t, db)

	item := catalogdomain.Item{ID: 1, TrackBatches: false}
	allocs, err := svc.AllocateFEFO(context.Background(), repo, 1, 2, item, dec("3"), 0)
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	require.Nil(t, allocs[0].BatchID)
	require.True(t, allocs[0].Qty.Equal(dec("3")))
}

func TestAllocateFEFOInsufficientStockFailsWhenNegativeNotAllowed(t *testing.T) {
	db := setupDB(t)
	svc, repo := newService(t, db)

	item := catalogdomain.Item{ID: 1, TrackBatches: true, AllowNegativeStock: false}
	_, err := svc.AllocateFEFO(context.Background(), repo, 1, 2, item, dec("3"), 0)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestApplyMovingAverageWeightsInboundReceiptsByQty(t *testing.T) {
	db := setupDB(t)
	svc, repo := newService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.applyMovingAverage(ctx, repo, 1, 2, dec("10"), money.Dual{USD: dec("2"), LBP: dec("180000")}))
	require.NoError(t, svc.applyMovingAverage(ctx, repo, 1, 2, dec("10"), money.Dual{USD: dec("4"), LBP: dec("360000")}))

	c, err := repo.GetItemWarehouseCost(ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, dec(c.AvgCostUSD).Equal(dec("3")))
	require.True(t, dec(c.OnHandQty).Equal(dec("20")))
}

func TestApplyOutboundLeavesAverageUnchanged(t *testing.T) {
	db := setupDB(t)
	svc, repo := newService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.applyMovingAverage(ctx, repo, 1, 2, dec("10"), money.Dual{USD: dec("2"), LBP: dec("180000")}))
	require.NoError(t, svc.ApplyOutbound(ctx, repo, 1, 2, dec("4")))

	c, err := repo.GetItemWarehouseCost(ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, dec(c.AvgCostUSD).Equal(dec("2")))
	require.True(t, dec(c.OnHandQty).Equal(dec("6")))
}
