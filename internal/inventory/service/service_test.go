package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/baytretail/core/internal/accountdefaults"
	auditrepo "github.com/baytretail/core/internal/audit/repository"
	auditservice "github.com/baytretail/core/internal/audit/service"
	batchdomain "github.com/baytretail/core/internal/batch/domain"
	batchrepo "github.com/baytretail/core/internal/batch/repository"
	batchservice "github.com/baytretail/core/internal/batch/service"
	catalogdomain "github.com/baytretail/core/internal/catalog/domain"
	companydomain "github.com/baytretail/core/internal/company/domain"
	companyrepo "github.com/baytretail/core/internal/company/repository"
	gldomain "github.com/baytretail/core/internal/gl/domain"
	glrepo "github.com/baytretail/core/internal/gl/repository"
	glservice "github.com/baytretail/core/internal/gl/service"
	"github.com/baytretail/core/internal/money"
	"github.com/baytretail/core/internal/tenant"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const companyID = snowflake.ID(21)

type fixture struct {
	db       *gorm.DB
	svc      *Service
	batchTx  batchdomain.Repository
	glTx     gldomain.Repository
	compRepo companydomain.Repository
	accounts map[companydomain.AccountRoleCode]snowflake.ID
	wh       snowflake.ID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&batchdomain.Batch{}, &batchdomain.StockMove{}, &batchdomain.BatchCostLayer{},
		&batchdomain.ItemWarehouseCost{}, &batchdomain.InventoryCostAdjustment{},
		&gldomain.GlJournal{}, &gldomain.GlEntry{}, &gldomain.TaxLine{},
		&companydomain.CompanyCoaAccount{}, &companydomain.CompanyAccountDefaults{},
		&tenant.PeriodLock{},
	))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	compRepo := companyrepo.New(db)
	auditSvc := auditservice.NewService(auditservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: auditrepo.Provide()})
	resolver := accountdefaults.New(compRepo, auditSvc, node)
	glSvc := glservice.New(glrepo.New(db), compRepo, resolver, node, zap.NewNop())
	batchSvc := batchservice.New(batchrepo.New(db), node, zap.NewNop())

	f := &fixture{
		db: db, svc: New(batchSvc, glSvc, resolver, node, zap.NewNop()),
		batchTx: batchrepo.New(db), glTx: glrepo.New(db), compRepo: compRepo,
		accounts: map[companydomain.AccountRoleCode]snowflake.ID{},
		wh:       node.Generate(),
	}

	ctx := context.Background()
	for _, r := range []struct {
		role companydomain.AccountRoleCode
		code string
	}{
		{companydomain.RoleInventory, "1310"},
		{companydomain.RoleOpeningStock, "1099"},
		{companydomain.RoleShrinkage, "6021"},
		{companydomain.RoleInvAdj, "6020"},
		{companydomain.RoleRounding, "5900"},
	} {
		acct := companydomain.CompanyCoaAccount{
			ID: node.Generate(), CompanyID: companyID, Code: r.code, Name: string(r.role), Type: "asset", IsPostable: true,
		}
		require.NoError(t, compRepo.CreateCoaAccount(ctx, acct))
		require.NoError(t, compRepo.SetAccountDefault(ctx, companydomain.CompanyAccountDefaults{
			CompanyID: companyID, RoleCode: r.role, AccountID: acct.ID,
		}))
		f.accounts[r.role] = acct.ID
	}
	return f
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func untracked(id snowflake.ID) catalogdomain.Item {
	return catalogdomain.Item{ID: id, CompanyID: companyID, SKU: "A", UnitOfMeasure: "EA"}
}

func TestOpeningStockImportIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	importID := snowflake.ID(555)
	item := untracked(1)
	lines := []OpeningStockLine{
		{Item: item, WarehouseID: f.wh, Qty: dec("10"), UnitCost: money.Dual{USD: dec("2"), LBP: dec("179000")}},
	}

	applied, err := f.svc.OpeningStockImport(ctx, f.db, f.batchTx, f.glTx, f.compRepo, companyID, importID, time.Now().UTC(), lines)
	require.NoError(t, err)
	require.False(t, applied)

	moves, err := f.batchTx.ListStockMovesBySource(ctx, companyID, "opening_stock_import", importID)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	require.True(t, dec(moves[0].QtyIn).Equal(dec("10")))

	journal, err := f.glTx.FindJournalBySource(ctx, companyID, "opening_stock_import", importID)
	require.NoError(t, err)
	require.NotNil(t, journal)
	entries, err := f.glTx.ListEntries(ctx, journal.ID)
	require.NoError(t, err)
	for _, e := range entries {
		if e.AccountID == f.accounts[companydomain.RoleInventory] {
			require.True(t, dec(e.DebitUSD).Equal(dec("20")))
		}
		if e.AccountID == f.accounts[companydomain.RoleOpeningStock] {
			require.True(t, dec(e.CreditUSD).Equal(dec("20")))
		}
	}

	// Replay: nothing new.
	applied, err = f.svc.OpeningStockImport(ctx, f.db, f.batchTx, f.glTx, f.compRepo, companyID, importID, time.Now().UTC(), lines)
	require.NoError(t, err)
	require.True(t, applied)

	moves, err = f.batchTx.ListStockMovesBySource(ctx, companyID, "opening_stock_import", importID)
	require.NoError(t, err)
	require.Len(t, moves, 1)
}

func TestAdjustRejectsZeroQtyAndMissingBatchContext(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	err := f.svc.Adjust(ctx, f.db, f.batchTx, MoveInput{
		CompanyID: companyID, Item: untracked(1), WarehouseID: f.wh, QtyDelta: decimal.Zero,
		MoveDate: time.Now().UTC(), SourceType: "adjustment", SourceID: 1,
	})
	require.ErrorIs(t, err, batchdomain.ErrZeroQty)

	tracked := untracked(2)
	tracked.TrackBatches = true
	err = f.svc.Adjust(ctx, f.db, f.batchTx, MoveInput{
		CompanyID: companyID, Item: tracked, WarehouseID: f.wh, QtyDelta: dec("1"),
		MoveDate: time.Now().UTC(), SourceType: "adjustment", SourceID: 1,
	})
	require.ErrorIs(t, err, batchdomain.ErrBatchContextRequired)
}

func TestExpiryWriteOffBooksShrinkage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	item := untracked(3)
	batch := batchdomain.Batch{ID: 31, CompanyID: companyID, ItemID: item.ID, BatchNo: "EXP1", Status: batchdomain.BatchStatusAvailable}
	require.NoError(t, f.db.Create(&batch).Error)

	sourceID := snowflake.ID(777)
	err := f.svc.ExpiryWriteOff(ctx, f.db, f.batchTx, f.glTx, f.compRepo, companyID, item, f.wh, batch.ID,
		dec("3"), money.Dual{USD: dec("2"), LBP: dec("179000")}, time.Now().UTC(), sourceID)
	require.NoError(t, err)

	journal, err := f.glTx.FindJournalBySource(ctx, companyID, "expiry_writeoff", sourceID)
	require.NoError(t, err)
	require.NotNil(t, journal)
	entries, err := f.glTx.ListEntries(ctx, journal.ID)
	require.NoError(t, err)
	for _, e := range entries {
		if e.AccountID == f.accounts[companydomain.RoleShrinkage] {
			require.True(t, dec(e.DebitUSD).Equal(dec("6")))
		}
		if e.AccountID == f.accounts[companydomain.RoleInventory] {
			require.True(t, dec(e.CreditUSD).Equal(dec("6")))
		}
	}

	moves, err := f.batchTx.ListStockMovesBySource(ctx, companyID, "expiry_writeoff", sourceID)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	require.True(t, dec(moves[0].QtyOut).Equal(dec("3")))
}

func TestCycleCountSkipsGLWhenCountMatches(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sourceID := snowflake.ID(888)

	err := f.svc.CycleCount(ctx, f.db, f.batchTx, f.glTx, f.compRepo, companyID, untracked(4), f.wh, nil,
		dec("5"), dec("5"), money.Dual{USD: dec("1")}, time.Now().UTC(), sourceID)
	require.NoError(t, err)

	journal, err := f.glTx.FindJournalBySource(ctx, companyID, "cycle_count", sourceID)
	require.NoError(t, err)
	require.Nil(t, journal)
	moves, err := f.batchTx.ListStockMovesBySource(ctx, companyID, "cycle_count", sourceID)
	require.NoError(t, err)
	require.Empty(t, moves)
}

func TestOpeningStockImportBlockedByPeriodLock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, f.db.Create(&tenant.PeriodLock{
		ID: 1, CompanyID: companyID, Start: now.AddDate(0, 0, -1), End: now.AddDate(0, 0, 1), Locked: true,
	}).Error)

	_, err := f.svc.OpeningStockImport(ctx, f.db, f.batchTx, f.glTx, f.compRepo, companyID, 999, now, []OpeningStockLine{
		{Item: untracked(5), WarehouseID: f.wh, Qty: dec("1"), UnitCost: money.Dual{USD: dec("1")}},
	})
	require.Error(t, err)
}
