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
	companydomain "github.com/baytretail/core/internal/company/domain"
	companyrepo "github.com/baytretail/core/internal/company/repository"
	"github.com/baytretail/core/internal/events"
	gldomain "github.com/baytretail/core/internal/gl/domain"
	glrepo "github.com/baytretail/core/internal/gl/repository"
	glservice "github.com/baytretail/core/internal/gl/service"
	"github.com/baytretail/core/internal/money"
	purchasingdomain "github.com/baytretail/core/internal/purchasing/domain"
	purchasingrepo "github.com/baytretail/core/internal/purchasing/repository"
	"github.com/baytretail/core/internal/suppliercredit/domain"
	"github.com/baytretail/core/internal/suppliercredit/repository"
	"github.com/baytretail/core/internal/tenant"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const companyID = snowflake.ID(11)

type fixture struct {
	db       *gorm.DB
	svc      *Service
	repo     domain.Repository
	purchTx  purchasingdomain.Repository
	batchTx  batchdomain.Repository
	glTx     gldomain.Repository
	compRepo companydomain.Repository

	supplier snowflake.ID
	wh       snowflake.ID
	accounts map[companydomain.AccountRoleCode]snowflake.ID

	gr      purchasingdomain.GoodsReceipt
	grLines []purchasingdomain.GoodsReceiptLine
	itemA   snowflake.ID
	itemB   snowflake.ID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.SupplierCreditNote{}, &domain.SupplierCreditAllocation{}, &domain.SupplierCreditApplication{},
		&purchasingdomain.GoodsReceipt{}, &purchasingdomain.GoodsReceiptLine{},
		&purchasingdomain.SupplierInvoice{}, &purchasingdomain.SupplierInvoiceLine{}, &purchasingdomain.SupplierPayment{},
		&batchdomain.Batch{}, &batchdomain.StockMove{}, &batchdomain.BatchCostLayer{},
		&batchdomain.ItemWarehouseCost{}, &batchdomain.InventoryCostAdjustment{},
		&gldomain.GlJournal{}, &gldomain.GlEntry{}, &gldomain.TaxLine{},
		&companydomain.CompanyCoaAccount{}, &companydomain.CompanyAccountDefaults{},
		&tenant.PeriodLock{}, &events.Event{},
	))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	compRepo := companyrepo.New(db)
	auditSvc := auditservice.NewService(auditservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: auditrepo.Provide()})
	resolver := accountdefaults.New(compRepo, auditSvc, node)
	glSvc := glservice.New(glrepo.New(db), compRepo, resolver, node, zap.NewNop())
	batchSvc := batchservice.New(batchrepo.New(db), node, zap.NewNop())

	f := &fixture{
		db: db, repo: repository.New(db),
		purchTx: purchasingrepo.New(db), batchTx: batchrepo.New(db), glTx: glrepo.New(db), compRepo: compRepo,
		supplier: node.Generate(), wh: node.Generate(),
		accounts: map[companydomain.AccountRoleCode]snowflake.ID{},
		itemA:    node.Generate(), itemB: node.Generate(),
	}
	f.svc = New(f.repo, batchSvc, glSvc, resolver, events.NewOutbox(), node, zap.NewNop())

	ctx := context.Background()
	for _, r := range []struct {
		role companydomain.AccountRoleCode
		code string
	}{
		{companydomain.RoleAP, "2111"},
		{companydomain.RoleInventory, "1310"},
		{companydomain.RoleCOGS, "6000"},
		{companydomain.RoleRounding, "5900"},
		{companydomain.RolePurchasesExpense, "6001"},
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

	// A posted two-line receipt: line 1 (item A, batch B1) 10 @ 5 USD with 4 still on
	// hand; line 2 (item B, batch B2) 10 @ 5 USD fully on hand.
	now := time.Now().UTC()
	f.gr = purchasingdomain.GoodsReceipt{
		ID: node.Generate(), CompanyID: companyID, SupplierID: f.supplier, WarehouseID: f.wh,
		Status: purchasingdomain.GRStatusPosted, ExchangeRate: "89500", ReceiptDate: now,
	}
	require.NoError(t, db.Create(&f.gr).Error)

	type seedLine struct {
		item    snowflake.ID
		batchNo string
		inQty   string
		outQty  string
	}
	for _, sl := range []seedLine{
		{f.itemA, "B1", "10", "6"},
		{f.itemB, "B2", "10", ""},
	} {
		line := purchasingdomain.GoodsReceiptLine{
			ID: node.Generate(), GoodsReceiptID: f.gr.ID, ItemID: sl.item, BatchNo: sl.batchNo,
			Qty: "10", UnitCostUSD: "5", UnitCostLBP: "447500",
		}
		require.NoError(t, db.Create(&line).Error)
		f.grLines = append(f.grLines, line)

		batch := batchdomain.Batch{
			ID: node.Generate(), CompanyID: companyID, ItemID: sl.item, BatchNo: sl.batchNo,
			Status: batchdomain.BatchStatusAvailable,
		}
		require.NoError(t, db.Create(&batch).Error)

		require.NoError(t, db.Create(&batchdomain.StockMove{
			ID: node.Generate(), CompanyID: companyID, ItemID: sl.item, WarehouseID: f.wh, BatchID: &batch.ID,
			QtyIn: sl.inQty, MoveDate: now, SourceType: "goods_receipt", SourceID: f.gr.ID,
		}).Error)
		onHand := sl.inQty
		if sl.outQty != "" {
			require.NoError(t, db.Create(&batchdomain.StockMove{
				ID: node.Generate(), CompanyID: companyID, ItemID: sl.item, WarehouseID: f.wh, BatchID: &batch.ID,
				QtyOut: sl.outQty, MoveDate: now, SourceType: "pos_sale", SourceID: node.Generate(),
			}).Error)
			onHand = "4"
		}

		require.NoError(t, db.Create(&batchdomain.ItemWarehouseCost{
			ItemID: sl.item, WarehouseID: f.wh, OnHandQty: onHand, AvgCostUSD: "5", AvgCostLBP: "447500",
		}).Error)
		require.NoError(t, db.Create(&batchdomain.BatchCostLayer{
			ID: node.Generate(), CompanyID: companyID, BatchID: batch.ID, WarehouseID: f.wh,
			SourceType: "goods_receipt", SourceID: f.gr.ID, SourceLineID: line.ID,
			Qty: "10", UnitCostUSD: "5", UnitCostLBP: "447500",
		}).Error)
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

func (f *fixture) postCredit(t *testing.T, in CreateInput) *domain.SupplierCreditNote {
	t.Helper()
	ctx := context.Background()
	cn, err := f.svc.Create(ctx, f.repo, companyID, in)
	require.NoError(t, err)
	cn, err = f.svc.Post(ctx, f.db, f.repo, f.purchTx, f.batchTx, f.glTx, f.compRepo, companyID, cn.ID)
	require.NoError(t, err)
	return cn
}

func TestReceiptLinkedCreditSplitsInventoryAndCOGS(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	grID := f.gr.ID

	cn := f.postCredit(t, CreateInput{
		SupplierID: f.supplier, Kind: domain.CreditKindReceiptLinked, GoodsReceiptID: &grID,
		Total: money.Dual{USD: dec("20"), LBP: dec("1790000")}, ExchangeRate: dec("89500"), CreditDate: time.Now().UTC(),
	})
	require.Equal(t, domain.CreditStatusPosted, cn.Status)

	// Equal line values: 10 USD each. Line 1 is 40% on hand -> inv 4 / cogs 6; line 2
	// fully on hand -> inv 10 / cogs 0.
	allocs, err := f.repo.ListAllocations(ctx, cn.ID)
	require.NoError(t, err)
	require.Len(t, allocs, 2)
	var sumInv, sumCogs decimal.Decimal
	for _, a := range allocs {
		sumInv = sumInv.Add(dec(a.InventoryUSD))
		sumCogs = sumCogs.Add(dec(a.CogsUSD))
	}
	require.True(t, sumInv.Equal(dec("14")), "inventory portion: got %s", sumInv)
	require.True(t, sumCogs.Equal(dec("6")), "cogs portion: got %s", sumCogs)

	// GL: Dr AP 20 / Cr INVENTORY 14 / Cr COGS 6.
	journal, err := f.glTx.FindJournalBySource(ctx, companyID, "supplier_credit_note", cn.ID)
	require.NoError(t, err)
	require.NotNil(t, journal)
	entries, err := f.glTx.ListEntries(ctx, journal.ID)
	require.NoError(t, err)
	for _, e := range entries {
		switch e.AccountID {
		case f.accounts[companydomain.RoleAP]:
			require.True(t, dec(e.DebitUSD).Equal(dec("20")))
		case f.accounts[companydomain.RoleInventory]:
			require.True(t, dec(e.CreditUSD).Equal(dec("14")))
		case f.accounts[companydomain.RoleCOGS]:
			require.True(t, dec(e.CreditUSD).Equal(dec("6")))
		}
	}

	// The inventory portion was folded out of the moving averages, floored at zero.
	costA, err := f.batchTx.GetItemWarehouseCost(ctx, f.itemA, f.wh)
	require.NoError(t, err)
	require.True(t, dec(costA.AvgCostUSD).Equal(dec("4")), "itemA avg: got %s", costA.AvgCostUSD) // 5 - 4/4

	costB, err := f.batchTx.GetItemWarehouseCost(ctx, f.itemB, f.wh)
	require.NoError(t, err)
	require.True(t, dec(costB.AvgCostUSD).Equal(dec("4")), "itemB avg: got %s", costB.AvgCostUSD) // 5 - 10/10

	// Cancel restores the averages and reverses the journal.
	cn, err = f.svc.Cancel(ctx, f.db, f.repo, f.batchTx, f.glTx, companyID, cn.ID, time.Now().UTC(), "duplicate")
	require.NoError(t, err)
	require.Equal(t, domain.CreditStatusCancelled, cn.Status)

	rev, err := f.glTx.FindJournalBySource(ctx, companyID, "supplier_credit_note_cancel", cn.ID)
	require.NoError(t, err)
	require.NotNil(t, rev)

	costA, err = f.batchTx.GetItemWarehouseCost(ctx, f.itemA, f.wh)
	require.NoError(t, err)
	require.True(t, dec(costA.AvgCostUSD).Equal(dec("5")), "itemA avg after cancel: got %s", costA.AvgCostUSD)
}

func TestExpenseCreditBooksAgainstExpenseFallback(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// PURCHASE_REBATES is deliberately unmapped; the credit falls back to
	// PURCHASES_EXPENSE.
	cn := f.postCredit(t, CreateInput{
		SupplierID: f.supplier, Kind: domain.CreditKindExpense,
		Total: money.Dual{USD: dec("7"), LBP: dec("626500")}, ExchangeRate: dec("89500"), CreditDate: time.Now().UTC(),
	})

	journal, err := f.glTx.FindJournalBySource(ctx, companyID, "supplier_credit_note", cn.ID)
	require.NoError(t, err)
	entries, err := f.glTx.ListEntries(ctx, journal.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		if e.AccountID == f.accounts[companydomain.RolePurchasesExpense] {
			require.True(t, dec(e.CreditUSD).Equal(dec("7")))
		}
	}
}

func TestApplyRespectsCreditAndInvoiceBalances(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	grID := f.gr.ID
	cn := f.postCredit(t, CreateInput{
		SupplierID: f.supplier, Kind: domain.CreditKindReceiptLinked, GoodsReceiptID: &grID,
		Total: money.Dual{USD: dec("20"), LBP: dec("1790000")}, ExchangeRate: dec("89500"), CreditDate: now,
	})

	si := purchasingdomain.SupplierInvoice{
		ID: snowflake.ID(8001), CompanyID: companyID, SupplierID: f.supplier,
		Status: purchasingdomain.SIStatusPosted, DocSubtype: purchasingdomain.DocSubtypeStandard,
		ExchangeRate: "89500", InvoiceDate: now,
	}
	require.NoError(t, f.db.Create(&si).Error)
	require.NoError(t, f.db.Create(&purchasingdomain.SupplierInvoiceLine{
		ID: snowflake.ID(8002), SupplierInvoiceID: si.ID, ItemID: f.itemA, Qty: "3", UnitCostUSD: "5", UnitCostLBP: "447500",
	}).Error)

	// Invoice open balance is 15 USD; applying 16 fails on the invoice constraint.
	_, err := f.svc.Apply(ctx, f.repo, f.purchTx, companyID, cn.ID, ApplyInput{
		SupplierInvoiceID: si.ID, Amount: money.Dual{USD: dec("16"), LBP: dec("1432000")}, AppliedAt: now,
	})
	require.ErrorIs(t, err, domain.ErrExceedsInvoiceBalance)

	_, err = f.svc.Apply(ctx, f.repo, f.purchTx, companyID, cn.ID, ApplyInput{
		SupplierInvoiceID: si.ID, Amount: money.Dual{USD: dec("15"), LBP: dec("1342500")}, AppliedAt: now,
	})
	require.NoError(t, err)

	// Remaining credit is 5 USD; applying 6 more fails on the credit constraint.
	_, err = f.svc.Apply(ctx, f.repo, f.purchTx, companyID, cn.ID, ApplyInput{
		SupplierInvoiceID: si.ID, Amount: money.Dual{USD: dec("6"), LBP: dec("537000")}, AppliedAt: now,
	})
	require.ErrorIs(t, err, domain.ErrExceedsRemainingCredit)

	// A credit with applications refuses to cancel.
	_, err = f.svc.Cancel(ctx, f.db, f.repo, f.batchTx, f.glTx, companyID, cn.ID, now, "")
	require.ErrorIs(t, err, domain.ErrCreditHasApplications)
}
