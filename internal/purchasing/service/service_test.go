package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/baytretail/core/internal/accountdefaults"
	"github.com/baytretail/core/internal/apperr"
	auditdomain "github.com/baytretail/core/internal/audit/domain"
	auditrepo "github.com/baytretail/core/internal/audit/repository"
	auditservice "github.com/baytretail/core/internal/audit/service"
	batchdomain "github.com/baytretail/core/internal/batch/domain"
	batchrepo "github.com/baytretail/core/internal/batch/repository"
	batchservice "github.com/baytretail/core/internal/batch/service"
	catalogdomain "github.com/baytretail/core/internal/catalog/domain"
	companydomain "github.com/baytretail/core/internal/company/domain"
	companyrepo "github.com/baytretail/core/internal/company/repository"
	"github.com/baytretail/core/internal/config"
	"github.com/baytretail/core/internal/events"
	gldomain "github.com/baytretail/core/internal/gl/domain"
	glrepo "github.com/baytretail/core/internal/gl/repository"
	glservice "github.com/baytretail/core/internal/gl/service"
	inventoryservice "github.com/baytretail/core/internal/inventory/service"
	"github.com/baytretail/core/internal/money"
	"github.com/baytretail/core/internal/purchasing/domain"
	"github.com/baytretail/core/internal/purchasing/repository"
	"github.com/baytretail/core/internal/tenant"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const companyID = snowflake.ID(7)

type fixture struct {
	db       *gorm.DB
	svc      *Service
	repo     domain.Repository
	batchTx  batchdomain.Repository
	glTx     gldomain.Repository
	compRepo companydomain.Repository

	item     catalogdomain.Item
	supplier snowflake.ID
	wh       snowflake.ID
	accounts map[companydomain.AccountRoleCode]snowflake.ID
}

func setup(t *testing.T, matchCfg config.MatchConfig) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.PurchaseOrder{}, &domain.PurchaseOrderLine{},
		&domain.GoodsReceipt{}, &domain.GoodsReceiptLine{},
		&domain.SupplierInvoice{}, &domain.SupplierInvoiceLine{}, &domain.SupplierInvoiceImportLine{},
		&domain.SupplierPayment{}, &domain.PaymentMethodMapping{},
		&catalogdomain.Item{}, &catalogdomain.Warehouse{}, &catalogdomain.WarehouseLocation{}, &catalogdomain.TaxCode{},
		&batchdomain.Batch{}, &batchdomain.StockMove{}, &batchdomain.BatchCostLayer{},
		&batchdomain.ItemWarehouseCost{}, &batchdomain.InventoryCostAdjustment{},
		&gldomain.GlJournal{}, &gldomain.GlEntry{}, &gldomain.TaxLine{},
		&companydomain.Company{}, &companydomain.CompanyCoaAccount{}, &companydomain.CompanyAccountDefaults{},
		&tenant.PeriodLock{}, &events.Event{}, &auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	compRepo := companyrepo.New(db)
	auditSvc := auditservice.NewService(auditservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: auditrepo.Provide()})
	resolver := accountdefaults.New(compRepo, auditSvc, node)
	glSvc := glservice.New(glrepo.New(db), compRepo, resolver, node, zap.NewNop())
	batchSvc := batchservice.New(batchrepo.New(db), node, zap.NewNop())
	invSvc := inventoryservice.New(batchSvc, glSvc, resolver, node, zap.NewNop())
	outbox := events.NewOutbox()

	svc := New(repository.New(db), batchSvc, invSvc, glSvc, resolver,
		config.NewStaticMatchConfigHolder(matchCfg), outbox, auditSvc, node, zap.NewNop())

	f := &fixture{
		db: db, svc: svc,
		repo: repository.New(db), batchTx: batchrepo.New(db), glTx: glrepo.New(db), compRepo: compRepo,
		supplier: node.Generate(), wh: node.Generate(),
		accounts: map[companydomain.AccountRoleCode]snowflake.ID{},
	}

	ctx := context.Background()
	roles := []struct {
		role companydomain.AccountRoleCode
		code string
	}{
		{companydomain.RoleInventory, "1310"},
		{companydomain.RoleGRNI, "2120"},
		{companydomain.RoleAP, "2111"},
		{companydomain.RoleVATRecoverable, "1141"},
		{companydomain.RoleRounding, "5900"},
		{companydomain.RolePurchasesExpense, "6001"},
		{companydomain.RoleCash, "1011"},
	}
	for _, r := range roles {
		acct := companydomain.CompanyCoaAccount{
			ID: node.Generate(), CompanyID: companyID, Code: r.code, Name: string(r.role), Type: "asset", IsPostable: true,
		}
		require.NoError(t, compRepo.CreateCoaAccount(ctx, acct))
		require.NoError(t, compRepo.SetAccountDefault(ctx, companydomain.CompanyAccountDefaults{
			CompanyID: companyID, RoleCode: r.role, AccountID: acct.ID,
		}))
		f.accounts[r.role] = acct.ID
	}

	f.item = catalogdomain.Item{
		ID: node.Generate(), CompanyID: companyID, SKU: "MILK-1L", Name: "Whole Milk 1L",
		UnitOfMeasure: "EA", TrackBatches: true, PrimaryTaxCode: "", Active: true,
	}
	require.NoError(t, db.Create(&f.item).Error)
	require.NoError(t, db.Create(&catalogdomain.Warehouse{ID: f.wh, CompanyID: companyID, Code: "MAIN", Name: "Main", Active: true}).Error)
	require.NoError(t, db.Create(&catalogdomain.TaxCode{ID: node.Generate(), CompanyID: companyID, Code: "VAT11", Name: "VAT 11%", Rate: "0.11", Active: true}).Error)
	require.NoError(t, db.Create(&domain.PaymentMethodMapping{CompanyID: companyID, PaymentMethod: "cash", AccountID: f.accounts[companydomain.RoleCash]}).Error)

	return f
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// receivedInvoice walks one order through PO submit, receipt posting, and an invoice
// draft at the given unit cost, returning the posted receipt and the draft invoice.
func (f *fixture) receivedInvoice(t *testing.T, qtyOrdered, qtyReceived string, poCost, invCost money.Dual, invQty string) (*domain.GoodsReceipt, *domain.SupplierInvoice) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	po, err := f.svc.CreatePO(ctx, f.repo, companyID, f.supplier, now, dec("89500"), []CreatePOLine{
		{ItemID: f.item.ID, Qty: dec(qtyOrdered), UnitCost: poCost},
	})
	require.NoError(t, err)
	_, err = f.svc.SubmitPO(ctx, f.db, f.repo, companyID, po.ID)
	require.NoError(t, err)

	poLines, err := f.repo.ListPurchaseOrderLines(ctx, po.ID)
	require.NoError(t, err)
	poLineID := poLines[0].ID

	gr, err := f.svc.CreateReceiptDraft(ctx, f.repo, companyID, &po.ID, f.supplier, f.wh, now, dec("89500"), []ReceiveGoodsLine{
		{PurchaseOrderLineID: &poLineID, ItemID: f.item.ID, BatchNo: "B1", Qty: dec(qtyReceived), UnitCost: poCost},
	})
	require.NoError(t, err)
	gr, _, err = f.svc.PostGoodsReceipt(ctx, f.db, f.repo, f.batchTx, f.glTx, f.compRepo, companyID, gr.ID, nil)
	require.NoError(t, err)

	grLines, err := f.repo.ListGoodsReceiptLines(ctx, gr.ID)
	require.NoError(t, err)
	grLineID := grLines[0].ID

	si, err := f.svc.CreateSupplierInvoice(ctx, f.repo, companyID, f.supplier, &gr.ID, "", domain.DocSubtypeStandard, "VAT11", now, dec("89500"), []CreateInvoiceLine{
		{GoodsReceiptLineID: &grLineID, ItemID: f.item.ID, Qty: dec(invQty), UnitCost: invCost},
	})
	require.NoError(t, err)
	return gr, si
}

func TestHappyPathPOThroughInvoice(t *testing.T) {
	f := setup(t, config.DefaultMatchConfig())
	ctx := context.Background()
	cost := money.Dual{USD: dec("10"), LBP: dec("895000")}

	gr, si := f.receivedInvoice(t, "5", "5", cost, cost, "5")
	require.NotEmpty(t, gr.ReceiptNo)

	// Receipt emitted exactly one inbound move and one cost layer.
	moves, err := f.batchTx.ListStockMovesBySource(ctx, companyID, "goods_receipt", gr.ID)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	require.True(t, dec(moves[0].QtyIn).Equal(dec("5")))

	// Receipt journal: Dr INVENTORY / Cr GRNI for 50 USD.
	grJournal, err := f.glTx.FindJournalBySource(ctx, companyID, "goods_receipt", gr.ID)
	require.NoError(t, err)
	require.NotNil(t, grJournal)

	// Posting the receipt again returns the same journal, no new moves.
	_, again, err := f.svc.PostGoodsReceipt(ctx, f.db, f.repo, f.batchTx, f.glTx, f.compRepo, companyID, gr.ID, nil)
	require.NoError(t, err)
	require.Equal(t, grJournal.ID, again.ID)
	moves, err = f.batchTx.ListStockMovesBySource(ctx, companyID, "goods_receipt", gr.ID)
	require.NoError(t, err)
	require.Len(t, moves, 1)

	posted, journal, err := f.svc.PostInvoice(ctx, f.db, f.repo, f.glTx, f.compRepo, companyID, si.ID, nil, nil)
	require.NoError(t, err)
	require.Equal(t, domain.SIStatusPosted, posted.Status)

	entries, err := f.glTx.ListEntries(ctx, journal.ID)
	require.NoError(t, err)

	var sumDebitUSD, sumCreditUSD, sumDebitLBP, sumCreditLBP decimal.Decimal
	var apCreditUSD, vatDebitLBP decimal.Decimal
	for _, e := range entries {
		sumDebitUSD = sumDebitUSD.Add(dec(e.DebitUSD))
		sumCreditUSD = sumCreditUSD.Add(dec(e.CreditUSD))
		sumDebitLBP = sumDebitLBP.Add(dec(e.DebitLBP))
		sumCreditLBP = sumCreditLBP.Add(dec(e.CreditLBP))
		if e.AccountID == f.accounts[companydomain.RoleAP] {
			apCreditUSD = dec(e.CreditUSD)
		}
		if e.AccountID == f.accounts[companydomain.RoleVATRecoverable] {
			vatDebitLBP = dec(e.DebitLBP)
		}
	}
	require.True(t, sumDebitUSD.Equal(sumCreditUSD), "USD must balance")
	require.True(t, sumDebitLBP.Equal(sumCreditLBP), "LBP must balance")
	// tax_lbp = 5 x 895000 x 0.11 = 492250; tax_usd = 492250 / 89500 = 5.5
	require.True(t, vatDebitLBP.Equal(dec("492250")))
	require.True(t, apCreditUSD.Equal(dec("55.5")))

	taxLines, err := f.glTx.ListTaxLines(ctx, companyID, "supplier_invoice", si.ID)
	require.NoError(t, err)
	require.Len(t, taxLines, 1)
	require.True(t, dec(taxLines[0].TaxLBP).Equal(dec("492250")))

	// purchase.invoiced landed in the outbox.
	var ev events.Event
	require.NoError(t, f.db.Where("id = ?", "si_invoiced_"+si.ID.String()).First(&ev).Error)
	require.Equal(t, events.TypePurchaseInvoiced, ev.EventType)
}

func TestUnitCostVarianceHoldsInvoiceAndRepostStillFails(t *testing.T) {
	cfg := config.DefaultMatchConfig()
	cfg.AbsUSDThreshold = dec("2")
	f := setup(t, cfg)
	ctx := context.Background()

	poCost := money.Dual{USD: dec("10"), LBP: dec("895000")}
	invCost := money.Dual{USD: dec("12.5"), LBP: dec("1118750")}
	_, si := f.receivedInvoice(t, "5", "5", poCost, invCost, "5")

	_, _, err := f.svc.PostInvoice(ctx, f.db, f.repo, f.glTx, f.compRepo, companyID, si.ID, nil, nil)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindConflict))

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	flags := appErr.Details["flags"].([]map[string]any)
	require.Len(t, flags, 1)
	require.Equal(t, "unit_cost_variance", flags[0]["kind"])
	require.Equal(t, "10", flags[0]["expected"])
	require.Equal(t, "12.5", flags[0]["actual"])

	held, err := f.repo.GetSupplierInvoice(ctx, companyID, si.ID)
	require.NoError(t, err)
	require.True(t, held.IsOnHold)
	require.Equal(t, domain.SIStatusOnHold, held.Status)

	// No journal was created for the held invoice.
	j, err := f.glTx.FindJournalBySource(ctx, companyID, "supplier_invoice", si.ID)
	require.NoError(t, err)
	require.Nil(t, j)

	// Unhold without fixing the data: the next post trips the same flag.
	require.NoError(t, f.svc.Unhold(ctx, f.db, f.repo, companyID, si.ID))
	_, _, err = f.svc.PostInvoice(ctx, f.db, f.repo, f.glTx, f.compRepo, companyID, si.ID, nil, nil)
	require.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestOverInvoicedQtyHoldsInvoice(t *testing.T) {
	f := setup(t, config.DefaultMatchConfig())
	ctx := context.Background()
	cost := money.Dual{USD: dec("10"), LBP: dec("895000")}

	_, si := f.receivedInvoice(t, "5", "5", cost, cost, "6")
	_, _, err := f.svc.PostInvoice(ctx, f.db, f.repo, f.glTx, f.compRepo, companyID, si.ID, nil, nil)
	require.True(t, apperr.Is(err, apperr.KindConflict))

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	flags := appErr.Details["flags"].([]map[string]any)
	require.Equal(t, "qty_exceeds_received", flags[0]["kind"])
}

func TestOpeningBalanceInvoicePostsAgainstEquity(t *testing.T) {
	f := setup(t, config.DefaultMatchConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	si, err := f.svc.CreateSupplierInvoice(ctx, f.repo, companyID, f.supplier, nil, "OB-1", domain.DocSubtypeOpeningBalance, "", now, dec("89500"), []CreateInvoiceLine{
		{ItemID: f.item.ID, Qty: dec("1"), UnitCost: money.Dual{USD: dec("1200"), LBP: dec("107400000")}},
	})
	require.NoError(t, err)

	_, journal, err := f.svc.PostInvoice(ctx, f.db, f.repo, f.glTx, f.compRepo, companyID, si.ID, nil, nil)
	require.NoError(t, err)

	entries, err := f.glTx.ListEntries(ctx, journal.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		if e.AccountID == f.accounts[companydomain.RoleAP] {
			require.True(t, dec(e.CreditUSD).Equal(dec("1200")))
		} else {
			// The synthetic 1099 opening-balance equity account, healed on demand.
			require.True(t, dec(e.DebitUSD).Equal(dec("1200")))
		}
	}

	// No tax on an opening balance document.
	taxLines, err := f.glTx.ListTaxLines(ctx, companyID, "supplier_invoice", si.ID)
	require.NoError(t, err)
	require.Empty(t, taxLines)
}

func TestOpeningBalanceRejectsReceiptLinkAndTax(t *testing.T) {
	f := setup(t, config.DefaultMatchConfig())
	grID := snowflake.ID(99)
	_, err := f.svc.CreateSupplierInvoice(context.Background(), f.repo, companyID, f.supplier, &grID, "", domain.DocSubtypeOpeningBalance, "", time.Now().UTC(), dec("0"), []CreateInvoiceLine{
		{ItemID: f.item.ID, Qty: dec("1"), UnitCost: money.Dual{USD: dec("1")}},
	})
	require.ErrorIs(t, err, domain.ErrSIOpeningBalance)
}

func TestCancelInvoiceThenReceipt(t *testing.T) {
	f := setup(t, config.DefaultMatchConfig())
	ctx := context.Background()
	cost := money.Dual{USD: dec("10"), LBP: dec("895000")}
	now := time.Now().UTC()

	gr, si := f.receivedInvoice(t, "5", "5", cost, cost, "5")
	_, _, err := f.svc.PostInvoice(ctx, f.db, f.repo, f.glTx, f.compRepo, companyID, si.ID, nil, nil)
	require.NoError(t, err)

	// Receipt cancel is blocked while a live invoice references it.
	_, err = f.svc.CancelGoodsReceipt(ctx, f.db, f.repo, f.batchTx, f.glTx, companyID, gr.ID, now)
	require.ErrorIs(t, err, domain.ErrGRHasInvoices)

	cancelled, err := f.svc.CancelInvoice(ctx, f.db, f.repo, f.glTx, companyID, si.ID, now, "wrong supplier")
	require.NoError(t, err)
	require.Equal(t, domain.SIStatusCancelled, cancelled.Status)

	// Invoice reversal exists and tax lines net to zero.
	rev, err := f.glTx.FindJournalBySource(ctx, companyID, "supplier_invoice_cancel", si.ID)
	require.NoError(t, err)
	require.NotNil(t, rev)
	orig, err := f.glTx.ListTaxLines(ctx, companyID, "supplier_invoice", si.ID)
	require.NoError(t, err)
	neg, err := f.glTx.ListTaxLines(ctx, companyID, "supplier_invoice_cancel", si.ID)
	require.NoError(t, err)
	require.Len(t, neg, len(orig))
	require.True(t, dec(orig[0].TaxLBP).Add(dec(neg[0].TaxLBP)).IsZero())

	// Now the receipt can cancel: opposite moves, layers gone, GL reversed.
	_, err = f.svc.CancelGoodsReceipt(ctx, f.db, f.repo, f.batchTx, f.glTx, companyID, gr.ID, now)
	require.NoError(t, err)

	reversedMoves, err := f.batchTx.ListStockMovesBySource(ctx, companyID, "goods_receipt_cancel", gr.ID)
	require.NoError(t, err)
	require.Len(t, reversedMoves, 1)
	require.True(t, dec(reversedMoves[0].QtyOut).Equal(dec("5")))

	var layerCount int64
	require.NoError(t, f.db.Model(&batchdomain.BatchCostLayer{}).
		Where("source_type = ? AND source_id = ?", "goods_receipt", gr.ID).Count(&layerCount).Error)
	require.Zero(t, layerCount)

	grRev, err := f.glTx.FindJournalBySource(ctx, companyID, "goods_receipt_cancel", gr.ID)
	require.NoError(t, err)
	require.NotNil(t, grRev)
}

func TestCancelPostedInvoiceBlockedByPayments(t *testing.T) {
	f := setup(t, config.DefaultMatchConfig())
	ctx := context.Background()
	cost := money.Dual{USD: dec("10"), LBP: dec("895000")}
	now := time.Now().UTC()

	_, si := f.receivedInvoice(t, "5", "5", cost, cost, "5")
	_, _, err := f.svc.PostInvoice(ctx, f.db, f.repo, f.glTx, f.compRepo, companyID, si.ID, nil, nil)
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(ctx, f.db, f.repo, f.glTx, f.compRepo, companyID, si.ID, "cash",
		money.Dual{USD: dec("30"), LBP: dec("2685000")}, now)
	require.NoError(t, err)

	after, err := f.repo.GetSupplierInvoice(ctx, companyID, si.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SIStatusPartiallyPaid, after.Status)

	_, err = f.svc.CancelInvoice(ctx, f.db, f.repo, f.glTx, companyID, si.ID, now, "")
	require.ErrorIs(t, err, domain.ErrSIHasPayments)

	// Overpaying the remainder is rejected.
	_, err = f.svc.RecordPayment(ctx, f.db, f.repo, f.glTx, f.compRepo, companyID, si.ID, "cash",
		money.Dual{USD: dec("100"), LBP: dec("0")}, now)
	require.ErrorIs(t, err, domain.ErrSIOverpaid)
}

func TestPostBlockedByPeriodLock(t *testing.T) {
	f := setup(t, config.DefaultMatchConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, f.db.Create(&tenant.PeriodLock{
		ID: 1, CompanyID: companyID, Start: now.AddDate(0, 0, -1), End: now.AddDate(0, 0, 1), Locked: true,
	}).Error)

	cost := money.Dual{USD: dec("10"), LBP: dec("895000")}
	po, err := f.svc.CreatePO(ctx, f.repo, companyID, f.supplier, now, dec("89500"), []CreatePOLine{
		{ItemID: f.item.ID, Qty: dec("5"), UnitCost: cost},
	})
	require.NoError(t, err)
	_, err = f.svc.SubmitPO(ctx, f.db, f.repo, companyID, po.ID)
	require.NoError(t, err)

	gr, err := f.svc.DraftReceiptFromPO(ctx, f.repo, companyID, po.ID, f.wh, now)
	require.NoError(t, err)
	_, _, err = f.svc.PostGoodsReceipt(ctx, f.db, f.repo, f.batchTx, f.glTx, f.compRepo, companyID, gr.ID, nil)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindPrecondition))
}

func TestDraftReceiptFromPOCarriesOnlyRemainingQty(t *testing.T) {
	f := setup(t, config.DefaultMatchConfig())
	ctx := context.Background()
	now := time.Now().UTC()
	cost := money.Dual{USD: dec("4"), LBP: dec("358000")}

	po, err := f.svc.CreatePO(ctx, f.repo, companyID, f.supplier, now, dec("89500"), []CreatePOLine{
		{ItemID: f.item.ID, Qty: dec("10"), UnitCost: cost},
	})
	require.NoError(t, err)
	submitted, err := f.svc.SubmitPO(ctx, f.db, f.repo, companyID, po.ID)
	require.NoError(t, err)
	require.NotEmpty(t, submitted.OrderNo)

	poLines, err := f.repo.ListPurchaseOrderLines(ctx, po.ID)
	require.NoError(t, err)
	poLineID := poLines[0].ID

	first, err := f.svc.CreateReceiptDraft(ctx, f.repo, companyID, &po.ID, f.supplier, f.wh, now, dec("89500"), []ReceiveGoodsLine{
		{PurchaseOrderLineID: &poLineID, ItemID: f.item.ID, BatchNo: "B1", Qty: dec("6"), UnitCost: cost},
	})
	require.NoError(t, err)
	_, _, err = f.svc.PostGoodsReceipt(ctx, f.db, f.repo, f.batchTx, f.glTx, f.compRepo, companyID, first.ID, nil)
	require.NoError(t, err)

	poAfter, err := f.repo.GetPurchaseOrder(ctx, companyID, po.ID)
	require.NoError(t, err)
	require.Equal(t, domain.POStatusPartiallyReceived, poAfter.Status)

	second, err := f.svc.DraftReceiptFromPO(ctx, f.repo, companyID, po.ID, f.wh, now)
	require.NoError(t, err)
	lines, err := f.repo.ListGoodsReceiptLines(ctx, second.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.True(t, dec(lines[0].Qty).Equal(dec("4")))
}
