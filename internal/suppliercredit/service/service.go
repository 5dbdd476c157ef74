// Package service implements the supplier credit engine: expense and receipt-linked credit
// notes, their GL posting, their inventory cost-layer rollback, applications against posted
// invoices, and cancellation.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/baytretail/core/internal/accountdefaults"
	"github.com/baytretail/core/internal/apperr"
	batchdomain "github.com/baytretail/core/internal/batch/domain"
	batchservice "github.com/baytretail/core/internal/batch/service"
	companydomain "github.com/baytretail/core/internal/company/domain"
	"github.com/baytretail/core/internal/events"
	gldomain "github.com/baytretail/core/internal/gl/domain"
	glservice "github.com/baytretail/core/internal/gl/service"
	"github.com/baytretail/core/internal/money"
	purchasingdomain "github.com/baytretail/core/internal/purchasing/domain"
	"github.com/baytretail/core/internal/suppliercredit/domain"
	"github.com/baytretail/core/internal/tenant"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// applicationEpsilonUSD and applicationEpsilonLBP are the tolerances spec §4.9 allows when
// comparing an application amount against the remaining credit/invoice balance, absorbing
// the same kind of sub-unit rounding noise the AP 3-way match tolerates.
var (
	applicationEpsilonUSD = decimal.NewFromFloat(0.0001)
	applicationEpsilonLBP = decimal.NewFromFloat(0.01)
)

type Service struct {
	repo      domain.Repository
	batch     *batchservice.Service
	gl        *glservice.Service
	resolver  *accountdefaults.Resolver
	outbox    *events.Outbox
	genID     *snowflake.Node
	log       *zap.Logger
}

func New(repo domain.Repository, batch *batchservice.Service, gl *glservice.Service, resolver *accountdefaults.Resolver, outbox *events.Outbox, genID *snowflake.Node, log *zap.Logger) *Service {
	return &Service{repo: repo, batch: batch, gl: gl, resolver: resolver, outbox: outbox, genID: genID, log: log.Named("suppliercredit.service")}
}

// CreateInput describes a new draft credit note.
type CreateInput struct {
	SupplierID     snowflake.ID
	Kind           domain.CreditKind
	GoodsReceiptID *snowflake.ID
	CreditNo       string
	Total          money.Dual
	ExchangeRate   decimal.Decimal
	CreditDate     time.Time
	Memo           string
}

// Create persists a draft credit note. Receipt-linked credits record the referenced goods
// receipt now but don't allocate against its lines until Post, since allocation needs a
// point-in-time read of on-hand stock.
func (s *Service) Create(ctx context.Context, tx domain.Repository, companyID snowflake.ID, in CreateInput) (*domain.SupplierCreditNote, error) {
	if in.Kind == domain.CreditKindReceiptLinked && in.GoodsReceiptID == nil {
		return nil, domain.ErrGRRequired
	}

	cn := domain.SupplierCreditNote{
		ID:             s.genID.Generate(),
		CompanyID:      companyID,
		SupplierID:     in.SupplierID,
		Kind:           in.Kind,
		GoodsReceiptID: in.GoodsReceiptID,
		Status:         domain.CreditStatusDraft,
		CreditNo:       in.CreditNo,
		TotalUSD:       money.QUSD(in.Total.USD).String(),
		TotalLBP:       money.QLBP(in.Total.LBP).String(),
		ExchangeRate:   in.ExchangeRate.String(),
		CreditDate:     in.CreditDate,
		Memo:           in.Memo,
	}
	if err := tx.CreateCreditNote(ctx, cn); err != nil {
		return nil, err
	}
	return &cn, nil
}

// Post books a draft credit note's GL entries and, for a receipt-linked credit, allocates
// the total across the referenced goods receipt's lines and rolls back the moving average
// for the inventory-attributable portion.
func (s *Service) Post(ctx context.Context, gdb *gorm.DB, tx domain.Repository, purchasingTx purchasingdomain.Repository, batchTx batchdomain.Repository, glTx gldomain.Repository, companies companydomain.Repository, companyID, creditNoteID snowflake.ID) (*domain.SupplierCreditNote, error) {
	cn, err := tx.GetCreditNote(ctx, companyID, creditNoteID)
	if err != nil {
		return nil, err
	}
	if cn == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "supplier credit note %d not found", creditNoteID)
	}
	if cn.Status != domain.CreditStatusDraft {
		return nil, domain.ErrCreditNotDraft
	}
	if err := tenant.AssertPeriodOpen(ctx, gdb, companyID, cn.CreditDate); err != nil {
		return nil, err
	}

	totalUSD, _ := decimal.NewFromString(cn.TotalUSD)
	totalLBP, _ := decimal.NewFromString(cn.TotalLBP)

	ap, err := s.resolver.Resolve(ctx, gdb, companies, companyID, companydomain.RoleAP)
	if err != nil {
		return nil, err
	}
	glLines := []glservice.EntryLine{
		{AccountID: ap.ID, DebitUSD: money.QUSD(totalUSD), DebitLBP: money.QLBP(totalLBP), Memo: "supplier credit note"},
	}

	var allocations []domain.SupplierCreditAllocation
	switch cn.Kind {
	case domain.CreditKindExpense:
		rebate, err := s.resolveRebateOrExpense(ctx, gdb, companies, companyID)
		if err != nil {
			return nil, err
		}
		glLines = append(glLines, glservice.EntryLine{
			AccountID: rebate.ID, CreditUSD: money.QUSD(totalUSD), CreditLBP: money.QLBP(totalLBP), Memo: "supplier credit - expense",
		})

	case domain.CreditKindReceiptLinked:
		allocs, invUSD, invLBP, cogsUSD, cogsLBP, err := s.allocateReceiptLinked(ctx, purchasingTx, batchTx, companyID, *cn, totalUSD, totalLBP)
		if err != nil {
			return nil, err
		}
		allocations = allocs

		inventory, err := s.resolver.Resolve(ctx, gdb, companies, companyID, companydomain.RoleInventory)
		if err != nil {
			return nil, err
		}
		cogs, err := s.resolver.Resolve(ctx, gdb, companies, companyID, companydomain.RoleCOGS)
		if err != nil {
			return nil, err
		}
		glLines = append(glLines,
			glservice.EntryLine{AccountID: inventory.ID, CreditUSD: money.QUSD(invUSD), CreditLBP: money.QLBP(invLBP), Memo: "supplier credit - inventory"},
			glservice.EntryLine{AccountID: cogs.ID, CreditUSD: money.QUSD(cogsUSD), CreditLBP: money.QLBP(cogsLBP), Memo: "supplier credit - COGS"},
		)
	}

	journal, err := s.gl.Post(ctx, gdb, glTx, companies, glservice.PostInput{
		CompanyID: companyID, DocType: "SCN", SourceType: "supplier_credit_note", SourceID: cn.ID,
		JournalDate: cn.CreditDate, RateType: companydomain.RateTypeOfficial, ExchangeRate: decimal.RequireFromString(orZero(cn.ExchangeRate)),
		Memo: "supplier credit note", Lines: glLines,
	})
	if err != nil {
		return nil, err
	}

	if len(allocations) > 0 {
		if err := tx.CreateAllocations(ctx, allocations); err != nil {
			return nil, err
		}
		for _, a := range allocations {
			onHand, err := currentOnHand(ctx, batchTx, a.ItemID, a.WarehouseID)
			if err != nil {
				return nil, err
			}
			if onHand.IsZero() {
				continue
			}
			invUSD, _ := decimal.NewFromString(a.InventoryUSD)
			invLBP, _ := decimal.NewFromString(a.InventoryLBP)
			delta := money.Dual{USD: invUSD.Div(onHand), LBP: invLBP.Div(onHand)}
			if err := s.batch.ApplyCreditAdjustment(ctx, batchTx, companyID, a.ItemID, a.WarehouseID, "supplier_credit_note", cn.ID, delta); err != nil {
				return nil, err
			}
		}
		for _, a := range allocations {
			allocUSD, _ := decimal.NewFromString(a.AllocUSD)
			allocLBP, _ := decimal.NewFromString(a.AllocLBP)
			if err := s.batch.AddRebateToCostLayer(ctx, batchTx, companyID, "goods_receipt", *cn.GoodsReceiptID, a.GoodsReceiptLineID, money.Dual{USD: allocUSD, LBP: allocLBP}); err != nil {
				return nil, err
			}
		}
	}

	cn.Status = domain.CreditStatusPosted
	cn.JournalID = &journal.ID
	if err := tx.UpdateCreditNote(ctx, *cn); err != nil {
		return nil, err
	}

	if err := s.outbox.PublishTx(ctx, gdb, events.ToPublish{
		CompanyID: companyID, Type: events.TypeSupplierCreditPosted,
		Payload:   map[string]any{"supplier_credit_note_id": cn.ID.String(), "supplier_id": cn.SupplierID.String()},
		DedupeKey: "scn_posted_" + cn.ID.String(),
	}); err != nil {
		return nil, err
	}

	return cn, nil
}

// allocateReceiptLinked splits the credit note's total across the referenced goods
// receipt's lines, weighted by each line's monetary value (falling back to qty when a
// line's value is zero), and further splits each line's share into an inventory portion
// (scaled by its on-hand/sold ratio) and a COGS remainder.
func (s *Service) allocateReceiptLinked(ctx context.Context, purchasingTx purchasingdomain.Repository, batchTx batchdomain.Repository, companyID snowflake.ID, cn domain.SupplierCreditNote, totalUSD, totalLBP decimal.Decimal) ([]domain.SupplierCreditAllocation, decimal.Decimal, decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	if cn.GoodsReceiptID == nil {
		return nil, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, domain.ErrGRRequired
	}
	gr, err := purchasingTx.GetGoodsReceipt(ctx, companyID, *cn.GoodsReceiptID)
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	if gr == nil {
		return nil, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, apperr.Newf(apperr.KindNotFound, "goods receipt %d not found", *cn.GoodsReceiptID)
	}
	if gr.SupplierID != cn.SupplierID {
		return nil, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, domain.ErrGRSupplierMismatch
	}

	lines, err := purchasingTx.ListGoodsReceiptLines(ctx, gr.ID)
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	if len(lines) == 0 {
		return nil, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, domain.ErrGRNoLines
	}

	weights := make([]decimal.Decimal, len(lines))
	var totalWeight decimal.Decimal
	for i, l := range lines {
		qty, _ := decimal.NewFromString(l.Qty)
		costUSD, _ := decimal.NewFromString(l.UnitCostUSD)
		value := qty.Mul(costUSD)
		if value.IsZero() {
			value = qty
		}
		weights[i] = value
		totalWeight = totalWeight.Add(value)
	}

	allocations := make([]domain.SupplierCreditAllocation, 0, len(lines))
	var allocatedUSD, allocatedLBP, sumInvUSD, sumInvLBP, sumCogsUSD, sumCogsLBP decimal.Decimal
	for i, l := range lines {
		var allocUSD, allocLBP decimal.Decimal
		if i == len(lines)-1 {
			allocUSD = money.QUSD(totalUSD.Sub(allocatedUSD))
			allocLBP = money.QLBP(totalLBP.Sub(allocatedLBP))
		} else if totalWeight.IsZero() {
			allocUSD = decimal.Zero
			allocLBP = decimal.Zero
		} else {
			share := weights[i].Div(totalWeight)
			allocUSD = money.QUSD(totalUSD.Mul(share))
			allocLBP = money.QLBP(totalLBP.Mul(share))
		}
		allocatedUSD = allocatedUSD.Add(allocUSD)
		allocatedLBP = allocatedLBP.Add(allocLBP)

		ratio, batchID, err := s.onHandSoldRatio(ctx, batchTx, companyID, gr.WarehouseID, l)
		if err != nil {
			return nil, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, err
		}

		invUSD := money.QUSD(allocUSD.Mul(ratio))
		invLBP := money.QLBP(allocLBP.Mul(ratio))
		cogsUSD := allocUSD.Sub(invUSD)
		cogsLBP := allocLBP.Sub(invLBP)

		sumInvUSD = sumInvUSD.Add(invUSD)
		sumInvLBP = sumInvLBP.Add(invLBP)
		sumCogsUSD = sumCogsUSD.Add(cogsUSD)
		sumCogsLBP = sumCogsLBP.Add(cogsLBP)

		allocations = append(allocations, domain.SupplierCreditAllocation{
			ID: s.genID.Generate(), CreditNoteID: cn.ID, GoodsReceiptLineID: l.ID,
			ItemID: l.ItemID, WarehouseID: gr.WarehouseID, BatchID: batchID,
			AllocUSD: allocUSD.String(), AllocLBP: allocLBP.String(),
			InventoryUSD: invUSD.String(), InventoryLBP: invLBP.String(),
			CogsUSD: cogsUSD.String(), CogsLBP: cogsLBP.String(),
		})
	}

	return allocations, sumInvUSD, sumInvLBP, sumCogsUSD, sumCogsLBP, nil
}

// onHandSoldRatio resolves the fraction of a receipt line still on hand: via the line's
// batch when it has one, otherwise via the item's running on-hand qty at the warehouse.
func (s *Service) onHandSoldRatio(ctx context.Context, batchTx batchdomain.Repository, companyID snowflake.ID, warehouseID snowflake.ID, line purchasingdomain.GoodsReceiptLine) (decimal.Decimal, *snowflake.ID, error) {
	qty, _ := decimal.NewFromString(line.Qty)
	if qty.IsZero() {
		return decimal.Zero, nil, nil
	}

	if line.BatchNo != "" || line.ExpiryDate != nil {
		batch, err := batchTx.FindBatch(ctx, companyID, line.ItemID, line.BatchNo, line.ExpiryDate)
		if err != nil {
			return decimal.Zero, nil, err
		}
		if batch != nil {
			onHandStr, err := batchTx.GetBatchOnHand(ctx, batch.ID)
			if err != nil {
				return decimal.Zero, nil, err
			}
			onHand, _ := decimal.NewFromString(onHandStr)
			return clamp01(onHand.Div(qty)), &batch.ID, nil
		}
	}

	onHand, err := currentOnHand(ctx, batchTx, line.ItemID, warehouseID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	return clamp01(onHand.Div(qty)), nil, nil
}

func currentOnHand(ctx context.Context, batchTx batchdomain.Repository, itemID, warehouseID snowflake.ID) (decimal.Decimal, error) {
	cost, err := batchTx.GetItemWarehouseCost(ctx, itemID, warehouseID)
	if err != nil {
		return decimal.Zero, err
	}
	if cost == nil {
		return decimal.Zero, nil
	}
	onHand, _ := decimal.NewFromString(orZero(cost.OnHandQty))
	return onHand, nil
}

func clamp01(d decimal.Decimal) decimal.Decimal {
	if d.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return d
}

// resolveRebateOrExpense resolves PURCHASE_REBATES when an administrator has mapped it
// explicitly (it is not an auto-heal role, precisely so a site can choose to track supplier
// rebates separately) and falls back to PURCHASES_EXPENSE otherwise.
func (s *Service) resolveRebateOrExpense(ctx context.Context, gdb *gorm.DB, companies companydomain.Repository, companyID snowflake.ID) (*companydomain.CompanyCoaAccount, error) {
	account, err := s.resolver.Resolve(ctx, gdb, companies, companyID, companydomain.RolePurchaseRebates)
	if err == nil {
		return account, nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind == apperr.KindMissingConfig {
		return s.resolver.Resolve(ctx, gdb, companies, companyID, companydomain.RolePurchasesExpense)
	}
	return nil, err
}

// ApplyInput targets part (or all) of a posted credit note's remaining value at a specific
// posted supplier invoice from the same supplier.
type ApplyInput struct {
	SupplierInvoiceID snowflake.ID
	Amount            money.Dual
	AppliedAt         time.Time
}

// Apply reduces a posted invoice's open balance by amount without moving cash, subject to
// both the credit note's remaining balance and the invoice's own open balance.
func (s *Service) Apply(ctx context.Context, tx domain.Repository, purchasingTx purchasingdomain.Repository, companyID, creditNoteID snowflake.ID, in ApplyInput) (*domain.SupplierCreditApplication, error) {
	cn, err := tx.GetCreditNote(ctx, companyID, creditNoteID)
	if err != nil {
		return nil, err
	}
	if cn == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "supplier credit note %d not found", creditNoteID)
	}
	if cn.Status != domain.CreditStatusPosted {
		return nil, domain.ErrCreditNotPosted
	}

	si, err := purchasingTx.GetSupplierInvoice(ctx, companyID, in.SupplierInvoiceID)
	if err != nil {
		return nil, err
	}
	if si == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "supplier invoice %d not found", in.SupplierInvoiceID)
	}
	if si.SupplierID != cn.SupplierID {
		return nil, domain.ErrInvoiceSupplierMismatch
	}
	if si.Status != purchasingdomain.SIStatusPosted && si.Status != purchasingdomain.SIStatusPartiallyPaid {
		return nil, domain.ErrInvoiceNotPosted
	}

	remainingUSD, remainingLBP, err := s.remainingCredit(ctx, tx, *cn)
	if err != nil {
		return nil, err
	}
	if in.Amount.USD.GreaterThan(remainingUSD.Add(applicationEpsilonUSD)) || in.Amount.LBP.GreaterThan(remainingLBP.Add(applicationEpsilonLBP)) {
		return nil, domain.ErrExceedsRemainingCredit
	}

	openUSD, openLBP, err := s.invoiceOpenBalance(ctx, tx, purchasingTx, *si)
	if err != nil {
		return nil, err
	}
	if in.Amount.USD.GreaterThan(openUSD.Add(applicationEpsilonUSD)) || in.Amount.LBP.GreaterThan(openLBP.Add(applicationEpsilonLBP)) {
		return nil, domain.ErrExceedsInvoiceBalance
	}

	app := domain.SupplierCreditApplication{
		ID: s.genID.Generate(), CreditNoteID: cn.ID, SupplierInvoiceID: si.ID,
		AmountUSD: money.QUSD(in.Amount.USD).String(), AmountLBP: money.QLBP(in.Amount.LBP).String(),
		AppliedAt: in.AppliedAt,
	}
	if err := tx.CreateApplication(ctx, app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *Service) remainingCredit(ctx context.Context, tx domain.Repository, cn domain.SupplierCreditNote) (decimal.Decimal, decimal.Decimal, error) {
	totalUSD, _ := decimal.NewFromString(cn.TotalUSD)
	totalLBP, _ := decimal.NewFromString(cn.TotalLBP)
	appliedUSDStr, appliedLBPStr, err := tx.SumAppliedByCreditNote(ctx, cn.ID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	appliedUSD, _ := decimal.NewFromString(appliedUSDStr)
	appliedLBP, _ := decimal.NewFromString(appliedLBPStr)
	return totalUSD.Sub(appliedUSD), totalLBP.Sub(appliedLBP), nil
}

// invoiceOpenBalance derives the invoice total as purchasing's RecordPayment does (lines
// plus header tax, no tax on opening balances), then subtracts payments and prior credit
// applications.
func (s *Service) invoiceOpenBalance(ctx context.Context, tx domain.Repository, purchasingTx purchasingdomain.Repository, si purchasingdomain.SupplierInvoice) (decimal.Decimal, decimal.Decimal, error) {
	lines, err := purchasingTx.ListSupplierInvoiceLines(ctx, si.ID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	var totalUSD, totalLBP decimal.Decimal
	for _, l := range lines {
		qty, _ := decimal.NewFromString(l.Qty)
		costUSD, _ := decimal.NewFromString(l.UnitCostUSD)
		costLBP, _ := decimal.NewFromString(l.UnitCostLBP)
		totalUSD = totalUSD.Add(qty.Mul(costUSD))
		totalLBP = totalLBP.Add(qty.Mul(costLBP))
	}
	if si.DocSubtype != purchasingdomain.DocSubtypeOpeningBalance && si.TaxCode != "" {
		tc, err := purchasingTx.GetTaxCode(ctx, si.CompanyID, si.TaxCode)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		if tc == nil {
			return decimal.Zero, decimal.Zero, purchasingdomain.ErrUnknownTaxCode
		}
		rate, _ := decimal.NewFromString(tc.Rate)
		taxLBP := money.QLBP(totalLBP.Mul(rate))
		taxUSD := money.QUSD(totalUSD.Mul(rate))
		if er, _ := decimal.NewFromString(si.ExchangeRate); er.IsPositive() {
			taxUSD = money.QUSD(taxLBP.Div(er))
		}
		totalUSD, totalLBP = totalUSD.Add(taxUSD), totalLBP.Add(taxLBP)
	}

	payments, err := purchasingTx.ListPayments(ctx, si.ID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	var paidUSD, paidLBP decimal.Decimal
	for _, p := range payments {
		u, _ := decimal.NewFromString(p.AmountUSD)
		l, _ := decimal.NewFromString(p.AmountLBP)
		paidUSD = paidUSD.Add(u)
		paidLBP = paidLBP.Add(l)
	}

	appliedUSDStr, appliedLBPStr, err := tx.SumAppliedByInvoice(ctx, si.ID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	appliedUSD, _ := decimal.NewFromString(appliedUSDStr)
	appliedLBP, _ := decimal.NewFromString(appliedLBPStr)

	return totalUSD.Sub(paidUSD).Sub(appliedUSD), totalLBP.Sub(paidLBP).Sub(appliedLBP), nil
}

// Cancel reverses a posted credit note: refused if any applications exist (unwind those
// first), otherwise reverses the GL journal and any inventory cost-layer adjustments.
func (s *Service) Cancel(ctx context.Context, gdb *gorm.DB, tx domain.Repository, batchTx batchdomain.Repository, glTx gldomain.Repository, companyID, creditNoteID snowflake.ID, cancelDate time.Time, reason string) (*domain.SupplierCreditNote, error) {
	cn, err := tx.GetCreditNote(ctx, companyID, creditNoteID)
	if err != nil {
		return nil, err
	}
	if cn == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "supplier credit note %d not found", creditNoteID)
	}
	if cn.Status != domain.CreditStatusPosted {
		return nil, domain.ErrCreditNotPosted
	}

	apps, err := tx.ListApplications(ctx, cn.ID)
	if err != nil {
		return nil, err
	}
	if len(apps) > 0 {
		return nil, domain.ErrCreditHasApplications
	}

	if _, err := s.gl.Reverse(ctx, glTx, companyID, "supplier_credit_note", cn.ID, cancelDate, "cancel supplier credit note"); err != nil {
		return nil, err
	}

	if cn.Kind == domain.CreditKindReceiptLinked {
		if err := s.batch.ReverseCreditAdjustments(ctx, batchTx, companyID, "supplier_credit_note", cn.ID); err != nil {
			return nil, err
		}
		if cn.GoodsReceiptID != nil {
			allocations, err := tx.ListAllocations(ctx, cn.ID)
			if err != nil {
				return nil, err
			}
			for _, a := range allocations {
				allocUSD, _ := decimal.NewFromString(a.AllocUSD)
				allocLBP, _ := decimal.NewFromString(a.AllocLBP)
				if err := s.batch.AddRebateToCostLayer(ctx, batchTx, companyID, "goods_receipt", *cn.GoodsReceiptID, a.GoodsReceiptLineID, money.Dual{USD: allocUSD.Neg(), LBP: allocLBP.Neg()}); err != nil {
					return nil, err
				}
			}
		}
	}

	cn.Status = domain.CreditStatusCancelled
	cn.CancelDetails = datatypes.JSONMap{"reason": reason}
	if err := tx.UpdateCreditNote(ctx, *cn); err != nil {
		return nil, err
	}
	return cn, nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
