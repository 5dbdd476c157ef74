// Package service implements the purchasing state machine: PO lifecycle, goods receipt
// posting, AP 3-way match, invoice posting, and supplier payment.
package service

import (
	"context"
	"time"

	"github.com/baytretail/core/internal/accountdefaults"
	"github.com/baytretail/core/internal/apperr"
	auditdomain "github.com/baytretail/core/internal/audit/domain"
	batchdomain "github.com/baytretail/core/internal/batch/domain"
	batchservice "github.com/baytretail/core/internal/batch/service"
	companydomain "github.com/baytretail/core/internal/company/domain"
	"github.com/baytretail/core/internal/config"
	"github.com/baytretail/core/internal/events"
	gldomain "github.com/baytretail/core/internal/gl/domain"
	glservice "github.com/baytretail/core/internal/gl/service"
	inventoryservice "github.com/baytretail/core/internal/inventory/service"
	"github.com/baytretail/core/internal/money"
	"github.com/baytretail/core/internal/purchasing/domain"
	"github.com/baytretail/core/internal/tenant"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	repo      domain.Repository
	batch     *batchservice.Service
	inventory *inventoryservice.Service
	gl        *glservice.Service
	resolver  *accountdefaults.Resolver
	matchCfg  *config.MatchConfigHolder
	outbox    *events.Outbox
	audit     auditdomain.Service
	genID     *snowflake.Node
	log       *zap.Logger
}

func New(repo domain.Repository, batch *batchservice.Service, inventory *inventoryservice.Service, gl *glservice.Service, resolver *accountdefaults.Resolver, matchCfg *config.MatchConfigHolder, outbox *events.Outbox, audit auditdomain.Service, genID *snowflake.Node, log *zap.Logger) *Service {
	return &Service{repo: repo, batch: batch, inventory: inventory, gl: gl, resolver: resolver, matchCfg: matchCfg, outbox: outbox, audit: audit, genID: genID, log: log.Named("purchasing.service")}
}

// CreatePOLine is one requested item/qty/cost line of a new purchase order.
type CreatePOLine struct {
	ItemID   snowflake.ID
	Qty      decimal.Decimal
	UnitCost money.Dual
}

// CreatePO persists a draft purchase order with its lines.
func (s *Service) CreatePO(ctx context.Context, tx domain.Repository, companyID, supplierID snowflake.ID, orderDate time.Time, exchangeRate decimal.Decimal, lines []CreatePOLine) (*domain.PurchaseOrder, error) {
	if len(lines) == 0 {
		return nil, domain.ErrPONoLines
	}

	po := domain.PurchaseOrder{
		ID:           s.genID.Generate(),
		CompanyID:    companyID,
		SupplierID:   supplierID,
		Status:       domain.POStatusDraft,
		ExchangeRate: exchangeRate.String(),
		OrderDate:    orderDate,
	}
	poLines := make([]domain.PurchaseOrderLine, 0, len(lines))
	for _, l := range lines {
		poLines = append(poLines, domain.PurchaseOrderLine{
			ID:              s.genID.Generate(),
			PurchaseOrderID: po.ID,
			ItemID:          l.ItemID,
			Qty:             l.Qty.String(),
			UnitCostUSD:     money.QUSD(l.UnitCost.USD).String(),
			UnitCostLBP:     money.QLBP(l.UnitCost.LBP).String(),
		})
	}
	if err := tx.CreatePurchaseOrder(ctx, po, poLines); err != nil {
		return nil, err
	}
	return &po, nil
}

// SubmitPO moves a draft PO to submitted, assigning its PO- number and publishing
// purchase.ordered so downstream agents (AI reorder recommendations, supplier
// notifications) can react. Submitting an already-submitted PO returns it unchanged.
func (s *Service) SubmitPO(ctx context.Context, tx *gorm.DB, poTx domain.Repository, companyID, poID snowflake.ID) (*domain.PurchaseOrder, error) {
	po, err := poTx.GetPurchaseOrder(ctx, companyID, poID)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "purchase order %d not found", poID)
	}
	if po.Status != domain.POStatusDraft {
		if po.Status == domain.POStatusCancelled {
			return nil, domain.ErrPONotDraft
		}
		return po, nil
	}

	lines, err := poTx.ListPurchaseOrderLines(ctx, poID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.ErrPONoLines
	}

	if po.OrderNo == "" {
		no, err := poTx.NextOrderNo(ctx, companyID)
		if err != nil {
			return nil, err
		}
		po.OrderNo = no
	}
	po.Status = domain.POStatusSubmitted
	if err := poTx.UpdatePurchaseOrder(ctx, *po); err != nil {
		return nil, err
	}

	if err := s.outbox.PublishTx(ctx, tx, events.ToPublish{
		CompanyID: companyID, Type: events.TypePurchaseOrdered,
		Payload:   map[string]any{"purchase_order_id": poID.String(), "order_no": po.OrderNo},
		DedupeKey: "po_ordered_" + poID.String(),
	}); err != nil {
		return nil, err
	}
	return po, nil
}

// CancelPO cancels a draft or submitted PO. A PO that has already received stock cannot
// be cancelled; close it out by receiving the remainder or short-closing it manually.
func (s *Service) CancelPO(ctx context.Context, tx domain.Repository, companyID, poID snowflake.ID) error {
	po, err := tx.GetPurchaseOrder(ctx, companyID, poID)
	if err != nil {
		return err
	}
	if po == nil {
		return apperr.Newf(apperr.KindNotFound, "purchase order %d not found", poID)
	}
	if po.Status == domain.POStatusPartiallyReceived || po.Status == domain.POStatusReceived {
		return domain.ErrPONotDraft
	}
	return tx.UpdatePurchaseOrderStatus(ctx, poID, domain.POStatusCancelled)
}

// ReceiveGoodsLine is one line of a receipt draft: qty, landed unit cost, and optional
// batch context resolved at posting time.
type ReceiveGoodsLine struct {
	PurchaseOrderLineID *snowflake.ID
	ItemID              snowflake.ID
	LocationID          *snowflake.ID
	BatchNo             string
	ExpiryDate          *time.Time
	Qty                 decimal.Decimal
	UnitCost            money.Dual
}

// CreateReceiptDraft persists a draft goods receipt with explicit lines. No stock or GL
// side effects happen until PostGoodsReceipt.
func (s *Service) CreateReceiptDraft(ctx context.Context, poTx domain.Repository, companyID snowflake.ID, purchaseOrderID *snowflake.ID, supplierID, warehouseID snowflake.ID, receiptDate time.Time, exchangeRate decimal.Decimal, lines []ReceiveGoodsLine) (*domain.GoodsReceipt, error) {
	if len(lines) == 0 {
		return nil, domain.ErrGRNoLines
	}

	gr := domain.GoodsReceipt{
		ID:              s.genID.Generate(),
		CompanyID:       companyID,
		PurchaseOrderID: purchaseOrderID,
		SupplierID:      supplierID,
		WarehouseID:     warehouseID,
		Status:          domain.GRStatusDraft,
		ExchangeRate:    exchangeRate.String(),
		ReceiptDate:     receiptDate,
	}
	grLines := make([]domain.GoodsReceiptLine, 0, len(lines))
	for _, l := range lines {
		grLines = append(grLines, domain.GoodsReceiptLine{
			ID:                  s.genID.Generate(),
			GoodsReceiptID:      gr.ID,
			PurchaseOrderLineID: l.PurchaseOrderLineID,
			ItemID:              l.ItemID,
			LocationID:          l.LocationID,
			BatchNo:             l.BatchNo,
			ExpiryDate:          l.ExpiryDate,
			Qty:                 l.Qty.String(),
			UnitCostUSD:         money.QUSD(l.UnitCost.USD).String(),
			UnitCostLBP:         money.QLBP(l.UnitCost.LBP).String(),
		})
	}
	if err := poTx.CreateGoodsReceipt(ctx, gr, grLines); err != nil {
		return nil, err
	}
	return &gr, nil
}

// DraftReceiptFromPO builds a draft receipt carrying each PO line's remaining quantity
// (ordered minus already received across posted receipts) at the PO's unit costs.
func (s *Service) DraftReceiptFromPO(ctx context.Context, poTx domain.Repository, companyID, poID, warehouseID snowflake.ID, receiptDate time.Time) (*domain.GoodsReceipt, error) {
	po, err := poTx.GetPurchaseOrder(ctx, companyID, poID)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "purchase order %d not found", poID)
	}
	if po.Status != domain.POStatusSubmitted && po.Status != domain.POStatusPartiallyReceived {
		return nil, domain.ErrPONotSubmitted
	}

	poLines, err := poTx.ListPurchaseOrderLines(ctx, poID)
	if err != nil {
		return nil, err
	}

	var lines []ReceiveGoodsLine
	for _, l := range poLines {
		receivedStr, err := poTx.SumReceivedQty(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		remaining := parseDec(l.Qty).Sub(parseDec(receivedStr))
		if !remaining.IsPositive() {
			continue
		}
		lineID := l.ID
		lines = append(lines, ReceiveGoodsLine{
			PurchaseOrderLineID: &lineID,
			ItemID:              l.ItemID,
			Qty:                 remaining,
			UnitCost:            money.Dual{USD: parseDec(l.UnitCostUSD), LBP: parseDec(l.UnitCostLBP)},
		})
	}
	if len(lines) == 0 {
		return nil, domain.ErrGRNothingToReceive
	}

	return s.CreateReceiptDraft(ctx, poTx, companyID, &poID, po.SupplierID, warehouseID, receiptDate, parseDec(po.ExchangeRate), lines)
}

// PostGoodsReceipt posts a draft receipt: resolves/creates a batch per line, adjusts
// on-hand stock and the moving average, then books Dr INVENTORY / Cr GRNI for the total
// landed value. It never touches AP — that happens only when the matching supplier
// invoice posts. Posting an already-posted receipt is idempotent when its journal exists
// and a conflict when it does not (posted without artifacts means a previous attempt
// committed half, which the transaction boundary should have made impossible).
func (s *Service) PostGoodsReceipt(ctx context.Context, tx *gorm.DB, poTx domain.Repository, batchTx batchdomain.Repository, glTx gldomain.Repository, companies companydomain.Repository, companyID, grID snowflake.ID, postingDate *time.Time) (*domain.GoodsReceipt, *gldomain.GlJournal, error) {
	gr, err := poTx.GetGoodsReceipt(ctx, companyID, grID)
	if err != nil {
		return nil, nil, err
	}
	if gr == nil {
		return nil, nil, apperr.Newf(apperr.KindNotFound, "goods receipt %d not found", grID)
	}
	if gr.Status == domain.GRStatusPosted {
		journal, err := glTx.FindJournalBySource(ctx, companyID, "goods_receipt", grID)
		if err != nil {
			return nil, nil, err
		}
		if journal == nil {
			return nil, nil, domain.ErrGRArtifactsMissing
		}
		return gr, journal, nil
	}
	if gr.Status != domain.GRStatusDraft {
		return nil, nil, domain.ErrGRNotDraft
	}

	effectiveDate := gr.ReceiptDate
	if postingDate != nil {
		effectiveDate = *postingDate
	}
	if err := tenant.AssertPeriodOpen(ctx, tx, companyID, effectiveDate); err != nil {
		return nil, nil, err
	}

	lines, err := poTx.ListGoodsReceiptLines(ctx, grID)
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, nil, domain.ErrGRNoLines
	}

	supplierID := gr.SupplierID
	var totalUSD, totalLBP decimal.Decimal
	for _, l := range lines {
		item, err := poTx.GetItem(ctx, companyID, l.ItemID)
		if err != nil {
			return nil, nil, err
		}
		if item == nil {
			return nil, nil, apperr.Newf(apperr.KindNotFound, "item %d not found", l.ItemID)
		}

		if l.LocationID != nil {
			loc, err := poTx.GetWarehouseLocation(ctx, *l.LocationID)
			if err != nil {
				return nil, nil, err
			}
			if loc == nil || loc.WarehouseID != gr.WarehouseID || !loc.Active {
				return nil, nil, domain.ErrLocationInvalid
			}
		}

		batch, err := s.batch.Resolve(ctx, batchTx, batchservice.ResolveInput{
			CompanyID: companyID, Item: *item, BatchNo: l.BatchNo, ExpiryDate: l.ExpiryDate,
			ReceivedAt: effectiveDate, SourceType: "goods_receipt", SourceID: grID, SupplierID: &supplierID,
		})
		if err != nil {
			return nil, nil, err
		}

		var batchID *snowflake.ID
		if batch != nil {
			batchID = &batch.ID
		}
		qty := parseDec(l.Qty)
		unitCost := money.Dual{USD: parseDec(l.UnitCostUSD), LBP: parseDec(l.UnitCostLBP)}
		if err := s.inventory.Adjust(ctx, tx, batchTx, inventoryservice.MoveInput{
			CompanyID: companyID, Item: *item, WarehouseID: gr.WarehouseID, LocationID: l.LocationID, BatchID: batchID,
			QtyDelta: qty, UnitCost: unitCost, MoveDate: effectiveDate,
			SourceType: "goods_receipt", SourceID: grID, SourceLineID: l.ID,
		}); err != nil {
			return nil, nil, err
		}

		totalUSD = totalUSD.Add(qty.Mul(unitCost.USD))
		totalLBP = totalLBP.Add(qty.Mul(unitCost.LBP))
	}

	inventoryAcct, err := s.resolver.Resolve(ctx, tx, companies, companyID, companydomain.RoleInventory)
	if err != nil {
		return nil, nil, err
	}
	grni, err := s.resolver.Resolve(ctx, tx, companies, companyID, companydomain.RoleGRNI)
	if err != nil {
		return nil, nil, err
	}

	journal, err := s.gl.Post(ctx, tx, glTx, companies, glservice.PostInput{
		CompanyID: companyID, DocType: "GR", SourceType: "goods_receipt", SourceID: grID,
		JournalDate: effectiveDate, RateType: companydomain.RateTypeOfficial, ExchangeRate: parseDec(gr.ExchangeRate),
		Memo: "goods receipt",
		Lines: []glservice.EntryLine{
			{AccountID: inventoryAcct.ID, DebitUSD: money.QUSD(totalUSD), DebitLBP: money.QLBP(totalLBP), Memo: "goods receipt"},
			{AccountID: grni.ID, CreditUSD: money.QUSD(totalUSD), CreditLBP: money.QLBP(totalLBP), Memo: "goods receipt"},
		},
	})
	if err != nil {
		return nil, nil, err
	}

	if gr.ReceiptNo == "" {
		gr.ReceiptNo = journal.JournalNo
	}
	gr.Status = domain.GRStatusPosted
	if err := poTx.UpdateGoodsReceipt(ctx, *gr); err != nil {
		return nil, nil, err
	}

	if gr.PurchaseOrderID != nil {
		if err := s.updatePOReceiptStatus(ctx, poTx, *gr.PurchaseOrderID); err != nil {
			return nil, nil, err
		}
	}

	if err := s.outbox.PublishTx(ctx, tx, events.ToPublish{
		CompanyID: companyID, Type: events.TypePurchaseReceived,
		Payload:   map[string]any{"goods_receipt_id": grID.String(), "receipt_no": gr.ReceiptNo},
		DedupeKey: "gr_received_" + grID.String(),
	}); err != nil {
		return nil, nil, err
	}

	return gr, journal, nil
}

// CancelGoodsReceipt reverses a posted receipt: an equal-but-opposite stock move per
// original move, the GL reversal journal, and removal of the receipt's cost layers.
// Refused while any non-cancelled supplier invoice references the receipt.
func (s *Service) CancelGoodsReceipt(ctx context.Context, tx *gorm.DB, poTx domain.Repository, batchTx batchdomain.Repository, glTx gldomain.Repository, companyID, grID snowflake.ID, cancelDate time.Time) (*domain.GoodsReceipt, error) {
	gr, err := poTx.GetGoodsReceipt(ctx, companyID, grID)
	if err != nil {
		return nil, err
	}
	if gr == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "goods receipt %d not found", grID)
	}
	if gr.Status == domain.GRStatusCancelled {
		return gr, nil
	}
	if gr.Status != domain.GRStatusPosted {
		return nil, domain.ErrGRNotPosted
	}

	invoices, err := poTx.ListSupplierInvoicesByGoodsReceipt(ctx, grID)
	if err != nil {
		return nil, err
	}
	for _, si := range invoices {
		if si.Status != domain.SIStatusCancelled {
			return nil, domain.ErrGRHasInvoices
		}
	}

	if err := tenant.AssertPeriodOpen(ctx, tx, companyID, cancelDate); err != nil {
		return nil, err
	}

	moves, err := batchTx.ListStockMovesBySource(ctx, companyID, "goods_receipt", grID)
	if err != nil {
		return nil, err
	}
	for _, m := range moves {
		reversed := batchdomain.StockMove{
			ID:          s.genID.Generate(),
			CompanyID:   companyID,
			ItemID:      m.ItemID,
			WarehouseID: m.WarehouseID,
			LocationID:  m.LocationID,
			BatchID:     m.BatchID,
			QtyIn:       m.QtyOut,
			QtyOut:      m.QtyIn,
			UnitCostUSD: m.UnitCostUSD,
			UnitCostLBP: m.UnitCostLBP,
			MoveDate:    cancelDate,
			SourceType:  "goods_receipt_cancel",
			SourceID:    grID,
		}
		if err := batchTx.CreateStockMove(ctx, reversed); err != nil {
			return nil, err
		}
		if err := s.batch.ApplyOutbound(ctx, batchTx, m.ItemID, m.WarehouseID, parseDec(m.QtyIn)); err != nil {
			return nil, err
		}
	}

	if err := batchTx.DeleteCostLayersBySource(ctx, companyID, "goods_receipt", grID); err != nil {
		return nil, err
	}

	if _, err := s.gl.Reverse(ctx, glTx, companyID, "goods_receipt", grID, cancelDate, "goods receipt cancel"); err != nil {
		return nil, err
	}

	gr.Status = domain.GRStatusCancelled
	if err := poTx.UpdateGoodsReceipt(ctx, *gr); err != nil {
		return nil, err
	}
	if gr.PurchaseOrderID != nil {
		if err := s.updatePOReceiptStatus(ctx, poTx, *gr.PurchaseOrderID); err != nil {
			return nil, err
		}
	}

	grIDStr := grID.String()
	if err := s.audit.Record(ctx, tx, companyID, auditdomain.ActorTypeUser, nil, "goods_receipt_cancel", "goods_receipt", &grIDStr, nil); err != nil {
		return nil, err
	}
	return gr, nil
}

// updatePOReceiptStatus derives the PO's status from the fraction of each line's qty
// received so far: fully received only once every line is received in full.
func (s *Service) updatePOReceiptStatus(ctx context.Context, poTx domain.Repository, poID snowflake.ID) error {
	poLines, err := poTx.ListPurchaseOrderLines(ctx, poID)
	if err != nil {
		return err
	}

	fullyReceived := true
	anyReceived := false
	for _, l := range poLines {
		receivedStr, err := poTx.SumReceivedQty(ctx, l.ID)
		if err != nil {
			return err
		}
		received := parseDec(receivedStr)
		if received.GreaterThan(decimal.Zero) {
			anyReceived = true
		}
		if received.LessThan(parseDec(l.Qty)) {
			fullyReceived = false
		}
	}

	status := domain.POStatusSubmitted
	switch {
	case fullyReceived:
		status = domain.POStatusReceived
	case anyReceived:
		status = domain.POStatusPartiallyReceived
	}
	return poTx.UpdatePurchaseOrderStatus(ctx, poID, status)
}

// CreateInvoiceLine is one confirmed supplier invoice line, optionally linked to the
// goods receipt line it matches against.
type CreateInvoiceLine struct {
	GoodsReceiptLineID *snowflake.ID
	ItemID             snowflake.ID
	Qty                decimal.Decimal
	UnitCost           money.Dual
	TaxCode            string
}

// CreateSupplierInvoice persists a draft invoice and its lines.
func (s *Service) CreateSupplierInvoice(ctx context.Context, tx domain.Repository, companyID, supplierID snowflake.ID, goodsReceiptID *snowflake.ID, invoiceNo, docSubtype, taxCode string, invoiceDate time.Time, exchangeRate decimal.Decimal, lines []CreateInvoiceLine) (*domain.SupplierInvoice, error) {
	if len(lines) == 0 {
		return nil, domain.ErrSINoLines
	}
	if docSubtype == "" {
		docSubtype = domain.DocSubtypeStandard
	}
	if docSubtype == domain.DocSubtypeOpeningBalance && (goodsReceiptID != nil || taxCode != "") {
		return nil, domain.ErrSIOpeningBalance
	}

	si := domain.SupplierInvoice{
		ID:             s.genID.Generate(),
		CompanyID:      companyID,
		GoodsReceiptID: goodsReceiptID,
		InvoiceNo:      invoiceNo,
		SupplierID:     supplierID,
		Status:         domain.SIStatusDraft,
		DocSubtype:     docSubtype,
		TaxCode:        taxCode,
		ExchangeRate:   exchangeRate.String(),
		InvoiceDate:    invoiceDate,
	}
	if err := tx.CreateSupplierInvoice(ctx, si); err != nil {
		return nil, err
	}

	siLines := make([]domain.SupplierInvoiceLine, 0, len(lines))
	for _, l := range lines {
		siLines = append(siLines, domain.SupplierInvoiceLine{
			ID:                 s.genID.Generate(),
			SupplierInvoiceID:  si.ID,
			GoodsReceiptLineID: l.GoodsReceiptLineID,
			ItemID:             l.ItemID,
			Qty:                l.Qty.String(),
			UnitCostUSD:        money.QUSD(l.UnitCost.USD).String(),
			UnitCostLBP:        money.QLBP(l.UnitCost.LBP).String(),
			TaxCode:            l.TaxCode,
		})
	}
	if err := tx.CreateSupplierInvoiceLines(ctx, siLines); err != nil {
		return nil, err
	}
	return &si, nil
}

// DraftInvoiceFromReceipt builds a draft invoice carrying each receipt line's remaining
// quantity (received minus already invoiced across posted invoices) at the receipt's
// unit costs.
func (s *Service) DraftInvoiceFromReceipt(ctx context.Context, poTx domain.Repository, companyID, grID snowflake.ID, invoiceNo, taxCode string, invoiceDate time.Time) (*domain.SupplierInvoice, error) {
	gr, err := poTx.GetGoodsReceipt(ctx, companyID, grID)
	if err != nil {
		return nil, err
	}
	if gr == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "goods receipt %d not found", grID)
	}
	if gr.Status != domain.GRStatusPosted {
		return nil, domain.ErrSIReceiptNotPosted
	}

	grLines, err := poTx.ListGoodsReceiptLines(ctx, grID)
	if err != nil {
		return nil, err
	}

	var lines []CreateInvoiceLine
	for _, l := range grLines {
		invoicedStr, err := poTx.SumInvoicedQty(ctx, l.ID, 0)
		if err != nil {
			return nil, err
		}
		remaining := parseDec(l.Qty).Sub(parseDec(invoicedStr))
		if !remaining.IsPositive() {
			continue
		}
		lineID := l.ID
		lines = append(lines, CreateInvoiceLine{
			GoodsReceiptLineID: &lineID,
			ItemID:             l.ItemID,
			Qty:                remaining,
			UnitCost:           money.Dual{USD: parseDec(l.UnitCostUSD), LBP: parseDec(l.UnitCostLBP)},
		})
	}
	if len(lines) == 0 {
		return nil, domain.ErrSINothingToInvoice
	}

	return s.CreateSupplierInvoice(ctx, poTx, companyID, gr.SupplierID, &grID, invoiceNo, domain.DocSubtypeStandard, taxCode, invoiceDate, parseDec(gr.ExchangeRate), lines)
}

// matchInvoice runs the 3-way match for every receipt-linked invoice line and the
// invoice-level tax check, returning one structured flag per failed check. An invoice
// with no receipt link anywhere gets no per-line flags; the tax check still applies to it.
func (s *Service) matchInvoice(ctx context.Context, tx domain.Repository, companyID snowflake.ID, si *domain.SupplierInvoice, lines []domain.SupplierInvoiceLine) ([]map[string]any, error) {
	cfg := s.matchCfg.Get()
	var flags []map[string]any

	if si.GoodsReceiptID != nil {
		gr, err := tx.GetGoodsReceipt(ctx, companyID, *si.GoodsReceiptID)
		if err != nil {
			return nil, err
		}
		if gr == nil || gr.Status != domain.GRStatusPosted {
			return nil, domain.ErrSIReceiptNotPosted
		}
		if gr.SupplierID != si.SupplierID {
			return nil, domain.ErrSISupplierMismatch
		}
	}

	invoiceRate, err := s.taxRate(ctx, tx, companyID, si.TaxCode)
	if err != nil {
		return nil, err
	}

	var baseLBP, expectedTaxLBP decimal.Decimal
	taxCodeMismatches := 0

	for _, l := range lines {
		invQty := parseDec(l.Qty)
		invUSD := parseDec(l.UnitCostUSD)
		invLBP := parseDec(l.UnitCostLBP)
		lineLBP := invQty.Mul(invLBP)
		baseLBP = baseLBP.Add(lineLBP)

		effectiveRate := invoiceRate
		item, err := tx.GetItem(ctx, companyID, l.ItemID)
		if err != nil {
			return nil, err
		}
		if item != nil && item.PrimaryTaxCode != "" && item.PrimaryTaxCode != si.TaxCode {
			itemRate, err := s.taxRate(ctx, tx, companyID, item.PrimaryTaxCode)
			if err != nil {
				return nil, err
			}
			effectiveRate = itemRate
			taxCodeMismatches++
		}
		expectedTaxLBP = expectedTaxLBP.Add(lineLBP.Mul(effectiveRate))

		if l.GoodsReceiptLineID == nil {
			continue
		}
		grLine, err := tx.GetGoodsReceiptLine(ctx, *l.GoodsReceiptLineID)
		if err != nil {
			return nil, err
		}
		if grLine == nil {
			continue
		}

		// Over-invoicing: the cumulative invoiced qty across posted invoices plus this
		// one must not exceed the received qty.
		priorStr, err := tx.SumInvoicedQty(ctx, grLine.ID, si.ID)
		if err != nil {
			return nil, err
		}
		received := parseDec(grLine.Qty)
		cumulative := parseDec(priorStr).Add(invQty)
		if cumulative.GreaterThan(received.Add(cfg.QtyEpsilon)) {
			flags = append(flags, map[string]any{
				"kind":            "qty_exceeds_received",
				"invoice_line_id": l.ID.String(),
				"received":        received.String(),
				"invoiced":        cumulative.String(),
			})
			continue
		}

		// Unit-cost variance vs the PO unit cost, falling back to the receipt's own
		// unit cost for non-PO receipts.
		expectedUSD := parseDec(grLine.UnitCostUSD)
		expectedLBP := parseDec(grLine.UnitCostLBP)
		if grLine.PurchaseOrderLineID != nil {
			poLine, err := tx.GetPurchaseOrderLine(ctx, *grLine.PurchaseOrderLineID)
			if err != nil {
				return nil, err
			}
			if poLine != nil {
				expectedUSD = parseDec(poLine.UnitCostUSD)
				expectedLBP = parseDec(poLine.UnitCostLBP)
			}
		}

		if !expectedUSD.IsZero() || !invUSD.IsZero() {
			diffUSD := invUSD.Sub(expectedUSD).Abs()
			pct := relativeDiff(invUSD, expectedUSD)
			if diffUSD.GreaterThanOrEqual(cfg.AbsUSDThreshold) && pct.GreaterThanOrEqual(cfg.PctThreshold) {
				flags = append(flags, map[string]any{
					"kind":            "unit_cost_variance",
					"invoice_line_id": l.ID.String(),
					"expected":        expectedUSD.String(),
					"actual":          invUSD.String(),
					"pct":             pct.String(),
				})
			}
		} else if !expectedLBP.IsZero() || !invLBP.IsZero() {
			if invLBP.Sub(expectedLBP).Abs().GreaterThanOrEqual(cfg.AbsLBPThreshold) {
				flags = append(flags, map[string]any{
					"kind":            "unit_cost_variance",
					"invoice_line_id": l.ID.String(),
					"expected_lbp":    expectedLBP.String(),
					"actual_lbp":      invLBP.String(),
				})
			}
		}
	}

	// Tax variance: compare the tax implied by each item's own tax code against the tax
	// the invoice's header code yields. Only meaningful when at least one line's item
	// declares a different code.
	if taxCodeMismatches > 0 && baseLBP.IsPositive() {
		invoiceTaxLBP := baseLBP.Mul(invoiceRate)
		diff := expectedTaxLBP.Sub(invoiceTaxLBP).Abs()
		if diff.GreaterThanOrEqual(cfg.TaxDiffLBPThreshold) && diff.Div(baseLBP).GreaterThanOrEqual(cfg.TaxDiffPctThreshold) {
			flags = append(flags, map[string]any{
				"kind":         "tax_variance",
				"expected_lbp": money.QLBP(expectedTaxLBP).String(),
				"actual_lbp":   money.QLBP(invoiceTaxLBP).String(),
				"diff_lbp":     money.QLBP(diff).String(),
			})
		}
	}

	return flags, nil
}

// relativeDiff returns |a-b|/max(|a|,|b|), or zero when both are zero (nothing to compare).
func relativeDiff(a, b decimal.Decimal) decimal.Decimal {
	base := decimal.Max(a.Abs(), b.Abs())
	if base.IsZero() {
		return decimal.Zero
	}
	return a.Sub(b).Abs().Div(base)
}

// Hold manually parks an invoice outside the 3-way match (e.g. a supplier dispute).
func (s *Service) Hold(ctx context.Context, tx *gorm.DB, siTx domain.Repository, companyID, siID snowflake.ID, reason string) error {
	si, err := siTx.GetSupplierInvoice(ctx, companyID, siID)
	if err != nil {
		return err
	}
	if si == nil {
		return apperr.Newf(apperr.KindNotFound, "supplier invoice %d not found", siID)
	}
	si.Status = domain.SIStatusOnHold
	si.IsOnHold = true
	si.HoldReason = reason
	if err := siTx.UpdateSupplierInvoice(ctx, *si); err != nil {
		return err
	}
	siIDStr := siID.String()
	return s.audit.Record(ctx, tx, companyID, auditdomain.ActorTypeUser, nil, "supplier_invoice_hold", "supplier_invoice", &siIDStr, map[string]any{"reason": reason})
}

// Unhold releases a held invoice back to draft. It does not waive the 3-way match: the
// next post re-runs every check, so an unhold without fixing the underlying data fails
// the same way again.
func (s *Service) Unhold(ctx context.Context, tx *gorm.DB, siTx domain.Repository, companyID, siID snowflake.ID) error {
	si, err := siTx.GetSupplierInvoice(ctx, companyID, siID)
	if err != nil {
		return err
	}
	if si == nil {
		return apperr.Newf(apperr.KindNotFound, "supplier invoice %d not found", siID)
	}
	si.Status = domain.SIStatusDraft
	si.IsOnHold = false
	si.HoldReason = ""
	si.HoldDetails = nil
	if err := siTx.UpdateSupplierInvoice(ctx, *si); err != nil {
		return err
	}
	siIDStr := siID.String()
	return s.audit.Record(ctx, tx, companyID, auditdomain.ActorTypeUser, nil, "supplier_invoice_unhold", "supplier_invoice", &siIDStr, nil)
}

// PaymentInput is one inline payment submitted with an invoice post request.
type PaymentInput struct {
	Method string
	Amount money.Dual
	PaidAt time.Time
}

// PostInvoice books the AP side of a supplier invoice after running the 3-way match.
// Standard invoices debit GRNI at the invoice base, book recoverable VAT, and credit AP
// for the total. Direct invoices debit PURCHASES_EXPENSE instead; opening-balance
// invoices debit OPENING_BALANCE equity and carry no receipt link or tax. Any match flag
// holds the invoice and returns a conflict carrying the structured hold details.
func (s *Service) PostInvoice(ctx context.Context, tx *gorm.DB, siTx domain.Repository, glTx gldomain.Repository, companies companydomain.Repository, companyID, siID snowflake.ID, postingDate *time.Time, payments []PaymentInput) (*domain.SupplierInvoice, *gldomain.GlJournal, error) {
	si, err := siTx.GetSupplierInvoice(ctx, companyID, siID)
	if err != nil {
		return nil, nil, err
	}
	if si == nil {
		return nil, nil, apperr.Newf(apperr.KindNotFound, "supplier invoice %d not found", siID)
	}
	if si.IsOnHold {
		return nil, nil, domain.ErrSIOnHold
	}
	if si.Status != domain.SIStatusDraft && si.Status != domain.SIStatusMatched {
		return nil, nil, domain.ErrSIAlreadyPosted
	}
	if si.DocSubtype == domain.DocSubtypeOpeningBalance && (si.GoodsReceiptID != nil || si.TaxCode != "") {
		return nil, nil, domain.ErrSIOpeningBalance
	}

	effectiveDate := si.InvoiceDate
	if postingDate != nil {
		effectiveDate = *postingDate
	}
	if err := tenant.AssertPeriodOpen(ctx, tx, companyID, effectiveDate); err != nil {
		return nil, nil, err
	}

	if existing, err := glTx.FindJournalBySource(ctx, companyID, "supplier_invoice", siID); err != nil {
		return nil, nil, err
	} else if existing != nil {
		return nil, nil, domain.ErrSIAlreadyPosted
	}

	lines, err := siTx.ListSupplierInvoiceLines(ctx, siID)
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, nil, domain.ErrSINoLines
	}

	if si.DocSubtype == domain.DocSubtypeStandard {
		flags, err := s.matchInvoice(ctx, siTx, companyID, si, lines)
		if err != nil {
			return nil, nil, err
		}
		if len(flags) > 0 {
			si.Status = domain.SIStatusOnHold
			si.IsOnHold = true
			si.HoldReason = "3-way match variance exceeds tolerance"
			si.HoldDetails = datatypes.JSONMap{"flags": flags}
			if err := siTx.UpdateSupplierInvoice(ctx, *si); err != nil {
				return nil, nil, err
			}
			siIDStr := siID.String()
			if err := s.audit.Record(ctx, tx, companyID, auditdomain.ActorTypeSystem, nil, "supplier_invoice_variance_hold", "supplier_invoice", &siIDStr, map[string]any{"flags": flags}); err != nil {
				return nil, nil, err
			}
			return nil, nil, apperr.New(apperr.KindConflict, "supplier invoice held for 3-way match variance").
				WithDetails(map[string]any{"flags": flags})
		}
	}

	exchangeRate := parseDec(si.ExchangeRate)
	var invoiceUSD, invoiceLBP decimal.Decimal
	for _, l := range lines {
		qty := parseDec(l.Qty)
		invoiceUSD = invoiceUSD.Add(qty.Mul(parseDec(l.UnitCostUSD)))
		invoiceLBP = invoiceLBP.Add(qty.Mul(parseDec(l.UnitCostLBP)))
	}

	// Tax from the header code: the LBP side is primary (rates are published against
	// LBP-denominated bases in practice); the USD side derives through the document rate.
	var taxUSD, taxLBP decimal.Decimal
	if si.DocSubtype != domain.DocSubtypeOpeningBalance && si.TaxCode != "" {
		rate, err := s.taxRate(ctx, siTx, companyID, si.TaxCode)
		if err != nil {
			return nil, nil, err
		}
		taxLBP = money.QLBP(invoiceLBP.Mul(rate))
		if exchangeRate.IsPositive() {
			taxUSD = money.QUSD(taxLBP.Div(exchangeRate))
		} else {
			taxUSD = money.QUSD(invoiceUSD.Mul(rate))
		}
	}

	ap, err := s.resolver.Resolve(ctx, tx, companies, companyID, companydomain.RoleAP)
	if err != nil {
		return nil, nil, err
	}

	var glLines []glservice.EntryLine
	switch si.DocSubtype {
	case domain.DocSubtypeOpeningBalance:
		opening, err := s.resolver.Resolve(ctx, tx, companies, companyID, companydomain.RoleOpeningBalance)
		if err != nil {
			return nil, nil, err
		}
		glLines = append(glLines, glservice.EntryLine{
			AccountID: opening.ID, DebitUSD: money.QUSD(invoiceUSD), DebitLBP: money.QLBP(invoiceLBP), Memo: "opening balance",
		})
	case domain.DocSubtypeDirect:
		expense, err := s.resolver.Resolve(ctx, tx, companies, companyID, companydomain.RolePurchasesExpense)
		if err != nil {
			return nil, nil, err
		}
		glLines = append(glLines, glservice.EntryLine{
			AccountID: expense.ID, DebitUSD: money.QUSD(invoiceUSD), DebitLBP: money.QLBP(invoiceLBP), Memo: "direct supplier invoice",
		})
	default:
		// GRNI clears at the invoice's own base. Sub-tolerance cost drift against the
		// receipt has already passed the 3-way match and washes through the auto-balance
		// rounding line; anything larger never reaches this point.
		grni, err := s.resolver.Resolve(ctx, tx, companies, companyID, companydomain.RoleGRNI)
		if err != nil {
			return nil, nil, err
		}
		glLines = append(glLines, glservice.EntryLine{
			AccountID: grni.ID, DebitUSD: money.QUSD(invoiceUSD), DebitLBP: money.QLBP(invoiceLBP), Memo: "clear GRNI",
		})
	}

	if !taxUSD.IsZero() || !taxLBP.IsZero() {
		vat, err := s.resolver.Resolve(ctx, tx, companies, companyID, companydomain.RoleVATRecoverable)
		if err != nil {
			return nil, nil, err
		}
		glLines = append(glLines, glservice.EntryLine{
			AccountID: vat.ID, DebitUSD: taxUSD, DebitLBP: taxLBP, Memo: "recoverable VAT",
		})
	}

	glLines = append(glLines, glservice.EntryLine{
		AccountID: ap.ID,
		CreditUSD: money.QUSD(invoiceUSD.Add(taxUSD)), CreditLBP: money.QLBP(invoiceLBP.Add(taxLBP)),
		Memo: "supplier invoice",
	})

	journal, err := s.gl.Post(ctx, tx, glTx, companies, glservice.PostInput{
		CompanyID: companyID, DocType: "SI", SourceType: "supplier_invoice", SourceID: siID,
		JournalDate: effectiveDate, RateType: companydomain.RateTypeOfficial, ExchangeRate: exchangeRate,
		Memo: "supplier invoice", Lines: glLines,
	})
	if err != nil {
		return nil, nil, err
	}

	if !taxUSD.IsZero() || !taxLBP.IsZero() {
		if err := glTx.InsertTaxLine(ctx, gldomain.TaxLine{
			ID:         s.genID.Generate(),
			CompanyID:  companyID,
			SourceType: "supplier_invoice",
			SourceID:   siID,
			TaxCode:    si.TaxCode,
			BaseUSD:    money.QUSD(invoiceUSD).String(),
			BaseLBP:    money.QLBP(invoiceLBP).String(),
			TaxUSD:     taxUSD.String(),
			TaxLBP:     taxLBP.String(),
			TaxDate:    effectiveDate,
		}); err != nil {
			return nil, nil, err
		}
	}

	if si.InvoiceNo == "" {
		si.InvoiceNo = journal.JournalNo
	}
	si.Status = domain.SIStatusPosted
	if err := siTx.UpdateSupplierInvoice(ctx, *si); err != nil {
		return nil, nil, err
	}

	if err := s.outbox.PublishTx(ctx, tx, events.ToPublish{
		CompanyID: companyID, Type: events.TypePurchaseInvoiced,
		Payload:   map[string]any{"supplier_invoice_id": siID.String(), "invoice_no": si.InvoiceNo},
		DedupeKey: "si_invoiced_" + siID.String(),
	}); err != nil {
		return nil, nil, err
	}

	for _, p := range payments {
		if _, err := s.RecordPayment(ctx, tx, siTx, glTx, companies, companyID, siID, p.Method, p.Amount, p.PaidAt); err != nil {
			return nil, nil, err
		}
	}
	if len(payments) > 0 {
		refreshed, err := siTx.GetSupplierInvoice(ctx, companyID, siID)
		if err != nil {
			return nil, nil, err
		}
		si = refreshed
	}

	return si, journal, nil
}

// CancelInvoice reverses a posted invoice: a compensating journal plus negated tax
// lines. Refused while payments exist — void the payments first.
func (s *Service) CancelInvoice(ctx context.Context, tx *gorm.DB, siTx domain.Repository, glTx gldomain.Repository, companyID, siID snowflake.ID, cancelDate time.Time, reason string) (*domain.SupplierInvoice, error) {
	si, err := siTx.GetSupplierInvoice(ctx, companyID, siID)
	if err != nil {
		return nil, err
	}
	if si == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "supplier invoice %d not found", siID)
	}
	if si.Status == domain.SIStatusCancelled {
		return si, nil
	}
	if si.Status != domain.SIStatusPosted && si.Status != domain.SIStatusPartiallyPaid && si.Status != domain.SIStatusPaid {
		return nil, domain.ErrSINotPosted
	}

	payments, err := siTx.ListPayments(ctx, siID)
	if err != nil {
		return nil, err
	}
	if len(payments) > 0 {
		return nil, domain.ErrSIHasPayments
	}

	if err := tenant.AssertPeriodOpen(ctx, tx, companyID, cancelDate); err != nil {
		return nil, err
	}
	if _, err := s.gl.Reverse(ctx, glTx, companyID, "supplier_invoice", siID, cancelDate, "supplier invoice cancel"); err != nil {
		return nil, err
	}

	si.Status = domain.SIStatusCancelled
	if err := siTx.UpdateSupplierInvoice(ctx, *si); err != nil {
		return nil, err
	}
	siIDStr := siID.String()
	return si, s.audit.Record(ctx, tx, companyID, auditdomain.ActorTypeUser, nil, "supplier_invoice_cancel", "supplier_invoice", &siIDStr, map[string]any{"reason": reason})
}

// CancelDraftInvoice discards a draft invoice without side effects.
func (s *Service) CancelDraftInvoice(ctx context.Context, siTx domain.Repository, companyID, siID snowflake.ID) error {
	si, err := siTx.GetSupplierInvoice(ctx, companyID, siID)
	if err != nil {
		return err
	}
	if si == nil {
		return apperr.Newf(apperr.KindNotFound, "supplier invoice %d not found", siID)
	}
	if si.Status != domain.SIStatusDraft && si.Status != domain.SIStatusOnHold {
		return domain.ErrSIAlreadyPosted
	}
	si.Status = domain.SIStatusCancelled
	si.IsOnHold = false
	return siTx.UpdateSupplierInvoice(ctx, *si)
}

// RecordPayment books Dr AP / Cr CASH-or-BANK against a posted invoice's outstanding
// balance, resolving the credit account directly from PaymentMethodMapping rather than
// through the role resolver, since the mapping already names a concrete account.
func (s *Service) RecordPayment(ctx context.Context, tx *gorm.DB, siTx domain.Repository, glTx gldomain.Repository, companies companydomain.Repository, companyID, siID snowflake.ID, paymentMethod string, amount money.Dual, paidAt time.Time) (*domain.SupplierPayment, error) {
	si, err := siTx.GetSupplierInvoice(ctx, companyID, siID)
	if err != nil {
		return nil, err
	}
	if si == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "supplier invoice %d not found", siID)
	}
	if si.Status != domain.SIStatusPosted && si.Status != domain.SIStatusPartiallyPaid {
		return nil, domain.ErrSINotPosted
	}

	mapping, err := siTx.GetPaymentMethodMapping(ctx, companyID, paymentMethod)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		return nil, domain.ErrNoPaymentMapping
	}

	totalUSD, totalLBP, err := s.invoiceTotals(ctx, siTx, companyID, si)
	if err != nil {
		return nil, err
	}

	payments, err := siTx.ListPayments(ctx, siID)
	if err != nil {
		return nil, err
	}
	var paidUSD, paidLBP decimal.Decimal
	for _, p := range payments {
		paidUSD = paidUSD.Add(parseDec(p.AmountUSD))
		paidLBP = paidLBP.Add(parseDec(p.AmountLBP))
	}

	outstandingUSD := totalUSD.Sub(paidUSD)
	outstandingLBP := totalLBP.Sub(paidLBP)
	if amount.USD.GreaterThan(outstandingUSD.Add(decimal.NewFromFloat(0.0001))) ||
		amount.LBP.GreaterThan(outstandingLBP.Add(decimal.NewFromFloat(0.01))) {
		return nil, domain.ErrSIOverpaid
	}

	ap, err := s.resolver.Resolve(ctx, tx, companies, companyID, companydomain.RoleAP)
	if err != nil {
		return nil, err
	}

	payment := domain.SupplierPayment{
		ID:                s.genID.Generate(),
		CompanyID:         companyID,
		SupplierInvoiceID: siID,
		PaymentMethod:     paymentMethod,
		AmountUSD:         money.QUSD(amount.USD).String(),
		AmountLBP:         money.QLBP(amount.LBP).String(),
		PaidAt:            paidAt,
	}

	journal, err := s.gl.Post(ctx, tx, glTx, companies, glservice.PostInput{
		CompanyID: companyID, DocType: "PAY", SourceType: "supplier_payment", SourceID: payment.ID,
		JournalDate: paidAt, RateType: companydomain.RateTypeOfficial, ExchangeRate: parseDec(si.ExchangeRate),
		Memo: "supplier payment",
		Lines: []glservice.EntryLine{
			{AccountID: ap.ID, DebitUSD: money.QUSD(amount.USD), DebitLBP: money.QLBP(amount.LBP), Memo: "supplier payment"},
			{AccountID: mapping.AccountID, CreditUSD: money.QUSD(amount.USD), CreditLBP: money.QLBP(amount.LBP), Memo: "supplier payment"},
		},
	})
	if err != nil {
		return nil, err
	}
	payment.JournalID = &journal.ID

	if err := siTx.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	newPaidUSD := paidUSD.Add(amount.USD)
	newPaidLBP := paidLBP.Add(amount.LBP)
	if newPaidUSD.GreaterThanOrEqual(totalUSD) && newPaidLBP.GreaterThanOrEqual(totalLBP) {
		si.Status = domain.SIStatusPaid
	} else {
		si.Status = domain.SIStatusPartiallyPaid
	}
	if err := siTx.UpdateSupplierInvoice(ctx, *si); err != nil {
		return nil, err
	}

	return &payment, nil
}

// invoiceTotals sums an invoice's lines and adds header tax, the same figure posting
// credits AP for.
func (s *Service) invoiceTotals(ctx context.Context, siTx domain.Repository, companyID snowflake.ID, si *domain.SupplierInvoice) (decimal.Decimal, decimal.Decimal, error) {
	lines, err := siTx.ListSupplierInvoiceLines(ctx, si.ID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	var baseUSD, baseLBP decimal.Decimal
	for _, l := range lines {
		qty := parseDec(l.Qty)
		baseUSD = baseUSD.Add(qty.Mul(parseDec(l.UnitCostUSD)))
		baseLBP = baseLBP.Add(qty.Mul(parseDec(l.UnitCostLBP)))
	}

	if si.DocSubtype == domain.DocSubtypeOpeningBalance || si.TaxCode == "" {
		return baseUSD, baseLBP, nil
	}
	rate, err := s.taxRate(ctx, siTx, companyID, si.TaxCode)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	taxLBP := money.QLBP(baseLBP.Mul(rate))
	exchangeRate := parseDec(si.ExchangeRate)
	var taxUSD decimal.Decimal
	if exchangeRate.IsPositive() {
		taxUSD = money.QUSD(taxLBP.Div(exchangeRate))
	} else {
		taxUSD = money.QUSD(baseUSD.Mul(rate))
	}
	return baseUSD.Add(taxUSD), baseLBP.Add(taxLBP), nil
}

func (s *Service) taxRate(ctx context.Context, tx domain.Repository, companyID snowflake.ID, code string) (decimal.Decimal, error) {
	if code == "" {
		return decimal.Zero, nil
	}
	tc, err := tx.GetTaxCode(ctx, companyID, code)
	if err != nil {
		return decimal.Zero, err
	}
	if tc == nil {
		return decimal.Zero, domain.ErrUnknownTaxCode
	}
	return parseDec(tc.Rate), nil
}

func parseDec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
