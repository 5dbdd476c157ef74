// Package service implements the inventory mutator: adjust, transfer, cycle count,
// expiry write-off, and opening-stock import. Every operation asserts the accounting period
// for its move date is open before writing any move or journal.
package service

import (
	"context"
	"time"

	"github.com/baytretail/core/internal/accountdefaults"
	batchdomain "github.com/baytretail/core/internal/batch/domain"
	batchservice "github.com/baytretail/core/internal/batch/service"
	catalogdomain "github.com/baytretail/core/internal/catalog/domain"
	companydomain "github.com/baytretail/core/internal/company/domain"
	gldomain "github.com/baytretail/core/internal/gl/domain"
	glservice "github.com/baytretail/core/internal/gl/service"
	"github.com/baytretail/core/internal/money"
	"github.com/baytretail/core/internal/tenant"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	batch     *batchservice.Service
	gl        *glservice.Service
	resolver  *accountdefaults.Resolver
	genID     *snowflake.Node
	log       *zap.Logger
}

func New(batch *batchservice.Service, gl *glservice.Service, resolver *accountdefaults.Resolver, genID *snowflake.Node, log *zap.Logger) *Service {
	return &Service{batch: batch, gl: gl, resolver: resolver, genID: genID, log: log.Named("inventory.service")}
}

// MoveInput describes a single-warehouse adjustment. QtyDelta is positive for an inbound
// move and negative for an outbound one; exactly one of qty_in/qty_out ends up non-zero.
type MoveInput struct {
	CompanyID   snowflake.ID
	Item        catalogdomain.Item
	WarehouseID snowflake.ID
	LocationID  *snowflake.ID
	BatchID     *snowflake.ID
	QtyDelta    decimal.Decimal
	UnitCost    money.Dual
	MoveDate    time.Time
	SourceType  string
	SourceID    snowflake.ID
	// SourceLineID keys the cost layer when one source document carries several inbound
	// lines; defaults to SourceID for single-line sources.
	SourceLineID snowflake.ID
}

// Adjust records a single inbound or outbound move and folds it into the moving average.
// It never posts GL itself — callers that need a GL side (cycle count, write-off) post it
// themselves after deciding the delta is material enough to book.
func (s *Service) Adjust(ctx context.Context, tx *gorm.DB, batchTx batchdomain.Repository, in MoveInput) error {
	if in.QtyDelta.IsZero() {
		return batchdomain.ErrZeroQty
	}
	if in.Item.TrackBatches && in.BatchID == nil {
		return batchdomain.ErrBatchContextRequired
	}
	if err := tenant.AssertPeriodOpen(ctx, tx, in.CompanyID, in.MoveDate); err != nil {
		return err
	}

	move := batchdomain.StockMove{
		ID:          s.genID.Generate(),
		CompanyID:   in.CompanyID,
		ItemID:      in.Item.ID,
		WarehouseID: in.WarehouseID,
		LocationID:  in.LocationID,
		BatchID:     in.BatchID,
		UnitCostUSD: money.QUSD(in.UnitCost.USD).String(),
		UnitCostLBP: money.QLBP(in.UnitCost.LBP).String(),
		MoveDate:    in.MoveDate,
		SourceType:  in.SourceType,
		SourceID:    in.SourceID,
	}
	if in.QtyDelta.IsPositive() {
		move.QtyIn = in.QtyDelta.String()
	} else {
		move.QtyOut = in.QtyDelta.Neg().String()
	}
	if err := batchTx.CreateStockMove(ctx, move); err != nil {
		return err
	}

	if in.QtyDelta.IsPositive() {
		sourceLineID := in.SourceLineID
		if sourceLineID == 0 {
			sourceLineID = in.SourceID
		}
		return s.batch.RecordReceipt(ctx, batchTx, batchservice.ReceiptLineInput{
			CompanyID: in.CompanyID, ItemID: in.Item.ID, WarehouseID: in.WarehouseID, LocationID: in.LocationID,
			BatchID: derefID(in.BatchID), SourceType: in.SourceType, SourceID: in.SourceID, SourceLineID: sourceLineID,
			Qty: in.QtyDelta, UnitCost: in.UnitCost,
		})
	}
	return s.batch.ApplyOutbound(ctx, batchTx, in.Item.ID, in.WarehouseID, in.QtyDelta.Neg())
}

// TransferInput moves qty from one warehouse to another, FEFO-allocating the outbound leg.
type TransferInput struct {
	CompanyID     snowflake.ID
	Item          catalogdomain.Item
	FromWarehouse snowflake.ID
	ToWarehouse   snowflake.ID
	Qty           decimal.Decimal
	MoveDate      time.Time
	SourceID      snowflake.ID
}

func (s *Service) Transfer(ctx context.Context, tx *gorm.DB, batchTx batchdomain.Repository, in TransferInput) error {
	if in.Qty.IsZero() || in.Qty.IsNegative() {
		return batchdomain.ErrZeroQty
	}
	if err := tenant.AssertPeriodOpen(ctx, tx, in.CompanyID, in.MoveDate); err != nil {
		return err
	}

	allocations, err := s.batch.AllocateFEFO(ctx, batchTx, in.CompanyID, in.FromWarehouse, in.Item, in.Qty, 0)
	if err != nil {
		return err
	}

	for _, a := range allocations {
		if err := s.Adjust(ctx, tx, batchTx, MoveInput{
			CompanyID: in.CompanyID, Item: in.Item, WarehouseID: in.FromWarehouse, BatchID: a.BatchID,
			QtyDelta: a.Qty.Neg(), MoveDate: in.MoveDate, SourceType: "transfer", SourceID: in.SourceID,
		}); err != nil {
			return err
		}
		if err := s.Adjust(ctx, tx, batchTx, MoveInput{
			CompanyID: in.CompanyID, Item: in.Item, WarehouseID: in.ToWarehouse, BatchID: a.BatchID,
			QtyDelta: a.Qty, MoveDate: in.MoveDate, SourceType: "transfer", SourceID: in.SourceID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// CycleCount compares a physical count against the recorded on-hand qty for (item,
// warehouse, batch) and emits the compensating in/out move. GL is posted only when the
// diff is non-zero.
func (s *Service) CycleCount(ctx context.Context, tx *gorm.DB, batchTx batchdomain.Repository, glTx gldomain.Repository, companies companydomain.Repository, companyID snowflake.ID, item catalogdomain.Item, warehouseID snowflake.ID, batchID *snowflake.ID, countedQty decimal.Decimal, currentOnHand decimal.Decimal, unitCost money.Dual, moveDate time.Time, sourceID snowflake.ID) error {
	diff := countedQty.Sub(currentOnHand)
	if diff.IsZero() {
		return nil
	}
	if err := s.Adjust(ctx, tx, batchTx, MoveInput{
		CompanyID: companyID, Item: item, WarehouseID: warehouseID, BatchID: batchID,
		QtyDelta: diff, UnitCost: unitCost, MoveDate: moveDate, SourceType: "cycle_count", SourceID: sourceID,
	}); err != nil {
		return err
	}

	value := money.Dual{USD: diff.Mul(unitCost.USD), LBP: diff.Mul(unitCost.LBP)}
	invAdj, err := s.resolver.Resolve(ctx, tx, companies, companyID, companydomain.RoleInvAdj)
	if err != nil {
		return err
	}
	inventory, err := s.resolver.Resolve(ctx, tx, companies, companyID, companydomain.RoleInventory)
	if err != nil {
		return err
	}

	lines := balancedPair(invAdj.ID, inventory.ID, value, diff.IsPositive())
	_, err = s.gl.Post(ctx, tx, glTx, companies, glservice.PostInput{
		CompanyID: companyID, DocType: "CC", SourceType: "cycle_count", SourceID: sourceID,
		JournalDate: moveDate, RateType: companydomain.RateTypeOfficial, ExchangeRate: decimal.Zero,
		Memo: "cycle count adjustment", Lines: lines,
	})
	return err
}

// ExpiryWriteOff writes off qty as shrinkage: Dr SHRINKAGE/INV_ADJ, Cr INVENTORY.
func (s *Service) ExpiryWriteOff(ctx context.Context, tx *gorm.DB, batchTx batchdomain.Repository, glTx gldomain.Repository, companies companydomain.Repository, companyID snowflake.ID, item catalogdomain.Item, warehouseID snowflake.ID, batchID snowflake.ID, qty decimal.Decimal, unitCost money.Dual, moveDate time.Time, sourceID snowflake.ID) error {
	if qty.IsZero() || qty.IsNegative() {
		return batchdomain.ErrZeroQty
	}
	if err := s.Adjust(ctx, tx, batchTx, MoveInput{
		CompanyID: companyID, Item: item, WarehouseID: warehouseID, BatchID: &batchID,
		QtyDelta: qty.Neg(), UnitCost: unitCost, MoveDate: moveDate, SourceType: "expiry_writeoff", SourceID: sourceID,
	}); err != nil {
		return err
	}

	shrinkage, err := s.resolver.Resolve(ctx, tx, companies, companyID, companydomain.RoleShrinkage)
	if err != nil {
		return err
	}
	inventory, err := s.resolver.Resolve(ctx, tx, companies, companyID, companydomain.RoleInventory)
	if err != nil {
		return err
	}

	value := money.Dual{USD: qty.Mul(unitCost.USD), LBP: qty.Mul(unitCost.LBP)}
	lines := []glservice.EntryLine{
		{AccountID: shrinkage.ID, DebitUSD: money.QUSD(value.USD), DebitLBP: money.QLBP(value.LBP), Memo: "expiry write-off"},
		{AccountID: inventory.ID, CreditUSD: money.QUSD(value.USD), CreditLBP: money.QLBP(value.LBP), Memo: "expiry write-off"},
	}
	_, err = s.gl.Post(ctx, tx, glTx, companies, glservice.PostInput{
		CompanyID: companyID, DocType: "WO", SourceType: "expiry_writeoff", SourceID: sourceID,
		JournalDate: moveDate, RateType: companydomain.RateTypeOfficial, ExchangeRate: decimal.Zero,
		Memo: "expiry write-off", Lines: lines,
	})
	return err
}

// OpeningStockLine is one line of an opening-stock import.
type OpeningStockLine struct {
	Item        catalogdomain.Item
	WarehouseID snowflake.ID
	BatchID     *snowflake.ID
	Qty         decimal.Decimal
	UnitCost    money.Dual
}

// OpeningStockImport writes one inbound move per line and one offsetting journal against
// OPENING_STOCK, idempotent by importID: replaying an already-applied import returns
// alreadyApplied=true and writes nothing new.
func (s *Service) OpeningStockImport(ctx context.Context, tx *gorm.DB, batchTx batchdomain.Repository, glTx gldomain.Repository, companies companydomain.Repository, companyID snowflake.ID, importID snowflake.ID, moveDate time.Time, lines []OpeningStockLine) (alreadyApplied bool, err error) {
	if existing, err := glTx.FindJournalBySource(ctx, companyID, "opening_stock_import", importID); err != nil {
		return false, err
	} else if existing != nil {
		return true, nil
	}

	if err := tenant.AssertPeriodOpen(ctx, tx, companyID, moveDate); err != nil {
		return false, err
	}

	opening, err := s.resolver.Resolve(ctx, tx, companies, companyID, companydomain.RoleOpeningStock)
	if err != nil {
		return false, err
	}
	inventory, err := s.resolver.Resolve(ctx, tx, companies, companyID, companydomain.RoleInventory)
	if err != nil {
		return false, err
	}

	var totalUSD, totalLBP decimal.Decimal
	for _, l := range lines {
		if err := s.Adjust(ctx, tx, batchTx, MoveInput{
			CompanyID: companyID, Item: l.Item, WarehouseID: l.WarehouseID, BatchID: l.BatchID,
			QtyDelta: l.Qty, UnitCost: l.UnitCost, MoveDate: moveDate,
			SourceType: "opening_stock_import", SourceID: importID, SourceLineID: s.genID.Generate(),
		}); err != nil {
			return false, err
		}
		totalUSD = totalUSD.Add(l.Qty.Mul(l.UnitCost.USD))
		totalLBP = totalLBP.Add(l.Qty.Mul(l.UnitCost.LBP))
	}
	if len(lines) == 0 {
		return false, nil
	}

	glLines := []glservice.EntryLine{
		{AccountID: inventory.ID, DebitUSD: money.QUSD(totalUSD), DebitLBP: money.QLBP(totalLBP), Memo: "opening stock"},
		{AccountID: opening.ID, CreditUSD: money.QUSD(totalUSD), CreditLBP: money.QLBP(totalLBP), Memo: "opening stock"},
	}
	_, err = s.gl.Post(ctx, tx, glTx, companies, glservice.PostInput{
		CompanyID: companyID, DocType: "OSI", SourceType: "opening_stock_import", SourceID: importID,
		JournalDate: moveDate, RateType: companydomain.RateTypeOfficial, ExchangeRate: decimal.Zero,
		Memo: "opening stock import", Lines: glLines,
	})
	return false, err
}

func balancedPair(debitAccount, creditAccount snowflake.ID, value money.Dual, debitIsPositive bool) []glservice.EntryLine {
	usd, lbp := money.QUSD(value.USD.Abs()), money.QLBP(value.LBP.Abs())
	if debitIsPositive {
		return []glservice.EntryLine{
			{AccountID: creditAccount, DebitUSD: usd, DebitLBP: lbp},
			{AccountID: debitAccount, CreditUSD: usd, CreditLBP: lbp},
		}
	}
	return []glservice.EntryLine{
		{AccountID: debitAccount, DebitUSD: usd, DebitLBP: lbp},
		{AccountID: creditAccount, CreditUSD: usd, CreditLBP: lbp},
	}
}

func derefID(id *snowflake.ID) snowflake.ID {
	if id == nil {
		return 0
	}
	return *id
}
