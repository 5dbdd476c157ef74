// Package service implements batch resolution, FEFO allocation, cost-layer recording, and
// moving-average maintenance.
package service

import (
	"context"
	"time"

	"github.com/baytretail/core/internal/apperr"
	"github.com/baytretail/core/internal/batch/domain"
	catalogdomain "github.com/baytretail/core/internal/catalog/domain"
	"github.com/baytretail/core/internal/money"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service struct {
	repo  domain.Repository
	genID *snowflake.Node
	log   *zap.Logger
}

func New(repo domain.Repository, genID *snowflake.Node, log *zap.Logger) *Service {
	return &Service{repo: repo, genID: genID, log: log.Named("batch.service")}
}

// ResolveInput describes the batch context captured on a receiving line.
type ResolveInput struct {
	CompanyID  snowflake.ID
	Item       catalogdomain.Item
	BatchNo    string
	ExpiryDate *time.Time
	ReceivedAt time.Time
	SourceType string
	SourceID   snowflake.ID
	SupplierID *snowflake.ID
}

// Resolve finds or creates the batch for a (item, batch_no, expiry_date) triple, deriving
// expiry from the item's default shelf life when the item tracks expiry and none was given.
func (s *Service) Resolve(ctx context.Context, tx domain.Repository, in ResolveInput) (*domain.Batch, error) {
	if !in.Item.TrackBatches && !in.Item.TrackExpiry {
		return nil, nil
	}
	if in.Item.TrackBatches && in.BatchNo == "" && in.ExpiryDate == nil {
		return nil, domain.ErrBatchContextRequired
	}

	expiry := in.ExpiryDate
	if expiry == nil && in.Item.TrackExpiry && in.Item.DefaultShelfLifeDays != nil {
		derived := time.Now().UTC().AddDate(0, 0, *in.Item.DefaultShelfLifeDays)
		expiry = &derived
	}

	existing, err := tx.FindBatch(ctx, in.CompanyID, in.Item.ID, in.BatchNo, expiry)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	b := domain.Batch{
		ID:                 s.genID.Generate(),
		CompanyID:          in.CompanyID,
		ItemID:             in.Item.ID,
		BatchNo:            in.BatchNo,
		ExpiryDate:         expiry,
		Status:             domain.BatchStatusAvailable,
		ReceivedAt:         &in.ReceivedAt,
		ReceivedSourceType: in.SourceType,
		ReceivedSourceID:   &in.SourceID,
		ReceivedSupplierID: in.SupplierID,
	}
	return tx.CreateBatch(ctx, b)
}

// Allocation is one FEFO-selected batch slice satisfying part of a requested qty.
type Allocation struct {
	BatchID *snowflake.ID
	Qty     decimal.Decimal
}

// AllocateFEFO greedily consumes candidate batches oldest-expiry-first until qty is
// satisfied. When stock runs out: for untracked items the remainder is returned unbatched;
// for tracked items with allow_negative_stock the remainder folds into the last considered
// batch (or unbatched if there were no candidates at all); otherwise it fails.
func (s *Service) AllocateFEFO(ctx context.Context, tx domain.Repository, companyID, warehouseID snowflake.ID, item catalogdomain.Item, qty decimal.Decimal, minShelfLifeDays int) ([]Allocation, error) {
	if qty.IsZero() || qty.IsNegative() {
		return nil, apperr.New(apperr.KindValidation, "allocation qty must be positive")
	}

	var minExpiry *time.Time
	if minShelfLifeDays > 0 {
		d := time.Now().UTC().AddDate(0, 0, minShelfLifeDays)
		minExpiry = &d
	}

	if !item.TrackBatches {
		return []Allocation{{Qty: qty}}, nil
	}

	candidates, err := tx.CandidateBatches(ctx, companyID, item.ID, warehouseID, minExpiry)
	if err != nil {
		return nil, err
	}

	remaining := qty
	var out []Allocation
	var lastBatchID *snowflake.ID

	for _, c := range candidates {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		onHand, _ := decimal.NewFromString(c.OnHandQty)
		if onHand.LessThanOrEqual(decimal.Zero) {
			continue
		}
		take := decimal.Min(onHand, remaining)
		id := c.ID
		lastBatchID = &id
		out = append(out, Allocation{BatchID: &id, Qty: take})
		remaining = remaining.Sub(take)
	}

	if remaining.GreaterThan(decimal.Zero) {
		switch {
		case item.AllowNegativeStock && lastBatchID != nil:
			out = append(out, Allocation{BatchID: lastBatchID, Qty: remaining})
		case item.AllowNegativeStock:
			out = append(out, Allocation{Qty: remaining})
		default:
			return nil, domain.ErrInsufficientStock
		}
	}

	return out, nil
}

// ReceiptLineInput describes one inbound receipt line to cost-layer and moving-average.
type ReceiptLineInput struct {
	CompanyID         snowflake.ID
	ItemID            snowflake.ID
	WarehouseID       snowflake.ID
	LocationID        *snowflake.ID
	BatchID           snowflake.ID
	SourceType        string
	SourceID          snowflake.ID
	SourceLineID      snowflake.ID
	Qty               decimal.Decimal
	UnitCost          money.Dual
	LandedCostTotal   money.Dual
}

// RecordReceipt writes the cost layer for an inbound line (idempotent on the
// company/source/source_line key) and folds it into the moving average. An unbatched
// line (untracked item) carries no per-layer cost to trace, so only the average moves.
func (s *Service) RecordReceipt(ctx context.Context, tx domain.Repository, in ReceiptLineInput) error {
	if in.BatchID == 0 {
		return s.applyMovingAverage(ctx, tx, in.ItemID, in.WarehouseID, in.Qty, in.UnitCost)
	}
	layer := domain.BatchCostLayer{
		ID:                 s.genID.Generate(),
		CompanyID:          in.CompanyID,
		BatchID:            in.BatchID,
		WarehouseID:        in.WarehouseID,
		LocationID:         in.LocationID,
		SourceType:         in.SourceType,
		SourceID:           in.SourceID,
		SourceLineID:       in.SourceLineID,
		Qty:                in.Qty.String(),
		UnitCostUSD:        money.QUSD(in.UnitCost.USD).String(),
		UnitCostLBP:        money.QLBP(in.UnitCost.LBP).String(),
		LandedCostTotalUSD: money.QUSD(in.LandedCostTotal.USD).String(),
		LandedCostTotalLBP: money.QLBP(in.LandedCostTotal.LBP).String(),
	}
	if err := tx.UpsertCostLayer(ctx, layer); err != nil {
		return err
	}
	return s.applyMovingAverage(ctx, tx, in.ItemID, in.WarehouseID, in.Qty, in.UnitCost)
}

// ApplyOutbound folds an outbound move of qty into the moving average: only on_hand_qty
// shrinks and the average itself is unchanged, per the standard moving-average formula,
// since cost of goods sold uses the average at time of sale rather than recomputing it from
// the issue.
func (s *Service) ApplyOutbound(ctx context.Context, tx domain.Repository, itemID, warehouseID snowflake.ID, qty decimal.Decimal) error {
	return s.applyMovingAverage(ctx, tx, itemID, warehouseID, qty.Neg(), money.Zero())
}

// applyMovingAverage implements new_avg = (on_hand*avg + deltaQty*unitCost) / (on_hand +
// deltaQty) for inbound deltas (deltaQty > 0, unitCost meaningful); for outbound deltas
// (deltaQty < 0) only on_hand_qty shrinks and avg_cost is left unchanged.
func (s *Service) applyMovingAverage(ctx context.Context, tx domain.Repository, itemID, warehouseID snowflake.ID, deltaQty decimal.Decimal, unitCost money.Dual) error {
	current, err := tx.GetItemWarehouseCost(ctx, itemID, warehouseID)
	if err != nil {
		return err
	}
	if current == nil {
		current = &domain.ItemWarehouseCost{ItemID: itemID, WarehouseID: warehouseID}
	}

	onHand, _ := decimal.NewFromString(orZero(current.OnHandQty))
	avgUSD, _ := decimal.NewFromString(orZero(current.AvgCostUSD))
	avgLBP, _ := decimal.NewFromString(orZero(current.AvgCostLBP))

	newOnHand := onHand.Add(deltaQty)

	if deltaQty.IsPositive() && newOnHand.IsPositive() {
		avgUSD = onHand.Mul(avgUSD).Add(deltaQty.Mul(unitCost.USD)).Div(newOnHand)
		avgLBP = onHand.Mul(avgLBP).Add(deltaQty.Mul(unitCost.LBP)).Div(newOnHand)
	}

	current.OnHandQty = newOnHand.String()
	current.AvgCostUSD = money.QUSD(avgUSD).String()
	current.AvgCostLBP = money.QLBP(avgLBP).String()
	return tx.SaveItemWarehouseCost(ctx, *current)
}

// ApplyCreditAdjustment subtracts a best-effort delta from the running average (spec §4.9)
// and records it for exact reversal.
func (s *Service) ApplyCreditAdjustment(ctx context.Context, tx domain.Repository, companyID, itemID, warehouseID snowflake.ID, sourceType string, sourceID snowflake.ID, delta money.Dual) error {
	current, err := tx.GetItemWarehouseCost(ctx, itemID, warehouseID)
	if err != nil {
		return err
	}
	if current == nil {
		current = &domain.ItemWarehouseCost{ItemID: itemID, WarehouseID: warehouseID}
	}

	avgUSD, _ := decimal.NewFromString(orZero(current.AvgCostUSD))
	avgLBP, _ := decimal.NewFromString(orZero(current.AvgCostLBP))
	current.AvgCostUSD = money.QUSD(decimal.Max(decimal.Zero, avgUSD.Sub(delta.USD))).String()
	current.AvgCostLBP = money.QLBP(decimal.Max(decimal.Zero, avgLBP.Sub(delta.LBP))).String()
	if err := tx.SaveItemWarehouseCost(ctx, *current); err != nil {
		return err
	}

	return tx.CreateCostAdjustment(ctx, domain.InventoryCostAdjustment{
		ID:              s.genID.Generate(),
		CompanyID:       companyID,
		ItemID:          itemID,
		WarehouseID:     warehouseID,
		SourceType:      sourceType,
		SourceID:        sourceID,
		DeltaAvgCostUSD: delta.USD.Neg().String(),
		DeltaAvgCostLBP: delta.LBP.Neg().String(),
	})
}

// AddRebateToCostLayer records delta against the cost layer originally booked for
// (sourceType, sourceID, sourceLineID), tracking how much of a receiving line's landed
// cost has since been credited back by a supplier. A negative delta (on credit-note
// cancel) removes it again. A receiving line with no cost layer (an untracked item) is a
// no-op, not an error.
func (s *Service) AddRebateToCostLayer(ctx context.Context, tx domain.Repository, companyID snowflake.ID, sourceType string, sourceID, sourceLineID snowflake.ID, delta money.Dual) error {
	layer, err := tx.GetCostLayerBySource(ctx, companyID, sourceType, sourceID, sourceLineID)
	if err != nil {
		return err
	}
	if layer == nil {
		return nil
	}
	rebateUSD, _ := decimal.NewFromString(orZero(layer.RebateTotalUSD))
	rebateLBP, _ := decimal.NewFromString(orZero(layer.RebateTotalLBP))
	layer.RebateTotalUSD = money.QUSD(rebateUSD.Add(delta.USD)).String()
	layer.RebateTotalLBP = money.QLBP(rebateLBP.Add(delta.LBP)).String()
	return tx.SaveCostLayer(ctx, *layer)
}

// ReverseCreditAdjustments adds back every cost-layer delta recorded against sourceType/
// sourceID (e.g. a cancelled supplier credit note), restoring the moving average to what it
// would have been had the credit never posted.
func (s *Service) ReverseCreditAdjustments(ctx context.Context, tx domain.Repository, companyID snowflake.ID, sourceType string, sourceID snowflake.ID) error {
	adjustments, err := tx.ListCostAdjustmentsBySource(ctx, companyID, sourceType, sourceID)
	if err != nil {
		return err
	}
	for _, a := range adjustments {
		current, err := tx.GetItemWarehouseCost(ctx, a.ItemID, a.WarehouseID)
		if err != nil {
			return err
		}
		if current == nil {
			current = &domain.ItemWarehouseCost{ItemID: a.ItemID, WarehouseID: a.WarehouseID}
		}
		avgUSD, _ := decimal.NewFromString(orZero(current.AvgCostUSD))
		avgLBP, _ := decimal.NewFromString(orZero(current.AvgCostLBP))
		deltaUSD, _ := decimal.NewFromString(orZero(a.DeltaAvgCostUSD))
		deltaLBP, _ := decimal.NewFromString(orZero(a.DeltaAvgCostLBP))
		current.AvgCostUSD = money.QUSD(avgUSD.Sub(deltaUSD)).String()
		current.AvgCostLBP = money.QLBP(avgLBP.Sub(deltaLBP)).String()
		if err := tx.SaveItemWarehouseCost(ctx, *current); err != nil {
			return err
		}
	}
	return nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
