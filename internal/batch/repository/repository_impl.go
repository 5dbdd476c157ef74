// Package repository is the gorm-backed implementation of the batch domain port.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/baytretail/core/internal/batch/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) WithTx(tx *gorm.DB) domain.Repository {
	return &repo{db: tx}
}

func (r *repo) FindBatch(ctx context.Context, companyID, itemID snowflake.ID, batchNo string, expiryDate *time.Time) (*domain.Batch, error) {
	q := r.db.WithContext(ctx).Where("company_id = ? AND item_id = ?", companyID, itemID)
	if batchNo == "" {
		q = q.Where("batch_no IS NULL OR batch_no = ''")
	} else {
		q = q.Where("batch_no = ?", batchNo)
	}
	if expiryDate == nil {
		q = q.Where("expiry_date IS NULL")
	} else {
		q = q.Where("expiry_date = ?", expiryDate.Format("2006-01-02"))
	}

	var b domain.Batch
	err := q.First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repo) CreateBatch(ctx context.Context, b domain.Batch) (*domain.Batch, error) {
	if err := r.db.WithContext(ctx).Create(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// CandidateBatches sums signed stock moves per batch at warehouseID to derive on-hand qty,
// ordered FEFO. Batches with a zero or negative balance are returned too; the caller skips
// them.
func (r *repo) CandidateBatches(ctx context.Context, companyID, itemID, warehouseID snowflake.ID, minExpiryDate *time.Time) ([]domain.BatchOnHand, error) {
	type row struct {
		domain.Batch
		OnHandQty string
	}
	var rows []row

	q := r.db.WithContext(ctx).
		Table("batches AS b").
		Select("b.*, COALESCE(SUM(sm.qty_in - sm.qty_out), 0) AS on_hand_qty").
		Joins("JOIN stock_moves sm ON sm.batch_id = b.id AND sm.warehouse_id = ?", warehouseID).
		Where("b.company_id = ? AND b.item_id = ? AND b.status = ?", companyID, itemID, domain.BatchStatusAvailable).
		Group("b.id")
	if minExpiryDate != nil {
		q = q.Where("b.expiry_date IS NULL OR b.expiry_date >= ?", minExpiryDate.Format("2006-01-02"))
	}
	q = q.Order("b.expiry_date ASC NULLS LAST, b.created_at ASC")

	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.BatchOnHand, 0, len(rows))
	for _, rr := range rows {
		out = append(out, domain.BatchOnHand{Batch: rr.Batch, WarehouseID: warehouseID, OnHandQty: rr.OnHandQty})
	}
	return out, nil
}

func (r *repo) GetBatchOnHand(ctx context.Context, batchID snowflake.ID) (string, error) {
	var onHand string
	err := r.db.WithContext(ctx).
		Table("stock_moves").
		Select("COALESCE(SUM(qty_in - qty_out), 0)").
		Where("batch_id = ?", batchID).
		Scan(&onHand).Error
	if err != nil {
		return "0", err
	}
	if onHand == "" {
		onHand = "0"
	}
	return onHand, nil
}

func (r *repo) CreateStockMove(ctx context.Context, m domain.StockMove) error {
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *repo) ListStockMovesBySource(ctx context.Context, companyID snowflake.ID, sourceType string, sourceID snowflake.ID) ([]domain.StockMove, error) {
	var moves []domain.StockMove
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND source_type = ? AND source_id = ?", companyID, sourceType, sourceID).
		Order("id asc").
		Find(&moves).Error
	return moves, err
}

func (r *repo) DeleteCostLayersBySource(ctx context.Context, companyID snowflake.ID, sourceType string, sourceID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Where("company_id = ? AND source_type = ? AND source_id = ?", companyID, sourceType, sourceID).
		Delete(&domain.BatchCostLayer{}).Error
}

func (r *repo) UpsertCostLayer(ctx context.Context, l domain.BatchCostLayer) error {
	return r.db.WithContext(ctx).
		Where("company_id = ? AND source_type = ? AND source_id = ? AND source_line_id = ?",
			l.CompanyID, l.SourceType, l.SourceID, l.SourceLineID).
		FirstOrCreate(&l).Error
}

func (r *repo) GetCostLayerBySource(ctx context.Context, companyID snowflake.ID, sourceType string, sourceID, sourceLineID snowflake.ID) (*domain.BatchCostLayer, error) {
	var l domain.BatchCostLayer
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND source_type = ? AND source_id = ? AND source_line_id = ?", companyID, sourceType, sourceID, sourceLineID).
		First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repo) SaveCostLayer(ctx context.Context, l domain.BatchCostLayer) error {
	return r.db.WithContext(ctx).Save(&l).Error
}

func (r *repo) GetItemWarehouseCost(ctx context.Context, itemID, warehouseID snowflake.ID) (*domain.ItemWarehouseCost, error) {
	var c domain.ItemWarehouseCost
	err := r.db.WithContext(ctx).Where("item_id = ? AND warehouse_id = ?", itemID, warehouseID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) SaveItemWarehouseCost(ctx context.Context, c domain.ItemWarehouseCost) error {
	return r.db.WithContext(ctx).Save(&c).Error
}

func (r *repo) CreateCostAdjustment(ctx context.Context, a domain.InventoryCostAdjustment) error {
	return r.db.WithContext(ctx).Create(&a).Error
}

func (r *repo) ListCostAdjustmentsBySource(ctx context.Context, companyID snowflake.ID, sourceType string, sourceID snowflake.ID) ([]domain.InventoryCostAdjustment, error) {
	var adjustments []domain.InventoryCostAdjustment
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND source_type = ? AND source_id = ?", companyID, sourceType, sourceID).
		Find(&adjustments).Error
	return adjustments, err
}
