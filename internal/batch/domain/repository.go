package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the persistence port for batches, stock moves, cost layers, and the
// moving-average rollup.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// FindBatch looks up a batch by (item, batch_no, expiry_date) with NULL-equal
	// semantics: a nil batchNo or expiryDate only matches another nil, not a wildcard.
	FindBatch(ctx context.Context, companyID, itemID snowflake.ID, batchNo string, expiryDate *time.Time) (*Batch, error)
	CreateBatch(ctx context.Context, b Batch) (*Batch, error)

	// CandidateBatches returns batches at warehouseID holding item stock, ordered FEFO
	// (expiry_date ascending, NULLs last, then created_at ascending), excluding
	// quarantined/expired batches and those below minExpiryDate when it is non-nil.
	CandidateBatches(ctx context.Context, companyID, itemID, warehouseID snowflake.ID, minExpiryDate *time.Time) ([]BatchOnHand, error)

	// GetBatchOnHand sums signed stock moves for a single batch, used by the supplier
	// credit engine to derive the on-hand/sold ratio for a receipt-linked allocation.
	GetBatchOnHand(ctx context.Context, batchID snowflake.ID) (string, error)

	CreateStockMove(ctx context.Context, m StockMove) error
	// ListStockMovesBySource returns the moves a source document emitted, in insertion
	// order; document cancel reverses each one with an equal-but-opposite move.
	ListStockMovesBySource(ctx context.Context, companyID snowflake.ID, sourceType string, sourceID snowflake.ID) ([]StockMove, error)

	UpsertCostLayer(ctx context.Context, l BatchCostLayer) error
	// GetCostLayerBySource looks up the cost layer originally booked for one receiving
	// line, used by the supplier credit engine to track rebates against it.
	GetCostLayerBySource(ctx context.Context, companyID snowflake.ID, sourceType string, sourceID, sourceLineID snowflake.ID) (*BatchCostLayer, error)
	SaveCostLayer(ctx context.Context, l BatchCostLayer) error
	// DeleteCostLayersBySource removes the layers a cancelled goods receipt wrote.
	DeleteCostLayersBySource(ctx context.Context, companyID snowflake.ID, sourceType string, sourceID snowflake.ID) error

	GetItemWarehouseCost(ctx context.Context, itemID, warehouseID snowflake.ID) (*ItemWarehouseCost, error)
	SaveItemWarehouseCost(ctx context.Context, c ItemWarehouseCost) error

	CreateCostAdjustment(ctx context.Context, a InventoryCostAdjustment) error
	// ListCostAdjustmentsBySource returns the cost-layer deltas recorded for a source
	// document (e.g. a supplier credit note), used to reverse them exactly on cancel.
	ListCostAdjustmentsBySource(ctx context.Context, companyID snowflake.ID, sourceType string, sourceID snowflake.ID) ([]InventoryCostAdjustment, error)
}

// BatchOnHand pairs a batch with its current on-hand qty at a specific warehouse, derived
// from summed stock moves.
type BatchOnHand struct {
	Batch
	WarehouseID snowflake.ID
	OnHandQty   string
}
