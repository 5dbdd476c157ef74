// Package domain contains persistence models and ports for batch resolution, FEFO
// allocation, and cost-layer/moving-average maintenance.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type BatchStatus string

const (
	BatchStatusAvailable  BatchStatus = "available"
	BatchStatusQuarantine BatchStatus = "quarantine"
	BatchStatusExpired    BatchStatus = "expired"
)

// Batch is a receivable unit of an item, optionally carrying a batch number and/or expiry.
type Batch struct {
	ID                  snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID           snowflake.ID  `gorm:"not null" json:"company_id"`
	ItemID              snowflake.ID  `gorm:"not null" json:"item_id"`
	BatchNo             string        `gorm:"type:text" json:"batch_no,omitempty"`
	ExpiryDate          *time.Time    `json:"expiry_date,omitempty"`
	Status              BatchStatus   `gorm:"type:text;not null;default:available" json:"status"`
	HoldReason          string        `json:"hold_reason,omitempty"`
	ReceivedAt          *time.Time    `json:"received_at,omitempty"`
	ReceivedSourceType  string        `json:"received_source_type,omitempty"`
	ReceivedSourceID    *snowflake.ID `json:"received_source_id,omitempty"`
	ReceivedSupplierID  *snowflake.ID `json:"received_supplier_id,omitempty"`
	CreatedAt           time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Batch) TableName() string { return "batches" }

// StockMove is an immutable append-only ledger line for a single qty movement.
type StockMove struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID    snowflake.ID  `gorm:"not null" json:"company_id"`
	ItemID       snowflake.ID  `gorm:"not null;index:idx_stock_moves_item_wh,priority:1" json:"item_id"`
	WarehouseID  snowflake.ID  `gorm:"not null;index:idx_stock_moves_item_wh,priority:2" json:"warehouse_id"`
	LocationID   *snowflake.ID `json:"location_id,omitempty"`
	BatchID      *snowflake.ID `json:"batch_id,omitempty"`
	QtyIn        string        `gorm:"type:numeric;not null;default:0" json:"qty_in"`
	QtyOut       string        `gorm:"type:numeric;not null;default:0" json:"qty_out"`
	UnitCostUSD  string        `gorm:"type:numeric;not null;default:0" json:"unit_cost_usd"`
	UnitCostLBP  string        `gorm:"type:numeric;not null;default:0" json:"unit_cost_lbp"`
	MoveDate     time.Time     `gorm:"not null" json:"move_date"`
	SourceType   string        `gorm:"type:text;not null;index:idx_stock_moves_source,priority:1" json:"source_type"`
	SourceID     snowflake.ID  `gorm:"not null;index:idx_stock_moves_source,priority:2" json:"source_id"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (StockMove) TableName() string { return "stock_moves" }

// BatchCostLayer is one inbound receipt's cost, conflict-unique per originating line so a
// retried import never double-books it.
type BatchCostLayer struct {
	ID                 snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID          snowflake.ID  `gorm:"not null;uniqueIndex:ux_cost_layer_source,priority:1" json:"company_id"`
	BatchID            snowflake.ID  `gorm:"not null" json:"batch_id"`
	WarehouseID        snowflake.ID  `gorm:"not null" json:"warehouse_id"`
	LocationID         *snowflake.ID `json:"location_id,omitempty"`
	SourceType         string        `gorm:"type:text;not null;uniqueIndex:ux_cost_layer_source,priority:2" json:"source_type"`
	SourceID           snowflake.ID  `gorm:"not null;uniqueIndex:ux_cost_layer_source,priority:3" json:"source_id"`
	SourceLineID       snowflake.ID  `gorm:"not null;uniqueIndex:ux_cost_layer_source,priority:4" json:"source_line_id"`
	Qty                string        `gorm:"type:numeric;not null" json:"qty"`
	UnitCostUSD        string        `gorm:"type:numeric;not null" json:"unit_cost_usd"`
	UnitCostLBP        string        `gorm:"type:numeric;not null" json:"unit_cost_lbp"`
	LandedCostTotalUSD string        `gorm:"type:numeric;not null;default:0" json:"landed_cost_total_usd"`
	LandedCostTotalLBP string        `gorm:"type:numeric;not null;default:0" json:"landed_cost_total_lbp"`
	RebateTotalUSD     string        `gorm:"type:numeric;not null;default:0" json:"rebate_total_usd"`
	RebateTotalLBP     string        `gorm:"type:numeric;not null;default:0" json:"rebate_total_lbp"`
	CreatedAt          time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (BatchCostLayer) TableName() string { return "batch_cost_layers" }

// ItemWarehouseCost is the running moving-average cost and on-hand qty for (item,
// warehouse). Its primary key is the natural key, not a snowflake ID: it's a rollup, not an
// event.
type ItemWarehouseCost struct {
	ItemID      snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"item_id"`
	WarehouseID snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"warehouse_id"`
	OnHandQty   string       `gorm:"type:numeric;not null;default:0" json:"on_hand_qty"`
	AvgCostUSD  string       `gorm:"type:numeric;not null;default:0" json:"avg_cost_usd"`
	AvgCostLBP  string       `gorm:"type:numeric;not null;default:0" json:"avg_cost_lbp"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ItemWarehouseCost) TableName() string { return "item_warehouse_costs" }

// InventoryCostAdjustment records a direct delta to the moving average (e.g. from a supplier
// credit allocation) so it can be exactly reversed later.
type InventoryCostAdjustment struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID       snowflake.ID `gorm:"not null" json:"company_id"`
	ItemID          snowflake.ID `gorm:"not null" json:"item_id"`
	WarehouseID     snowflake.ID `gorm:"not null" json:"warehouse_id"`
	SourceType      string       `gorm:"type:text;not null" json:"source_type"`
	SourceID        snowflake.ID `gorm:"not null" json:"source_id"`
	DeltaAvgCostUSD string       `gorm:"type:numeric;not null" json:"delta_avg_cost_usd"`
	DeltaAvgCostLBP string       `gorm:"type:numeric;not null" json:"delta_avg_cost_lbp"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (InventoryCostAdjustment) TableName() string { return "inventory_cost_adjustments" }
