// Package domain contains persistence models for item/warehouse/tax master data.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Item is a sellable/stockable sku, unique per company.
type Item struct {
	ID                      snowflake.ID      `json:"id" gorm:"primaryKey"`
	CompanyID               snowflake.ID      `json:"company_id" gorm:"not null;index:ux_items_company_sku,priority:1"`
	SKU                     string            `json:"sku" gorm:"type:text;not null;index:ux_items_company_sku,priority:2"`
	Name                    string            `json:"name" gorm:"type:text;not null"`
	UnitOfMeasure           string            `json:"unit_of_measure" gorm:"type:text;not null"`
	TrackBatches            bool              `json:"track_batches" gorm:"not null;default:false"`
	TrackExpiry             bool              `json:"track_expiry" gorm:"not null;default:false"`
	DefaultShelfLifeDays    *int              `json:"default_shelf_life_days,omitempty"`
	AllowNegativeStock      bool              `json:"allow_negative_stock" gorm:"not null;default:false"`
	MinShelfLifeDaysForSale int               `json:"min_shelf_life_days_for_sale" gorm:"not null;default:0"`
	ReorderPoint            string            `json:"reorder_point" gorm:"type:numeric;not null;default:0"`
	ReorderQty              string            `json:"reorder_qty" gorm:"type:numeric;not null;default:0"`
	PrimaryTaxCode          string            `json:"primary_tax_code" gorm:"type:text"`
	Active                  bool              `json:"active" gorm:"not null;default:true"`
	Metadata                datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt               time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt               time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Item) TableName() string { return "items" }

// ItemUOMConversion maps a non-base unit to the item's base UOM.
type ItemUOMConversion struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ItemID    snowflake.ID `gorm:"not null;uniqueIndex:ux_item_uom,priority:1" json:"item_id"`
	UOM       string       `gorm:"type:text;not null;uniqueIndex:ux_item_uom,priority:2" json:"uom"`
	QtyFactor string       `gorm:"type:numeric;not null" json:"qty_factor"` // canonical 6dp, entered->base
	Active    bool         `gorm:"not null;default:true" json:"active"`
}

func (ItemUOMConversion) TableName() string { return "item_uom_conversions" }

// ItemSupplier records a supplier's last known cost for an item, learned from the
// invoice-import pipeline's apply step.
type ItemSupplier struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	ItemID         snowflake.ID `gorm:"not null;uniqueIndex:ux_item_supplier,priority:1" json:"item_id"`
	SupplierID     snowflake.ID `gorm:"not null;uniqueIndex:ux_item_supplier,priority:2" json:"supplier_id"`
	LastCostUSD    string       `gorm:"type:numeric" json:"last_cost_usd"`
	LastCostLBP    string       `gorm:"type:numeric" json:"last_cost_lbp"`
	SupplierSKU    string       `gorm:"type:text" json:"supplier_sku"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ItemSupplier) TableName() string { return "item_suppliers" }

// SupplierItemAlias remembers a supplier's free-text code/name for an item, learned
// during import apply so future imports auto-match without review.
type SupplierItemAlias struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID          snowflake.ID `gorm:"not null;uniqueIndex:ux_supplier_alias,priority:1" json:"company_id"`
	SupplierID         snowflake.ID `gorm:"not null;uniqueIndex:ux_supplier_alias,priority:2" json:"supplier_id"`
	NormalizedCode     string       `gorm:"type:text;uniqueIndex:ux_supplier_alias,priority:3" json:"normalized_code"`
	NormalizedName     string       `gorm:"type:text" json:"normalized_name"`
	ItemID             snowflake.ID `gorm:"not null" json:"item_id"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (SupplierItemAlias) TableName() string { return "supplier_item_aliases" }

// Warehouse is a physical or logical stock location root.
type Warehouse struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID `gorm:"not null;uniqueIndex:ux_warehouse_company_code,priority:1" json:"company_id"`
	Code      string       `gorm:"type:text;not null;uniqueIndex:ux_warehouse_company_code,priority:2" json:"code"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Active    bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Warehouse) TableName() string { return "warehouses" }

// WarehouseLocation is a bin/aisle/shelf within a warehouse.
type WarehouseLocation struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	WarehouseID snowflake.ID `gorm:"not null;uniqueIndex:ux_location_warehouse_code,priority:1" json:"warehouse_id"`
	Code        string       `gorm:"type:text;not null;uniqueIndex:ux_location_warehouse_code,priority:2" json:"code"`
	Active      bool         `gorm:"not null;default:true" json:"active"`
}

func (WarehouseLocation) TableName() string { return "warehouse_locations" }

// TaxCode defines a named tax rate applied to purchase/sale lines.
type TaxCode struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID `gorm:"not null;uniqueIndex:ux_tax_code_company,priority:1" json:"company_id"`
	Code      string       `gorm:"type:text;not null;uniqueIndex:ux_tax_code_company,priority:2" json:"code"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Rate      string       `gorm:"type:numeric;not null" json:"rate"` // e.g. 0.11 for 11%
	Active    bool         `gorm:"not null;default:true" json:"active"`
}

func (TaxCode) TableName() string { return "tax_codes" }
