// Package domain contains persistence models and ports for the supplier credit engine:
// expense and receipt-linked credit notes, their inventory/COGS allocations, and their
// applications against posted supplier invoices.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type CreditKind string

const (
	CreditKindExpense       CreditKind = "expense"
	CreditKindReceiptLinked CreditKind = "receipt_linked"
)

type CreditStatus string

const (
	CreditStatusDraft     CreditStatus = "draft"
	CreditStatusPosted    CreditStatus = "posted"
	CreditStatusCancelled CreditStatus = "cancelled"
)

// SupplierCreditNote is a supplier-issued credit against a prior purchase. Expense credits
// post straight to AP/PURCHASE_REBATES; receipt-linked credits additionally allocate across
// the referenced goods receipt's lines and roll back part of the moving average.
type SupplierCreditNote struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	CompanyID      snowflake.ID      `gorm:"not null;index" json:"company_id"`
	SupplierID     snowflake.ID      `gorm:"not null" json:"supplier_id"`
	Kind           CreditKind        `gorm:"type:text;not null" json:"kind"`
	GoodsReceiptID *snowflake.ID     `json:"goods_receipt_id,omitempty"`
	Status         CreditStatus      `gorm:"type:text;not null;default:draft" json:"status"`
	CreditNo       string            `gorm:"type:text" json:"credit_no,omitempty"`
	TotalUSD       string            `gorm:"type:numeric;not null" json:"total_usd"`
	TotalLBP       string            `gorm:"type:numeric;not null" json:"total_lbp"`
	ExchangeRate   string            `gorm:"type:numeric;not null;default:0" json:"exchange_rate"`
	CreditDate     time.Time         `gorm:"type:date;not null" json:"credit_date"`
	JournalID      *snowflake.ID     `json:"journal_id,omitempty"`
	Memo           string            `gorm:"type:text" json:"memo,omitempty"`
	CancelDetails  datatypes.JSONMap `gorm:"type:jsonb" json:"cancel_details,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SupplierCreditNote) TableName() string { return "supplier_credit_notes" }

// SupplierCreditAllocation is one receipt line's share of a receipt-linked credit note,
// split further into an inventory portion (rolled back into the moving average) and a COGS
// portion (the part of the credit attributable to units already sold).
type SupplierCreditAllocation struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	CreditNoteID      snowflake.ID `gorm:"not null;index" json:"credit_note_id"`
	GoodsReceiptLineID snowflake.ID `gorm:"not null" json:"goods_receipt_line_id"`
	ItemID            snowflake.ID `gorm:"not null" json:"item_id"`
	WarehouseID       snowflake.ID `gorm:"not null" json:"warehouse_id"`
	BatchID           *snowflake.ID `json:"batch_id,omitempty"`
	AllocUSD          string       `gorm:"type:numeric;not null" json:"alloc_usd"`
	AllocLBP          string       `gorm:"type:numeric;not null" json:"alloc_lbp"`
	InventoryUSD      string       `gorm:"type:numeric;not null" json:"inventory_usd"`
	InventoryLBP      string       `gorm:"type:numeric;not null" json:"inventory_lbp"`
	CogsUSD           string       `gorm:"type:numeric;not null" json:"cogs_usd"`
	CogsLBP           string       `gorm:"type:numeric;not null" json:"cogs_lbp"`
}

func (SupplierCreditAllocation) TableName() string { return "supplier_credit_allocations" }

// SupplierCreditApplication records part of a posted credit note's value applied against a
// specific posted supplier invoice from the same supplier, reducing that invoice's open
// balance without moving cash.
type SupplierCreditApplication struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	CreditNoteID      snowflake.ID `gorm:"not null;index" json:"credit_note_id"`
	SupplierInvoiceID snowflake.ID `gorm:"not null;index" json:"supplier_invoice_id"`
	AmountUSD         string       `gorm:"type:numeric;not null" json:"amount_usd"`
	AmountLBP         string       `gorm:"type:numeric;not null" json:"amount_lbp"`
	AppliedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"applied_at"`
}

func (SupplierCreditApplication) TableName() string { return "supplier_credit_applications" }
