// Package domain contains persistence models and ports for the purchasing state machine:
// purchase orders, goods receipts, supplier invoices (with their AP 3-way match and
// import-pending lines), and supplier payments.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type POStatus string

const (
	POStatusDraft             POStatus = "draft"
	POStatusSubmitted         POStatus = "submitted"
	POStatusPartiallyReceived POStatus = "partially_received"
	POStatusReceived          POStatus = "received"
	POStatusCancelled         POStatus = "cancelled"
)

// PurchaseOrder is the buyer's commitment to a supplier. Lines are immutable once
// submitted; only status and exchange_rate move after that.
type PurchaseOrder struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID    snowflake.ID `gorm:"not null;index" json:"company_id"`
	OrderNo      string       `gorm:"type:text" json:"order_no,omitempty"`
	SupplierID   snowflake.ID `gorm:"not null" json:"supplier_id"`
	Status       POStatus     `gorm:"type:text;not null;default:draft" json:"status"`
	ExchangeRate string       `gorm:"type:numeric;not null;default:0" json:"exchange_rate"`
	OrderDate    time.Time    `gorm:"type:date;not null" json:"order_date"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PurchaseOrder) TableName() string { return "purchase_orders" }

// PurchaseOrderLine prices one item at the rate the PO was raised at.
type PurchaseOrderLine struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	PurchaseOrderID snowflake.ID `gorm:"not null;index" json:"purchase_order_id"`
	ItemID          snowflake.ID `gorm:"not null" json:"item_id"`
	Qty             string       `gorm:"type:numeric;not null" json:"qty"`
	UnitCostUSD     string       `gorm:"type:numeric;not null" json:"unit_cost_usd"`
	UnitCostLBP     string       `gorm:"type:numeric;not null" json:"unit_cost_lbp"`
}

func (PurchaseOrderLine) TableName() string { return "purchase_order_lines" }

type GRStatus string

const (
	GRStatusDraft     GRStatus = "draft"
	GRStatusPosted    GRStatus = "posted"
	GRStatusCancelled GRStatus = "cancelled"
)

// GoodsReceipt records physical receipt of stock against an (optional) purchase order.
// Posting a receipt books Dr INVENTORY / Cr GRNI and folds each line's batch into the
// moving average; it never touches AP directly.
type GoodsReceipt struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID       snowflake.ID  `gorm:"not null;index" json:"company_id"`
	PurchaseOrderID *snowflake.ID `json:"purchase_order_id,omitempty"`
	ReceiptNo       string        `gorm:"type:text" json:"receipt_no,omitempty"`
	SupplierID      snowflake.ID  `gorm:"not null" json:"supplier_id"`
	WarehouseID     snowflake.ID  `gorm:"not null" json:"warehouse_id"`
	Status          GRStatus      `gorm:"type:text;not null;default:draft" json:"status"`
	ExchangeRate    string        `gorm:"type:numeric;not null;default:0" json:"exchange_rate"`
	ReceiptDate     time.Time     `gorm:"type:date;not null" json:"receipt_date"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (GoodsReceipt) TableName() string { return "goods_receipts" }

// GoodsReceiptLine carries the batch/expiry context the batch engine resolves against.
type GoodsReceiptLine struct {
	ID                  snowflake.ID  `gorm:"primaryKey" json:"id"`
	GoodsReceiptID      snowflake.ID  `gorm:"not null;index" json:"goods_receipt_id"`
	PurchaseOrderLineID *snowflake.ID `json:"purchase_order_line_id,omitempty"`
	ItemID              snowflake.ID  `gorm:"not null" json:"item_id"`
	LocationID          *snowflake.ID `json:"location_id,omitempty"`
	BatchNo             string        `gorm:"type:text" json:"batch_no,omitempty"`
	ExpiryDate          *time.Time    `gorm:"type:date" json:"expiry_date,omitempty"`
	Qty                 string        `gorm:"type:numeric;not null" json:"qty"`
	UnitCostUSD         string        `gorm:"type:numeric;not null" json:"unit_cost_usd"`
	UnitCostLBP         string        `gorm:"type:numeric;not null" json:"unit_cost_lbp"`
}

func (GoodsReceiptLine) TableName() string { return "goods_receipt_lines" }

type SIStatus string

const (
	SIStatusDraft           SIStatus = "draft"
	SIStatusMatched         SIStatus = "matched"
	SIStatusOnHold          SIStatus = "on_hold"
	SIStatusPosted          SIStatus = "posted"
	SIStatusCancelled       SIStatus = "cancelled"
	SIStatusPaid            SIStatus = "paid"
	SIStatusPartiallyPaid   SIStatus = "partially_paid"
)

// ImportStatus tracks whether this invoice arrived through the document-import pipeline
// and, if so, how far its extraction has progressed.
type ImportStatus string

const (
	ImportStatusNone          ImportStatus = "none"
	ImportStatusPending       ImportStatus = "pending"
	ImportStatusProcessing    ImportStatus = "processing"
	ImportStatusPendingReview ImportStatus = "pending_review"
	ImportStatusFilled        ImportStatus = "filled"
	ImportStatusSkipped       ImportStatus = "skipped"
	ImportStatusFailed        ImportStatus = "failed"
)

// DocSubtype distinguishes a PO/GR-matched invoice from a direct (non-PO) expense invoice,
// which posts straight to PURCHASES_EXPENSE instead of clearing GRNI, and from a go-live
// opening-balance invoice, which books against OPENING_BALANCE equity and carries no
// receipt link or tax.
const (
	DocSubtypeStandard       = "standard"
	DocSubtypeDirect         = "direct"
	DocSubtypeOpeningBalance = "opening_balance"
)

// SupplierInvoice is the AP document. hold_details carries the structured flags a 3-way
// match held the invoice for as free-form JSON rather than a fixed column set, since the
// shape of a hold reason varies by what tripped it. An invoice freshly created by the import
// pipeline's upload step carries whatever SupplierID the uploader gave, possibly zero;
// extraction does not set it, and the import service's SetSupplier assigns it.
type SupplierInvoice struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	CompanyID      snowflake.ID      `gorm:"not null;index" json:"company_id"`
	GoodsReceiptID *snowflake.ID     `json:"goods_receipt_id,omitempty"`
	InvoiceNo      string            `gorm:"type:text" json:"invoice_no,omitempty"`
	SupplierID     snowflake.ID      `json:"supplier_id"`
	Status         SIStatus          `gorm:"type:text;not null;default:draft" json:"status"`
	DocSubtype     string            `gorm:"type:text;not null;default:standard" json:"doc_subtype"`
	IsOnHold       bool              `gorm:"not null;default:false" json:"is_on_hold"`
	HoldReason     string            `gorm:"type:text" json:"hold_reason,omitempty"`
	HoldDetails    datatypes.JSONMap `gorm:"type:jsonb" json:"hold_details,omitempty"`
	ImportStatus   ImportStatus      `gorm:"type:text;not null;default:none" json:"import_status"`
	ImportError    string            `gorm:"type:text" json:"import_error,omitempty"`
	AttachmentID   *snowflake.ID     `json:"attachment_id,omitempty"`
	TaxCode        string            `gorm:"type:text" json:"tax_code,omitempty"`
	ExchangeRate   string            `gorm:"type:numeric;not null;default:0" json:"exchange_rate"`
	InvoiceDate    time.Time         `gorm:"type:date;not null" json:"invoice_date"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SupplierInvoice) TableName() string { return "supplier_invoices" }

// SupplierInvoiceLine is a confirmed, postable invoice line. When GoodsReceiptLineID is set
// the 3-way match compares this line's qty/cost against that receipt line's.
type SupplierInvoiceLine struct {
	ID                 snowflake.ID  `gorm:"primaryKey" json:"id"`
	SupplierInvoiceID  snowflake.ID  `gorm:"not null;index" json:"supplier_invoice_id"`
	GoodsReceiptLineID *snowflake.ID `json:"goods_receipt_line_id,omitempty"`
	ItemID             snowflake.ID  `gorm:"not null" json:"item_id"`
	Qty                string        `gorm:"type:numeric;not null" json:"qty"`
	UnitCostUSD        string        `gorm:"type:numeric;not null" json:"unit_cost_usd"`
	UnitCostLBP        string        `gorm:"type:numeric;not null" json:"unit_cost_lbp"`
	TaxCode            string        `gorm:"type:text" json:"tax_code,omitempty"`
}

func (SupplierInvoiceLine) TableName() string { return "supplier_invoice_lines" }

// ImportLineStatus tracks one extracted-but-unconfirmed invoice line through review.
type ImportLineStatus string

const (
	ImportLineStatusPending  ImportLineStatus = "pending"
	ImportLineStatusResolved ImportLineStatus = "resolved"
	ImportLineStatusSkipped  ImportLineStatus = "skipped"
)

// SupplierInvoiceImportLine is one line the extraction pipeline read off a supplier
// document image/PDF before a human (or an auto-match against a learned alias) resolves it
// to a catalog item and it becomes a real SupplierInvoiceLine.
type SupplierInvoiceImportLine struct {
	ID                  snowflake.ID      `gorm:"primaryKey" json:"id"`
	SupplierInvoiceID   snowflake.ID      `gorm:"not null;index" json:"supplier_invoice_id"`
	SupplierItemCode    string            `gorm:"type:text" json:"supplier_item_code,omitempty"`
	SupplierItemName    string            `gorm:"type:text" json:"supplier_item_name,omitempty"`
	Qty                 string            `gorm:"type:numeric;not null" json:"qty"`
	UnitCostUSD         string            `gorm:"type:numeric;not null;default:0" json:"unit_cost_usd"`
	UnitCostLBP         string            `gorm:"type:numeric;not null;default:0" json:"unit_cost_lbp"`
	SuggestedItemID     *snowflake.ID     `json:"suggested_item_id,omitempty"`
	SuggestedConfidence *string           `gorm:"type:numeric" json:"suggested_confidence,omitempty"`
	ResolvedItemID      *snowflake.ID     `json:"resolved_item_id,omitempty"`
	Status              ImportLineStatus  `gorm:"type:text;not null;default:pending" json:"status"`
	CreatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (SupplierInvoiceImportLine) TableName() string { return "supplier_invoice_import_lines" }

// SupplierPayment records cash leaving for a supplier invoice. PaymentMethod keys into
// PaymentMethodMapping to find the concrete cash/bank account to credit.
type SupplierPayment struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID         snowflake.ID  `gorm:"not null;index" json:"company_id"`
	SupplierInvoiceID snowflake.ID  `gorm:"not null;index" json:"supplier_invoice_id"`
	PaymentMethod     string        `gorm:"type:text;not null" json:"payment_method"`
	AmountUSD         string        `gorm:"type:numeric;not null;default:0" json:"amount_usd"`
	AmountLBP         string        `gorm:"type:numeric;not null;default:0" json:"amount_lbp"`
	PaidAt            time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"paid_at"`
	JournalID         *snowflake.ID `json:"journal_id,omitempty"`
}

func (SupplierPayment) TableName() string { return "supplier_payments" }

// PaymentMethodMapping names the concrete COA account a payment method settles against,
// resolved directly rather than through an account-role lookup since the mapping is
// already a concrete account id.
type PaymentMethodMapping struct {
	CompanyID     snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"company_id"`
	PaymentMethod string       `gorm:"primaryKey;type:text" json:"payment_method"`
	AccountID     snowflake.ID `gorm:"not null" json:"account_id"`
}

func (PaymentMethodMapping) TableName() string { return "payment_method_mappings" }
