package domain

import (
	"context"
	"time"

	catalogdomain "github.com/baytretail/core/internal/catalog/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the persistence port for the purchasing state machine.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePurchaseOrder(ctx context.Context, po PurchaseOrder, lines []PurchaseOrderLine) error
	GetPurchaseOrder(ctx context.Context, companyID, id snowflake.ID) (*PurchaseOrder, error)
	ListPurchaseOrderLines(ctx context.Context, poID snowflake.ID) ([]PurchaseOrderLine, error)
	GetPurchaseOrderLine(ctx context.Context, id snowflake.ID) (*PurchaseOrderLine, error)
	// NextOrderNo allocates the company's next PO- number, collision-checked against
	// existing order numbers (a purchase order has no journal to borrow a number from).
	NextOrderNo(ctx context.Context, companyID snowflake.ID) (string, error)
	UpdatePurchaseOrderStatus(ctx context.Context, id snowflake.ID, status POStatus) error
	UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error

	CreateGoodsReceipt(ctx context.Context, gr GoodsReceipt, lines []GoodsReceiptLine) error
	GetGoodsReceipt(ctx context.Context, companyID, id snowflake.ID) (*GoodsReceipt, error)
	ListGoodsReceiptLines(ctx context.Context, grID snowflake.ID) ([]GoodsReceiptLine, error)
	UpdateGoodsReceiptStatus(ctx context.Context, id snowflake.ID, status GRStatus) error
	UpdateGoodsReceipt(ctx context.Context, gr GoodsReceipt) error
	// SumReceivedQty returns the total qty received so far across all posted goods
	// receipts referencing poLineID, used to derive a PO's partially_received/received
	// status and to cap over-receiving.
	SumReceivedQty(ctx context.Context, poLineID snowflake.ID) (string, error)

	// Master-data reads the posting paths need inside the posting transaction. Items carry
	// the tracking flags receipt validation enforces; tax codes carry the rate invoice
	// posting and the tax-variance check price against.
	GetItem(ctx context.Context, companyID, itemID snowflake.ID) (*catalogdomain.Item, error)
	GetTaxCode(ctx context.Context, companyID snowflake.ID, code string) (*catalogdomain.TaxCode, error)
	GetWarehouseLocation(ctx context.Context, id snowflake.ID) (*catalogdomain.WarehouseLocation, error)

	CreateSupplierInvoice(ctx context.Context, si SupplierInvoice) error
	GetSupplierInvoice(ctx context.Context, companyID, id snowflake.ID) (*SupplierInvoice, error)
	UpdateSupplierInvoice(ctx context.Context, si SupplierInvoice) error
	// ListSupplierInvoicesByImportStatus finds the invoices a background extraction (or
	// overdue) sweep needs to act on for one company.
	ListSupplierInvoicesByImportStatus(ctx context.Context, companyID snowflake.ID, status ImportStatus) ([]SupplierInvoice, error)
	CreateSupplierInvoiceLines(ctx context.Context, lines []SupplierInvoiceLine) error
	ListSupplierInvoiceLines(ctx context.Context, siID snowflake.ID) ([]SupplierInvoiceLine, error)
	// DeleteSupplierInvoiceLines clears an invoice's lines before the import pipeline's
	// apply step replaces them with the reviewed set.
	DeleteSupplierInvoiceLines(ctx context.Context, siID snowflake.ID) error
	GetGoodsReceiptLine(ctx context.Context, id snowflake.ID) (*GoodsReceiptLine, error)
	// SumInvoicedQty totals the qty already invoiced against one goods receipt line across
	// posted (non-cancelled) supplier invoices, excluding excludeInvoiceID so a re-post of
	// the same draft doesn't count itself. Backs the 3-way match's over-invoicing check and
	// the invoice-from-receipt draft's remaining-qty prefill.
	SumInvoicedQty(ctx context.Context, grLineID, excludeInvoiceID snowflake.ID) (string, error)
	// ListSupplierInvoicesByGoodsReceipt returns every invoice referencing the receipt,
	// any status; receipt cancel refuses while a non-cancelled one exists.
	ListSupplierInvoicesByGoodsReceipt(ctx context.Context, grID snowflake.ID) ([]SupplierInvoice, error)

	CreateImportLines(ctx context.Context, lines []SupplierInvoiceImportLine) error
	ListImportLines(ctx context.Context, siID snowflake.ID) ([]SupplierInvoiceImportLine, error)
	GetImportLine(ctx context.Context, id snowflake.ID) (*SupplierInvoiceImportLine, error)
	UpdateImportLine(ctx context.Context, line SupplierInvoiceImportLine) error

	CreatePayment(ctx context.Context, p SupplierPayment) error
	ListPayments(ctx context.Context, siID snowflake.ID) ([]SupplierPayment, error)
	GetPayment(ctx context.Context, companyID, id snowflake.ID) (*SupplierPayment, error)
	// ListPaymentsByDateRange returns a company's supplier payments made within the window,
	// the candidate pool bank reconciliation matches bank transactions against.
	ListPaymentsByDateRange(ctx context.Context, companyID snowflake.ID, from, to time.Time) ([]SupplierPayment, error)
	GetPaymentMethodMapping(ctx context.Context, companyID snowflake.ID, method string) (*PaymentMethodMapping, error)
}
