package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the persistence port for supplier credit notes, their allocations, and
// their applications against supplier invoices.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateCreditNote(ctx context.Context, cn SupplierCreditNote) error
	GetCreditNote(ctx context.Context, companyID, id snowflake.ID) (*SupplierCreditNote, error)
	UpdateCreditNote(ctx context.Context, cn SupplierCreditNote) error

	CreateAllocations(ctx context.Context, allocs []SupplierCreditAllocation) error
	ListAllocations(ctx context.Context, creditNoteID snowflake.ID) ([]SupplierCreditAllocation, error)

	CreateApplication(ctx context.Context, app SupplierCreditApplication) error
	ListApplications(ctx context.Context, creditNoteID snowflake.ID) ([]SupplierCreditApplication, error)

	// SumAppliedByCreditNote returns the total USD/LBP already applied from this credit
	// note, used to derive its remaining balance.
	SumAppliedByCreditNote(ctx context.Context, creditNoteID snowflake.ID) (usd, lbp string, err error)
	// SumAppliedByInvoice returns the total USD/LBP already applied (from any credit note)
	// against this invoice, used to derive the invoice's open balance.
	SumAppliedByInvoice(ctx context.Context, invoiceID snowflake.ID) (usd, lbp string, err error)
}
