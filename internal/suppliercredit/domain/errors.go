package domain

import "github.com/baytretail/core/internal/apperr"

var (
	ErrGRRequired           = apperr.New(apperr.KindValidation, "receipt-linked credit note requires a posted goods receipt")
	ErrGRSupplierMismatch   = apperr.New(apperr.KindValidation, "goods receipt belongs to a different supplier")
	ErrGRNoLines            = apperr.New(apperr.KindValidation, "referenced goods receipt has no lines to allocate against")
	ErrCreditNotDraft       = apperr.New(apperr.KindPrecondition, "credit note is not in draft status")
	ErrCreditNotPosted      = apperr.New(apperr.KindPrecondition, "credit note is not posted")
	ErrCreditHasApplications = apperr.New(apperr.KindPrecondition, "credit note has applications and cannot be cancelled")
	ErrInvoiceSupplierMismatch = apperr.New(apperr.KindValidation, "supplier invoice belongs to a different supplier")
	ErrInvoiceNotPosted     = apperr.New(apperr.KindPrecondition, "supplier invoice is not posted")
	ErrExceedsRemainingCredit = apperr.New(apperr.KindValidation, "application amount exceeds the credit note's remaining balance")
	ErrExceedsInvoiceBalance  = apperr.New(apperr.KindValidation, "application amount exceeds the invoice's open balance")
)
