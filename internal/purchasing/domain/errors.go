package domain

import "github.com/baytretail/core/internal/apperr"

var (
	ErrPONotDraft         = apperr.New(apperr.KindPrecondition, "purchase order is not in draft status")
	ErrPONotSubmitted     = apperr.New(apperr.KindPrecondition, "purchase order is not submitted")
	ErrPONoLines          = apperr.New(apperr.KindValidation, "purchase order must have at least one line")
	ErrGRNoLines          = apperr.New(apperr.KindValidation, "goods receipt must have at least one line")
	ErrGRAlreadyPosted    = apperr.New(apperr.KindPrecondition, "goods receipt is already posted")
	ErrSINoLines          = apperr.New(apperr.KindValidation, "supplier invoice must have at least one line")
	ErrSIOnHold           = apperr.New(apperr.KindPrecondition, "supplier invoice is on hold and cannot post")
	ErrSINotMatched       = apperr.New(apperr.KindPrecondition, "supplier invoice has not completed 3-way match")
	ErrSIAlreadyPosted    = apperr.New(apperr.KindPrecondition, "supplier invoice is already posted")
	ErrSINotPosted        = apperr.New(apperr.KindPrecondition, "supplier invoice is not posted")
	ErrSIOverpaid         = apperr.New(apperr.KindValidation, "payment amount exceeds the invoice's outstanding balance")
	ErrNoPaymentMapping   = apperr.New(apperr.KindMissingConfig, "no cash/bank account mapped for this payment method")
	ErrImportNotPending   = apperr.New(apperr.KindPrecondition, "import line is not pending review")
	ErrImportLineRejected = apperr.New(apperr.KindPrecondition, "import line was rejected and cannot be applied")
	ErrGRNotDraft         = apperr.New(apperr.KindPrecondition, "goods receipt is not in draft status")
	ErrGRNotPosted        = apperr.New(apperr.KindPrecondition, "goods receipt is not posted")
	ErrGRArtifactsMissing = apperr.New(apperr.KindConflict, "goods receipt is posted but its journal is missing")
	ErrGRHasInvoices      = apperr.New(apperr.KindPrecondition, "goods receipt is referenced by a supplier invoice and cannot be cancelled")
	ErrGRNothingToReceive = apperr.New(apperr.KindPrecondition, "purchase order has no remaining quantity to receive")
	ErrSIHasPayments      = apperr.New(apperr.KindPrecondition, "supplier invoice has payments and cannot be cancelled")
	ErrSISupplierMismatch = apperr.New(apperr.KindValidation, "supplier invoice supplier does not match the goods receipt supplier")
	ErrSIReceiptNotPosted = apperr.New(apperr.KindPrecondition, "linked goods receipt is not posted")
	ErrSIOpeningBalance   = apperr.New(apperr.KindValidation, "opening-balance invoice cannot carry a goods receipt link or tax")
	ErrSINothingToInvoice = apperr.New(apperr.KindPrecondition, "goods receipt has no remaining quantity to invoice")
	ErrLocationInvalid    = apperr.New(apperr.KindValidation, "location does not belong to the receipt warehouse or is inactive")
	ErrUnknownTaxCode     = apperr.New(apperr.KindNotFound, "tax code is not defined for this company")
)
