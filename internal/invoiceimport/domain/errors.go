package domain

import "github.com/baytretail/core/internal/apperr"

var (
	ErrAttachmentTooLarge   = apperr.New(apperr.KindValidation, "attachment exceeds the configured size limit")
	ErrAttachmentEmpty      = apperr.New(apperr.KindValidation, "attachment has no content")
	ErrNotPendingExtraction = apperr.New(apperr.KindPrecondition, "invoice is not awaiting extraction")
	ErrLinesStillPending    = apperr.New(apperr.KindPrecondition, "one or more import lines are still pending review")
	ErrNoSupplierAssigned   = apperr.New(apperr.KindValidation, "invoice has no supplier assigned")
	ErrNotPendingReview     = apperr.New(apperr.KindPrecondition, "invoice is not pending review")
)
