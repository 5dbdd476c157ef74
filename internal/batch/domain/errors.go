package domain

import "github.com/baytretail/core/internal/apperr"

var (
	ErrZeroQty              = apperr.New(apperr.KindValidation, "qty_in and qty_out cannot both be zero")
	ErrBatchContextRequired = apperr.New(apperr.KindValidation, "item is batch-tracked: batch_no or expiry_date is required")
	ErrInsufficientStock    = apperr.New(apperr.KindInsufficientStock, "insufficient stock to satisfy the requested quantity")
)
