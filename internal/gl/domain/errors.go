package domain

import "github.com/baytretail/core/internal/apperr"

var (
	ErrNoLines          = apperr.New(apperr.KindValidation, "a journal requires at least one line")
	ErrNegativeAmount   = apperr.New(apperr.KindValidation, "journal line amounts must be non-negative")
	ErrZeroLine         = apperr.New(apperr.KindValidation, "journal line cannot have both currencies zero")
	ErrImbalanced       = apperr.New(apperr.KindImbalanced, "journal does not balance within auto-balance tolerance")
	ErrSignMismatch     = apperr.New(apperr.KindSignMismatch, "usd and lbp balancing diffs have opposite signs")
	ErrTemplateNotFound = apperr.New(apperr.KindNotFound, "journal template not found")
)
