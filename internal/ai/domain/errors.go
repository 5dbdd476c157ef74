package domain

import "github.com/baytretail/core/internal/apperr"

var (
	ErrRecommendationNotFound = apperr.New(apperr.KindNotFound, "ai recommendation not found")
	ErrActionNotFound         = apperr.New(apperr.KindNotFound, "ai action not found")

	ErrRecommendationNotPending = apperr.New(apperr.KindPrecondition, "recommendation already decided")
	ErrActionNotCancelable      = apperr.New(apperr.KindPrecondition, "action is not in a cancelable state")
	ErrActionNotRequeueable     = apperr.New(apperr.KindPrecondition, "action is not in a requeueable state")
	ErrActionNotQueueable       = apperr.New(apperr.KindPrecondition, "action is not in a queueable state")
)
