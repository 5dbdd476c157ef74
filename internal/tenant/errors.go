package tenant

import "github.com/baytretail/core/internal/apperr"

var errPeriodLocked = apperr.New(apperr.KindPrecondition, "accounting period is locked for this date")
