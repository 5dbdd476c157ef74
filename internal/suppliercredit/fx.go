package suppliercredit

import (
	"github.com/baytretail/core/internal/suppliercredit/domain"
	"github.com/baytretail/core/internal/suppliercredit/repository"
	"github.com/baytretail/core/internal/suppliercredit/service"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module wires the supplier credit engine's repository and service.
var Module = fx.Module("suppliercredit",
	fx.Provide(
		func(db *gorm.DB) domain.Repository { return repository.New(db) },
		service.New,
	),
)
