package batch

import (
	"github.com/baytretail/core/internal/batch/domain"
	"github.com/baytretail/core/internal/batch/repository"
	"github.com/baytretail/core/internal/batch/service"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module wires the batch/cost-layer engine's repository and service.
var Module = fx.Module("batch",
	fx.Provide(
		func(db *gorm.DB) domain.Repository { return repository.New(db) },
		service.New,
	),
)
