package purchasing

import (
	"github.com/baytretail/core/internal/purchasing/domain"
	"github.com/baytretail/core/internal/purchasing/repository"
	"github.com/baytretail/core/internal/purchasing/service"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module wires the purchasing state machine's repository and service.
var Module = fx.Module("purchasing",
	fx.Provide(
		func(db *gorm.DB) domain.Repository { return repository.New(db) },
		service.New,
	),
)
