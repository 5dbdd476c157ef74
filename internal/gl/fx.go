package gl

import (
	"github.com/baytretail/core/internal/accountdefaults"
	"github.com/baytretail/core/internal/gl/domain"
	"github.com/baytretail/core/internal/gl/repository"
	"github.com/baytretail/core/internal/gl/service"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module wires the GL posting engine's repository and service.
var Module = fx.Module("gl",
	fx.Provide(
		func(db *gorm.DB) domain.Repository { return repository.New(db) },
		func(r *accountdefaults.Resolver) service.AccountResolver { return r },
		service.New,
	),
)
