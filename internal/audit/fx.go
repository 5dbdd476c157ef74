package audit

import (
	"github.com/baytretail/core/internal/audit/repository"
	"github.com/baytretail/core/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
