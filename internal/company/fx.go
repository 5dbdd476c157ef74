package company

import (
	"github.com/baytretail/core/internal/company/domain"
	"github.com/baytretail/core/internal/company/repository"
	"github.com/baytretail/core/internal/company/service"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module wires the company (tenant root) repository and service.
var Module = fx.Module("company",
	fx.Provide(
		func(db *gorm.DB) domain.Repository { return repository.New(db) },
		service.New,
	),
)
