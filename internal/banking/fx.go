package banking

import (
	"github.com/baytretail/core/internal/banking/domain"
	"github.com/baytretail/core/internal/banking/service"
	"github.com/baytretail/core/pkg/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module wires the bank reconciliation service.
var Module = fx.Module("banking",
	fx.Provide(
		func(db *gorm.DB) repository.Repository[domain.BankAccount] {
			return repository.ProvideStore[domain.BankAccount](db)
		},
		func(db *gorm.DB) repository.Repository[domain.BankStatementImportBatch] {
			return repository.ProvideStore[domain.BankStatementImportBatch](db)
		},
		func(db *gorm.DB) repository.Repository[domain.BankTransaction] {
			return repository.ProvideStore[domain.BankTransaction](db)
		},
		service.New,
	),
)
