package catalog

import (
	"github.com/baytretail/core/internal/catalog/domain"
	"github.com/baytretail/core/internal/catalog/service"
	"github.com/baytretail/core/pkg/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module wires the catalog (item/warehouse/tax-code) master-data service.
var Module = fx.Module("catalog",
	fx.Provide(
		func(db *gorm.DB) repository.Repository[domain.Item] { return repository.ProvideStore[domain.Item](db) },
		func(db *gorm.DB) repository.Repository[domain.Warehouse] {
			return repository.ProvideStore[domain.Warehouse](db)
		},
		func(db *gorm.DB) repository.Repository[domain.TaxCode] { return repository.ProvideStore[domain.TaxCode](db) },
		func(db *gorm.DB) repository.Repository[domain.SupplierItemAlias] {
			return repository.ProvideStore[domain.SupplierItemAlias](db)
		},
		func(db *gorm.DB) repository.Repository[domain.ItemSupplier] {
			return repository.ProvideStore[domain.ItemSupplier](db)
		},
		service.New,
	),
)
