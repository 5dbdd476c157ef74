// Package ai wires the recommendation/action review queue: every agent writes into the same
// two tables, so what this package needs from the rest of the graph is a read path into
// catalog and batch for the reorder generator, the purchasing slice the executor
// materializes draft orders through, and an audit sink for decisions.
package ai

import (
	"github.com/baytretail/core/internal/ai/domain"
	"github.com/baytretail/core/internal/ai/repository"
	"github.com/baytretail/core/internal/ai/service"
	purchasingservice "github.com/baytretail/core/internal/purchasing/service"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("ai",
	fx.Provide(
		func(db *gorm.DB) domain.Repository { return repository.New(db) },
		func(p *purchasingservice.Service) service.DraftPOCreator { return p },
		service.New,
	),
)
