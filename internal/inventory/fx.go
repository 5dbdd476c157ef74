package inventory

import (
	"github.com/baytretail/core/internal/inventory/service"
	"go.uber.org/fx"
)

// Module wires the inventory mutator service.
var Module = fx.Module("inventory",
	fx.Provide(service.New),
)
