package config

import "go.uber.org/fx"

// Module wires application configuration and the hot-reloadable AP 3-way-match thresholds.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewMatchConfigHolder,
	),
)
