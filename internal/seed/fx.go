package seed

import "go.uber.org/fx"

// Module wires the dev-only demo seeder. Invocation stays with the composition root so
// production builds can leave it out entirely.
var Module = fx.Module("seed",
	fx.Provide(New),
)
