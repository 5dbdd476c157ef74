package accountdefaults

import "go.uber.org/fx"

// Module wires the account-defaults resolver.
var Module = fx.Module("accountdefaults",
	fx.Provide(New),
)
