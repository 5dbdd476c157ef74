package events

import "go.uber.org/fx"

// Module wires the durable outbox publisher.
var Module = fx.Module("events",
	fx.Provide(NewOutbox),
)
