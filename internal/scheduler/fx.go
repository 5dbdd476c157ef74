package scheduler

import (
	"context"

	"github.com/baytretail/core/internal/config"
	"github.com/baytretail/core/pkg/telemetry"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(telemetry.NewMetrics),
	fx.Provide(New),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, sched *Scheduler, cfg config.Config) {
	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			sched.StartPosOutboxListener(runCtx, cfg.DatabaseURL)
			go sched.RunForever(runCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}
