package dispatch

import (
	"context"

	"go.uber.org/fx"

	"reportplane/services/runner"
)

var Module = fx.Module("dispatch.service",
	fx.Provide(
		func(s *runner.Service) TaskRunner { return s },
		NewDispatcher,
	),
	fx.Invoke(StartDispatcher),
)

// StartDispatcher is invoked by FX on service start.
func StartDispatcher(lc fx.Lifecycle, d *Dispatcher) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			d.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Stop()
			return nil
		},
	})
}
