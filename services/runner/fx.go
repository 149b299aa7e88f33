package runner

import (
	"go.uber.org/fx"
)

var Module = fx.Module("runner.service",
	fx.Provide(
		NewService,
	),
)
