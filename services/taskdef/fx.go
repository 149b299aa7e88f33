package taskdef

import (
	"go.uber.org/fx"
)

var Module = fx.Module("taskdef.service",
	fx.Provide(
		NewRepository,
		NewService,
	),
)
