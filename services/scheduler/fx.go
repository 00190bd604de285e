package scheduler

import (
	"rewards-controlplane/pkg/db"
	"rewards-controlplane/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("scheduler.service",
	db.AsModels(&Job{}),
	fx.Provide(
		NewService,
	),
)

// Daemon runs the daily enqueue loop. Only the worker process includes it.
var Daemon = fx.Module("scheduler.daemon",
	fx.Provide(NewScheduler),
	fx.Invoke(StartScheduler),
)

var Gateway = fx.Module("scheduler.gateway",
	fx.Provide(NewHandler),
	httpapi.AsRoutes(func(h *Handler) httpapi.Routes { return h.Register }),
)
