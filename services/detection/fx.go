package detection

import (
	"rewards-controlplane/pkg/db"
	"rewards-controlplane/pkg/httpapi"
	"rewards-controlplane/pkg/task"
	"rewards-controlplane/pkg/workflow"

	"go.uber.org/fx"
)

var Module = fx.Module("detection.service",
	db.AsModels(&Cycle{}, &Step{}),
	fx.Provide(
		NewStarter,
		NewService,
	),
)

// Worker registers the cycle workflow and its activities with the temporal
// worker.
var Worker = fx.Module("detection.worker",
	fx.Provide(
		NewActivities,
		workflow.AsRegistration(func(a *Activities) workflow.Registration {
			return workflow.Registration{
				Workflows:  []any{CycleWorkflow},
				Activities: []any{a},
			}
		}),
	),
)

// Tasks registers the stale cycle sweep on the asynq worker.
var Tasks = fx.Module("detection.tasks",
	fx.Provide(
		task.AsRoute(StaleReapRoute),
	),
)

var Gateway = fx.Module("detection.gateway",
	fx.Provide(NewHandler),
	httpapi.AsRoutes(func(h *Handler) httpapi.Routes { return h.Register }),
)
