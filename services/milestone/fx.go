package milestone

import (
	"rewards-controlplane/pkg/db"
	"rewards-controlplane/pkg/httpapi"
	"rewards-controlplane/pkg/task"

	"go.uber.org/fx"
)

var Module = fx.Module("milestone.service",
	db.AsModels(&Milestone{}, &HRISEvent{}),
	fx.Provide(
		NewService,
	),
)

// Tasks registers the sweep handlers on the asynq worker.
var Tasks = fx.Module("milestone.tasks",
	fx.Provide(
		task.AsRoute(ExpirySweepRoute),
		task.AsRoute(AnniversaryScanRoute),
	),
)

var Gateway = fx.Module("milestone.gateway",
	fx.Provide(NewHandler),
	httpapi.AsRoutes(func(h *Handler) httpapi.Routes { return h.Register }),
)
