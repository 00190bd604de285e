package reward

import (
	"rewards-controlplane/pkg/db"
	"rewards-controlplane/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("reward.service",
	db.AsModels(&Package{}, &Approval{}, &Feedback{}),
	fx.Provide(
		NewService,
	),
)

var Gateway = fx.Module("reward.gateway",
	fx.Provide(NewHandler),
	httpapi.AsRoutes(func(h *Handler) httpapi.Routes { return h.Register }),
)
