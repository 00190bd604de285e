package wellness

import (
	"rewards-controlplane/pkg/db"
	"rewards-controlplane/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("wellness.service",
	db.AsModels(&Score{}, &Prediction{}),
	fx.Provide(
		NewService,
	),
)

var Gateway = fx.Module("wellness.gateway",
	fx.Provide(NewHandler),
	httpapi.AsRoutes(func(h *Handler) httpapi.Routes { return h.Register }),
)
