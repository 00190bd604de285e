package recommendation

import (
	"rewards-controlplane/pkg/db"
	"rewards-controlplane/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("recommendation.service",
	db.AsModels(&Recommendation{}),
	fx.Provide(NewService),
)

var Gateway = fx.Module("recommendation.gateway",
	fx.Provide(NewHandler),
	httpapi.AsRoutes(func(h *Handler) httpapi.Routes { return h.Register }),
)
