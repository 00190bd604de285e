package company

import (
	"rewards-controlplane/pkg/db"
	"rewards-controlplane/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("company.service",
	db.AsModels(&Company{}),
	fx.Provide(
		NewService,
	),
)

var Gateway = fx.Module("company.gateway",
	fx.Provide(NewHandler),
	httpapi.AsRoutes(func(h *Handler) httpapi.Routes { return h.Register }),
)
