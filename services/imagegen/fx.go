package imagegen

import (
	"rewards-controlplane/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("imagegen.service",
	fx.Provide(NewService),
)

var Gateway = fx.Module("imagegen.gateway",
	fx.Provide(NewHandler),
	httpapi.AsRoutes(func(h *Handler) httpapi.Routes { return h.Register }),
)
