package inquiry

import (
	"rewards-controlplane/pkg/db"
	"rewards-controlplane/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("inquiry.service",
	db.AsModels(&Inquiry{}),
	fx.Provide(NewService),
)

var Gateway = fx.Module("inquiry.gateway",
	fx.Provide(NewHandler),
	httpapi.AsRoutes(func(h *Handler) httpapi.Routes { return h.Register }),
)
