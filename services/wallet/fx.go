package wallet

import (
	"rewards-controlplane/pkg/db"
	"rewards-controlplane/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("wallet.service",
	db.AsModels(&Account{}, &Transaction{}),
	fx.Provide(
		NewService,
	),
)

var Gateway = fx.Module("wallet.gateway",
	fx.Provide(NewHandler),
	httpapi.AsRoutes(func(h *Handler) httpapi.Routes { return h.Register }),
)
