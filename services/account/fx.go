package account

import (
	"rewards-controlplane/pkg/db"
	"rewards-controlplane/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	db.AsModels(&Profile{}, &UserRole{}, &EmployeePreference{}),
	fx.Provide(NewService),
)

var Gateway = fx.Module("account.gateway",
	fx.Provide(NewHandler),
	httpapi.AsRoutes(func(h *Handler) httpapi.Routes { return h.Register }),
)
