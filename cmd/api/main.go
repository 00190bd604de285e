package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"rewards-controlplane/pkg/ai"
	"rewards-controlplane/pkg/config"
	"rewards-controlplane/pkg/db"
	"rewards-controlplane/pkg/featureflags"
	"rewards-controlplane/pkg/gen"
	"rewards-controlplane/pkg/hashistack/secretmanager"
	"rewards-controlplane/pkg/hashistack/servicediscover"
	"rewards-controlplane/pkg/health"
	"rewards-controlplane/pkg/httpapi"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/middleware"
	"rewards-controlplane/pkg/minio"
	"rewards-controlplane/pkg/otelcol"
	"rewards-controlplane/pkg/profiling"
	"rewards-controlplane/pkg/realtime"
	"rewards-controlplane/pkg/redis"
	"rewards-controlplane/pkg/security"
	"rewards-controlplane/pkg/sequence"
	"rewards-controlplane/pkg/server"
	"rewards-controlplane/pkg/task"
	"rewards-controlplane/pkg/workflow"
	"rewards-controlplane/services/account"
	"rewards-controlplane/services/bootstrap"
	"rewards-controlplane/services/company"
	"rewards-controlplane/services/detection"
	"rewards-controlplane/services/imagegen"
	"rewards-controlplane/services/inquiry"
	"rewards-controlplane/services/milestone"
	"rewards-controlplane/services/recommendation"
	"rewards-controlplane/services/reward"
	"rewards-controlplane/services/scheduler"
	"rewards-controlplane/services/wallet"
	"rewards-controlplane/services/wellness"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		configModule(),
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		gen.Module,
		security.Module,
		middleware.Module,
		featureflags.Module,
		minio.Client,
		ai.Module,
		realtime.Module,
		task.Client,
		workflow.ProvideClient,
		health.Module,
		httpapi.Module,
		server.ProvideHTTPServer,
		servicediscover.Module,

		company.Module,
		company.Gateway,
		account.Module,
		account.Gateway,
		wallet.Module,
		wallet.Gateway,
		milestone.Module,
		milestone.Gateway,
		reward.Module,
		reward.Gateway,
		wellness.Module,
		wellness.Gateway,
		imagegen.Module,
		imagegen.Gateway,
		detection.Module,
		detection.Gateway,
		recommendation.Module,
		recommendation.Gateway,
		inquiry.Module,
		inquiry.Gateway,
		scheduler.Module,
		scheduler.Gateway,
		bootstrap.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

func configModule() fx.Option {
	if config.UseRemote() {
		return config.RemoteModule
	}
	return config.Module
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "development" {
		return &fxevent.ZapLogger{Logger: logger}
	}
	return fxevent.NopLogger
})
