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
	"rewards-controlplane/pkg/health"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/minio"
	"rewards-controlplane/pkg/otelcol"
	"rewards-controlplane/pkg/redis"
	"rewards-controlplane/pkg/security"
	"rewards-controlplane/pkg/sequence"
	"rewards-controlplane/pkg/server"
	"rewards-controlplane/pkg/task"
	"rewards-controlplane/pkg/workflow"
	"rewards-controlplane/services/account"
	"rewards-controlplane/services/company"
	"rewards-controlplane/services/detection"
	"rewards-controlplane/services/imagegen"
	"rewards-controlplane/services/milestone"
	"rewards-controlplane/services/scheduler"
	"rewards-controlplane/services/wallet"
)

// The worker runs detection workflows on temporal, the asynq sweep handlers
// and the daily scheduler. Probes are served over gRPC health.
func main() {
	opts := []fx.Option{
		secretmanager.Module,
		configModule(),
		logger.Module,
		otelcol.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		gen.Module,
		security.Module,
		featureflags.Module,
		minio.Client,
		ai.Module,
		task.Client,
		task.Server,
		workflow.ProvideClient,
		workflow.ProvideWorker,
		health.Module,
		server.ProvideGRPCServer,

		company.Module,
		account.Module,
		wallet.Module,
		milestone.Module,
		milestone.Tasks,
		imagegen.Module,
		detection.Module,
		detection.Worker,
		detection.Tasks,
		scheduler.Module,
		scheduler.Daemon,
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
	return fxevent.NopLogger
})
