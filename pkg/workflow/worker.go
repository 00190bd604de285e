package workflow

import (
	"context"

	"rewards-controlplane/pkg/config"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ProvideWorker = fx.Module("temporal.worker",
	fx.Invoke(runWorker),
)

// Registration is what a service contributes to the worker: workflow
// functions and activity structs or functions.
type Registration struct {
	Workflows  []any
	Activities []any
}

func AsRegistration(f any) any {
	return fx.Annotate(f, fx.ResultTags(`group:"temporal.registrations"`))
}

type workerParams struct {
	fx.In
	Lifecycle     fx.Lifecycle
	Config        *config.Config
	Client        client.Client
	Registrations []Registration `group:"temporal.registrations"`
}

func runWorker(p workerParams) {
	queue := QueueFor(p.Config)
	w := worker.New(p.Client, queue.String(), worker.Options{})

	for _, r := range p.Registrations {
		for _, wf := range r.Workflows {
			w.RegisterWorkflow(wf)
		}
		for _, act := range r.Activities {
			w.RegisterActivity(act)
		}
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			zap.L().Info("starting temporal worker", zap.String("task_queue", queue.String()))
			return w.Start()
		},
		OnStop: func(ctx context.Context) error {
			w.Stop()
			return nil
		},
	})
}
