package task

import (
	"context"
	"fmt"
	"time"

	"rewards-controlplane/pkg/config"
	"rewards-controlplane/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

var Client = fx.Module("asynq:client",
	fx.Provide(newClient, NewEnqueuer),
)

func newClient(lc fx.Lifecycle, cfg *config.Config) (*asynq.Client, error) {
	client := asynq.NewClient(redisOpt(cfg))
	if err := client.Ping(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("asynq ping %s: %w", cfg.Redis.Addr, err)
	}
	zap.L().Info("asynq client connected", zap.String("addr", cfg.Redis.Addr))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

var Server = fx.Module("asynq:server",
	fx.Provide(newServeMux),
	fx.Invoke(runServer),
)

// Route binds a task type to its handler. Service modules contribute routes
// through the "asynq.routes" value group.
type Route struct {
	Pattern string
	Handler asynq.HandlerFunc
}

func AsRoute(f any) any {
	return fx.Annotate(f, fx.ResultTags(`group:"asynq.routes"`))
}

type muxParams struct {
	fx.In
	Routes []Route `group:"asynq.routes"`
}

func newServeMux(p muxParams) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(logTask)
	for _, r := range p.Routes {
		mux.HandleFunc(r.Pattern, r.Handler)
		zap.L().Info("asynq route registered", zap.String("task_type", r.Pattern))
	}
	return mux
}

func logTask(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		fields := []zap.Field{zap.String("task_type", t.Type()), zap.Duration("duration", time.Since(start))}
		if id, ok := asynq.GetTaskID(ctx); ok {
			fields = append(fields, zap.String("task_id", id))
		}
		if err != nil {
			zap.L().Warn("task attempt failed", append(fields, zap.Error(err))...)
		} else {
			zap.L().Debug("task processed", fields...)
		}
		return err
	})
}

func runServer(lc fx.Lifecycle, cfg *config.Config, mux *asynq.ServeMux) {
	server := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency:    10,
		RetryDelayFunc: asynq.DefaultRetryDelayFunc,
		Queues: map[string]int{
			taskname.QueueCritical: 10,
			taskname.QueueDefault:  5,
			taskname.QueueLow:      3,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, t *asynq.Task, err error) {
			zap.L().Error("asynq task failed", zap.String("task_type", t.Type()), zap.Error(err))
		}),
	})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := server.Start(mux); err != nil {
				return fmt.Errorf("start asynq server: %w", err)
			}
			zap.L().Info("asynq server started", zap.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(context.Context) error {
			server.Shutdown()
			return nil
		},
	})
}
