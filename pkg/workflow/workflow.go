package workflow

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"rewards-controlplane/pkg/config"

	"go.temporal.io/sdk/client"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

var ProvideClient = fx.Module("temporal",
	fx.Provide(NewClient),
	fx.Invoke(Close),
)

type TaskQueue string

const DetectionTaskQueue TaskQueue = "DETECTION_TASK_QUEUE"

func (t TaskQueue) String() string {
	return string(t)
}

// QueueFor returns TEMPORAL.TASK_QUEUE, or the detection queue when unset.
func QueueFor(cfg *config.Config) TaskQueue {
	if cfg.Temporal.TaskQueue != "" {
		return TaskQueue(cfg.Temporal.TaskQueue)
	}
	return DetectionTaskQueue
}

const (
	dialAttempts = 3
	dialBackoff  = 2 * time.Second
)

func clientOptions(cfg *config.Config) client.Options {
	creds := insecure.NewCredentials()
	if cfg.TLS.Enable {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return client.Options{
		HostPort:  cfg.Temporal.Addr,
		Namespace: cfg.Temporal.Namespace,
		Identity:  fmt.Sprintf("%s@%d", cfg.AppName, cfg.NodeID),
		ConnectionOptions: client.ConnectionOptions{
			KeepAliveTime:    30 * time.Second,
			KeepAliveTimeout: 30 * time.Second,
			DialOptions:      []grpc.DialOption{grpc.WithTransportCredentials(creds)},
		},
		Logger: NewZapAdapter(zap.L().Named("temporal")),
	}
}

// NewClient dials temporal, retrying a few times while the frontend starts.
func NewClient(cfg *config.Config) (client.Client, error) {
	opts := clientOptions(cfg)

	var err error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		var c client.Client
		if c, err = client.Dial(opts); err == nil {
			zap.L().Info("connected to temporal",
				zap.String("addr", opts.HostPort),
				zap.String("namespace", opts.Namespace))
			return c, nil
		}
		zap.L().Warn("temporal dial failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < dialAttempts {
			time.Sleep(dialBackoff)
		}
	}
	return nil, fmt.Errorf("dial temporal %s: %w", opts.HostPort, err)
}

func Close(lc fx.Lifecycle, c client.Client) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			c.Close()
			return nil
		},
	})
}
