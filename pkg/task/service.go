package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer is the producer side of the asynq queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// defaultOptions go first so per-call options override them.
var defaultOptions = []asynq.Option{
	asynq.Queue(taskname.QueueDefault),
	asynq.Retention(24 * time.Hour),
}

type clientEnqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) Enqueuer {
	return &clientEnqueuer{client: client}
}

func (e *clientEnqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	all := append(append([]asynq.Option{}, defaultOptions...), opts...)
	info, err := e.client.EnqueueContext(ctx, task, all...)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	logger.FromContext(ctx).Debug("task enqueued",
		zap.String("task_type", task.Type()),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return info, nil
}

// NewJSONTask marshals payload and wraps it in an asynq task.
func NewJSONTask(typename string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typename, err)
	}
	return asynq.NewTask(typename, b, opts...), nil
}

// DecodeJSON unmarshals a task payload. A malformed payload never becomes
// valid on retry, so the error wraps asynq.SkipRetry.
func DecodeJSON[T any](t *asynq.Task) (T, error) {
	var out T
	if err := json.Unmarshal(t.Payload(), &out); err != nil {
		return out, fmt.Errorf("invalid %s payload: %w: %w", t.Type(), err, asynq.SkipRetry)
	}
	return out, nil
}
