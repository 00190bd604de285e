package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
)

// Node returns a snowflake node for tests.
func Node(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	return node
}

// FakeEnqueuer records enqueued tasks instead of talking to redis.
type FakeEnqueuer struct {
	mu    sync.Mutex
	Tasks []*asynq.Task
	Err   error
}

func (f *FakeEnqueuer) Enqueue(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tasks = append(f.Tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

// Types lists the enqueued task types in order.
func (f *FakeEnqueuer) Types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Tasks))
	for _, t := range f.Tasks {
		out = append(out, t.Type())
	}
	return out
}

// FakeSequence hands out deterministic codes.
type FakeSequence struct {
	mu sync.Mutex
	n  int
}

func (f *FakeSequence) next(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("%s-%04d", prefix, f.n)
}

func (f *FakeSequence) NextCompanyCode(context.Context) (string, error) { return f.next("C"), nil }

func (f *FakeSequence) NextPackageCode(context.Context, string) (string, error) {
	return f.next("PKG"), nil
}

func (f *FakeSequence) NextTransactionCode(context.Context, string) (string, error) {
	return f.next("TXN"), nil
}
