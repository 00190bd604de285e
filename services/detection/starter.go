package detection

import (
	"context"

	"rewards-controlplane/pkg/config"
	"rewards-controlplane/pkg/workflow"

	"go.temporal.io/sdk/client"
)

// Starter hands a cycle to the background runner.
type Starter interface {
	Start(ctx context.Context, in Input) (string, error)
	Cancel(ctx context.Context, workflowID string) error
}

type temporalStarter struct {
	client client.Client
	queue  workflow.TaskQueue
}

func NewStarter(c client.Client, cfg *config.Config) Starter {
	return &temporalStarter{client: c, queue: workflow.QueueFor(cfg)}
}

func WorkflowID(cycleID string) string {
	return "detection-cycle-" + cycleID
}

func (s *temporalStarter) Start(ctx context.Context, in Input) (string, error) {
	run, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(in.CycleID),
		TaskQueue: s.queue.String(),
	}, CycleWorkflow, in)
	if err != nil {
		return "", err
	}
	return run.GetID(), nil
}

func (s *temporalStarter) Cancel(ctx context.Context, workflowID string) error {
	return s.client.CancelWorkflow(ctx, workflowID, "")
}
