package detection

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Input starts one CycleWorkflow execution.
type Input struct {
	CycleID   string        `json:"cycle_id"`
	CompanyID string        `json:"company_id"`
	FastMode  bool          `json:"fast_mode"`
	StepDelay time.Duration `json:"step_delay"`
}

var activityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:        time.Second,
		BackoffCoefficient:     2.0,
		MaximumAttempts:        3,
		NonRetryableErrorTypes: []string{CancelledErrorType},
	},
}

// CycleWorkflow runs the five detection steps in order, pausing StepDelay
// after each one, then closes the cycle. A step error that survives the
// activity retries marks the cycle failed. A cycle cancelled in the database
// ends the workflow cleanly at its next write.
func CycleWorkflow(ctx workflow.Context, in Input) error {
	log := workflow.GetLogger(ctx)
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	var a *Activities
	for i, step := range Steps {
		si := StepInput{CycleID: in.CycleID, Step: step, Position: i}

		if err := workflow.ExecuteActivity(ctx, a.BeginStep, si).Get(ctx, nil); err != nil {
			return stop(ctx, in, step, err)
		}
		if err := workflow.ExecuteActivity(ctx, a.RunStep, si).Get(ctx, nil); err != nil {
			return stop(ctx, in, step, err)
		}
		if in.StepDelay > 0 {
			if err := workflow.Sleep(ctx, in.StepDelay); err != nil {
				return stop(ctx, in, step, err)
			}
		}
		if err := workflow.ExecuteActivity(ctx, a.EndStep, si).Get(ctx, nil); err != nil {
			return stop(ctx, in, step, err)
		}
		log.Info("detection step completed", "cycle_id", in.CycleID, "step", string(step))
	}

	if err := workflow.ExecuteActivity(ctx, a.Complete, in.CycleID).Get(ctx, nil); err != nil {
		return stop(ctx, in, StateGeneratingRewards, err)
	}

	log.Info("detection cycle completed", "cycle_id", in.CycleID)
	return nil
}

func stop(ctx workflow.Context, in Input, step State, err error) error {
	log := workflow.GetLogger(ctx)

	if temporal.IsCanceledError(err) {
		log.Info("detection workflow cancelled", "cycle_id", in.CycleID, "step", string(step))
		return err
	}
	if IsCancelled(err) {
		log.Info("detection cycle cancelled", "cycle_id", in.CycleID, "step", string(step))
		return nil
	}

	var a *Activities
	fail := FailInput{CycleID: in.CycleID, Step: step, Message: message(err)}
	if ferr := workflow.ExecuteActivity(ctx, a.Fail, fail).Get(ctx, nil); ferr != nil {
		log.Error("failed to record detection failure", "cycle_id", in.CycleID, "error", ferr)
	}
	log.Error("detection cycle failed", "cycle_id", in.CycleID, "step", string(step), "error", err)
	return err
}

// IsCancelled reports whether err came from a cycle that was cancelled in
// the database.
func IsCancelled(err error) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == CancelledErrorType
}

func message(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
