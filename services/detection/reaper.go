package detection

import (
	"context"

	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/task"
	"rewards-controlplane/pkg/taskname"
	"rewards-controlplane/services/scheduler"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const staleMessage = "cycle timed out"

// ReapResult is stored on the sweep job.
type ReapResult struct {
	Failed int `json:"failed"`
}

// ReapStale fails cycles of companyID that have not moved for longer than the
// stale window. This releases the single-running slot when a workflow was
// lost. Each row is guarded by its version so a cycle that advances in the
// meantime is left alone.
func (s *Service) ReapStale(ctx context.Context, companyID string) (int, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("company_id", companyID))
	cutoff := s.now().Add(-s.stale)

	var stale []*Cycle
	if err := s.db.WithContext(ctx).
		Where("company_id = ? AND state NOT IN ? AND updated_at < ?", companyID, []State{StateCompleted, StateFailed, StateCancelled}, cutoff).
		Find(&stale).Error; err != nil {
		zapLog.Error("failed to find stale detection cycles", zap.Error(err))
		return 0, errutil.Internal("failed to find stale detection cycles", err)
	}

	reaped := 0
	for _, c := range stale {
		ok, err := s.reap(ctx, c)
		if err != nil {
			zapLog.Error("failed to reap detection cycle", zap.String("cycle_id", c.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		reaped++
		if c.WorkflowID != "" {
			if err := s.starter.Cancel(ctx, c.WorkflowID); err != nil {
				zapLog.Warn("failed to cancel stale workflow", zap.String("workflow_id", c.WorkflowID), zap.Error(err))
			}
		}
		zapLog.Info("stale detection cycle failed", zap.String("cycle_id", c.ID), zap.String("from_state", string(c.State)))
	}
	return reaped, nil
}

func (s *Service) reap(ctx context.Context, c *Cycle) (bool, error) {
	now := s.now()
	affected := int64(0)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Cycle{}).
			Where("id = ? AND version = ?", c.ID, c.Version).
			Updates(map[string]any{
				"state":         StateFailed,
				"error_message": staleMessage,
				"completed_at":  now,
				"version":       gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		if affected == 0 {
			return nil
		}
		return tx.Model(&Step{}).
			Where("cycle_id = ? AND status = ?", c.ID, StepInProgress).
			Updates(map[string]any{"status": StepFailed, "ended_at": now}).Error
	})
	return affected == 1, err
}

// StaleReapRoute runs ReapStale from the daily sweep.
func StaleReapRoute(s *Service, jobs *scheduler.Service) task.Route {
	return task.Route{
		Pattern: taskname.DetectionStaleReap,
		Handler: jobs.Track(taskname.DetectionStaleReap, func(ctx context.Context, companyID string) (any, error) {
			n, err := s.ReapStale(ctx, companyID)
			return ReapResult{Failed: n}, err
		}),
	}
}
