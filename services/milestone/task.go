package milestone

import (
	"context"
	"time"

	"rewards-controlplane/pkg/task"
	"rewards-controlplane/pkg/taskname"
	"rewards-controlplane/services/scheduler"
)

func ExpirySweepRoute(s *Service, jobs *scheduler.Service) task.Route {
	return task.Route{
		Pattern: taskname.MilestoneExpirySweep,
		Handler: jobs.Track(taskname.MilestoneExpirySweep, func(ctx context.Context, companyID string) (any, error) {
			n, err := s.ExpireOverdue(ctx, companyID, time.Now())
			return SweepResult{Expired: n}, err
		}),
	}
}

func AnniversaryScanRoute(s *Service, jobs *scheduler.Service) task.Route {
	return task.Route{
		Pattern: taskname.MilestoneAnniversaryScan,
		Handler: jobs.Track(taskname.MilestoneAnniversaryScan, func(ctx context.Context, companyID string) (any, error) {
			n, err := s.ScanAnniversaries(ctx, companyID, time.Now())
			return SweepResult{Created: n}, err
		}),
	}
}
