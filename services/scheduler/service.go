package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rewards-controlplane/pkg/db/option"
	"rewards-controlplane/pkg/db/pagination"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/repository"
	"rewards-controlplane/pkg/task"
	"rewards-controlplane/pkg/taskname"
	"rewards-controlplane/services/company"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Sweeps are the tasks the daily loop enqueues for every company.
var Sweeps = []string{
	taskname.MilestoneExpirySweep,
	taskname.MilestoneAnniversaryScan,
	taskname.DetectionStaleReap,
}

// Companies lists tenants page by page.
type Companies interface {
	List(ctx context.Context, page pagination.Pagination) ([]*company.Company, *pagination.PageInfo, error)
}

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	enqueuer  task.Enqueuer
	companies Companies
	jobs      repository.Repository[Job]
}

type Params struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Enqueuer  task.Enqueuer `optional:"true"`
	Companies *company.Service
}

func NewService(p Params) *Service {
	return New(p.DB, p.Node, p.Enqueuer, p.Companies)
}

func New(db *gorm.DB, node *snowflake.Node, enqueuer task.Enqueuer, companies Companies) *Service {
	return &Service{
		db:        db,
		node:      node,
		enqueuer:  enqueuer,
		companies: companies,
		jobs:      repository.ProvideStore[Job](db),
	}
}

func known(name string) bool {
	for _, s := range Sweeps {
		if s == name {
			return true
		}
	}
	return false
}

// EnqueueCompany creates a pending job record and sends the task to asynq.
func (s *Service) EnqueueCompany(ctx context.Context, taskName, companyID string) (*Job, error) {
	zapLog := logger.FromContext(ctx)

	if !known(taskName) {
		return nil, errutil.BadRequest(fmt.Sprintf("unknown task %q", taskName), nil)
	}
	if s.enqueuer == nil {
		return nil, errutil.Internal("task queue not configured", nil)
	}

	job := &Job{
		ID:        s.node.Generate().String(),
		TaskName:  taskName,
		CompanyID: companyID,
		Status:    JobPending,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		zapLog.Error("failed to create job record", zap.Error(err))
		return nil, errutil.Internal("failed to create job", err)
	}

	t, err := task.NewJSONTask(taskName, Payload{CompanyID: companyID, JobID: job.ID})
	if err != nil {
		return nil, errutil.Internal("failed to build task", err)
	}
	if _, err := s.enqueuer.Enqueue(ctx, t, asynq.Queue(taskname.QueueLow), asynq.MaxRetry(3)); err != nil {
		zapLog.Error("failed to enqueue task", zap.String("task_name", taskName), zap.String("company_id", companyID), zap.Error(err))
		s.fail(ctx, job.ID, err)
		return nil, errutil.Internal("failed to enqueue task", err)
	}

	zapLog.Info("enqueued sweep job",
		zap.String("task_name", taskName),
		zap.String("company_id", companyID),
		zap.String("job_id", job.ID),
	)
	return job, nil
}

// EnqueueAll enqueues every sweep for every company and returns how many
// jobs were created. Per-company failures are logged and skipped.
func (s *Service) EnqueueAll(ctx context.Context) (int, error) {
	cursor := ""
	total := 0

	for {
		companies, info, err := s.companies.List(ctx, pagination.Pagination{Cursor: cursor, Limit: 250})
		if err != nil {
			return total, err
		}
		if len(companies) == 0 {
			break
		}

		counts := make([]int, len(companies))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(8)
		for i, c := range companies {
			g.Go(func() error {
				for _, name := range Sweeps {
					if _, err := s.EnqueueCompany(gctx, name, c.ID); err != nil {
						zap.L().Error("failed enqueue sweep", zap.String("company_id", c.ID), zap.String("task_name", name), zap.Error(err))
						continue
					}
					counts[i]++
				}
				return nil
			})
		}
		_ = g.Wait()
		for _, n := range counts {
			total += n
		}

		if info == nil || !info.HasMore {
			break
		}
		cursor = info.NextCursor
	}

	zap.L().Info("finished enqueue all sweeps", zap.Int("jobs", total))
	return total, nil
}

// Track wraps a sweep handler so its job record moves through
// running and then success or failed. The run's result is stored as
// job metadata.
func (s *Service) Track(name string, run func(ctx context.Context, companyID string) (any, error)) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		payload, err := task.DecodeJSON[Payload](t)
		if err != nil {
			zap.L().Error("invalid sweep payload", zap.String("task_type", t.Type()), zap.Error(err))
			return err
		}

		zapLog := zap.L().With(
			zap.String("task_type", name),
			zap.String("company_id", payload.CompanyID),
			zap.String("job_id", payload.JobID),
		)
		zapLog.Info("start sweep task")

		now := time.Now()
		if payload.JobID != "" {
			if err := s.jobs.Update(ctx, payload.JobID, map[string]any{
				"status":     JobRunning,
				"started_at": now,
			}); err != nil {
				zapLog.Warn("failed to mark job running", zap.Error(err))
			}
		}

		result, err := run(ctx, payload.CompanyID)
		if err != nil {
			zapLog.Error("sweep task failed", zap.Error(err))
			if payload.JobID != "" {
				s.fail(ctx, payload.JobID, err)
			}
			return err
		}

		if payload.JobID != "" {
			updates := map[string]any{
				"status":       JobSuccess,
				"completed_at": time.Now(),
			}
			if b, err := json.Marshal(result); err == nil {
				updates["metadata"] = datatypes.JSON(b)
			}
			if err := s.jobs.Update(ctx, payload.JobID, updates); err != nil {
				zapLog.Warn("failed to mark job success", zap.Error(err))
			}
		}
		zapLog.Info("finished sweep task", zap.Duration("duration", time.Since(now)))
		return nil
	}
}

func (s *Service) fail(ctx context.Context, jobID string, cause error) {
	if err := s.jobs.Update(ctx, jobID, map[string]any{
		"status":       JobFailed,
		"error_msg":    cause.Error(),
		"completed_at": time.Now(),
	}); err != nil {
		zap.L().Warn("failed to mark job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *Service) ListJobs(ctx context.Context, status JobStatus, page pagination.Pagination) ([]*Job, *pagination.PageInfo, error) {
	query := &Job{}
	if status != "" {
		query.Status = status
	}
	rows, err := s.jobs.Find(ctx, query,
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.ApplyPagination(page),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list jobs", zap.Error(err))
		return nil, nil, errutil.Internal("failed to list jobs", err)
	}

	out, info := pagination.Trim(rows, page.Limit, func(j *Job) pagination.Cursor {
		return pagination.CursorFrom(j.CreatedAt, j.ID)
	})
	return out, info, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	job, err := s.jobs.FindOne(ctx, &Job{ID: id})
	if err != nil {
		return nil, errutil.Internal("failed to get job", err)
	}
	if job == nil {
		return nil, errutil.NotFound("job not found", nil)
	}
	return job, nil
}
