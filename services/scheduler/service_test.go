package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"rewards-controlplane/pkg/config"
	"rewards-controlplane/pkg/db/pagination"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/taskname"
	"rewards-controlplane/services/company"
	"rewards-controlplane/services/testutil"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T, enq *testutil.FakeEnqueuer) (*Service, *company.Service) {
	db := testutil.NewTestDB(t, &Job{}, &company.Company{})
	node := testutil.Node(t)
	companies := company.NewService(company.ServiceParams{DB: db, Node: node, Seq: &testutil.FakeSequence{}})
	return New(db, node, enq, companies), companies
}

func TestEnqueueAll(t *testing.T) {
	enq := &testutil.FakeEnqueuer{}
	svc, companies := newTestService(t, enq)
	ctx := context.Background()

	for _, name := range []string{"Acme", "Globex"} {
		_, err := companies.Create(ctx, company.CreateRequest{Name: name})
		require.NoError(t, err)
	}

	n, err := svc.EnqueueAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.ElementsMatch(t, []string{
		taskname.MilestoneExpirySweep, taskname.MilestoneAnniversaryScan, taskname.DetectionStaleReap,
		taskname.MilestoneExpirySweep, taskname.MilestoneAnniversaryScan, taskname.DetectionStaleReap,
	}, enq.Types())

	jobs, _, err := svc.ListJobs(ctx, JobPending, pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, jobs, 6)
}

func TestEnqueueFailureMarksJobFailed(t *testing.T) {
	svc, _ := newTestService(t, &testutil.FakeEnqueuer{Err: errors.New("redis down")})
	ctx := context.Background()

	_, err := svc.EnqueueCompany(ctx, taskname.MilestoneExpirySweep, "c1")
	require.True(t, errutil.Is(err, errutil.StatusInternal))

	jobs, _, err := svc.ListJobs(ctx, JobFailed, pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "redis down", jobs[0].ErrorMsg)

	_, err = svc.EnqueueCompany(ctx, "unknown:task", "c1")
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))
}

func TestTrackRecordsOutcome(t *testing.T) {
	enq := &testutil.FakeEnqueuer{}
	svc, _ := newTestService(t, enq)
	ctx := context.Background()

	ok, err := svc.EnqueueCompany(ctx, taskname.MilestoneExpirySweep, "c1")
	require.NoError(t, err)
	bad, err := svc.EnqueueCompany(ctx, taskname.MilestoneAnniversaryScan, "c1")
	require.NoError(t, err)

	handler := svc.Track(taskname.MilestoneExpirySweep, func(_ context.Context, companyID string) (any, error) {
		require.Equal(t, "c1", companyID)
		return map[string]int{"expired": 2}, nil
	})
	require.NoError(t, handler(ctx, enq.Tasks[0]))

	job, err := svc.GetJob(ctx, ok.ID)
	require.NoError(t, err)
	require.Equal(t, JobSuccess, job.Status)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)
	var meta map[string]int
	require.NoError(t, json.Unmarshal(job.Metadata, &meta))
	require.Equal(t, 2, meta["expired"])

	failing := svc.Track(taskname.MilestoneAnniversaryScan, func(context.Context, string) (any, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, failing(ctx, enq.Tasks[1]))

	job, err = svc.GetJob(ctx, bad.ID)
	require.NoError(t, err)
	require.Equal(t, JobFailed, job.Status)
	require.Equal(t, "boom", job.ErrorMsg)

	err = handler(ctx, asynq.NewTask(taskname.MilestoneExpirySweep, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSchedulerNextRun(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scheduler.Hour = 1
	s, err := NewScheduler(cfg, nil)
	require.NoError(t, err)

	base := time.Date(2026, 3, 10, 0, 30, 0, 0, time.Local)
	require.Equal(t, time.Date(2026, 3, 10, 1, 0, 0, 0, time.Local), s.Next(base))

	late := time.Date(2026, 3, 10, 2, 0, 0, 0, time.Local)
	require.Equal(t, time.Date(2026, 3, 11, 1, 0, 0, 0, time.Local), s.Next(late))

	cfg.Scheduler.Spec = "*/15 * * * *"
	s, err = NewScheduler(cfg, nil)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 10, 2, 15, 0, 0, time.Local), s.Next(late))

	cfg.Scheduler.Spec = "not a spec"
	_, err = NewScheduler(cfg, nil)
	require.Error(t, err)
}
