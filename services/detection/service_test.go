package detection

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"rewards-controlplane/pkg/db/pagination"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/featureflags"
	"rewards-controlplane/pkg/workflow"
	"rewards-controlplane/services/account"
	"rewards-controlplane/services/company"
	"rewards-controlplane/services/milestone"
	"rewards-controlplane/services/testutil"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeEmployees struct {
	profiles []*account.Profile
	prefs    map[string]*account.EmployeePreference
}

func (f *fakeEmployees) CompanyEmployees(_ context.Context, companyID string) ([]*account.Profile, error) {
	var out []*account.Profile
	for _, p := range f.profiles {
		if p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeEmployees) GetPreferences(_ context.Context, employeeID string) (*account.EmployeePreference, error) {
	return f.prefs[employeeID], nil
}

type fakeMilestones map[string][]*milestone.Milestone

func (f fakeMilestones) ForEmployee(_ context.Context, employeeID string) ([]*milestone.Milestone, error) {
	return f[employeeID], nil
}

type fakeImages struct {
	calls  int
	images []*string
	err    error
}

func (f *fakeImages) Generate(_ context.Context, prompts []string) ([]*string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.images, nil
}

type fakeStarter struct {
	inputs    []Input
	cancelled []string
	err       error
	env       *testsuite.TestWorkflowEnvironment
}

func (f *fakeStarter) Start(_ context.Context, in Input) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.inputs = append(f.inputs, in)
	return WorkflowID(in.CycleID), nil
}

func (f *fakeStarter) Cancel(_ context.Context, workflowID string) error {
	f.cancelled = append(f.cancelled, workflowID)
	if f.env != nil {
		f.env.CancelWorkflow()
	}
	return nil
}

type fixture struct {
	svc     *Service
	acts    *Activities
	starter *fakeStarter
	images  *fakeImages
	company *company.Company
	suite   testsuite.WorkflowTestSuite
}

func setup(t *testing.T, settings company.Settings) *fixture {
	db := testutil.NewTestDB(t, &Cycle{}, &Step{}, &company.Company{})
	node := testutil.Node(t)
	ctx := context.Background()

	companies := company.NewService(company.ServiceParams{DB: db, Node: node, Seq: &testutil.FakeSequence{}})
	c, err := companies.Create(ctx, company.CreateRequest{
		Name:          "Acme",
		WalletBalance: 5000,
		MonthlyBudget: 1500,
		Settings:      settings,
	})
	require.NoError(t, err)

	employees := &fakeEmployees{
		profiles: []*account.Profile{
			{ID: "e1", Name: "Ana", CompanyID: c.ID},
			{ID: "e2", Name: "Budi", CompanyID: c.ID},
		},
		prefs: map[string]*account.EmployeePreference{
			"e1": {EmployeeID: "e1", PreferredCategories: []string{"wellness"}},
		},
	}
	milestones := fakeMilestones{
		"e1": {{ID: "m1", EmployeeID: "e1", Type: milestone.TypeBurnoutRisk, Status: milestone.StatusPending}},
		"e2": {{ID: "m2", EmployeeID: "e2", Type: milestone.TypeAnniversary, Status: milestone.StatusCompleted}},
	}

	url := "https://img/generated.png"
	images := &fakeImages{images: []*string{&url, nil, &url}}
	starter := &fakeStarter{}

	f := &fixture{
		svc:     New(db, node, starter, companies, featureflags.Static(nil), Delays{Normal: 2 * time.Second, Fast: time.Second}),
		acts:    NewActivitiesWith(db, employees, milestones, companies, images, featureflags.Static(nil), true),
		starter: starter,
		images:  images,
		company: c,
	}
	f.suite.SetLogger(workflow.NewZapAdapter(zap.NewNop()))
	return f
}

func (f *fixture) env() *testsuite.TestWorkflowEnvironment {
	env := f.suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(CycleWorkflow)
	env.RegisterActivity(f.acts)
	return env
}

func (f *fixture) start(t *testing.T, req StartRequest) *View {
	t.Helper()
	v, err := f.svc.Start(context.Background(), f.company.ID, "employer-1", req)
	require.NoError(t, err)
	return v
}

func TestStartCreatesPendingSteps(t *testing.T) {
	f := setup(t, company.Settings{})
	v := f.start(t, StartRequest{})

	require.Equal(t, StateContextAnalysis, v.State)
	require.EqualValues(t, 1, v.Version)
	require.False(t, v.FastMode)
	require.Equal(t, WorkflowID(v.ID), v.WorkflowID)
	require.Zero(t, v.Progress)
	require.Len(t, v.Steps, len(Steps))
	for i, s := range v.Steps {
		require.Equal(t, Steps[i], s.Name)
		require.Equal(t, i, s.Position)
		require.Equal(t, StepPending, s.Status)
	}

	require.Len(t, f.starter.inputs, 1)
	require.Equal(t, 2*time.Second, f.starter.inputs[0].StepDelay)

	_, err := f.svc.Start(context.Background(), f.company.ID, "employer-1", StartRequest{})
	require.True(t, errutil.Is(err, errutil.StatusConflict))
}

func TestStartFastMode(t *testing.T) {
	f := setup(t, company.Settings{FastMode: true})
	v := f.start(t, StartRequest{})
	require.True(t, v.FastMode)
	require.Equal(t, time.Second, f.starter.inputs[0].StepDelay)

	f.svc.flags = featureflags.Static(map[string]bool{featureflags.DetectionFastMode: true})
	off := false
	_, err := f.svc.Cancel(context.Background(), f.company.ID, v.ID)
	require.NoError(t, err)
	v = f.start(t, StartRequest{FastMode: &off})
	require.False(t, v.FastMode)
}

func TestStartFailureMarksCycleFailed(t *testing.T) {
	f := setup(t, company.Settings{})
	f.starter.err = errors.New("temporal unavailable")

	_, err := f.svc.Start(context.Background(), f.company.ID, "employer-1", StartRequest{})
	require.True(t, errutil.Is(err, errutil.StatusServiceUnavailable))

	rows, _, err := f.svc.List(context.Background(), f.company.ID, "", pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, StateFailed, rows[0].State)
	require.Contains(t, rows[0].ErrorMessage, "temporal unavailable")
}

func TestCycleRunsToCompletion(t *testing.T) {
	f := setup(t, company.Settings{AllowedCategories: []string{"wellness", "learning"}})
	v := f.start(t, StartRequest{})
	ctx := context.Background()

	env := f.env()
	var progress []int
	env.SetOnActivityCompletedListener(func(_ *activity.Info, _ converter.EncodedValue, _ error) {
		cur, err := f.svc.Get(ctx, f.company.ID, v.ID)
		require.NoError(t, err)
		progress = append(progress, cur.Progress)
	})
	env.ExecuteWorkflow(CycleWorkflow, f.starter.inputs[0])

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	done, err := f.svc.Get(ctx, f.company.ID, v.ID)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, done.State)
	require.Equal(t, 100, done.Progress)
	require.NotNil(t, done.CompletedAt)
	require.Greater(t, done.Version, v.Version)

	for i, s := range done.Steps {
		require.Equal(t, Steps[i], s.Name)
		require.Equal(t, StepCompleted, s.Status)
		require.NotNil(t, s.StartedAt)
		require.NotNil(t, s.EndedAt)
		require.False(t, s.EndedAt.Before(*s.StartedAt))
		require.NotEmpty(t, s.Output)
	}

	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		require.GreaterOrEqual(t, progress[i], progress[i-1])
	}
	for _, p := range progress[:len(progress)-1] {
		require.Less(t, p, 100)
	}
	require.Equal(t, 100, progress[len(progress)-1])

	var res Result
	require.NoError(t, json.Unmarshal(done.Result, &res))
	require.Equal(t, GeneratorName, res.Generator)
	require.Equal(t, res.Detections, res.WithinBudget+res.NeedsCofund)
	require.GreaterOrEqual(t, res.Detections, 2)
	require.LessOrEqual(t, res.Detections, 5)
	for _, finding := range res.Findings {
		for _, o := range finding.Options {
			require.Contains(t, []string{"wellness", "learning"}, o.Category)
			require.NotEmpty(t, o.ImageURL)
		}
	}
	require.Equal(t, 1, f.images.calls)

	var policy PolicyOutput
	require.NoError(t, json.Unmarshal(done.Steps[2].Output, &policy))
	require.Equal(t, []string{"wellness", "learning"}, policy.Allowed)

	var ctxOut ContextOutput
	require.NoError(t, json.Unmarshal(done.Steps[0].Output, &ctxOut))
	require.Len(t, ctxOut.Employees, 2)
	require.Equal(t, 1, ctxOut.Milestones)
}

func TestImagesDisabledByFlag(t *testing.T) {
	f := setup(t, company.Settings{})
	f.acts.flags = featureflags.Static(map[string]bool{featureflags.RecommendationImages: false})
	v := f.start(t, StartRequest{})

	env := f.env()
	env.ExecuteWorkflow(CycleWorkflow, f.starter.inputs[0])
	require.NoError(t, env.GetWorkflowError())

	done, err := f.svc.Get(context.Background(), f.company.ID, v.ID)
	require.NoError(t, err)
	var res Result
	require.NoError(t, json.Unmarshal(done.Result, &res))
	for _, finding := range res.Findings {
		for _, o := range finding.Options {
			require.Empty(t, o.ImageURL)
		}
	}
	require.Zero(t, f.images.calls)
}

func TestStepFailureMarksCycleFailed(t *testing.T) {
	f := setup(t, company.Settings{RewardPolicy: "cost + 1"})
	v := f.start(t, StartRequest{})

	env := f.env()
	env.ExecuteWorkflow(CycleWorkflow, f.starter.inputs[0])
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())

	failed, err := f.svc.Get(context.Background(), f.company.ID, v.ID)
	require.NoError(t, err)
	require.Equal(t, StateFailed, failed.State)
	require.Contains(t, failed.ErrorMessage, "reward policy")
	require.NotNil(t, failed.CompletedAt)

	require.Equal(t, StepCompleted, failed.Steps[0].Status)
	require.Equal(t, StepCompleted, failed.Steps[1].Status)
	require.Equal(t, StepFailed, failed.Steps[2].Status)
	require.Equal(t, StepPending, failed.Steps[3].Status)
	require.Equal(t, StepPending, failed.Steps[4].Status)
	require.Less(t, failed.Progress, 100)

	retry, err := f.svc.Retry(context.Background(), f.company.ID, "employer-1", v.ID)
	require.NoError(t, err)
	require.NotNil(t, retry.RetryOf)
	require.Equal(t, v.ID, *retry.RetryOf)
	require.Equal(t, StateContextAnalysis, retry.State)

	again, err := f.svc.Get(context.Background(), f.company.ID, v.ID)
	require.NoError(t, err)
	require.Equal(t, StateFailed, again.State)
	require.Equal(t, failed.Version, again.Version)
}

func TestCancelStopsRunnerAtNextWrite(t *testing.T) {
	f := setup(t, company.Settings{})
	v := f.start(t, StartRequest{})
	ctx := context.Background()

	env := f.env()
	env.RegisterDelayedCallback(func() {
		_, err := f.svc.Cancel(ctx, f.company.ID, v.ID)
		require.NoError(t, err)
	}, time.Second)
	env.ExecuteWorkflow(CycleWorkflow, f.starter.inputs[0])

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	require.Equal(t, []string{WorkflowID(v.ID)}, f.starter.cancelled)

	got, err := f.svc.Get(ctx, f.company.ID, v.ID)
	require.NoError(t, err)
	require.Equal(t, StateCancelled, got.State)
	require.Equal(t, StepInProgress, got.Steps[0].Status)
	for _, s := range got.Steps[1:] {
		require.Equal(t, StepPending, s.Status)
	}
	require.Empty(t, got.Result)

	_, err = f.svc.Cancel(ctx, f.company.ID, v.ID)
	require.True(t, errutil.Is(err, errutil.StatusConflict))
}

func TestCancelStopsWorkflowExecution(t *testing.T) {
	f := setup(t, company.Settings{})
	v := f.start(t, StartRequest{})
	ctx := context.Background()

	env := f.env()
	f.starter.env = env
	env.RegisterDelayedCallback(func() {
		_, err := f.svc.Cancel(ctx, f.company.ID, v.ID)
		require.NoError(t, err)
	}, 5*time.Second)
	env.ExecuteWorkflow(CycleWorkflow, f.starter.inputs[0])

	require.True(t, env.IsWorkflowCompleted())
	require.True(t, temporal.IsCanceledError(env.GetWorkflowError()))

	got, err := f.svc.Get(ctx, f.company.ID, v.ID)
	require.NoError(t, err)
	require.Equal(t, StateCancelled, got.State)
	require.Equal(t, StepCompleted, got.Steps[0].Status)
	require.Equal(t, StepCompleted, got.Steps[1].Status)
	require.Equal(t, StepInProgress, got.Steps[2].Status)
}

func TestRetryRequiresTerminalCycle(t *testing.T) {
	f := setup(t, company.Settings{})
	v := f.start(t, StartRequest{})

	_, err := f.svc.Retry(context.Background(), f.company.ID, "employer-1", v.ID)
	require.True(t, errutil.Is(err, errutil.StatusConflict))

	_, err = f.svc.Get(context.Background(), "other-company", v.ID)
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestReapStaleFailsAbandonedCycles(t *testing.T) {
	f := setup(t, company.Settings{})
	ctx := context.Background()
	v := f.start(t, StartRequest{})

	n, err := f.svc.ReapStale(ctx, f.company.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, f.svc.db.Model(&Step{}).Where("cycle_id = ? AND position = 0", v.ID).
		UpdateColumn("status", StepInProgress).Error)
	require.NoError(t, f.svc.db.Model(&Cycle{}).Where("id = ?", v.ID).
		UpdateColumn("updated_at", time.Now().UTC().Add(-time.Hour)).Error)

	n, err = f.svc.ReapStale(ctx, f.company.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{WorkflowID(v.ID)}, f.starter.cancelled)

	got, err := f.svc.Get(ctx, f.company.ID, v.ID)
	require.NoError(t, err)
	require.Equal(t, StateFailed, got.State)
	require.Equal(t, staleMessage, got.ErrorMessage)
	require.Equal(t, StepFailed, got.Steps[0].Status)
	require.Equal(t, StepPending, got.Steps[1].Status)

	_, err = f.svc.Start(ctx, f.company.ID, "employer-1", StartRequest{})
	require.NoError(t, err)
}
